package mail

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"registrar/internal/platform/config"
	"registrar/internal/registration/ports"
	"registrar/internal/registration/service"
)

func newSender(t *testing.T) *SMTPSender {
	t.Helper()
	s, err := NewSMTPSender(config.Mail{
		Host: "localhost", Port: 2525, From: "no-reply@registrar.local",
	}, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	return s
}

func TestRenderTemplates(t *testing.T) {
	sender := newSender(t)
	expires := time.Date(2025, 6, 16, 10, 30, 0, 0, time.UTC)

	t.Run("verification", func(t *testing.T) {
		body, err := sender.render(ports.EmailMessage{
			To:       "jane@example.com",
			Subject:  "Confirm your email address",
			Template: service.TemplateVerification,
			Model: service.VerificationEmail{
				RecipientName: "Jane",
				Token:         "vrf_abc123",
				ExpiresAt:     expires,
				ResendsLeft:   3,
			},
		})
		require.NoError(t, err)
		text := string(body)
		assert.Contains(t, text, "To: jane@example.com")
		assert.Contains(t, text, "vrf_abc123")
		assert.Contains(t, text, "3 resend(s)")
	})

	t.Run("approval request carries both tokens", func(t *testing.T) {
		body, err := sender.render(ports.EmailMessage{
			To:       "admin@example.org",
			Subject:  "Registration pending approval",
			Template: service.TemplateApprovalRequest,
			Model: service.ApprovalRequestEmail{
				ApplicantName:  "Jane Doe",
				ApplicantEmail: "jane@example.com",
				ApproveToken:   "apr_yes",
				RejectToken:    "rej_no",
				ExpiresAt:      expires,
			},
		})
		require.NoError(t, err)
		text := string(body)
		assert.Contains(t, text, "apr_yes")
		assert.Contains(t, text, "rej_no")
	})

	t.Run("rejection includes the reason", func(t *testing.T) {
		body, err := sender.render(ports.EmailMessage{
			To:       "jane@example.com",
			Subject:  "Your registration was not approved",
			Template: service.TemplateDecision,
			Model: service.DecisionEmail{
				RecipientName: "Jane",
				Approved:      false,
				Reason:        "incomplete documents",
			},
		})
		require.NoError(t, err)
		assert.Contains(t, string(body), "incomplete documents")
	})

	t.Run("unknown template", func(t *testing.T) {
		_, err := sender.render(ports.EmailMessage{Template: "no_such_template"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown mail template")
	})
}
