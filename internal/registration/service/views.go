package service

import (
	"fmt"
	"time"

	"registrar/internal/registration/models"
	"registrar/internal/registration/ports"
	dErrors "registrar/pkg/domain-errors"
	"registrar/pkg/email"
)

// Email template names, resolved by the sending adapter.
const (
	TemplateVerification    = "registration_verification"
	TemplateApprovalRequest = "registration_approval_request"
	TemplateDecision        = "registration_decision"
	TemplateWelcome         = "registration_welcome"
)

// VerificationEmail is the view model for the verify-your-address mail.
type VerificationEmail struct {
	RecipientName string    `json:"recipient_name"`
	Token         string    `json:"token"`
	ExpiresAt     time.Time `json:"expires_at"`
	ResendsLeft   int       `json:"resends_left"`
}

// NewVerificationEmail builds the message for the given session. The
// recipient name falls back to a derivation from the address when the payload
// carries none.
func NewVerificationEmail(sess *models.RegistrationSession, resendsLeft int) (ports.EmailMessage, error) {
	v := sess.Verification
	if v.Token == "" {
		return ports.EmailMessage{}, dErrors.New(dErrors.CodeInvariantViolation, "verification email without a token")
	}
	name := sess.UserData.Account.FirstName
	if name == "" {
		name, _ = email.DeriveNameFromEmail(sess.UserData.Account.Email)
	}
	return ports.EmailMessage{
		To:       sess.UserData.Account.Email,
		Subject:  "Confirm your email address",
		Template: TemplateVerification,
		Model: VerificationEmail{
			RecipientName: name,
			Token:         v.Token,
			ExpiresAt:     v.ExpiresAt,
			ResendsLeft:   resendsLeft,
		},
	}, nil
}

// ApprovalRequestEmail is the view model for the administrator review mail.
// Both tokens travel in the same message; the administrator's click decides.
type ApprovalRequestEmail struct {
	ApplicantName  string    `json:"applicant_name"`
	ApplicantEmail string    `json:"applicant_email"`
	ApproveToken   string    `json:"approve_token"`
	RejectToken    string    `json:"reject_token"`
	ExpiresAt      time.Time `json:"expires_at"`
}

func NewApprovalRequestEmail(sess *models.RegistrationSession, adminEmail string) (ports.EmailMessage, error) {
	a := sess.Approval
	if a.ApproveToken == "" || a.RejectToken == "" {
		return ports.EmailMessage{}, dErrors.New(dErrors.CodeInvariantViolation, "approval email without a token pair")
	}
	if adminEmail == "" {
		return ports.EmailMessage{}, dErrors.New(dErrors.CodeInvalidInput, "organization has no admin email")
	}
	acct := sess.UserData.Account
	return ports.EmailMessage{
		To:       adminEmail,
		Subject:  fmt.Sprintf("Registration pending approval: %s %s", acct.FirstName, acct.LastName),
		Template: TemplateApprovalRequest,
		Model: ApprovalRequestEmail{
			ApplicantName:  acct.FirstName + " " + acct.LastName,
			ApplicantEmail: acct.Email,
			ApproveToken:   a.ApproveToken,
			RejectToken:    a.RejectToken,
			ExpiresAt:      a.ExpiresAt,
		},
	}, nil
}

// DecisionEmail tells the applicant how the review came out.
type DecisionEmail struct {
	RecipientName string `json:"recipient_name"`
	Approved      bool   `json:"approved"`
	Reason        string `json:"reason,omitempty"`
}

func NewDecisionEmail(sess *models.RegistrationSession) (ports.EmailMessage, error) {
	if !sess.Approval.Decided() {
		return ports.EmailMessage{}, dErrors.New(dErrors.CodeInvariantViolation, "decision email before a decision")
	}
	approved := sess.Approval.Decision == models.DecisionApproved
	subject := "Your registration was not approved"
	if approved {
		subject = "Your registration was approved"
	}
	return ports.EmailMessage{
		To:       sess.UserData.Account.Email,
		Subject:  subject,
		Template: TemplateDecision,
		Model: DecisionEmail{
			RecipientName: sess.UserData.Account.FirstName,
			Approved:      approved,
			Reason:        sess.Approval.Reason,
		},
	}, nil
}

// WelcomeEmail closes the workflow once every record exists.
type WelcomeEmail struct {
	RecipientName string `json:"recipient_name"`
	AccountGUID   string `json:"account_guid"`
}

func NewWelcomeEmail(sess *models.RegistrationSession) (ports.EmailMessage, error) {
	if sess.Progress.AccountGUID == "" {
		return ports.EmailMessage{}, dErrors.New(dErrors.CodeInvariantViolation, "welcome email before the account exists")
	}
	return ports.EmailMessage{
		To:       sess.UserData.Account.Email,
		Subject:  "Welcome aboard",
		Template: TemplateWelcome,
		Model: WelcomeEmail{
			RecipientName: sess.UserData.Account.FirstName,
			AccountGUID:   sess.Progress.AccountGUID,
		},
	}, nil
}
