// Package mail delivers the registration notification emails. The SMTP
// sender renders each message's view model through a named text template; a
// log-only sender covers development environments without a relay.
package mail

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strconv"
	"text/template"

	"registrar/internal/platform/config"
	"registrar/internal/registration/ports"
)

// SMTPSender renders and delivers messages through a plain SMTP relay.
type SMTPSender struct {
	cfg       config.Mail
	templates *template.Template
	logger    *slog.Logger
}

func NewSMTPSender(cfg config.Mail, logger *slog.Logger) (*SMTPSender, error) {
	tmpl, err := template.New("mail").Parse(messageTemplates)
	if err != nil {
		return nil, fmt.Errorf("parse mail templates: %w", err)
	}
	return &SMTPSender{cfg: cfg, templates: tmpl, logger: logger}, nil
}

// Send implements ports.EmailSender.
func (s *SMTPSender) Send(ctx context.Context, msg ports.EmailMessage) error {
	body, err := s.render(msg)
	if err != nil {
		return err
	}

	addr := s.cfg.Host + ":" + strconv.Itoa(s.cfg.Port)
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	if err := smtp.SendMail(addr, auth, s.cfg.From, []string{msg.To}, body); err != nil {
		return fmt.Errorf("send %s mail: %w", msg.Template, err)
	}
	s.logger.InfoContext(ctx, "mail sent", "template", msg.Template, "to", msg.To)
	return nil
}

func (s *SMTPSender) render(msg ports.EmailMessage) ([]byte, error) {
	tmpl := s.templates.Lookup(msg.Template)
	if tmpl == nil {
		return nil, fmt.Errorf("unknown mail template %q", msg.Template)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n", s.cfg.From, msg.To, msg.Subject)
	if err := tmpl.Execute(&buf, msg.Model); err != nil {
		return nil, fmt.Errorf("render %s mail: %w", msg.Template, err)
	}
	return buf.Bytes(), nil
}

// LogSender logs messages instead of delivering them. Used when no SMTP
// relay is configured.
type LogSender struct {
	Logger *slog.Logger
}

func (s LogSender) Send(ctx context.Context, msg ports.EmailMessage) error {
	s.Logger.InfoContext(ctx, "mail suppressed (no relay configured)",
		"template", msg.Template, "to", msg.To, "subject", msg.Subject)
	return nil
}

// messageTemplates holds the plain-text bodies, one {{define}} block per
// service view model.
const messageTemplates = `
{{define "registration_verification"}}Hello {{.RecipientName}},

Please confirm your email address by entering the following code:

    {{.Token}}

The code expires at {{.ExpiresAt.Format "15:04 MST on Jan 2, 2006"}}. You have {{.ResendsLeft}} resend(s) left.
{{end}}

{{define "registration_approval_request"}}A new registration awaits review.

Applicant: {{.ApplicantName}} <{{.ApplicantEmail}}>

Approve: {{.ApproveToken}}
Reject:  {{.RejectToken}}

The tokens expire at {{.ExpiresAt.Format "15:04 MST on Jan 2, 2006"}}.
{{end}}

{{define "registration_decision"}}Hello {{.RecipientName}},

{{if .Approved}}Your registration has been approved. Welcome!{{else}}Your registration has been rejected.{{if .Reason}}

Reason: {{.Reason}}{{end}}{{end}}
{{end}}

{{define "registration_welcome"}}Hello {{.RecipientName}},

Your account is ready. Your member reference is {{.AccountGUID}}.
{{end}}
`
