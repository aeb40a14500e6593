package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"
	"github.com/rewired-gh/otawatch/internal/config"
)

// Email sends the HTML rendering over SMTP with STARTTLS when offered.
type Email struct {
	cfg config.EmailConfig
}

func NewEmail(cfg config.EmailConfig) *Email {
	return &Email{cfg: cfg}
}

func (e *Email) Name() string { return "email" }

func (e *Email) Send(ctx context.Context, msg Message) error {
	mail := e.build(msg)
	addr := fmt.Sprintf("%s:%d", e.cfg.SMTPHost, e.cfg.SMTPPort)

	var auth smtp.Auth
	if e.cfg.Username != "" {
		auth = smtp.PlainAuth("", e.cfg.Username, e.cfg.Password, e.cfg.SMTPHost)
	}
	err := mail.Send(addr, auth)
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = mail.Send(addr, nil)
	}
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func (e *Email) build(msg Message) *email.Email {
	mail := email.NewEmail()
	mail.From = e.cfg.From
	mail.To = e.cfg.To
	mail.Subject = msg.Subject
	mail.HTML = []byte(msg.HTML)
	mail.Text = []byte(msg.SMS)
	return mail
}
