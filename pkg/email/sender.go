package email

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/electronicjova/storefront-backend/pkg/config"
	"github.com/electronicjova/storefront-backend/pkg/logger"
)

// Message is one outgoing email. Text is the plain-text alternative of HTML.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Sender delivers a single email.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type transport interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGrid sends through the SendGrid v3 mail API.
type SendGrid struct {
	client transport
	from   *mail.Email
}

// New returns a SendGrid sender, or a logging sender when no API key is configured.
func New(cfg config.SendgridConfig, logg *logger.Logger) Sender {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return &LogSender{logg: logg}
	}
	return &SendGrid{
		client: sendgrid.NewSendClient(cfg.APIKey),
		from:   mail.NewEmail(cfg.FromName, cfg.DefaultFrom),
	}
}

func (s *SendGrid) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return errors.New("recipient is required")
	}
	if msg.HTML == "" && msg.Text == "" {
		return errors.New("email body is required")
	}
	out := mail.NewSingleEmail(s.from, msg.Subject, mail.NewEmail("", msg.To), msg.Text, msg.HTML)
	resp, err := s.client.SendWithContext(ctx, out)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid send: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

// LogSender records the email instead of sending it. Used in dev.
type LogSender struct {
	logg *logger.Logger
}

func (l *LogSender) Send(ctx context.Context, msg Message) error {
	if l.logg != nil {
		l.logg.Info(l.logg.WithFields(ctx, map[string]any{"to": msg.To, "subject": msg.Subject}), "email delivery skipped (no sendgrid key)")
	}
	return nil
}
