package mailer

import (
	"context"
	"errors"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/ombhut175/RetailFlow-sub002/pkg/config"
)

// ErrDisabled is returned when SMTP is not configured.
var ErrDisabled = errors.New("mail delivery disabled")

// Message is an outbound notification.
type Message struct {
	To      []string
	Subject string
	HTML    string
	Text    string
}

// Sender delivers messages. *gomail.Dialer satisfies it.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// Mailer sends notification mail over SMTP.
type Mailer struct {
	from   string
	sender Sender
}

// New builds a mailer from config. It returns ErrDisabled when no SMTP host is set.
func New(cfg config.MailConfig) (*Mailer, error) {
	if cfg.SMTPHost == "" {
		return nil, ErrDisabled
	}
	dialer := gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass)
	return NewWithSender(cfg.From, dialer), nil
}

// NewWithSender wires a custom sender, mostly for tests.
func NewWithSender(from string, sender Sender) *Mailer {
	return &Mailer{from: from, sender: sender}
}

// Send delivers msg. The context is only checked before dialing; gomail has no
// cancellation hook.
func (m *Mailer) Send(ctx context.Context, msg Message) error {
	if m == nil || m.sender == nil {
		return ErrDisabled
	}
	if len(msg.To) == 0 {
		return fmt.Errorf("mail recipients required")
	}
	if msg.HTML == "" && msg.Text == "" {
		return fmt.Errorf("mail body required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	out := gomail.NewMessage()
	out.SetHeader("From", m.from)
	out.SetHeader("To", msg.To...)
	out.SetHeader("Subject", msg.Subject)
	switch {
	case msg.Text != "" && msg.HTML != "":
		out.SetBody("text/plain", msg.Text)
		out.AddAlternative("text/html", msg.HTML)
	case msg.HTML != "":
		out.SetBody("text/html", msg.HTML)
	default:
		out.SetBody("text/plain", msg.Text)
	}

	if err := m.sender.DialAndSend(out); err != nil {
		return fmt.Errorf("send mail %q: %w", msg.Subject, err)
	}
	return nil
}
