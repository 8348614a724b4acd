package notify

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"
)

// SMTPConfig describes the mail gateway used for email code delivery.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Subject  string
}

// SMTPNotifier delivers email verification codes through an SMTP gateway.
// It ignores SMS messages, which need a separate gateway.
type SMTPNotifier struct {
	dialer  *gomail.Dialer
	from    string
	subject string
}

// NewSMTPNotifier creates a notifier for the given gateway.
func NewSMTPNotifier(cfg SMTPConfig) *SMTPNotifier {
	subject := cfg.Subject
	if subject == "" {
		subject = "Your verification code"
	}
	return &SMTPNotifier{
		dialer:  gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:    cfg.From,
		subject: subject,
	}
}

func (n *SMTPNotifier) Send(_ context.Context, msg Message) error {
	if msg.Channel != ChannelEmail {
		return fmt.Errorf("smtp notifier cannot deliver %q messages", msg.Channel)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", msg.Recipient)
	m.SetHeader("Subject", n.subject)
	m.SetBody("text/plain", fmt.Sprintf(
		"Your verification code is %s. It expires in %d minutes.",
		msg.Code, int(msg.TTL.Minutes()),
	))

	return n.dialer.DialAndSend(m)
}
