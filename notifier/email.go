package notifier

import (
	"context"
	"fmt"

	"gopkg.in/mail.v2"

	"github.com/bbbpool/bbbpool/bbbpool/structs"
)

// Dialer sends prepared messages over SMTP.
type Dialer interface {
	DialAndSend(m ...*mail.Message) error
}

// EmailProvider mails notifications to the operators.
type EmailProvider struct {
	from   string
	to     []string
	dialer Dialer
}

// Name returns the name of the notification endpoint in a lowercase, human
// readable format.
func (e *EmailProvider) Name() string {
	return "email"
}

// NewEmailProvider creates the SMTP notification provider.
func NewEmailProvider(c *structs.Notification) (Notifier, error) {
	if c == nil || c.Email == nil || c.Email.Host == "" {
		return nil, fmt.Errorf("notifier/email: an email block with a host is required")
	}
	m := c.Email

	return &EmailProvider{
		from:   m.From,
		to:     m.To,
		dialer: mail.NewDialer(m.Host, m.Port, m.Username, m.Password),
	}, nil
}

// SendNotification mails the message to every recipient.
func (e *EmailProvider) SendNotification(_ context.Context, message FailureMessage) error {
	m := mail.NewMessage()
	m.SetHeader("From", e.from)
	m.SetHeader("To", e.to...)
	m.SetHeader("Subject", message.Summary())
	m.SetBody("text/plain", fmt.Sprintf("%s\n\nproject: %s\nlevel: %s\ntime: %s\nalert: %s\n",
		message.Reason, message.Project, message.Level,
		message.Time.Format("2006-01-02 15:04:05 MST"), message.AlertUID))

	if err := e.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("notifier/email: unable to send the notification: %v", err)
	}
	return nil
}
