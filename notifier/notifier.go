package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/bbbpool/bbbpool/bbbpool/structs"
)

// FailureMessage is the notifier struct that contains all relevant
// notification information to provide to operators.
type FailureMessage struct {
	// AlertUID identifies the alert across cycles so notification backends
	// can group repeated occurrences.
	AlertUID string
	Project  string
	Level    string
	Reason   string
	Time     time.Time
}

// Summary is the one line description of the message.
func (m FailureMessage) Summary() string {
	return fmt.Sprintf("[%s] %s: %s", m.Project, m.Level, m.Reason)
}

// Notifier is the interface to the Notifiers functions. All notifiers are
// expected to implement this set of functions.
type Notifier interface {
	Name() string
	SendNotification(ctx context.Context, message FailureMessage) error
}

// NewProvider is the factory entrance to the notifications backends.
func NewProvider(t string, c *structs.Notification) (Notifier, error) {

	var n Notifier
	var err error

	switch t {
	case "pagerduty":
		n, err = NewPagerDutyProvider(c)
	case "opsgenie":
		n, err = NewOpsGenieProvider(c)
	case "email":
		n, err = NewEmailProvider(c)
	default:
		err = fmt.Errorf("the notifications provider %s is not supported", t)
	}
	return n, err
}

// NewProviders sets up every notifier configured in the notification block.
func NewProviders(c *structs.Notification) ([]Notifier, error) {
	if c == nil {
		return nil, nil
	}

	var names []string
	if c.PagerDutyRoutingKey != "" {
		names = append(names, "pagerduty")
	}
	if c.OpsGenieAPIKey != "" {
		names = append(names, "opsgenie")
	}
	if c.Email != nil && c.Email.Host != "" {
		names = append(names, "email")
	}

	notifiers := make([]Notifier, 0, len(names))
	for _, name := range names {
		n, err := NewProvider(name, c)
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, n)
	}
	return notifiers, nil
}
