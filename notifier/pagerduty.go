package notifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PagerDuty/go-pagerduty"

	"github.com/bbbpool/bbbpool/bbbpool/structs"
)

// PagerDutyProvider contains the required configuration to send PagerDuty
// notifications.
type PagerDutyProvider struct {
	routingKey string
	send       func(context.Context, pagerduty.V2Event) (*pagerduty.V2EventResponse, error)
}

// Name returns the name of the notification endpoint in a lowercase, human
// readable format.
func (p *PagerDutyProvider) Name() string {
	return "pagerduty"
}

// NewPagerDutyProvider creates the PagerDuty notification provider.
func NewPagerDutyProvider(c *structs.Notification) (Notifier, error) {
	if c == nil || c.PagerDutyRoutingKey == "" {
		return nil, fmt.Errorf("notifier/pagerduty: a routing key is required")
	}

	p := &PagerDutyProvider{
		routingKey: c.PagerDutyRoutingKey,
		send:       pagerduty.ManageEventWithContext,
	}

	return p, nil
}

// SendNotification triggers an event through the Events API v2. The alert
// UID is used as dedup key so repeated alerts update the same incident.
func (p *PagerDutyProvider) SendNotification(ctx context.Context, message FailureMessage) error {
	severity := "warning"
	if strings.HasPrefix(message.Level, "ERR") {
		severity = "error"
	}

	event := pagerduty.V2Event{
		RoutingKey: p.routingKey,
		Action:     "trigger",
		DedupKey:   message.AlertUID,
		Payload: &pagerduty.V2Payload{
			Summary:   message.Summary(),
			Source:    "bbbpool/" + message.Project,
			Severity:  severity,
			Timestamp: message.Time.Format(time.RFC3339),
			Details:   message,
		},
	}

	if _, err := p.send(ctx, event); err != nil {
		return fmt.Errorf("notifier/pagerduty: an error occurred creating the event: %v", err)
	}
	return nil
}
