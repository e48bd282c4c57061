package notifier

import (
	"context"
	"fmt"
	"strings"

	"github.com/opsgenie/opsgenie-go-sdk-v2/alert"
	ogclient "github.com/opsgenie/opsgenie-go-sdk-v2/client"

	"github.com/bbbpool/bbbpool/bbbpool/structs"
)

type alertCreator interface {
	Create(ctx context.Context, request *alert.CreateAlertRequest) (*alert.AsyncAlertResult, error)
}

// OpsGenieProvider contains the required configuration to send OpsGenie
// notifications.
type OpsGenieProvider struct {
	alerts alertCreator
}

// Name returns the name of the notification endpoint in a lowercase, human
// readable format.
func (og *OpsGenieProvider) Name() string {
	return "opsgenie"
}

// NewOpsGenieProvider creates the OpsGenie notification provider.
func NewOpsGenieProvider(c *structs.Notification) (Notifier, error) {
	if c == nil || c.OpsGenieAPIKey == "" {
		return nil, fmt.Errorf("notifier/opsgenie: an API key is required")
	}

	cli, err := alert.NewClient(&ogclient.Config{ApiKey: c.OpsGenieAPIKey})
	if err != nil {
		return nil, fmt.Errorf("notifier/opsgenie: unable to setup the client: %v", err)
	}

	return &OpsGenieProvider{alerts: cli}, nil
}

// SendNotification creates an OpsGenie alert. The alert UID is used as
// alias so repeated alerts are grouped.
func (og *OpsGenieProvider) SendNotification(ctx context.Context, message FailureMessage) error {
	priority := alert.P3
	if strings.HasPrefix(message.Level, "ERR") {
		priority = alert.P2
	}

	request := &alert.CreateAlertRequest{
		Message:     message.Summary(),
		Alias:       message.AlertUID,
		Description: message.Reason,
		Details: map[string]string{
			"alert_uid": message.AlertUID,
			"project":   message.Project,
			"level":     message.Level,
		},
		Entity:   message.Project,
		Source:   "bbbpool",
		Priority: priority,
	}

	if _, err := og.alerts.Create(ctx, request); err != nil {
		return fmt.Errorf("notifier/opsgenie: an error occurred creating the alert: %v", err)
	}
	return nil
}
