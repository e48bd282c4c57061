package bbbpool

import (
	"context"
	"strconv"
	"time"

	metrics "github.com/armon/go-metrics"
	"go.uber.org/zap/zapcore"

	"github.com/bbbpool/bbbpool/bbbpool/structs"
	"github.com/bbbpool/bbbpool/helper"
	"github.com/bbbpool/bbbpool/logging"
	"github.com/bbbpool/bbbpool/notifier"
)

// Default minimum delays between two notifications of the same alert.
const (
	defaultWarningInterval = 24 * time.Hour
	defaultErrorInterval   = time.Hour
)

// Alerter forwards the warnings and errors logged during a cycle to the
// notifiers, at most once per interval for a given alert.
type Alerter struct {
	notifiers       []notifier.Notifier
	state           structs.StateStore
	project         string
	warningInterval time.Duration
	errorInterval   time.Duration
	logger          *logging.Logger
	now             func() time.Time
}

// NewAlerter returns an alerter sending to notifiers.
func NewAlerter(config *structs.Config, notifiers []notifier.Notifier, state structs.StateStore,
	logger *logging.Logger) *Alerter {

	a := &Alerter{
		notifiers:       notifiers,
		state:           state,
		project:         config.Project,
		warningInterval: defaultWarningInterval,
		errorInterval:   defaultErrorInterval,
		logger:          logger,
		now:             time.Now,
	}
	if n := config.Notification; n != nil {
		if n.WarningInterval > 0 {
			a.warningInterval = time.Duration(n.WarningInterval) * time.Second
		}
		if n.ErrorInterval > 0 {
			a.errorInterval = time.Duration(n.ErrorInterval) * time.Second
		}
	}
	return a
}

// Flush notifies the alerts not sent recently and returns the number of
// notified alerts.
func (a *Alerter) Flush(ctx context.Context, alerts []logging.Alert) int {
	if len(alerts) == 0 || len(a.notifiers) == 0 {
		return 0
	}

	ledger := structs.AlertLedger{}
	if _, err := a.state.ReadState(ctx, structs.StateKeyAlerts, &ledger); err != nil {
		a.logger.Info("core/alerts: unable to read the alert ledger, notifying every alert: %v", err)
	}
	if ledger.Sent == nil {
		ledger.Sent = make(map[string]time.Time)
	}

	now := a.now()
	sent := 0

	for _, alert := range alerts {
		uid, err := alertUID(alert)
		if err != nil {
			a.logger.Info("core/alerts: unable to fingerprint alert %q: %v", alert.Message, err)
			continue
		}

		if last, ok := ledger.Sent[uid]; ok && now.Sub(last) < a.interval(alert.Level) {
			continue
		}

		msg := notifier.FailureMessage{
			AlertUID: uid,
			Project:  a.project,
			Level:    alert.Level.CapitalString(),
			Reason:   alert.Message,
			Time:     alert.Time,
		}

		delivered := false
		for _, n := range a.notifiers {
			if err := n.SendNotification(ctx, msg); err != nil {
				a.logger.Info("core/alerts: %v notification failed: %v", n.Name(), err)
				continue
			}
			delivered = true
		}

		if delivered {
			ledger.Sent[uid] = now
			sent++
		}
	}

	// Forget alerts old enough to be notified again whatever their level.
	for uid, last := range ledger.Sent {
		if now.Sub(last) >= a.warningInterval && now.Sub(last) >= a.errorInterval {
			delete(ledger.Sent, uid)
		}
	}

	ledger.LastUpdated = now
	if err := a.state.PersistState(ctx, structs.StateKeyAlerts, ledger); err != nil {
		a.logger.Info("core/alerts: unable to persist the alert ledger: %v", err)
	}

	metrics.IncrCounter([]string{"alerts", "sent"}, float32(sent))
	return sent
}

func (a *Alerter) interval(level zapcore.Level) time.Duration {
	if level >= zapcore.ErrorLevel {
		return a.errorInterval
	}
	return a.warningInterval
}

// alertUID identifies an alert by its level and message.
func alertUID(alert logging.Alert) (string, error) {
	h, err := helper.Fingerprint(struct {
		Level   string
		Message string
	}{alert.Level.String(), alert.Message})
	if err != nil {
		return "", err
	}
	return strconv.FormatUint(h, 16), nil
}
