package structs

import "time"

// Keys of the documents kept in the state store.
const (
	StateKeyMaintenance = "maintenance"
	StateKeyLoadTrend   = "load_trend"
	StateKeyFailsafe    = "failsafe"
	StateKeyAlerts      = "alerts"
)

// MaintenanceList holds the slot numbers an operator has taken out of the
// pool.
type MaintenanceList struct {
	Numbers     []int     `json:"numbers"`
	LastUpdated time.Time `json:"last_updated"`
}

// Contains reports whether number is in maintenance.
func (m *MaintenanceList) Contains(number int) bool {
	for _, n := range m.Numbers {
		if n == number {
			return true
		}
	}
	return false
}

// LoadTrend is the pool load recorded at the end of the previous cycle.
type LoadTrend struct {
	Participants int       `json:"participants"`
	Meetings     int       `json:"meetings"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// FailsafeState tracks whether the controller has exceeded the fault
// threshold while acting on the pool. When operating in failsafe mode the
// controller declines to take actions of any type.
type FailsafeState struct {
	Enabled bool `json:"enabled"`

	// ConsecutiveFailures counts the cycles in a row where cloning failed.
	ConsecutiveFailures int `json:"consecutive_failures"`

	Reason      string    `json:"reason,omitempty"`
	LastUpdated time.Time `json:"last_updated"`
}

// AlertLedger remembers when each alert fingerprint was last notified.
type AlertLedger struct {
	Sent        map[string]time.Time `json:"sent"`
	LastUpdated time.Time            `json:"last_updated"`
}
