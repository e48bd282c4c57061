package structs

import "time"

// CycleReport summarizes one reconciliation cycle. It is logged and
// published to the report sinks.
type CycleReport struct {
	ID        string        `json:"id"`
	Project   string        `json:"project"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`

	// DryRun and Failsafe are set when the plan was computed but not
	// applied.
	DryRun   bool `json:"dry_run,omitempty"`
	Failsafe bool `json:"failsafe,omitempty"`

	Plan *ReconciliationPlan `json:"plan,omitempty"`

	// Succeeded actions, by action name.
	Applied map[string][]string `json:"applied,omitempty"`

	Stats PoolStats `json:"stats"`

	Error string `json:"error,omitempty"`
}

// PoolStats counts the slots of a snapshot by state.
type PoolStats struct {
	Size            int            `json:"size"`
	HosterStates    map[string]int `json:"hoster_states"`
	InventoryStates map[string]int `json:"inventory_states"`
	InventoryStatus map[string]int `json:"inventory_status"`
	CustomStates    map[string]int `json:"custom_states"`
	InMaintenance   int            `json:"in_maintenance"`
	Meetings        int            `json:"meetings"`
	Participants    int            `json:"participants"`
	Videos          int            `json:"videos"`
}

// Stats computes the statistics of every slot of the snapshot.
func (s *PoolSnapshot) Stats() PoolStats {
	stats := PoolStats{
		Size:            s.Len(),
		HosterStates:    make(map[string]int),
		InventoryStates: make(map[string]int),
		InventoryStatus: make(map[string]int),
		CustomStates:    make(map[string]int),
	}

	for _, domain := range s.order {
		r := s.records[domain]
		stats.HosterStates[r.HosterState.String()]++
		stats.InventoryStates[r.InventoryState.String()]++
		stats.InventoryStatus[r.InventoryStatus.String()]++
		if r.Tagged() {
			stats.CustomStates[r.CustomState.String()]++
		}
		if r.InMaintenance() {
			stats.InMaintenance++
		}
		stats.Meetings += r.Meetings
		stats.Participants += r.Users
		stats.Videos += r.Videos
	}
	return stats
}
