package structs

import "fmt"

// CapacityTarget is the number of active slots the pool should have.
type CapacityTarget struct {
	// Count is the wanted number of active slots, -1 when no predictor could
	// produce a value.
	Count int `json:"count"`

	// Sources holds the prediction of each predictor that contributed.
	Sources map[string]int `json:"sources,omitempty"`
}

// NoChange reports whether the target must not alter the active capacity.
func (t CapacityTarget) NoChange() bool {
	return t.Count <= 0
}

// GateRequirement describes what must hold before a slot is terminated.
type GateRequirement int

const (
	// GateImmediate slots are terminated without further checks.
	GateImmediate GateRequirement = iota

	// GateDrained slots are terminated only once they host no meeting and
	// every recording they produced has been transferred.
	GateDrained
)

func (g GateRequirement) String() string {
	switch g {
	case GateImmediate:
		return "immediate"
	case GateDrained:
		return "drained"
	default:
		return "unknown"
	}
}

func (g GateRequirement) MarshalText() ([]byte, error) { return []byte(g.String()), nil }

func (g *GateRequirement) UnmarshalText(b []byte) error {
	switch string(b) {
	case "immediate":
		*g = GateImmediate
	case "drained":
		*g = GateDrained
	default:
		return fmt.Errorf("unknown gate requirement %q", b)
	}
	return nil
}

// TerminateCandidate is a slot the engine would like to terminate.
type TerminateCandidate struct {
	Domain      string          `json:"domain"`
	Requirement GateRequirement `json:"requirement"`
}

// ReconciliationPlan is the ordered list of actions decided for one cycle.
type ReconciliationPlan struct {
	Target CapacityTarget `json:"target"`

	// Clamped is set when the target exceeded the pool size.
	Clamped bool `json:"clamped,omitempty"`

	Delta        int    `json:"delta"`
	Compensation int    `json:"compensation"`
	Spared       string `json:"spared,omitempty"`

	Retire []string `json:"retire,omitempty"`
	Cordon []string `json:"cordon,omitempty"`
	Enable []string `json:"enable,omitempty"`

	TerminateCandidates []TerminateCandidate `json:"terminate_candidates,omitempty"`
	Terminate           []string             `json:"terminate,omitempty"`
	Clone               []string             `json:"clone,omitempty"`
	PowerOn             []string             `json:"power_on,omitempty"`
}

// InventoryActions returns the cordon list, retired slots first, and the
// enable list, without duplicates.
func (p *ReconciliationPlan) InventoryActions() (cordon []string, enable []string) {
	seen := make(map[string]struct{})
	for _, list := range [][]string{p.Retire, p.Cordon} {
		for _, d := range list {
			if _, ok := seen[d]; ok {
				continue
			}
			seen[d] = struct{}{}
			cordon = append(cordon, d)
		}
	}
	return cordon, append([]string(nil), p.Enable...)
}

// Empty reports whether the plan carries no action.
func (p *ReconciliationPlan) Empty() bool {
	return len(p.Retire) == 0 && len(p.Cordon) == 0 && len(p.Enable) == 0 &&
		len(p.Terminate) == 0 && len(p.Clone) == 0 && len(p.PowerOn) == 0
}
