package bbbpool

import (
	"sort"
	"time"

	"github.com/bbbpool/bbbpool/bbbpool/structs"
	"github.com/bbbpool/bbbpool/logging"
)

// drainedAfterCycles is the number of run intervals a running slot must
// have been up before it may be terminated, so a slot started for an
// imminent load is not stopped right away.
const drainedAfterCycles = 3

// EngineConfig carries the settings the reconciliation depends on.
type EngineConfig struct {
	PoolSize    int
	RunInterval time.Duration
}

// NewEngineConfig extracts the engine settings of config.
func NewEngineConfig(config *structs.Config) EngineConfig {
	return EngineConfig{
		PoolSize:    config.Pool.Size,
		RunInterval: config.RunIntervalDuration(),
	}
}

// Reconcile decides the inventory actions bringing the pool to target. It
// only reads the snapshot; nothing is dispatched.
func Reconcile(s *structs.PoolSnapshot, target structs.CapacityTarget, cfg EngineConfig,
	logger *logging.Logger) *structs.ReconciliationPlan {

	plan := &structs.ReconciliationPlan{Target: target}
	def := structs.ListOptions{}

	retired := retire(s, plan, logger)

	var potential []*structs.ServerRecord
	for _, r := range s.List(def, structs.IsEnabled) {
		if _, ok := retired[r.Domain]; !ok {
			potential = append(potential, r)
		}
	}

	toReplace := len(plan.Retire)
	if plan.Spared != "" {
		toReplace++
	}

	activeBareMetal := s.Count(structs.ListOptions{IncludeBareMetal: true},
		structs.IsEnabled, structs.IsRunning, isBareMetal, isHealthy)

	logger.Info("core/engine: %d active virtual machines, %d active bare metal servers, "+
		"%d soon active, %d potential active, %d to replace",
		s.Count(def, structs.IsEnabled, structs.IsRunning), activeBareMetal,
		s.Count(def, structs.IsEnabled, structs.InHosterState(structs.HosterStarting)),
		len(potential), toReplace)

	if target.NoChange() {
		logger.Info("core/engine: no capacity change required")
		return plan
	}

	count := target.Count
	if count > cfg.PoolSize {
		logger.Error("core/engine: next active servers count %d exceeds the pool size, "+
			"limiting it to %d servers", count, cfg.PoolSize)
		count = cfg.PoolSize
		plan.Clamped = true
	}

	plan.Delta = count - len(potential) - activeBareMetal + plan.Compensation
	logger.Info("core/engine: next required active servers count is %d, difference is %d",
		count, plan.Delta)

	switch {
	case plan.Delta < 0:
		plan.Cordon = shrink(potential, -plan.Delta, logger)
	case plan.Delta > 0:
		plan.Enable = grow(s.List(def, structs.IsInactive), plan.Delta, logger)
	default:
		plan.Enable, plan.Cordon = swap(s, logger)
	}

	return plan
}

var (
	isBareMetal structs.Predicate = func(r *structs.ServerRecord) bool { return r.IsBareMetal() }
	isHealthy   structs.Predicate = func(r *structs.ServerRecord) bool { return r.Health == structs.HealthOK }
)

// retire queues every enabled running slot tagged for replacement for
// cordon. When this would leave no online capacity, one online slot is kept
// and a replacement is requested through the compensation.
func retire(s *structs.PoolSnapshot, plan *structs.ReconciliationPlan,
	logger *logging.Logger) map[string]struct{} {

	active := s.List(structs.ListOptions{}, structs.IsEnabled, structs.IsRunning)

	var toReplace []*structs.ServerRecord
	onlineHealthy := 0
	for _, r := range active {
		switch {
		case r.Tagged():
			toReplace = append(toReplace, r)
		case r.Online():
			onlineHealthy++
		}
	}

	if len(toReplace) > 0 && onlineHealthy == 0 {
		if spared := spareCandidate(toReplace); spared != nil {
			logger.Info("core/engine: server %v (%v) is due to be terminated but is kept "+
				"as the only active online server", spared.Domain, spared.CustomState)
			plan.Spared = spared.Domain
			plan.Compensation = 1
		}
	}

	retired := make(map[string]struct{}, len(toReplace))
	for _, r := range toReplace {
		if r.Domain == plan.Spared {
			continue
		}
		logger.Info("core/engine: %v server %v is due to be terminated, adding it to the cordon list",
			r.CustomState, r.Domain)
		plan.Retire = append(plan.Retire, r.Domain)
		retired[r.Domain] = struct{}{}
	}

	return retired
}

// spareCandidate returns the last online slot of the first non empty tag
// class, to-recycle slots being the best survivors.
func spareCandidate(toReplace []*structs.ServerRecord) *structs.ServerRecord {
	for _, tag := range []structs.CustomState{
		structs.CustomToRecycle, structs.CustomMalfunctioning, structs.CustomUnresponsive,
	} {
		var last *structs.ServerRecord
		for _, r := range toReplace {
			if r.CustomState == tag && r.Online() {
				last = r
			}
		}
		if last != nil {
			return last
		}
	}
	return nil
}

// shrink selects want slots to cordon among candidates. Slots with fewer
// meetings drain faster and are picked first within each priority class.
func shrink(candidates []*structs.ServerRecord, want int, logger *logging.Logger) []string {
	logger.Info("core/engine: reducing active servers count by %d servers", want)

	sorted := append([]*structs.ServerRecord(nil), candidates...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Meetings < sorted[j].Meetings })

	passes := []struct {
		reason string
		match  structs.Predicate
	}{
		{"has scheduled maintenances", func(r *structs.ServerRecord) bool { return len(r.Maintenances) > 0 }},
		{"is stopped", func(r *structs.ServerRecord) bool { return r.HosterState.Stopped() }},
		{"is starting", structs.InHosterState(structs.HosterStarting)},
		{"has the fewest meetings", func(*structs.ServerRecord) bool { return true }},
	}

	picked := make(map[string]struct{})
	var cordon []string

	for _, pass := range passes {
		for _, r := range sorted {
			if len(cordon) == want {
				break
			}
			if _, ok := picked[r.Domain]; ok || !pass.match(r) {
				continue
			}
			logger.Info("core/engine: adding %v server %v to the cordon list, it %v (%d meetings)",
				r.HosterState, r.Domain, pass.reason, r.Meetings)
			picked[r.Domain] = struct{}{}
			cordon = append(cordon, r.Domain)
		}
	}

	if len(cordon) < want {
		logger.Error("core/engine: only %d servers added to the cordon list although %d are required",
			len(cordon), want)
	}
	return cordon
}

// grow selects want slots to enable among the inactive ones, preferring
// capacity that is available soonest.
func grow(candidates []*structs.ServerRecord, want int, logger *logging.Logger) []string {
	logger.Info("core/engine: raising active servers count by %d servers", want)

	running := structs.InHosterState(structs.HosterRunning)
	passes := []structs.Predicate{
		func(r *structs.ServerRecord) bool { return r.Running() && !r.Tagged() },
		structs.InHosterState(structs.HosterStarting),
		structs.InHosterState(structs.HosterStoppedInPlace),
		structs.InHosterState(structs.HosterStopped),
		structs.InHosterState(structs.HosterNonexistent),
		func(r *structs.ServerRecord) bool { return running(r) && r.CustomState == structs.CustomToRecycle },
		func(r *structs.ServerRecord) bool { return running(r) && r.CustomState == structs.CustomMalfunctioning },
		structs.InHosterState(structs.HosterStopping),
	}

	picked := make(map[string]struct{})
	var enable []string

	for _, match := range passes {
		for _, r := range candidates {
			if len(enable) == want {
				break
			}
			if _, ok := picked[r.Domain]; ok || !match(r) {
				continue
			}
			logger.Info("core/engine: adding %v server %v to the enable list", r.HosterState, r.Domain)
			picked[r.Domain] = struct{}{}
			enable = append(enable, r.Domain)
		}
	}

	if len(enable) < want {
		logger.Warning("core/engine: only %d servers added to the enable list although %d are required",
			len(enable), want)
	}
	return enable
}

// swap exchanges inactive running slots with enabled starting ones, so
// meetings land on capacity that is already up. Tagged slots are never
// swapped in: they were cordoned to be drained.
func swap(s *structs.PoolSnapshot, logger *logging.Logger) (enable, cordon []string) {
	def := structs.ListOptions{}

	running := s.List(def, structs.IsRunning, structs.IsInactive, structs.Not(structs.IsTagged))
	starting := s.List(def, structs.InHosterState(structs.HosterStarting), structs.IsEnabled)

	sort.SliceStable(starting, func(i, j int) bool {
		return starting[i].HosterStateDuration > starting[j].HosterStateDuration
	})

	n := minInt(len(running), len(starting))
	if n == 0 {
		return nil, nil
	}

	logger.Info("core/engine: switching %d servers states in the load balancer", n)
	for i := 0; i < n; i++ {
		enable = append(enable, running[i].Domain)
		cordon = append(cordon, starting[i].Domain)
	}
	return enable, cordon
}

// PlanHosterActions decides the hoster actions from the snapshot updated
// with the inventory actions that succeeded. It returns the slots to submit
// to the termination gate, the slots to clone and the slots to power on.
func PlanHosterActions(post *structs.PoolSnapshot, cfg EngineConfig, logger *logging.Logger) (
	candidates []structs.TerminateCandidate, clone []string, powerOn []string) {

	def := structs.ListOptions{}
	minUptime := int64(drainedAfterCycles * cfg.RunInterval / time.Second)

	for _, r := range post.List(def, structs.IsInactive) {
		switch {
		case r.HosterState == structs.HosterNonexistent:
			continue

		case r.HosterState.Stopped():
			logger.Warning("core/engine: adding %v server %v to the terminate list", r.HosterState, r.Domain)
			candidates = append(candidates, structs.TerminateCandidate{Domain: r.Domain, Requirement: structs.GateImmediate})

		case r.HosterState == structs.HosterStopping || r.HosterState == structs.HosterStarting:
			logger.Info("core/engine: server %v is %v and %v in the load balancer, can not terminate yet (%v)",
				r.Domain, r.HosterState, r.InventoryState, uptimeString(r.HosterStateDuration))

		case r.Running() && r.CustomState == structs.CustomUnresponsive:
			logger.Warning("core/engine: adding unresponsive server %v to the terminate list", r.Domain)
			candidates = append(candidates, structs.TerminateCandidate{Domain: r.Domain, Requirement: structs.GateImmediate})

		case r.Running() && r.Online():
			if r.HosterStateDuration < minUptime {
				logger.Info("core/engine: server %v is ready for terminate but has been running for "+
					"too little time (%v), not terminating yet", r.Domain, uptimeString(r.HosterStateDuration))
				continue
			}
			candidates = append(candidates, structs.TerminateCandidate{Domain: r.Domain, Requirement: structs.GateDrained})
		}
	}

	for _, r := range post.List(def, structs.IsEnabled) {
		switch {
		case r.HosterState == structs.HosterNonexistent:
			logger.Info("core/engine: adding nonexistent server %v to the clone list", r.Domain)
			clone = append(clone, r.Domain)

		case r.HosterState.Stopped():
			logger.Info("core/engine: adding %v server %v to the power on list", r.HosterState, r.Domain)
			powerOn = append(powerOn, r.Domain)

		case r.HosterState == structs.HosterStarting:
			logger.Info("core/engine: server %v is already starting (%v)", r.Domain, uptimeString(r.HosterStateDuration))

		case r.HosterState == structs.HosterStopping:
			logger.Info("core/engine: server %v is stopping, not powering on now (%v)",
				r.Domain, uptimeString(r.HosterStateDuration))

		case r.Running() && !r.Online():
			logger.Info("core/engine: server %v is running but not yet online in the load balancer", r.Domain)
		}
	}

	return candidates, clone, powerOn
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
