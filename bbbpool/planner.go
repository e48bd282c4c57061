package bbbpool

import (
	"context"
	"fmt"

	"github.com/bbbpool/bbbpool/bbbpool/structs"
	"github.com/bbbpool/bbbpool/logging"
)

// Planner combines the capacity predictors selected by the capacity policy.
type Planner struct {
	policy   string
	schedule *SchedulePredictor
	load     *LoadPredictor
	logger   *logging.Logger
}

// NewPlanner returns the planner of config.
func NewPlanner(config *structs.Config, clients *Clients, logger *logging.Logger) *Planner {
	return &Planner{
		policy:   config.CapacityPolicy,
		schedule: NewSchedulePredictor(clients.Calendar, config, logger),
		load:     NewLoadPredictor(config, clients.State, logger),
		logger:   logger,
	}
}

// Target computes the capacity target of the cycle. A schedule failure is
// fatal since guessing would risk shrinking the pool under a scheduled
// event.
func (p *Planner) Target(ctx context.Context, snapshot *structs.PoolSnapshot) (structs.CapacityTarget, error) {
	p.logger.Info("core/planner: selected capacity adaptation policy: %v", p.policy)

	target := structs.CapacityTarget{Count: -1, Sources: make(map[string]int)}

	if p.policy == structs.PolicySchedule || p.policy == structs.PolicyBoth {
		count, err := p.schedule.Predict(ctx)
		if err != nil {
			return target, fmt.Errorf("core/planner: unable to evaluate the schedule: %w", err)
		}
		target.Sources[structs.PolicySchedule] = count
	}

	if p.policy == structs.PolicyLoad || p.policy == structs.PolicyBoth {
		target.Sources[structs.PolicyLoad] = p.load.Predict(ctx, snapshot)
	}

	switch p.policy {
	case structs.PolicySchedule, structs.PolicyLoad:
		target.Count = target.Sources[p.policy]
	case structs.PolicyBoth:
		target.Count = CombineTargets(target.Sources[structs.PolicySchedule], target.Sources[structs.PolicyLoad])
	default:
		return target, fmt.Errorf("core/planner: unknown capacity policy %q", p.policy)
	}

	p.logger.Info("core/planner: next active servers count is %d %v", target.Count, target.Sources)
	return target, nil
}

// CombineTargets keeps the largest prediction.
func CombineTargets(counts ...int) int {
	max := -1
	for _, c := range counts {
		if c > max {
			max = c
		}
	}
	return max
}
