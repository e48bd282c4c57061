package bbbpool

import (
	"context"
	"time"

	metrics "github.com/armon/go-metrics"

	"github.com/bbbpool/bbbpool/bbbpool/structs"
)

const (
	restartCommand = "bbb-conf --restart"
	restartTries   = 3
	restartTimeout = 90 * time.Second
)

// RestartUnhealthy restarts the conferencing service of every running slot
// whose diagnostics reported it KO, and returns the restarted domains.
func (r *Runner) RestartUnhealthy(ctx context.Context) ([]string, error) {
	snapshot, err := r.aggregator.Poll(ctx, true)
	if err != nil {
		return nil, err
	}

	namer, err := r.config.Namer()
	if err != nil {
		return nil, err
	}

	ko := snapshot.List(structs.ListOptions{IncludeMaintenance: true, IncludeBareMetal: true},
		structs.IsRunning, func(s *structs.ServerRecord) bool { return s.Health == structs.HealthKO })
	if len(ko) == 0 {
		r.logger.Info("core/restart: no server needs a restart")
		return nil, nil
	}

	opts := runOptions(r.config)
	opts.MaxTries = restartTries
	opts.Timeout = restartTimeout

	results := Fanout(ctx, r.logger, ko, r.config.ActionMaxWorkers,
		func(ctx context.Context, s *structs.ServerRecord) (structs.RunResult, error) {
			r.logger.Info("core/restart: restarting the conferencing service of %v", s.Domain)
			return r.clients.Exec.Run(ctx, namer.FQDN(s.Number), restartCommand, opts)
		})

	var restarted []string
	for i, s := range ko {
		if err := results[i].Err; err != nil {
			r.logger.Error("core/restart: can not restart the conferencing service of %v: %v", s.Domain, err)
			continue
		}
		restarted = append(restarted, s.Domain)
	}

	metrics.IncrCounter([]string{"restart", "servers"}, float32(len(restarted)))
	return restarted, nil
}
