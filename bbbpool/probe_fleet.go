package bbbpool

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"time"

	metrics "github.com/armon/go-metrics"
	"gopkg.in/ini.v1"

	"github.com/bbbpool/bbbpool/bbbpool/structs"
	"github.com/bbbpool/bbbpool/helper"
	"github.com/bbbpool/bbbpool/logging"
)

//go:embed scripts/fleet.sh
var fleetScript []byte

const (
	fleetTries   = 3
	fleetBackoff = 5 * time.Second
)

// FleetTarget is a slot to run the diagnostics script on.
type FleetTarget struct {
	Domain string
	Host   string
}

// FleetReport is what the diagnostics script reported about one host.
type FleetReport struct {
	Uptime    int64
	CPUs      int
	Health    structs.ServiceHealth
	Telemetry structs.Telemetry
}

// FleetProbe gathers host diagnostics over SSH.
type FleetProbe struct {
	exec    structs.RemoteExecutor
	opts    structs.RunOptions
	workers int
	logger  *logging.Logger
}

// NewFleetProbe returns a probe running at most workers sessions at once.
func NewFleetProbe(exec structs.RemoteExecutor, opts structs.RunOptions, workers int, logger *logging.Logger) *FleetProbe {
	opts.MaxTries = fleetTries
	opts.Backoff = fleetBackoff
	opts.Stdin = fleetScript
	return &FleetProbe{exec: exec, opts: opts, workers: workers, logger: logger}
}

// Probe returns the reports of the hosts that answered, keyed by domain. A
// host that fails is logged and left out.
func (p *FleetProbe) Probe(ctx context.Context, targets []FleetTarget) map[string]*FleetReport {
	defer metrics.MeasureSince([]string{"probe", "fleet"}, time.Now())

	p.logger.Info("core/probe_fleet: polling %d servers", len(targets))

	results := Fanout(ctx, p.logger, targets, p.workers,
		func(ctx context.Context, t FleetTarget) (*FleetReport, error) {
			res, err := p.exec.Run(ctx, t.Host, "/bin/bash -s", p.opts)
			if err != nil {
				return nil, err
			}
			return ParseFleetOutput(res.Stdout)
		})

	reports := make(map[string]*FleetReport, len(targets))
	for i, t := range targets {
		if err := results[i].Err; err != nil {
			p.logger.Error("core/probe_fleet: can not poll server %v for stats: %v", t.Domain, err)
			metrics.IncrCounter([]string{"probe", "fleet", "failures"}, 1)
			continue
		}
		reports[t.Domain] = results[i].Value
	}
	return reports
}

// ParseFleetOutput parses the key=value lines printed by the diagnostics
// script. Load averages are converted into a percentage of the CPU count.
func ParseFleetOutput(out string) (*FleetReport, error) {
	cfg, err := ini.Load([]byte(out))
	if err != nil {
		return nil, fmt.Errorf("unable to parse diagnostics output: %v", err)
	}
	sec := cfg.Section("")

	report := &FleetReport{}

	if report.Uptime, err = sec.Key("uptime").Int64(); err != nil {
		return nil, fmt.Errorf("invalid uptime: %v", err)
	}
	if report.CPUs, err = sec.Key("cpu_count").Int(); err != nil || report.CPUs < 1 {
		return nil, fmt.Errorf("invalid cpu_count %q", sec.Key("cpu_count").String())
	}

	loads := strings.Fields(sec.Key("load_averages").String())
	if len(loads) != 3 {
		return nil, fmt.Errorf("invalid load_averages %q", sec.Key("load_averages").String())
	}
	for i, raw := range loads {
		var v float64
		if _, err := fmt.Sscanf(raw, "%g", &v); err != nil {
			return nil, fmt.Errorf("invalid load average %q", raw)
		}
		report.Telemetry.LoadAverages[i] = v / float64(report.CPUs) * 100
	}

	report.Telemetry.RxAvg1 = sec.Key("rx_avg1").MustFloat64(0)
	report.Telemetry.TxAvg1 = sec.Key("tx_avg1").MustFloat64(0)
	report.Telemetry.InternalIPv4 = helper.FindIP(sec.Key("internal_ipv4").String())
	report.Telemetry.ExternalIPv4 = helper.FindIP(sec.Key("external_ipv4").String())
	report.Telemetry.ExternalIPv6 = sec.Key("external_ipv6").String()

	if report.Health, err = structs.ParseServiceHealth(sec.Key("bbb_status").String()); err != nil {
		return nil, err
	}

	return report, nil
}
