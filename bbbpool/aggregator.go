package bbbpool

import (
	"context"
	"fmt"
	"time"

	metrics "github.com/armon/go-metrics"

	"github.com/bbbpool/bbbpool/bbbpool/structs"
	"github.com/bbbpool/bbbpool/logging"
)

// Aggregator merges the inventory, hoster and fleet views into the pool
// snapshot of a cycle.
type Aggregator struct {
	config    *structs.Config
	namer     *structs.SlotNamer
	inventory *InventoryProbe
	hoster    *HosterProbe
	bareMetal *BareMetalProbe
	fleet     *FleetProbe
	state     structs.StateStore
	logger    *logging.Logger
	now       func() time.Time
}

// NewAggregator wires the probes of the pool described by config.
func NewAggregator(config *structs.Config, namer *structs.SlotNamer, clients *Clients,
	logger *logging.Logger) *Aggregator {

	return &Aggregator{
		config:    config,
		namer:     namer,
		inventory: NewInventoryProbe(clients.Inventory, namer, config.Pool.Size, logger),
		hoster:    NewHosterProbe(clients.Hoster, namer, logger),
		bareMetal: NewBareMetalProbe(config.SSH.Port, config.PollMaxWorkers, logger),
		fleet:     NewFleetProbe(clients.Exec, runOptions(config), config.PollMaxWorkers, logger),
		state:     clients.State,
		logger:    logger,
		now:       time.Now,
	}
}

// Poll builds the snapshot of the pool. The host diagnostics are gathered
// only when pollTelemetry is set since they cost one SSH session per running
// slot.
func (a *Aggregator) Poll(ctx context.Context, pollTelemetry bool) (*structs.PoolSnapshot, error) {
	defer metrics.MeasureSince([]string{"aggregator", "poll"}, time.Now())

	a.logger.Info("core/aggregator: gathering data for servers")

	records, err := a.inventory.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	builder := structs.NewSnapshotBuilder(a.now())
	for _, r := range records {
		if err := builder.Add(r); err != nil {
			return nil, fmt.Errorf("%w: %v", structs.ErrInventoryMismatch, err)
		}
	}

	machines, err := a.hoster.Fetch(ctx)
	if err != nil {
		if a.config.Pool.BareMetalCount == 0 {
			return nil, err
		}
		a.logger.Error("core/aggregator: %v, continuing with bare metal servers only", err)
	}
	a.mergeMachines(builder, machines)

	a.mergeBareMetal(ctx, builder)

	if pollTelemetry {
		a.mergeTelemetry(ctx, builder)
	}

	if err := a.mergeMaintenance(ctx, builder); err != nil {
		return nil, err
	}

	builder.Each(func(r *structs.ServerRecord) {
		r.CustomState = Classify(r, a.config.Pool.MaxRecyclingUptime, a.logger)
	})

	snapshot := builder.Build()
	a.emitGauges(snapshot)

	return snapshot, nil
}

func (a *Aggregator) mergeMachines(builder *structs.SnapshotBuilder, machines map[int]structs.Machine) {
	for number, m := range machines {
		if number <= a.config.Pool.BareMetalCount {
			a.logger.Warning("core/aggregator: machine %v (%v) uses the name of bare metal slot %d, ignoring",
				m.Name, m.ID, number)
			continue
		}

		r, ok := builder.Get(a.namer.Domain(number))
		if !ok {
			a.logger.Warning("core/aggregator: machine %v (%v) has no load balancer entry, ignoring",
				m.Name, m.ID)
			continue
		}

		r.HosterID = m.ID
		r.HosterState = m.State
		r.HosterStateDuration = a.hoster.StateDuration(m)
		r.Maintenances = append([]string(nil), m.Maintenances...)
		r.PublicIP = m.PublicIP
		r.PrivateIP = m.PrivateIP
		r.ServerType = structs.VirtualMachine
	}
}

func (a *Aggregator) mergeBareMetal(ctx context.Context, builder *structs.SnapshotBuilder) {
	count := a.config.Pool.BareMetalCount
	if count == 0 {
		return
	}

	domains := make([]string, 0, count)
	for n := 1; n <= count; n++ {
		domains = append(domains, a.namer.Domain(n))
	}

	states := a.bareMetal.Probe(ctx, domains)
	for _, domain := range domains {
		r, ok := builder.Get(domain)
		if !ok {
			a.logger.Warning("core/aggregator: bare metal server %v has no load balancer entry", domain)
			continue
		}
		r.ServerType = structs.BareMetal
		r.HosterState = states[domain]
		r.HosterStateDuration = bareMetalStateDuration
	}
}

func (a *Aggregator) mergeTelemetry(ctx context.Context, builder *structs.SnapshotBuilder) {
	var targets []FleetTarget
	builder.Each(func(r *structs.ServerRecord) {
		if r.Running() {
			targets = append(targets, FleetTarget{Domain: r.Domain, Host: a.namer.FQDN(r.Number)})
		}
	})
	if len(targets) == 0 {
		return
	}

	for domain, report := range a.fleet.Probe(ctx, targets) {
		r, _ := builder.Get(domain)
		r.Uptime = report.Uptime
		r.CPUs = report.CPUs
		r.Health = report.Health
		telemetry := report.Telemetry
		r.Telemetry = &telemetry
	}
}

func (a *Aggregator) mergeMaintenance(ctx context.Context, builder *structs.SnapshotBuilder) error {
	list, err := ReadMaintenance(ctx, a.state)
	if err != nil {
		return err
	}
	if len(list.Numbers) == 0 {
		return nil
	}

	a.logger.Warning("core/aggregator: servers %v are in maintenance, ignoring them for adaptation",
		list.Numbers)

	for _, n := range list.Numbers {
		r, ok := builder.Get(a.namer.Domain(n))
		if !ok {
			a.logger.Warning("core/aggregator: maintenance entry %d matches no server", n)
			continue
		}
		r.PoolState = structs.PoolInMaintenance
	}
	return nil
}

func (a *Aggregator) emitGauges(s *structs.PoolSnapshot) {
	all := structs.ListOptions{IncludeMaintenance: true, IncludeBareMetal: true}

	metrics.SetGauge([]string{"pool", "running"}, float32(s.Count(all, structs.IsRunning)))
	metrics.SetGauge([]string{"pool", "enabled"}, float32(s.Count(all, structs.IsEnabled)))
	metrics.SetGauge([]string{"pool", "online"}, float32(s.Count(all, structs.IsOnline)))
	metrics.SetGauge([]string{"pool", "tagged"}, float32(s.Count(all, structs.IsTagged)))

	var meetings, users int
	for _, r := range s.All() {
		meetings += r.Meetings
		users += r.Users
	}
	metrics.SetGauge([]string{"pool", "meetings"}, float32(meetings))
	metrics.SetGauge([]string{"pool", "participants"}, float32(users))
}

func uptimeString(seconds int64) string {
	if seconds < 0 {
		return "unknown"
	}
	return (time.Duration(seconds) * time.Second).String()
}
