package bbbpool

import (
	"context"
	"fmt"
	"sync"
	"time"

	metrics "github.com/armon/go-metrics"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/bbbpool/bbbpool/bbbpool/structs"
	"github.com/bbbpool/bbbpool/client"
	"github.com/bbbpool/bbbpool/logging"
	"github.com/bbbpool/bbbpool/notifier"
	"github.com/bbbpool/bbbpool/report"
)

// finishTimeout bounds the alert notification and report publication of a
// cycle.
const finishTimeout = 30 * time.Second

// Runner is the main runner struct.
type Runner struct {
	// doneChan is where finish notifications occur.
	doneChan chan struct{}

	// config is the Config that created this Runner. It is used internally to
	// construct other objects and pass data.
	config *structs.Config

	logger  *logging.Logger
	clients *Clients
	engine  EngineConfig

	aggregator *Aggregator
	planner    *Planner
	gate       *TerminationGate
	dispatcher *Dispatcher
	alerter    *Alerter
	publisher  report.Publisher
	leader     *LeaderCandidate

	now func() time.Time
}

// NewRunner sets up the Runner type with the production clients.
func NewRunner(config *structs.Config, logger *logging.Logger) (*Runner, error) {
	clients, err := NewClients(config, logger)
	if err != nil {
		return nil, err
	}

	notifiers, err := notifier.NewProviders(config.Notification)
	if err != nil {
		return nil, err
	}

	runner, err := NewRunnerWithClients(config, clients, notifiers, report.NewPublisher(config.Report), logger)
	if err != nil {
		return nil, err
	}

	if config.LeaderLock {
		locker, ok := clients.State.(*client.ConsulStore)
		if !ok {
			locker, err = client.NewConsulStore(config.State.ConsulAddress, config.State.ConsulToken,
				config.State.ConsulKeyRoot, logger)
			if err != nil {
				return nil, err
			}
		}
		runner.leader = newLeaderCandidate(locker, leaderLockTTL, logger)
	}

	return runner, nil
}

// NewRunnerWithClients sets up a Runner on top of existing clients.
func NewRunnerWithClients(config *structs.Config, clients *Clients, notifiers []notifier.Notifier,
	publisher report.Publisher, logger *logging.Logger) (*Runner, error) {

	namer, err := config.Namer()
	if err != nil {
		return nil, err
	}

	return &Runner{
		doneChan:   make(chan struct{}),
		config:     config,
		logger:     logger,
		clients:    clients,
		engine:     NewEngineConfig(config),
		aggregator: NewAggregator(config, namer, clients, logger),
		planner:    NewPlanner(config, clients, logger),
		gate:       NewTerminationGate(config, namer, clients, logger),
		dispatcher: NewDispatcher(config, namer, clients, logger),
		alerter:    NewAlerter(config, notifiers, clients.State, logger),
		publisher:  publisher,
		now:        time.Now,
	}, nil
}

// Start schedules a cycle every run interval and blocks until the doneChan
// is closed. A cycle still running when the next one is due delays it.
func (r *Runner) Start() {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{r.logger})))

	spec := fmt.Sprintf("@every %v", r.config.RunIntervalDuration())
	id, err := c.AddFunc(spec, r.scheduledCycle)
	if err != nil {
		r.logger.Error("core/runner: unable to schedule cycles: %v", err)
		return
	}

	r.logger.Info("core/runner: running a cycle every %v", r.config.RunIntervalDuration())
	c.Start()

	// The first cycle does not wait for the interval.
	var first sync.WaitGroup
	first.Add(1)
	go func() {
		defer first.Done()
		c.Entry(id).WrappedJob.Run()
	}()

	<-r.doneChan

	// Wait for a running cycle to finish.
	<-c.Stop().Done()
	first.Wait()

	if r.leader != nil {
		r.leader.endCampaign()
	}
}

// Stop halts the execution of this runner.
func (r *Runner) Stop() {
	close(r.doneChan)
}

// Close releases the report sink.
func (r *Runner) Close() error {
	if r.publisher != nil {
		return r.publisher.Close()
	}
	return nil
}

func (r *Runner) scheduledCycle() {
	if r.leader != nil && !r.leader.leaderElection() {
		r.logger.Debug("core/runner: bbbpool is not running on the leader, no cycle will be run")
		return
	}

	// A cycle never outlives the next one.
	ctx, cancel := context.WithTimeout(context.Background(), 2*r.config.RunIntervalDuration())
	defer cancel()

	if _, err := r.RunCycle(ctx); err != nil {
		metrics.IncrCounter([]string{"runner", "cycle", "failures"}, 1)
	}
}

// RunCycle polls the pool, plans the capacity and applies the plan unless
// dry run or failsafe mode forbid it. The returned report is filled even
// when an error aborted the cycle.
func (r *Runner) RunCycle(ctx context.Context) (rep *structs.CycleReport, err error) {
	start := r.now()
	rep = &structs.CycleReport{
		ID:        uuid.New().String(),
		Project:   r.config.Project,
		StartedAt: start,
		DryRun:    r.config.DryRun,
		Applied:   make(map[string][]string),
	}

	defer metrics.MeasureSince([]string{"runner", "cycle"}, start)
	defer func() { r.finish(rep, err) }()

	r.logger.Info("core/runner: starting cycle %v", rep.ID)

	failsafe, err := ReadFailsafeState(ctx, r.clients.State)
	if err != nil {
		return rep, err
	}

	snapshot, err := r.aggregator.Poll(ctx, true)
	if err != nil {
		return rep, err
	}
	rep.Stats = snapshot.Stats()

	target, err := r.planner.Target(ctx, snapshot)
	if err != nil {
		return rep, err
	}

	plan := Reconcile(snapshot, target, r.engine, r.logger)
	rep.Plan = plan

	if failsafe.Enabled || r.config.DryRun {
		rep.Failsafe = failsafe.Enabled
		if failsafe.Enabled {
			r.logger.Warning("core/runner: bbbpool is in failsafe mode (%v), no action will be taken",
				failsafe.Reason)
		} else {
			r.logger.Info("core/runner: dry run, no action will be taken")
		}
		r.preview(snapshot, plan)
		return rep, nil
	}

	post := r.applyInventory(ctx, snapshot, plan, rep)

	candidates, clone, powerOn := PlanHosterActions(post, r.engine, r.logger)
	plan.TerminateCandidates, plan.Clone, plan.PowerOn = candidates, clone, powerOn
	plan.Terminate = r.gate.Evaluate(ctx, post, candidates)

	rep.Applied["terminate"] = r.dispatcher.Hoster(ctx, post, structs.ActionTerminate, plan.Terminate)
	rep.Applied["clone"] = r.dispatcher.Clone(ctx, clone)
	rep.Applied["poweron"] = r.dispatcher.Hoster(ctx, post, structs.ActionPowerOn, powerOn)

	r.trackCloneFailures(ctx, failsafe, len(clone), len(rep.Applied["clone"]))

	return rep, nil
}

// applyInventory runs the inventory actions of the plan and returns the
// snapshot updated with those that succeeded. Retired slots are cordoned
// first and new capacity is enabled before any further cordon.
func (r *Runner) applyInventory(ctx context.Context, snapshot *structs.PoolSnapshot,
	plan *structs.ReconciliationPlan, rep *structs.CycleReport) *structs.PoolSnapshot {

	retired := r.dispatcher.Inventory(ctx, snapshot, InventoryCordon, plan.Retire)
	enabled := r.dispatcher.Inventory(ctx, snapshot, InventoryEnable, plan.Enable)
	cordoned := r.dispatcher.Inventory(ctx, snapshot, InventoryCordon, plan.Cordon)

	if plan.Delta == 0 && len(plan.Enable) > 0 && len(enabled) != len(cordoned) {
		r.logger.Warning("core/runner: load balancer switch states success counts do not match "+
			"(%d enabled, %d cordoned)", len(enabled), len(cordoned))
	}

	rep.Applied["retire"] = retired
	rep.Applied["enable"] = enabled
	rep.Applied["cordon"] = cordoned

	states := make(map[string]structs.InventoryState)
	for _, d := range retired {
		states[d] = structs.InventoryCordoned
	}
	for _, d := range cordoned {
		states[d] = structs.InventoryCordoned
	}
	for _, d := range enabled {
		states[d] = structs.InventoryEnabled
	}
	return snapshot.WithInventoryStates(states)
}

// preview completes the plan as if every inventory action succeeded,
// without submitting slots to the termination gate.
func (r *Runner) preview(snapshot *structs.PoolSnapshot, plan *structs.ReconciliationPlan) {
	cordon, enable := plan.InventoryActions()

	states := make(map[string]structs.InventoryState)
	for _, d := range cordon {
		states[d] = structs.InventoryCordoned
	}
	for _, d := range enable {
		states[d] = structs.InventoryEnabled
	}

	plan.TerminateCandidates, plan.Clone, plan.PowerOn =
		PlanHosterActions(snapshot.WithInventoryStates(states), r.engine, r.logger)
}

// trackCloneFailures counts the cycles in a row where a clone failed and
// trips the failsafe once the threshold is reached.
func (r *Runner) trackCloneFailures(ctx context.Context, state *structs.FailsafeState, requested, cloned int) {
	if requested == 0 {
		return
	}

	if cloned < requested {
		state.ConsecutiveFailures++
		r.logger.Warning("core/runner: %d of %d clones failed, %d consecutive cycles with clone failures",
			requested-cloned, requested, state.ConsecutiveFailures)
	} else {
		state.ConsecutiveFailures = 0
	}

	if !FailsafeCheck(ctx, r.clients.State, state, r.config.FailsafeThreshold, r.logger) {
		return
	}

	state.LastUpdated = r.now()
	if err := r.clients.State.PersistState(ctx, structs.StateKeyFailsafe, state); err != nil {
		r.logger.Error("core/runner: unable to persist the failsafe state: %v", err)
	}
}

// finish reports the cycle and notifies the alerts it raised. It does not
// share the cycle context so a cycle that timed out is still reported.
func (r *Runner) finish(rep *structs.CycleReport, err error) {
	rep.Duration = r.now().Sub(rep.StartedAt)

	ctx, cancel := context.WithTimeout(context.Background(), finishTimeout)
	defer cancel()

	if err != nil {
		rep.Error = err.Error()
		r.logger.Error("core/runner: cycle %v failed: %v", rep.ID, err)
	} else {
		r.logger.Info("core/runner: cycle %v completed in %v", rep.ID, rep.Duration.Round(time.Millisecond))
	}

	r.alerter.Flush(ctx, r.logger.Alerts().Drain())

	if r.publisher != nil {
		if err := r.publisher.Publish(ctx, rep); err != nil {
			r.logger.Warning("core/runner: %v", err)
		}
	}
}

// cronLogger routes the scheduler messages to the application logger.
type cronLogger struct {
	logger *logging.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.logger.Debug("core/runner: %v %v", msg, keysAndValues)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.logger.Error("core/runner: %v: %v %v", msg, err, keysAndValues)
}
