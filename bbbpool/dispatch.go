package bbbpool

import (
	"context"
	"fmt"
	"time"

	metrics "github.com/armon/go-metrics"

	"github.com/bbbpool/bbbpool/bbbpool/structs"
	"github.com/bbbpool/bbbpool/helper"
	"github.com/bbbpool/bbbpool/logging"
)

const (
	actionTries   = 3
	actionBackoff = time.Second
)

// Inventory actions.
const (
	InventoryEnable = "enable"
	InventoryCordon = "cordon"
)

// Dispatcher applies plan actions to the load balancer and the hoster. Each
// action is retried on its own; a failing domain never stops the others.
type Dispatcher struct {
	inventory structs.InventoryClient
	hoster    structs.HosterProvider
	resolver  Resolver
	namer     *structs.SlotNamer
	clone     *structs.Clone
	workers   int
	cloners   int
	logger    *logging.Logger
	backoff   time.Duration
}

// NewDispatcher returns the dispatcher of the pool described by config.
func NewDispatcher(config *structs.Config, namer *structs.SlotNamer, clients *Clients,
	logger *logging.Logger) *Dispatcher {
	return &Dispatcher{
		inventory: clients.Inventory,
		hoster:    clients.Hoster,
		resolver:  clients.Resolver,
		namer:     namer,
		clone:     config.Clone,
		workers:   config.ActionMaxWorkers,
		cloners:   config.CloneMaxWorkers,
		logger:    logger,
		backoff:   actionBackoff,
	}
}

// Inventory enables or cordons domains in the load balancer and returns
// those that succeeded.
func (d *Dispatcher) Inventory(ctx context.Context, snapshot *structs.PoolSnapshot,
	action string, domains []string) []string {

	if len(domains) == 0 {
		return nil
	}

	var fn func(context.Context, string) error
	switch action {
	case InventoryEnable:
		fn = d.inventory.Enable
	case InventoryCordon:
		fn = d.inventory.Cordon
	default:
		d.logger.Error("core/dispatch: unknown inventory action %v", action)
		return nil
	}

	d.logger.Info("core/dispatch: %v servers %v in the load balancer", action, domains)

	results := Fanout(ctx, d.logger, domains, d.workers,
		func(ctx context.Context, domain string) (struct{}, error) {
			r, ok := snapshot.Get(domain)
			if !ok || r.InventoryID == "" {
				return struct{}{}, fmt.Errorf("no load balancer id for %v", domain)
			}
			return struct{}{}, d.retry(ctx, func() error { return fn(ctx, r.InventoryID) })
		})

	return collect(d, "inventory", action, domains, results)
}

// Hoster requests a lifecycle transition of the machines of domains and
// returns those that succeeded.
func (d *Dispatcher) Hoster(ctx context.Context, snapshot *structs.PoolSnapshot,
	action structs.MachineAction, domains []string) []string {

	if len(domains) == 0 {
		return nil
	}

	d.logger.Info("core/dispatch: %v servers %v at the hoster", action, domains)

	results := Fanout(ctx, d.logger, domains, d.workers,
		func(ctx context.Context, domain string) (struct{}, error) {
			r, ok := snapshot.Get(domain)
			if !ok || r.HosterID == "" {
				return struct{}{}, fmt.Errorf("no hoster id for %v", domain)
			}
			return struct{}{}, d.retry(ctx, func() error {
				return d.hoster.SetMachineState(ctx, r.HosterID, action)
			})
		})

	return collect(d, "hoster", action.String(), domains, results)
}

// Clone creates, addresses and starts a machine for each domain and
// returns the domains that were cloned.
func (d *Dispatcher) Clone(ctx context.Context, domains []string) []string {
	if len(domains) == 0 {
		return nil
	}

	d.logger.Info("core/dispatch: cloning servers %v", domains)

	image, err := d.hoster.FindImage(ctx, d.clone.ImageName)
	if err != nil {
		d.logger.Error("core/dispatch: unable to find image %v, no server cloned: %v",
			d.clone.ImageName, err)
		metrics.IncrCounter([]string{"dispatch", "clone", "failures"}, float32(len(domains)))
		return nil
	}

	results := Fanout(ctx, d.logger, domains, d.cloners,
		func(ctx context.Context, domain string) (string, error) {
			return d.cloneOne(ctx, domain, image)
		})

	return collect(d, "hoster", "clone", domains, results)
}

func (d *Dispatcher) cloneOne(ctx context.Context, domain, image string) (string, error) {
	number, ok := d.namer.NumberFromDomain(domain)
	if !ok {
		return "", fmt.Errorf("%v does not match the domain template", domain)
	}

	ip, err := d.resolver.LookupIPv4(ctx, domain)
	if err != nil {
		return "", fmt.Errorf("unable to resolve %v: %v", domain, err)
	}

	addressID, err := d.hoster.GetAddress(ctx, ip)
	if err != nil {
		return "", fmt.Errorf("unable to find the reserved address %v: %v", ip, err)
	}

	spec := structs.MachineSpec{
		Name:           d.namer.Hostname(number),
		Image:          image,
		CommercialType: d.clone.CommercialType,
		EnableIPv6:     d.clone.EnableIPv6,
	}

	var id string
	err = d.retry(ctx, func() error {
		var err error
		id, err = d.hoster.CreateMachine(ctx, spec)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("unable to create machine %v: %v", spec.Name, err)
	}
	d.logger.Info("core/dispatch: created machine %v (%v) for %v", spec.Name, id, domain)

	if err := d.retry(ctx, func() error { return d.hoster.AttachAddress(ctx, addressID, id) }); err != nil {
		return id, fmt.Errorf("unable to attach address %v to machine %v: %v", ip, id, err)
	}

	if err := d.retry(ctx, func() error {
		return d.hoster.SetMachineState(ctx, id, structs.ActionPowerOn)
	}); err != nil {
		return id, fmt.Errorf("unable to power on machine %v: %v", id, err)
	}

	return id, nil
}

// retry calls fn until it succeeds or the tries are exhausted.
func (d *Dispatcher) retry(ctx context.Context, fn func() error) error {
	var err error
	for try := 1; try <= actionTries; try++ {
		if err = fn(); err == nil {
			return nil
		}
		if try == actionTries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d.backoff):
		}
	}
	return err
}

func collect[O any](d *Dispatcher, target, action string, domains []string, results []Result[O]) []string {
	for i, r := range results {
		if r.Err != nil {
			d.logger.Error("core/dispatch: %v %v on %v failed: %v", target, action, domains[i], r.Err)
		}
	}

	succeeded := Succeeded(domains, results)
	metrics.IncrCounterWithLabels([]string{"dispatch", "actions"}, float32(len(succeeded)),
		[]metrics.Label{{Name: "target", Value: target}, {Name: "action", Value: action}})

	if failed := helper.Difference(domains, succeeded); len(failed) > 0 {
		d.logger.Warning("core/dispatch: some servers could not %v: %v", action, failed)
		metrics.IncrCounterWithLabels([]string{"dispatch", "failures"}, float32(len(failed)),
			[]metrics.Label{{Name: "target", Value: target}, {Name: "action", Value: action}})
	}
	return succeeded
}
