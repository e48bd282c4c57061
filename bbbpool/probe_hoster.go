package bbbpool

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	metrics "github.com/armon/go-metrics"

	"github.com/bbbpool/bbbpool/bbbpool/structs"
	"github.com/bbbpool/bbbpool/logging"
)

const (
	hosterTries   = 3
	hosterBackoff = 30 * time.Second

	// bareMetalStateDuration is the state duration reported for bare metal
	// slots, which have no hoster history.
	bareMetalStateDuration = 600

	bareMetalDialTimeout = time.Second
)

// HosterProbe lists the machines of the pool at the hoster.
type HosterProbe struct {
	provider structs.HosterProvider
	namer    *structs.SlotNamer
	logger   *logging.Logger

	backoff time.Duration
	now     func() time.Time
}

// NewHosterProbe returns a probe listing machines through provider.
func NewHosterProbe(provider structs.HosterProvider, namer *structs.SlotNamer, logger *logging.Logger) *HosterProbe {
	return &HosterProbe{
		provider: provider,
		namer:    namer,
		logger:   logger,
		backoff:  hosterBackoff,
		now:      time.Now,
	}
}

// Fetch returns the machines of the pool keyed by slot number. The listing
// is tried three times before the hoster is declared unavailable.
func (p *HosterProbe) Fetch(ctx context.Context) (map[int]structs.Machine, error) {
	defer metrics.MeasureSince([]string{"probe", "hoster"}, time.Now())

	pattern := p.namer.HostnamePattern()
	p.logger.Info("core/probe_hoster: listing %v machines matching %q", p.provider.Name(), pattern)

	var (
		machines []structs.Machine
		err      error
	)

	for try := 1; try <= hosterTries; try++ {
		if machines, err = p.provider.ListMachines(ctx, pattern); err == nil {
			break
		}

		p.logger.Warning("core/probe_hoster: hoster listing failed (try %d/%d): %v",
			try, hosterTries, err)

		if try == hosterTries {
			return nil, fmt.Errorf("%w: %v", structs.ErrHosterUnavailable, err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(p.backoff):
		}
	}

	out := make(map[int]structs.Machine, len(machines))
	for _, m := range machines {
		number, ok := p.namer.NumberFromHostname(m.Name)
		if !ok {
			p.logger.Debug("core/probe_hoster: ignoring machine %v outside the pool", m.Name)
			continue
		}
		if prev, ok := out[number]; ok {
			p.logger.Warning("core/probe_hoster: machines %v and %v both claim slot %d, keeping %v",
				prev.ID, m.ID, number, prev.ID)
			continue
		}
		out[number] = m
	}

	return out, nil
}

// StateDuration returns the number of seconds the machine has been in its
// current state.
func (p *HosterProbe) StateDuration(m structs.Machine) int64 {
	if m.ModifiedAt.IsZero() {
		return 0
	}
	return int64(p.now().Sub(m.ModifiedAt) / time.Second)
}

// BareMetalProbe checks the reachability of bare metal slots on their SSH
// port.
type BareMetalProbe struct {
	port    string
	workers int
	logger  *logging.Logger
	dial    func(ctx context.Context, addr string) error
}

// NewBareMetalProbe returns a probe dialing port on each bare metal domain.
func NewBareMetalProbe(port, workers int, logger *logging.Logger) *BareMetalProbe {
	return &BareMetalProbe{
		port:    strconv.Itoa(port),
		workers: workers,
		logger:  logger,
		dial: func(ctx context.Context, addr string) error {
			d := net.Dialer{Timeout: bareMetalDialTimeout}
			conn, err := d.DialContext(ctx, "tcp", addr)
			if err != nil {
				return err
			}
			return conn.Close()
		},
	}
}

// Probe returns the hoster state of every domain, running when the SSH port
// answers and unreachable otherwise.
func (p *BareMetalProbe) Probe(ctx context.Context, domains []string) map[string]structs.HosterState {
	results := Fanout(ctx, p.logger, domains, p.workers,
		func(ctx context.Context, domain string) (structs.HosterState, error) {
			if err := p.dial(ctx, net.JoinHostPort(domain, p.port)); err != nil {
				return structs.HosterUnreachable, err
			}
			return structs.HosterRunning, nil
		})

	states := make(map[string]structs.HosterState, len(domains))
	for i, domain := range domains {
		if err := results[i].Err; err != nil {
			p.logger.Error("core/probe_hoster: bare metal server %v is unreachable: %v", domain, err)
			states[domain] = structs.HosterUnreachable
			continue
		}
		states[domain] = results[i].Value
	}
	return states
}
