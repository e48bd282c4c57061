package bbbpool

import (
	"context"
	"sort"

	"github.com/bbbpool/bbbpool/bbbpool/structs"
	"github.com/bbbpool/bbbpool/logging"
)

// HosterValidity is the result of comparing the hoster machines with the
// pool slots and their DNS entries.
type HosterValidity struct {
	Machines int

	// Missing holds the virtual machine slots without a machine.
	Missing []int

	// DNSMismatch holds the slots whose domain does not resolve to the
	// public address of their machine.
	DNSMismatch []int
}

// OK reports whether no problem was found.
func (v *HosterValidity) OK() bool {
	return len(v.Missing) == 0 && len(v.DNSMismatch) == 0
}

// PoolValidity is the result of checking the polled pool.
type PoolValidity struct {
	Size      int
	Count     int
	Enabled   int
	UniqueIPs int

	// Missing holds the domains of slots absent from the load balancer.
	Missing []string

	// DNSMismatch holds the slots whose domain does not resolve to the
	// address the host itself reports.
	DNSMismatch []int
}

// OK reports whether no problem was found.
func (v *PoolValidity) OK() bool {
	return v.Count == v.UniqueIPs && len(v.Missing) == 0 && len(v.DNSMismatch) == 0
}

// Checker runs the consistency checks of the check command.
type Checker struct {
	config     *structs.Config
	namer      *structs.SlotNamer
	hoster     *HosterProbe
	aggregator *Aggregator
	resolver   Resolver
	logger     *logging.Logger
}

// NewChecker returns a checker of the pool described by config.
func NewChecker(config *structs.Config, clients *Clients, logger *logging.Logger) (*Checker, error) {
	namer, err := config.Namer()
	if err != nil {
		return nil, err
	}

	return &Checker{
		config:     config,
		namer:      namer,
		hoster:     NewHosterProbe(clients.Hoster, namer, logger),
		aggregator: NewAggregator(config, namer, clients, logger),
		resolver:   clients.Resolver,
		logger:     logger,
	}, nil
}

// Hoster lists the missing machines and the DNS entries that do not match
// the machine addresses.
func (c *Checker) Hoster(ctx context.Context) (*HosterValidity, error) {
	machines, err := c.hoster.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	v := &HosterValidity{Machines: len(machines)}
	for n := c.config.Pool.BareMetalCount + 1; n <= c.config.Pool.Size; n++ {
		m, ok := machines[n]
		if !ok {
			v.Missing = append(v.Missing, n)
			continue
		}
		if !c.resolvesTo(ctx, c.namer.Domain(n), m.PublicIP) {
			v.DNSMismatch = append(v.DNSMismatch, n)
		}
	}
	return v, nil
}

// Pool polls the pool with host diagnostics and checks the addresses the
// hosts report.
func (c *Checker) Pool(ctx context.Context) (*PoolValidity, error) {
	snapshot, err := c.aggregator.Poll(ctx, true)
	if err != nil {
		return nil, err
	}

	all := snapshot.All()
	v := &PoolValidity{
		Size:    c.config.Pool.Size,
		Count:   len(all),
		Enabled: snapshot.Count(structs.ListOptions{IncludeMaintenance: true, IncludeBareMetal: true},
			structs.IsEnabled),
	}

	ips := make(map[string]struct{})
	known := make(map[string]struct{}, len(all))
	for _, r := range all {
		known[r.Domain] = struct{}{}

		ip := r.HostIPv4()
		ips[ip] = struct{}{}
		if !c.resolvesTo(ctx, r.Domain, ip) {
			v.DNSMismatch = append(v.DNSMismatch, r.Number)
		}
	}
	v.UniqueIPs = len(ips)

	for n := 1; n <= c.config.Pool.Size; n++ {
		if _, ok := known[c.namer.Domain(n)]; !ok {
			v.Missing = append(v.Missing, c.namer.Domain(n))
		}
	}

	sort.Ints(v.DNSMismatch)
	return v, nil
}

func (c *Checker) resolvesTo(ctx context.Context, domain, ip string) bool {
	if ip == "" {
		return false
	}
	resolved, err := c.resolver.LookupIPv4(ctx, domain)
	if err != nil {
		c.logger.Debug("core/check: unable to resolve %v: %v", domain, err)
		return false
	}
	return resolved == ip
}
