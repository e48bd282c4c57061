package bbbpool

import (
	"context"
	"fmt"

	"github.com/bbbpool/bbbpool/bbbpool/structs"
	"github.com/bbbpool/bbbpool/logging"
)

// InventoryProbe reads the load balancer inventory and turns it into the
// skeleton records of the snapshot.
type InventoryProbe struct {
	client   structs.InventoryClient
	namer    *structs.SlotNamer
	poolSize int
	logger   *logging.Logger
}

// NewInventoryProbe returns a probe expecting poolSize inventory entries.
func NewInventoryProbe(client structs.InventoryClient, namer *structs.SlotNamer,
	poolSize int, logger *logging.Logger) *InventoryProbe {
	return &InventoryProbe{client: client, namer: namer, poolSize: poolSize, logger: logger}
}

// Fetch returns one record per inventory entry keyed by domain. The meeting
// counters come from the status table; when it cannot be read they stay at
// zero and the cycle continues.
func (p *InventoryProbe) Fetch(ctx context.Context) (map[string]*structs.ServerRecord, error) {
	p.logger.Info("core/probe_inventory: polling the load balancer inventory")

	counters, err := p.statusCounters(ctx)
	if err != nil {
		return nil, err
	}

	servers, err := p.client.Servers(ctx)
	if err != nil {
		return nil, fmt.Errorf("core/probe_inventory: unable to list load balancer servers: %v", err)
	}

	if len(servers) != p.poolSize {
		return nil, fmt.Errorf("%w: servers output has %d entries, pool size is %d",
			structs.ErrInventoryMismatch, len(servers), p.poolSize)
	}

	records := make(map[string]*structs.ServerRecord, len(servers))
	for _, s := range servers {
		if _, ok := records[s.Domain]; ok {
			return nil, fmt.Errorf("%w: duplicate domain %v in servers output",
				structs.ErrInventoryMismatch, s.Domain)
		}

		number, ok := p.namer.NumberFromDomain(s.Domain)
		if !ok {
			return nil, fmt.Errorf("%w: domain %v does not match the domain template",
				structs.ErrInventoryMismatch, s.Domain)
		}

		r := &structs.ServerRecord{
			Number:          number,
			Domain:          s.Domain,
			InventoryID:     s.ID,
			Secret:          s.Secret,
			InventoryState:  s.State,
			InventoryStatus: s.Status,
			Load:            s.Load,
			LoadMultiplier:  s.LoadMultiplier,
			Uptime:          -1,
		}

		if row, ok := counters[s.Domain]; ok {
			r.Meetings = row.Meetings
			r.Users = row.Users
			r.LargestMeeting = row.LargestMeeting
			r.Videos = row.Videos
		}

		records[s.Domain] = r
	}

	p.logger.Info("core/probe_inventory: %d inventory entries match the pool size", len(records))
	return records, nil
}

// statusCounters reads the status table. A failing command only degrades
// the snapshot; a table that does not describe the pool aborts the cycle.
func (p *InventoryProbe) statusCounters(ctx context.Context) (map[string]structs.InventoryStatusRow, error) {
	rows, err := p.client.Status(ctx)
	if err != nil {
		p.logger.Warning("core/probe_inventory: unable to poll the load balancer "+
			"for meeting counters: %v", err)
		return nil, nil
	}

	if len(rows) != p.poolSize {
		return nil, fmt.Errorf("%w: status output has %d entries, pool size is %d",
			structs.ErrInventoryMismatch, len(rows), p.poolSize)
	}

	counters := make(map[string]structs.InventoryStatusRow, len(rows))
	for _, row := range rows {
		if _, ok := counters[row.Hostname]; ok {
			return nil, fmt.Errorf("%w: duplicate domain %v in status output",
				structs.ErrInventoryMismatch, row.Hostname)
		}
		counters[row.Hostname] = row
	}
	return counters, nil
}
