package structs

import (
	"fmt"
	"sort"
	"time"
)

// PoolSnapshot is the immutable view of the pool produced once per cycle.
// Records returned by its accessors are copies; mutating them has no effect
// on the snapshot.
type PoolSnapshot struct {
	takenAt time.Time
	records map[string]*ServerRecord
	order   []string
}

// Predicate selects records in a listing.
type Predicate func(*ServerRecord) bool

// ListOptions widen the default listing, which excludes slots in
// maintenance and bare metal slots.
type ListOptions struct {
	IncludeMaintenance bool
	IncludeBareMetal   bool
}

// SnapshotBuilder assembles a PoolSnapshot. It is not safe for concurrent
// use and can be built only once.
type SnapshotBuilder struct {
	takenAt time.Time
	records map[string]*ServerRecord
	built   bool
}

// NewSnapshotBuilder returns an empty builder stamped with takenAt.
func NewSnapshotBuilder(takenAt time.Time) *SnapshotBuilder {
	return &SnapshotBuilder{
		takenAt: takenAt,
		records: make(map[string]*ServerRecord),
	}
}

// Add inserts a new record. Adding a domain twice is an error.
func (b *SnapshotBuilder) Add(r *ServerRecord) error {
	if _, ok := b.records[r.Domain]; ok {
		return fmt.Errorf("duplicate domain %v", r.Domain)
	}
	b.records[r.Domain] = r
	return nil
}

// Get returns the mutable record under construction.
func (b *SnapshotBuilder) Get(domain string) (*ServerRecord, bool) {
	r, ok := b.records[domain]
	return r, ok
}

// Each calls fn on every record in slot number order.
func (b *SnapshotBuilder) Each(fn func(*ServerRecord)) {
	for _, domain := range sortedDomains(b.records) {
		fn(b.records[domain])
	}
}

// Len returns the number of records added.
func (b *SnapshotBuilder) Len() int {
	return len(b.records)
}

// Build freezes the records into a snapshot.
func (b *SnapshotBuilder) Build() *PoolSnapshot {
	if b.built {
		panic("structs: snapshot builder reused")
	}
	b.built = true
	return &PoolSnapshot{
		takenAt: b.takenAt,
		records: b.records,
		order:   sortedDomains(b.records),
	}
}

func sortedDomains(records map[string]*ServerRecord) []string {
	order := make([]string, 0, len(records))
	for domain := range records {
		order = append(order, domain)
	}
	sort.Slice(order, func(i, j int) bool {
		a, b := records[order[i]], records[order[j]]
		if a.Number != b.Number {
			return a.Number < b.Number
		}
		return a.Domain < b.Domain
	})
	return order
}

// TakenAt returns the time the snapshot was built from.
func (s *PoolSnapshot) TakenAt() time.Time {
	return s.takenAt
}

// Len returns the number of slots in the snapshot.
func (s *PoolSnapshot) Len() int {
	return len(s.order)
}

// Get returns a copy of the record for domain.
func (s *PoolSnapshot) Get(domain string) (*ServerRecord, bool) {
	r, ok := s.records[domain]
	if !ok {
		return nil, false
	}
	return r.Copy(), true
}

// Domains returns every domain in slot number order.
func (s *PoolSnapshot) Domains() []string {
	return append([]string(nil), s.order...)
}

// All returns copies of every record in slot number order.
func (s *PoolSnapshot) All() []*ServerRecord {
	return s.List(ListOptions{IncludeMaintenance: true, IncludeBareMetal: true})
}

// List returns copies of the records matching every predicate, in slot
// number order.
func (s *PoolSnapshot) List(opts ListOptions, preds ...Predicate) []*ServerRecord {
	var out []*ServerRecord

OUTER:
	for _, domain := range s.order {
		r := s.records[domain]
		if !opts.IncludeMaintenance && r.InMaintenance() {
			continue
		}
		if !opts.IncludeBareMetal && r.IsBareMetal() {
			continue
		}
		for _, p := range preds {
			if !p(r) {
				continue OUTER
			}
		}
		out = append(out, r.Copy())
	}
	return out
}

// Count returns the number of records List would return.
func (s *PoolSnapshot) Count(opts ListOptions, preds ...Predicate) int {
	return len(s.List(opts, preds...))
}

// WithInventoryStates returns a new snapshot where the given domains carry
// the given inventory state. Unknown domains are ignored.
func (s *PoolSnapshot) WithInventoryStates(states map[string]InventoryState) *PoolSnapshot {
	records := make(map[string]*ServerRecord, len(s.records))
	for domain, r := range s.records {
		if state, ok := states[domain]; ok && state != r.InventoryState {
			c := r.Copy()
			c.InventoryState = state
			records[domain] = c
			continue
		}
		records[domain] = r
	}
	return &PoolSnapshot{
		takenAt: s.takenAt,
		records: records,
		order:   s.order,
	}
}

// Common predicates.
var (
	IsRunning Predicate = func(r *ServerRecord) bool { return r.Running() }
	IsEnabled Predicate = func(r *ServerRecord) bool { return r.Enabled() }
	IsOnline  Predicate = func(r *ServerRecord) bool { return r.Online() }
	IsTagged  Predicate = func(r *ServerRecord) bool { return r.Tagged() }

	// IsInactive selects slots the load balancer does not dispatch to.
	IsInactive Predicate = func(r *ServerRecord) bool {
		return r.InventoryState == InventoryCordoned || r.InventoryState == InventoryDisabled
	}
)

// InHosterState selects records in any of the given hoster states.
func InHosterState(states ...HosterState) Predicate {
	return func(r *ServerRecord) bool {
		for _, s := range states {
			if r.HosterState == s {
				return true
			}
		}
		return false
	}
}

// WithCustomState selects records carrying any of the given tags.
func WithCustomState(states ...CustomState) Predicate {
	return func(r *ServerRecord) bool {
		for _, s := range states {
			if r.CustomState == s {
				return true
			}
		}
		return false
	}
}

// Not negates a predicate.
func Not(p Predicate) Predicate {
	return func(r *ServerRecord) bool { return !p(r) }
}

// Domains extracts the domains of records, preserving order.
func Domains(records []*ServerRecord) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.Domain)
	}
	return out
}
