package bbbpool

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/bbbpool/bbbpool/bbbpool/structs"
)

// StatusGroup lists the slots sharing a state.
type StatusGroup struct {
	State   string
	Numbers []int
}

func (g StatusGroup) String() string {
	numbers := make([]string, 0, len(g.Numbers))
	for _, n := range g.Numbers {
		numbers = append(numbers, strconv.Itoa(n))
	}
	return fmt.Sprintf("* %s: %d [%s]", g.State, len(g.Numbers), strings.Join(numbers, ","))
}

// StatusSection groups the slots by one dimension of their state.
type StatusSection struct {
	Title  string
	Groups []StatusGroup
}

// PoolStatus returns the slot numbers of the snapshot by hoster state,
// inventory status and state, and maintenance. Every known state is
// listed, even when empty.
func PoolStatus(s *structs.PoolSnapshot) []StatusSection {
	all := s.All()

	group := func(state string, pred structs.Predicate) StatusGroup {
		g := StatusGroup{State: state, Numbers: []int{}}
		for _, r := range all {
			if pred(r) {
				g.Numbers = append(g.Numbers, r.Number)
			}
		}
		return g
	}

	hoster := StatusSection{Title: "Hoster"}
	for _, state := range []structs.HosterState{
		structs.HosterRunning, structs.HosterStopped, structs.HosterStoppedInPlace,
		structs.HosterStarting, structs.HosterStopping, structs.HosterLocked,
		structs.HosterUnreachable, structs.HosterNonexistent,
	} {
		hoster.Groups = append(hoster.Groups, group(state.String(), structs.InHosterState(state)))
	}

	inventory := StatusSection{Title: "Load balancer"}
	for _, status := range []structs.InventoryStatus{structs.InventoryOnline, structs.InventoryOffline} {
		status := status
		inventory.Groups = append(inventory.Groups, group(status.String(),
			func(r *structs.ServerRecord) bool { return r.InventoryStatus == status }))
	}
	for _, state := range []structs.InventoryState{
		structs.InventoryEnabled, structs.InventoryDisabled, structs.InventoryCordoned,
	} {
		state := state
		inventory.Groups = append(inventory.Groups, group(state.String(),
			func(r *structs.ServerRecord) bool { return r.InventoryState == state }))
	}

	custom := StatusSection{Title: "Health"}
	for _, state := range []structs.CustomState{
		structs.CustomUnresponsive, structs.CustomMalfunctioning, structs.CustomToRecycle,
	} {
		custom.Groups = append(custom.Groups, group(state.String(), structs.WithCustomState(state)))
	}

	maintenance := StatusSection{Title: "Maintenance", Groups: []StatusGroup{
		group(structs.PoolInMaintenance.String(), func(r *structs.ServerRecord) bool { return r.InMaintenance() }),
	}}

	return []StatusSection{hoster, inventory, custom, maintenance}
}

// FormatStatus renders sections the way the status command prints them.
func FormatStatus(sections []StatusSection) string {
	var b strings.Builder
	for _, sec := range sections {
		fmt.Fprintf(&b, "== %s ==\n", sec.Title)
		for _, g := range sec.Groups {
			b.WriteString(g.String())
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// Status polls the pool without host diagnostics and groups its slots.
func (r *Runner) Status(ctx context.Context) ([]StatusSection, error) {
	snapshot, err := r.aggregator.Poll(ctx, false)
	if err != nil {
		return nil, err
	}
	return PoolStatus(snapshot), nil
}
