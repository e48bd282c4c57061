package bbbpool

import (
	"fmt"
	"testing"
	"time"

	"github.com/bbbpool/bbbpool/bbbpool/structs"
	"github.com/bbbpool/bbbpool/testutil"
)

func domain(n int) string {
	return fmt.Sprintf("bbb-w%d.example.com", n)
}

// makeRecord returns a healthy slot that has been in its hoster state for an
// hour.
func makeRecord(n int, hoster structs.HosterState, state structs.InventoryState,
	status structs.InventoryStatus) *structs.ServerRecord {

	return &structs.ServerRecord{
		Number:              n,
		Domain:              domain(n),
		HosterID:            fmt.Sprintf("machine-%d", n),
		HosterState:         hoster,
		HosterStateDuration: 3600,
		InventoryID:         fmt.Sprintf("id-%d", n),
		Secret:              "secret",
		InventoryState:      state,
		InventoryStatus:     status,
		Uptime:              3600,
		CPUs:                8,
		Health:              structs.HealthOK,
	}
}

func active(n int) *structs.ServerRecord {
	return makeRecord(n, structs.HosterRunning, structs.InventoryEnabled, structs.InventoryOnline)
}

func makeSnapshot(t *testing.T, records ...*structs.ServerRecord) *structs.PoolSnapshot {
	t.Helper()

	b := structs.NewSnapshotBuilder(time.Now())
	for _, r := range records {
		if err := b.Add(r); err != nil {
			t.Fatalf("unexpected error building snapshot: %v", err)
		}
	}
	return b.Build()
}

// fakes holds the test doubles behind a Clients.
type fakes struct {
	inventory *testutil.Inventory
	hoster    *testutil.Hoster
	exec      *testutil.Executor
	sessions  testutil.Sessions
	state     *testutil.MemoryStore
	resolver  testutil.Resolver
	calendar  *testutil.Calendar
}

func makeClients() (*Clients, *fakes) {
	f := &fakes{
		inventory: &testutil.Inventory{},
		hoster:    &testutil.Hoster{},
		exec:      &testutil.Executor{},
		sessions:  testutil.Sessions{},
		state:     testutil.NewMemoryStore(),
		resolver:  testutil.Resolver{},
	}

	return &Clients{
		Inventory: f.inventory,
		Hoster:    f.hoster,
		Exec:      f.exec,
		Sessions:  f.sessions.Factory,
		State:     f.state,
		Resolver:  f.resolver,
	}, f
}
