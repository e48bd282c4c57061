package bbbpool

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/bbbpool/bbbpool/bbbpool/structs"
	"github.com/bbbpool/bbbpool/logging"
	"github.com/bbbpool/bbbpool/testutil"
)

const fleetOutput = `uptime=7200
cpu_count=4
load_averages=1.00 2.00 0.40
rx_avg1=1200
tx_avg1=800
internal_ipv4=10.0.0.%d
external_ipv4=203.0.113.%d
external_ipv6=
bbb_status=%s
`

func TestFleet_ParseFleetOutput(t *testing.T) {
	report, err := ParseFleetOutput(fmt.Sprintf(fleetOutput, 1, 1, "KO"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := &FleetReport{
		Uptime: 7200,
		CPUs:   4,
		Health: structs.HealthKO,
		Telemetry: structs.Telemetry{
			LoadAverages: [3]float64{25, 50, 10},
			RxAvg1:       1200,
			TxAvg1:       800,
			InternalIPv4: "10.0.0.1",
			ExternalIPv4: "203.0.113.1",
		},
	}
	if !reflect.DeepEqual(report, expected) {
		t.Fatalf("expected %+v got %+v", expected, report)
	}

	for _, invalid := range []string{
		"",
		"uptime=12\ncpu_count=0\nload_averages=1 1 1\nbbb_status=OK\n",
		"uptime=12\ncpu_count=2\nload_averages=1 1\nbbb_status=OK\n",
		"uptime=12\ncpu_count=2\nload_averages=1 1 1\nbbb_status=maybe\n",
	} {
		if _, err := ParseFleetOutput(invalid); err == nil {
			t.Fatalf("expected an error parsing %q", invalid)
		}
	}
}

// makePool sets up fakes describing a pool of size slots where every slot
// is enabled, online and backed by a running machine.
func makePool(t *testing.T, size int) (*structs.Config, *Clients, *fakes) {
	t.Helper()

	config := testutil.MakeConfig()
	config.Pool.Size = size
	clients, f := makeClients()

	for n := 1; n <= size; n++ {
		f.inventory.List = append(f.inventory.List, structs.InventoryServer{
			ID:     fmt.Sprintf("id-%d", n),
			Domain: domain(n),
			Secret: "secret",
			State:  structs.InventoryEnabled,
			Status: structs.InventoryOnline,
		})
		f.inventory.Rows = append(f.inventory.Rows, structs.InventoryStatusRow{
			Hostname: domain(n),
			State:    structs.InventoryEnabled,
			Status:   structs.InventoryOnline,
			Meetings: n,
			Users:    10 * n,
		})
		f.hoster.Machines = append(f.hoster.Machines, structs.Machine{
			ID:         fmt.Sprintf("machine-%d", n),
			Name:       fmt.Sprintf("bbb-w%d", n),
			State:      structs.HosterRunning,
			ModifiedAt: time.Now().Add(-time.Hour),
			PublicIP:   fmt.Sprintf("203.0.113.%d", n),
		})
	}

	f.exec.Handler = func(host, _ string) (string, error) {
		var n int
		if _, err := fmt.Sscanf(host, "bbb-w%d.pool.example.net", &n); err != nil {
			return "", err
		}
		return fmt.Sprintf(fleetOutput, n, n, "OK"), nil
	}

	return config, clients, f
}

func makeAggregator(t *testing.T, config *structs.Config, clients *Clients) *Aggregator {
	t.Helper()

	namer, err := config.Namer()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a := NewAggregator(config, namer, clients, logging.NewNop())
	a.hoster.backoff = 0
	return a
}

func TestAggregator_PollCompleteness(t *testing.T) {
	config, clients, f := makePool(t, 4)

	// Slot 3 has no machine and slot 4 is in maintenance.
	f.hoster.Machines = append(f.hoster.Machines[:2], f.hoster.Machines[3])
	f.hoster.Machines = append(f.hoster.Machines, structs.Machine{ID: "stray", Name: "other-1"})
	if _, err := UpdateMaintenance(context.Background(), f.state, []int{4}, nil, 4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s, err := makeAggregator(t, config, clients).Poll(context.Background(), true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if s.Len() != 4 {
		t.Fatalf("expected 4 slots got %v", s.Len())
	}

	expected := []string{domain(1), domain(2), domain(3), domain(4)}
	if !reflect.DeepEqual(s.Domains(), expected) {
		t.Fatalf("expected %v got %v", expected, s.Domains())
	}

	r, _ := s.Get(domain(2))
	if r.HosterID != "machine-2" || !r.Running() || r.Meetings != 2 || r.Users != 20 {
		t.Fatalf("unexpected record %+v", r)
	}
	if r.Uptime != 7200 || r.Health != structs.HealthOK || r.Telemetry == nil ||
		r.Telemetry.ExternalIPv4 != "203.0.113.2" {
		t.Fatalf("expected telemetry to be merged got %+v", r)
	}
	if r.HosterStateDuration < 3599 {
		t.Fatalf("expected a state duration of about an hour got %v", r.HosterStateDuration)
	}

	missing, _ := s.Get(domain(3))
	if missing.HosterState != structs.HosterNonexistent || missing.Uptime != -1 {
		t.Fatalf("expected a nonexistent slot got %+v", missing)
	}

	maintenance, _ := s.Get(domain(4))
	if !maintenance.InMaintenance() {
		t.Fatalf("expected slot 4 to be in maintenance got %v", maintenance.PoolState)
	}

	// Only running slots are polled over SSH.
	if calls := len(f.exec.Calls()); calls != 3 {
		t.Fatalf("expected 3 diagnostics calls got %v", calls)
	}
}

func TestAggregator_PollMismatch(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(f *fakes)
	}{
		{
			name: "missing server",
			mutate: func(f *fakes) {
				f.inventory.List = f.inventory.List[:2]
			},
		},
		{
			name: "duplicate server",
			mutate: func(f *fakes) {
				f.inventory.List[2].Domain = domain(1)
			},
		},
		{
			name: "foreign domain",
			mutate: func(f *fakes) {
				f.inventory.List[2].Domain = "meet.example.org"
			},
		},
		{
			name: "short status table",
			mutate: func(f *fakes) {
				f.inventory.Rows = f.inventory.Rows[:1]
			},
		},
	}

	for _, tc := range cases {
		config, clients, f := makePool(t, 3)
		tc.mutate(f)

		_, err := makeAggregator(t, config, clients).Poll(context.Background(), false)
		if !errors.Is(err, structs.ErrInventoryMismatch) {
			t.Fatalf("%s: expected %v got %v", tc.name, structs.ErrInventoryMismatch, err)
		}
	}
}

func TestAggregator_PollHosterUnavailable(t *testing.T) {
	config, clients, f := makePool(t, 3)
	f.hoster.ListErr = errors.New("503 service unavailable")

	_, err := makeAggregator(t, config, clients).Poll(context.Background(), false)
	if !errors.Is(err, structs.ErrHosterUnavailable) {
		t.Fatalf("expected %v got %v", structs.ErrHosterUnavailable, err)
	}
}

func TestAggregator_PollStatusUnavailable(t *testing.T) {
	config, clients, f := makePool(t, 3)
	f.inventory.StatusErr = errors.New("exit status 1")

	s, err := makeAggregator(t, config, clients).Poll(context.Background(), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r, _ := s.Get(domain(1))
	if r.Meetings != 0 || r.Users != 0 {
		t.Fatalf("expected empty counters got %+v", r)
	}
}

func TestAggregator_PollMaintenanceUnreadable(t *testing.T) {
	config, clients, f := makePool(t, 3)
	f.state.ReadErr = errors.New("connection refused")

	if _, err := makeAggregator(t, config, clients).Poll(context.Background(), false); err == nil {
		t.Fatal("expected an error")
	}
}
