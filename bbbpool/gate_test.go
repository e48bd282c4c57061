package bbbpool

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/bbbpool/bbbpool/bbbpool/structs"
	"github.com/bbbpool/bbbpool/logging"
	"github.com/bbbpool/bbbpool/testutil"
)

func TestGate_Evaluate(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	config := testutil.MakeConfig()
	clients, f := makeClients()
	namer, err := config.Namer()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	gate := NewTerminationGate(config, namer, clients, logging.NewNop())
	gate.now = func() time.Time { return now }

	// Slot 2 hosts a fresh meeting and one past the maximum duration.
	f.sessions[domain(2)] = &testutil.SessionAPI{
		Meetings: []structs.Meeting{
			{ID: "fresh", CreateTime: now.Add(-time.Hour)},
			{ID: "stale", ModeratorPW: "mp", CreateTime: now.Add(-13 * time.Hour)},
		},
	}
	// Slot 3 is still processing a recording.
	f.sessions[domain(3)] = &testutil.SessionAPI{
		Recordings: []structs.Recording{
			{ID: "rec-3", State: structs.RecordingProcessing, EndTime: now.Add(-48 * time.Hour)},
		},
	}
	// Slot 4 has transferred its recording, slot 5 has not.
	f.sessions[domain(4)] = &testutil.SessionAPI{
		Recordings: []structs.Recording{{ID: "rec-4", State: structs.RecordingPublished}},
	}
	f.sessions[domain(5)] = &testutil.SessionAPI{
		Recordings: []structs.Recording{{ID: "rec-5", State: structs.RecordingPublished}},
	}
	// Slot 6 reports an identifier that can not be used in a command.
	f.sessions[domain(6)] = &testutil.SessionAPI{
		Recordings: []structs.Recording{{ID: "../rec", State: structs.RecordingPublished}},
	}

	f.exec.Handler = func(host, command string) (string, error) {
		switch {
		case !strings.Contains(command, "du --files0-from"):
			return "", fmt.Errorf("unexpected command %q", command)
		case strings.Contains(command, "rec-5") && host == "scalelite.example.com":
			return "512\n", nil
		}
		return "1024\n", nil
	}

	var records []*structs.ServerRecord
	var candidates []structs.TerminateCandidate
	for n := 1; n <= 6; n++ {
		r := makeRecord(n, structs.HosterRunning, structs.InventoryCordoned, structs.InventoryOnline)
		records = append(records, r)
		candidates = append(candidates, structs.TerminateCandidate{Domain: r.Domain, Requirement: structs.GateDrained})
	}
	w7 := makeRecord(7, structs.HosterRunning, structs.InventoryCordoned, structs.InventoryOffline)
	records = append(records, w7)
	candidates = append(candidates, structs.TerminateCandidate{Domain: w7.Domain, Requirement: structs.GateImmediate})

	ready := gate.Evaluate(context.Background(), makeSnapshot(t, records...), candidates)

	expected := []string{domain(1), domain(4), domain(7)}
	if !reflect.DeepEqual(ready, expected) {
		t.Fatalf("expected %v got %v", expected, ready)
	}

	if ended := f.sessions[domain(2)].Ended(); !reflect.DeepEqual(ended, []string{"stale"}) {
		t.Fatalf("expected the stale meeting to be ended got %v", ended)
	}

	// Sizes are compared on the server and then on the load balancer host.
	var hosts []string
	for _, c := range f.exec.Calls() {
		if strings.Contains(c.Command, "rec-4") {
			hosts = append(hosts, c.Host)
		}
	}
	expectedHosts := []string{"bbb-w4.pool.example.net", "scalelite.example.com"}
	if !reflect.DeepEqual(hosts, expectedHosts) {
		t.Fatalf("expected %v got %v", expectedHosts, hosts)
	}
}

func TestGate_EmptyRecordingBlocks(t *testing.T) {
	config := testutil.MakeConfig()
	clients, f := makeClients()
	namer, _ := config.Namer()

	f.sessions[domain(1)] = &testutil.SessionAPI{
		Recordings: []structs.Recording{{ID: "rec-1", State: structs.RecordingPublished}},
	}
	f.exec.Handler = func(string, string) (string, error) { return "0", nil }

	r := makeRecord(1, structs.HosterRunning, structs.InventoryCordoned, structs.InventoryOnline)
	ready := NewTerminationGate(config, namer, clients, logging.NewNop()).Evaluate(context.Background(),
		makeSnapshot(t, r), []structs.TerminateCandidate{{Domain: r.Domain, Requirement: structs.GateDrained}})

	if len(ready) != 0 {
		t.Fatalf("expected no ready server got %v", ready)
	}
}
