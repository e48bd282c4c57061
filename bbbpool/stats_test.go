package bbbpool

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/bbbpool/bbbpool/bbbpool/structs"
)

func TestStats_PoolStatus(t *testing.T) {
	w2 := makeRecord(2, structs.HosterStopped, structs.InventoryCordoned, structs.InventoryOffline)
	w3 := active(3)
	w3.CustomState = structs.CustomMalfunctioning
	w4 := makeRecord(4, structs.HosterNonexistent, structs.InventoryDisabled, structs.InventoryOffline)
	w4.PoolState = structs.PoolInMaintenance

	sections := PoolStatus(makeSnapshot(t, active(1), w2, w3, w4))

	var titles []string
	for _, s := range sections {
		titles = append(titles, s.Title)
	}
	if expected := []string{"Hoster", "Load balancer", "Health", "Maintenance"}; !reflect.DeepEqual(titles, expected) {
		t.Fatalf("expected %v got %v", expected, titles)
	}

	groups := make(map[string][]int)
	for _, s := range sections {
		for _, g := range s.Groups {
			groups[s.Title+"/"+g.State] = g.Numbers
		}
	}

	cases := map[string][]int{
		"Hoster/running":             {1, 3},
		"Hoster/stopped":             {2},
		"Hoster/nonexistent":         {4},
		"Hoster/locked":              {},
		"Load balancer/online":       {1, 3},
		"Load balancer/offline":      {2, 4},
		"Load balancer/cordoned":     {2},
		"Load balancer/disabled":     {4},
		"Health/malfunctioning":      {3},
		"Maintenance/in maintenance": {4},
	}
	for key, expected := range cases {
		if !reflect.DeepEqual(groups[key], expected) {
			t.Fatalf("%s: expected %v got %v", key, expected, groups[key])
		}
	}
}

func TestStats_FormatStatus(t *testing.T) {
	out := FormatStatus([]StatusSection{{
		Title: "Hoster",
		Groups: []StatusGroup{
			{State: "running", Numbers: []int{1, 3}},
			{State: "locked", Numbers: []int{}},
		},
	}})

	expected := "== Hoster ==\n* running: 2 [1,3]\n* locked: 0 []\n"
	if out != expected {
		t.Fatalf("expected %q got %q", expected, out)
	}
}

func TestStats_RunnerStatus(t *testing.T) {
	config, clients, f := makePool(t, 3)
	r, _, _ := makeRunner(t, config, clients)

	sections, err := r.Status(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(FormatStatus(sections), "* running: 3 [1,2,3]") {
		t.Fatalf("unexpected status %q", FormatStatus(sections))
	}

	// Status does not open SSH sessions.
	if calls := f.exec.Calls(); len(calls) != 0 {
		t.Fatalf("expected no remote command got %v", calls)
	}
}
