package bbbpool

import (
	"reflect"
	"testing"
	"time"

	"github.com/bbbpool/bbbpool/bbbpool/structs"
	"github.com/bbbpool/bbbpool/logging"
)

var testEngine = EngineConfig{PoolSize: 6, RunInterval: 5 * time.Minute}

func target(count int) structs.CapacityTarget {
	return structs.CapacityTarget{Count: count}
}

func TestEngine_ReconcileKeepsOneOnlineServer(t *testing.T) {
	tagged := func(n int, state structs.CustomState) *structs.ServerRecord {
		r := active(n)
		r.CustomState = state
		return r
	}

	s := makeSnapshot(t,
		tagged(1, structs.CustomMalfunctioning),
		tagged(2, structs.CustomToRecycle),
		tagged(3, structs.CustomMalfunctioning),
		makeRecord(4, structs.HosterStopped, structs.InventoryCordoned, structs.InventoryOffline),
	)

	plan := Reconcile(s, target(1), testEngine, logging.NewNop())

	if plan.Spared != domain(2) {
		t.Fatalf("expected %v got %v", domain(2), plan.Spared)
	}
	if plan.Compensation != 1 {
		t.Fatalf("expected compensation 1 got %v", plan.Compensation)
	}

	expected := []string{domain(1), domain(3)}
	if !reflect.DeepEqual(plan.Retire, expected) {
		t.Fatalf("expected %v got %v", expected, plan.Retire)
	}

	// One potential server for one wanted, plus the spared replacement.
	if plan.Delta != 1 {
		t.Fatalf("expected delta 1 got %v", plan.Delta)
	}
	if !reflect.DeepEqual(plan.Enable, []string{domain(4)}) {
		t.Fatalf("expected %v got %v", []string{domain(4)}, plan.Enable)
	}
}

func TestEngine_ReconcileSparesLastOfClass(t *testing.T) {
	cases := []struct {
		name     string
		states   []structs.CustomState
		expected string
	}{
		{
			name:     "last malfunctioning",
			states:   []structs.CustomState{structs.CustomMalfunctioning, structs.CustomMalfunctioning},
			expected: domain(2),
		},
		{
			name:     "to recycle first",
			states:   []structs.CustomState{structs.CustomToRecycle, structs.CustomMalfunctioning},
			expected: domain(1),
		},
		{
			name:     "unresponsive offline",
			states:   []structs.CustomState{structs.CustomUnresponsive, structs.CustomUnresponsive},
			expected: "",
		},
	}

	for _, tc := range cases {
		var records []*structs.ServerRecord
		for i, state := range tc.states {
			r := active(i + 1)
			r.CustomState = state
			if state == structs.CustomUnresponsive {
				r.InventoryStatus = structs.InventoryOffline
			}
			records = append(records, r)
		}

		plan := Reconcile(makeSnapshot(t, records...), target(-1), testEngine, logging.NewNop())
		if plan.Spared != tc.expected {
			t.Fatalf("%s: expected %q got %q", tc.name, tc.expected, plan.Spared)
		}
	}
}

func TestEngine_ReconcileNoChange(t *testing.T) {
	unresponsive := makeRecord(2, structs.HosterRunning, structs.InventoryEnabled, structs.InventoryOffline)
	unresponsive.CustomState = structs.CustomUnresponsive

	s := makeSnapshot(t, active(1), unresponsive, active(3))
	plan := Reconcile(s, target(-1), testEngine, logging.NewNop())

	// Tagged servers are retired even when no capacity change is required.
	if !reflect.DeepEqual(plan.Retire, []string{domain(2)}) {
		t.Fatalf("expected %v got %v", []string{domain(2)}, plan.Retire)
	}
	if plan.Delta != 0 || len(plan.Cordon) != 0 || len(plan.Enable) != 0 {
		t.Fatalf("expected no capacity action got %+v", plan)
	}
}

func TestEngine_ReconcileShrinkOrdering(t *testing.T) {
	w1 := active(1)
	w1.Meetings = 5
	w2 := active(2)
	w2.Meetings = 1
	w3 := active(3)
	w3.Meetings = 3
	w3.Maintenances = []string{"reboot"}
	w4 := makeRecord(4, structs.HosterStarting, structs.InventoryEnabled, structs.InventoryOffline)
	w5 := makeRecord(5, structs.HosterStopped, structs.InventoryEnabled, structs.InventoryOffline)
	w6 := active(6)

	s := makeSnapshot(t, w1, w2, w3, w4, w5, w6)

	cases := []struct {
		count    int
		expected []string
	}{
		{5, []string{domain(3)}},
		{3, []string{domain(3), domain(5), domain(4)}},
		{2, []string{domain(3), domain(5), domain(4), domain(6)}},
		{1, []string{domain(3), domain(5), domain(4), domain(6), domain(2)}},
	}

	for _, tc := range cases {
		plan := Reconcile(s, target(tc.count), testEngine, logging.NewNop())
		if !reflect.DeepEqual(plan.Cordon, tc.expected) {
			t.Fatalf("target %d: expected %v got %v", tc.count, tc.expected, plan.Cordon)
		}
	}
}

func TestEngine_ReconcileGrow(t *testing.T) {
	recycle := makeRecord(6, structs.HosterRunning, structs.InventoryCordoned, structs.InventoryOnline)
	recycle.CustomState = structs.CustomToRecycle

	s := makeSnapshot(t,
		active(1),
		makeRecord(2, structs.HosterStopped, structs.InventoryCordoned, structs.InventoryOffline),
		makeRecord(3, structs.HosterRunning, structs.InventoryCordoned, structs.InventoryOnline),
		makeRecord(4, structs.HosterNonexistent, structs.InventoryDisabled, structs.InventoryOffline),
		makeRecord(5, structs.HosterStarting, structs.InventoryCordoned, structs.InventoryOffline),
		recycle,
	)

	cases := []struct {
		count    int
		expected []string
	}{
		{2, []string{domain(3)}},
		{4, []string{domain(3), domain(5), domain(2)}},
		{6, []string{domain(3), domain(5), domain(2), domain(4), domain(6)}},
	}

	for _, tc := range cases {
		plan := Reconcile(s, target(tc.count), testEngine, logging.NewNop())
		if !reflect.DeepEqual(plan.Enable, tc.expected) {
			t.Fatalf("target %d: expected %v got %v", tc.count, tc.expected, plan.Enable)
		}
	}
}

func TestEngine_ReconcileSwap(t *testing.T) {
	w1 := makeRecord(1, structs.HosterStarting, structs.InventoryEnabled, structs.InventoryOffline)
	w1.HosterStateDuration = 100
	w2 := makeRecord(2, structs.HosterStarting, structs.InventoryEnabled, structs.InventoryOffline)
	w2.HosterStateDuration = 300
	w4 := makeRecord(4, structs.HosterRunning, structs.InventoryCordoned, structs.InventoryOffline)
	w4.CustomState = structs.CustomUnresponsive

	s := makeSnapshot(t, w1, w2,
		makeRecord(3, structs.HosterRunning, structs.InventoryCordoned, structs.InventoryOnline),
		w4, active(5))

	plan := Reconcile(s, target(3), testEngine, logging.NewNop())

	if plan.Delta != 0 {
		t.Fatalf("expected delta 0 got %v", plan.Delta)
	}
	if !reflect.DeepEqual(plan.Enable, []string{domain(3)}) {
		t.Fatalf("expected %v got %v", []string{domain(3)}, plan.Enable)
	}
	if !reflect.DeepEqual(plan.Cordon, []string{domain(2)}) {
		t.Fatalf("expected %v got %v", []string{domain(2)}, plan.Cordon)
	}
}

func TestEngine_ReconcileSwapSkipsTagged(t *testing.T) {
	recycle := makeRecord(2, structs.HosterRunning, structs.InventoryCordoned, structs.InventoryOnline)
	recycle.CustomState = structs.CustomToRecycle
	broken := makeRecord(3, structs.HosterRunning, structs.InventoryCordoned, structs.InventoryOnline)
	broken.CustomState = structs.CustomMalfunctioning

	starting := makeRecord(4, structs.HosterStarting, structs.InventoryEnabled, structs.InventoryOffline)

	s := makeSnapshot(t, active(1), recycle, broken, starting)
	plan := Reconcile(s, target(2), testEngine, logging.NewNop())

	if plan.Delta != 0 {
		t.Fatalf("expected delta 0 got %v", plan.Delta)
	}
	if len(plan.Retire) != 0 || len(plan.Enable) != 0 || len(plan.Cordon) != 0 {
		t.Fatalf("expected no inventory action got retire %v enable %v cordon %v",
			plan.Retire, plan.Enable, plan.Cordon)
	}

	// An untagged running slot is still preferred over the starting one.
	s = makeSnapshot(t, active(1), recycle, starting,
		makeRecord(5, structs.HosterRunning, structs.InventoryCordoned, structs.InventoryOnline))
	plan = Reconcile(s, target(2), testEngine, logging.NewNop())

	if !reflect.DeepEqual(plan.Enable, []string{domain(5)}) {
		t.Fatalf("expected %v got %v", []string{domain(5)}, plan.Enable)
	}
	if !reflect.DeepEqual(plan.Cordon, []string{domain(4)}) {
		t.Fatalf("expected %v got %v", []string{domain(4)}, plan.Cordon)
	}
}

func TestEngine_ReconcileClamp(t *testing.T) {
	s := makeSnapshot(t, active(1),
		makeRecord(2, structs.HosterStopped, structs.InventoryCordoned, structs.InventoryOffline))

	plan := Reconcile(s, target(10), testEngine, logging.NewNop())
	if !plan.Clamped {
		t.Fatal("expected the plan to be clamped")
	}
	if plan.Delta != testEngine.PoolSize-1 {
		t.Fatalf("expected delta %v got %v", testEngine.PoolSize-1, plan.Delta)
	}
}

func TestEngine_ReconcileBareMetal(t *testing.T) {
	bm := active(1)
	bm.ServerType = structs.BareMetal

	s := makeSnapshot(t, bm, active(2),
		makeRecord(3, structs.HosterStopped, structs.InventoryCordoned, structs.InventoryOffline))

	// The bare metal server counts toward the active capacity without being
	// a cordon candidate.
	plan := Reconcile(s, target(1), testEngine, logging.NewNop())
	if !reflect.DeepEqual(plan.Cordon, []string{domain(2)}) {
		t.Fatalf("expected %v got %v", []string{domain(2)}, plan.Cordon)
	}
}

func TestEngine_ReconcileScenario(t *testing.T) {
	meetings := []int{4, 3, 5, 2, 6, 0, 7, 8}

	var records []*structs.ServerRecord
	for i, m := range meetings {
		r := active(i + 1)
		r.Meetings = m
		records = append(records, r)
	}

	unresponsive := makeRecord(9, structs.HosterRunning, structs.InventoryEnabled, structs.InventoryOffline)
	unresponsive.CustomState = structs.CustomUnresponsive
	records = append(records, unresponsive,
		makeRecord(10, structs.HosterStopped, structs.InventoryDisabled, structs.InventoryOffline))

	cfg := EngineConfig{PoolSize: 10, RunInterval: 5 * time.Minute}
	logger := logging.NewNop()

	s := makeSnapshot(t, records...)
	plan := Reconcile(s, target(7), cfg, logger)

	if !reflect.DeepEqual(plan.Retire, []string{domain(9)}) {
		t.Fatalf("expected %v got %v", []string{domain(9)}, plan.Retire)
	}
	if plan.Delta != -1 {
		t.Fatalf("expected delta -1 got %v", plan.Delta)
	}
	if !reflect.DeepEqual(plan.Cordon, []string{domain(6)}) {
		t.Fatalf("expected %v got %v", []string{domain(6)}, plan.Cordon)
	}
	if len(plan.Enable) != 0 {
		t.Fatalf("expected no enable got %v", plan.Enable)
	}

	post := s.WithInventoryStates(map[string]structs.InventoryState{
		domain(9): structs.InventoryCordoned,
		domain(6): structs.InventoryCordoned,
	})

	candidates, clone, powerOn := PlanHosterActions(post, cfg, logger)

	expected := []structs.TerminateCandidate{
		{Domain: domain(6), Requirement: structs.GateDrained},
		{Domain: domain(9), Requirement: structs.GateImmediate},
	}
	for _, c := range candidates {
		if c.Domain == domain(10) {
			continue
		}
		if len(expected) == 0 || !reflect.DeepEqual(c, expected[0]) {
			t.Fatalf("unexpected terminate candidate %+v", c)
		}
		expected = expected[1:]
	}
	if len(expected) != 0 {
		t.Fatalf("missing terminate candidates %v", expected)
	}
	if len(clone) != 0 || len(powerOn) != 0 {
		t.Fatalf("expected no clone nor power on got %v and %v", clone, powerOn)
	}
}

func TestEngine_PlanHosterActions(t *testing.T) {
	young := makeRecord(3, structs.HosterRunning, structs.InventoryCordoned, structs.InventoryOnline)
	young.HosterStateDuration = 100
	unresponsive := makeRecord(4, structs.HosterRunning, structs.InventoryDisabled, structs.InventoryOffline)
	unresponsive.CustomState = structs.CustomUnresponsive
	maintenance := makeRecord(7, structs.HosterStopped, structs.InventoryCordoned, structs.InventoryOffline)
	maintenance.PoolState = structs.PoolInMaintenance

	s := makeSnapshot(t,
		makeRecord(1, structs.HosterStopped, structs.InventoryCordoned, structs.InventoryOffline),
		makeRecord(2, structs.HosterRunning, structs.InventoryCordoned, structs.InventoryOnline),
		young,
		unresponsive,
		makeRecord(5, structs.HosterNonexistent, structs.InventoryEnabled, structs.InventoryOffline),
		makeRecord(6, structs.HosterStoppedInPlace, structs.InventoryEnabled, structs.InventoryOffline),
		maintenance,
		makeRecord(8, structs.HosterStarting, structs.InventoryEnabled, structs.InventoryOffline),
	)

	candidates, clone, powerOn := PlanHosterActions(s, testEngine, logging.NewNop())

	expected := []structs.TerminateCandidate{
		{Domain: domain(1), Requirement: structs.GateImmediate},
		{Domain: domain(2), Requirement: structs.GateDrained},
		{Domain: domain(4), Requirement: structs.GateImmediate},
	}
	if !reflect.DeepEqual(candidates, expected) {
		t.Fatalf("expected %v got %v", expected, candidates)
	}
	if !reflect.DeepEqual(clone, []string{domain(5)}) {
		t.Fatalf("expected %v got %v", []string{domain(5)}, clone)
	}
	if !reflect.DeepEqual(powerOn, []string{domain(6)}) {
		t.Fatalf("expected %v got %v", []string{domain(6)}, powerOn)
	}
}
