package client

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"

	"github.com/bbbpool/bbbpool/bbbpool/structs"
	"github.com/bbbpool/bbbpool/logging"
	"github.com/bbbpool/bbbpool/testutil"
)

func TestState_FileStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")
	store, err := NewFileStore(dir, "demo", logging.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := context.Background()

	var missing structs.MaintenanceList
	found, err := store.ReadState(ctx, structs.StateKeyMaintenance, &missing)
	if err != nil || found {
		t.Fatalf("expected no document got %v (%v)", found, err)
	}

	expected := &structs.MaintenanceList{
		Numbers:     []int{2, 5},
		LastUpdated: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
	}
	if err := store.PersistState(ctx, structs.StateKeyMaintenance, expected); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "demo_maintenance.json")); err != nil {
		t.Fatalf("expected the document file to exist: %v", err)
	}

	returned := &structs.MaintenanceList{}
	if found, err := store.ReadState(ctx, structs.StateKeyMaintenance, returned); err != nil || !found {
		t.Fatalf("expected a document got %v (%v)", found, err)
	}
	if !reflect.DeepEqual(returned, expected) {
		t.Fatalf("expected %+v got %+v", expected, returned)
	}

	if err := os.WriteFile(filepath.Join(dir, "demo_failsafe.json"), []byte("{"), 0640); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := store.ReadState(ctx, structs.StateKeyFailsafe, &structs.FailsafeState{}); err == nil {
		t.Fatal("expected a decoding error")
	}
}

func TestState_RedisStore(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewRedisStoreWithClient(db, "demo", logging.NewNop())
	ctx := context.Background()

	state := &structs.FailsafeState{Enabled: true, Reason: "test"}
	content, _ := json.Marshal(state)

	mock.ExpectGet("bbbpool:demo:failsafe").RedisNil()
	mock.ExpectSet("bbbpool:demo:failsafe", content, 0).SetVal("OK")
	mock.ExpectGet("bbbpool:demo:failsafe").SetVal(string(content))
	mock.ExpectGet("bbbpool:demo:alerts").SetErr(errors.New("connection refused"))

	if found, err := store.ReadState(ctx, structs.StateKeyFailsafe, &structs.FailsafeState{}); err != nil || found {
		t.Fatalf("expected no document got %v (%v)", found, err)
	}
	if err := store.PersistState(ctx, structs.StateKeyFailsafe, state); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	returned := &structs.FailsafeState{}
	if found, err := store.ReadState(ctx, structs.StateKeyFailsafe, returned); err != nil || !found {
		t.Fatalf("expected a document got %v (%v)", found, err)
	}
	if !reflect.DeepEqual(returned, state) {
		t.Fatalf("expected %+v got %+v", state, returned)
	}

	if _, err := store.ReadState(ctx, structs.StateKeyAlerts, &structs.AlertLedger{}); err == nil {
		t.Fatal("expected an error")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestState_NewStateStore(t *testing.T) {
	config := testutil.MakeConfig()
	config.State.Path = t.TempDir()

	store, err := NewStateStore(config, logging.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := store.(*FileStore); !ok {
		t.Fatalf("expected a file store got %T", store)
	}

	config.State.Backend = "redis"
	config.State.RedisAddress = "127.0.0.1:6379"
	if store, _ = NewStateStore(config, logging.NewNop()); reflect.TypeOf(store) != reflect.TypeOf(&RedisStore{}) {
		t.Fatalf("expected a redis store got %T", store)
	}

	config.State.Backend = "etcd"
	if _, err := NewStateStore(config, logging.NewNop()); err == nil {
		t.Fatal("expected an error")
	}
}
