package bbbpool

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/bbbpool/bbbpool/testutil"
)

func TestMaintenance_UpdateMaintenance(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewMemoryStore()

	list, err := UpdateMaintenance(ctx, store, []int{5, 2, 5}, nil, 6)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(list.Numbers, []int{2, 5}) {
		t.Fatalf("expected %v got %v", []int{2, 5}, list.Numbers)
	}

	if _, err := UpdateMaintenance(ctx, store, []int{1}, []int{5, 4}, 6); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	list, err = ReadMaintenance(ctx, store)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(list.Numbers, []int{1, 2}) || list.LastUpdated.IsZero() {
		t.Fatalf("expected %v got %+v", []int{1, 2}, list)
	}
	if !list.Contains(2) || list.Contains(5) {
		t.Fatalf("unexpected membership in %v", list.Numbers)
	}
}

func TestMaintenance_UpdateMaintenanceErrors(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewMemoryStore()

	for _, numbers := range [][]int{{0}, {7}, {-1}} {
		if _, err := UpdateMaintenance(ctx, store, numbers, nil, 6); err == nil {
			t.Fatalf("expected %v to be rejected", numbers)
		}
	}
	if _, err := UpdateMaintenance(ctx, store, nil, []int{9}, 6); err == nil {
		t.Fatal("expected 9 to be rejected")
	}

	store.PersistErr = errors.New("read-only file system")
	if _, err := UpdateMaintenance(ctx, store, []int{1}, nil, 6); err == nil {
		t.Fatal("expected an error")
	}

	store.ReadErr = errors.New("connection refused")
	if _, err := ReadMaintenance(ctx, store); err == nil {
		t.Fatal("expected an error")
	}
}
