package bbbpool

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bbbpool/bbbpool/logging"
)

func TestFanout_partition(t *testing.T) {
	cases := []struct {
		total, workers int
		expected       []batch
	}{
		{0, 4, nil},
		{3, 0, []batch{{0, 3}}},
		{3, 5, []batch{{0, 1}, {1, 2}, {2, 3}}},
		{5, 4, []batch{{0, 2}, {2, 4}, {4, 5}}},
		{10, 3, []batch{{0, 4}, {4, 8}, {8, 10}}},
		{9, 3, []batch{{0, 3}, {3, 6}, {6, 9}}},
	}

	for _, tc := range cases {
		got := partition(tc.total, tc.workers)
		if !reflect.DeepEqual(got, tc.expected) {
			t.Fatalf("partition(%d, %d): expected %v got %v", tc.total, tc.workers, tc.expected, got)
		}
	}
}

func TestFanout_OrderUnderReversedCompletion(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6}

	// Later items complete first.
	results := Fanout(context.Background(), logging.NewNop(), items, 6,
		func(_ context.Context, i int) (string, error) {
			time.Sleep(time.Duration(len(items)-i) * 5 * time.Millisecond)
			if i == 4 {
				return "", fmt.Errorf("item %d failed", i)
			}
			return fmt.Sprintf("item-%d", i), nil
		})

	if len(results) != len(items) {
		t.Fatalf("expected %v results got %v", len(items), len(results))
	}
	for i, r := range results {
		if items[i] == 4 {
			if r.Err == nil {
				t.Fatal("expected item 4 to fail")
			}
			continue
		}
		if expected := fmt.Sprintf("item-%d", items[i]); r.Value != expected || r.Err != nil {
			t.Fatalf("expected %v got %v (%v)", expected, r.Value, r.Err)
		}
	}

	expected := []int{1, 2, 3, 5, 6}
	if got := Succeeded(items, results); !reflect.DeepEqual(got, expected) {
		t.Fatalf("expected %v got %v", expected, got)
	}
}

func TestFanout_BoundedConcurrency(t *testing.T) {
	var running, peak int32

	items := make([]int, 12)
	Fanout(context.Background(), logging.NewNop(), items, 3,
		func(_ context.Context, _ int) (struct{}, error) {
			n := atomic.AddInt32(&running, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&running, -1)
			return struct{}{}, nil
		})

	if peak > 3 {
		t.Fatalf("expected at most 3 concurrent workers got %v", peak)
	}
}

func TestFanout_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := int32(0)
	results := Fanout(ctx, logging.NewNop(), []int{1, 2, 3}, 2,
		func(_ context.Context, _ int) (int, error) {
			atomic.AddInt32(&calls, 1)
			return 0, nil
		})

	if calls != 0 {
		t.Fatalf("expected no call got %v", calls)
	}
	for _, r := range results {
		if r.Err != context.Canceled {
			t.Fatalf("expected %v got %v", context.Canceled, r.Err)
		}
	}
}

func TestFanout_PanickingItem(t *testing.T) {
	results := Fanout(context.Background(), logging.NewNop(), []int{1, 2, 3, 4}, 2,
		func(_ context.Context, i int) (int, error) {
			if i == 2 {
				panic("boom")
			}
			return i * 10, nil
		})

	for i, expected := range []int{10, 0, 30, 40} {
		if i == 1 {
			if !errors.Is(results[i].Err, errItemPanicked) {
				t.Fatalf("expected %v got %v", errItemPanicked, results[i].Err)
			}
			continue
		}
		if results[i].Err != nil || results[i].Value != expected {
			t.Fatalf("expected %v got %v (%v)", expected, results[i].Value, results[i].Err)
		}
	}
}
