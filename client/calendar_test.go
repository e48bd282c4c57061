package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bbbpool/bbbpool/bbbpool/structs"
	"github.com/bbbpool/bbbpool/logging"
)

func TestCalendar_Load(t *testing.T) {
	var fail, hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if atomic.LoadInt32(&fail) == 1 {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("BEGIN:VCALENDAR\nEND:VCALENDAR\n"))
	}))
	defer srv.Close()

	cache := filepath.Join(t.TempDir(), "demo_calendar.ics")
	c := NewCalendar(srv.URL, cache, logging.NewNop())
	c.sleep = func(time.Duration) {}

	body, err := c.Load(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cached, _ := os.ReadFile(cache); string(cached) != string(body) {
		t.Fatalf("expected the calendar to be cached got %q", cached)
	}

	// The cached copy is used once every download try failed.
	atomic.StoreInt32(&fail, 1)
	atomic.StoreInt32(&hits, 0)
	fallback, err := c.Load(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(fallback) != string(body) {
		t.Fatalf("expected %q got %q", body, fallback)
	}
	if hits != calendarTries {
		t.Fatalf("expected %v tries got %v", calendarTries, hits)
	}
}

func TestCalendar_LoadWithoutCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewCalendar(srv.URL, filepath.Join(t.TempDir(), "missing.ics"), logging.NewNop())
	c.sleep = func(time.Duration) {}

	if _, err := c.Load(context.Background()); !errors.Is(err, structs.ErrCalendarUnavailable) {
		t.Fatalf("expected %v got %v", structs.ErrCalendarUnavailable, err)
	}
}
