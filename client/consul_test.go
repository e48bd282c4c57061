package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/bbbpool/bbbpool/bbbpool/structs"
	"github.com/bbbpool/bbbpool/logging"
)

// kvServer emulates the Consul Key/Value HTTP API.
func kvServer() (*httptest.Server, map[string][]byte) {
	var lock sync.Mutex
	kv := make(map[string][]byte)

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(r.URL.Path, "/v1/kv/")

		w.Header().Set("X-Consul-Index", "1")
		w.Header().Set("X-Consul-LastContact", "0")
		w.Header().Set("X-Consul-KnownLeader", "true")

		lock.Lock()
		defer lock.Unlock()

		switch r.Method {
		case http.MethodGet:
			value, ok := kv[key]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			json.NewEncoder(w).Encode([]map[string]interface{}{{"Key": key, "Value": value}})
		case http.MethodPut:
			value, _ := io.ReadAll(r.Body)
			kv[key] = value
			w.Write([]byte("true"))
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})), kv
}

func TestConsul_NewConsulStore(t *testing.T) {
	addr := "http://consul.example.com:8500"
	token := "afb3bc3a-6acd-11e7-b70c-784f43a63381"

	if _, err := NewConsulStore(addr, token, "bbbpool/demo", logging.NewNop()); err != nil {
		t.Fatalf("error creating Consul client %s", err)
	}
}

func TestConsul_StateTracking(t *testing.T) {
	srv, kv := kvServer()
	defer srv.Close()

	store, err := NewConsulStore(srv.URL, "", "bbbpool/demo", logging.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := context.Background()

	found, err := store.ReadState(ctx, structs.StateKeyLoadTrend, &structs.LoadTrend{})
	if err != nil || found {
		t.Fatalf("expected no document got %v (%v)", found, err)
	}

	expected := &structs.LoadTrend{Participants: 120, Meetings: 8}
	if err := store.PersistState(ctx, structs.StateKeyLoadTrend, expected); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := kv["bbbpool/demo/load_trend"]; !ok {
		t.Fatalf("expected the document under the key root got keys %v", kv)
	}

	returned := &structs.LoadTrend{}
	if found, err := store.ReadState(ctx, structs.StateKeyLoadTrend, returned); err != nil || !found {
		t.Fatalf("expected a document got %v (%v)", found, err)
	}
	if !reflect.DeepEqual(returned, expected) {
		t.Fatalf("expected %+v got %+v", expected, returned)
	}
}
