package bbbpool

import (
	"context"
	"fmt"
	"reflect"
	"testing"
)

func TestRestart_RestartUnhealthy(t *testing.T) {
	config, clients, f := makePool(t, 3)
	f.exec.Handler = func(host, command string) (string, error) {
		if command == restartCommand {
			return "", nil
		}
		var n int
		if _, err := fmt.Sscanf(host, "bbb-w%d.pool.example.net", &n); err != nil {
			return "", err
		}
		status := "OK"
		if n == 2 {
			status = "KO"
		}
		return fmt.Sprintf(fleetOutput, n, n, status), nil
	}

	r, _, _ := makeRunner(t, config, clients)
	restarted, err := r.RestartUnhealthy(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(restarted, []string{domain(2)}) {
		t.Fatalf("expected %v got %v", []string{domain(2)}, restarted)
	}

	var hosts []string
	for _, c := range f.exec.Calls() {
		if c.Command == restartCommand {
			hosts = append(hosts, c.Host)
			if c.Opts.MaxTries != restartTries {
				t.Fatalf("expected %v tries got %v", restartTries, c.Opts.MaxTries)
			}
		}
	}
	if !reflect.DeepEqual(hosts, []string{"bbb-w2.pool.example.net"}) {
		t.Fatalf("expected a single restart on w2 got %v", hosts)
	}
}
