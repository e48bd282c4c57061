package bbbpool

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/bbbpool/bbbpool/bbbpool/structs"
	"github.com/bbbpool/bbbpool/client"
	"github.com/bbbpool/bbbpool/cloud"
	"github.com/bbbpool/bbbpool/logging"
)

// Resolver resolves slot domains into the IPv4 address their reserved
// hoster address must carry.
type Resolver interface {
	LookupIPv4(ctx context.Context, host string) (string, error)
}

type netResolver struct{}

func (netResolver) LookupIPv4(ctx context.Context, host string) (string, error) {
	ips, err := net.DefaultResolver.LookupIP(ctx, "ip4", host)
	if err != nil {
		return "", err
	}
	if len(ips) == 0 {
		return "", fmt.Errorf("no IPv4 address for %v", host)
	}
	return ips[0].String(), nil
}

// Clients holds the external systems a cycle talks to.
type Clients struct {
	Inventory structs.InventoryClient
	Hoster    structs.HosterProvider
	Exec      structs.RemoteExecutor
	Sessions  structs.SessionAPIFactory
	Calendar  structs.CalendarSource
	State     structs.StateStore
	Resolver  Resolver
}

// NewClients sets up the production clients described by config.
func NewClients(config *structs.Config, logger *logging.Logger) (*Clients, error) {
	exec, err := client.NewSSHExecutor(config.SSH, logger)
	if err != nil {
		return nil, err
	}

	hoster, err := cloud.NewHosterProvider(config, logger)
	if err != nil {
		return nil, err
	}

	state, err := client.NewStateStore(config, logger)
	if err != nil {
		return nil, err
	}

	clients := &Clients{
		Inventory: client.NewScalelite(exec, config.Scalelite, client.DefaultRunOptions(config.SSH)),
		Hoster:    hoster,
		Exec:      exec,
		Sessions:  client.BBBFactory,
		State:     state,
		Resolver:  netResolver{},
	}

	if config.Schedule.ICalURL != "" {
		clients.Calendar = client.NewCalendar(config.Schedule.ICalURL, config.Schedule.CacheFile, logger)
	}

	return clients, nil
}

// runOptions returns the remote execution defaults of the ssh block.
func runOptions(config *structs.Config) structs.RunOptions {
	return structs.RunOptions{
		MaxTries: config.SSH.MaxTries,
		Timeout:  time.Duration(config.SSH.Timeout) * time.Second,
		Backoff:  time.Duration(config.SSH.SleepTime) * time.Second,
	}
}
