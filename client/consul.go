package client

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	metrics "github.com/armon/go-metrics"
	consul "github.com/hashicorp/consul/api"

	"github.com/bbbpool/bbbpool/logging"
)

// ConsulStore is a wrapper to the Consul client provided by the Consul API
// library. It stores state documents under a key root in the Key/Value Store
// and provides the cycle lock used by agent replicas.
type ConsulStore struct {
	consul  *consul.Client
	keyRoot string
	token   string
	logger  *logging.Logger
}

// NewConsulStore is used to construct a new Consul client using the default
// configuration and supporting the ability to specify a Consul API address
// endpoint in the form of address:port.
func NewConsulStore(addr, token, keyRoot string, logger *logging.Logger) (*ConsulStore, error) {
	config := consul.DefaultConfig()
	config.Address = addr
	if token != "" {
		config.Token = token
	}

	c, err := consul.NewClient(config)
	if err != nil {
		return nil, err
	}

	return &ConsulStore{consul: c, keyRoot: keyRoot, token: token, logger: logger}, nil
}

func (c *ConsulStore) key(name string) string {
	return path.Join(c.keyRoot, name)
}

// ReadState attempts to read a state document from the Consul Key/Value
// Store. If no document is present, false is returned and v is left
// untouched.
func (c *ConsulStore) ReadState(ctx context.Context, name string, v interface{}) (bool, error) {
	defer metrics.MeasureSince([]string{"state", "consul", "read"}, time.Now())

	key := c.key(name)
	c.logger.Debug("client/consul: attempting to read state tracking "+
		"information from Consul at location %v", key)

	opts := (&consul.QueryOptions{Token: c.token}).WithContext(ctx)

	pair, _, err := c.consul.KV().Get(key, opts)
	if err != nil {
		return false, fmt.Errorf("client/consul: an error occurred while "+
			"attempting to read state information from Consul at location %v: %v", key, err)
	} else if pair == nil {
		c.logger.Debug("client/consul: no state tracking information is present "+
			"in Consul at location %v", key)
		return false, nil
	}

	if err := json.Unmarshal(pair.Value, v); err != nil {
		return false, fmt.Errorf("client/consul: an error occurred while "+
			"attempting to deserialize state retrieved from %v: %v", key, err)
	}

	return true, nil
}

// PersistState is responsible for persistently storing state tracking
// information in the Consul Key/Value Store.
func (c *ConsulStore) PersistState(ctx context.Context, name string, v interface{}) error {
	defer metrics.MeasureSince([]string{"state", "consul", "write"}, time.Now())

	key := c.key(name)

	value, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("client/consul: an error occurred when attempting to "+
			"serialize state for persistent storage: %v", err)
	}

	opts := (&consul.WriteOptions{Token: c.token}).WithContext(ctx)

	if _, err := c.consul.KV().Put(&consul.KVPair{Key: key, Value: value}, opts); err != nil {
		return fmt.Errorf("client/consul: an error occurred when attempting to "+
			"write state data to Consul at location %v: %v", key, err)
	}

	c.logger.Debug("client/consul: successfully stored state in Consul "+
		"at location %v", key)

	return nil
}

// CycleLock is a held leadership lock. Lost is closed when Consul revokes
// the lock, at which point no further action should be taken.
type CycleLock struct {
	lock *consul.Lock
	Lost <-chan struct{}
}

// AcquireCycleLock attempts once to acquire the lock guarding cycle
// execution. When the lock is already taken by another replica it returns a
// nil lock and no error.
func (c *ConsulStore) AcquireCycleLock(ttl time.Duration) (*CycleLock, error) {
	lock, err := c.consul.LockOpts(&consul.LockOptions{
		Key:          c.key("leader"),
		SessionName:  "bbbpool",
		SessionTTL:   ttl.String(),
		LockTryOnce:  true,
		LockWaitTime: time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("client/consul: unable to setup the leadership lock: %v", err)
	}

	lost, err := lock.Lock(nil)
	if err != nil {
		return nil, fmt.Errorf("client/consul: unable to acquire the leadership lock: %v", err)
	}
	if lost == nil {
		c.logger.Debug("client/consul: the leadership lock is held by another replica")
		return nil, nil
	}

	c.logger.Debug("client/consul: acquired the leadership lock at %v", c.key("leader"))
	return &CycleLock{lock: lock, Lost: lost}, nil
}

// Release resigns leadership. If this is unsuccessful there is not too much
// we can do, the session TTL eventually frees the lock.
func (l *CycleLock) Release() error {
	if l.lock == nil {
		return nil
	}
	return l.lock.Unlock()
}
