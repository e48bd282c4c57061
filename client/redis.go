package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	metrics "github.com/armon/go-metrics"
	"github.com/redis/go-redis/v9"

	"github.com/bbbpool/bbbpool/logging"
)

// RedisStore keeps state documents as JSON strings in Redis.
type RedisStore struct {
	client redis.Cmdable
	prefix string
	logger *logging.Logger
}

// NewRedisStore connects lazily to the Redis server at addr.
func NewRedisStore(addr, password string, db int, project string, logger *logging.Logger) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewRedisStoreWithClient(client, project, logger)
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client redis.Cmdable, project string, logger *logging.Logger) *RedisStore {
	return &RedisStore{client: client, prefix: "bbbpool:" + project + ":", logger: logger}
}

// ReadState decodes the document stored under key.
func (r *RedisStore) ReadState(ctx context.Context, key string, v interface{}) (bool, error) {
	defer metrics.MeasureSince([]string{"state", "redis", "read"}, time.Now())

	content, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		r.logger.Debug("client/redis: no state tracking information is present at %v", r.prefix+key)
		return false, nil
	} else if err != nil {
		return false, fmt.Errorf("client/redis: unable to read %v: %v", r.prefix+key, err)
	}

	if err := json.Unmarshal(content, v); err != nil {
		return false, fmt.Errorf("client/redis: an error occurred while "+
			"attempting to deserialize state from %v: %v", r.prefix+key, err)
	}
	return true, nil
}

// PersistState replaces the document stored under key.
func (r *RedisStore) PersistState(ctx context.Context, key string, v interface{}) error {
	defer metrics.MeasureSince([]string{"state", "redis", "write"}, time.Now())

	content, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("client/redis: an error occurred when attempting to "+
			"serialize state for persistent storage: %v", err)
	}

	if err := r.client.Set(ctx, r.prefix+key, content, 0).Err(); err != nil {
		return fmt.Errorf("client/redis: unable to write %v: %v", r.prefix+key, err)
	}

	r.logger.Debug("client/redis: successfully stored state at %v", r.prefix+key)
	return nil
}
