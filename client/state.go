package client

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	metrics "github.com/armon/go-metrics"

	"github.com/bbbpool/bbbpool/bbbpool/structs"
	"github.com/bbbpool/bbbpool/logging"
)

// NewStateStore returns the state store backend selected in the state block.
func NewStateStore(config *structs.Config, logger *logging.Logger) (structs.StateStore, error) {
	c := config.State

	switch c.Backend {
	case "file":
		return NewFileStore(c.Path, config.Project, logger)
	case "consul":
		return NewConsulStore(c.ConsulAddress, c.ConsulToken, c.ConsulKeyRoot, logger)
	case "redis":
		return NewRedisStore(c.RedisAddress, c.RedisPassword, c.RedisDB, config.Project, logger), nil
	default:
		return nil, fmt.Errorf("the state backend %s is not supported", c.Backend)
	}
}

// FileStore keeps each state document in its own JSON file.
type FileStore struct {
	dir    string
	prefix string
	logger *logging.Logger
}

// NewFileStore creates dir if needed. Files are named after the project and
// the document key.
func NewFileStore(dir, project string, logger *logging.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("client/state: unable to create state directory %v: %v", dir, err)
	}
	return &FileStore{dir: dir, prefix: project, logger: logger}, nil
}

func (f *FileStore) path(key string) string {
	return filepath.Join(f.dir, f.prefix+"_"+key+".json")
}

// ReadState decodes the document stored under key.
func (f *FileStore) ReadState(_ context.Context, key string, v interface{}) (bool, error) {
	defer metrics.MeasureSince([]string{"state", "file", "read"}, time.Now())

	content, err := os.ReadFile(f.path(key))
	if os.IsNotExist(err) {
		f.logger.Debug("client/state: no state tracking information is present at %v", f.path(key))
		return false, nil
	} else if err != nil {
		return false, fmt.Errorf("client/state: unable to read %v: %v", f.path(key), err)
	}

	if err := json.Unmarshal(content, v); err != nil {
		return false, fmt.Errorf("client/state: an error occurred while "+
			"attempting to deserialize state from %v: %v", f.path(key), err)
	}
	return true, nil
}

// PersistState writes the document atomically through a rename.
func (f *FileStore) PersistState(_ context.Context, key string, v interface{}) error {
	defer metrics.MeasureSince([]string{"state", "file", "write"}, time.Now())

	content, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("client/state: an error occurred when attempting to "+
			"serialize state for persistent storage: %v", err)
	}

	tmp := f.path(key) + ".tmp"
	if err := os.WriteFile(tmp, content, 0640); err != nil {
		return fmt.Errorf("client/state: unable to write %v: %v", tmp, err)
	}
	if err := os.Rename(tmp, f.path(key)); err != nil {
		return fmt.Errorf("client/state: unable to write %v: %v", f.path(key), err)
	}

	f.logger.Debug("client/state: successfully stored state at %v", f.path(key))
	return nil
}
