package base

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bbbpool/bbbpool/bbbpool/structs"
)

// Define the default locations used when nothing is configured.
const (
	DefaultDataDir        = "/var/lib/bbbpool"
	DefaultRecordingsPath = "/var/bigbluebutton/published/presentation"
	LocalConsulAddress    = "localhost:8500"
	LocalRedisAddress     = "localhost:6379"
)

// DefaultConfig returns a default configuration struct with sane defaults.
func DefaultConfig() *structs.Config {

	return &structs.Config{
		LogLevel:          "INFO",
		DataDir:           DefaultDataDir,
		Hoster:            "scaleway",
		CapacityPolicy:    structs.PolicyBoth,
		RunInterval:       5,
		PollMaxWorkers:    10,
		ActionMaxWorkers:  5,
		CloneMaxWorkers:   3,
		FailsafeThreshold: 3,

		Pool: &structs.Pool{
			MinimumRatio: 0.2,
		},
		Scalelite: &structs.Scalelite{
			Container:      "scalelite-api",
			RecordingsPath: "/mnt/scalelite-recordings/var/bigbluebutton/published/presentation",
		},
		SSH: &structs.SSH{
			User:      "root",
			Port:      22,
			Timeout:   30,
			MaxTries:  3,
			SleepTime: 5,
		},
		Schedule: &structs.Schedule{
			WindowDays: 7,
		},
		Load: &structs.Load{
			ParticipantsCapacity:   200,
			MeetingsCapacity:       20,
			ParticipantsFactorLow:  1.2,
			ParticipantsFactorHigh: 1.5,
			ParticipantsThreshold:  1.1,
			MeetingsFactorLow:      1.2,
			MeetingsFactorHigh:     1.5,
			MeetingsThreshold:      1.1,
		},
		Termination: &structs.Termination{
			MeetingsMaxDuration:             720,
			RecordingsMaxProcessingDuration: 1440,
			RecordingsPath:                  DefaultRecordingsPath,
		},
		Clone: &structs.Clone{},
		State: &structs.State{
			Backend: "file",
		},

		Telemetry: &structs.TelemetryConfig{},
		Notification: &structs.Notification{
			WarningInterval: 86400,
			ErrorInterval:   3600,
		},
		Report: &structs.Report{},
	}
}

// DevConfig returns a configuration struct with sane defaults for development
// and testing purposes. Cycles only compute and report their plans.
func DevConfig() *structs.Config {
	config := DefaultConfig()
	config.LogLevel = "DEBUG"
	config.DataDir = filepath.Join(os.TempDir(), "bbbpool")
	config.DryRun = true
	config.State.ConsulAddress = LocalConsulAddress
	config.State.RedisAddress = LocalRedisAddress
	return config
}

// LoadConfig loads the configuration at the given path whether the specified
// path is an individual file or a directory of numerous configuration files.
func LoadConfig(path string) (*structs.Config, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	if fi.IsDir() {
		return LoadConfigDir(path)
	}

	cleaned := filepath.Clean(path)
	config, err := ParseConfigFile(cleaned)
	if err != nil {
		return nil, fmt.Errorf("error loading %s: %s", cleaned, err)
	}

	return config, nil
}

// LoadConfigDir loads all the configurations in the given directory
// in lexicographic order.
func LoadConfigDir(dir string) (*structs.Config, error) {
	f, err := os.Open(dir)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf(
			"configuration path must be a directory: %s", dir)
	}

	var files []string
	err = nil
	for err != io.EOF {
		var entries []os.DirEntry
		entries, err = f.ReadDir(128)
		if err != nil && err != io.EOF {
			return nil, err
		}

		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}

			// Only HCL and its JSON flavour can be parsed.
			name := entry.Name()
			if !strings.HasSuffix(name, ".hcl") && !strings.HasSuffix(name, ".json") {
				continue
			}

			files = append(files, filepath.Join(dir, name))
		}
	}

	// If there are no files, there is no need to continue and therefore we exit
	// quickly.
	if len(files) == 0 {
		return &structs.Config{}, nil
	}

	sort.Strings(files)

	var result *structs.Config

	for _, f := range files {
		config, err := ParseConfigFile(f)
		if err != nil {
			return nil, fmt.Errorf("error loading %s: %s", f, err)
		}

		if result == nil {
			result = config
		} else {
			result = result.Merge(config)
		}
	}

	return result, nil
}

// Assemble layers the defaults, the configuration found at path, the values
// set from the command line and the secrets of the environment, in that
// order, before validating the result. An empty path skips the file layer and
// envFile is only read when it exists.
func Assemble(path, envFile string, flags *structs.Config) (*structs.Config, error) {
	config := DefaultConfig()

	if path != "" {
		current, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		config = config.Merge(current)
	}

	if flags != nil {
		config = config.Merge(flags)
	}

	if err := LoadEnv(config, envFile); err != nil {
		return nil, err
	}

	config.Finalize()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}
