package command

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/mitchellh/cli"

	"github.com/bbbpool/bbbpool/bbbpool/structs"
	"github.com/bbbpool/bbbpool/command/base"
	"github.com/bbbpool/bbbpool/logging"
)

// FlagSetFlags is an enum to define what flags are present in the
// default FlagSet returned by Meta.FlagSet.
type FlagSetFlags uint

// Consts which define the flags present in the default FlagSet.
const (
	FlagSetNone    FlagSetFlags = 0
	FlagSetClient  FlagSetFlags = 1 << iota
	FlagSetDefault              = FlagSetClient
)

// Meta contains the meta-options and functionality that nearly every
// bbbpool command inherits.
type Meta struct {
	UI cli.Ui

	// Values set by the client flags.
	configPath string
	envFile    string
	logLevel   string
	project    string
}

// FlagSet returns a FlagSet with the common flags that every command
// implements. The exact behavior of FlagSet can be configured using the
// flags as the second parameter.
func (m *Meta) FlagSet(n string, fs FlagSetFlags) *flag.FlagSet {
	f := flag.NewFlagSet(n, flag.ContinueOnError)

	if fs&FlagSetClient != 0 {
		f.StringVar(&m.configPath, "config", "", "")
		f.StringVar(&m.envFile, "env-file", ".env", "")
		f.StringVar(&m.logLevel, "log-level", "", "")
		f.StringVar(&m.project, "project", "", "")
	}

	// Create an io.Writer that writes to our UI properly for errors.
	errR, errW := io.Pipe()
	errScanner := bufio.NewScanner(errR)
	go func() {
		for errScanner.Scan() {
			m.UI.Error(errScanner.Text())
		}
	}()
	f.SetOutput(errW)

	return f
}

// Config assembles the configuration of the command from the defaults, the
// -config path, the environment and the values of the client flags merged
// into flags.
func (m *Meta) Config(flags *structs.Config) (*structs.Config, error) {
	if flags == nil {
		flags = &structs.Config{}
	}
	if m.logLevel != "" {
		flags.LogLevel = m.logLevel
	}
	if m.project != "" {
		flags.Project = m.project
	}

	config, err := base.Assemble(m.configPath, m.envFile, flags)
	if err != nil {
		return nil, fmt.Errorf("error loading configuration: %v", err)
	}
	return config, nil
}

// Logger returns the logger described by config. Operator commands only log
// warnings unless a level is explicitly requested so their output stays
// readable.
func (m *Meta) Logger(config *structs.Config, quiet bool) (*logging.Logger, error) {
	level := config.LogLevel
	if quiet && m.logLevel == "" {
		level = "WARN"
	}
	return logging.New(level, config.LogFile, config.LogJSON)
}

// Confirm asks the operator to confirm question with an exact 'y'. The
// second value reports whether the answer could be read.
func (m *Meta) Confirm(question string) (bool, bool) {
	answer, err := m.UI.Ask(fmt.Sprintf("%vConfirm [y/N]: ", question))
	if err != nil {
		m.UI.Error(fmt.Sprintf("Failed to parse answer: %v", err))
		return false, false
	}

	// Validate the confirmation response.
	switch {
	case answer == "" || strings.ToLower(answer)[0] == 'n':
		return false, true
	case strings.ToLower(answer)[0] == 'y' && len(answer) > 1:
		m.UI.Output("For confirmation, an exact 'y' is required.")
		return false, true
	case answer != "y":
		m.UI.Output("No confirmation detected. For confirmation, an exact 'y' " +
			"is required.")
		return false, false
	}
	return true, true
}

const generalOptionsUsage = `
  General Options:

    -config=<path>
      The path to either a single config file or a directory of config
      files. Files are processed in lexicographic order.

    -env-file=<path>
      A dotenv file whose variables are added to the environment before
      the BBBPOOL_* secrets are read. Defaults to .env, ignored when
      missing.

    -log-level=<level>
      Overrides the log_level of the configuration.

    -project=<name>
      Overrides the project of the configuration.
`
