package agent

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	metrics "github.com/armon/go-metrics"

	core "github.com/bbbpool/bbbpool/bbbpool"
	"github.com/bbbpool/bbbpool/bbbpool/structs"
	"github.com/bbbpool/bbbpool/command"
	"github.com/bbbpool/bbbpool/logging"
	"github.com/bbbpool/bbbpool/version"
)

// Command is the agent command strucutre used to track passed args as well as
// the CLI meta.
type Command struct {
	command.Meta
	args []string
}

// running tracks a started runner until its Start returns.
type running struct {
	runner *core.Runner
	done   chan struct{}
}

func start(runner *core.Runner) *running {
	r := &running{runner: runner, done: make(chan struct{})}
	go func() {
		defer close(r.done)
		runner.Start()
	}()
	return r
}

// stop waits for the cycle in flight before releasing the runner.
func (r *running) stop(logger *logging.Logger) {
	r.runner.Stop()
	<-r.done
	if err := r.runner.Close(); err != nil {
		logger.Warning("command/agent: unable to close the runner: %v", err)
	}
}

// Run triggers a run of the bbbpool agent by setting up and parsing the
// configuration and then initiating a new runner.
func (c *Command) Run(args []string) int {

	c.args = args
	conf := c.parseFlags()
	if conf == nil {
		return 1
	}

	logger, err := c.Meta.Logger(conf, false)
	if err != nil {
		c.UI.Error(fmt.Sprintf("unable to setup logging: %v", err))
		return 1
	}
	defer logger.Sync()

	// Initialize telemetry if this was configured by the user.
	if err := setupTelemetry(conf); err != nil {
		c.UI.Error(fmt.Sprintf("unable to setup telemetry correctly: %v", err))
		return 1
	}

	// Create the initial runner with the merged configuration parameters.
	runner, err := core.NewRunner(conf, logger)
	if err != nil {
		c.UI.Error(fmt.Sprintf("unable to setup bbbpool: %v", err))
		return 1
	}

	logger.Info("command/agent: running version %v", version.Get())
	logger.Info("command/agent: starting bbbpool agent for project %v...", conf.Project)
	current := start(runner)

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh,
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)

	for {
		s := <-signalCh
		switch s {
		case syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT:
			logger.Info("command/agent: caught signal %v, waiting for the running cycle", s)
			current.stop(logger)
			return 0

		case syscall.SIGHUP:
			logger.Info("command/agent: caught signal %v, reloading the configuration", s)

			// The log file may have been rotated.
			if err := logger.Reopen(); err != nil {
				c.UI.Error(fmt.Sprintf("unable to reopen the log file: %v", err))
			}

			// Reload the configuration in order to make proper use of SIGHUP. A
			// broken configuration keeps the current runner going.
			reloaded := c.parseFlags()
			if reloaded == nil {
				logger.Error("command/agent: unable to reload the configuration, keeping the current one")
				continue
			}

			next, err := core.NewRunner(reloaded, logger)
			if err != nil {
				logger.Error("command/agent: unable to setup bbbpool with the reloaded configuration: %v", err)
				continue
			}

			current.stop(logger)

			if err := logger.SetLevel(reloaded.LogLevel); err != nil {
				logger.Warning("command/agent: %v", err)
			}
			if err := setupTelemetry(reloaded); err != nil {
				logger.Warning("command/agent: unable to setup telemetry correctly: %v", err)
			}

			// Setup a new runner with the new configuration.
			current = start(next)
		}
	}
}

func setupTelemetry(conf *structs.Config) error {
	if conf.Telemetry == nil || conf.Telemetry.StatsdAddress == "" {
		return nil
	}

	sink, err := metrics.NewStatsdSink(conf.Telemetry.StatsdAddress)
	if err != nil {
		return err
	}

	metricsConf := metrics.DefaultConfig("bbbpool")
	metricsConf.EnableHostname = false
	_, err = metrics.NewGlobal(metricsConf, sink)
	return err
}

func (c *Command) parseFlags() *structs.Config {

	// An empty new config is setup here to allow us to fill this with any passed
	// cli flags for later merging.
	cliConfig := &structs.Config{
		Telemetry: &structs.TelemetryConfig{},
	}

	flags := c.Meta.FlagSet("agent", command.FlagSetClient)
	flags.Usage = func() { c.UI.Error(c.Help()) }

	// Top level configuration flags
	flags.IntVar(&cliConfig.RunInterval, "run-interval", 0, "")
	flags.BoolVar(&cliConfig.DryRun, "dry-run", false, "")
	flags.BoolVar(&cliConfig.LeaderLock, "leader-lock", false, "")
	flags.StringVar(&cliConfig.CapacityPolicy, "capacity-policy", "", "")

	// Telemetry configuration flags
	flags.StringVar(&cliConfig.Telemetry.StatsdAddress, "statsd-address", "", "")

	if err := flags.Parse(c.args); err != nil {
		return nil
	}

	config, err := c.Meta.Config(cliConfig)
	if err != nil {
		c.UI.Error(err.Error())
		return nil
	}

	return config
}

// Help provides the help information for the agent command.
func (c *Command) Help() string {
	helpText := `
  Usage: bbbpool agent [options]

    Starts the bbbpool agent and runs a cycle every run interval until
    an interrupt is received. A SIGHUP reopens the log file and reloads
    the configuration. The agent configuration primarily comes from the
    config files used.

  General Options:

    -config=<path>
      The path to either a single config file or a directory of config
      files to use for configuring the bbbpool agent. bbbpool processes
      configuration files in lexicographic order.

    -env-file=<path>
      A dotenv file whose variables are added to the environment before
      the BBBPOOL_* secrets are read. Defaults to .env, ignored when
      missing.

    -log-level=<level>
      Specify the verbosity level of the logs. The default is INFO.

    -project=<name>
      Overrides the project of the configuration.

  Agent Options:

    -run-interval=<minutes>
      The time period in minutes between two cycles. The default is 5.

    -capacity-policy=<policy>
      The predictors used to compute the target capacity: schedule,
      load or both. The default is both.

    -dry-run
      Compute and report the plans without acting on the pool.

    -leader-lock
      Hold a Consul lock while running cycles so only one agent acts on
      the pool.

    -statsd-address=<address:port>
      Specifies the address of a statsd server to forward metrics
      to and should include the port.
`
	return strings.TrimSpace(helpText)
}

// Synopsis is provides a brief summary of the agent command.
func (c *Command) Synopsis() string {
	return "Runs a bbbpool agent"
}
