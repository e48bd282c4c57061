package command

import (
	"context"
	"fmt"
	"strings"

	core "github.com/bbbpool/bbbpool/bbbpool"
	"github.com/bbbpool/bbbpool/bbbpool/structs"
	"github.com/bbbpool/bbbpool/client"
)

// FailsafeCommand is a command implementation that allows operators to
// place the controller in or take the controller out of failsafe mode.
type FailsafeCommand struct {
	Meta
	args []string
}

// Help provides the help information for the failsafe command.
func (c *FailsafeCommand) Help() string {
	helpText := `
Usage: bbbpool failsafe [options]

  Allows an operator to administratively control the failsafe behavior
  of bbbpool. When bbbpool enters failsafe mode, all running copies of
  bbbpool will prohibit any action on the pool.

  Failsafe mode is entered after consecutive cycles failed to clone the
  machines the pool needed. It is intended to stabilize the pool while
  the hoster misbehaves.

  To exit failsafe mode, an operator must explicitly remove the failsafe
  lock after identifying the root cause of the failures.
` + generalOptionsUsage + `
  Failsafe Mode Options:

    -disable
      Disable the global failsafe lock. All copies of bbbpool will
      return to normal operations.

    -enable
      Enable the global failsafe lock. All copies of bbbpool will
      be prohibited from taking any action on the pool.

    -reason=<text>
      The reason recorded with the lock when enabling it.

    -force
      Suppress confirmation prompts when enabling or disabling the
      global failsafe lock.
`
	return strings.TrimSpace(helpText)
}

// Synopsis is provides a brief summary of the failsafe command.
func (c *FailsafeCommand) Synopsis() string {
	return "Provide an administrative interface to control failsafe mode."
}

// Run triggers the failsafe command to update the persisted state tracking
// data and manipulate the failsafe lock.
func (c *FailsafeCommand) Run(args []string) int {
	// The operator must specify at least one operation.
	if len(args) == 0 {
		c.UI.Error(c.Help())
		return 1
	}

	// Parse flags and generate a resulting configuration.
	c.args = args
	mode := c.parseFlags()
	if mode == nil {
		return 1
	}

	// Check that we were sent either enable or disable, but not both.
	if (mode.Enable && mode.Disable) || (!mode.Enable && !mode.Disable) {
		c.UI.Error(c.Help())
		return 1
	}

	config, err := c.Meta.Config(nil)
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}

	logger, err := c.Meta.Logger(config, true)
	if err != nil {
		c.UI.Error(fmt.Sprintf("Error setting up logging: %v", err))
		return 1
	}
	defer logger.Sync()

	store, err := client.NewStateStore(config, logger)
	if err != nil {
		c.UI.Error(fmt.Sprintf("An error occurred while attempting to initialize "+
			"the state store: %v", err))
		return 1
	}

	ctx := context.Background()

	// Attempt to load state tracking data.
	state, err := core.ReadFailsafeState(ctx, store)
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}

	// If failsafe mode is already in the desired state, report and take no
	// action.
	if state.Enabled && mode.Enable || !state.Enabled && mode.Disable {
		c.UI.Warn(fmt.Sprintf("Failsafe mode is already in desired state \"%vd\""+
			", no action required.", mode.Verb))
		return 0
	}

	// If the user has not disabled confirmation prompts, ask for confirmation.
	if !mode.Force {
		question := fmt.Sprintf("Are you sure you want to %s the global failsafe "+
			"lock of the %q project?\n", mode.Verb, config.Project)

		// If we're enabling failsafe mode, give the user a clear warning about
		// the implications.
		if mode.Enable {
			question = fmt.Sprintf("%vNo action on the pool will be permitted "+
				"from any running copies of bbbpool.\n", question)
		}

		confirmed, readable := c.Meta.Confirm(question)
		if !readable {
			return 1
		}
		if !confirmed {
			c.UI.Output(fmt.Sprintf("Cancelling, will not %v failsafe mode.", mode.Verb))
			return 0
		}
	}

	// Set desired failsafe mode.
	if err := core.SetFailsafeMode(ctx, store, state, mode.Enable, mode.Reason, true, logger); err != nil {
		c.UI.Error(fmt.Sprintf("An error occurred while attempting to %v "+
			"failsafe mode: %v", mode.Verb, err))
		return 1
	}

	c.UI.Info(fmt.Sprintf("Successfully %vd failsafe mode.", mode.Verb))

	return 0
}

func (c *FailsafeCommand) parseFlags() *structs.FailsafeMode {
	mode := &structs.FailsafeMode{}

	// Initialize command flags.
	flags := c.Meta.FlagSet("failsafe", FlagSetClient)
	flags.Usage = func() { c.UI.Error(c.Help()) }

	// Failsafe mode configuration flags.
	flags.BoolVar(&mode.Enable, "enable", false, "Enable failsafe mode")
	flags.BoolVar(&mode.Disable, "disable", false, "Disable failsafe mode")
	flags.BoolVar(&mode.Force, "force", false, "Supress confirmation prompts.")
	flags.StringVar(&mode.Reason, "reason", "enabled by an operator", "")

	// Parse the passed CLI flags.
	if err := flags.Parse(c.args); err != nil {
		return nil
	}

	// Determine the appropriate verbage for confirmation prompts.
	mode.Verb = "enable"
	if mode.Disable {
		mode.Verb = "disable"
	}

	return mode
}
