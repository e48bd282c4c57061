package command

import (
	"context"
	"fmt"
	"strings"

	core "github.com/bbbpool/bbbpool/bbbpool"
)

// StatusCommand prints the slots of the pool grouped by state.
type StatusCommand struct {
	Meta
}

// Help provides the help information for the status command.
func (c *StatusCommand) Help() string {
	helpText := `
Usage: bbbpool status [options]

  Polls the load balancer and the hoster, then prints the slot numbers
  grouped by hoster state, load balancer status and state, health and
  maintenance. The hosts themselves are not contacted.
` + generalOptionsUsage
	return strings.TrimSpace(helpText)
}

// Synopsis is provides a brief summary of the status command.
func (c *StatusCommand) Synopsis() string {
	return "Display the state of the pool"
}

// Run polls the pool and prints its status.
func (c *StatusCommand) Run(args []string) int {
	flags := c.Meta.FlagSet("status", FlagSetClient)
	flags.Usage = func() { c.UI.Error(c.Help()) }
	if err := flags.Parse(args); err != nil {
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

	runner, err := core.NewRunner(config, logger)
	if err != nil {
		c.UI.Error(fmt.Sprintf("Error setting up bbbpool: %v", err))
		return 1
	}
	defer runner.Close()

	sections, err := runner.Status(context.Background())
	if err != nil {
		c.UI.Error(fmt.Sprintf("Error polling the pool: %v", err))
		return 1
	}

	c.UI.Output(strings.TrimSuffix(core.FormatStatus(sections), "\n"))
	return 0
}
