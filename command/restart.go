package command

import (
	"context"
	"fmt"
	"strings"

	core "github.com/bbbpool/bbbpool/bbbpool"
)

// RestartCommand restarts the conferencing service of the hosts whose
// diagnostics report it KO.
type RestartCommand struct {
	Meta
}

// Help provides the help information for the restart command.
func (c *RestartCommand) Help() string {
	helpText := `
Usage: bbbpool restart [options]

  Runs the host diagnostics of every running slot and restarts the
  BigBlueButton service of those reporting it KO with
  "bbb-conf --restart".
` + generalOptionsUsage
	return strings.TrimSpace(helpText)
}

// Synopsis is provides a brief summary of the restart command.
func (c *RestartCommand) Synopsis() string {
	return "Restart the conferencing service of unhealthy hosts"
}

// Run restarts the unhealthy hosts.
func (c *RestartCommand) Run(args []string) int {
	flags := c.Meta.FlagSet("restart", FlagSetClient)
	flags.Usage = func() { c.UI.Error(c.Help()) }
	if err := flags.Parse(args); err != nil {
		return 1
	}

	config, err := c.Meta.Config(nil)
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}

	logger, err := c.Meta.Logger(config, false)
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

	restarted, err := runner.RestartUnhealthy(context.Background())
	if err != nil {
		c.UI.Error(fmt.Sprintf("Error restarting the unhealthy hosts: %v", err))
		return 1
	}

	if len(restarted) == 0 {
		c.UI.Output("No server was restarted.")
		return 0
	}
	c.UI.Info(fmt.Sprintf("Restarted %s", strings.Join(restarted, ", ")))
	return 0
}
