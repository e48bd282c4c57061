package command

import (
	"context"
	"fmt"
	"strings"

	core "github.com/bbbpool/bbbpool/bbbpool"
)

// CheckCommand verifies that the hoster, the DNS and the load balancer agree
// on the slots of the pool.
type CheckCommand struct {
	Meta
}

// Help provides the help information for the check command.
func (c *CheckCommand) Help() string {
	helpText := `
Usage: bbbpool check [options]

  Checks the consistency of the pool. The hoster check lists the virtual
  machine slots without a machine and the domains that do not resolve to
  the public address of their machine. The pool check compares the
  addresses reported by the hosts with the DNS and the load balancer
  inventory. The exit code is 2 when a problem is found.
` + generalOptionsUsage + `
  Check Options:

    -hoster-only
      Skip the pool check, which connects to every running host.
`
	return strings.TrimSpace(helpText)
}

// Synopsis is provides a brief summary of the check command.
func (c *CheckCommand) Synopsis() string {
	return "Check the consistency of the hoster, DNS and load balancer"
}

// Run runs the checks and prints their results.
func (c *CheckCommand) Run(args []string) int {
	var hosterOnly bool

	flags := c.Meta.FlagSet("check", FlagSetClient)
	flags.Usage = func() { c.UI.Error(c.Help()) }
	flags.BoolVar(&hosterOnly, "hoster-only", false, "")
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

	clients, err := core.NewClients(config, logger)
	if err != nil {
		c.UI.Error(fmt.Sprintf("Error setting up the clients: %v", err))
		return 1
	}

	checker, err := core.NewChecker(config, clients, logger)
	if err != nil {
		c.UI.Error(fmt.Sprintf("Error setting up the checker: %v", err))
		return 1
	}

	ctx := context.Background()
	ok := true

	hoster, err := checker.Hoster(ctx)
	if err != nil {
		c.UI.Error(fmt.Sprintf("Error checking the hoster: %v", err))
		return 1
	}
	c.UI.Output("== Hoster ==")
	c.UI.Output(fmt.Sprintf("* machines: %d", hoster.Machines))
	c.UI.Output(fmt.Sprintf("* missing: %v", formatNumbers(hoster.Missing)))
	c.UI.Output(fmt.Sprintf("* dns mismatch: %v", formatNumbers(hoster.DNSMismatch)))
	ok = ok && hoster.OK()

	if !hosterOnly {
		pool, err := checker.Pool(ctx)
		if err != nil {
			c.UI.Error(fmt.Sprintf("Error checking the pool: %v", err))
			return 1
		}
		missing := "none"
		if len(pool.Missing) > 0 {
			missing = strings.Join(pool.Missing, ",")
		}
		c.UI.Output("== Pool ==")
		c.UI.Output(fmt.Sprintf("* servers: %d/%d (%d enabled)", pool.Count, pool.Size, pool.Enabled))
		c.UI.Output(fmt.Sprintf("* unique addresses: %d", pool.UniqueIPs))
		c.UI.Output(fmt.Sprintf("* missing: %v", missing))
		c.UI.Output(fmt.Sprintf("* dns mismatch: %v", formatNumbers(pool.DNSMismatch)))
		ok = ok && pool.OK()
	}

	if !ok {
		c.UI.Warn("The pool is not consistent.")
		return 2
	}
	c.UI.Info("OK")
	return 0
}
