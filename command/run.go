package command

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	core "github.com/bbbpool/bbbpool/bbbpool"
	"github.com/bbbpool/bbbpool/bbbpool/structs"
)

// RunCommand runs a single reconciliation cycle and exits.
type RunCommand struct {
	Meta
}

// Help provides the help information for the run command.
func (c *RunCommand) Help() string {
	helpText := `
Usage: bbbpool run [options]

  Runs a single cycle: the pool is polled, the target capacity computed
  and the resulting plan applied. The cycle report is printed once the
  cycle ends. The exit code is 1 when the cycle was aborted.
` + generalOptionsUsage + `
  Run Options:

    -dry-run
      Compute and print the plan without acting on the pool.

    -json
      Print the cycle report as JSON.
`
	return strings.TrimSpace(helpText)
}

// Synopsis is provides a brief summary of the run command.
func (c *RunCommand) Synopsis() string {
	return "Run a single reconciliation cycle"
}

// Run triggers one cycle.
func (c *RunCommand) Run(args []string) int {
	var asJSON bool
	flags := &structs.Config{}

	f := c.Meta.FlagSet("run", FlagSetClient)
	f.Usage = func() { c.UI.Error(c.Help()) }
	f.BoolVar(&flags.DryRun, "dry-run", false, "")
	f.BoolVar(&asJSON, "json", false, "")

	if err := f.Parse(args); err != nil {
		return 1
	}

	config, err := c.Meta.Config(flags)
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

	ctx, cancel := context.WithTimeout(context.Background(), 2*config.RunIntervalDuration())
	defer cancel()

	rep, cycleErr := runner.RunCycle(ctx)

	if asJSON {
		out, err := json.MarshalIndent(rep, "", "  ")
		if err != nil {
			c.UI.Error(fmt.Sprintf("Error encoding the report: %v", err))
			return 1
		}
		c.UI.Output(string(out))
	} else {
		c.UI.Output(formatReport(rep))
	}

	if cycleErr != nil {
		c.UI.Error(fmt.Sprintf("The cycle was aborted: %v", cycleErr))
		return 1
	}
	return 0
}

func formatReport(rep *structs.CycleReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Cycle %s (%v)\n", rep.ID, rep.Duration)
	switch {
	case rep.Failsafe:
		b.WriteString("Failsafe mode is enabled, the plan was not applied\n")
	case rep.DryRun:
		b.WriteString("Dry run, the plan was not applied\n")
	}

	if p := rep.Plan; p != nil {
		fmt.Fprintf(&b, "Target: %d (delta %+d)\n", p.Target.Count, p.Delta)
		for _, line := range []struct {
			action  string
			domains []string
		}{
			{"enable", p.Enable},
			{"cordon", p.Cordon},
			{"retire", p.Retire},
			{"terminate", p.Terminate},
			{"clone", p.Clone},
			{"poweron", p.PowerOn},
		} {
			if len(line.domains) > 0 {
				fmt.Fprintf(&b, "  %s: %s\n", line.action, strings.Join(line.domains, ", "))
			}
		}
	}

	actions := make([]string, 0, len(rep.Applied))
	for action := range rep.Applied {
		actions = append(actions, action)
	}
	sort.Strings(actions)
	for _, action := range actions {
		if done := rep.Applied[action]; len(done) > 0 {
			fmt.Fprintf(&b, "Applied %s: %s\n", action, strings.Join(done, ", "))
		}
	}

	return strings.TrimSuffix(b.String(), "\n")
}
