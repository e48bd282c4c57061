package command

import (
	"context"
	"fmt"
	"strings"

	core "github.com/bbbpool/bbbpool/bbbpool"
	"github.com/bbbpool/bbbpool/client"
	"github.com/bbbpool/bbbpool/helper"
)

// MaintenanceCommand lets operators take slots out of the pool and give them
// back. Slots in maintenance are never enabled, cordoned nor acted on.
type MaintenanceCommand struct {
	Meta
}

// Help provides the help information for the maintenance command.
func (c *MaintenanceCommand) Help() string {
	helpText := `
Usage: bbbpool maintenance [options]

  Manages the list of slot numbers in maintenance. The list is shared by
  every copy of bbbpool through the configured state store and is
  applied from the next cycle on.
` + generalOptionsUsage + `
  Maintenance Options:

    -add=<numbers>
      Slot numbers to put in maintenance, for example "3,7-9".

    -remove=<numbers>
      Slot numbers to give back to the pool.

    -list
      Print the slot numbers in maintenance.

    -force
      Suppress the confirmation prompt.
`
	return strings.TrimSpace(helpText)
}

// Synopsis is provides a brief summary of the maintenance command.
func (c *MaintenanceCommand) Synopsis() string {
	return "Put slots in maintenance or give them back to the pool"
}

// Run updates or prints the maintenance list.
func (c *MaintenanceCommand) Run(args []string) int {
	var addFlag, removeFlag string
	var list, force bool

	flags := c.Meta.FlagSet("maintenance", FlagSetClient)
	flags.Usage = func() { c.UI.Error(c.Help()) }
	flags.StringVar(&addFlag, "add", "", "")
	flags.StringVar(&removeFlag, "remove", "", "")
	flags.BoolVar(&list, "list", false, "")
	flags.BoolVar(&force, "force", false, "")

	if err := flags.Parse(args); err != nil {
		return 1
	}

	if addFlag == "" && removeFlag == "" && !list {
		c.UI.Error(c.Help())
		return 1
	}

	add, err := helper.ParseNumbers(addFlag)
	if err != nil {
		c.UI.Error(fmt.Sprintf("Invalid -add value: %v", err))
		return 1
	}
	remove, err := helper.ParseNumbers(removeFlag)
	if err != nil {
		c.UI.Error(fmt.Sprintf("Invalid -remove value: %v", err))
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

	if len(add) > 0 || len(remove) > 0 {
		if !force {
			question := fmt.Sprintf("Are you sure you want to update the maintenance list "+
				"of the %q project?\n", config.Project)
			if len(add) > 0 {
				question += fmt.Sprintf("Slots %v will be taken out of the pool.\n", add)
			}
			if len(remove) > 0 {
				question += fmt.Sprintf("Slots %v will be given back to the pool.\n", remove)
			}

			confirmed, readable := c.Meta.Confirm(question)
			if !readable {
				return 1
			}
			if !confirmed {
				c.UI.Output("Cancelling, the maintenance list is unchanged.")
				return 0
			}
		}

		updated, err := core.UpdateMaintenance(ctx, store, add, remove, config.Pool.Size)
		if err != nil {
			c.UI.Error(err.Error())
			return 1
		}
		c.UI.Info(fmt.Sprintf("Maintenance list updated: %v", formatNumbers(updated.Numbers)))
		return 0
	}

	current, err := core.ReadMaintenance(ctx, store)
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}
	c.UI.Output(formatNumbers(current.Numbers))
	return 0
}

func formatNumbers(numbers []int) string {
	if len(numbers) == 0 {
		return "none"
	}
	parts := make([]string, len(numbers))
	for i, n := range numbers {
		parts[i] = fmt.Sprintf("%d", n)
	}
	return strings.Join(parts, ",")
}
