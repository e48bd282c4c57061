package command

import (
	"fmt"
	"os"
	"strings"
)

const (
	// DefaultInitName is the default name we use when
	// initializing the example file
	DefaultInitName = "bbbpool.hcl"
)

// InitCommand writes an example configuration file.
type InitCommand struct {
	Meta
}

// Help provides the help information for the init command.
func (c *InitCommand) Help() string {
	helpText := `
Usage: bbbpool init

  Creates an example configuration file that can be used as a starting
  point to customize further. Secrets are better left out of the file
  and given through BBBPOOL_* environment variables or a .env file.
`
	return strings.TrimSpace(helpText)
}

// Synopsis is provides a brief summary of the init command.
func (c *InitCommand) Synopsis() string {
	return "Create an example bbbpool configuration file"
}

// Run triggers the init command to write the bbbpool.hcl file out to the
// current directory.
func (c *InitCommand) Run(args []string) int {

	// The command should be used with 0 extra flags.
	if len(args) != 0 {
		c.UI.Error(c.Help())
		return 1
	}

	// Check if the file already exists.
	_, err := os.Stat(DefaultInitName)
	if err != nil && !os.IsNotExist(err) {
		c.UI.Error(fmt.Sprintf("Failed to stat '%s': %v", DefaultInitName, err))
		return 1
	}
	if !os.IsNotExist(err) {
		c.UI.Error(fmt.Sprintf("Configuration file '%s' already exists", DefaultInitName))
		return 1
	}

	// Write the example file to the relative local directory where bbbpool
	// was invoked from.
	err = os.WriteFile(DefaultInitName, []byte(defaultConfiguration), 0640)
	if err != nil {
		c.UI.Error(fmt.Sprintf("Failed to write '%s': %v", DefaultInitName, err))
		return 1
	}

	c.UI.Output(fmt.Sprintf("Example configuration file written to %s", DefaultInitName))
	return 0
}

var defaultConfiguration = strings.TrimSpace(`
project         = "demo"
log_level       = "INFO"
data_dir        = "/var/lib/bbbpool"
hoster          = "scaleway"
capacity_policy = "both"
run_interval    = 5

pool {
  domain_template      = "bbb-wX.example.com"
  hostname_template    = "bbb-wX"
  dns_subdomain        = "pool"
  dns_zone             = "example.com"
  size                 = 10
  capacity             = 2000
  bare_metal_count     = 0
  max_recycling_uptime = 1209600
  minimum_ratio        = 0.2
}

scalelite {
  host      = "scalelite.example.com"
  container = "scalelite-api"
}

ssh {
  user     = "root"
  key_file = "/etc/bbbpool/id_ed25519"
}

schedule {
  ical_url = "https://calendar.example.com/bbb.ics"
}

load {
  participants_capacity = 200
  meetings_capacity     = 20
}

clone {
  image_name      = "bbb-template"
  commercial_type = "GP1-S"
}

scaleway {
  zone = "fr-par-1"
}

state {
  backend = "file"
}

notification {
  warning_interval = 86400
  error_interval   = 3600
}
`) + "\n"
