package command

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/mitchellh/cli"

	core "github.com/bbbpool/bbbpool/bbbpool"
	"github.com/bbbpool/bbbpool/client"
	"github.com/bbbpool/bbbpool/logging"
)

// testConfig writes a configuration backed by a file state store and returns
// the client flags pointing at it along with the state store.
func testConfig(t *testing.T) ([]string, *client.FileStore) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "bbbpool.hcl")
	content := `
project         = "demo"
capacity_policy = "load"
data_dir        = "` + dir + `"

pool {
  domain_template   = "bbb-wX.example.com"
  hostname_template = "bbb-wX"
  size              = 10
  capacity          = 1000
}

scalelite {
  host = "scalelite.example.com"
}
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("err: %v", err)
	}

	store, err := client.NewFileStore(filepath.Join(dir, "state"), "demo", logging.NewNop())
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	return []string{"-config=" + path, "-env-file="}, store
}

func TestCommand_Implements(t *testing.T) {
	var _ cli.Command = &FailsafeCommand{}
	var _ cli.Command = &MaintenanceCommand{}
	var _ cli.Command = &RunCommand{}
	var _ cli.Command = &StatusCommand{}
	var _ cli.Command = &CheckCommand{}
	var _ cli.Command = &RestartCommand{}
	var _ cli.Command = &InitCommand{}
	var _ cli.Command = &VersionCommand{}
}

func TestFailsafeCommand_Run(t *testing.T) {
	flags, store := testConfig(t)
	ctx := context.Background()

	ui := cli.NewMockUi()
	cmd := &FailsafeCommand{Meta: Meta{UI: ui}}

	if code := cmd.Run([]string{"-enable", "-disable"}); code != 1 {
		t.Fatalf("expected exit code 1 got %v", code)
	}

	if code := cmd.Run(append(flags, "-enable", "-force", "-reason=hoster outage")); code != 0 {
		t.Fatalf("expected exit code 0 got %v: %s", code, ui.ErrorWriter.String())
	}

	state, err := core.ReadFailsafeState(ctx, store)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if !state.Enabled || state.Reason != "hoster outage" {
		t.Fatalf("expected failsafe mode to be enabled got %+v", state)
	}

	// A refused confirmation leaves the lock in place.
	ui = cli.NewMockUi()
	ui.InputReader = strings.NewReader("n\n")
	cmd = &FailsafeCommand{Meta: Meta{UI: ui}}
	if code := cmd.Run(append(flags, "-disable")); code != 0 {
		t.Fatalf("expected exit code 0 got %v", code)
	}
	if state, _ := core.ReadFailsafeState(ctx, store); !state.Enabled {
		t.Fatalf("expected failsafe mode to stay enabled")
	}

	ui = cli.NewMockUi()
	ui.InputReader = strings.NewReader("y\n")
	cmd = &FailsafeCommand{Meta: Meta{UI: ui}}
	if code := cmd.Run(append(flags, "-disable")); code != 0 {
		t.Fatalf("expected exit code 0 got %v: %s", code, ui.ErrorWriter.String())
	}
	if state, _ := core.ReadFailsafeState(ctx, store); state.Enabled {
		t.Fatalf("expected failsafe mode to be disabled")
	}
	if !strings.Contains(ui.OutputWriter.String(), "Successfully disabled failsafe mode.") {
		t.Fatalf("unexpected output %q", ui.OutputWriter.String())
	}
}

func TestMaintenanceCommand_Run(t *testing.T) {
	flags, store := testConfig(t)

	ui := cli.NewMockUi()
	cmd := &MaintenanceCommand{Meta: Meta{UI: ui}}

	if code := cmd.Run(append(flags, "-add=2,5-6", "-force")); code != 0 {
		t.Fatalf("expected exit code 0 got %v: %s", code, ui.ErrorWriter.String())
	}

	list, err := core.ReadMaintenance(context.Background(), store)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if expected := []int{2, 5, 6}; !reflect.DeepEqual(list.Numbers, expected) {
		t.Fatalf("expected %v got %v", expected, list.Numbers)
	}

	// Numbers outside of the pool are rejected.
	ui = cli.NewMockUi()
	cmd = &MaintenanceCommand{Meta: Meta{UI: ui}}
	if code := cmd.Run(append(flags, "-add=11", "-force")); code != 1 {
		t.Fatalf("expected exit code 1 got %v", code)
	}

	ui = cli.NewMockUi()
	ui.InputReader = strings.NewReader("y\n")
	cmd = &MaintenanceCommand{Meta: Meta{UI: ui}}
	if code := cmd.Run(append(flags, "-remove=5")); code != 0 {
		t.Fatalf("expected exit code 0 got %v: %s", code, ui.ErrorWriter.String())
	}

	ui = cli.NewMockUi()
	cmd = &MaintenanceCommand{Meta: Meta{UI: ui}}
	if code := cmd.Run(append(flags, "-list")); code != 0 {
		t.Fatalf("expected exit code 0 got %v: %s", code, ui.ErrorWriter.String())
	}
	if out := strings.TrimSpace(ui.OutputWriter.String()); out != "2,6" {
		t.Fatalf("expected %v got %v", "2,6", out)
	}
}

func TestInitCommand_Run(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	dir := t.TempDir()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("err: %v", err)
	}
	defer os.Chdir(wd)

	ui := cli.NewMockUi()
	cmd := &InitCommand{Meta: Meta{UI: ui}}

	if code := cmd.Run([]string{"extra"}); code != 1 {
		t.Fatalf("expected exit code 1 got %v", code)
	}
	if code := cmd.Run(nil); code != 0 {
		t.Fatalf("expected exit code 0 got %v: %s", code, ui.ErrorWriter.String())
	}

	// The example must be a valid configuration.
	meta := Meta{UI: cli.NewMockUi(), configPath: filepath.Join(dir, DefaultInitName)}
	if _, err := meta.Config(nil); err != nil {
		t.Fatalf("expected the example to be valid got %v", err)
	}

	// An existing file is never overwritten.
	if code := cmd.Run(nil); code != 1 {
		t.Fatalf("expected exit code 1 got %v", code)
	}
}

func TestVersionCommand_Run(t *testing.T) {
	ui := cli.NewMockUi()
	cmd := &VersionCommand{Version: "0.3.0", VersionPrerelease: "dev", UI: ui}

	if code := cmd.Run(nil); code != 0 {
		t.Fatalf("expected exit code 0 got %v", code)
	}
	if out := strings.TrimSpace(ui.OutputWriter.String()); out != "bbbpool v0.3.0-dev" {
		t.Fatalf("expected %v got %v", "bbbpool v0.3.0-dev", out)
	}
}
