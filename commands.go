package main

import (
	"os"

	"github.com/mitchellh/cli"

	"github.com/bbbpool/bbbpool/command"
	"github.com/bbbpool/bbbpool/command/agent"
	"github.com/bbbpool/bbbpool/version"
)

// Commands returns the mapping of CLI commands for bbbpool. The meta
// parameter lets you set meta options for all commands.
func Commands(metaPtr *command.Meta) map[string]cli.CommandFactory {
	if metaPtr == nil {
		metaPtr = new(command.Meta)
	}

	meta := *metaPtr
	if meta.UI == nil {
		meta.UI = &cli.BasicUi{
			Reader:      os.Stdin,
			Writer:      os.Stdout,
			ErrorWriter: os.Stderr,
		}
	}

	return map[string]cli.CommandFactory{
		"agent": func() (cli.Command, error) {
			return &agent.Command{
				Meta: meta,
			}, nil
		},
		"run": func() (cli.Command, error) {
			return &command.RunCommand{
				Meta: meta,
			}, nil
		},
		"status": func() (cli.Command, error) {
			return &command.StatusCommand{
				Meta: meta,
			}, nil
		},
		"check": func() (cli.Command, error) {
			return &command.CheckCommand{
				Meta: meta,
			}, nil
		},
		"restart": func() (cli.Command, error) {
			return &command.RestartCommand{
				Meta: meta,
			}, nil
		},
		"maintenance": func() (cli.Command, error) {
			return &command.MaintenanceCommand{
				Meta: meta,
			}, nil
		},
		"init": func() (cli.Command, error) {
			return &command.InitCommand{
				Meta: meta,
			}, nil
		},
		"failsafe": func() (cli.Command, error) {
			return &command.FailsafeCommand{
				Meta: meta,
			}, nil
		},
		"version": func() (cli.Command, error) {
			return &command.VersionCommand{
				Version:           version.Version,
				VersionPrerelease: version.VersionPrerelease,
				UI:                meta.UI,
			}, nil
		},
	}
}
