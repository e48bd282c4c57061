package main

import (
	"fmt"
	"os"

	"github.com/mitchellh/cli"

	"github.com/bbbpool/bbbpool/version"
)

func main() {
	os.Exit(realMain(os.Args[1:]))
}

func realMain(args []string) int {
	c := &cli.CLI{
		Name:         "bbbpool",
		Version:      version.Get(),
		Args:         args,
		Commands:     Commands(nil),
		Autocomplete: true,
		HelpWriter:   os.Stdout,
	}

	exitCode, err := c.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error executing CLI: %s\n", err.Error())
		return 1
	}

	return exitCode
}
