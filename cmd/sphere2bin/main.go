// Package main provides the sphere2bin CLI entrypoint.
//
// Without a command, sphere2bin behaves like `sphere2bin scan`. Only scan
// writes; every other command is read-only.
//
// Usage:
//
//	sphere2bin [options] <input|->
//	sphere2bin <command> [subcommand] [options]
//
// Exit codes:
//   - 0: success
//   - 1: input error (bad arguments, unreadable input)
//   - 2: storage failure
//   - 130: canceled by signal
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/sphere2bin/cli/cmd"
	"github.com/justapithecus/sphere2bin/types"
)

// Commit is set via ldflags at build time.
var commit = "unknown"

func main() {
	app := &cli.App{
		Name:           "sphere2bin",
		Usage:          "Extract blocks from Sphere 1 cassette images",
		Version:        fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		ArgsUsage:      "<input|->",
		ExitErrHandler: exitErrHandler,
		Flags:          cmd.ScanFlags(),
		Action:         cmd.ScanAction,
		Commands: []*cli.Command{
			cmd.ScanCommand(),
			cmd.InspectCommand(),
			cmd.StatsCommand(),
			cmd.DebugCommand(),
			cmd.VersionCommand(commit),
		},
	}

	if err := app.Run(os.Args); err != nil {
		// ExitErrHandler already handled the exit for cli.ExitCoder errors.
		// This branch handles unexpected errors that weren't wrapped.
		os.Exit(1)
	}
}

// exitErrHandler handles errors from the CLI, preserving exit codes from cli.Exit().
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}

	// Check for ExitCoder (from cli.Exit), handles wrapped errors
	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()

		// cli.Exit("", N).Error() returns "exit status N", so skip those
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}

	// Unexpected error - print and exit with code 1
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
