package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/justapithecus/sphere2bin/cli/reader"
	"github.com/justapithecus/sphere2bin/cli/render"
)

// DebugCommand returns the debug command with subcommands.
// Debug commands are opt-in diagnostic tools. They never write.
func DebugCommand() *cli.Command {
	return &cli.Command{
		Name:  "debug",
		Usage: "Diagnostic tools (ipc, manifest)",
		Subcommands: []*cli.Command{
			debugIPCCommand(),
			debugManifestCommand(),
		},
	}
}

func debugIPCCommand() *cli.Command {
	return &cli.Command{
		Name:      "ipc",
		Usage:     "Read back an export stream written by --emit",
		ArgsUsage: "<file|->",
		Flags: append(ReadOnlyFlags(),
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Include one entry per block frame",
			},
		),
		Action: debugIPCAction,
	}
}

func debugIPCAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("export stream path required (use - for standard input)", 1)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	// TUI not supported for debug commands
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for debug commands", 1)
	}

	resp, err := reader.GetReader().DebugIPC(c.Args().First(), c.Bool("verbose"))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	return r.Render(resp)
}

func debugManifestCommand() *cli.Command {
	return &cli.Command{
		Name:  "manifest",
		Usage: "List manifest rows written by --manifest",
		Flags: append(ReadOnlyFlags(),
			&cli.StringFlag{
				Name:  "backend",
				Usage: "Storage backend: fs or s3",
				Value: "fs",
			},
			&cli.StringFlag{
				Name:     "path",
				Usage:    "Storage path (fs: output directory, s3: bucket/prefix)",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "dataset",
				Usage: "Manifest dataset ID",
			},
			&cli.StringFlag{
				Name:  "scan-id",
				Usage: "Only show rows of this scan",
			},
			&cli.StringFlag{
				Name:  "region",
				Usage: "AWS region for S3 backend",
			},
			&cli.StringFlag{
				Name:  "endpoint",
				Usage: "Custom S3 endpoint URL",
			},
			&cli.BoolFlag{
				Name:  "s3-path-style",
				Usage: "Force path-style S3 addressing",
			},
		),
		Action: debugManifestAction,
	}
}

func debugManifestAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for debug commands", 1)
	}

	resp, err := reader.GetReader().DebugManifest(c.Context, reader.ManifestOptions{
		Backend:     c.String("backend"),
		Path:        c.String("path"),
		Region:      c.String("region"),
		Endpoint:    c.String("endpoint"),
		S3PathStyle: c.Bool("s3-path-style"),
		Dataset:     c.String("dataset"),
		ScanID:      c.String("scan-id"),
	})
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	return r.Render(resp)
}
