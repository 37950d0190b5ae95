package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/sphere2bin/cli/reader"
	"github.com/justapithecus/sphere2bin/cli/render"
	"github.com/justapithecus/sphere2bin/cli/tui"
)

// InspectCommand returns the inspect command.
// Inspect decodes an input without writing anything and shows every block.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Decode an input without writing and show its blocks",
		ArgsUsage: "<input|->",
		Flags: append(ReadOnlyFlags(),
			&cli.IntFlag{
				Name:  "block",
				Usage: "Hex dump the block with this ordinal",
			},
		),
		Action: inspectAction,
	}
}

func inspectAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("input required (use - for standard input)", 1)
	}
	input := c.Args().First()

	r, err := render.NewRenderer(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	resp, err := reader.GetReader().Inspect(c.Context, input)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewInspectBlocks, resp)
	}

	if c.IsSet("block") {
		ordinal := c.Int("block")
		rec := resp.Block(ordinal)
		if rec == nil {
			return cli.Exit(fmt.Sprintf("block %d not found (input has %d block(s))", ordinal, len(resp.Blocks)), 1)
		}
		return render.HexDump(c.App.Writer, rec)
	}

	return r.Render(resp)
}
