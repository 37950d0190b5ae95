package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/justapithecus/sphere2bin/cli/reader"
	"github.com/justapithecus/sphere2bin/cli/render"
	"github.com/justapithecus/sphere2bin/cli/tui"
	"github.com/justapithecus/sphere2bin/types"
)

// StatsResponse is the aggregated view of one decoded input.
type StatsResponse struct {
	Input          string              `json:"input" yaml:"input"`
	Outcome        types.OutcomeStatus `json:"outcome" yaml:"outcome"`
	Blocks         int                 `json:"blocks" yaml:"blocks"`
	TextBlocks     int                 `json:"text_blocks" yaml:"text_blocks"`
	ObjectBlocks   int                 `json:"object_blocks" yaml:"object_blocks"`
	TrailerErrors  int                 `json:"trailer_errors" yaml:"trailer_errors"`
	ChecksumErrors int                 `json:"checksum_errors" yaml:"checksum_errors"`
	PayloadBytes   int64               `json:"payload_bytes" yaml:"payload_bytes"`
	BytesRead      int64               `json:"bytes_read" yaml:"bytes_read"`
	NoiseBytes     int64               `json:"noise_bytes" yaml:"noise_bytes"`
	Headers        int64               `json:"headers" yaml:"headers"`
	Desyncs        int64               `json:"desyncs" yaml:"desyncs"`
	PartialBlock   bool                `json:"partial_block" yaml:"partial_block"`
}

// StatsCommand returns the stats command.
// Stats returns aggregated, derived facts about an input.
func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:      "stats",
		Usage:     "Show block and decoder statistics for an input",
		ArgsUsage: "<input|->",
		Flags:     ReadOnlyFlags(),
		Action:    statsAction,
	}
}

func statsAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("input required (use - for standard input)", 1)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	resp, err := reader.GetReader().Inspect(c.Context, c.Args().First())
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewStatsScan, resp)
	}

	return r.Render(buildStatsResponse(resp))
}

func buildStatsResponse(resp *reader.InspectResponse) *StatsResponse {
	stats := &StatsResponse{
		Input:        resp.Input,
		Outcome:      resp.Outcome,
		Blocks:       len(resp.Blocks),
		BytesRead:    resp.BytesRead,
		NoiseBytes:   resp.NoiseBytes,
		Headers:      resp.Headers,
		Desyncs:      resp.Desyncs,
		PartialBlock: resp.PartialBlock,
	}
	for _, rec := range resp.Blocks {
		if rec.Kind == types.KindObject {
			stats.ObjectBlocks++
		} else {
			stats.TextBlocks++
		}
		switch rec.Error {
		case types.BlockErrorTrailer:
			stats.TrailerErrors++
		case types.BlockErrorChecksum:
			stats.ChecksumErrors++
		}
		stats.PayloadBytes += int64(rec.Length)
	}
	return stats
}
