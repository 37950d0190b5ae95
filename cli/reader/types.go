// Package reader provides the read-side data access layer for the
// sphere2bin CLI.
//
// Read-only commands (inspect, debug ipc, debug manifest) go through this
// package exclusively, so they never touch the write path's storage
// clients or policies.
package reader

import (
	"github.com/justapithecus/sphere2bin/lode"
	"github.com/justapithecus/sphere2bin/types"
)

// InspectResponse is the result of decoding an input in list-only mode.
type InspectResponse struct {
	Input      string              `json:"input" yaml:"input"`
	Source     string              `json:"source" yaml:"source"`
	Outcome    types.OutcomeStatus `json:"outcome" yaml:"outcome"`
	Message    string              `json:"message,omitempty" yaml:"message,omitempty"`
	BytesRead  int64               `json:"bytes_read" yaml:"bytes_read"`
	NoiseBytes int64               `json:"noise_bytes" yaml:"noise_bytes"`
	Headers    int64               `json:"headers" yaml:"headers"`
	Desyncs    int64               `json:"desyncs" yaml:"desyncs"`
	ErrorCount int                 `json:"error_count" yaml:"error_count"`
	// PartialBlock is set when the input ended inside a block.
	PartialBlock bool `json:"partial_block" yaml:"partial_block"`
	// Blocks carry their payloads for hex dumps and the TUI. Payloads are
	// never serialized.
	Blocks []*types.BlockRecord `json:"blocks" yaml:"blocks"`
}

// Block returns the block with the given ordinal, or nil.
func (r *InspectResponse) Block(ordinal int) *types.BlockRecord {
	for _, rec := range r.Blocks {
		if rec.Ordinal == ordinal {
			return rec
		}
	}
	return nil
}

// IPCBlockItem summarizes one block frame of an export stream.
type IPCBlockItem struct {
	ScanID   string `json:"scan_id" yaml:"scan_id"`
	Ordinal  int    `json:"ordinal" yaml:"ordinal"`
	Name     string `json:"name" yaml:"name"`
	Length   int    `json:"length" yaml:"length"`
	Kind     string `json:"kind" yaml:"kind"`
	Error    string `json:"error,omitempty" yaml:"error,omitempty"`
	Location string `json:"location,omitempty" yaml:"location,omitempty"`
}

// IPCScanResult mirrors the terminal scan_result frame.
type IPCScanResult struct {
	ScanID     string              `json:"scan_id" yaml:"scan_id"`
	Source     string              `json:"source" yaml:"source"`
	Status     types.OutcomeStatus `json:"status" yaml:"status"`
	Message    string              `json:"message,omitempty" yaml:"message,omitempty"`
	BlockCount int                 `json:"block_count" yaml:"block_count"`
	ErrorCount int                 `json:"error_count" yaml:"error_count"`
	BytesRead  int64               `json:"bytes_read" yaml:"bytes_read"`
}

// IPCDebugResponse describes an export stream read back from a file or
// standard input.
type IPCDebugResponse struct {
	Transport string `json:"transport" yaml:"transport"`
	Encoding  string `json:"encoding" yaml:"encoding"`
	Frames    int    `json:"frames" yaml:"frames"`
	// BlockFrames counts decoded block frames.
	BlockFrames int `json:"block_frames" yaml:"block_frames"`
	Errors      int `json:"errors" yaml:"errors"`
	// Truncated is set when the stream ended inside a frame.
	Truncated bool           `json:"truncated" yaml:"truncated"`
	LastError *string        `json:"last_error" yaml:"last_error"`
	Result    *IPCScanResult `json:"result" yaml:"result"`
	// Blocks is only filled in verbose mode.
	Blocks []IPCBlockItem `json:"blocks,omitempty" yaml:"blocks,omitempty"`
}

// ManifestOptions selects a manifest dataset and scan.
type ManifestOptions struct {
	Backend     string
	Path        string
	Region      string
	Endpoint    string
	S3PathStyle bool
	Dataset     string
	ScanID      string
}

// ManifestResponse lists the manifest rows of a dataset.
type ManifestResponse struct {
	Dataset string                `json:"dataset" yaml:"dataset"`
	ScanID  string                `json:"scan_id,omitempty" yaml:"scan_id,omitempty"`
	Records []lode.ManifestRecord `json:"records" yaml:"records"`
}
