package types

import (
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// StdinInput is the input name that selects standard input.
const StdinInput = "-"

// ScanMeta identifies one scan of one input.
type ScanMeta struct {
	// ScanID is the scan identifier. Generated unless supplied.
	ScanID string
	// Input is the input as named by the user.
	Input string
	// Source is the artifact stem derived from Input.
	Source string
	// StartedAt is the scan start time.
	StartedAt time.Time
}

// NewScanMeta builds metadata for input. An empty scanID gets a random
// UUID; an empty source is derived from input.
func NewScanMeta(input, source, scanID string, now time.Time) *ScanMeta {
	if scanID == "" {
		scanID = uuid.NewString()
	}
	if source == "" {
		source = SourceStem(input)
	}
	return &ScanMeta{
		ScanID:    scanID,
		Input:     input,
		Source:    source,
		StartedAt: now.UTC(),
	}
}

// Validate checks the metadata is usable for naming artifacts.
func (m *ScanMeta) Validate() error {
	if m.ScanID == "" {
		return errors.New("scan_id must be non-empty")
	}
	if m.Source == "" {
		return errors.New("source must be non-empty")
	}
	return nil
}

// SourceStem returns the input file name without directory or extension.
// Standard input maps to "stdin".
func SourceStem(input string) string {
	if input == "" || input == StdinInput {
		return "stdin"
	}
	base := filepath.Base(input)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" || stem == "." {
		return base
	}
	return stem
}

// OutcomeStatus represents the final status of a scan.
type OutcomeStatus string

const (
	// OutcomeSuccess indicates the whole input was decoded and every block
	// was handled. Blocks may still carry trailer or checksum errors.
	OutcomeSuccess OutcomeStatus = "success"
	// OutcomeInputError indicates the input could not be read to the end.
	OutcomeInputError OutcomeStatus = "input_error"
	// OutcomeStorageFailure indicates at least one block failed to persist.
	OutcomeStorageFailure OutcomeStatus = "storage_failure"
	// OutcomeCanceled indicates the scan was interrupted.
	OutcomeCanceled OutcomeStatus = "canceled"
)

// ScanOutcome is the final outcome of a scan.
type ScanOutcome struct {
	// Status is the outcome classification.
	Status OutcomeStatus `msgpack:"status" json:"status"`
	// Message is a human-readable description.
	Message string `msgpack:"message,omitempty" json:"message,omitempty"`
}

// ScanResultType is the type discriminant for scan result frames.
const ScanResultType = "scan_result"

// BlockFrameType is the type discriminant for block frames.
const BlockFrameType = "block"

// BlockFrame carries one BlockRecord on the export stream.
type BlockFrame struct {
	// Type is always "block".
	Type string `msgpack:"type"`
	// ContractVersion is the export contract version.
	ContractVersion string `msgpack:"contract_version"`
	// ScanID is the owning scan.
	ScanID string `msgpack:"scan_id"`
	// Block is the decoded block.
	Block BlockRecord `msgpack:"block"`
}

// ScanResultFrame is the terminal frame of an export stream.
type ScanResultFrame struct {
	// Type is always "scan_result".
	Type string `msgpack:"type"`
	// ScanID is the owning scan.
	ScanID string `msgpack:"scan_id"`
	// Source is the artifact stem.
	Source string `msgpack:"source"`
	// Outcome is the scan outcome.
	Outcome ScanOutcome `msgpack:"outcome"`
	// BlockCount is the number of blocks emitted.
	BlockCount int `msgpack:"block_count"`
	// ErrorCount is the number of blocks with a trailer or checksum error.
	ErrorCount int `msgpack:"error_count"`
	// BytesRead is the number of input bytes consumed.
	BytesRead int64 `msgpack:"bytes_read"`
}
