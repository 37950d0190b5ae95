package runtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/justapithecus/sphere2bin/metrics"
	"github.com/justapithecus/sphere2bin/types"
)

// ScanReport is the structured JSON report written by --report.
type ScanReport struct {
	ContractVersion string              `json:"contract_version"`
	ScanID          string              `json:"scan_id"`
	Input           string              `json:"input"`
	Source          string              `json:"source"`
	Outcome         types.OutcomeStatus `json:"outcome"`
	Message         string              `json:"message"`
	ExitCode        int                 `json:"exit_code"`
	DurationMs      int64               `json:"duration_ms"`
	BytesRead       int64               `json:"bytes_read"`
	BlockCount      int                 `json:"block_count"`
	ErrorCount      int                 `json:"error_count"`

	Decoder *ReportDecoder      `json:"decoder"`
	Policy  *ReportPolicy       `json:"policy"`
	Blocks  []types.BlockRecord `json:"blocks"`
	Metrics *metrics.Snapshot   `json:"metrics"`

	ExportError string `json:"export_error,omitempty"`
}

// ReportDecoder holds decoder counters in the report.
type ReportDecoder struct {
	NoiseBytes            int64 `json:"noise_bytes"`
	Headers               int64 `json:"headers"`
	Desyncs               int64 `json:"desyncs"`
	TrailerErrors         int64 `json:"trailer_errors"`
	ChecksumErrors        int64 `json:"checksum_errors"`
	PartialBlockDiscarded bool  `json:"partial_block_discarded"`
}

// ReportPolicy holds policy stats in the report.
type ReportPolicy struct {
	Name            string `json:"name"`
	BlocksReceived  int64  `json:"blocks_received"`
	BlocksPersisted int64  `json:"blocks_persisted"`
	BytesPersisted  int64  `json:"bytes_persisted"`
	Flushes         int64  `json:"flushes"`
	Errors          int64  `json:"errors"`
}

// BuildScanReport composes a ScanReport from a ScanResult and metrics snapshot.
// The policyName is the policy name string (e.g. "strict", "buffered", "noop").
// The exitCode is the process exit code that will be returned to the caller.
func BuildScanReport(result *ScanResult, snap metrics.Snapshot, policyName string, exitCode int) *ScanReport {
	ds := result.DecoderStats
	ps := result.PolicyStats

	blocks := make([]types.BlockRecord, 0, len(result.Blocks))
	for _, rec := range result.Blocks {
		blocks = append(blocks, *rec)
	}

	report := &ScanReport{
		ContractVersion: types.ContractVersion,
		ScanID:          result.Meta.ScanID,
		Input:           result.Meta.Input,
		Source:          result.Meta.Source,
		Outcome:         result.Outcome.Status,
		Message:         result.Outcome.Message,
		ExitCode:        exitCode,
		DurationMs:      result.Duration.Milliseconds(),
		BytesRead:       result.BytesRead,
		BlockCount:      len(result.Blocks),
		ErrorCount:      result.ErrorCount(),
		Decoder: &ReportDecoder{
			NoiseBytes:            ds.NoiseBytes,
			Headers:               ds.Headers,
			Desyncs:               ds.Desyncs,
			TrailerErrors:         ds.TrailerErrors,
			ChecksumErrors:        ds.ChecksumErrors,
			PartialBlockDiscarded: result.PartialBlockDiscarded,
		},
		Policy: &ReportPolicy{
			Name:            policyName,
			BlocksReceived:  ps.TotalBlocks,
			BlocksPersisted: ps.BlocksPersisted,
			BytesPersisted:  ps.BytesPersisted,
			Flushes:         ps.FlushCount,
			Errors:          ps.Errors,
		},
		Blocks:  blocks,
		Metrics: &snap,
	}

	if result.ExportErr != nil {
		report.ExportError = result.ExportErr.Error()
	}

	return report
}

// WriteScanReport writes the report as JSON to the specified path.
// If path is "-", writes to stderr.
func WriteScanReport(report *ScanReport, path string) error {
	if path == "" {
		return errors.New("report path must not be empty")
	}

	if path == "-" {
		if err := writeScanReportTo(report, os.Stderr); err != nil {
			return fmt.Errorf("failed to write report to stderr: %w", err)
		}
		return nil
	}

	data, err := marshalReport(report)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	return nil
}

// writeScanReportTo writes report JSON to any writer (for testing).
func writeScanReportTo(report *ScanReport, w io.Writer) error {
	data, err := marshalReport(report)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func marshalReport(report *ScanReport) ([]byte, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	return append(data, '\n'), nil
}
