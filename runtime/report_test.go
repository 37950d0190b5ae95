package runtime

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/justapithecus/sphere2bin/cassette"
	"github.com/justapithecus/sphere2bin/metrics"
	"github.com/justapithecus/sphere2bin/policy"
	"github.com/justapithecus/sphere2bin/types"
)

func newTestScanResult() *ScanResult {
	return &ScanResult{
		Meta: testMeta(),
		Outcome: &types.ScanOutcome{
			Status:  types.OutcomeSuccess,
			Message: "scan completed",
		},
		Blocks: []*types.BlockRecord{
			{Ordinal: 1, Name: "AB", NameBytes: [2]byte{'A', 'B'}, Length: 2, Kind: types.KindText, Data: []byte("hi"), Location: "/tapes/tape-AB_1.bin"},
			{Ordinal: 2, Name: "CD", NameBytes: [2]byte{'C', 'D'}, Length: 1, Kind: types.KindObject, Error: types.BlockErrorTrailer, Data: []byte{0x80}},
		},
		DecoderStats: cassette.Stats{
			BytesFed:      64,
			NoiseBytes:    6,
			Headers:       2,
			Desyncs:       1,
			Blocks:        2,
			TrailerErrors: 1,
		},
		PolicyStats: policy.Stats{
			TotalBlocks:     2,
			BlocksPersisted: 1,
			BytesPersisted:  2,
			FlushCount:      1,
			Errors:          0,
		},
		BytesRead: 64,
		Duration:  1500 * time.Millisecond,
	}
}

func newTestSnapshot() metrics.Snapshot {
	return metrics.Snapshot{
		ScansStarted:   1,
		ScansCompleted: 1,
		BlocksDecoded:  2,
		Policy:         policy.NameStrict,
		StorageBackend: "fs",
		ScanID:         "scan-1",
	}
}

func TestBuildScanReport_Success(t *testing.T) {
	report := BuildScanReport(newTestScanResult(), newTestSnapshot(), policy.NameStrict, 0)

	if report.ScanID != "scan-1" || report.Source != "tape" || report.Input != "/tapes/tape.raw" {
		t.Errorf("identity = %q %q %q", report.ScanID, report.Source, report.Input)
	}
	if report.Outcome != types.OutcomeSuccess || report.ExitCode != 0 {
		t.Errorf("outcome = %q exit %d", report.Outcome, report.ExitCode)
	}
	if report.DurationMs != 1500 {
		t.Errorf("DurationMs = %d, want 1500", report.DurationMs)
	}
	if report.BlockCount != 2 || report.ErrorCount != 1 {
		t.Errorf("BlockCount = %d, ErrorCount = %d", report.BlockCount, report.ErrorCount)
	}
	if report.Decoder.Desyncs != 1 || report.Decoder.TrailerErrors != 1 {
		t.Errorf("Decoder = %+v", report.Decoder)
	}
	if report.Policy.Name != policy.NameStrict || report.Policy.BlocksPersisted != 1 {
		t.Errorf("Policy = %+v", report.Policy)
	}
	if report.Metrics.ScansCompleted != 1 {
		t.Errorf("Metrics = %+v", report.Metrics)
	}
	if report.ContractVersion != types.ContractVersion {
		t.Errorf("ContractVersion = %q", report.ContractVersion)
	}
}

func TestBuildScanReport_ExportError(t *testing.T) {
	result := newTestScanResult()
	result.ExportErr = errors.New("broken pipe")

	report := BuildScanReport(result, newTestSnapshot(), policy.NameStrict, 0)
	if report.ExportError != "broken pipe" {
		t.Errorf("ExportError = %q", report.ExportError)
	}
}

func TestScanReport_JSONShape(t *testing.T) {
	report := BuildScanReport(newTestScanResult(), newTestSnapshot(), policy.NameStrict, 2)

	var buf bytes.Buffer
	if err := writeScanReportTo(report, &buf); err != nil {
		t.Fatalf("writeScanReportTo failed: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(buf.Bytes(), &raw); err != nil {
		t.Fatalf("report is not valid JSON: %v", err)
	}
	for _, key := range []string{"scan_id", "outcome", "exit_code", "decoder", "policy", "blocks", "metrics"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("report missing %q", key)
		}
	}
	if _, ok := raw["export_error"]; ok {
		t.Error("export_error should be omitted when empty")
	}

	blocks, ok := raw["blocks"].([]any)
	if !ok || len(blocks) != 2 {
		t.Fatalf("blocks = %v", raw["blocks"])
	}
	first := blocks[0].(map[string]any)
	if _, ok := first["data"]; ok {
		t.Error("block payload must not appear in the report")
	}
	if first["location"] != "/tapes/tape-AB_1.bin" {
		t.Errorf("location = %v", first["location"])
	}
	second := blocks[1].(map[string]any)
	if second["error"] != types.BlockErrorTrailer {
		t.Errorf("error = %v", second["error"])
	}
	if !bytes.HasSuffix(buf.Bytes(), []byte("\n")) {
		t.Error("report should end with a newline")
	}
}

func TestWriteScanReport_File(t *testing.T) {
	report := BuildScanReport(newTestScanResult(), newTestSnapshot(), policy.NameStrict, 0)
	path := filepath.Join(t.TempDir(), "report.json")

	if err := WriteScanReport(report, path); err != nil {
		t.Fatalf("WriteScanReport failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read report: %v", err)
	}
	var decoded ScanReport
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if decoded.ScanID != "scan-1" || decoded.BlockCount != 2 {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestWriteScanReport_Errors(t *testing.T) {
	report := BuildScanReport(newTestScanResult(), newTestSnapshot(), policy.NameStrict, 0)

	if err := WriteScanReport(report, ""); err == nil {
		t.Error("expected error for empty path")
	}
	missing := filepath.Join(t.TempDir(), "no", "such", "dir", "report.json")
	if err := WriteScanReport(report, missing); err == nil {
		t.Error("expected error for unwritable path")
	}
}
