package reader

import (
	"context"
	"errors"

	"github.com/justapithecus/sphere2bin/lode"
	"github.com/justapithecus/sphere2bin/types"
)

// StubReader returns shape-correct canned data for command tests.
type StubReader struct {
	// Err, if set, is returned by every method.
	Err error
}

// NewStubReader creates a new stub reader.
func NewStubReader() *StubReader {
	return &StubReader{}
}

// StubBlocks returns the blocks every StubReader inspection reports.
func StubBlocks() []*types.BlockRecord {
	return []*types.BlockRecord{
		{
			Ordinal:   1,
			Name:      "PR",
			NameBytes: [2]byte{'P', 'R'},
			Length:    5,
			Kind:      types.KindText,
			Checksum:  0x74,
			Data:      []byte("HELLO"),
		},
		{
			Ordinal:   2,
			Name:      "OB",
			NameBytes: [2]byte{'O', 'B'},
			Length:    3,
			Kind:      types.KindObject,
			Error:     types.BlockErrorChecksum,
			Checksum:  0x83,
			Data:      []byte{0x80, 0x01, 0x02},
		},
	}
}

// Inspect returns two stub blocks, one of them with a checksum error.
func (r *StubReader) Inspect(_ context.Context, input string) (*InspectResponse, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	if input == "" {
		return nil, errors.New("input path required")
	}
	blocks := StubBlocks()
	return &InspectResponse{
		Input:      input,
		Source:     types.SourceStem(input),
		Outcome:    types.OutcomeSuccess,
		Message:    "scan completed",
		BytesRead:  48,
		NoiseBytes: 4,
		Headers:    2,
		ErrorCount: 1,
		Blocks:     blocks,
	}, nil
}

// DebugIPC returns a stub export stream summary.
func (r *StubReader) DebugIPC(path string, verbose bool) (*IPCDebugResponse, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	resp := &IPCDebugResponse{
		Transport:   "file",
		Encoding:    "msgpack",
		Frames:      3,
		BlockFrames: 2,
		Result: &IPCScanResult{
			ScanID:     "stub-scan-001",
			Source:     types.SourceStem(path),
			Status:     types.OutcomeSuccess,
			BlockCount: 2,
			ErrorCount: 1,
			BytesRead:  48,
		},
	}
	if path == types.StdinInput {
		resp.Transport = "stdin"
	}
	if verbose {
		for _, rec := range StubBlocks() {
			resp.Blocks = append(resp.Blocks, IPCBlockItem{
				ScanID:  "stub-scan-001",
				Ordinal: rec.Ordinal,
				Name:    rec.Name,
				Length:  rec.Length,
				Kind:    rec.Kind,
				Error:   rec.Error,
			})
		}
	}
	return resp, nil
}

// DebugManifest returns stub manifest rows.
func (r *StubReader) DebugManifest(_ context.Context, opts ManifestOptions) (*ManifestResponse, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	dataset := opts.Dataset
	if dataset == "" {
		dataset = lode.DefaultDataset
	}
	scanID := opts.ScanID
	if scanID == "" {
		scanID = "stub-scan-001"
	}
	return &ManifestResponse{
		Dataset: dataset,
		ScanID:  opts.ScanID,
		Records: []lode.ManifestRecord{
			{
				RecordKind: lode.RecordKindBlock,
				Ordinal:    1,
				Name:       "PR",
				NameHex:    "5052",
				Length:     5,
				Kind:       types.KindText,
				Artifact:   "tape-PR_1.bin",
				Location:   "/tapes/tape-PR_1.bin",
				Source:     "tape",
				Day:        "2026-01-02",
				ScanID:     scanID,
			},
		},
	}, nil
}

var _ Reader = (*StubReader)(nil)
