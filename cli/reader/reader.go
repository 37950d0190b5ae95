package reader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	lodelibrary "github.com/justapithecus/lode/lode"

	"github.com/justapithecus/sphere2bin/lode"
	"github.com/justapithecus/sphere2bin/log"
	"github.com/justapithecus/sphere2bin/policy"
	"github.com/justapithecus/sphere2bin/runtime"
	"github.com/justapithecus/sphere2bin/types"
)

// LocalReader reads inputs and export streams from the local filesystem
// or standard input, and manifests from fs or s3 datasets.
type LocalReader struct {
	// Stdin replaces os.Stdin for "-" when set.
	Stdin io.Reader
}

// NewLocalReader creates a new local reader.
func NewLocalReader() *LocalReader {
	return &LocalReader{}
}

// Open opens path for reading. "-" returns standard input, which the
// caller's Close leaves open.
func (r *LocalReader) Open(path string) (io.ReadCloser, error) {
	if path == "" {
		return nil, errors.New("input path required")
	}
	if path == types.StdinInput {
		stdin := r.Stdin
		if stdin == nil {
			stdin = os.Stdin
		}
		return io.NopCloser(stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open %s: %w", path, err)
	}
	return f, nil
}

// Inspect decodes input with a no-op policy and returns every block.
func (r *LocalReader) Inspect(ctx context.Context, input string) (*InspectResponse, error) {
	in, err := r.Open(input)
	if err != nil {
		return nil, err
	}
	defer func() { _ = in.Close() }()

	meta := types.NewScanMeta(input, "", "", time.Now())
	orch, err := runtime.NewScanOrchestrator(&runtime.ScanConfig{
		Meta:   meta,
		Input:  in,
		Policy: policy.NewNoopPolicy(),
		Logger: log.NewNopLogger(),
	})
	if err != nil {
		return nil, err
	}

	result, err := orch.Execute(ctx)
	if err != nil {
		return nil, err
	}
	return newInspectResponse(result), nil
}

func newInspectResponse(result *runtime.ScanResult) *InspectResponse {
	ds := result.DecoderStats
	return &InspectResponse{
		Input:        result.Meta.Input,
		Source:       result.Meta.Source,
		Outcome:      result.Outcome.Status,
		Message:      result.Outcome.Message,
		BytesRead:    result.BytesRead,
		NoiseBytes:   ds.NoiseBytes,
		Headers:      ds.Headers,
		Desyncs:      ds.Desyncs,
		ErrorCount:   result.ErrorCount(),
		PartialBlock: result.PartialBlockDiscarded,
		Blocks:       result.Blocks,
	}
}

// DebugIPC reads the export stream at path.
func (r *LocalReader) DebugIPC(path string, verbose bool) (*IPCDebugResponse, error) {
	in, err := r.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = in.Close() }()

	resp := ParseFrames(in, verbose)
	resp.Transport = "file"
	if path == types.StdinInput {
		resp.Transport = "stdin"
	}
	return resp, nil
}

// DebugManifest reads manifest rows from the selected dataset.
func (r *LocalReader) DebugManifest(ctx context.Context, opts ManifestOptions) (*ManifestResponse, error) {
	if opts.Dataset == "" {
		opts.Dataset = lode.DefaultDataset
	}

	ds, err := openManifestDataset(opts)
	if err != nil {
		return nil, err
	}

	records, err := lode.ReadManifest(ctx, ds, opts.ScanID)
	if err != nil {
		return nil, err
	}
	return &ManifestResponse{
		Dataset: opts.Dataset,
		ScanID:  opts.ScanID,
		Records: records,
	}, nil
}

func openManifestDataset(opts ManifestOptions) (lodelibrary.Dataset, error) {
	switch opts.Backend {
	case "", "fs":
		if opts.Path == "" {
			return nil, errors.New("manifest path required for fs backend")
		}
		return lode.NewManifestDatasetFS(opts.Dataset, opts.Path)
	case "s3":
		bucket, prefix := lode.ParseS3Path(opts.Path)
		s3cfg := lode.S3Config{
			Bucket:       bucket,
			Prefix:       prefix,
			Region:       opts.Region,
			Endpoint:     opts.Endpoint,
			UsePathStyle: opts.S3PathStyle,
		}
		if err := s3cfg.Validate(); err != nil {
			return nil, err
		}
		return lode.NewManifestDatasetS3(opts.Dataset, s3cfg)
	default:
		return nil, fmt.Errorf("unknown storage backend %q (must be fs or s3)", opts.Backend)
	}
}

var _ Reader = (*LocalReader)(nil)
