// Package runtime drives a scan: it feeds an input through the block
// decoder and hands each decoded block to the write policy, the export
// stream and any observer.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/justapithecus/sphere2bin/cassette"
	"github.com/justapithecus/sphere2bin/ipc"
	"github.com/justapithecus/sphere2bin/log"
	"github.com/justapithecus/sphere2bin/metrics"
	"github.com/justapithecus/sphere2bin/policy"
	"github.com/justapithecus/sphere2bin/types"
)

// DefaultChunkSize is the input read size.
const DefaultChunkSize = 32 * 1024

// flushTimeout bounds the final policy flush.
const flushTimeout = 30 * time.Second

// BlockObserver is called synchronously, in emission order, once per block
// before the block reaches the policy.
type BlockObserver func(rec *types.BlockRecord)

// ScanConfig configures a single scan.
type ScanConfig struct {
	// Meta is the scan identity.
	Meta *types.ScanMeta
	// Input is the cassette byte stream.
	Input io.Reader
	// Policy receives every decoded block. Required.
	Policy policy.Policy
	// Collector is the metrics collector for this scan.
	// If nil, no metrics are recorded (all Collector methods are nil-safe).
	Collector *metrics.Collector
	// Logger defaults to a no-op logger.
	Logger *log.Logger
	// Observer is optional.
	Observer BlockObserver
	// Exporter, if set, receives a block frame per record and a final
	// scan_result frame.
	Exporter *ipc.FrameEncoder
	// ChunkSize is the input read size (default DefaultChunkSize).
	ChunkSize int
}

// ScanResult is the result of a scan.
type ScanResult struct {
	// Meta is the scan identity.
	Meta *types.ScanMeta
	// Outcome is the scan outcome.
	Outcome *types.ScanOutcome
	// Blocks holds every emitted block in ordinal order.
	Blocks []*types.BlockRecord
	// DecoderStats are the decoder counters at end of input.
	DecoderStats cassette.Stats
	// PolicyStats are the write policy counters after the final flush.
	PolicyStats policy.Stats
	// BytesRead is the number of input bytes consumed.
	BytesRead int64
	// Duration is the total scan duration.
	Duration time.Duration
	// PersistFailures counts failed policy calls.
	PersistFailures int
	// PartialBlockDiscarded is set when input ended inside a block.
	PartialBlockDiscarded bool
	// ExportErr is the first export stream error, if any. Export stops
	// after it.
	ExportErr error
}

// ErrorCount returns the number of blocks with a trailer or checksum error.
func (r *ScanResult) ErrorCount() int {
	var n int
	for _, rec := range r.Blocks {
		if rec.HasError() {
			n++
		}
	}
	return n
}

// ScanOrchestrator runs one scan. It owns the ordinal counter, so a fresh
// orchestrator is needed per input.
type ScanOrchestrator struct {
	config *ScanConfig
	logger *log.Logger

	decoder *cassette.Decoder
	pending []*types.BlockRecord
	ordinal int

	startTime time.Time
	result    *ScanResult
	failures  scanFailures
	exporter  *ipc.FrameEncoder
}

// NewScanOrchestrator creates a new scan orchestrator.
// Returns error if scan metadata or required collaborators are missing.
func NewScanOrchestrator(config *ScanConfig) (*ScanOrchestrator, error) {
	if config.Meta == nil {
		return nil, errors.New("invalid scan metadata: missing")
	}
	if err := config.Meta.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scan metadata: %w", err)
	}
	if config.Input == nil {
		return nil, errors.New("scan input is required")
	}
	if config.Policy == nil {
		return nil, errors.New("scan policy is required")
	}
	if config.ChunkSize <= 0 {
		config.ChunkSize = DefaultChunkSize
	}

	logger := config.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}

	s := &ScanOrchestrator{
		config:   config,
		logger:   logger,
		exporter: config.Exporter,
	}
	s.decoder = cassette.NewDecoder(s.collect)
	return s, nil
}

// collect is the decoder sink. The decoder reuses its buffer, so the
// payload is copied before the block is queued.
func (s *ScanOrchestrator) collect(b cassette.Block) {
	s.ordinal++
	s.pending = append(s.pending, toBlockRecord(s.ordinal, b))
}

// toBlockRecord converts a decoder block into a record that owns its payload.
func toBlockRecord(ordinal int, b cassette.Block) *types.BlockRecord {
	data := make([]byte, len(b.Data))
	copy(data, b.Data)
	return &types.BlockRecord{
		Ordinal:   ordinal,
		Name:      b.NameString(),
		NameBytes: b.Name,
		Length:    len(data),
		Kind:      b.Kind.String(),
		Error:     b.Err.String(),
		Checksum:  b.Checksum,
		Data:      data,
	}
}

// Execute runs the scan end-to-end.
//
// Execution flow:
//  1. Read the input in chunks and feed the decoder
//  2. Dispatch each decoded block (metrics, observer, export, policy)
//  3. Note a block cut short by end of input
//  4. Flush the policy
//  5. Determine outcome and write the scan_result frame
//
// Failures are reported through the outcome; the returned error is
// reserved for misuse and is currently always nil.
func (s *ScanOrchestrator) Execute(ctx context.Context) (*ScanResult, error) {
	s.startTime = time.Now()
	s.result = &ScanResult{Meta: s.config.Meta}
	s.config.Collector.IncScanStarted()

	s.logger.Info("starting scan", map[string]any{
		"input":  s.config.Meta.Input,
		"policy": s.policyName(),
	})

	s.readLoop(ctx)

	if s.decoder.Pending() {
		s.result.PartialBlockDiscarded = true
		s.config.Collector.IncPartialBlockDiscarded()
		s.logger.Debug("input ended inside a block, discarding it", map[string]any{
			"phase": s.decoder.Phase().String(),
		})
	}

	// Flush on all termination paths. WithoutCancel keeps context values
	// while ignoring parent cancellation.
	flushCtx, flushCancel := context.WithTimeout(context.WithoutCancel(ctx), flushTimeout)
	if err := s.config.Policy.Flush(flushCtx); err != nil {
		s.failures.flushErr = err
		s.logger.Warn("policy flush failed", map[string]any{
			"error": err.Error(),
		})
	}
	flushCancel()

	return s.buildResult(), nil
}

// readLoop feeds the decoder until EOF, a read error or cancellation.
// Cancellation is checked between chunks.
func (s *ScanOrchestrator) readLoop(ctx context.Context) {
	buf := make([]byte, s.config.ChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			s.failures.ctxErr = err
			return
		}

		n, err := s.config.Input.Read(buf)
		if n > 0 {
			s.decoder.FeedAll(buf[:n])
			s.dispatchPending(ctx)
		}
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			if isCanceled(err) {
				s.failures.ctxErr = err
			} else {
				s.failures.readErr = err
				s.logger.Error("input read failed", map[string]any{
					"error":      err.Error(),
					"bytes_read": s.decoder.Stats().BytesFed,
				})
			}
			return
		}
	}
}

// dispatchPending hands queued blocks on in ordinal order.
func (s *ScanOrchestrator) dispatchPending(ctx context.Context) {
	for _, rec := range s.pending {
		s.dispatch(ctx, rec)
	}
	// Drop references so the slice can be reused.
	clear(s.pending)
	s.pending = s.pending[:0]
}

func (s *ScanOrchestrator) dispatch(ctx context.Context, rec *types.BlockRecord) {
	s.result.Blocks = append(s.result.Blocks, rec)
	s.config.Collector.RecordBlock(rec.Kind, rec.Error)

	s.logger.Debug("block decoded", map[string]any{
		"ordinal": rec.Ordinal,
		"name":    rec.PrintableName(),
		"length":  rec.Length,
		"kind":    rec.Kind,
		"error":   rec.Error,
	})

	if s.config.Observer != nil {
		s.config.Observer(rec)
	}

	s.export(func(e *ipc.FrameEncoder) error {
		return e.WriteBlock(s.config.Meta.ScanID, rec)
	})

	if err := s.config.Policy.IngestBlock(ctx, rec); err != nil {
		s.failures.persistFailures++
		s.failures.lastPersistErr = err
		s.logger.Warn("failed to persist block", map[string]any{
			"ordinal": rec.Ordinal,
			"error":   err.Error(),
		})
	}
}

// export writes one frame and disables the exporter after the first error.
func (s *ScanOrchestrator) export(write func(*ipc.FrameEncoder) error) {
	if s.exporter == nil {
		return
	}
	if err := write(s.exporter); err != nil {
		s.result.ExportErr = err
		s.exporter = nil
		s.logger.Warn("export stream failed, disabling export", map[string]any{
			"error": err.Error(),
		})
	}
}

// buildResult constructs the final scan result and records outcome metrics.
func (s *ScanOrchestrator) buildResult() *ScanResult {
	result := s.result
	result.Outcome = determineOutcome(s.failures)
	result.DecoderStats = s.decoder.Stats()
	result.BytesRead = result.DecoderStats.BytesFed
	result.PolicyStats = s.config.Policy.Stats()
	result.PersistFailures = s.failures.persistFailures
	result.Duration = time.Since(s.startTime)

	if result.Outcome.Status == types.OutcomeSuccess {
		s.config.Collector.IncScanCompleted()
	} else {
		s.config.Collector.IncScanFailed()
	}

	ds := result.DecoderStats
	s.config.Collector.AbsorbDecoderStats(ds.BytesFed, ds.NoiseBytes, ds.Headers, ds.Desyncs)
	ps := result.PolicyStats
	s.config.Collector.AbsorbPolicyStats(ps.BlocksPersisted, ps.BytesPersisted, ps.FlushCount)

	s.export(func(e *ipc.FrameEncoder) error {
		return e.WriteScanResult(&types.ScanResultFrame{
			ScanID:     result.Meta.ScanID,
			Source:     result.Meta.Source,
			Outcome:    *result.Outcome,
			BlockCount: len(result.Blocks),
			ErrorCount: result.ErrorCount(),
			BytesRead:  result.BytesRead,
		})
	})

	s.logger.Info("scan completed", map[string]any{
		"outcome":     result.Outcome.Status,
		"blocks":      len(result.Blocks),
		"errors":      result.ErrorCount(),
		"bytes_read":  result.BytesRead,
		"persisted":   ps.BlocksPersisted,
		"duration_ms": result.Duration.Milliseconds(),
	})

	return result
}

func (s *ScanOrchestrator) policyName() string {
	return s.config.Collector.Snapshot().Policy
}
