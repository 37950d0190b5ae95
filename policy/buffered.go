package policy

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/multierr"

	"github.com/justapithecus/sphere2bin/log"
	"github.com/justapithecus/sphere2bin/types"
)

// BufferedConfig configures a BufferedPolicy.
type BufferedConfig struct {
	// MaxBufferBlocks flushes once this many blocks are buffered.
	// Zero means no limit (use MaxBufferBytes instead).
	MaxBufferBlocks int

	// MaxBufferBytes flushes once the buffered payload reaches this size.
	// Zero means no limit (use MaxBufferBlocks instead).
	// At least one limit must be set.
	MaxBufferBytes int64

	// Observer is notified after every sink write. Optional.
	Observer PersistObserver

	// Logger is an optional logger for policy observability.
	// If nil, no logging is emitted.
	Logger *log.Logger
}

// DefaultBufferedConfig returns sensible defaults for buffered policy.
// A full cassette side rarely holds more than a few dozen blocks.
func DefaultBufferedConfig() BufferedConfig {
	return BufferedConfig{
		MaxBufferBlocks: 64,
		MaxBufferBytes:  4 * 1024 * 1024,
	}
}

// ErrInvalidConfig is returned when BufferedConfig is invalid.
var ErrInvalidConfig = errors.New("invalid config: at least one of MaxBufferBlocks or MaxBufferBytes must be set")

// BufferedPolicy batches blocks and writes them when a limit is reached or
// on Flush.
//
// A failed flush keeps the whole buffer and the next flush retries it, so
// blocks are written at least once and never dropped. Sinks must tolerate
// rewriting a block they already persisted.
type BufferedPolicy struct {
	sink     Sink
	config   BufferedConfig
	logger   *log.Logger
	observer PersistObserver

	flushMu sync.Mutex // serializes flushes

	mu          sync.Mutex // guards buffer state
	buffer      []*types.BlockRecord
	bufferBytes int64
	dirty       bool // blocks arrived since the last flush attempt
	stats       statsRecorder
}

// NewBufferedPolicy creates a new buffered policy.
// Returns ErrInvalidConfig if no limit is set.
func NewBufferedPolicy(sink Sink, config BufferedConfig) (*BufferedPolicy, error) {
	if config.MaxBufferBlocks <= 0 && config.MaxBufferBytes <= 0 {
		return nil, ErrInvalidConfig
	}

	return &BufferedPolicy{
		sink:     sink,
		config:   config,
		logger:   config.Logger,
		observer: config.Observer,
		buffer:   make([]*types.BlockRecord, 0, max(config.MaxBufferBlocks, 16)),
	}, nil
}

// IngestBlock buffers the block and flushes if a limit is reached.
// A flush error is returned, but the block stays buffered.
func (p *BufferedPolicy) IngestBlock(ctx context.Context, rec *types.BlockRecord) error {
	p.stats.incTotal()

	p.mu.Lock()
	p.buffer = append(p.buffer, rec)
	p.bufferBytes += int64(len(rec.Data))
	p.dirty = true
	full := p.limitReachedLocked()
	p.mu.Unlock()

	if !full {
		return nil
	}
	return p.Flush(ctx)
}

// limitReachedLocked reports whether either limit is reached. Caller must hold mu.
func (p *BufferedPolicy) limitReachedLocked() bool {
	if p.config.MaxBufferBlocks > 0 && len(p.buffer) >= p.config.MaxBufferBlocks {
		return true
	}
	return p.config.MaxBufferBytes > 0 && p.bufferBytes >= p.config.MaxBufferBytes
}

// Flush writes all buffered blocks to the sink in one batch.
// On failure the buffer is kept intact for the next attempt.
func (p *BufferedPolicy) Flush(ctx context.Context) error {
	p.flushMu.Lock()
	defer p.flushMu.Unlock()

	p.stats.incFlush()

	p.mu.Lock()
	batch := make([]*types.BlockRecord, len(p.buffer))
	copy(batch, p.buffer)
	p.dirty = false
	p.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	err := p.sink.WriteBlocks(ctx, batch)
	notify(p.observer, batch, err)
	if err != nil {
		p.stats.incErrors()
		p.logFlushFailure(len(batch), err)
		return err
	}

	p.mu.Lock()
	p.buffer = append(p.buffer[:0], p.buffer[len(batch):]...)
	p.bufferBytes -= payloadBytes(batch)
	p.stats.addPersisted(batch)
	p.mu.Unlock()

	return nil
}

// Close flushes blocks buffered since the last flush attempt and closes
// the sink. A buffer that already failed to flush is not retried.
func (p *BufferedPolicy) Close() error {
	p.mu.Lock()
	dirty := p.dirty
	p.mu.Unlock()

	var err error
	if dirty {
		err = p.Flush(context.Background())
	}
	return multierr.Append(err, p.sink.Close())
}

// Stats returns policy statistics.
// The buffer mutex is held while taking the snapshot, so counters and
// buffer state are captured from the same point in time.
func (p *BufferedPolicy) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := p.stats.snapshot()
	s.BufferedBlocks = int64(len(p.buffer))
	s.BufferBytes = p.bufferBytes
	return s
}

func (p *BufferedPolicy) logFlushFailure(blocks int, err error) {
	if p.logger == nil {
		return
	}
	p.logger.Error("flush failed", map[string]any{
		"blocks": blocks,
		"error":  err.Error(),
		"policy": NameBuffered,
	})
}
