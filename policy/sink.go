package policy

import (
	"context"
	"fmt"
	"sync"

	"github.com/justapithecus/sphere2bin/types"
)

// Sink abstracts persistence for policies.
// Implementations may write to storage or stub for testing.
//
// Methods are batch-oriented to support both strict (batch of 1) and
// buffered policies.
type Sink interface {
	// WriteBlocks persists a batch of blocks in order.
	// Implementations set Location on every record they persist, so a
	// failed batch may still carry locations for its leading records.
	WriteBlocks(ctx context.Context, recs []*types.BlockRecord) error

	// Close releases any resources held by the sink.
	Close() error
}

// StubSink is a test sink that accepts writes without persisting.
// Tracks write statistics for test assertions.
type StubSink struct {
	mu sync.Mutex

	// BlocksWritten is the total count of blocks written.
	BlocksWritten int64
	// Batches is the number of successful WriteBlocks calls.
	Batches int64
	// Closed indicates whether Close was called.
	Closed bool

	// Written stores all written blocks for inspection.
	Written []*types.BlockRecord

	// ErrorOnWrite, if non-nil, is returned by every WriteBlocks call.
	ErrorOnWrite error
	// FailOrdinals fails any batch containing one of these ordinals.
	// Records ahead of the failing one in the batch are still written.
	FailOrdinals map[int]error
}

// NewStubSink creates a new stub sink for testing.
func NewStubSink() *StubSink {
	return &StubSink{
		Written:      make([]*types.BlockRecord, 0),
		FailOrdinals: make(map[int]error),
	}
}

// WriteBlocks records the blocks without persisting.
func (s *StubSink) WriteBlocks(_ context.Context, recs []*types.BlockRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ErrorOnWrite != nil {
		return s.ErrorOnWrite
	}

	for _, rec := range recs {
		if err, ok := s.FailOrdinals[rec.Ordinal]; ok {
			return err
		}
		rec.Location = fmt.Sprintf("stub://%d", rec.Ordinal)
		s.BlocksWritten++
		s.Written = append(s.Written, rec)
	}
	s.Batches++

	return nil
}

// Close marks the sink as closed.
func (s *StubSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Closed = true
	return nil
}

// Stats returns a snapshot of sink statistics.
func (s *StubSink) Stats() StubSinkStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return StubSinkStats{
		BlocksWritten: s.BlocksWritten,
		Batches:       s.Batches,
		Closed:        s.Closed,
	}
}

// StubSinkStats is a snapshot of StubSink statistics.
type StubSinkStats struct {
	BlocksWritten int64
	Batches       int64
	Closed        bool
}
