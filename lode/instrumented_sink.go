package lode

import (
	"context"

	"github.com/justapithecus/sphere2bin/metrics"
	"github.com/justapithecus/sphere2bin/policy"
	"github.com/justapithecus/sphere2bin/types"
)

// InstrumentedSink wraps a policy.Sink and records write metrics.
// Each WriteBlocks call increments the storage write success or failure
// counter once, regardless of batch size.
type InstrumentedSink struct {
	inner     policy.Sink
	collector *metrics.Collector
}

// NewInstrumentedSink wraps a sink with metrics instrumentation.
func NewInstrumentedSink(inner policy.Sink, collector *metrics.Collector) *InstrumentedSink {
	return &InstrumentedSink{inner: inner, collector: collector}
}

// WriteBlocks delegates to the inner sink and records success or failure.
func (s *InstrumentedSink) WriteBlocks(ctx context.Context, recs []*types.BlockRecord) error {
	err := s.inner.WriteBlocks(ctx, recs)
	if err != nil {
		s.collector.IncStorageWriteFailure()
	} else {
		s.collector.IncStorageWriteSuccess()
	}
	return err
}

// Close delegates to the inner sink.
func (s *InstrumentedSink) Close() error {
	return s.inner.Close()
}

// Verify InstrumentedSink implements policy.Sink.
var _ policy.Sink = (*InstrumentedSink)(nil)
