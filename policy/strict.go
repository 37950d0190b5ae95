package policy

import (
	"context"

	"github.com/justapithecus/sphere2bin/types"
)

// StrictPolicy implements synchronous, unbuffered persistence.
//
//   - No buffering: each block is written as soon as it is decoded
//   - Backpressure: the scan blocks on sink latency
//   - Sink errors are returned to the caller, which decides whether to go on
type StrictPolicy struct {
	sink     Sink
	observer PersistObserver
	stats    statsRecorder
}

// NewStrictPolicy creates a new strict policy writing to the given sink.
// observer may be nil.
func NewStrictPolicy(sink Sink, observer PersistObserver) *StrictPolicy {
	return &StrictPolicy{sink: sink, observer: observer}
}

// IngestBlock writes the block immediately to the sink.
func (p *StrictPolicy) IngestBlock(ctx context.Context, rec *types.BlockRecord) error {
	p.stats.incTotal()

	batch := []*types.BlockRecord{rec}
	err := p.sink.WriteBlocks(ctx, batch)
	if err != nil {
		p.stats.incErrors()
	} else {
		p.stats.addPersisted(batch)
	}
	notify(p.observer, batch, err)
	return err
}

// Flush is a no-op for strict policy (nothing is buffered).
func (p *StrictPolicy) Flush(_ context.Context) error {
	p.stats.incFlush()
	return nil
}

// Close closes the underlying sink.
func (p *StrictPolicy) Close() error {
	return p.sink.Close()
}

// Stats returns policy statistics.
func (p *StrictPolicy) Stats() Stats {
	return p.stats.snapshot()
}
