package policy

import (
	"context"

	"github.com/justapithecus/sphere2bin/types"
)

// NoopPolicy backs list-only scans.
// Accepts every block and persists none.
type NoopPolicy struct {
	stats statsRecorder
}

// NewNoopPolicy creates a new no-op policy.
func NewNoopPolicy() *NoopPolicy {
	return &NoopPolicy{}
}

// IngestBlock counts the block without persisting it.
func (p *NoopPolicy) IngestBlock(_ context.Context, _ *types.BlockRecord) error {
	p.stats.incTotal()
	return nil
}

// Flush is a no-op.
func (p *NoopPolicy) Flush(_ context.Context) error {
	p.stats.incFlush()
	return nil
}

// Close is a no-op.
func (p *NoopPolicy) Close() error {
	return nil
}

// Stats returns the policy statistics.
func (p *NoopPolicy) Stats() Stats {
	return p.stats.snapshot()
}
