// Package policy defines the write policies that decide when decoded
// blocks reach storage.
package policy

import (
	"context"
	"sync"

	"github.com/justapithecus/sphere2bin/types"
)

// Policy names.
const (
	NameStrict   = "strict"
	NameBuffered = "buffered"
	NameNoop     = "noop"
)

// Policy defines the write policy interface.
// Policies control buffering and persistence; they never drop or alter
// blocks.
type Policy interface {
	// IngestBlock hands one decoded block to the policy.
	// Returns the sink error if a write triggered by this call failed.
	// The caller may continue ingesting after an error.
	IngestBlock(ctx context.Context, rec *types.BlockRecord) error

	// Flush writes any buffered blocks.
	// Called once at end of input.
	Flush(ctx context.Context) error

	// Close releases policy and sink resources.
	Close() error

	// Stats returns an atomic snapshot of policy counters.
	Stats() Stats
}

// PersistObserver is notified after every sink write with the records in
// the batch and the write result. Records that reached storage carry a
// Location.
type PersistObserver func(recs []*types.BlockRecord, err error)

// Stats represents policy observability counters.
type Stats struct {
	// TotalBlocks is the total number of blocks received.
	TotalBlocks int64
	// BlocksPersisted is the number of blocks written to the sink.
	BlocksPersisted int64
	// BytesPersisted is the payload bytes written to the sink.
	BytesPersisted int64
	// BufferedBlocks is the number of blocks awaiting a flush.
	BufferedBlocks int64
	// BufferBytes is the payload bytes awaiting a flush.
	BufferBytes int64
	// FlushCount is the number of flush operations.
	FlushCount int64
	// Errors is the count of failed sink writes.
	Errors int64
}

// statsRecorder is an internal helper for thread-safe stats management.
type statsRecorder struct {
	mu    sync.Mutex
	stats Stats
}

func (r *statsRecorder) incTotal() {
	r.mu.Lock()
	r.stats.TotalBlocks++
	r.mu.Unlock()
}

func (r *statsRecorder) addPersisted(recs []*types.BlockRecord) {
	r.mu.Lock()
	r.addPersistedLocked(recs)
	r.mu.Unlock()
}

func (r *statsRecorder) addPersistedLocked(recs []*types.BlockRecord) {
	r.stats.BlocksPersisted += int64(len(recs))
	r.stats.BytesPersisted += payloadBytes(recs)
}

func (r *statsRecorder) incErrors() {
	r.mu.Lock()
	r.stats.Errors++
	r.mu.Unlock()
}

func (r *statsRecorder) incFlush() {
	r.mu.Lock()
	r.stats.FlushCount++
	r.mu.Unlock()
}

func (r *statsRecorder) snapshot() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

func payloadBytes(recs []*types.BlockRecord) int64 {
	var n int64
	for _, rec := range recs {
		n += int64(len(rec.Data))
	}
	return n
}

func notify(observer PersistObserver, recs []*types.BlockRecord, err error) {
	if observer != nil {
		observer(recs, err)
	}
}
