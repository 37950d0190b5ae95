package policy_test

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/justapithecus/sphere2bin/policy"
	"github.com/justapithecus/sphere2bin/types"
)

func record(ordinal int, size int) *types.BlockRecord {
	return &types.BlockRecord{
		Ordinal: ordinal,
		Name:    "AB",
		Length:  size,
		Kind:    types.KindText,
		Data:    bytes.Repeat([]byte{'x'}, size),
	}
}

// helper to create policy or fail test
func mustNewBufferedPolicy(t *testing.T, sink policy.Sink, config policy.BufferedConfig) *policy.BufferedPolicy {
	t.Helper()
	pol, err := policy.NewBufferedPolicy(sink, config)
	if err != nil {
		t.Fatalf("NewBufferedPolicy failed: %v", err)
	}
	return pol
}

func TestStrictPolicy_WritesEachBlock(t *testing.T) {
	sink := policy.NewStubSink()
	var observed [][]*types.BlockRecord
	pol := policy.NewStrictPolicy(sink, func(recs []*types.BlockRecord, err error) {
		if err != nil {
			t.Errorf("unexpected observer error: %v", err)
		}
		observed = append(observed, recs)
	})

	for i := 1; i <= 3; i++ {
		if err := pol.IngestBlock(t.Context(), record(i, 10)); err != nil {
			t.Fatalf("IngestBlock failed: %v", err)
		}
	}

	if got := sink.Stats().Batches; got != 3 {
		t.Errorf("expected 3 batches of 1, got %d", got)
	}
	if len(observed) != 3 {
		t.Errorf("observer called %d times, want 3", len(observed))
	}
	for i, rec := range sink.Written {
		if rec.Ordinal != i+1 {
			t.Errorf("Written[%d].Ordinal = %d, want %d", i, rec.Ordinal, i+1)
		}
		if rec.Location == "" {
			t.Errorf("Written[%d] has no location", i)
		}
	}

	stats := pol.Stats()
	if stats.TotalBlocks != 3 || stats.BlocksPersisted != 3 || stats.BytesPersisted != 30 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestStrictPolicy_SinkErrorIsReturnedAndScanCanContinue(t *testing.T) {
	sink := policy.NewStubSink()
	writeErr := errors.New("permission denied")
	sink.FailOrdinals[2] = writeErr

	var failures int
	pol := policy.NewStrictPolicy(sink, func(_ []*types.BlockRecord, err error) {
		if err != nil {
			failures++
		}
	})

	var errs []error
	for i := 1; i <= 3; i++ {
		errs = append(errs, pol.IngestBlock(t.Context(), record(i, 4)))
	}

	if errs[0] != nil || errs[2] != nil {
		t.Errorf("unexpected errors for healthy blocks: %v", errs)
	}
	if !errors.Is(errs[1], writeErr) {
		t.Errorf("expected write error for block 2, got %v", errs[1])
	}
	if failures != 1 {
		t.Errorf("observer saw %d failures, want 1", failures)
	}

	stats := pol.Stats()
	if stats.BlocksPersisted != 2 || stats.Errors != 1 || stats.TotalBlocks != 3 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestStrictPolicy_CloseClosesSink(t *testing.T) {
	sink := policy.NewStubSink()
	pol := policy.NewStrictPolicy(sink, nil)

	if err := pol.Flush(t.Context()); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if err := pol.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !sink.Stats().Closed {
		t.Error("sink not closed")
	}
	if pol.Stats().FlushCount != 1 {
		t.Errorf("FlushCount = %d, want 1", pol.Stats().FlushCount)
	}
}

func TestNoopPolicy_PersistsNothing(t *testing.T) {
	pol := policy.NewNoopPolicy()

	for i := 1; i <= 5; i++ {
		if err := pol.IngestBlock(t.Context(), record(i, 100)); err != nil {
			t.Fatalf("IngestBlock failed: %v", err)
		}
	}
	_ = pol.Flush(t.Context())

	stats := pol.Stats()
	if stats.TotalBlocks != 5 {
		t.Errorf("TotalBlocks = %d, want 5", stats.TotalBlocks)
	}
	if stats.BlocksPersisted != 0 || stats.BytesPersisted != 0 {
		t.Errorf("noop policy persisted data: %+v", stats)
	}
	if err := pol.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestBufferedPolicy_InvalidConfig(t *testing.T) {
	_, err := policy.NewBufferedPolicy(policy.NewStubSink(), policy.BufferedConfig{})
	if !errors.Is(err, policy.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestBufferedPolicy_FlushesAtLimits(t *testing.T) {
	tests := []struct {
		name        string
		config      policy.BufferedConfig
		blocks      int
		size        int
		wantBatches int64
		wantPending int64
	}{
		{
			name:        "block limit",
			config:      policy.BufferedConfig{MaxBufferBlocks: 2},
			blocks:      5,
			size:        10,
			wantBatches: 2,
			wantPending: 1,
		},
		{
			name:        "byte limit",
			config:      policy.BufferedConfig{MaxBufferBytes: 25},
			blocks:      4,
			size:        10,
			wantBatches: 1,
			wantPending: 1,
		},
		{
			name:        "both limits, blocks first",
			config:      policy.BufferedConfig{MaxBufferBlocks: 3, MaxBufferBytes: 1000},
			blocks:      3,
			size:        10,
			wantBatches: 1,
			wantPending: 0,
		},
		{
			name:        "under limits",
			config:      policy.BufferedConfig{MaxBufferBlocks: 10, MaxBufferBytes: 1000},
			blocks:      3,
			size:        10,
			wantBatches: 0,
			wantPending: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := policy.NewStubSink()
			pol := mustNewBufferedPolicy(t, sink, tt.config)

			for i := 1; i <= tt.blocks; i++ {
				if err := pol.IngestBlock(t.Context(), record(i, tt.size)); err != nil {
					t.Fatalf("IngestBlock failed: %v", err)
				}
			}

			if got := sink.Stats().Batches; got != tt.wantBatches {
				t.Errorf("batches = %d, want %d", got, tt.wantBatches)
			}
			if got := pol.Stats().BufferedBlocks; got != tt.wantPending {
				t.Errorf("BufferedBlocks = %d, want %d", got, tt.wantPending)
			}

			if err := pol.Flush(t.Context()); err != nil {
				t.Fatalf("Flush failed: %v", err)
			}
			if got := sink.Stats().BlocksWritten; got != int64(tt.blocks) {
				t.Errorf("BlocksWritten = %d after flush, want %d", got, tt.blocks)
			}
			for i, rec := range sink.Written {
				if rec.Ordinal != i+1 {
					t.Fatalf("Written[%d].Ordinal = %d, order not preserved", i, rec.Ordinal)
				}
			}
		})
	}
}

func TestBufferedPolicy_FailedFlushKeepsBuffer(t *testing.T) {
	sink := policy.NewStubSink()
	sink.ErrorOnWrite = errors.New("bucket unavailable")
	pol := mustNewBufferedPolicy(t, sink, policy.BufferedConfig{MaxBufferBlocks: 100})

	for i := 1; i <= 3; i++ {
		_ = pol.IngestBlock(t.Context(), record(i, 8))
	}

	if err := pol.Flush(t.Context()); err == nil {
		t.Fatal("expected flush error")
	}
	stats := pol.Stats()
	if stats.BufferedBlocks != 3 || stats.BufferBytes != 24 {
		t.Errorf("buffer not kept after failure: %+v", stats)
	}
	if stats.Errors != 1 {
		t.Errorf("Errors = %d, want 1", stats.Errors)
	}

	// Recover and retry: every block is written.
	sink.ErrorOnWrite = nil
	if err := pol.Flush(t.Context()); err != nil {
		t.Fatalf("retry flush failed: %v", err)
	}
	stats = pol.Stats()
	if stats.BufferedBlocks != 0 || stats.BlocksPersisted != 3 || stats.BytesPersisted != 24 {
		t.Errorf("unexpected stats after retry: %+v", stats)
	}
	if sink.Stats().BlocksWritten != 3 {
		t.Errorf("BlocksWritten = %d, want 3", sink.Stats().BlocksWritten)
	}
}

func TestBufferedPolicy_CloseFlushesPendingOnce(t *testing.T) {
	sink := policy.NewStubSink()
	var calls int
	pol := mustNewBufferedPolicy(t, sink, policy.BufferedConfig{
		MaxBufferBlocks: 100,
		Observer:        func([]*types.BlockRecord, error) { calls++ },
	})

	_ = pol.IngestBlock(t.Context(), record(1, 3))
	if err := pol.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if sink.Stats().BlocksWritten != 1 {
		t.Errorf("pending block not flushed on close")
	}
	if !sink.Stats().Closed {
		t.Error("sink not closed")
	}
	if calls != 1 {
		t.Errorf("observer called %d times, want 1", calls)
	}
}

func TestBufferedPolicy_CloseDoesNotRetryFailedFlush(t *testing.T) {
	sink := policy.NewStubSink()
	sink.ErrorOnWrite = errors.New("offline")
	var calls int
	pol := mustNewBufferedPolicy(t, sink, policy.BufferedConfig{
		MaxBufferBlocks: 100,
		Observer:        func([]*types.BlockRecord, error) { calls++ },
	})

	_ = pol.IngestBlock(t.Context(), record(1, 3))
	_ = pol.Flush(t.Context())
	if err := pol.Close(); err != nil {
		t.Fatalf("Close returned %v", err)
	}
	if calls != 1 {
		t.Errorf("observer called %d times, want 1", calls)
	}
}

func TestBufferedPolicy_StatsConcurrentAccess(t *testing.T) {
	sink := policy.NewStubSink()
	pol := mustNewBufferedPolicy(t, sink, policy.BufferedConfig{MaxBufferBlocks: 7})

	var wg sync.WaitGroup
	const ingesters = 4
	const perIngester = 50

	for i := range ingesters {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := range perIngester {
				_ = pol.IngestBlock(t.Context(), record(id*perIngester+j+1, 2))
			}
		}(i)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for range 100 {
			s := pol.Stats()
			if s.BufferedBlocks < 0 || s.BufferBytes < 0 {
				t.Errorf("negative buffer state: %+v", s)
			}
		}
	}()

	wg.Wait()
	if err := pol.Flush(t.Context()); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	stats := pol.Stats()
	want := int64(ingesters * perIngester)
	if stats.TotalBlocks != want || stats.BlocksPersisted != want {
		t.Errorf("stats = %+v, want %d total and persisted", stats, want)
	}
	if sink.Stats().BlocksWritten != want {
		t.Errorf("BlocksWritten = %d, want %d", sink.Stats().BlocksWritten, want)
	}
}

func TestStubSink_FailOrdinalsWritesLeadingRecords(t *testing.T) {
	sink := policy.NewStubSink()
	sink.FailOrdinals[2] = errors.New("boom")

	recs := []*types.BlockRecord{record(1, 1), record(2, 1), record(3, 1)}
	if err := sink.WriteBlocks(t.Context(), recs); err == nil {
		t.Fatal("expected error")
	}
	if recs[0].Location == "" {
		t.Error("leading record should carry a location")
	}
	if recs[1].Location != "" || recs[2].Location != "" {
		t.Error("records from the failure onward should have no location")
	}
	if sink.Stats().Batches != 0 {
		t.Errorf("failed batch counted as success")
	}
}
