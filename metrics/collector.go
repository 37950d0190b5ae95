// Package metrics provides per-scan metrics collection.
//
// The Collector accumulates counters during a single scan. It is a leaf
// package with no internal dependencies. Decoder and policy counters are
// absorbed once at scan end rather than recorded live, avoiding
// double-counting.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all scan metrics.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Scan lifecycle
	ScansStarted   int64
	ScansCompleted int64
	ScansFailed    int64

	// Input (absorbed from decoder stats at scan end)
	BytesRead  int64
	NoiseBytes int64
	Headers    int64
	Desyncs    int64

	// Blocks (recorded live, one per emitted block)
	BlocksDecoded  int64
	BlocksText     int64
	BlocksObject   int64
	TrailerErrors  int64
	ChecksumErrors int64

	// PartialBlocksDiscarded counts blocks cut short by end of input.
	PartialBlocksDiscarded int64

	// Storage (per sink call)
	StorageWriteSuccess int64
	StorageWriteFailure int64

	// Persistence (absorbed from policy stats at scan end)
	ArtifactsPersisted int64
	BytesPersisted     int64
	FlushCount         int64

	// Dimensions (informational, set at construction)
	Policy         string
	StorageBackend string
	ScanID         string
}

// Block labels accepted by RecordBlock. They mirror the types package
// labels without importing it.
const (
	kindObject    = "Object"
	errorTrailer  = "Trailer"
	errorChecksum = "Checksum"
)

// Collector accumulates metrics during a single scan.
// Thread-safe via sync.Mutex. All methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	scansStarted   int64
	scansCompleted int64
	scansFailed    int64

	bytesRead  int64
	noiseBytes int64
	headers    int64
	desyncs    int64

	blocksDecoded  int64
	blocksText     int64
	blocksObject   int64
	trailerErrors  int64
	checksumErrors int64
	partialBlocks  int64

	storageWriteSuccess int64
	storageWriteFailure int64

	artifactsPersisted int64
	bytesPersisted     int64
	flushCount         int64

	policy         string
	storageBackend string
	scanID         string
}

// NewCollector creates a Collector with dimension labels.
// storageBackend is "none" in list-only mode.
func NewCollector(policy, storageBackend, scanID string) *Collector {
	return &Collector{
		policy:         policy,
		storageBackend: storageBackend,
		scanID:         scanID,
	}
}

// --- Scan lifecycle ---

// IncScanStarted records a scan start.
func (c *Collector) IncScanStarted() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.scansStarted++
	c.mu.Unlock()
}

// IncScanCompleted records a scan that reached the end of its input.
func (c *Collector) IncScanCompleted() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.scansCompleted++
	c.mu.Unlock()
}

// IncScanFailed records a scan that ended on an input, storage or
// cancellation failure.
func (c *Collector) IncScanFailed() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.scansFailed++
	c.mu.Unlock()
}

// --- Blocks ---

// RecordBlock records one emitted block by its kind and error labels.
func (c *Collector) RecordBlock(kind, errLabel string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.blocksDecoded++
	if kind == kindObject {
		c.blocksObject++
	} else {
		c.blocksText++
	}
	switch errLabel {
	case errorTrailer:
		c.trailerErrors++
	case errorChecksum:
		c.checksumErrors++
	}
}

// IncPartialBlockDiscarded records a block dropped at end of input.
func (c *Collector) IncPartialBlockDiscarded() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.partialBlocks++
	c.mu.Unlock()
}

// --- Storage ---
// Storage counters are per-call, not per-record. A single WriteBlocks call
// with N blocks counts as 1 success. Per-block granularity is tracked
// separately by policy stats (artifacts persisted).

// IncStorageWriteSuccess records a successful storage write operation.
func (c *Collector) IncStorageWriteSuccess() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.storageWriteSuccess++
	c.mu.Unlock()
}

// IncStorageWriteFailure records a failed storage write operation.
func (c *Collector) IncStorageWriteFailure() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.storageWriteFailure++
	c.mu.Unlock()
}

// --- Absorbed at scan end ---

// AbsorbDecoderStats copies the decoder's input counters into the collector.
func (c *Collector) AbsorbDecoderStats(bytesRead, noiseBytes, headers, desyncs int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.bytesRead = bytesRead
	c.noiseBytes = noiseBytes
	c.headers = headers
	c.desyncs = desyncs
	c.mu.Unlock()
}

// AbsorbPolicyStats copies persistence counters from the write policy.
func (c *Collector) AbsorbPolicyStats(persisted, bytesPersisted, flushes int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.artifactsPersisted = persisted
	c.bytesPersisted = bytesPersisted
	c.flushCount = flushes
	c.mu.Unlock()
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		ScansStarted:   c.scansStarted,
		ScansCompleted: c.scansCompleted,
		ScansFailed:    c.scansFailed,

		BytesRead:  c.bytesRead,
		NoiseBytes: c.noiseBytes,
		Headers:    c.headers,
		Desyncs:    c.desyncs,

		BlocksDecoded:          c.blocksDecoded,
		BlocksText:             c.blocksText,
		BlocksObject:           c.blocksObject,
		TrailerErrors:          c.trailerErrors,
		ChecksumErrors:         c.checksumErrors,
		PartialBlocksDiscarded: c.partialBlocks,

		StorageWriteSuccess: c.storageWriteSuccess,
		StorageWriteFailure: c.storageWriteFailure,

		ArtifactsPersisted: c.artifactsPersisted,
		BytesPersisted:     c.bytesPersisted,
		FlushCount:         c.flushCount,

		Policy:         c.policy,
		StorageBackend: c.storageBackend,
		ScanID:         c.scanID,
	}
}
