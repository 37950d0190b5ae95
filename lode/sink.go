// Package lode persists decoded blocks through Lode.
//
// Each block payload becomes one artifact file named by ArtifactName. An
// optional manifest dataset records block metadata, partitioned by
// source/day/scan_id.
package lode

import (
	"context"
	"sync"
	"time"

	"github.com/justapithecus/sphere2bin/policy"
	"github.com/justapithecus/sphere2bin/types"
)

// DeriveDay computes the partition day from scan start time.
// Format: YYYY-MM-DD in UTC.
func DeriveDay(startTime time.Time) string {
	return startTime.UTC().Format("2006-01-02")
}

// Config holds Lode sink configuration.
type Config struct {
	// Dataset is the manifest dataset ID (defaults to DefaultDataset).
	Dataset string
	// Source is the artifact stem and the source partition key.
	Source string
	// Day is the partition key derived from scan start time (YYYY-MM-DD UTC).
	Day string
	// ScanID is the partition key for the scan identifier.
	ScanID string
	// Manifest enables the manifest dataset.
	Manifest bool
}

// Sink is a Lode-backed implementation of policy.Sink.
type Sink struct {
	config Config
	client Client
}

// NewSink creates a new Lode sink.
func NewSink(config Config, client Client) *Sink {
	return &Sink{
		config: config,
		client: client,
	}
}

// WriteBlocks implements policy.Sink.
// Artifacts are written in order. The first failure stops the batch, so
// records before it carry a Location and the rest do not. Manifest rows
// are written once every artifact of the batch is in place.
func (s *Sink) WriteBlocks(ctx context.Context, recs []*types.BlockRecord) error {
	for _, rec := range recs {
		filename := ArtifactName(s.config.Source, rec.NameBytes, rec.Ordinal)
		location, err := s.client.PutArtifact(ctx, filename, rec.Data)
		if err != nil {
			return err
		}
		rec.Location = location
	}
	return s.client.WriteManifest(ctx, recs)
}

// Close implements policy.Sink.
func (s *Sink) Close() error {
	return s.client.Close()
}

// Verify Sink implements policy.Sink.
var _ policy.Sink = (*Sink)(nil)

// StubClient is an in-memory Client for testing.
type StubClient struct {
	mu sync.Mutex

	// Artifacts maps filename to the last payload put.
	Artifacts map[string][]byte
	// Puts lists filenames in put order, including overwrites.
	Puts []string
	// Manifest collects every record passed to WriteManifest.
	Manifest []*types.BlockRecord
	Closed   bool

	// PutErr, if set, is returned by PutArtifact for any file.
	PutErr error
	// FailFiles maps filenames to the error PutArtifact returns for them.
	FailFiles map[string]error
	// ManifestErr, if set, is returned by WriteManifest.
	ManifestErr error
}

// NewStubClient creates a new stub client.
func NewStubClient() *StubClient {
	return &StubClient{
		Artifacts: make(map[string][]byte),
		FailFiles: make(map[string]error),
	}
}

// PutArtifact implements Client.
func (c *StubClient) PutArtifact(_ context.Context, filename string, data []byte) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.PutErr != nil {
		return "", c.PutErr
	}
	if err := c.FailFiles[filename]; err != nil {
		return "", err
	}
	c.Artifacts[filename] = append([]byte(nil), data...)
	c.Puts = append(c.Puts, filename)
	return "stub://" + filename, nil
}

// WriteManifest implements Client.
func (c *StubClient) WriteManifest(_ context.Context, recs []*types.BlockRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ManifestErr != nil {
		return c.ManifestErr
	}
	c.Manifest = append(c.Manifest, recs...)
	return nil
}

// Close implements Client.
func (c *StubClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Closed = true
	return nil
}

// Verify StubClient implements Client.
var _ Client = (*StubClient)(nil)
