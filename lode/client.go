package lode

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/justapithecus/lode/lode"

	"github.com/justapithecus/sphere2bin/types"
)

// DefaultDataset is the manifest dataset ID.
const DefaultDataset = "sphere2bin"

// Client abstracts artifact storage.
// Real implementations are backed by a Lode store; stubs are used for testing.
type Client interface {
	// PutArtifact writes data under filename, replacing any existing
	// artifact, and returns the location it was written to.
	PutArtifact(ctx context.Context, filename string, data []byte) (string, error)

	// WriteManifest appends metadata records for persisted blocks.
	// It is a no-op when the manifest is disabled.
	WriteManifest(ctx context.Context, recs []*types.BlockRecord) error

	// Close releases client resources.
	Close() error
}

// LodeClient is the Lode-backed implementation of Client.
// Artifacts are written straight to the store at the bare filename, so the
// fs backend produces files directly in the output directory. The manifest,
// when enabled, is a dataset in the same store partitioned by
// source/day/scan_id.
type LodeClient struct {
	config Config

	storeFactory lode.StoreFactory
	storeOnce    sync.Once
	store        lode.Store
	storeErr     error

	// locate maps a store key to the location reported to the user.
	locate func(key string) string

	dataset lode.Dataset
}

// NewLodeClient creates a Lode client with filesystem storage rooted at root.
// The directory is created if it does not exist.
func NewLodeClient(cfg Config, root string) (*LodeClient, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, WrapInitError(err, root)
	}
	return newLodeClient(cfg, lode.NewFSFactory(root), func(key string) string {
		return filepath.Join(root, filepath.FromSlash(key))
	})
}

// NewLodeClientWithFactory creates a Lode client with a custom store factory.
// Use lode.NewMemoryFactory() for testing.
func NewLodeClientWithFactory(cfg Config, factory lode.StoreFactory) (*LodeClient, error) {
	return newLodeClient(cfg, factory, func(key string) string {
		return "mem://" + key
	})
}

func newLodeClient(cfg Config, factory lode.StoreFactory, locate func(string) string) (*LodeClient, error) {
	if cfg.Dataset == "" {
		cfg.Dataset = DefaultDataset
	}
	c := &LodeClient{
		config:       cfg,
		storeFactory: factory,
		locate:       locate,
	}

	if cfg.Manifest {
		ds, err := NewManifestDataset(cfg.Dataset, c.getOrCreateStore)
		if err != nil {
			return nil, WrapInitError(err, cfg.Dataset)
		}
		c.dataset = ds
	}
	return c, nil
}

// PutArtifact implements Client.
// Lode stores are write-once per path, so an existing artifact is deleted
// before the new payload is put.
func (c *LodeClient) PutArtifact(ctx context.Context, filename string, data []byte) (string, error) {
	if filename == "" || filename == "." || filename == ".." || strings.ContainsAny(filename, `/\`) {
		return "", NewStorageError(ErrUnclassified, "write", filename, fmt.Errorf("invalid artifact name %q", filename))
	}

	location := c.locate(filename)

	store, err := c.getOrCreateStore()
	if err != nil {
		return "", WrapInitError(err, location)
	}

	exists, err := store.Exists(ctx, filename)
	if err != nil {
		return "", WrapWriteError(err, location)
	}
	if exists {
		if err := store.Delete(ctx, filename); err != nil {
			return "", WrapWriteError(err, location)
		}
	}

	if err := store.Put(ctx, filename, bytes.NewReader(data)); err != nil {
		return "", WrapWriteError(err, location)
	}
	return location, nil
}

// WriteManifest implements Client.
func (c *LodeClient) WriteManifest(ctx context.Context, recs []*types.BlockRecord) error {
	if c.dataset == nil || len(recs) == 0 {
		return nil
	}

	records := make([]any, 0, len(recs))
	for _, rec := range recs {
		records = append(records, toManifestRecordMap(rec, c.config))
	}

	if _, err := c.dataset.Write(ctx, records, lode.Metadata{}); err != nil {
		return WrapWriteError(err, c.config.Dataset)
	}
	return nil
}

// Close releases client resources.
func (c *LodeClient) Close() error {
	// Stores and datasets hold no resources in the current Lode API.
	return nil
}

// getOrCreateStore lazily initializes the Store from the factory.
// The manifest dataset uses it as its factory so both share one store.
func (c *LodeClient) getOrCreateStore() (lode.Store, error) {
	c.storeOnce.Do(func() {
		c.store, c.storeErr = c.storeFactory()
	})
	return c.store, c.storeErr
}

// Verify LodeClient implements Client.
var _ Client = (*LodeClient)(nil)
