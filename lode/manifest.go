package lode

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/justapithecus/lode/lode"
)

// ErrNoManifestFound is returned when a dataset holds no rows for a scan.
var ErrNoManifestFound = errors.New("no manifest records found")

// manifestPartitionKeys is the Hive layout shared by the write and read paths.
var manifestPartitionKeys = []string{"source", "day", "scan_id"}

// NewManifestDataset creates the manifest Dataset over the given store.
// The same codec and layout serve both writing and reading.
func NewManifestDataset(dataset string, factory lode.StoreFactory) (lode.Dataset, error) {
	return lode.NewDataset(
		lode.DatasetID(dataset),
		factory,
		lode.WithHiveLayout(manifestPartitionKeys...),
		lode.WithCodec(lode.NewJSONLCodec()),
	)
}

// NewManifestDatasetFS creates a manifest Dataset with filesystem storage.
func NewManifestDatasetFS(dataset, rootPath string) (lode.Dataset, error) {
	return NewManifestDataset(dataset, lode.NewFSFactory(rootPath))
}

// ReadManifest returns the manifest rows of one scan ordered by ordinal.
// An empty scanID reads every scan in the dataset. Rows rewritten by a
// retried flush are collapsed, keeping the latest.
func ReadManifest(ctx context.Context, ds lode.Dataset, scanID string) ([]ManifestRecord, error) {
	snapshots, err := ds.Snapshots(ctx)
	if err != nil {
		return nil, WrapReadError(err, string(ds.ID())+"/snapshots")
	}

	type rowKey struct {
		scanID  string
		ordinal int
	}
	latest := make(map[rowKey]ManifestRecord)

	// Snapshots are ordered by creation time, so later rows win.
	for _, snap := range snapshots {
		if !snapshotMatchesFilter(snap, "scan_id", scanID) {
			continue
		}

		data, err := ds.Read(ctx, snap.ID)
		if err != nil {
			return nil, WrapReadError(err, fmt.Sprintf("%s/snapshot/%s", ds.ID(), snap.ID))
		}

		// Manifest path filtering is a coarse pre-filter; record fields
		// are authoritative.
		for _, item := range data {
			m, ok := item.(map[string]any)
			if !ok || m["record_kind"] != RecordKindBlock {
				continue
			}
			rec := fromManifestRecordMap(m)
			if scanID != "" && rec.ScanID != scanID {
				continue
			}
			latest[rowKey{rec.ScanID, rec.Ordinal}] = rec
		}
	}

	if len(latest) == 0 {
		return nil, ErrNoManifestFound
	}

	out := make([]ManifestRecord, 0, len(latest))
	for _, rec := range latest {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ScanID != out[j].ScanID {
			return out[i].ScanID < out[j].ScanID
		}
		return out[i].Ordinal < out[j].Ordinal
	})
	return out, nil
}

// snapshotMatchesFilter checks if a snapshot's file paths match
// the given partition key=value filter.
func snapshotMatchesFilter(snap *lode.Snapshot, key, value string) bool {
	if value == "" {
		return true
	}
	for _, f := range snap.Manifest.Files {
		if matchesPartitionValue(f.Path, key, value) {
			return true
		}
	}
	return false
}

// matchesPartitionValue checks if a Hive-partitioned path contains an exact
// key=value segment, so scan_id=a does not match scan_id=ab.
func matchesPartitionValue(path, key, value string) bool {
	segment := key + "=" + value
	for _, part := range strings.Split(path, "/") {
		if part == segment {
			return true
		}
	}
	return false
}
