package lode

import (
	"encoding/hex"

	"github.com/justapithecus/sphere2bin/types"
)

// RecordKindBlock is the record_kind discriminator for manifest rows.
const RecordKindBlock = "block"

// ManifestRecord is the storage format for one persisted block.
// The payload itself lives in the artifact file; the manifest only
// describes it.
type ManifestRecord struct {
	// Record discriminator
	RecordKind string `json:"record_kind"`

	ContractVersion string `json:"contract_version"`
	Ordinal         int    `json:"ordinal"`
	Name            string `json:"name"`
	NameHex         string `json:"name_hex"`
	Length          int    `json:"length"`
	Kind            string `json:"kind"`
	Error           string `json:"error,omitempty"`
	Checksum        uint8  `json:"checksum"`
	Artifact        string `json:"artifact"`
	Location        string `json:"location"`

	// Partition keys (used by Lode HiveLayout)
	Source string `json:"source"`
	Day    string `json:"day"`
	ScanID string `json:"scan_id"`
}

// toManifestRecord converts a persisted block to its manifest row.
func toManifestRecord(rec *types.BlockRecord, cfg Config) ManifestRecord {
	return ManifestRecord{
		RecordKind:      RecordKindBlock,
		ContractVersion: types.ContractVersion,
		Ordinal:         rec.Ordinal,
		Name:            rec.PrintableName(),
		NameHex:         hex.EncodeToString(rec.NameBytes[:]),
		Length:          rec.Length,
		Kind:            rec.Kind,
		Error:           rec.Error,
		Checksum:        rec.Checksum,
		Artifact:        ArtifactName(cfg.Source, rec.NameBytes, rec.Ordinal),
		Location:        rec.Location,
		Source:          cfg.Source,
		Day:             cfg.Day,
		ScanID:          cfg.ScanID,
	}
}

// toManifestRecordMap converts a block to the map form the JSONL codec and
// Hive layout expect.
func toManifestRecordMap(rec *types.BlockRecord, cfg Config) map[string]any {
	r := toManifestRecord(rec, cfg)
	m := map[string]any{
		"record_kind":      r.RecordKind,
		"contract_version": r.ContractVersion,
		"ordinal":          r.Ordinal,
		"name":             r.Name,
		"name_hex":         r.NameHex,
		"length":           r.Length,
		"kind":             r.Kind,
		"checksum":         int(r.Checksum),
		"artifact":         r.Artifact,
		"location":         r.Location,
		"source":           r.Source,
		"day":              r.Day,
		"scan_id":          r.ScanID,
	}
	if r.Error != "" {
		m["error"] = r.Error
	}
	return m
}

// fromManifestRecordMap decodes a row read back from the dataset.
// JSONL numbers come back as float64.
func fromManifestRecordMap(m map[string]any) ManifestRecord {
	return ManifestRecord{
		RecordKind:      toString(m["record_kind"]),
		ContractVersion: toString(m["contract_version"]),
		Ordinal:         toInt(m["ordinal"]),
		Name:            toString(m["name"]),
		NameHex:         toString(m["name_hex"]),
		Length:          toInt(m["length"]),
		Kind:            toString(m["kind"]),
		Error:           toString(m["error"]),
		Checksum:        uint8(toInt(m["checksum"])),
		Artifact:        toString(m["artifact"]),
		Location:        toString(m["location"]),
		Source:          toString(m["source"]),
		Day:             toString(m["day"]),
		ScanID:          toString(m["scan_id"]),
	}
}

// toString converts a value to string, returning empty string for nil/non-string.
func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func toInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	}
	return 0
}
