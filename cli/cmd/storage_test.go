package cmd

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestOutputRoot(t *testing.T) {
	tests := []struct {
		name      string
		outputDir string
		input     string
		want      string
	}{
		{"explicit dir", "out", "tapes/a.raw", "out"},
		{"input dir", "", filepath.Join("tapes", "a.raw"), "tapes"},
		{"bare file", "", "a.raw", "."},
		{"stdin", "", "-", "."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := outputRoot(tt.outputDir, tt.input); got != tt.want {
				t.Errorf("outputRoot(%q, %q) = %q, want %q", tt.outputDir, tt.input, got, tt.want)
			}
		})
	}
}

func TestValidateStorageConfig(t *testing.T) {
	tests := []struct {
		name        string
		choice      storageChoice
		errContains string
	}{
		{"fs valid", storageChoice{backend: "fs", root: "."}, ""},
		{"fs empty root", storageChoice{backend: "fs"}, "output directory"},
		{"s3 valid", storageChoice{backend: "s3", path: "bucket/prefix"}, ""},
		{"s3 missing path", storageChoice{backend: "s3"}, "--path is required"},
		{"s3 empty bucket", storageChoice{backend: "s3", path: "s3:///prefix"}, "bucket is empty"},
		{"unknown backend", storageChoice{backend: "gcs", root: "."}, "must be fs or s3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateStorageConfig(tt.choice)
			if tt.errContains == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("error = %v, want it to contain %q", err, tt.errContains)
			}
		})
	}
}

func TestBuildStoragePath(t *testing.T) {
	dir := t.TempDir()
	if got := buildStoragePath(storageChoice{backend: "fs", root: dir}); got != dir {
		t.Errorf("fs path = %q, want %q", got, dir)
	}
	if got := buildStoragePath(storageChoice{backend: "s3", path: "tapes/archive/"}); got != "s3://tapes/archive" {
		t.Errorf("s3 path = %q", got)
	}
	if got := buildStoragePath(storageChoice{backend: "s3", path: "tapes"}); got != "s3://tapes" {
		t.Errorf("s3 bucket-only path = %q", got)
	}
	if got := buildStoragePath(storageChoice{backend: "gcs"}); got != "" {
		t.Errorf("unknown backend path = %q, want empty", got)
	}
}
