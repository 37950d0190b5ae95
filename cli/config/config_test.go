package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_FullConfig(t *testing.T) {
	yaml := `output:
  dir: ./out
  name: side-a
  list_only: false
  format: json

storage:
  dataset: sphere2bin
  backend: s3
  path: my-bucket/prefix
  region: us-east-1
  endpoint: https://example.com
  s3_path_style: true
  manifest: true

policy:
  name: buffered
  buffer_blocks: 32
  buffer_bytes: 1048576

adapter:
  type: webhook
  url: https://hooks.example.com/sphere2bin
  headers:
    Authorization: Bearer token123
  timeout: 10s
  retries: 3

log:
  level: debug
`
	path := writeTemp(t, yaml)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// Output
	assertEqual(t, "output.dir", cfg.Output.Dir, "./out")
	assertEqual(t, "output.name", cfg.Output.Name, "side-a")
	assertEqual(t, "output.format", cfg.Output.Format, "json")
	if cfg.Output.ListOnly {
		t.Error("expected output.list_only=false")
	}

	// Storage
	assertEqual(t, "storage.dataset", cfg.Storage.Dataset, "sphere2bin")
	assertEqual(t, "storage.backend", cfg.Storage.Backend, "s3")
	assertEqual(t, "storage.path", cfg.Storage.Path, "my-bucket/prefix")
	assertEqual(t, "storage.region", cfg.Storage.Region, "us-east-1")
	assertEqual(t, "storage.endpoint", cfg.Storage.Endpoint, "https://example.com")
	if !cfg.Storage.S3PathStyle {
		t.Error("expected storage.s3_path_style=true")
	}
	if !cfg.Storage.Manifest {
		t.Error("expected storage.manifest=true")
	}

	// Policy
	assertEqual(t, "policy.name", cfg.Policy.Name, "buffered")
	if cfg.Policy.BufferBlocks != 32 {
		t.Errorf("expected buffer_blocks=32, got %d", cfg.Policy.BufferBlocks)
	}
	if cfg.Policy.BufferBytes != 1048576 {
		t.Errorf("expected buffer_bytes=1048576, got %d", cfg.Policy.BufferBytes)
	}

	// Adapter
	assertEqual(t, "adapter.type", cfg.Adapter.Type, "webhook")
	assertEqual(t, "adapter.url", cfg.Adapter.URL, "https://hooks.example.com/sphere2bin")
	assertEqual(t, "adapter.headers.Authorization", cfg.Adapter.Headers["Authorization"], "Bearer token123")
	if cfg.Adapter.Timeout.Duration != 10*time.Second {
		t.Errorf("expected adapter.timeout=10s, got %v", cfg.Adapter.Timeout.Duration)
	}
	if cfg.Adapter.Retries == nil || *cfg.Adapter.Retries != 3 {
		t.Error("expected adapter.retries=3")
	}

	// Log
	assertEqual(t, "log.level", cfg.Log.Level, "debug")
}

func TestLoad_EmptyConfig(t *testing.T) {
	path := writeTemp(t, "")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Output.Dir != "" {
		t.Errorf("expected empty output.dir, got %q", cfg.Output.Dir)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/sphere2bin.yaml")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "config file not found") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeTemp(t, "{{invalid yaml")
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_OUTPUT_DIR", "/var/tapes")

	yaml := `output:
  dir: ${TEST_OUTPUT_DIR}
  format: ${TEST_FORMAT_UNSET:-yaml}
`
	path := writeTemp(t, yaml)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	assertEqual(t, "output.dir", cfg.Output.Dir, "/var/tapes")
	assertEqual(t, "output.format", cfg.Output.Format, "yaml")
}

func TestLoad_UnknownKeyRejected(t *testing.T) {
	yaml := `output:
  dir: ./out
bogus_key: should_fail
`
	path := writeTemp(t, yaml)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for unknown key, got nil")
	}
	if !strings.Contains(err.Error(), "bogus_key") {
		t.Errorf("error should mention the unknown key, got: %v", err)
	}
}

func TestLoad_UnknownNestedKeyRejected(t *testing.T) {
	yaml := `storage:
  backend: fs
  path: ./data
  unknown_field: bad
`
	path := writeTemp(t, yaml)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for unknown nested key, got nil")
	}
	if !strings.Contains(err.Error(), "unknown_field") {
		t.Errorf("error should mention the unknown key, got: %v", err)
	}
}

func TestLoad_WhitespaceOnlyConfig(t *testing.T) {
	path := writeTemp(t, "   \n  \n  \n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed for whitespace-only config: %v", err)
	}
	if cfg.Policy.Name != "" {
		t.Errorf("expected empty policy.name, got %q", cfg.Policy.Name)
	}
}

func TestLoad_CommentsOnlyConfig(t *testing.T) {
	path := writeTemp(t, "# This is a comment\n# Another comment\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed for comments-only config: %v", err)
	}
	if cfg.Policy.Name != "" {
		t.Errorf("expected empty policy.name, got %q", cfg.Policy.Name)
	}
}

func TestLoad_RetriesZeroDistinctFromNil(t *testing.T) {
	// retries: 0 should parse as *int(0), not nil.
	yaml := `adapter:
  type: webhook
  url: https://example.com
  retries: 0
`
	path := writeTemp(t, yaml)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Adapter.Retries == nil {
		t.Fatal("expected retries to be non-nil (*int(0)), got nil")
	}
	if *cfg.Adapter.Retries != 0 {
		t.Errorf("expected retries=0, got %d", *cfg.Adapter.Retries)
	}
}

func TestLoad_RetriesOmittedIsNil(t *testing.T) {
	yaml := `adapter:
  type: webhook
  url: https://example.com
`
	path := writeTemp(t, yaml)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Adapter.Retries != nil {
		t.Errorf("expected retries to be nil, got %d", *cfg.Adapter.Retries)
	}
}

func TestDuration_InvalidFormat(t *testing.T) {
	yaml := `adapter:
  timeout: not-a-duration
`
	path := writeTemp(t, yaml)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid duration")
	}
	if !strings.Contains(err.Error(), "invalid duration") {
		t.Errorf("error should mention invalid duration, got: %v", err)
	}
}

func TestDuration_EmptyIsZero(t *testing.T) {
	yaml := `adapter:
  type: webhook
  url: https://example.com
  timeout: ""
`
	path := writeTemp(t, yaml)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Adapter.Timeout.Duration != 0 {
		t.Errorf("expected zero duration, got %v", cfg.Adapter.Timeout.Duration)
	}
}

func TestLoad_RedisAdapterConfig(t *testing.T) {
	yaml := `adapter:
  type: redis
  url: redis://localhost:6379/0
  channel: tapes:scan_completed
  timeout: 5s
  retries: 3
`
	path := writeTemp(t, yaml)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	assertEqual(t, "adapter.type", cfg.Adapter.Type, "redis")
	assertEqual(t, "adapter.url", cfg.Adapter.URL, "redis://localhost:6379/0")
	assertEqual(t, "adapter.channel", cfg.Adapter.Channel, "tapes:scan_completed")
	if cfg.Adapter.Timeout.Duration != 5*time.Second {
		t.Errorf("expected adapter.timeout=5s, got %v", cfg.Adapter.Timeout.Duration)
	}
}

func TestLoadDefault(t *testing.T) {
	t.Run("explicit path", func(t *testing.T) {
		path := writeTemp(t, "log:\n  level: warn\n")
		cfg, err := LoadDefault(path)
		if err != nil {
			t.Fatalf("LoadDefault failed: %v", err)
		}
		assertEqual(t, "log.level", cfg.Log.Level, "warn")
	})

	t.Run("default file in working directory", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, DefaultFile), []byte("policy:\n  name: buffered\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		t.Chdir(dir)

		cfg, err := LoadDefault("")
		if err != nil {
			t.Fatalf("LoadDefault failed: %v", err)
		}
		assertEqual(t, "policy.name", cfg.Policy.Name, "buffered")
	})

	t.Run("no default file", func(t *testing.T) {
		t.Chdir(t.TempDir())

		cfg, err := LoadDefault("")
		if err != nil {
			t.Fatalf("LoadDefault failed: %v", err)
		}
		if cfg == nil || cfg.Policy.Name != "" {
			t.Errorf("expected empty config, got %+v", cfg)
		}
	})
}

// writeTemp writes content to a temp file and returns the path.
func writeTemp(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFile)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func assertEqual(t *testing.T, field, got, want string) {
	t.Helper()
	if got != want {
		t.Errorf("%s: got %q, want %q", field, got, want)
	}
}
