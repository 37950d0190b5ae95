package config

import (
	"strings"
	"testing"
)

// envMap builds a lookup over a fixed environment.
func envMap(env map[string]string) func(string) (string, bool) {
	return func(name string) (string, bool) {
		v, ok := env[name]
		return v, ok
	}
}

func TestExpandEnv(t *testing.T) {
	env := envMap(map[string]string{
		"SPHERE2BIN_OUTPUT_DIR":    "/var/tapes",
		"SPHERE2BIN_WEBHOOK_TOKEN": "secret",
		"SPHERE2BIN_LOG_LEVEL":     "",
		"TAPE_BUCKET":              "tapes",
	})

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"set", "dir: ${SPHERE2BIN_OUTPUT_DIR}", "dir: /var/tapes"},
		{"unset", "url: ${SPHERE2BIN_WEBHOOK_URL}", "url: "},
		{"default when unset", "dir: ${SPHERE2BIN_UNSET:-.}", "dir: ."},
		{"default when empty", "level: ${SPHERE2BIN_LOG_LEVEL:-info}", "level: info"},
		{"default ignored when set", "dir: ${SPHERE2BIN_OUTPUT_DIR:-.}", "dir: /var/tapes"},
		{"default with colon", "url: ${SPHERE2BIN_WEBHOOK_URL:-http://localhost:8080}", "url: http://localhost:8080"},
		{"inside a value", "Authorization: Bearer ${SPHERE2BIN_WEBHOOK_TOKEN}", "Authorization: Bearer secret"},
		{"several on a line", "path: ${TAPE_BUCKET}/${TAPE_BUCKET}", "path: tapes/tapes"},
		{"no references", "name: side-a", "name: side-a"},
		{"bare dollar untouched", "name: $TAPE_BUCKET", "name: $TAPE_BUCKET"},
		{"invalid name untouched", "name: ${1ST}", "name: ${1ST}"},
		{"empty braces untouched", "name: ${}", "name: ${}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := expandEnv(tt.input, env)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExpandEnv_Unterminated(t *testing.T) {
	tests := []struct {
		name  string
		input string
		line  string
	}{
		{"end of document", "output:\n  dir: ${SPHERE2BIN_OUTPUT_DIR", "line 2"},
		{"closed on a later line", "output:\n  dir: ${SPHERE2BIN_OUTPUT_DIR\n  name: }", "line 2"},
		{"after a good reference", "log:\n  level: ${A}\n\n  x: ${B", "line 4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := expandEnv(tt.input, envMap(nil))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.line) || !strings.Contains(err.Error(), "unterminated") {
				t.Errorf("error = %v, want it to name %s", err, tt.line)
			}
		})
	}
}

func TestLoad_DocumentedVariables(t *testing.T) {
	t.Setenv("SPHERE2BIN_OUTPUT_DIR", "")
	t.Setenv("SPHERE2BIN_S3_PATH", "tapes/sphere")
	t.Setenv("SPHERE2BIN_WEBHOOK_URL", "https://hooks.example.com/scan")
	t.Setenv("SPHERE2BIN_WEBHOOK_TOKEN", "secret")
	t.Setenv("SPHERE2BIN_LOG_LEVEL", "debug")

	path := writeTemp(t, `output:
  dir: ${SPHERE2BIN_OUTPUT_DIR:-.}
storage:
  backend: s3
  path: ${SPHERE2BIN_S3_PATH}
adapter:
  type: webhook
  url: ${SPHERE2BIN_WEBHOOK_URL}
  headers:
    Authorization: Bearer ${SPHERE2BIN_WEBHOOK_TOKEN}
  timeout: ${SPHERE2BIN_WEBHOOK_TIMEOUT:-10s}
log:
  level: ${SPHERE2BIN_LOG_LEVEL:-info}
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	assertEqual(t, "output.dir", cfg.Output.Dir, ".")
	assertEqual(t, "storage.path", cfg.Storage.Path, "tapes/sphere")
	assertEqual(t, "adapter.url", cfg.Adapter.URL, "https://hooks.example.com/scan")
	assertEqual(t, "adapter.headers", cfg.Adapter.Headers["Authorization"], "Bearer secret")
	assertEqual(t, "log.level", cfg.Log.Level, "debug")
	if cfg.Adapter.Timeout.Seconds() != 10 {
		t.Errorf("adapter.timeout = %v, want 10s", cfg.Adapter.Timeout.Duration)
	}
}

func TestLoad_UnterminatedReference(t *testing.T) {
	path := writeTemp(t, "output:\n  dir: ${SPHERE2BIN_OUTPUT_DIR\n")
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for unterminated reference")
	}
	if !strings.Contains(err.Error(), "line 2: unterminated") {
		t.Errorf("error = %v", err)
	}
}
