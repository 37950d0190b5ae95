// Package config handles sphere2bin.yaml loading for the scan command.
package config

import (
	"fmt"
	"time"
)

// Config represents a sphere2bin.yaml configuration file.
// All values are optional and act as defaults for scan flags.
// CLI flags always override config values.
type Config struct {
	Output  OutputConfig  `yaml:"output"`
	Storage StorageConfig `yaml:"storage"`
	Policy  PolicyConfig  `yaml:"policy"`
	Adapter AdapterConfig `yaml:"adapter"`
	Log     LogConfig     `yaml:"log"`
}

// OutputConfig holds listing and artifact naming defaults.
type OutputConfig struct {
	Dir      string `yaml:"dir"`
	Name     string `yaml:"name"`
	ListOnly bool   `yaml:"list_only"`
	Format   string `yaml:"format"`
}

// StorageConfig holds storage defaults from the config file.
type StorageConfig struct {
	Dataset     string `yaml:"dataset"`
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
	Manifest    bool   `yaml:"manifest"`
}

// PolicyConfig holds policy defaults from the config file.
type PolicyConfig struct {
	Name         string `yaml:"name"`
	BufferBlocks int    `yaml:"buffer_blocks"`
	BufferBytes  int64  `yaml:"buffer_bytes"`
}

// AdapterConfig holds adapter defaults from the config file.
type AdapterConfig struct {
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// LogConfig holds logging defaults.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}
