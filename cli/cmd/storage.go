package cmd

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/justapithecus/sphere2bin/lode"
	"github.com/justapithecus/sphere2bin/types"
)

// storageChoice holds parsed storage configuration.
type storageChoice struct {
	backend     string // "fs" or "s3"
	root        string // fs: output directory
	path        string // s3: bucket/prefix
	region      string
	endpoint    string
	s3PathStyle bool
	manifest    bool
	dataset     string
}

// outputRoot returns the fs output directory: --output-dir when given,
// otherwise the directory holding the input.
func outputRoot(outputDir, input string) string {
	if outputDir != "" {
		return outputDir
	}
	if input == types.StdinInput {
		return "."
	}
	return filepath.Dir(input)
}

func validateStorageConfig(choice storageChoice) error {
	switch choice.backend {
	case "fs":
		if choice.root == "" {
			return errors.New("output directory is empty")
		}
		return nil
	case "s3":
		if choice.path == "" {
			return errors.New("--path is required when --backend=s3 (format: bucket/prefix)")
		}
		if bucket, _ := lode.ParseS3Path(choice.path); bucket == "" {
			return fmt.Errorf("invalid --path %q: bucket is empty", choice.path)
		}
		return nil
	default:
		return fmt.Errorf("invalid backend: %s (must be fs or s3)", choice.backend)
	}
}

func (c storageChoice) s3Config() lode.S3Config {
	bucket, prefix := lode.ParseS3Path(c.path)
	return lode.S3Config{
		Bucket:       bucket,
		Prefix:       prefix,
		Region:       c.region,
		Endpoint:     c.endpoint,
		UsePathStyle: c.s3PathStyle,
	}
}

// buildStorageClient creates the Lode client for the chosen backend.
func buildStorageClient(choice storageChoice, cfg lode.Config) (lode.Client, error) {
	switch choice.backend {
	case "fs":
		return lode.NewLodeClient(cfg, choice.root)
	case "s3":
		return lode.NewLodeS3Client(cfg, choice.s3Config())
	default:
		return nil, fmt.Errorf("invalid backend: %s (must be fs or s3)", choice.backend)
	}
}

// buildStoragePath returns where artifacts land, for notifications.
func buildStoragePath(choice storageChoice) string {
	switch choice.backend {
	case "fs":
		if abs, err := filepath.Abs(choice.root); err == nil {
			return abs
		}
		return choice.root
	case "s3":
		s3cfg := choice.s3Config()
		if s3cfg.Prefix == "" {
			return "s3://" + s3cfg.Bucket
		}
		return "s3://" + s3cfg.Bucket + "/" + s3cfg.Prefix
	default:
		return ""
	}
}
