package cmd

import (
	"time"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/sphere2bin/cli/config"
)

// Precedence for every scan setting: an explicitly set flag, then the
// config file, then the flag default.

// resolveString returns the CLI value if set, else cfgVal if non-empty,
// else the urfave default.
func resolveString(c *cli.Context, name, cfgVal string) string {
	if c.IsSet(name) {
		return c.String(name)
	}
	if cfgVal != "" {
		return cfgVal
	}
	return c.String(name)
}

// resolveInt returns the CLI value if set, else cfgVal if non-zero, else
// the urfave default.
func resolveInt(c *cli.Context, name string, cfgVal int) int {
	if c.IsSet(name) {
		return c.Int(name)
	}
	if cfgVal != 0 {
		return cfgVal
	}
	return c.Int(name)
}

func resolveInt64(c *cli.Context, name string, cfgVal int64) int64 {
	if c.IsSet(name) {
		return c.Int64(name)
	}
	if cfgVal != 0 {
		return cfgVal
	}
	return c.Int64(name)
}

// resolveBool returns the CLI value if set, else true if the config
// enables it, else the urfave default. A config file cannot turn off a
// flag whose default is true.
func resolveBool(c *cli.Context, name string, cfgVal bool) bool {
	if c.IsSet(name) {
		return c.Bool(name)
	}
	if cfgVal {
		return true
	}
	return c.Bool(name)
}

func resolveDuration(c *cli.Context, name string, cfgVal time.Duration) time.Duration {
	if c.IsSet(name) {
		return c.Duration(name)
	}
	if cfgVal != 0 {
		return cfgVal
	}
	return c.Duration(name)
}

// configVal reads a field from cfg, returning the zero value for a nil config.
func configVal[T any](cfg *config.Config, get func(*config.Config) T) T {
	if cfg == nil {
		var zero T
		return zero
	}
	return get(cfg)
}
