package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"github.com/justapithecus/sphere2bin/adapter"
	"github.com/justapithecus/sphere2bin/adapter/redis"
	"github.com/justapithecus/sphere2bin/adapter/webhook"
	"github.com/justapithecus/sphere2bin/cli/config"
	"github.com/justapithecus/sphere2bin/lode"
	"github.com/justapithecus/sphere2bin/runtime"
	"github.com/justapithecus/sphere2bin/types"
)

// publishTimeout bounds the whole notification, retries included.
const publishTimeout = 30 * time.Second

// adapterConfig holds parsed adapter configuration.
type adapterConfig struct {
	adapterType string
	url         string
	channel     string
	headers     map[string]string
	timeout     time.Duration
	retries     int
}

func adapterFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "adapter",
			Usage: "Notify on scan completion: webhook or redis",
		},
		&cli.StringFlag{
			Name:  "adapter-url",
			Usage: "Webhook endpoint or redis:// URL",
		},
		&cli.StringFlag{
			Name:  "adapter-channel",
			Usage: "Redis channel (default " + redis.DefaultChannel + ")",
		},
		&cli.StringSliceFlag{
			Name:  "adapter-header",
			Usage: "Extra webhook header as Key=Value (repeatable)",
		},
		&cli.DurationFlag{
			Name:  "adapter-timeout",
			Usage: "Per-attempt notification timeout (default 10s webhook, 5s redis)",
		},
		&cli.IntFlag{
			Name:  "adapter-retries",
			Usage: "Notification retries after the first attempt",
			Value: webhook.DefaultRetries,
		},
	}
}

// parseAdapterConfigWithPrecedence resolves adapter settings for adapterType.
// CLI flags override config values; config headers are merged under CLI
// headers.
func parseAdapterConfigWithPrecedence(c *cli.Context, cfg *config.Config, adapterType string) (*adapterConfig, error) {
	ac := &adapterConfig{
		adapterType: adapterType,
		url:         resolveString(c, "adapter-url", configVal(cfg, func(c *config.Config) string { return c.Adapter.URL })),
		channel:     resolveString(c, "adapter-channel", configVal(cfg, func(c *config.Config) string { return c.Adapter.Channel })),
		timeout:     resolveDuration(c, "adapter-timeout", configVal(cfg, func(c *config.Config) time.Duration { return c.Adapter.Timeout.Duration })),
		retries:     c.Int("adapter-retries"),
	}
	if !c.IsSet("adapter-retries") {
		if r := configVal(cfg, func(c *config.Config) *int { return c.Adapter.Retries }); r != nil {
			ac.retries = *r
		}
	}
	if ac.retries < 0 {
		return nil, fmt.Errorf("--adapter-retries must be >= 0, got %d", ac.retries)
	}

	headers := make(map[string]string)
	for k, v := range configVal(cfg, func(c *config.Config) map[string]string { return c.Adapter.Headers }) {
		headers[k] = v
	}
	cliHeaders, err := parseHeaders(c.StringSlice("adapter-header"))
	if err != nil {
		return nil, err
	}
	for k, v := range cliHeaders {
		headers[k] = v
	}
	ac.headers = headers

	switch adapterType {
	case "webhook":
		if ac.url == "" {
			return nil, errors.New("--adapter-url is required when --adapter=webhook")
		}
	case "redis":
		if ac.url == "" {
			return nil, errors.New("--adapter-url is required when --adapter=redis")
		}
	default:
		return nil, fmt.Errorf("unknown adapter type %q (must be webhook or redis)", adapterType)
	}
	return ac, nil
}

// parseHeaders parses Key=Value pairs.
func parseHeaders(pairs []string) (map[string]string, error) {
	headers := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --adapter-header %q (want Key=Value)", pair)
		}
		headers[k] = v
	}
	return headers, nil
}

// buildAdapter constructs the adapter described by ac.
func buildAdapter(ac *adapterConfig) (adapter.Adapter, error) {
	switch ac.adapterType {
	case "webhook":
		return webhook.New(webhook.Config{
			URL:     ac.url,
			Headers: ac.headers,
			Timeout: ac.timeout,
			Retries: ac.retries,
		})
	case "redis":
		return redis.New(redis.Config{
			URL:     ac.url,
			Channel: ac.channel,
			Timeout: ac.timeout,
			Retries: ac.retries,
		})
	default:
		return nil, fmt.Errorf("unknown adapter type %q", ac.adapterType)
	}
}

// buildScanCompletedEvent maps a finished scan to its notification.
func buildScanCompletedEvent(result *runtime.ScanResult, storagePath string, now time.Time) *adapter.ScanCompletedEvent {
	meta := result.Meta
	return &adapter.ScanCompletedEvent{
		ContractVersion: types.ContractVersion,
		EventType:       adapter.EventTypeScanCompleted,
		ScanID:          meta.ScanID,
		Source:          meta.Source,
		Input:           meta.Input,
		Day:             lode.DeriveDay(meta.StartedAt),
		Outcome:         string(result.Outcome.Status),
		StoragePath:     storagePath,
		Timestamp:       now.UTC().Format(time.RFC3339),
		BlockCount:      len(result.Blocks),
		ErrorCount:      result.ErrorCount(),
		BytesRead:       result.BytesRead,
		DurationMs:      result.Duration.Milliseconds(),
	}
}

// publishScanCompleted sends the event and closes the adapter. The scan
// context may already be canceled, so publishing runs on its own deadline.
func publishScanCompleted(ctx context.Context, a adapter.Adapter, event *adapter.ScanCompletedEvent) error {
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	return multierr.Append(a.Publish(pubCtx, event), a.Close())
}
