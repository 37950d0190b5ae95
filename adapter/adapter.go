// Package adapter defines the notification boundary.
//
// Adapters publish scan completion notifications to downstream systems.
// The CLI owns adapter lifecycle; users provide configuration only.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// EventTypeScanCompleted is the only event type published.
const EventTypeScanCompleted = "scan_completed"

// ScanCompletedEvent is the payload published when a scan finishes.
type ScanCompletedEvent struct {
	ContractVersion string `json:"contract_version"`
	EventType       string `json:"event_type"` // always "scan_completed"
	ScanID          string `json:"scan_id"`
	Source          string `json:"source"`
	Input           string `json:"input"`
	Day             string `json:"day"`
	Outcome         string `json:"outcome"` // success, input_error, storage_failure, canceled
	StoragePath     string `json:"storage_path"`
	Timestamp       string `json:"timestamp"` // RFC 3339
	BlockCount      int    `json:"block_count"`
	ErrorCount      int    `json:"error_count"`
	BytesRead       int64  `json:"bytes_read"`
	DurationMs      int64  `json:"duration_ms"`
}

// Adapter publishes scan completion events to a downstream system.
// Implementations must be safe for single-use per scan.
type Adapter interface {
	// Publish sends a scan completion event to the downstream system.
	// Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *ScanCompletedEvent) error

	// Close releases adapter resources.
	Close() error
}

// DefaultBackoff is the delay before the first retry. Each further retry
// doubles it.
const DefaultBackoff = 500 * time.Millisecond

// permanentError marks an error that must not be retried.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so that Retry returns it without further attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Retry calls op up to 1+retries times with exponential backoff between
// attempts (base, 2·base, 4·base, ...). It stops early on success, on a
// Permanent error, or when ctx is done.
func Retry(ctx context.Context, retries int, base time.Duration, op func(ctx context.Context) error) error {
	var lastErr error
	attempts := 1 + retries

	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("context canceled: %w", err)
		}

		// Backoff before retries, not before the first attempt
		if i > 0 {
			backoff := time.Duration(1<<uint(i-1)) * base
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("context canceled during backoff: %w", ctx.Err())
			case <-timer.C:
			}
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if IsPermanent(lastErr) {
			return fmt.Errorf("non-retriable error: %w", lastErr)
		}
	}

	return fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}
