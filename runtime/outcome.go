package runtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/justapithecus/sphere2bin/types"
)

// Process exit codes for each outcome.
const (
	ExitCodeSuccess        = 0   // input decoded, every block handled
	ExitCodeInputError     = 1   // usage, config or input failure
	ExitCodeStorageFailure = 2   // at least one block failed to persist
	ExitCodeCanceled       = 130 // interrupted by signal
)

// scanFailures collects what went wrong during a scan.
type scanFailures struct {
	ctxErr          error
	readErr         error
	persistFailures int
	lastPersistErr  error
	flushErr        error
}

// determineOutcome classifies a finished scan.
// Precedence: cancellation, then input errors, then storage failures.
// Blocks carrying trailer or checksum errors never affect the outcome.
func determineOutcome(f scanFailures) *types.ScanOutcome {
	switch {
	case f.ctxErr != nil:
		return &types.ScanOutcome{
			Status:  types.OutcomeCanceled,
			Message: fmt.Sprintf("scan canceled: %v", f.ctxErr),
		}
	case f.readErr != nil:
		return &types.ScanOutcome{
			Status:  types.OutcomeInputError,
			Message: fmt.Sprintf("read input: %v", f.readErr),
		}
	case f.flushErr != nil:
		return &types.ScanOutcome{
			Status:  types.OutcomeStorageFailure,
			Message: fmt.Sprintf("flush failed: %v", f.flushErr),
		}
	case f.persistFailures > 0:
		return &types.ScanOutcome{
			Status:  types.OutcomeStorageFailure,
			Message: fmt.Sprintf("%d write(s) failed, last: %v", f.persistFailures, f.lastPersistErr),
		}
	default:
		return &types.ScanOutcome{
			Status:  types.OutcomeSuccess,
			Message: "scan completed",
		}
	}
}

// ExitCodeFor maps an outcome status to the process exit code.
func ExitCodeFor(status types.OutcomeStatus) int {
	switch status {
	case types.OutcomeSuccess:
		return ExitCodeSuccess
	case types.OutcomeStorageFailure:
		return ExitCodeStorageFailure
	case types.OutcomeCanceled:
		return ExitCodeCanceled
	default:
		return ExitCodeInputError
	}
}

// isCanceled reports whether err stems from context cancellation or deadline.
func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
