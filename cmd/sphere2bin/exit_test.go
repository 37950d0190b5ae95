package main

import (
	"errors"
	"testing"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/sphere2bin/runtime"
	"github.com/justapithecus/sphere2bin/types"
)

func TestExitErrHandler_NilError(t *testing.T) {
	// Should not panic or exit on nil error
	exitErrHandler(nil, nil)
}

func TestExitErrHandler_WrappedExitCoder(t *testing.T) {
	wrapped := errors.Join(errors.New("context"), cli.Exit("inner error", 42))

	var exitCoder cli.ExitCoder
	if !errors.As(wrapped, &exitCoder) {
		t.Fatal("wrapped error should still match cli.ExitCoder")
	}
	if exitCoder.ExitCode() != 42 {
		t.Errorf("exit code = %d, want 42", exitCoder.ExitCode())
	}
}

func TestExitErrHandler_RegularError(t *testing.T) {
	err := errors.New("regular error")

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		t.Fatal("regular error should not be cli.ExitCoder")
	}
}

// TestScanExitCodes pins the documented exit code of every scan outcome and
// checks each survives cli.Exit.
func TestScanExitCodes(t *testing.T) {
	tests := []struct {
		status types.OutcomeStatus
		want   int
	}{
		{types.OutcomeSuccess, 0},
		{types.OutcomeInputError, 1},
		{types.OutcomeStorageFailure, 2},
		{types.OutcomeCanceled, 130},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			code := runtime.ExitCodeFor(tt.status)
			if code != tt.want {
				t.Fatalf("ExitCodeFor(%s) = %d, want %d", tt.status, code, tt.want)
			}

			var exitCoder cli.ExitCoder
			if !errors.As(cli.Exit("", code), &exitCoder) {
				t.Fatal("cli.Exit should return ExitCoder")
			}
			if exitCoder.ExitCode() != tt.want {
				t.Errorf("ExitCode() = %d, want %d", exitCoder.ExitCode(), tt.want)
			}
		})
	}
}

// TestExitErrHandler_MessageSuppression verifies empty messages don't print.
func TestExitErrHandler_MessageSuppression(t *testing.T) {
	err := cli.Exit("", 0)
	msg := err.Error()

	if msg != "" && msg != "exit status 0" {
		t.Errorf("Expected empty or 'exit status 0', got %q", msg)
	}
}
