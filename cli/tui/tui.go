package tui

import (
	"fmt"
	"slices"
)

// View types that support TUI mode.
const (
	ViewInspectBlocks = "inspect_blocks"
	ViewStatsScan     = "stats_scan"
)

// Run starts the appropriate TUI based on the view type.
// Returns an error if the view type doesn't support TUI.
func Run(viewType string, data any) error {
	switch viewType {
	case ViewInspectBlocks:
		return RunInspectTUI(viewType, data)
	case ViewStatsScan:
		return RunStatsTUI(viewType, data)
	default:
		return fmt.Errorf("TUI mode is not supported for %s", viewType)
	}
}

// IsTUISupported returns true if the view type supports TUI mode.
// Only inspect views support TUI.
func IsTUISupported(viewType string) bool {
	return slices.Contains(SupportedTUIViews(), viewType)
}

// SupportedTUIViews returns a list of view types that support TUI.
func SupportedTUIViews() []string {
	return []string{
		ViewInspectBlocks,
		ViewStatsScan,
	}
}
