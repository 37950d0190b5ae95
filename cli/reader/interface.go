package reader

import "context"

// Reader abstracts read-only data access for CLI commands.
// Implementations may decode local inputs or return canned data for tests.
type Reader interface {
	// Inspect decodes input in list-only mode. "-" reads standard input.
	Inspect(ctx context.Context, input string) (*InspectResponse, error)

	// DebugIPC reads an export stream. "-" reads standard input.
	DebugIPC(path string, verbose bool) (*IPCDebugResponse, error)

	// DebugManifest reads the manifest rows of a dataset.
	DebugManifest(ctx context.Context, opts ManifestOptions) (*ManifestResponse, error)
}

// defaultReader is the package-level reader instance.
// Initialized to LocalReader by default.
var defaultReader Reader = NewLocalReader()

// SetReader sets the package-level reader instance.
// Tests use it to install a StubReader.
func SetReader(r Reader) {
	defaultReader = r
}

// GetReader returns the current package-level reader instance.
func GetReader() Reader {
	return defaultReader
}
