package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"github.com/justapithecus/sphere2bin/cli/config"
	"github.com/justapithecus/sphere2bin/cli/reader"
	"github.com/justapithecus/sphere2bin/cli/render"
	"github.com/justapithecus/sphere2bin/iox"
	"github.com/justapithecus/sphere2bin/ipc"
	"github.com/justapithecus/sphere2bin/lode"
	"github.com/justapithecus/sphere2bin/log"
	"github.com/justapithecus/sphere2bin/metrics"
	"github.com/justapithecus/sphere2bin/policy"
	"github.com/justapithecus/sphere2bin/runtime"
	"github.com/justapithecus/sphere2bin/types"
)

// ScanCommand returns the scan command.
// This is the only command that writes artifacts, and it is also the
// application's default action.
func ScanCommand() *cli.Command {
	return &cli.Command{
		Name:      "scan",
		Usage:     "Decode a cassette image and write each block to a file",
		ArgsUsage: "<input|->",
		Flags:     ScanFlags(),
		Action:    ScanAction,
	}
}

// ScanFlags returns the scan flags. The app registers them too, so
// `sphere2bin [flags] <input>` behaves like `sphere2bin scan`.
func ScanFlags() []cli.Flag {
	flags := []cli.Flag{
		// Output flags
		&cli.BoolFlag{
			Name:    "list",
			Aliases: []string{"l"},
			Usage:   "List blocks only, write nothing",
		},
		&cli.StringFlag{
			Name:    "output-dir",
			Aliases: []string{"o"},
			Usage:   "Directory for block files (default: the input's directory)",
		},
		&cli.StringFlag{
			Name:  "name",
			Usage: "Artifact file stem (default: input file name without extension)",
		},
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Output format: table, json, yaml",
		},
		&cli.StringFlag{
			Name:  "emit",
			Usage: "Write a msgpack export stream to PATH (- for stdout)",
		},
		&cli.StringFlag{
			Name:  "report",
			Usage: "Write a JSON scan report to PATH (- for stderr)",
		},
		&cli.BoolFlag{
			Name:    "quiet",
			Aliases: []string{"q"},
			Usage:   "Suppress the block listing",
		},
		// Scan identity
		&cli.StringFlag{
			Name:  "scan-id",
			Usage: "Scan ID (default: random UUID)",
		},
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to YAML config file (default: " + config.DefaultFile + " if present)",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: debug, info, warn, error (default: warn on a terminal, info otherwise)",
		},
		// Storage flags
		&cli.StringFlag{
			Name:  "backend",
			Usage: "Storage backend: fs or s3",
			Value: "fs",
		},
		&cli.StringFlag{
			Name:  "path",
			Usage: "S3 location as bucket/prefix",
		},
		&cli.StringFlag{
			Name:  "region",
			Usage: "AWS region for S3 backend (optional, uses default chain)",
		},
		&cli.StringFlag{
			Name:  "endpoint",
			Usage: "Custom S3 endpoint URL for S3-compatible providers",
		},
		&cli.BoolFlag{
			Name:  "s3-path-style",
			Usage: "Force path-style S3 addressing (R2, MinIO)",
		},
		&cli.BoolFlag{
			Name:  "manifest",
			Usage: "Record block metadata in a manifest dataset next to the artifacts",
		},
		// Policy flags
		&cli.StringFlag{
			Name:  "policy",
			Usage: "Write policy: strict or buffered",
			Value: policy.NameStrict,
		},
		&cli.IntFlag{
			Name:  "buffer-blocks",
			Usage: "Max buffered blocks (buffered policy)",
		},
		&cli.Int64Flag{
			Name:  "buffer-bytes",
			Usage: "Max buffered payload bytes (buffered policy)",
		},
	}
	return append(flags, adapterFlags()...)
}

// scanChoice holds parsed output and identity settings.
type scanChoice struct {
	input     string
	name      string
	listOnly  bool
	format    render.Format
	emit      string
	report    string
	quiet     bool
	scanID    string
	logLevel  string
	outputDir string
}

// policyChoice holds parsed policy configuration.
type policyChoice struct {
	name      string
	maxBlocks int
	maxBytes  int64
}

// ScanAction decodes one input and persists its blocks.
func ScanAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("input required (use - for standard input)", runtime.ExitCodeInputError)
	}
	if c.NArg() > 1 {
		return cli.Exit(fmt.Sprintf("exactly one input expected, got %d", c.NArg()), runtime.ExitCodeInputError)
	}

	cfg, err := config.LoadDefault(c.String("config"))
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeInputError)
	}

	choice, err := parseScanChoice(c, cfg)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeInputError)
	}

	polChoice := policyChoice{
		name:      resolveString(c, "policy", configVal(cfg, func(c *config.Config) string { return c.Policy.Name })),
		maxBlocks: resolveInt(c, "buffer-blocks", configVal(cfg, func(c *config.Config) int { return c.Policy.BufferBlocks })),
		maxBytes:  resolveInt64(c, "buffer-bytes", configVal(cfg, func(c *config.Config) int64 { return c.Policy.BufferBytes })),
	}
	if err := validatePolicyConfig(polChoice); err != nil {
		return cli.Exit(fmt.Sprintf("invalid policy config: %v", err), runtime.ExitCodeInputError)
	}

	storage := storageChoice{
		backend:     resolveString(c, "backend", configVal(cfg, func(c *config.Config) string { return c.Storage.Backend })),
		root:        outputRoot(choice.outputDir, choice.input),
		path:        resolveString(c, "path", configVal(cfg, func(c *config.Config) string { return c.Storage.Path })),
		region:      resolveString(c, "region", configVal(cfg, func(c *config.Config) string { return c.Storage.Region })),
		endpoint:    resolveString(c, "endpoint", configVal(cfg, func(c *config.Config) string { return c.Storage.Endpoint })),
		s3PathStyle: resolveBool(c, "s3-path-style", configVal(cfg, func(c *config.Config) bool { return c.Storage.S3PathStyle })),
		manifest:    resolveBool(c, "manifest", configVal(cfg, func(c *config.Config) bool { return c.Storage.Manifest })),
		dataset:     configVal(cfg, func(c *config.Config) string { return c.Storage.Dataset }),
	}
	if !choice.listOnly {
		if err := validateStorageConfig(storage); err != nil {
			return cli.Exit(fmt.Sprintf("invalid storage config: %v", err), runtime.ExitCodeInputError)
		}
	}

	var adapterCfg *adapterConfig
	if adapterType := resolveString(c, "adapter", configVal(cfg, func(c *config.Config) string { return c.Adapter.Type })); adapterType != "" {
		adapterCfg, err = parseAdapterConfigWithPrecedence(c, cfg, adapterType)
		if err != nil {
			return cli.Exit(fmt.Sprintf("invalid adapter config: %v", err), runtime.ExitCodeInputError)
		}
	}

	level, err := log.ParseLevel(choice.logLevel)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeInputError)
	}

	// Start time is "now" - used to derive the partition day
	startTime := time.Now()
	meta := types.NewScanMeta(choice.input, choice.name, choice.scanID, startTime)
	logger := log.NewLogger(meta, level)
	defer func() { _ = logger.Sync() }()

	in, err := reader.NewLocalReader().Open(choice.input)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeInputError)
	}
	defer iox.DiscardClose(in)

	// With the export stream on stdout, human output moves to stderr.
	out := c.App.Writer
	if out == nil {
		out = os.Stdout
	}
	if choice.emit == "-" {
		out = c.App.ErrWriter
		if out == nil {
			out = os.Stderr
		}
	}
	showListing := choice.format == render.FormatTable && !choice.quiet
	listing := render.NewListing(out)

	backendLabel := storage.backend
	policyName := polChoice.name
	if choice.listOnly {
		backendLabel = "none"
		policyName = policy.NameNoop
	}
	collector := metrics.NewCollector(policyName, backendLabel, meta.ScanID)

	var observer policy.PersistObserver
	if showListing {
		observer = listingObserver(listing, meta.Source)
	}
	pol, err := buildPolicy(polChoice, choice.listOnly, storage, meta, collector, observer, logger)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to create storage: %v", err), runtime.ExitCodeStorageFailure)
	}

	var exportCloser io.Closer
	var exporter *ipc.FrameEncoder
	if choice.emit != "" {
		w, err := openEmit(c, choice.emit)
		if err != nil {
			iox.DiscardClose(pol)
			return cli.Exit(fmt.Sprintf("cannot open export stream: %v", err), runtime.ExitCodeInputError)
		}
		exportCloser = w
		exporter = ipc.NewFrameEncoder(w)
	}

	var blockObserver runtime.BlockObserver
	if showListing {
		blockObserver = listing.Block
	}

	orchestrator, err := runtime.NewScanOrchestrator(&runtime.ScanConfig{
		Meta:      meta,
		Input:     in,
		Policy:    pol,
		Collector: collector,
		Logger:    logger,
		Observer:  blockObserver,
		Exporter:  exporter,
	})
	if err != nil {
		iox.DiscardClose(pol)
		return cli.Exit(fmt.Sprintf("failed to create scan: %v", err), runtime.ExitCodeInputError)
	}

	// Set up context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	if showListing {
		listing.Header()
	}

	result, err := orchestrator.Execute(ctx)
	if err != nil {
		iox.DiscardClose(pol)
		return cli.Exit(fmt.Sprintf("scan failed: %v", err), runtime.ExitCodeInputError)
	}

	closeErr := pol.Close()
	if exportCloser != nil {
		closeErr = multierr.Append(closeErr, exportCloser.Close())
	}
	if closeErr != nil {
		logger.Warn("cleanup failed", map[string]any{"error": closeErr.Error()})
	}

	if err := printScanResult(out, choice, listing, result); err != nil {
		logger.Warn("failed to render result", map[string]any{"error": err.Error()})
	}

	exitCode := runtime.ExitCodeFor(result.Outcome.Status)

	if choice.report != "" {
		report := runtime.BuildScanReport(result, collector.Snapshot(), policyName, exitCode)
		if err := runtime.WriteScanReport(report, choice.report); err != nil {
			logger.Sugar().Warnf("failed to write report: %v", err)
		}
	}

	if adapterCfg != nil {
		notifyScanCompleted(ctx, adapterCfg, result, storage, choice.listOnly, logger)
	}

	if result.Outcome.Status != types.OutcomeSuccess {
		return cli.Exit(result.Outcome.Message, exitCode)
	}
	return cli.Exit("", exitCode)
}

// parseScanChoice resolves output and identity settings.
func parseScanChoice(c *cli.Context, cfg *config.Config) (scanChoice, error) {
	choice := scanChoice{
		input:     c.Args().First(),
		name:      resolveString(c, "name", configVal(cfg, func(c *config.Config) string { return c.Output.Name })),
		listOnly:  resolveBool(c, "list", configVal(cfg, func(c *config.Config) bool { return c.Output.ListOnly })),
		emit:      c.String("emit"),
		report:    c.String("report"),
		quiet:     c.Bool("quiet"),
		scanID:    c.String("scan-id"),
		logLevel:  resolveString(c, "log-level", configVal(cfg, func(c *config.Config) string { return c.Log.Level })),
		outputDir: resolveString(c, "output-dir", configVal(cfg, func(c *config.Config) string { return c.Output.Dir })),
	}

	format, err := render.ParseFormat(resolveString(c, "format", configVal(cfg, func(c *config.Config) string { return c.Output.Format })))
	if err != nil {
		return scanChoice{}, err
	}
	if format == "" {
		format = render.FormatTable
	}
	choice.format = format

	if choice.logLevel == "" && isStderrTTY() {
		choice.logLevel = "warn"
	}
	return choice, nil
}

func validatePolicyConfig(choice policyChoice) error {
	switch choice.name {
	case policy.NameStrict:
		if choice.maxBlocks > 0 || choice.maxBytes > 0 {
			fmt.Fprintf(os.Stderr, "Warning: buffer flags ignored for strict policy\n")
		}
		return nil

	case policy.NameBuffered:
		if choice.maxBlocks < 0 || choice.maxBytes < 0 {
			return errors.New("buffer limits must not be negative")
		}
		return nil

	default:
		return fmt.Errorf("invalid policy: %s (must be strict or buffered)", choice.name)
	}
}

// buildPolicy creates the write policy. List-only scans get a no-op policy
// and no storage client at all.
func buildPolicy(
	choice policyChoice,
	listOnly bool,
	storage storageChoice,
	meta *types.ScanMeta,
	collector *metrics.Collector,
	observer policy.PersistObserver,
	logger *log.Logger,
) (policy.Policy, error) {
	if listOnly {
		return policy.NewNoopPolicy(), nil
	}

	cfg := lode.Config{
		Dataset:  storage.dataset,
		Source:   meta.Source,
		Day:      lode.DeriveDay(meta.StartedAt),
		ScanID:   meta.ScanID,
		Manifest: storage.manifest,
	}
	client, err := buildStorageClient(storage, cfg)
	if err != nil {
		return nil, err
	}
	sink := lode.NewInstrumentedSink(lode.NewSink(cfg, client), collector)

	switch choice.name {
	case policy.NameStrict:
		return policy.NewStrictPolicy(sink, observer), nil

	case policy.NameBuffered:
		bufCfg := policy.DefaultBufferedConfig()
		if choice.maxBlocks > 0 || choice.maxBytes > 0 {
			bufCfg.MaxBufferBlocks = choice.maxBlocks
			bufCfg.MaxBufferBytes = choice.maxBytes
		}
		bufCfg.Observer = observer
		bufCfg.Logger = logger
		pol, err := policy.NewBufferedPolicy(sink, bufCfg)
		if err != nil {
			iox.DiscardClose(sink)
			return nil, err
		}
		return pol, nil

	default:
		iox.DiscardClose(sink)
		return nil, fmt.Errorf("unknown policy: %s", choice.name)
	}
}

// listingObserver prints the written or failed line for each persisted
// batch. On failure the records before the failing one were written.
func listingObserver(listing *render.Listing, source string) policy.PersistObserver {
	return func(recs []*types.BlockRecord, err error) {
		for _, rec := range recs {
			if rec.Location != "" {
				listing.Written(rec.Location)
				continue
			}
			if err != nil {
				listing.Failed(failedLocation(err, source, rec), err)
				return
			}
		}
	}
}

// failedLocation names the artifact a failed write was aimed at.
func failedLocation(err error, source string, rec *types.BlockRecord) string {
	var storageErr *lode.StorageError
	if errors.As(err, &storageErr) && storageErr.Path != "" {
		return storageErr.Path
	}
	return lode.ArtifactName(source, rec.NameBytes, rec.Ordinal)
}

// openEmit opens the export stream destination. "-" is stdout, which
// Close leaves open.
func openEmit(c *cli.Context, path string) (io.WriteCloser, error) {
	if path == "-" {
		w := c.App.Writer
		if w == nil {
			w = os.Stdout
		}
		return iox.NopWriteCloser(w), nil
	}
	return os.Create(path)
}

// printScanResult writes the listing footer or the rendered block records.
func printScanResult(out io.Writer, choice scanChoice, listing *render.Listing, result *runtime.ScanResult) error {
	if choice.quiet {
		return nil
	}
	if choice.format == render.FormatTable {
		listing.Footer()
		return nil
	}
	blocks := result.Blocks
	if blocks == nil {
		blocks = []*types.BlockRecord{}
	}
	return render.NewRendererWithWriter(choice.format, out).Render(blocks)
}

// notifyScanCompleted publishes the completion event. Failures are logged
// and never change the exit code.
func notifyScanCompleted(ctx context.Context, ac *adapterConfig, result *runtime.ScanResult, storage storageChoice, listOnly bool, logger *log.Logger) {
	a, err := buildAdapter(ac)
	if err != nil {
		logger.Sugar().Warnf("adapter setup failed: %v", err)
		return
	}

	storagePath := ""
	if !listOnly {
		storagePath = buildStoragePath(storage)
	}
	if err := publishScanCompleted(ctx, a, buildScanCompletedEvent(result, storagePath, time.Now())); err != nil {
		logger.Warn("adapter publish failed", map[string]any{
			"adapter": ac.adapterType,
			"error":   err.Error(),
		})
	}
}
