// Package main is the docscan CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/docscan/internal/cli"
	"github.com/hyperjump/docscan/internal/config"
	"github.com/hyperjump/docscan/internal/extract"
	"github.com/hyperjump/docscan/internal/match"
	"github.com/hyperjump/docscan/internal/models"
	"github.com/hyperjump/docscan/internal/ocr/tesseract"
	"github.com/hyperjump/docscan/internal/report"
	"github.com/hyperjump/docscan/internal/scanner"
	"github.com/hyperjump/docscan/internal/server"
	"github.com/hyperjump/docscan/internal/storage"
	"github.com/hyperjump/docscan/internal/upload"
	"github.com/hyperjump/docscan/internal/watcher"
	"github.com/hyperjump/docscan/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/docscan/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory; if that exists it is used instead.
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(1)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1], os.Args[2:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, command string, args []string, stdout, stderr io.Writer) int {
	switch command {
	case "scan":
		return runScan(ctx, args, stdout, stderr)
	case "watch":
		return runWatch(ctx, args, stdout, stderr)
	case "serve", "server":
		return runServe(ctx, args, stderr)
	case "report":
		return runReport(ctx, args, stdout, stderr)
	case "init":
		return runInit(args, stdout, stderr)
	case "version", "--version", "-v":
		fmt.Fprintf(stdout, "docscan version %s\n", version)
		return 0
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", command)
		printUsage(stderr)
		return 1
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `Usage: docscan <command> [flags]

Commands:
  scan      Scan the configured directory once and report matches
  watch     Process files as they are created or modified
  serve     Serve stored scan results over HTTP
  report    Print a stored run, its files or its matches
  init      Write a default config file
  version   Print the version
  help      Show this help

Run "docscan <command> -h" for command flags.
`)
}

// commonFlags are shared by every command that loads a config.
type commonFlags struct {
	configPath string
	debug      bool
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", defaultConfigPath, "config file path")
	fs.BoolVar(&c.debug, "debug", false, "enable debug logging")
}

// setup loads the config and builds the logger. Errors are already printed.
func (c *commonFlags) setup(stderr io.Writer) (*config.Config, *zap.Logger, bool) {
	cfg, resolved, err := loadConfig(c.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
		return nil, nil, false
	}
	debugMode := cfg.Debug || c.debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to create logger: %v\n", err)
		return nil, nil, false
	}
	logger.Debug("config loaded", zap.String("config_path", resolved), zap.Bool("debug", debugMode))
	return cfg, logger, true
}

// components are the collaborators a scan needs.
type components struct {
	store  storage.Storage
	sink   report.Sink
	runner *scanner.Runner
}

func (c *components) Close() error {
	return errors.Join(c.sink.Close(), c.store.Close())
}

func uploadPolicy(onFailure string) scanner.UploadPolicy {
	if onFailure == config.OnFailureAbort {
		return scanner.AbortOnUploadError
	}
	return scanner.ContinueOnUploadError
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*components, error) {
	matcher, err := match.Compile(cfg.Search.Keywords, cfg.Search.RegexPatterns)
	if err != nil {
		return nil, err
	}
	dispatcher := extract.NewDispatcher(
		extract.WithLogger(logger),
		extract.WithRecognizer(tesseract.New(cfg.OCR.DataPath)),
	)

	store, err := storage.NewSQLiteStorage(cfg.Report.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open result store: %w", err)
	}
	csvSink, err := report.NewCSVSink(cfg.Report.LogDirectory)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("open report directory: %w", err)
	}
	sink := report.Multi{csvSink, report.NewStoreSink(store), report.NewLogSink(logger)}

	opts := []scanner.Option{scanner.WithLogger(logger)}
	if cfg.Upload.Enabled {
		uploader, err := upload.New(ctx, cfg.Upload, logger)
		if err != nil {
			_ = sink.Close()
			_ = store.Close()
			return nil, fmt.Errorf("configure upload: %w", err)
		}
		opts = append(opts, scanner.WithUploader(uploader, uploadPolicy(cfg.Upload.OnFailure)))
	}
	mode := cfg.Search.SearchMode()
	if mode == models.ModeNone {
		logger.Warn("unrecognized search mode, no rules will run", zap.String("mode", cfg.Search.Mode))
	}
	return &components{
		store:  store,
		sink:   sink,
		runner: scanner.NewRunner(dispatcher, matcher, mode, sink, opts...),
	}, nil
}

// prepareScan applies command-line overrides, validates, and builds components.
func prepareScan(ctx context.Context, cfg *config.Config, logger *zap.Logger, dir string, stderr io.Writer) (*components, bool) {
	if dir != "" {
		abs, err := filepath.Abs(dir)
		if err != nil {
			fmt.Fprintf(stderr, "Invalid directory: %v\n", err)
			return nil, false
		}
		cfg.Scan.Directory = abs
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "Invalid configuration:\n%v\n", err)
		return nil, false
	}
	comps, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to initialize: %v\n", err)
		return nil, false
	}
	return comps, true
}

func runScan(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("scan", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var common commonFlags
	common.register(fs)
	dir := fs.String("dir", "", "directory to scan (overrides scan.directory)")
	outputFormat := fs.String("output", "text", "output format: text, compact, or json")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	cfg, logger, ok := common.setup(stderr)
	if !ok {
		return 1
	}
	defer logger.Sync()
	comps, ok := prepareScan(ctx, cfg, logger, *dir, stderr)
	if !ok {
		return 1
	}
	defer comps.Close()

	logger.Debug("scanning", zap.String("directory", cfg.Scan.Directory), zap.Strings("extensions", cfg.Scan.Extensions))
	summary, runErr := comps.runner.Run(ctx, cfg.Scan.Directory, cfg.Scan.Extensions)
	if err := cli.WriteSummary(stdout, summary, format); err != nil {
		fmt.Fprintf(stderr, "Output failed: %v\n", err)
		return 1
	}
	switch {
	case errors.Is(runErr, context.Canceled):
		fmt.Fprintln(stderr, "Scan interrupted")
		return 130
	case runErr != nil:
		fmt.Fprintf(stderr, "Scan aborted: %v\n", runErr)
		return 1
	}
	return 0
}

func runWatch(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var common commonFlags
	common.register(fs)
	dir := fs.String("dir", "", "directory to watch (overrides scan.directory)")
	syncExisting := fs.Bool("sync", false, "process files already present before watching")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, logger, ok := common.setup(stderr)
	if !ok {
		return 1
	}
	defer logger.Sync()
	comps, ok := prepareScan(ctx, cfg, logger, *dir, stderr)
	if !ok {
		return 1
	}
	defer comps.Close()

	watchCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	summary := comps.runner.StartRun(watchCtx, cfg.Scan.Directory)
	handle := func(ctx context.Context, path string) {
		if _, err := comps.runner.ProcessFile(ctx, summary, path); err != nil {
			logger.Error("stopping watch after upload failure", zap.String("path", path), zap.Error(err))
			cancel(err)
		}
	}
	opts := []watcher.Option{
		watcher.WithLogger(logger),
		watcher.WithRecursive(cfg.Watch.RecursiveOrDefault()),
		watcher.WithDebounce(time.Duration(cfg.Watch.DebounceMS) * time.Millisecond),
	}
	if *syncExisting {
		opts = append(opts, watcher.WithSyncExisting())
	}
	w := watcher.New(cfg.Scan.Directory, cfg.Scan.Extensions, handle, opts...)

	logger.Info("watching", zap.String("directory", cfg.Scan.Directory))
	watchErr := w.Run(watchCtx)
	comps.runner.FinishRun(watchCtx, summary)
	if err := cli.WriteSummary(stdout, summary, cli.OutputText); err != nil {
		fmt.Fprintf(stderr, "Output failed: %v\n", err)
	}
	if watchErr != nil {
		fmt.Fprintf(stderr, "Watch failed: %v\n", watchErr)
		return 1
	}
	if cause := context.Cause(watchCtx); cause != nil && !errors.Is(cause, context.Canceled) {
		fmt.Fprintf(stderr, "Watch aborted: %v\n", cause)
		return 1
	}
	return 0
}

func runServe(ctx context.Context, args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var common commonFlags
	common.register(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	cfg, logger, ok := common.setup(stderr)
	if !ok {
		return 1
	}
	defer logger.Sync()

	store, err := storage.NewSQLiteStorage(cfg.Report.DatabasePath)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to open result store: %v\n", err)
		return 1
	}
	defer store.Close()

	srv := server.NewServer(store, cfg, logger)
	errc := make(chan error, 1)
	go func() { errc <- srv.Start() }()

	select {
	case err := <-errc:
		logger.Error("Server failed", zap.Error(err))
		return 1
	case <-ctx.Done():
	}
	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(shutdownCtx)
	return 0
}

// parseStatusFilter maps the report command's -files value to a stored status. "all" and ""
// select every outcome.
func parseStatusFilter(s string) (models.FileStatus, error) {
	switch strings.ToLower(s) {
	case "", "all":
		return "", nil
	case "match_found", "match":
		return models.StatusMatchFound, nil
	case "no_match":
		return models.StatusNoMatch, nil
	case "error":
		return models.StatusError, nil
	}
	return "", fmt.Errorf("unknown status %q (want all, match_found, no_match or error)", s)
}

func runReport(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var common commonFlags
	common.register(fs)
	runID := fs.String("run", "", "run id (default: latest run)")
	files := fs.String("files", "", "also list files with this status: all, match_found, no_match, error")
	showMatches := fs.Bool("matches", false, "also list match events")
	limit := fs.Int("limit", 1000, "maximum files or matches to list")
	outputFormat := fs.String("output", "text", "output format: text, compact, or json")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	listFiles := *files != ""
	status, err := parseStatusFilter(*files)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	cfg, logger, ok := common.setup(stderr)
	if !ok {
		return 1
	}
	defer logger.Sync()
	store, err := storage.NewSQLiteStorage(cfg.Report.DatabasePath)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to open result store: %v\n", err)
		return 1
	}
	defer store.Close()

	var run *models.RunSummary
	if *runID != "" {
		run, err = store.GetRun(ctx, *runID)
	} else {
		run, err = store.LatestRun(ctx)
	}
	if errors.Is(err, storage.ErrNotFound) {
		fmt.Fprintln(stderr, "No matching run found")
		return 1
	}
	if err != nil {
		fmt.Fprintf(stderr, "Failed to read run: %v\n", err)
		return 1
	}
	if err := cli.WriteSummary(stdout, run, format); err != nil {
		fmt.Fprintf(stderr, "Output failed: %v\n", err)
		return 1
	}
	if listFiles {
		outcomes, err := store.ListOutcomes(ctx, run.RunID, status, 0, *limit)
		if err != nil {
			fmt.Fprintf(stderr, "Failed to list files: %v\n", err)
			return 1
		}
		if err := cli.WriteOutcomes(stdout, outcomes, format); err != nil {
			fmt.Fprintf(stderr, "Output failed: %v\n", err)
			return 1
		}
	}
	if *showMatches {
		matches, err := store.ListMatches(ctx, run.RunID, 0, *limit)
		if err != nil {
			fmt.Fprintf(stderr, "Failed to list matches: %v\n", err)
			return 1
		}
		if err := cli.WriteMatches(stdout, matches, format); err != nil {
			fmt.Fprintf(stderr, "Output failed: %v\n", err)
			return 1
		}
	}
	return 0
}

func runInit(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	fs.SetOutput(stderr)
	path := fs.String("config", "config.yaml", "where to write the config file")
	dir := fs.String("dir", ".", "directory to scan")
	force := fs.Bool("force", false, "overwrite an existing file")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if _, err := os.Stat(*path); err == nil && !*force {
		fmt.Fprintf(stderr, "%s already exists (use -force to overwrite)\n", *path)
		return 1
	}
	cfg := &config.Config{Scan: config.ScanConfig{Directory: *dir}}
	config.ApplyDefaults(cfg)
	if err := config.Save(*path, cfg); err != nil {
		fmt.Fprintf(stderr, "Failed to write config: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "Wrote %s\n", *path)
	return 0
}
