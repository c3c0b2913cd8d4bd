package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/term"

	"github.com/sydlexius/qrsift/internal/config"
	"github.com/sydlexius/qrsift/internal/event"
	"github.com/sydlexius/qrsift/internal/logging"
	"github.com/sydlexius/qrsift/internal/qr"
	"github.com/sydlexius/qrsift/internal/scanner"
	"github.com/sydlexius/qrsift/internal/ui"
	"github.com/sydlexius/qrsift/internal/version"
	"github.com/sydlexius/qrsift/internal/watcher"
)

const usage = `qrsift - sort images containing QR codes into qr/ subfolders

Usage:
  qrsift [scan] [flags] [directory]    Scan a directory once (default command)
  qrsift watch [flags] [directory]     Scan, then keep watching for new images
  qrsift version                       Show version information
  qrsift help                          Show this help message

Flags:
  -root string            directory to scan (a positional argument also works)
  -recursive              descend into subdirectories (default true)
  -dry-run                log what would move, move nothing
  -preserve-timestamps    keep modification times on moved files (default true)
  -sniff                  check that file content looks like an image before decoding
  -config string          YAML config file (default from QS_CONFIG_PATH)
  -log-level string       debug, info, warn or error

Each scanned directory gets a qrscan.log recording what happened to
every image. Run without a directory on a terminal and qrsift asks
interactively.

Environment:
  QS_ROOT, QS_RECURSIVE, QS_DRY_RUN, QS_PRESERVE_TIMESTAMPS, QS_SNIFF,
  QS_CONFIG_PATH, QS_LOG_LEVEL, QS_LOG_FORMAT, QS_LOG_FILE

Examples:
  qrsift ~/Pictures                    Move QR images into ~/Pictures/qr
  qrsift -dry-run -recursive=false .   Preview the current directory only
  qrsift watch ~/phone-sync            Keep sorting as new images arrive
`

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// .env is optional and never overrides real environment variables.
	_ = godotenv.Load()

	args := os.Args[1:]
	command := "scan"
	if len(args) > 0 {
		switch args[0] {
		case "scan", "watch":
			command = args[0]
			args = args[1:]
		case "version", "--version", "-v":
			fmt.Printf("qrsift %s\n", version.String())
			return nil
		case "help", "--help", "-h":
			fmt.Print(usage)
			return nil
		}
	}

	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	fs.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	var (
		flagRoot      = fs.String("root", "", "directory to scan")
		flagRecursive = fs.Bool("recursive", true, "descend into subdirectories")
		flagDryRun    = fs.Bool("dry-run", false, "log what would move, move nothing")
		flagPreserve  = fs.Bool("preserve-timestamps", true, "keep modification times on moved files")
		flagSniff     = fs.Bool("sniff", false, "check file content before decoding")
		flagConfig    = fs.String("config", os.Getenv("QS_CONFIG_PATH"), "YAML config file")
		flagLogLevel  = fs.String("log-level", "", "log level: debug, info, warn or error")
	)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load(*flagConfig)
	if err != nil {
		return err
	}

	// Flags given on the command line override config file and environment.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "root":
			cfg.Scan.Root = *flagRoot
		case "recursive":
			cfg.Scan.Recursive = *flagRecursive
		case "dry-run":
			cfg.Scan.DryRun = *flagDryRun
		case "preserve-timestamps":
			cfg.Scan.PreserveTimestamps = *flagPreserve
		case "sniff":
			cfg.Scan.SniffContent = *flagSniff
		case "log-level":
			cfg.Logging.Level = *flagLogLevel
		}
	})
	if fs.NArg() > 0 {
		cfg.Scan.Root = fs.Arg(0)
	}
	if !logging.ValidLevel(cfg.Logging.Level) {
		return fmt.Errorf("invalid log level: %q", cfg.Logging.Level)
	}

	logManager, logger := logging.NewManager(logging.Config{
		Level:          cfg.Logging.Level,
		Format:         cfg.Logging.Format,
		FilePath:       cfg.Logging.FilePath,
		FileMaxSizeMB:  cfg.Logging.FileMaxSizeMB,
		FileMaxFiles:   cfg.Logging.FileMaxFiles,
		FileMaxAgeDays: cfg.Logging.FileMaxAgeDays,
	})
	defer logManager.Close() //nolint:errcheck
	slog.SetDefault(logger)

	scanCfg := scanner.Config{
		Root:               cfg.Scan.Root,
		Recursive:          cfg.Scan.Recursive,
		DryRun:             cfg.Scan.DryRun,
		PreserveTimestamps: cfg.Scan.PreserveTimestamps,
		SniffContent:       cfg.Scan.SniffContent,
	}
	if scanCfg.Root == "" {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return errors.New("no directory given; pass one as an argument or set QS_ROOT")
		}
		if err := ui.PromptScanConfig(&scanCfg); err != nil {
			if errors.Is(err, ui.ErrAborted) {
				return nil
			}
			return err
		}
	} else {
		resolved, err := ui.ResolvePath(scanCfg.Root)
		if err != nil {
			return err
		}
		scanCfg.Root = resolved
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eventBus := event.NewBus(logger, 256)
	go eventBus.Start()
	defer eventBus.Stop()

	detector := qr.NewDetector(logger)
	svc := scanner.NewService(detector, logger)
	svc.SetEventBus(eventBus)

	printer := ui.NewPrinter(os.Stdout, term.IsTerminal(int(os.Stdout.Fd())))
	eventBus.Subscribe(event.ScanFile, printer.HandleEvent)

	logger.Info("starting qrsift",
		slog.String("version", version.Version),
		slog.String("commit", version.Commit),
		slog.String("command", command),
		slog.String("root", scanCfg.Root),
	)

	switch command {
	case "watch":
		return runWatch(ctx, svc, eventBus, scanCfg, cfg.Watch, logger)
	default:
		return runScan(ctx, svc, eventBus, scanCfg)
	}
}

// runScan executes a single scan and renders the summary once every
// per-file event has been printed.
func runScan(ctx context.Context, svc *scanner.Service, eventBus *event.Bus, cfg scanner.Config) error {
	started := time.Now()
	if _, err := svc.Run(ctx, cfg); err != nil {
		return err
	}

	// The bus drops events when its buffer fills, so completion is
	// waited on from the service, never from a subscription.
	select {
	case <-svc.Done():
	case <-ctx.Done():
		// The scan sees the cancelled context at the next file boundary
		// and finishes on its own.
		<-svc.Done()
	}

	// Done closes after the last event is handed to the bus; draining
	// here flushes the remaining progress lines before the summary.
	eventBus.Drain()

	run := svc.Status()
	if run.Status == "cancelled" {
		fmt.Println("\nScan cancelled.")
	}
	ui.RenderSummary(os.Stdout, run.Stats, time.Since(started))
	if run.Status == "failed" {
		return errors.New(run.Error)
	}
	return nil
}

// runWatch scans once to catch up, then blocks watching the tree until
// the context is cancelled.
func runWatch(ctx context.Context, svc *scanner.Service, eventBus *event.Bus, scanCfg scanner.Config, watchCfg config.WatchConfig, logger *slog.Logger) error {
	if _, err := svc.Scan(ctx, scanCfg); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("initial scan: %w", err)
	}

	scanFn := func(ctx context.Context) error {
		_, err := svc.Scan(ctx, scanCfg)
		return err
	}
	w := watcher.NewService(scanCfg.Root, scanCfg.Recursive, scanFn, eventBus, logger)
	if watchCfg.DebounceSeconds > 0 {
		w.SetDebounce(time.Duration(watchCfg.DebounceSeconds) * time.Second)
	}
	if watchCfg.RefreshMinutes > 0 {
		w.SetRefreshPeriod(time.Duration(watchCfg.RefreshMinutes) * time.Minute)
	}
	if watchCfg.PollSeconds > 0 {
		w.SetPollInterval(time.Duration(watchCfg.PollSeconds) * time.Second)
	}
	w.SetMinRescanGap(time.Duration(watchCfg.MinRescanSeconds) * time.Second)
	w.Start(ctx)
	eventBus.Drain()
	return nil
}
