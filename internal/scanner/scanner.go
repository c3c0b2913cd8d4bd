// Package scanner walks directory trees, runs QR detection on every
// image it finds and relocates the hits into qr subdirectories.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/sydlexius/qrsift/internal/event"
	"github.com/sydlexius/qrsift/internal/relocate"
	"github.com/sydlexius/qrsift/internal/scanlog"
)

// Detector reports whether the image at path contains a decodable QR
// code and, when it does, the decoded text.
type Detector interface {
	Detect(path string) (text string, found bool, err error)
}

var (
	// ErrScanInProgress is returned when a scan is started while
	// another one is still running.
	ErrScanInProgress = errors.New("scan already in progress")

	// ErrNotDirectory is returned when the scan root exists but is
	// not a directory.
	ErrNotDirectory = errors.New("scan root is not a directory")
)

// Service runs QR scans over directory trees.
type Service struct {
	detector Detector
	logger   *slog.Logger
	eventBus *event.Bus
	validate *validator.Validate

	mu         sync.Mutex
	currentRun *Run
	cancelRun  context.CancelFunc
}

// NewService creates a scanner service.
func NewService(detector Detector, logger *slog.Logger) *Service {
	return &Service{
		detector: detector,
		logger:   logger.With("component", "scanner"),
		validate: validator.New(),
	}
}

// SetEventBus sets the event bus for publishing scan events.
func (s *Service) SetEventBus(bus *event.Bus) {
	s.eventBus = bus
}

// Scan runs a scan synchronously and returns its final stats.
func (s *Service) Scan(ctx context.Context, cfg Config) (Stats, error) {
	run, err := s.begin(cfg)
	if err != nil {
		return Stats{}, err
	}

	s.runScan(ctx, run, cfg)

	s.mu.Lock()
	stats := run.Stats
	status := run.Status
	errMsg := run.Error
	s.mu.Unlock()

	switch status {
	case "failed":
		return stats, errors.New(errMsg)
	case "cancelled":
		return stats, context.Canceled
	}
	return stats, nil
}

// Run starts a scan in the background. Only one scan runs at a time.
// Returns a snapshot of the initial run (safe to read without
// synchronization). Use Cancel to stop it early.
func (s *Service) Run(ctx context.Context, cfg Config) (*Run, error) {
	run, err := s.begin(cfg)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancelRun = cancel
	snapshot := *run
	s.mu.Unlock()

	go func() {
		defer cancel()
		s.runScan(runCtx, run, cfg)
	}()

	return &snapshot, nil
}

// Status returns a snapshot of the current or most recent run.
// The returned value is a copy and safe to read without synchronization.
func (s *Service) Status() *Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentRun == nil {
		return nil
	}
	snapshot := *s.currentRun
	return &snapshot
}

// Done returns a channel that closes once the current run has finished
// and its terminal event has been handed to the bus. Bus delivery can
// drop events under backlog, so waiting for completion goes through
// this channel, never through a subscription. Before the first run the
// returned channel is already closed.
func (s *Service) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentRun == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return s.currentRun.done
}

// Cancel stops the run started with Run, if one is in flight. It
// reports whether a running scan was told to stop.
func (s *Service) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentRun == nil || s.currentRun.Status != "running" || s.cancelRun == nil {
		return false
	}
	s.cancelRun()
	return true
}

// begin validates the config and registers a new run.
func (s *Service) begin(cfg Config) (*Run, error) {
	if err := s.validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid scan config: %w", err)
	}
	info, err := os.Stat(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("stat scan root: %w", err)
	}
	if !info.IsDir() {
		return nil, ErrNotDirectory
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentRun != nil && s.currentRun.Status == "running" {
		return nil, ErrScanInProgress
	}
	run := &Run{
		ID:        uuid.New().String(),
		Status:    "running",
		Root:      cfg.Root,
		StartedAt: time.Now().UTC(),
		done:      make(chan struct{}),
	}
	s.currentRun = run
	s.cancelRun = nil
	return run, nil
}

func (s *Service) runScan(ctx context.Context, run *Run, cfg Config) {
	defer func() {
		s.mu.Lock()
		now := time.Now().UTC()
		run.CompletedAt = &now
		if run.Status == "running" {
			run.Status = "completed"
		}
		status := run.Status
		stats := run.Stats
		errMsg := run.Error
		s.mu.Unlock()

		s.publishTerminal(run.ID, status, stats, errMsg)
		close(run.done)
	}()

	s.publish(event.Event{
		Type: event.ScanStarted,
		Data: map[string]any{
			"scan_id":   run.ID,
			"root":      cfg.Root,
			"recursive": cfg.Recursive,
			"dry_run":   cfg.DryRun,
		},
	})

	files, err := ListImages(cfg.Root, cfg.Recursive, cfg.SniffContent, s.logger)
	if err != nil {
		s.mu.Lock()
		run.Status = "failed"
		run.Error = fmt.Sprintf("listing images: %v", err)
		s.mu.Unlock()
		s.logger.Error("scan failed", "error", err, "root", cfg.Root)
		return
	}

	s.mu.Lock()
	run.Stats.Total = len(files)
	s.mu.Unlock()
	s.logger.Info("scan started", "root", cfg.Root, "files", len(files),
		"recursive", cfg.Recursive, "dry_run", cfg.DryRun)

	scanLog := scanlog.NewWriter(cfg.Root, !cfg.Recursive, s.logger)

	for i, path := range files {
		// Cancellation is checked before each file so a moved file is
		// never left half-recorded.
		if ctx.Err() != nil {
			s.mu.Lock()
			run.Stats.Skipped = len(files) - i
			run.Status = "cancelled"
			s.mu.Unlock()
			s.logger.Info("scan cancelled", "processed", i, "skipped", len(files)-i)
			return
		}

		res := s.processFile(path, cfg, scanLog)
		s.mu.Lock()
		run.Stats.apply(res.Outcome)
		s.mu.Unlock()

		s.publish(event.Event{
			Type: event.ScanFile,
			Data: map[string]any{
				"scan_id": run.ID,
				"index":   i + 1,
				"total":   len(files),
				"path":    res.Path,
				"outcome": res.Outcome,
				"dest":    res.Dest,
				"qr_text": res.Text,
				"error":   res.Error,
			},
		})
	}
}

// processFile detects and, outside dry-run mode, relocates one file.
// Failures are folded into the outcome; they never abort the scan.
func (s *Service) processFile(path string, cfg Config, scanLog *scanlog.Writer) FileResult {
	text, hasQR, err := s.detector.Detect(path)
	if err != nil {
		s.logger.Warn("cannot read image", "path", path, "error", err)
		scanLog.DetectError(path, err)
		return FileResult{Path: path, Outcome: OutcomeDetectError, Error: err.Error()}
	}

	if !hasQR {
		scanLog.NoQR(path)
		return FileResult{Path: path, Outcome: OutcomeNoQR}
	}

	if cfg.DryRun {
		destDir := relocate.DestDir(path)
		s.logger.Info("dry run, would move", "path", path, "dest", destDir)
		scanLog.DryRun(path, destDir)
		return FileResult{
			Path:    path,
			Dest:    filepath.Join(destDir, filepath.Base(path)),
			Outcome: OutcomeWouldMove,
			Text:    text,
		}
	}

	dest, err := relocate.MoveToQR(path, cfg.PreserveTimestamps)
	if err != nil {
		s.logger.Warn("failed to move file", "path", path, "error", err)
		scanLog.MoveError(path, err)
		return FileResult{Path: path, Outcome: OutcomeMoveError, Text: text, Error: err.Error()}
	}

	s.logger.Debug("moved file with qr code", "path", path, "dest", dest)
	scanLog.Moved(path, dest)
	return FileResult{Path: path, Dest: dest, Outcome: OutcomeMoved, Text: text}
}

func (s *Service) publish(e event.Event) {
	if s.eventBus != nil {
		s.eventBus.Publish(e)
	}
}

// publishTerminal emits the event matching the run's final status.
func (s *Service) publishTerminal(id, status string, stats Stats, errMsg string) {
	if s.eventBus == nil {
		return
	}

	var typ event.Type
	switch status {
	case "cancelled":
		typ = event.ScanCancelled
	case "failed":
		typ = event.ScanFailed
	default:
		typ = event.ScanCompleted
	}

	data := map[string]any{
		"scan_id": id,
		"status":  status,
		"total":   stats.Total,
		"with_qr": stats.WithQR,
		"moved":   stats.Moved,
		"no_qr":   stats.NoQR,
		"errors":  stats.Errors,
		"skipped": stats.Skipped,
	}
	if errMsg != "" {
		data["error"] = errMsg
	}
	s.eventBus.Publish(event.Event{Type: typ, Data: data})
}
