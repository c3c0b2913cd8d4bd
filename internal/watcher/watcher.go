// Package watcher triggers rescans when new images land in a watched
// directory tree.
package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"

	"github.com/sydlexius/qrsift/internal/event"
	"github.com/sydlexius/qrsift/internal/imaging"
	"github.com/sydlexius/qrsift/internal/relocate"
	"github.com/sydlexius/qrsift/internal/scanlog"
	"github.com/sydlexius/qrsift/internal/scanner"
)

const probeTimeout = 2 * time.Second

// Service watches a directory tree for new images, debounces bursts of
// filesystem activity and triggers rescans in response.
type Service struct {
	root      string
	recursive bool
	scanFn    func(ctx context.Context) error
	eventBus  *event.Bus
	logger    *slog.Logger

	debounce      time.Duration
	refreshPeriod time.Duration
	pollInterval  time.Duration
	limiter       *rate.Limiter

	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	watching map[string]bool
	snapshot map[string]struct{} // image paths seen by the last poll
}

// NewService creates a new filesystem watcher service for root.
func NewService(root string, recursive bool, scanFn func(ctx context.Context) error, eventBus *event.Bus, logger *slog.Logger) *Service {
	return &Service{
		root:          root,
		recursive:     recursive,
		scanFn:        scanFn,
		eventBus:      eventBus,
		logger:        logger.With("component", "fs-watcher"),
		debounce:      2 * time.Second,
		refreshPeriod: 5 * time.Minute,
		pollInterval:  30 * time.Second,
		limiter:       rate.NewLimiter(rate.Every(10*time.Second), 1),
		watching:      make(map[string]bool),
	}
}

// SetDebounce overrides the default debounce interval.
func (s *Service) SetDebounce(d time.Duration) {
	s.debounce = d
}

// SetRefreshPeriod overrides how often the watch list is re-synced.
func (s *Service) SetRefreshPeriod(d time.Duration) {
	s.refreshPeriod = d
}

// SetPollInterval overrides the poll fallback interval.
func (s *Service) SetPollInterval(d time.Duration) {
	s.pollInterval = d
}

// SetMinRescanGap sets the minimum spacing between triggered rescans.
// A non-positive gap disables the limit.
func (s *Service) SetMinRescanGap(d time.Duration) {
	if d <= 0 {
		s.limiter = rate.NewLimiter(rate.Inf, 1)
		return
	}
	s.limiter = rate.NewLimiter(rate.Every(d), 1)
}

// Start blocks until ctx is canceled. It watches the tree with fsnotify
// and falls back to periodic polling when event delivery does not work,
// as on many network mounts.
func (s *Service) Start(ctx context.Context) {
	usePoll := false
	w, err := fsnotify.NewWatcher()
	if err != nil {
		s.logger.Warn("fsnotify unavailable, falling back to polling", "error", err)
		usePoll = true
	} else if !ProbeFSNotify(s.root, probeTimeout) {
		s.logger.Warn("fsnotify delivers no events here, falling back to polling", "root", s.root)
		_ = w.Close()
		w = nil
		usePoll = true
	} else {
		defer w.Close() //nolint:errcheck
		s.mu.Lock()
		s.watcher = w
		s.mu.Unlock()
		s.refreshWatchPaths()
	}

	if usePoll {
		// Prime the snapshot so the first poll only reports real changes.
		s.pollTree()
	}
	s.logger.Info("filesystem watcher starting", "root", s.root,
		"recursive", s.recursive, "poll_only", usePoll)

	refreshTicker := time.NewTicker(s.refreshPeriod)
	defer refreshTicker.Stop()

	pollTicker := time.NewTicker(s.pollInterval)
	defer pollTicker.Stop()

	// Debounce timer for coalescing change events into a single scan.
	// Starts stopped; reset on each relevant event.
	debounceTimer := time.NewTimer(0)
	if !debounceTimer.Stop() {
		<-debounceTimer.C
	}
	scanPending := false

	// When fsnotify is unavailable, use nil channels (never receive).
	var eventCh <-chan fsnotify.Event
	var errCh <-chan error
	if w != nil {
		eventCh = w.Events
		errCh = w.Errors
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("filesystem watcher stopping")
			return

		case ev, ok := <-eventCh:
			if !ok {
				return
			}
			s.handleFSEvent(ev, debounceTimer, &scanPending)

		case err, ok := <-errCh:
			if !ok {
				return
			}
			s.logger.Error("fsnotify error", "error", err)

		case <-debounceTimer.C:
			if scanPending {
				if !s.limiter.Allow() {
					// Too soon after the previous rescan. Re-arm and
					// try again after another debounce interval.
					s.logger.Debug("rescan rate limited, deferring")
					debounceTimer.Reset(s.debounce)
				} else {
					scanPending = false
					s.logger.Info("debounce elapsed, triggering rescan")
					s.publishTrigger()
					if err := s.scanFn(ctx); err != nil {
						s.logger.Error("rescan triggered by watcher failed", "error", err)
					}
				}
			}

		case <-pollTicker.C:
			if usePoll && s.pollTree() && !scanPending {
				if !debounceTimer.Stop() {
					select {
					case <-debounceTimer.C:
					default:
					}
				}
				debounceTimer.Reset(s.debounce)
				scanPending = true
			}

		case <-refreshTicker.C:
			if w != nil {
				s.refreshWatchPaths()
			}
		}
	}
}

func (s *Service) handleFSEvent(ev fsnotify.Event, debounceTimer *time.Timer, scanPending *bool) {
	// New content arrives as Create or Write. Remove and Rename are
	// deliberately ignored: they are usually this tool's own moves.
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return
	}
	if s.ignoredPath(ev.Name) {
		return
	}

	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if !s.recursive {
				return
			}
			// Watch new directories right away so files copied into
			// them are seen without waiting for the refresh tick.
			s.mu.Lock()
			if s.watcher != nil && !s.watching[ev.Name] {
				if err := s.watcher.Add(ev.Name); err != nil {
					s.logger.Error("failed to watch new directory", "path", ev.Name, "error", err)
				} else {
					s.watching[ev.Name] = true
					s.logger.Info("watching new directory", "path", ev.Name)
				}
			}
			s.mu.Unlock()
			s.armRescan(debounceTimer, scanPending, ev.Name)
			return
		}
	}

	if !imaging.IsImagePath(ev.Name) {
		return
	}
	s.armRescan(debounceTimer, scanPending, ev.Name)
}

// armRescan resets the debounce timer so rapid changes coalesce into
// one scan.
func (s *Service) armRescan(debounceTimer *time.Timer, scanPending *bool, path string) {
	s.logger.Debug("change detected", "path", path)
	if !debounceTimer.Stop() {
		select {
		case <-debounceTimer.C:
		default:
		}
	}
	debounceTimer.Reset(s.debounce)
	*scanPending = true
}

// ignoredPath reports whether path is something the watcher must never
// react to: qrscan.log appends, qr destination directories and hidden
// entries. Reacting to those would make scans re-trigger themselves.
func (s *Service) ignoredPath(path string) bool {
	if filepath.Base(path) == scanlog.FileName {
		return true
	}
	rel, err := filepath.Rel(s.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return true
	}
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if part == relocate.DirName {
			return true
		}
		if strings.HasPrefix(part, ".") && part != "." {
			return true
		}
	}
	return false
}

// refreshWatchPaths synchronizes the watch list with the directories
// currently present under the root.
func (s *Service) refreshWatchPaths() {
	wanted := s.watchableDirs()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher == nil {
		return
	}

	// Remove watches for paths that are gone.
	for path := range s.watching {
		if !wanted[path] {
			if err := s.watcher.Remove(path); err != nil {
				s.logger.Debug("failed to remove watch", "path", path, "error", err)
			}
			delete(s.watching, path)
			s.logger.Info("stopped watching directory", "path", path)
		}
	}

	// Add watches for new paths.
	for path := range wanted {
		if s.watching[path] {
			continue
		}
		if err := s.watcher.Add(path); err != nil {
			s.logger.Error("failed to watch directory", "path", path, "error", err)
			continue
		}
		s.watching[path] = true
		s.logger.Info("watching directory", "path", path)
	}
}

// watchableDirs returns the root and, in recursive mode, every
// subdirectory that scans would visit.
func (s *Service) watchableDirs() map[string]bool {
	wanted := make(map[string]bool)

	info, err := os.Stat(s.root)
	if err != nil || !info.IsDir() {
		s.logger.Warn("watch root not accessible", "root", s.root, "error", err)
		return wanted
	}
	wanted[s.root] = true
	if !s.recursive {
		return wanted
	}

	_ = filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() || path == s.root {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") || d.Name() == relocate.DirName {
			return filepath.SkipDir
		}
		wanted[path] = true
		return nil
	})
	return wanted
}

// pollTree diffs the current image set against the previous snapshot.
// Only additions count; removals are usually this tool's own moves.
func (s *Service) pollTree() bool {
	files, err := scanner.ListImages(s.root, s.recursive, false, s.logger)
	if err != nil {
		s.logger.Warn("poll walk failed", "error", err)
		return false
	}
	next := make(map[string]struct{}, len(files))
	for _, f := range files {
		next[f] = struct{}{}
	}

	s.mu.Lock()
	prev := s.snapshot
	s.snapshot = next
	s.mu.Unlock()

	if prev == nil {
		return false
	}
	for f := range next {
		if _, existed := prev[f]; !existed {
			s.logger.Info("poll found new image", "path", f)
			return true
		}
	}
	return false
}

func (s *Service) publishTrigger() {
	if s.eventBus == nil {
		return
	}
	s.eventBus.Publish(event.Event{
		Type: event.WatchTriggered,
		Data: map[string]any{"root": s.root},
	})
}
