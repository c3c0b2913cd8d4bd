package watcher

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ProbeFSNotify tests whether fsnotify delivers events for the given path.
// It creates a temporary directory inside path, watches for the Create
// event, and returns true if the event arrives within the timeout.
func ProbeFSNotify(path string, timeout time.Duration) bool {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return false
	}
	defer w.Close() //nolint:errcheck

	if err := w.Add(path); err != nil {
		return false
	}

	// Create a probe directory with a random suffix.
	probeName := fmt.Sprintf(".qrsift_probe_%d", rand.Int63()) //nolint:gosec // G404: not security-sensitive
	probeDir := filepath.Join(path, probeName)

	if err := os.Mkdir(probeDir, 0o750); err != nil { //nolint:gosec // G301: probe dir is temporary
		return false
	}
	defer os.Remove(probeDir) //nolint:errcheck

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return false
			}
			if ev.Has(fsnotify.Create) && filepath.Base(ev.Name) == probeName {
				return true
			}
		case <-w.Errors:
			return false
		case <-timer.C:
			return false
		}
	}
}
