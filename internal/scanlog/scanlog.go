// Package scanlog appends qrscan.log entries recording what the
// scanner did with each file it visited.
package scanlog

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// FileName is the log file the scanner maintains in scanned directories.
const FileName = "qrscan.log"

// Writer appends scan outcomes to qrscan.log files. With rootOnly set
// every entry goes to the scan root; otherwise entries land in the
// directory of the file they describe.
type Writer struct {
	root     string
	rootOnly bool
	logger   *slog.Logger
}

// NewWriter returns a Writer for a scan rooted at root.
func NewWriter(root string, rootOnly bool, logger *slog.Logger) *Writer {
	return &Writer{
		root:     root,
		rootOnly: rootOnly,
		logger:   logger.With("component", "scanlog"),
	}
}

// Moved records a completed move.
func (w *Writer) Moved(src, dest string) {
	w.append(src, fmt.Sprintf("MOVED: %s -> %s", src, dest))
}

// NoQR records a file that was decoded and contained no QR code.
func (w *Writer) NoQR(path string) {
	w.append(path, fmt.Sprintf("NO QR: %s", path))
}

// DryRun records a move that dry-run mode suppressed.
func (w *Writer) DryRun(src, destDir string) {
	w.append(src, fmt.Sprintf("DRY RUN: Would move %s -> %s", src, destDir))
}

// DetectError records a file that could not be opened or decoded.
func (w *Writer) DetectError(path string, err error) {
	w.append(path, fmt.Sprintf("ERROR: Cannot open image %s: %v", path, err))
}

// MoveError records a failed move.
func (w *Writer) MoveError(path string, err error) {
	w.append(path, fmt.Sprintf("ERROR: Failed to move %s: %v", path, err))
}

// append writes one timestamped line to the log file covering refPath.
// Append failures are reported through the application logger and never
// interrupt a scan.
func (w *Writer) append(refPath, message string) {
	dir := w.root
	if !w.rootOnly {
		dir = filepath.Dir(refPath)
	}
	logPath := filepath.Join(dir, FileName)

	if err := appendLine(dir, logPath, message); err != nil {
		w.logger.Warn("failed to append scan log entry", "path", logPath, "error", err)
	}
}

func appendLine(dir, logPath, message string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec // G301: log directories mirror the scanned tree
		return err
	}

	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) //nolint:gosec // G304: log path is derived from the scanned tree
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck

	line := fmt.Sprintf("%s %s\n", time.Now().Format(time.RFC3339), message)
	if _, err := f.WriteString(line); err != nil {
		return err
	}
	return f.Close()
}
