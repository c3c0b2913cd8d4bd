package scanner

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/sydlexius/qrsift/internal/imaging"
	"github.com/sydlexius/qrsift/internal/relocate"
)

// ListImages returns the image files under root in walk order. The list
// is materialized up front so files moved during processing are never
// revisited. Hidden directories, qr destination directories and
// symlinks are skipped; the root itself is always entered.
func ListImages(root string, recursive, sniffContent bool, logger *slog.Logger) ([]string, error) {
	if !recursive {
		entries, err := os.ReadDir(root)
		if err != nil {
			return nil, fmt.Errorf("reading directory: %w", err)
		}
		var files []string
		for _, entry := range entries {
			if entry.IsDir() || entry.Type()&fs.ModeSymlink != 0 {
				continue
			}
			path := filepath.Join(root, entry.Name())
			if keepFile(path, sniffContent, logger) {
				files = append(files, path)
			}
		}
		return files, nil
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			logger.Warn("skipping unreadable entry", "path", path, "error", err)
			return nil
		}
		if d.IsDir() {
			if path == root {
				return nil
			}
			if strings.HasPrefix(d.Name(), ".") || d.Name() == relocate.DirName {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if keepFile(path, sniffContent, logger) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}
	return files, nil
}

// keepFile reports whether path belongs in the scan list. With
// sniffContent set, files whose bytes are not image data are dropped
// even when the extension matches; unreadable files stay in the list so
// the scan surfaces the error.
func keepFile(path string, sniffContent bool, logger *slog.Logger) bool {
	if !imaging.IsImagePath(path) {
		return false
	}
	if !sniffContent {
		return true
	}
	ok, err := imaging.SniffImage(path)
	if err != nil {
		logger.Warn("cannot sniff file content", "path", path, "error", err)
		return true
	}
	if !ok {
		logger.Debug("skipping file with non-image content", "path", path)
	}
	return ok
}
