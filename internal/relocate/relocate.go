// Package relocate moves files that contain QR codes into a qr
// subdirectory beside them. Moves never overwrite an existing file;
// name collisions get a numeric suffix instead. Cross-device moves
// fall back to copy+delete and verify the copy with a BLAKE2b digest
// before the source is removed.
package relocate

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// DirName is the subdirectory that collects files with QR codes.
const DirName = "qr"

// maxRenameAttempts bounds the collision suffix search.
const maxRenameAttempts = 10000

// DestDir returns the qr subdirectory for the directory containing path.
func DestDir(path string) string {
	return filepath.Join(filepath.Dir(path), DirName)
}

// MoveToQR moves path into the qr subdirectory next to it and returns
// the destination path. When preserveTimestamps is set the source's
// modification time is restored on the destination after the move.
func MoveToQR(path string, preserveTimestamps bool) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat source: %w", err)
	}

	destDir := DestDir(path)
	if err := os.MkdirAll(destDir, 0o755); err != nil { //nolint:gosec // G301: 0755 matches the scanned tree's visibility
		return "", fmt.Errorf("creating destination directory: %w", err)
	}

	dest, err := nextFreePath(destDir, filepath.Base(path))
	if err != nil {
		return "", err
	}

	if err := renameSafe(path, dest); err != nil {
		return "", err
	}

	if preserveTimestamps {
		mod := info.ModTime()
		if err := os.Chtimes(dest, mod, mod); err != nil {
			return "", fmt.Errorf("restoring timestamps: %w", err)
		}
	}

	return dest, nil
}

// nextFreePath returns destDir/name, or a numbered variant when that
// name is taken. "photo.jpg" becomes "photo_1.jpg", then "photo_2.jpg",
// and so on.
func nextFreePath(destDir, name string) (string, error) {
	candidate := filepath.Join(destDir, name)
	if _, err := os.Stat(candidate); os.IsNotExist(err) {
		return candidate, nil
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 1; i <= maxRenameAttempts; i++ {
		candidate = filepath.Join(destDir, fmt.Sprintf("%s_%d%s", stem, i, ext))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no free name for %s in %s", name, destDir)
}

// renameSafe attempts os.Rename first, then falls back to copy+delete.
func renameSafe(oldPath, newPath string) error {
	err := os.Rename(oldPath, newPath)
	if err == nil {
		return nil
	}
	// Rename may fail on cross-device moves. Fall back to copy+delete.
	if copyErr := copyFileVerified(oldPath, newPath); copyErr != nil {
		return fmt.Errorf("copy fallback: %w (rename error: %w)", copyErr, err)
	}
	// The source must go away or a rescan would move it again.
	if err := os.Remove(oldPath); err != nil {
		return fmt.Errorf("removing source after copy: %w", err)
	}
	return nil
}

// copyFileVerified copies a file using io.Copy, flushes with fsync and
// confirms the destination digest matches what was read from the source.
func copyFileVerified(src, dst string) error {
	in, err := os.Open(src) //nolint:gosec // G304: src comes from the scanned tree
	if err != nil {
		return err
	}
	defer in.Close() //nolint:errcheck

	out, err := os.Create(dst) //nolint:gosec // G304: dst is derived from src
	if err != nil {
		return err
	}
	defer out.Close() //nolint:errcheck

	srcHash, _ := blake2b.New256(nil)
	if _, err := io.Copy(out, io.TeeReader(in, srcHash)); err != nil {
		return err
	}

	// Ensure data is flushed to disk before verifying
	if err := out.Sync(); err != nil {
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	dstSum, err := hashFile(dst)
	if err != nil {
		return fmt.Errorf("verifying copy: %w", err)
	}
	if !bytes.Equal(srcHash.Sum(nil), dstSum) {
		_ = os.Remove(dst)
		return fmt.Errorf("digest mismatch after copying to %s", dst)
	}
	return nil
}

func hashFile(path string) ([]byte, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path produced by this package
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck

	h, _ := blake2b.New256(nil)
	if _, err := io.Copy(h, f); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}
