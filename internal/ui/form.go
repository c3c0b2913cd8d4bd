// Package ui implements the terminal front end: the interactive scan
// form, live per-file output and the final summary table.
package ui

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/sydlexius/qrsift/internal/scanner"
)

// ErrAborted is returned when the user backs out of the form.
var ErrAborted = errors.New("aborted")

// PromptScanConfig fills cfg by asking for the scan root and toggles,
// then a closing confirmation. Values already present in cfg become the
// form defaults. Backing out at any point, the confirmation included,
// returns ErrAborted with cfg untouched.
func PromptScanConfig(cfg *scanner.Config) error {
	root := cfg.Root
	start := true

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Directory to scan").
				Description("Images containing QR codes move to a qr subfolder.").
				Placeholder("~/Pictures").
				Value(&root).
				Validate(validateRoot),
			huh.NewConfirm().
				Title("Scan subdirectories?").
				Value(&cfg.Recursive),
			huh.NewConfirm().
				Title("Dry run (log would-be moves, move nothing)?").
				Value(&cfg.DryRun),
			huh.NewConfirm().
				Title("Preserve file timestamps?").
				Value(&cfg.PreserveTimestamps),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Start scan?").
				Affirmative("Start").
				Negative("Cancel").
				Value(&start),
		),
	)

	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return ErrAborted
		}
		return fmt.Errorf("running form: %w", err)
	}

	return applyPromptResult(cfg, root, start)
}

// applyPromptResult maps the submitted form values onto cfg. start is
// the closing confirmation; declining it aborts the scan.
func applyPromptResult(cfg *scanner.Config, root string, start bool) error {
	if !start {
		return ErrAborted
	}
	resolved, err := ResolvePath(root)
	if err != nil {
		return err
	}
	cfg.Root = resolved
	return nil
}

func validateRoot(input string) error {
	if strings.TrimSpace(input) == "" {
		return errors.New("a directory is required")
	}
	path, err := ResolvePath(input)
	if err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return errors.New("directory does not exist")
	}
	if !info.IsDir() {
		return errors.New("not a directory")
	}
	return nil
}

// ResolvePath converts a path (including . and ~) to an absolute path.
func ResolvePath(path string) (string, error) {
	if path == "." {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getting current directory: %w", err)
		}
		return cwd, nil
	}

	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		path = filepath.Join(home, path[1:])
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}
	return abs, nil
}
