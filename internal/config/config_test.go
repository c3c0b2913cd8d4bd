package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if !cfg.Scan.Recursive {
		t.Error("expected recursive to default to true")
	}
	if cfg.Scan.DryRun {
		t.Error("expected dry_run to default to false")
	}
	if !cfg.Scan.PreserveTimestamps {
		t.Error("expected preserve_timestamps to default to true")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("logging level = %q, want info", cfg.Logging.Level)
	}
	if cfg.Watch.DebounceSeconds != 2 {
		t.Errorf("debounce_seconds = %d, want 2", cfg.Watch.DebounceSeconds)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Scan.Recursive {
		t.Error("expected defaults when config file is missing")
	}
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte(`
scan:
  root: /photos
  recursive: false
  dry_run: true
logging:
  level: debug
  format: json
watch:
  debounce_seconds: 5
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Scan.Root != "/photos" {
		t.Errorf("root = %q, want /photos", cfg.Scan.Root)
	}
	if cfg.Scan.Recursive {
		t.Error("expected recursive false from file")
	}
	if !cfg.Scan.DryRun {
		t.Error("expected dry_run true from file")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Watch.DebounceSeconds != 5 {
		t.Errorf("debounce_seconds = %d, want 5", cfg.Watch.DebounceSeconds)
	}
	// Untouched values keep defaults
	if !cfg.Scan.PreserveTimestamps {
		t.Error("expected preserve_timestamps to keep its default")
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("scan:\n  root: /from-file\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("QS_ROOT", "/from-env")
	t.Setenv("QS_RECURSIVE", "false")
	t.Setenv("QS_DRY_RUN", "1")
	t.Setenv("QS_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Scan.Root != "/from-env" {
		t.Errorf("root = %q, want /from-env", cfg.Scan.Root)
	}
	if cfg.Scan.Recursive {
		t.Error("expected QS_RECURSIVE=false to apply")
	}
	if !cfg.Scan.DryRun {
		t.Error("expected QS_DRY_RUN=1 to apply")
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("level = %q, want warn", cfg.Logging.Level)
	}
}

func TestLoad_UnparseableBoolIgnored(t *testing.T) {
	t.Setenv("QS_RECURSIVE", "maybe")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Scan.Recursive {
		t.Error("unparseable bool should leave the default in place")
	}
}

func TestLoad_InvalidLevel(t *testing.T) {
	t.Setenv("QS_LOG_LEVEL", "loud")

	if _, err := Load(""); err == nil {
		t.Fatal("expected error for invalid log level")
	}
}

func TestLoad_NegativeWatchValue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("watch:\n  debounce_seconds: -1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for negative debounce")
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("scan: [not a map"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for malformed yaml")
	}
}
