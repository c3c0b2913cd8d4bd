package ui

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sydlexius/qrsift/internal/event"
	"github.com/sydlexius/qrsift/internal/scanner"
)

func fileEvent(index, total int, path, outcome, dest, errMsg string) event.Event {
	return event.Event{
		Type:      event.ScanFile,
		Timestamp: time.Now(),
		Data: map[string]any{
			"index":   index,
			"total":   total,
			"path":    path,
			"outcome": outcome,
			"dest":    dest,
			"error":   errMsg,
		},
	}
}

func TestPrinter_RendersOutcomes(t *testing.T) {
	tests := []struct {
		name  string
		event event.Event
		want  string
	}{
		{
			name:  "moved",
			event: fileEvent(1, 3, "/p/a.jpg", scanner.OutcomeMoved, "/p/qr/a.jpg", ""),
			want:  "[1/3] MOVED /p/a.jpg -> /p/qr/a.jpg\n",
		},
		{
			name:  "dry run",
			event: fileEvent(2, 3, "/p/b.jpg", scanner.OutcomeWouldMove, "/p/qr/b.jpg", ""),
			want:  "[2/3] DRY RUN /p/b.jpg -> /p/qr/b.jpg\n",
		},
		{
			name:  "no qr",
			event: fileEvent(3, 3, "/p/c.jpg", scanner.OutcomeNoQR, "", ""),
			want:  "[3/3] NO QR /p/c.jpg\n",
		},
		{
			name:  "detect error",
			event: fileEvent(1, 1, "/p/d.jpg", scanner.OutcomeDetectError, "", "decoding image: bad header"),
			want:  "[1/1] ERROR /p/d.jpg (decoding image: bad header)\n",
		},
		{
			name:  "move error",
			event: fileEvent(1, 1, "/p/e.jpg", scanner.OutcomeMoveError, "", "stat source: gone"),
			want:  "[1/1] ERROR /p/e.jpg (stat source: gone)\n",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			p := NewPrinter(&buf, false)
			p.HandleEvent(tc.event)
			if got := buf.String(); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestPrinter_IgnoresOtherEventTypes(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, false)

	p.HandleEvent(event.Event{Type: event.ScanStarted, Timestamp: time.Now()})
	p.HandleEvent(event.Event{Type: event.ScanCompleted, Timestamp: time.Now()})

	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}

func TestPrinter_IgnoresUnknownOutcome(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, false)

	p.HandleEvent(fileEvent(1, 1, "/p/a.jpg", "mystery", "", ""))

	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}

func TestRenderSummary(t *testing.T) {
	var buf bytes.Buffer
	stats := scanner.Stats{Total: 4, WithQR: 2, Moved: 2, NoQR: 1, Errors: 1}

	RenderSummary(&buf, stats, 1234*time.Millisecond)

	out := buf.String()
	for _, want := range []string{"Images scanned", "QR codes found", "Files moved", "No QR code", "Errors", "Completed in 1.234s"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Skipped") {
		t.Errorf("summary should omit the skipped row when nothing was skipped:\n%s", out)
	}
}

func TestRenderSummary_ShowsSkipped(t *testing.T) {
	var buf bytes.Buffer
	stats := scanner.Stats{Total: 5, NoQR: 2, Skipped: 3}

	RenderSummary(&buf, stats, time.Second)

	if !strings.Contains(buf.String(), "Skipped") {
		t.Errorf("summary missing skipped row:\n%s", buf.String())
	}
}

func TestResolvePath_Dot(t *testing.T) {
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}

	got, err := ResolvePath(".")
	if err != nil {
		t.Fatalf("ResolvePath: %v", err)
	}
	if got != cwd {
		t.Errorf("got %q, want %q", got, cwd)
	}
}

func TestResolvePath_Tilde(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := ResolvePath("~/photos")
	if err != nil {
		t.Fatalf("ResolvePath: %v", err)
	}
	want := filepath.Join(home, "photos")
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestResolvePath_Relative(t *testing.T) {
	got, err := ResolvePath("some/dir")
	if err != nil {
		t.Fatalf("ResolvePath: %v", err)
	}
	if !filepath.IsAbs(got) {
		t.Errorf("expected absolute path, got %q", got)
	}
}

func TestApplyPromptResult_DeclineAborts(t *testing.T) {
	cfg := scanner.Config{}
	err := applyPromptResult(&cfg, t.TempDir(), false)
	if !errors.Is(err, ErrAborted) {
		t.Errorf("got %v, want ErrAborted", err)
	}
	if cfg.Root != "" {
		t.Errorf("declined prompt still set root %q", cfg.Root)
	}
}

func TestApplyPromptResult_ConfirmResolvesRoot(t *testing.T) {
	dir := t.TempDir()
	cfg := scanner.Config{}
	if err := applyPromptResult(&cfg, dir, true); err != nil {
		t.Fatalf("applyPromptResult: %v", err)
	}
	if cfg.Root != dir {
		t.Errorf("got root %q, want %q", cfg.Root, dir)
	}
}

func TestValidateRoot(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "plain.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{name: "empty", input: "   ", wantErr: "a directory is required"},
		{name: "directory", input: dir, wantErr: ""},
		{name: "file", input: file, wantErr: "not a directory"},
		{name: "missing", input: filepath.Join(dir, "nope"), wantErr: "directory does not exist"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := validateRoot(tc.input)
			if tc.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || err.Error() != tc.wantErr {
				t.Errorf("got %v, want %q", err, tc.wantErr)
			}
		})
	}
}
