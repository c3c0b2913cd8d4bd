package scanner

import "time"

// Config controls a single scan.
type Config struct {
	Root               string `json:"root" validate:"required,max=1024"`
	Recursive          bool   `json:"recursive"`
	DryRun             bool   `json:"dry_run"`
	PreserveTimestamps bool   `json:"preserve_timestamps"`
	SniffContent       bool   `json:"sniff_content"`
}

// Stats counts per-file outcomes of a scan.
type Stats struct {
	Total   int `json:"total"`
	WithQR  int `json:"with_qr"`
	Moved   int `json:"moved"`
	NoQR    int `json:"no_qr"`
	Errors  int `json:"errors"`
	Skipped int `json:"skipped"`
}

// Per-file outcomes.
const (
	OutcomeMoved       = "moved"
	OutcomeWouldMove   = "would_move"
	OutcomeNoQR        = "no_qr"
	OutcomeDetectError = "detect_error"
	OutcomeMoveError   = "move_error"
)

// apply folds one file outcome into the counters.
func (st *Stats) apply(outcome string) {
	switch outcome {
	case OutcomeMoved:
		st.WithQR++
		st.Moved++
	case OutcomeWouldMove:
		st.WithQR++
	case OutcomeMoveError:
		st.WithQR++
		st.Errors++
	case OutcomeNoQR:
		st.NoQR++
	case OutcomeDetectError:
		st.Errors++
	}
}

// FileResult describes what happened to a single scanned file. Text
// holds the decoded QR payload when one was found.
type FileResult struct {
	Path    string `json:"path"`
	Dest    string `json:"dest,omitempty"`
	Outcome string `json:"outcome"`
	Text    string `json:"text,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Run summarizes one scan from start to finish.
type Run struct {
	ID          string     `json:"id"`
	Status      string     `json:"status"` // "running", "completed", "cancelled", "failed"
	Root        string     `json:"root"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Stats       Stats      `json:"stats"`
	Error       string     `json:"error,omitempty"`

	// done closes once the run has finished and its terminal event has
	// been handed to the bus. Snapshots share the channel.
	done chan struct{}
}
