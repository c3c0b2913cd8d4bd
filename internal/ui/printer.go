package ui

import (
	"fmt"
	"io"
	"sync"

	"github.com/gookit/color"

	"github.com/sydlexius/qrsift/internal/event"
	"github.com/sydlexius/qrsift/internal/scanner"
)

// Printer renders per-file progress lines from scan events.
type Printer struct {
	mu     sync.Mutex
	out    io.Writer
	colors bool
}

// NewPrinter creates a printer writing to out. With colors disabled
// output is plain text, for pipes and dumb terminals.
func NewPrinter(out io.Writer, colors bool) *Printer {
	return &Printer{out: out, colors: colors}
}

// HandleEvent renders one scan.file event. Other types are ignored, so
// the printer can be subscribed broadly.
func (p *Printer) HandleEvent(e event.Event) {
	if e.Type != event.ScanFile {
		return
	}

	index, _ := e.Data["index"].(int)
	total, _ := e.Data["total"].(int)
	path, _ := e.Data["path"].(string)
	outcome, _ := e.Data["outcome"].(string)
	dest, _ := e.Data["dest"].(string)
	errMsg, _ := e.Data["error"].(string)

	var label, detail string
	switch outcome {
	case scanner.OutcomeMoved:
		label = p.paint(color.FgGreen, "MOVED")
		detail = path + " -> " + dest
	case scanner.OutcomeWouldMove:
		label = p.paint(color.FgYellow, "DRY RUN")
		detail = path + " -> " + dest
	case scanner.OutcomeNoQR:
		label = "NO QR"
		detail = path
	case scanner.OutcomeDetectError, scanner.OutcomeMoveError:
		label = p.paint(color.FgRed, "ERROR")
		detail = fmt.Sprintf("%s (%s)", path, errMsg)
	default:
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "[%d/%d] %s %s\n", index, total, label, detail)
}

func (p *Printer) paint(c color.Color, s string) string {
	if !p.colors {
		return s
	}
	return color.New(c).Render(s)
}
