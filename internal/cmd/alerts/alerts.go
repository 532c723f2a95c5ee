// Package alerts prints user-visible notifications on a terminal.
package alerts

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/agentstation/queuelink/pkg/notify"
)

// Writer renders notices as single lines. It is safe for concurrent use.
type Writer struct {
	mu       sync.Mutex
	w        io.Writer
	useColor bool
}

var _ notify.Renderer = (*Writer)(nil)

// Option configures a Writer.
type Option func(*Writer)

// WithColor forces colored output on or off. By default color is used
// only when w is a terminal.
func WithColor(on bool) Option {
	return func(wr *Writer) {
		wr.useColor = on
	}
}

// NewWriter creates a Writer printing to w.
func NewWriter(w io.Writer, opts ...Option) *Writer {
	wr := &Writer{w: w, useColor: isTerminal(w)}
	for _, opt := range opts {
		opt(wr)
	}
	return wr
}

// Show implements notify.Renderer.
func (wr *Writer) Show(d notify.Descriptor) {
	line := Format(d)
	if wr.useColor {
		line = Color(d.Severity) + line + resetColor
	}

	wr.mu.Lock()
	defer wr.mu.Unlock()
	//nolint:errcheck // notifications are fire-and-forget
	fmt.Fprintln(wr.w, line)
}

// Format returns the uncolored text of a notice.
func Format(d notify.Descriptor) string {
	switch {
	case d.Message == "":
		return fmt.Sprintf("%s %s", Icon(d.Severity), d.Title)
	case d.Title == "":
		return fmt.Sprintf("%s %s", Icon(d.Severity), d.Message)
	default:
		return fmt.Sprintf("%s %s: %s", Icon(d.Severity), d.Title, d.Message)
	}
}

// isTerminal checks if the writer is a terminal (for color support).
func isTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		stat, err := f.Stat()
		if err != nil {
			return false
		}
		return (stat.Mode() & os.ModeCharDevice) != 0
	}
	return false
}
