package diag

import (
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/term"
)

// IsTerminal reports whether w is an interactive terminal. CI environments
// count as non-interactive.
func IsTerminal(w io.Writer) bool {
	if os.Getenv("CI") != "" {
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

const (
	ansiYellow = "\x1b[33m"
	ansiRed    = "\x1b[31m"
	ansiReset  = "\x1b[0m"
)

// Terminal prints compiler-style "file:line:col: warning: msg" lines for a
// human. Color is used only on a terminal.
type Terminal struct {
	w     io.Writer
	color bool
	mu    sync.Mutex
}

func NewTerminal(w io.Writer) *Terminal {
	if w == nil {
		w = os.Stderr
	}
	return &Terminal{w: w, color: IsTerminal(w) && os.Getenv("NO_COLOR") == ""}
}

func (t *Terminal) Warning(err error) { t.print(ansiYellow, "warning", err) }

func (t *Terminal) Error(err error) { t.print(ansiRed, "error", err) }

func (t *Terminal) print(color, label string, err error) {
	if t == nil || err == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.color {
		fmt.Fprintf(t.w, "%s%s%s: %v\n", color, label, ansiReset, err)
		return
	}
	fmt.Fprintf(t.w, "%s: %v\n", label, err)
}

// Summary prints the one-line result of a run.
func (t *Terminal) Summary(files, params, warnings int) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.w, "preprocessed %d file(s), %d parameter(s), %d warning(s)\n", files, params, warnings)
}
