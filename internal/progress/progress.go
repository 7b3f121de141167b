// Package progress renders a single-line counter for long tracker loops.
package progress

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
)

// Bar writes "desc: n/total [elapsed] postfix" and redraws it in place.
// A disabled bar writes nothing.
type Bar struct {
	w        io.Writer
	desc     string
	disabled bool

	total   int
	n       int
	postfix string
	start   time.Time
}

// New creates a bar writing to w.
func New(w io.Writer, desc string) *Bar {
	return &Bar{w: w, desc: desc}
}

// NewForFile creates a bar on f that is disabled when f is not a terminal
// or when silent is set.
func NewForFile(f *os.File, desc string, silent bool) *Bar {
	b := New(f, desc)
	b.disabled = silent || !IsTerminal(f)
	return b
}

// IsTerminal reports whether f is an interactive terminal.
func IsTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Disabled reports whether the bar is silent.
func (b *Bar) Disabled() bool { return b.disabled }

// Start resets the counter.
func (b *Bar) Start(total int) {
	b.total, b.n, b.postfix = total, 0, ""
	b.start = time.Now()
	b.render()
}

// Step advances the counter by one.
func (b *Bar) Step(postfix string) {
	b.n++
	b.postfix = postfix
	b.render()
}

// Finish ends the line.
func (b *Bar) Finish() {
	if b.disabled {
		return
	}
	fmt.Fprintln(b.w)
}

func (b *Bar) render() {
	if b.disabled {
		return
	}
	line := fmt.Sprintf("\r%s: %d/%d [%s]", b.desc, b.n, b.total, time.Since(b.start).Round(time.Millisecond))
	if b.postfix != "" {
		line += " " + b.postfix
	}
	fmt.Fprint(b.w, line)
}
