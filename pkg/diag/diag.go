// Package diag implements the pluggable diagnostics sink the linker core
// reports through: Fatal aborts the link, Error accumulates and fails the
// phase, Warn and Out are informational, Trace is emitted only for
// symbols with their is_traced bit set.
package diag

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/term"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

// Sink is the diagnostics collaborator the core reports through. A
// production linker aborts the process on Fatal; tests typically supply
// a Sink that records calls instead.
type Sink interface {
	Fatal(name string, format string, args ...any)
	Error(name string, format string, args ...any)
	Warn(name string, format string, args ...any)
	Out(format string, args ...any)
	Trace(format string, args ...any)
}

// Console is the default Sink: colorized when stdout is a terminal,
// plain otherwise. warnOnce de-duplicates warnings that the spec calls
// out as "surfaced once" (executable .note.GNU-stack, --warn-common).
type Console struct {
	mu       sync.Mutex
	errCount int64
	warnOnce sync.Map // string -> struct{}
	isTTY    bool
}

// NewConsole builds a Console sink bound to os.Stdout/os.Stderr.
func NewConsole() *Console {
	return &Console{isTTY: term.IsTerminal(int(os.Stdout.Fd()))}
}

func (c *Console) color(code string) string {
	if !c.isTTY {
		return ""
	}
	return code
}

func (c *Console) line(prefix, color, format string, args ...any) string {
	msg := fmt.Sprintf(format, args...)
	return fmt.Sprintf("%s%s%s%s %s", c.color(colorBold), c.color(color), prefix, c.color(colorReset), msg)
}

// Fatal prints the message and terminates the process. Per spec.md §7
// this is reserved for per-file corruption the core cannot recover from.
func (c *Console) Fatal(name, format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(os.Stderr, c.line(fmt.Sprintf("fatal: %s:", name), colorRed, format, args...))
	os.Exit(1)
}

// Error accumulates a recoverable error against name; the caller decides
// when accumulated errors should fail the phase (see ErrorCount).
func (c *Console) Error(name, format string, args ...any) {
	atomic.AddInt64(&c.errCount, 1)
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(os.Stderr, c.line(fmt.Sprintf("error: %s:", name), colorRed, format, args...))
}

// Warn prints a warning, collapsing duplicate (name, format) pairs to a
// single emission to satisfy the "surfaced once" requirement.
func (c *Console) Warn(name, format string, args ...any) {
	key := name + "\x00" + format
	if _, loaded := c.warnOnce.LoadOrStore(key, struct{}{}); loaded {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(os.Stderr, c.line(fmt.Sprintf("warning: %s:", name), colorYellow, format, args...))
}

// Out prints a purely informational line.
func (c *Console) Out(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Println(fmt.Sprintf(format, args...))
}

// Trace prints a trace event for a symbol with is_traced set.
func (c *Console) Trace(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Println(c.line("trace:", colorCyan, format, args...))
}

// ErrorCount returns the number of Error calls so far.
func (c *Console) ErrorCount() int64 {
	return atomic.LoadInt64(&c.errCount)
}

// HLine prints a message framed by a horizontal rule sized to the
// terminal width, falling back to a bare bracketed label when the width
// can't be determined (piped output, non-terminal stdout).
func HLine(msg string) {
	if term.IsTerminal(int(os.Stdout.Fd())) {
		if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > len(msg)+2 {
			pad := (w - len(msg) - 2) / 2
			fmt.Println(strings.Repeat("-", pad) + "[" + msg + "]" + strings.Repeat("-", pad))
			return
		}
	}
	fmt.Println("[" + msg + "]")
}

// Recording is a Sink that stores every call instead of printing,
// intended for tests that assert on diagnostics rather than stdout.
type Recording struct {
	mu      sync.Mutex
	Fatals  []string
	Errors  []string
	Warns   []string
	Outs    []string
	Traces  []string
	didExit bool
}

func NewRecording() *Recording { return &Recording{} }

func (r *Recording) Fatal(name, format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Fatals = append(r.Fatals, name+": "+fmt.Sprintf(format, args...))
	r.didExit = true
}

func (r *Recording) Error(name, format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Errors = append(r.Errors, name+": "+fmt.Sprintf(format, args...))
}

func (r *Recording) Warn(name, format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Warns = append(r.Warns, name+": "+fmt.Sprintf(format, args...))
}

func (r *Recording) Out(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Outs = append(r.Outs, fmt.Sprintf(format, args...))
}

func (r *Recording) Trace(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Traces = append(r.Traces, fmt.Sprintf(format, args...))
}

// DidFatal reports whether Fatal was ever invoked.
func (r *Recording) DidFatal() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.didExit
}
