// Package kernlog is the kernel's console logger. The original kernel
// reaches for INFO/OK/FAILED/PANIC macros around a single UART write; this
// generalizes that into a small leveled logger over whatever io.Writer the
// firmware console exposes, the same way the teacher falls back to plain
// fmt.Printf for diagnostics rather than pulling in a structured-logging
// library for a single-writer console.
package kernlog

import (
	"fmt"
	"io"
)

// Logger writes tagged diagnostic lines to a console writer.
type Logger struct {
	w io.Writer
}

// New returns a Logger that writes to w.
func New(w io.Writer) *Logger {
	return &Logger{w: w}
}

// Info logs a step that is about to happen.
func (l *Logger) Info(format string, args ...any) {
	fmt.Fprintf(l.w, format+"\n", args...)
}

// Ok logs successful completion of a step.
func (l *Logger) Ok(format string, args ...any) {
	fmt.Fprintf(l.w, format+"\n", args...)
}

// Failed logs a recoverable request failure (spec.md's request-failure
// taxonomy: the caller observes an error return, the kernel keeps running).
func (l *Logger) Failed(format string, args ...any) {
	fmt.Fprintf(l.w, "[FAILED] "+format+"\n", args...)
}

// Panic logs a fatal condition and then panics, the Go-native equivalent of
// the original's PANIC macro halting in a loop. The caller's stack unwinds
// through a recover at the top of cmd/kernel, which parks in the documented
// wait loop instead of exiting the process.
func (l *Logger) Panic(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(l.w, "PANIC: %s\n", msg)
	panic(msg)
}
