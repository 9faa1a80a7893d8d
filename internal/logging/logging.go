// Package logging provides per-component prefixed loggers, generalizing the
// teacher's ad hoc log.Printf("[executor] ...") call sites (itself a
// descendant of the original mge_log() bracket-tag convention) into a small
// constructor.
package logging

import (
	"io"
	"log"
	"os"
)

// Logger wraps a component-tagged *log.Logger with a debug gate.
type Logger struct {
	std   *log.Logger
	debug bool
}

// New returns a Logger tagged with "[component]", writing to w (os.Stderr
// if w is nil). debug enables Debugf output.
func New(component string, w io.Writer, debug bool) *Logger {
	if w == nil {
		w = os.Stderr
	}
	return &Logger{
		std:   log.New(w, "["+component+"] ", log.LstdFlags),
		debug: debug,
	}
}

// Infof logs at normal level.
func (l *Logger) Infof(format string, args ...any) {
	l.std.Printf(format, args...)
}

// Errorf logs at error level; the same sink as Infof, since the teacher
// does not split streams either.
func (l *Logger) Errorf(format string, args ...any) {
	l.std.Printf("ERROR: "+format, args...)
}

// Debugf logs only when the logger was constructed with debug=true —
// per-slot rejections and other high-volume events are debug-only
// (spec.md §7 propagation policy).
func (l *Logger) Debugf(format string, args ...any) {
	if !l.debug {
		return
	}
	l.std.Printf("DEBUG: "+format, args...)
}
