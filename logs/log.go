// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2017 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package logs implements the small leveled-logger convention used across
// every epicd package. Each package declares its own subsystem Logger
// (see each package's log.go); this package only owns the Level type and
// the Logger implementation. File rotation and subsystem wiring from flags
// or config files is CLI/config plumbing and lives outside this module.
package logs

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"
)

// Level is the level at which a logger is configured. All messages sent to
// a less severe level are filtered.
type Level uint32

// Level constants, ordered from most to least verbose.
const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelCritical
	LevelOff
)

var levelStrs = [...]string{"TRC", "DBG", "INF", "WRN", "ERR", "CRT", "OFF"}

func (l Level) String() string {
	if l >= Level(len(levelStrs)) {
		return "UNKNOWN"
	}
	return levelStrs[l]
}

// LevelFromString returns the level whose three-letter code (TRC, DBG, ...)
// equals s exactly, and true if one was found; the match is case-sensitive.
func LevelFromString(s string) (l Level, ok bool) {
	for i, str := range levelStrs {
		if str == s {
			return Level(i), true
		}
	}
	return LevelOff, false
}

// Logger writes formatted, subsystem-tagged messages to an underlying
// io.Writer, filtering by the currently configured Level. The zero value is
// not useful; construct with NewLogger.
type Logger struct {
	level     uint32 // atomic, a Level value
	subsystem string
	out       io.Writer
}

// NewLogger returns a Logger for the given subsystem tag writing to out at
// the given starting level.
func NewLogger(subsystem string, out io.Writer, level Level) *Logger {
	l := &Logger{subsystem: subsystem, out: out}
	l.SetLevel(level)
	return l
}

// SetLevel changes the logging level of the logger.
func (l *Logger) SetLevel(level Level) {
	atomic.StoreUint32(&l.level, uint32(level))
}

// Level returns the current logging level of the logger.
func (l *Logger) Level() Level {
	return Level(atomic.LoadUint32(&l.level))
}

func (l *Logger) write(level Level, format string, args ...interface{}) {
	if level < l.Level() {
		return
	}
	ts := time.Now().Format("2006-01-02 15:04:05.000")
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(l.out, "%s [%s] %s: %s\n", ts, level, l.subsystem, msg)
}

// Tracef formats and writes a trace-level message.
func (l *Logger) Tracef(format string, args ...interface{}) { l.write(LevelTrace, format, args...) }

// Debugf formats and writes a debug-level message.
func (l *Logger) Debugf(format string, args ...interface{}) { l.write(LevelDebug, format, args...) }

// Infof formats and writes an info-level message.
func (l *Logger) Infof(format string, args ...interface{}) { l.write(LevelInfo, format, args...) }

// Warnf formats and writes a warning-level message.
func (l *Logger) Warnf(format string, args ...interface{}) { l.write(LevelWarn, format, args...) }

// Errorf formats and writes an error-level message.
func (l *Logger) Errorf(format string, args ...interface{}) { l.write(LevelError, format, args...) }

// Criticalf formats and writes a critical-level message.
func (l *Logger) Criticalf(format string, args ...interface{}) {
	l.write(LevelCritical, format, args...)
}

// Backend is a minimal logging backend: it fans a subsystem tag out to a
// shared writer. Unlike the teacher's backend, this does not own rotation;
// backend.Logger(subsystem, level) is the usual call site.
type Backend struct {
	w io.Writer
}

// NewBackend returns a Backend writing to w (os.Stdout if w is nil).
func NewBackend(w io.Writer) *Backend {
	if w == nil {
		w = os.Stdout
	}
	return &Backend{w: w}
}

// Logger returns a new Logger for subsystem backed by this Backend.
func (b *Backend) Logger(subsystem string, level Level) *Logger {
	return NewLogger(subsystem, b.w, level)
}
