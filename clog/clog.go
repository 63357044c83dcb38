// Package clog provides a small buffered, severity-tiered logger that is
// injected into a runtime rather than reached for as a package global.
package clog

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

type Severity int

const (
	SevInfo Severity = iota
	SevWarn
	SevError
)

func (s Severity) String() string {
	switch s {
	case SevWarn:
		return "W"
	case SevError:
		return "E"
	default:
		return "I"
	}
}

// Logger is one buffered sink plus an optional stderr mirror. A router
// runtime and a tick engine each own one instance; there is no shared
// package-level state.
type Logger struct {
	mu       sync.Mutex
	w        *bufio.Writer
	under    io.Writer
	mirror   io.Writer // nil disables stderr mirroring
	prefix   string    // e.g. "router 7" or "run a1b2c3"
	minLevel Severity
}

// New builds a Logger writing to w, optionally also mirroring warnings and
// above to mirror (pass nil to disable). prefix identifies the owning
// component in every line.
func New(w io.Writer, mirror io.Writer, prefix string) *Logger {
	return &Logger{
		w:      bufio.NewWriterSize(w, 32*1024),
		under:  w,
		mirror: mirror,
		prefix: prefix,
	}
}

// NewStderr is the common case: log straight to stderr, no separate file.
func NewStderr(prefix string) *Logger {
	return New(os.Stderr, nil, prefix)
}

// SetMinLevel suppresses lines below lvl (default SevInfo, i.e. nothing
// suppressed).
func (l *Logger) SetMinLevel(lvl Severity) {
	l.mu.Lock()
	l.minLevel = lvl
	l.mu.Unlock()
}

func (l *Logger) log(sev Severity, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if sev < l.minLevel {
		return
	}
	line := fmt.Sprintf(format, args...)
	ts := time.Now().Format("15:04:05.000000")
	full := fmt.Sprintf("%s %s %s] %s\n", sev, ts, l.prefix, line)
	l.w.WriteString(full)
	if sev >= SevWarn && l.w.Buffered() > 0 {
		l.w.Flush()
	}
	if l.mirror != nil && sev >= SevWarn && l.mirror != l.under {
		io.WriteString(l.mirror, full)
	}
}

func (l *Logger) Infof(format string, args ...any)  { l.log(SevInfo, format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.log(SevWarn, format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.log(SevError, format, args...) }

func (l *Logger) Infoln(args ...any)  { l.log(SevInfo, "%s", fmt.Sprintln(args...)) }
func (l *Logger) Warnln(args ...any)  { l.log(SevWarn, "%s", fmt.Sprintln(args...)) }
func (l *Logger) Errorln(args ...any) { l.log(SevError, "%s", fmt.Sprintln(args...)) }

// Flush forces the buffer to the underlying writer. Callers should Flush at
// shutdown and at natural quiescence points (tick boundary, loop exit).
func (l *Logger) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Flush()
}
