// Package logging provides the leveled logger shared by the CLI commands,
// the projection pipeline and the terminal viewer.
package logging

import (
	"io"
	"log"
	"os"
	"strings"
)

// Level orders log verbosity from most to least chatty.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel maps a config string to a Level, defaulting to info.
func ParseLevel(level string) Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger writes prefixed lines through a stdlib log.Logger, dropping lines
// below its level.
type Logger struct {
	level  Level
	output *log.Logger
}

// New creates a Logger writing to w. A nil writer means stderr.
func New(level string, w io.Writer) *Logger {
	if w == nil {
		w = os.Stderr
	}
	return &Logger{
		level:  ParseLevel(level),
		output: log.New(w, "", log.Ldate|log.Ltime),
	}
}

// NewDiscard returns a Logger that drops everything. Used by tests and by
// library callers that don't care about progress output.
func NewDiscard() *Logger {
	return &Logger{level: LevelError + 1, output: log.New(io.Discard, "", 0)}
}

// SetOutput redirects subsequent lines, e.g. to a file once a full-screen UI
// owns the terminal.
func (l *Logger) SetOutput(w io.Writer) {
	l.output.SetOutput(w)
}

func (l *Logger) Debug(format string, v ...any) { l.printf(LevelDebug, "DEBUG: ", format, v...) }
func (l *Logger) Info(format string, v ...any)  { l.printf(LevelInfo, "INFO: ", format, v...) }
func (l *Logger) Warn(format string, v ...any)  { l.printf(LevelWarn, "WARN: ", format, v...) }
func (l *Logger) Error(format string, v ...any) { l.printf(LevelError, "ERROR: ", format, v...) }

func (l *Logger) printf(level Level, prefix, format string, v ...any) {
	if l == nil || level < l.level {
		return
	}
	l.output.Printf(prefix+format, v...)
}
