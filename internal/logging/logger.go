package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

// Logger writes leveled messages followed by key=value pairs
type Logger struct {
	logger *log.Logger
	debug  bool
}

// NewLogger creates a logger writing to stdout with a bracketed prefix
func NewLogger(prefix string) *Logger {
	return New(os.Stdout, prefix, false)
}

// New creates a logger writing to out. Debug messages are dropped unless
// debug is set.
func New(out io.Writer, prefix string, debug bool) *Logger {
	return &Logger{
		logger: log.New(out, fmt.Sprintf("[%s] ", prefix), log.LstdFlags),
		debug:  debug,
	}
}

// Discard returns a logger that writes nowhere
func Discard() *Logger {
	return New(io.Discard, "", false)
}

// SetDebug toggles debug output
func (l *Logger) SetDebug(on bool) {
	l.debug = on
}

// Info logs an informational message with key-value pairs
func (l *Logger) Info(msg string, keysAndValues ...any) {
	l.logWithKV("INFO", msg, keysAndValues...)
}

// Warn logs a warning message with key-value pairs
func (l *Logger) Warn(msg string, keysAndValues ...any) {
	l.logWithKV("WARN", msg, keysAndValues...)
}

// Error logs an error message with key-value pairs
func (l *Logger) Error(msg string, keysAndValues ...any) {
	l.logWithKV("ERROR", msg, keysAndValues...)
}

// Debug logs a debug message with key-value pairs
func (l *Logger) Debug(msg string, keysAndValues ...any) {
	if !l.debug {
		return
	}
	l.logWithKV("DEBUG", msg, keysAndValues...)
}

func (l *Logger) logWithKV(level, msg string, keysAndValues ...any) {
	var sb strings.Builder
	for i := 0; i < len(keysAndValues); i += 2 {
		if i+1 < len(keysAndValues) {
			fmt.Fprintf(&sb, " %v=%v", keysAndValues[i], keysAndValues[i+1])
		} else {
			fmt.Fprintf(&sb, " %v=(missing)", keysAndValues[i])
		}
	}
	l.logger.Printf("[%s] %s%s", level, msg, sb.String())
}
