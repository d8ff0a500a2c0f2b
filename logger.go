package revali

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync/atomic"
)

// Logger is the minimal structured logging interface consumed by the engine.
// Messages are paired with alternating key/value context arguments.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// SimpleLogger is a lightweight console logger writing to stderr. It is safe
// for concurrent use.
type SimpleLogger struct {
	out *log.Logger
}

// NewSimpleLogger returns a console logger suitable for development use.
func NewSimpleLogger() *SimpleLogger {
	return &SimpleLogger{
		out: log.New(os.Stderr, "[revali] ", log.LstdFlags|log.Lmicroseconds),
	}
}

func (l *SimpleLogger) Debug(msg string, keysAndValues ...any) {
	l.print("DEBUG", msg, keysAndValues)
}

func (l *SimpleLogger) Info(msg string, keysAndValues ...any) {
	l.print("INFO", msg, keysAndValues)
}

func (l *SimpleLogger) Warn(msg string, keysAndValues ...any) {
	l.print("WARN", msg, keysAndValues)
}

func (l *SimpleLogger) Error(msg string, keysAndValues ...any) {
	l.print("ERROR", msg, keysAndValues)
}

func (l *SimpleLogger) print(level, msg string, keysAndValues []any) {
	var b strings.Builder
	b.WriteString(level)
	b.WriteString(" ")
	b.WriteString(msg)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fmt.Fprintf(&b, " %v=%v", keysAndValues[i], keysAndValues[i+1])
	}
	if len(keysAndValues)%2 != 0 {
		fmt.Fprintf(&b, " %v", keysAndValues[len(keysAndValues)-1])
	}
	l.out.Print(b.String())
}

// DebugConfig controls which engine events produce debug log lines. All flags
// are ignored unless Enabled is true and a Logger is configured.
type DebugConfig struct {
	Enabled         bool
	LogFetches      bool
	LogRetries      bool
	LogCache        bool
	LogPolling      bool
	LogRevalidation bool

	// RequestIDGen, when set, generates an identifier attached to the log
	// lines of a single fetch.
	RequestIDGen func() string
}

// DefaultDebugConfig returns a DebugConfig with all event classes enabled but
// logging itself disabled.
func DefaultDebugConfig() *DebugConfig {
	return &DebugConfig{
		Enabled:         false,
		LogFetches:      true,
		LogRetries:      true,
		LogCache:        true,
		LogPolling:      true,
		LogRevalidation: true,
		RequestIDGen:    defaultRequestIDGen,
	}
}

var requestIDCounter atomic.Uint64

func defaultRequestIDGen() string {
	return fmt.Sprintf("req-%d", requestIDCounter.Add(1))
}

// debugEnabled reports whether the given debug flag should produce output.
func (e *Engine) debugEnabled(flag func(*DebugConfig) bool) bool {
	return e.debug != nil && e.debug.Enabled && e.logger != nil && flag(e.debug)
}
