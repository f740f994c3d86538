// Package logging provides the leveled logger shared by the registry, the
// file watcher, the compiler's debug channel and the CLI.
package logging

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Level orders log messages by severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelOff
)

var levelNames = map[Level]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
	LevelOff:   "OFF",
}

func (l Level) String() string { return levelNames[l] }

// ParseLevel reads a level name as written in configuration.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	case "off", "none":
		return LevelOff, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q (use debug, info, warn, error or off)", s)
}

// Entry is one JSON log line.
type Entry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Component string `json:"component,omitempty"`
	Message   string `json:"message"`
}

// Logger writes leveled messages as text or JSON lines.
type Logger struct {
	mu        *sync.Mutex
	output    io.Writer
	format    string // "json" or "text"
	level     Level
	component string
	now       func() time.Time
}

// New creates a logger. format is "json" or "text" (the default).
func New(output io.Writer, format string, level Level) *Logger {
	if format == "" {
		format = "text"
	}
	return &Logger{
		mu:     &sync.Mutex{},
		output: output,
		format: format,
		level:  level,
		now:    time.Now,
	}
}

// Null returns a logger that discards everything. Libraries use it when
// the caller supplies none.
func Null() *Logger {
	return New(io.Discard, "text", LevelOff)
}

// With returns a logger that tags messages with component. It shares the
// parent's output.
func (l *Logger) With(component string) *Logger {
	child := *l
	child.component = component
	return &child
}

// Enabled reports whether messages at level are written.
func (l *Logger) Enabled(level Level) bool {
	return l != nil && level >= l.level && l.level != LevelOff
}

func (l *Logger) Debugf(format string, args ...any) { l.logf(LevelDebug, format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.logf(LevelInfo, format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.logf(LevelWarn, format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.logf(LevelError, format, args...) }

func (l *Logger) logf(level Level, format string, args ...any) {
	if !l.Enabled(level) {
		return
	}
	msg := fmt.Sprintf(format, args...)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.format == "json" {
		data, err := json.Marshal(Entry{
			Timestamp: l.now().Format(time.RFC3339),
			Level:     level.String(),
			Component: l.component,
			Message:   msg,
		})
		if err != nil {
			return
		}
		fmt.Fprintf(l.output, "%s\n", data)
		return
	}
	if l.component != "" {
		fmt.Fprintf(l.output, "[%s] %s: %s\n", level, l.component, msg)
		return
	}
	fmt.Fprintf(l.output, "[%s] %s\n", level, msg)
}

// Buffer captures log output line by line.
type Buffer struct {
	mu      sync.Mutex
	lines   []string
	partial strings.Builder
}

// NewBuffer returns a debug-level text logger writing into a Buffer.
func NewBuffer() (*Logger, *Buffer) {
	b := &Buffer{}
	return New(b, "text", LevelDebug), b
}

func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.partial.Write(p)
	text := b.partial.String()
	for {
		i := strings.IndexByte(text, '\n')
		if i < 0 {
			break
		}
		b.lines = append(b.lines, text[:i])
		text = text[i+1:]
	}
	b.partial.Reset()
	b.partial.WriteString(text)
	return len(p), nil
}

// Lines returns the complete lines written so far.
func (b *Buffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	result := make([]string, len(b.lines))
	copy(result, b.lines)
	return result
}

// String returns everything written so far.
func (b *Buffer) String() string {
	lines := b.Lines()
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}
