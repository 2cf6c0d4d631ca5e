package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// Level orders log severities; messages below the logger's level are dropped.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[Level]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARNING",
	LevelError: "ERROR",
}

// ParseLevel maps a case-insensitive name to a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// Logger writes key=value structured lines.
type Logger struct {
	mu     sync.Mutex
	writer io.Writer
	level  Level
}

// New creates a logger writing to stderr at info level.
func New() *Logger {
	return &Logger{
		writer: os.Stderr,
		level:  LevelInfo,
	}
}

// NewWithWriter creates a logger with a custom writer
func NewWithWriter(w io.Writer) *Logger {
	return &Logger{
		writer: w,
		level:  LevelDebug,
	}
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return NewWithWriter(io.Discard)
}

// SetLevel changes the minimum level that is written.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	l.level = level
	l.mu.Unlock()
}

// Info logs informational messages
func (l *Logger) Info(msg string, fields ...Field) {
	l.log(LevelInfo, msg, fields...)
}

// Error logs error messages
func (l *Logger) Error(msg string, fields ...Field) {
	l.log(LevelError, msg, fields...)
}

// Warn logs warning messages
func (l *Logger) Warn(msg string, fields ...Field) {
	l.log(LevelWarn, msg, fields...)
}

// Debug logs debug messages
func (l *Logger) Debug(msg string, fields ...Field) {
	l.log(LevelDebug, msg, fields...)
}

func (l *Logger) log(level Level, msg string, fields ...Field) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if level < l.level {
		return
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "LEVEL=%s MESSAGE=%s", levelNames[level], msg)
	for _, field := range fields {
		fmt.Fprintf(&sb, " %s=%v", field.Key, field.Value)
	}
	_, _ = fmt.Fprintln(l.writer, sb.String())
}

// Field represents a key-value pair for structured logging
type Field struct {
	Key   string
	Value interface{}
}

// F creates a new field (shorthand)
func F(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// Common field constructors
func Action(value string) Field    { return F("ACTION", value) }
func Status(value string) Field    { return F("STATUS", value) }
func Space(value int) Field        { return F("SPACE", value) }
func Booking(value int) Field      { return F("BOOKING", value) }
func User(value string) Field      { return F("USER", value) }
func Date(value string) Field      { return F("DATE", value) }
func Count(value int) Field        { return F("COUNT", value) }
func Error(value error) Field      { return F("ERROR", value) }
func RequestID(value string) Field { return F("REQUEST_ID", value) }
func Method(value string) Field    { return F("METHOD", value) }
func Path(value string) Field      { return F("PATH", value) }
func HTTPStatus(value int) Field   { return F("HTTP_STATUS", value) }
func Reason(value string) Field    { return F("REASON", value) }
func State(value string) Field     { return F("STATE", value) }
