// Package logger writes one JSON object per line to stderr. Values under
// address-like keys, and any address embedded in other values, are masked
// unless redaction is turned off.
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level represents the severity of a log entry.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

var levelNames = map[Level]string{
	DEBUG: "DEBUG",
	INFO:  "INFO",
	WARN:  "WARN",
	ERROR: "ERROR",
}

// ParseLevel maps "debug", "info", "warn" or "error" to a Level. Unknown
// names fall back to INFO.
func ParseLevel(name string) Level {
	for l, n := range levelNames {
		if strings.EqualFold(n, name) {
			return l
		}
	}
	return INFO
}

// Logger provides structured JSON logging with optional PII redaction.
type Logger struct {
	mu        sync.Mutex
	level     Level
	redactPII bool
	out       io.Writer
	base      map[string]string
}

var defaultLogger = &Logger{level: INFO, redactPII: true, out: os.Stderr}

// Default returns the process-wide logger.
func Default() *Logger { return defaultLogger }

// SetLevel sets the minimum log level for the default logger.
func SetLevel(l Level) {
	defaultLogger.mu.Lock()
	defaultLogger.level = l
	defaultLogger.mu.Unlock()
}

// SetRedactPII enables or disables PII redaction for the default logger.
func SetRedactPII(r bool) {
	defaultLogger.mu.Lock()
	defaultLogger.redactPII = r
	defaultLogger.mu.Unlock()
}

// SetOutput redirects the default logger. Tests use it to capture entries.
func SetOutput(w io.Writer) {
	defaultLogger.mu.Lock()
	defaultLogger.out = w
	defaultLogger.mu.Unlock()
}

// With returns a child logger that adds the given key-value pairs to every
// entry it writes.
func (l *Logger) With(fields ...interface{}) *Logger {
	child := &Logger{level: l.level, redactPII: l.redactPII, out: l.out, base: map[string]string{}}
	for k, v := range l.base {
		child.base[k] = v
	}
	for i := 0; i < len(fields)-1; i += 2 {
		child.base[fmt.Sprint(fields[i])] = fmt.Sprint(fields[i+1])
	}
	return child
}

func (l *Logger) Debug(msg string, fields ...interface{}) { l.log(DEBUG, msg, fields...) }
func (l *Logger) Info(msg string, fields ...interface{})  { l.log(INFO, msg, fields...) }
func (l *Logger) Warn(msg string, fields ...interface{})  { l.log(WARN, msg, fields...) }
func (l *Logger) Error(msg string, fields ...interface{}) { l.log(ERROR, msg, fields...) }

// Debug emits a DEBUG-level structured log entry.
func Debug(msg string, fields ...interface{}) { defaultLogger.log(DEBUG, msg, fields...) }

// Info emits an INFO-level structured log entry.
func Info(msg string, fields ...interface{}) { defaultLogger.log(INFO, msg, fields...) }

// Warn emits a WARN-level structured log entry.
func Warn(msg string, fields ...interface{}) { defaultLogger.log(WARN, msg, fields...) }

// Error emits an ERROR-level structured log entry.
func Error(msg string, fields ...interface{}) { defaultLogger.log(ERROR, msg, fields...) }

func (l *Logger) log(level Level, msg string, fields ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level < l.level {
		return
	}

	entry := map[string]string{
		"time":  time.Now().UTC().Format(time.RFC3339),
		"level": levelNames[level],
		"msg":   msg,
	}
	for k, v := range l.base {
		entry[k] = l.value(k, v)
	}
	for i := 0; i < len(fields)-1; i += 2 {
		key := fmt.Sprint(fields[i])
		var val string
		switch v := fields[i+1].(type) {
		case error:
			val = v.Error()
		default:
			val = fmt.Sprint(v)
		}
		entry[key] = l.value(key, val)
	}

	data, _ := json.Marshal(entry)
	fmt.Fprintln(l.out, string(data))
}

func (l *Logger) value(key, val string) string {
	if !l.redactPII {
		return val
	}
	return redactPIIValue(key, val)
}
