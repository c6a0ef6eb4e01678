package services

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// LogLevel represents the severity level of a log entry
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

var levelOrder = map[LogLevel]int{
	LogLevelDebug: 0,
	LogLevelInfo:  1,
	LogLevelWarn:  2,
	LogLevelError: 3,
}

// Log output formats
const (
	LogFormatJSON = "json"
	LogFormatText = "text"
)

// LogField represents a structured log field
type LogField struct {
	Key   string      `json:"key"`
	Value interface{} `json:"value"`
}

// LogEntry represents a structured log entry
type LogEntry struct {
	Timestamp string                 `json:"timestamp"`
	Level     LogLevel               `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	Error     string                 `json:"error,omitempty"`
}

// Logger interface for structured logging
type Logger interface {
	Debug(msg string, fields ...LogField)
	Info(msg string, fields ...LogField)
	Warn(msg string, fields ...LogField)
	Error(msg string, err error, fields ...LogField)
	With(fields ...LogField) Logger
}

// StructuredLogger writes one JSON object or one key=value line per entry
type StructuredLogger struct {
	level      LogLevel
	format     string
	output     io.Writer
	mu         *sync.Mutex
	baseFields map[string]interface{}
}

// NewStructuredLogger creates a new JSON logger
func NewStructuredLogger(level LogLevel, output io.Writer) *StructuredLogger {
	if output == nil {
		output = os.Stdout
	}

	return &StructuredLogger{
		level:      level,
		format:     LogFormatJSON,
		output:     output,
		mu:         &sync.Mutex{},
		baseFields: make(map[string]interface{}),
	}
}

// NewDefaultLogger creates a logger with default settings
func NewDefaultLogger() *StructuredLogger {
	return NewStructuredLogger(LogLevelInfo, os.Stdout)
}

// Debug logs a debug message
func (l *StructuredLogger) Debug(msg string, fields ...LogField) {
	if l.shouldLog(LogLevelDebug) {
		l.log(LogLevelDebug, msg, nil, fields...)
	}
}

// Info logs an info message
func (l *StructuredLogger) Info(msg string, fields ...LogField) {
	if l.shouldLog(LogLevelInfo) {
		l.log(LogLevelInfo, msg, nil, fields...)
	}
}

// Warn logs a warning message
func (l *StructuredLogger) Warn(msg string, fields ...LogField) {
	if l.shouldLog(LogLevelWarn) {
		l.log(LogLevelWarn, msg, nil, fields...)
	}
}

// Error logs an error message
func (l *StructuredLogger) Error(msg string, err error, fields ...LogField) {
	if l.shouldLog(LogLevelError) {
		l.log(LogLevelError, msg, err, fields...)
	}
}

// With creates a new logger with additional base fields
func (l *StructuredLogger) With(fields ...LogField) Logger {
	newFields := make(map[string]interface{}, len(l.baseFields)+len(fields))
	for k, v := range l.baseFields {
		newFields[k] = v
	}
	for _, field := range fields {
		newFields[field.Key] = field.Value
	}

	return &StructuredLogger{
		level:      l.level,
		format:     l.format,
		output:     l.output,
		mu:         l.mu,
		baseFields: newFields,
	}
}

func (l *StructuredLogger) log(level LogLevel, msg string, err error, fields ...LogField) {
	entry := LogEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Level:     level,
		Message:   msg,
		Fields:    make(map[string]interface{}, len(l.baseFields)+len(fields)),
	}
	for k, v := range l.baseFields {
		entry.Fields[k] = v
	}
	for _, field := range fields {
		entry.Fields[field.Key] = field.Value
	}
	if err != nil {
		entry.Error = err.Error()
	}
	if len(entry.Fields) == 0 {
		entry.Fields = nil
	}

	var line string
	if l.format == LogFormatText {
		line = formatText(entry)
	} else {
		data, marshalErr := json.Marshal(entry)
		if marshalErr != nil {
			line = fmt.Sprintf(`{"level":%q,"message":%q,"error":"unencodable log fields: %v"}`, level, msg, marshalErr)
		} else {
			line = string(data)
		}
	}

	l.mu.Lock()
	fmt.Fprintln(l.output, line)
	l.mu.Unlock()
}

// formatText renders an entry as "ts LEVEL message key=value ..." with keys sorted
func formatText(entry LogEntry) string {
	var b strings.Builder
	b.WriteString(entry.Timestamp)
	b.WriteByte(' ')
	b.WriteString(strings.ToUpper(string(entry.Level)))
	b.WriteByte(' ')
	b.WriteString(entry.Message)

	keys := make([]string, 0, len(entry.Fields))
	for k := range entry.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, entry.Fields[k])
	}
	if entry.Error != "" {
		fmt.Fprintf(&b, " error=%q", entry.Error)
	}
	return b.String()
}

func (l *StructuredLogger) shouldLog(level LogLevel) bool {
	currentLevel, exists := levelOrder[l.level]
	if !exists {
		currentLevel = levelOrder[LogLevelInfo]
	}
	return levelOrder[level] >= currentLevel
}

// Field creates a log field
func Field(key string, value interface{}) LogField {
	return LogField{Key: key, Value: value}
}

// String field helper
func String(key, value string) LogField {
	return LogField{Key: key, Value: value}
}

// Int field helper
func Int(key string, value int) LogField {
	return LogField{Key: key, Value: value}
}

// Bool field helper
func Bool(key string, value bool) LogField {
	return LogField{Key: key, Value: value}
}

// Duration field helper
func Duration(key string, value time.Duration) LogField {
	return LogField{Key: key, Value: value.String()}
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level  LogLevel
	Format string // "json" or "text"
	Output io.Writer
}

// NewLoggerFromConfig creates a logger from configuration
func NewLoggerFromConfig(config *LoggerConfig) Logger {
	if config == nil {
		return NewDefaultLogger()
	}

	level := config.Level
	if level == "" {
		level = LogLevelInfo
	}

	logger := NewStructuredLogger(level, config.Output)
	if config.Format == LogFormatText {
		logger.format = LogFormatText
	}
	return logger
}

// ParseLogLevel parses a log level string
func ParseLogLevel(level string) LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return LogLevelDebug
	case "info":
		return LogLevelInfo
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// NopLogger discards everything
type NopLogger struct{}

func (NopLogger) Debug(string, ...LogField)        {}
func (NopLogger) Info(string, ...LogField)         {}
func (NopLogger) Warn(string, ...LogField)         {}
func (NopLogger) Error(string, error, ...LogField) {}
func (n NopLogger) With(...LogField) Logger        { return n }

// badgerLogger routes BadgerDB's printf-style logs into a Logger
type badgerLogger struct {
	logger Logger
}

// NewBadgerLogger adapts a Logger to badger.Logger
func NewBadgerLogger(logger Logger) *badgerLogger {
	return &badgerLogger{logger: logger.With(String("component", "badger"))}
}

func (b *badgerLogger) Errorf(format string, args ...interface{}) {
	b.logger.Error(strings.TrimSpace(fmt.Sprintf(format, args...)), nil)
}

func (b *badgerLogger) Warningf(format string, args ...interface{}) {
	b.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (b *badgerLogger) Infof(format string, args ...interface{}) {
	b.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (b *badgerLogger) Debugf(format string, args ...interface{}) {
	b.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}
