package observability

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
)

const (
	// ErrorLogField is the key used for error fields in logs
	ErrorLogField string = "error"
)

// Logger interface - defines the common logging methods
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})

	Debug(args ...interface{})
	Info(args ...interface{})
	Warn(args ...interface{})
	Error(args ...interface{})

	WithFields(fields map[string]interface{}) Logger
	WithContext(ctx context.Context) Logger
	WithErr(err error) Logger
}

// Level orders log severities for the loggers that filter on their own.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// ParseLevel converts a textual level into a Level. Unknown values are rejected.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel, nil
	case "", "info":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	default:
		return InfoLevel, fmt.Errorf("unknown log level %q", s)
	}
}

// DefaultLogger - a basic implementation using Go's standard log package
type DefaultLogger struct {
	*log.Logger
	level  Level
	fields map[string]interface{}
	err    error
}

// NewDefaultLogger creates a new DefaultLogger that logs to standard output
func NewDefaultLogger() Logger {
	return &DefaultLogger{
		Logger: log.New(os.Stdout, "", log.LstdFlags),
		level:  InfoLevel,
		fields: make(map[string]interface{}),
	}
}

func (l *DefaultLogger) Debugf(format string, args ...interface{}) {
	l.logWithFields(DebugLevel, format, args...)
}
func (l *DefaultLogger) Infof(format string, args ...interface{}) {
	l.logWithFields(InfoLevel, format, args...)
}
func (l *DefaultLogger) Warnf(format string, args ...interface{}) {
	l.logWithFields(WarnLevel, format, args...)
}
func (l *DefaultLogger) Errorf(format string, args ...interface{}) {
	l.logWithFields(ErrorLevel, format, args...)
}

func (l *DefaultLogger) Debug(args ...interface{}) { l.logWithFields(DebugLevel, "%v", fmt.Sprint(args...)) }
func (l *DefaultLogger) Info(args ...interface{})  { l.logWithFields(InfoLevel, "%v", fmt.Sprint(args...)) }
func (l *DefaultLogger) Warn(args ...interface{})  { l.logWithFields(WarnLevel, "%v", fmt.Sprint(args...)) }
func (l *DefaultLogger) Error(args ...interface{}) { l.logWithFields(ErrorLevel, "%v", fmt.Sprint(args...)) }

// WithFields - allows adding structured fields to the log
func (l *DefaultLogger) WithFields(fields map[string]interface{}) Logger {
	newLogger := &DefaultLogger{
		Logger: l.Logger,
		level:  l.level,
		fields: make(map[string]interface{}, len(l.fields)+len(fields)),
		err:    l.err,
	}
	for k, v := range l.fields {
		newLogger.fields[k] = v
	}
	for k, v := range fields {
		newLogger.fields[k] = v
	}
	return newLogger
}

// WithContext - No-op for DefaultLogger. Returns itself.
func (l *DefaultLogger) WithContext(ctx context.Context) Logger {
	return l
}

// WithErr - allows adding an error to the log
func (l *DefaultLogger) WithErr(err error) Logger {
	return &DefaultLogger{
		Logger: l.Logger,
		level:  l.level,
		fields: l.fields,
		err:    err,
	}
}

var levelPrefixes = map[Level]string{
	DebugLevel: "[DEBUG] ",
	InfoLevel:  "[INFO] ",
	WarnLevel:  "[WARN] ",
	ErrorLevel: "[ERROR] ",
}

// Helper function to log with fields and error
func (l *DefaultLogger) logWithFields(level Level, format string, args ...interface{}) {
	if level < l.level {
		return
	}

	keys := make([]string, 0, len(l.fields))
	for k := range l.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%v=%v", k, l.fields[k]))
	}
	if l.err != nil {
		parts = append(parts, fmt.Sprintf("%s=%v", ErrorLogField, l.err))
	}

	prefix := ""
	if len(parts) > 0 {
		prefix = fmt.Sprintf("[%s] ", strings.Join(parts, " "))
	}

	l.Logger.Printf(prefix+levelPrefixes[level]+format, args...)
}

// NullLogger - a logger that does nothing
type NullLogger struct{}

// NewNullLogger creates a new NullLogger
func NewNullLogger() Logger {
	return &NullLogger{}
}

func (l *NullLogger) Debugf(format string, args ...interface{}) {}
func (l *NullLogger) Infof(format string, args ...interface{})  {}
func (l *NullLogger) Warnf(format string, args ...interface{})  {}
func (l *NullLogger) Errorf(format string, args ...interface{}) {}

func (l *NullLogger) Debug(args ...interface{}) {}
func (l *NullLogger) Info(args ...interface{})  {}
func (l *NullLogger) Warn(args ...interface{})  {}
func (l *NullLogger) Error(args ...interface{}) {}

func (l *NullLogger) WithFields(fields map[string]interface{}) Logger { return l }
func (l *NullLogger) WithContext(ctx context.Context) Logger          { return l }
func (l *NullLogger) WithErr(err error) Logger                        { return l }

// New builds a Logger for the named backend: "default", "logrus", "zap" or "null".
func New(backend, level string) (Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(backend) {
	case "", "default":
		return &DefaultLogger{
			Logger: log.New(os.Stdout, "", log.LstdFlags),
			level:  lvl,
			fields: make(map[string]interface{}),
		}, nil
	case "logrus":
		return newLogrusLoggerAt(lvl), nil
	case "zap":
		return newZapLoggerAt(lvl)
	case "null", "none":
		return NewNullLogger(), nil
	default:
		return nil, fmt.Errorf("unknown log backend %q", backend)
	}
}
