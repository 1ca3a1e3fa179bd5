// Package logging provides a minimal printf-style logging contract shared by
// every recast component, plus a file-backed default implementation.
package logging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"runtime"
	"sync"
	"time"
)

// Logger defines a minimal, printf-style logging contract.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Nop returns a logger that discards all output.
func Nop() Logger {
	return nopLogger{}
}

// IsNil reports whether logger is nil or wraps a nil pointer receiver.
func IsNil(logger Logger) bool {
	if logger == nil {
		return true
	}
	val := reflect.ValueOf(logger)
	switch val.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Slice, reflect.Map, reflect.Func:
		return val.IsNil()
	default:
		return false
	}
}

// OrNop returns logger when non-nil, otherwise a no-op logger.
func OrNop(logger Logger) Logger {
	if IsNil(logger) {
		return Nop()
	}
	return logger
}

// Level represents the severity of a log message.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

var (
	loggerInstance *fileLogger
	loggerOnce     sync.Once
)

// fileLogger writes formatted log lines to recast-debug.log.
type fileLogger struct {
	file      *os.File
	logger    *log.Logger
	level     Level
	mu        sync.Mutex
	component string
	toStdout  bool
}

// GetLogger returns the process-wide default logger.
func GetLogger() Logger {
	return getDefault()
}

func getDefault() *fileLogger {
	loggerOnce.Do(func() {
		loggerInstance = newFileLogger("", DEBUG)
	})
	return loggerInstance
}

// NewComponentLogger returns the default logger scoped to a component name.
func NewComponentLogger(component string) Logger {
	base := getDefault()
	return &fileLogger{
		file:      base.file,
		logger:    base.logger,
		level:     base.level,
		component: component,
		toStdout:  base.toStdout,
	}
}

// SetLevel sets the minimum level on the default logger.
func SetLevel(level Level) {
	l := getDefault()
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

func logFilePath() string {
	if path := os.Getenv("RECAST_LOG_FILE"); path != "" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, "recast-debug.log")
}

func newFileLogger(component string, level Level) *fileLogger {
	l := &fileLogger{
		level:     level,
		component: component,
		toStdout:  os.Getenv("RECAST_LOG_STDOUT") != "",
	}

	path := logFilePath()
	if path == "" {
		return l
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		log.Printf("Failed to open log file: %v", err)
		return l
	}

	l.file = file
	l.logger = log.New(file, "", 0) // formatted manually below
	return l
}

func (l *fileLogger) log(level Level, format string, args ...any) {
	if level < l.level {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	_, file, line, ok := runtime.Caller(2)
	if ok {
		file = filepath.Base(file)
	} else {
		file = "???"
		line = 0
	}

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	component := l.component
	if component == "" {
		component = "RECAST"
	}

	message := fmt.Sprintf(format, args...)
	logLine := fmt.Sprintf("%s [%s] [%s] %s:%d - %s\n",
		timestamp, levelToString(level), component, file, line, message)
	logLine = sanitizeLogLine(logLine)

	if l.logger != nil {
		l.logger.Print(logLine)
	}
	if l.toStdout {
		fmt.Print(logLine)
	}
}

func (l *fileLogger) Debug(format string, args ...any) { l.log(DEBUG, format, args...) }
func (l *fileLogger) Info(format string, args ...any)  { l.log(INFO, format, args...) }
func (l *fileLogger) Warn(format string, args ...any)  { l.log(WARN, format, args...) }
func (l *fileLogger) Error(format string, args ...any) { l.log(ERROR, format, args...) }

func levelToString(level Level) string {
	switch level {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

var (
	bearerTokenPattern = regexp.MustCompile(`(?i)(bearer\s+)([A-Za-z0-9\-\._~+/]+=*)`)
	apiKeyPattern      = regexp.MustCompile(
		`(?i)((?:"|')?(?:api[_-]?key|access[_-]?token|token|secret|password)(?:"|')?\s*(?:=|:)\s*)(?:"|')?([^"'\s,;]+)((?:"|')?)`,
	)
	standaloneSecretPattern = regexp.MustCompile(`(?i)(sk-[A-Za-z0-9]{16,}|ghp_[A-Za-z0-9]{16,})`)
)

const redactedPlaceholder = "[REDACTED]"

// sanitizeLogLine strips credential-shaped substrings before they reach disk.
func sanitizeLogLine(line string) string {
	sanitized := bearerTokenPattern.ReplaceAllString(line, "${1}"+redactedPlaceholder)
	sanitized = apiKeyPattern.ReplaceAllStringFunc(sanitized, func(match string) string {
		parts := apiKeyPattern.FindStringSubmatch(match)
		if len(parts) != 4 {
			return match
		}
		return parts[1] + redactedPlaceholder + parts[3]
	})
	return standaloneSecretPattern.ReplaceAllString(sanitized, redactedPlaceholder)
}
