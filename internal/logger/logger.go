package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel represents the level of logging
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Logger wraps a zap core with printf-style helpers and secret redaction
type Logger struct {
	mu     sync.Mutex
	level  zap.AtomicLevel
	sugar  *zap.SugaredLogger
	output io.Writer
	prefix string
}

// defaultLogger is the package-level logger instance
var defaultLogger *Logger

// debugLog is the open debug log file, if any
var debugLog *os.File

func init() {
	defaultLogger = New(LevelInfo, os.Stderr, "trakboard")
}

// New creates a new logger instance
func New(level LogLevel, output io.Writer, prefix string) *Logger {
	l := &Logger{
		level:  zap.NewAtomicLevelAt(level.zapLevel()),
		prefix: prefix,
	}
	l.setOutput(output)
	return l
}

func (l *Logger) setOutput(output io.Writer) {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02T15:04:05")
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	encCfg.CallerKey = ""
	encCfg.StacktraceKey = ""

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(output), l.level)

	l.mu.Lock()
	l.output = output
	l.sugar = zap.New(core).Named(l.prefix).Sugar()
	l.mu.Unlock()
}

// SetLevel sets the logging level for the default logger
func SetLevel(level LogLevel) {
	defaultLogger.level.SetLevel(level.zapLevel())
}

// SetOutput replaces the destination of the default logger
func SetOutput(w io.Writer) {
	defaultLogger.setOutput(w)
}

// SetVerbose enables verbose logging (DEBUG level) to stderr and the debug log
func SetVerbose(verbose bool) {
	if verbose {
		SetLevel(LevelDebug)
		// In verbose mode, also log to file for debugging
		if f := getDebugLogFile(); f != nil {
			SetOutput(io.MultiWriter(os.Stderr, f))
		}
		return
	}
	SetLevel(LevelInfo)
	SetOutput(os.Stderr)
}

// RedirectToFile sends log output only to the debug log while a full-screen
// UI owns the terminal. The returned func restores the previous output.
func RedirectToFile() func() {
	defaultLogger.mu.Lock()
	prev := defaultLogger.output
	defaultLogger.mu.Unlock()

	f := getDebugLogFile()
	if f == nil {
		SetOutput(io.Discard)
	} else {
		SetOutput(f)
	}
	return func() { SetOutput(prev) }
}

// DebugLogPath returns where verbose output is written.
func DebugLogPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "trakboard", "debug.log")
}

// getDebugLogFile returns a file handle for debug logging
func getDebugLogFile() *os.File {
	if debugLog != nil {
		return debugLog
	}
	logPath := DebugLogPath()
	if logPath == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil
	}

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil
	}
	debugLog = file
	return file
}

// Sync flushes buffered entries.
func Sync() {
	defaultLogger.mu.Lock()
	s := defaultLogger.sugar
	defaultLogger.mu.Unlock()
	_ = s.Sync()
}

// log is the core logging function
func (l *Logger) log(level LogLevel, format string, args ...interface{}) {
	if !l.level.Enabled(level.zapLevel()) {
		return
	}

	message := fmt.Sprintf(format, args...)

	// Filter out secrets - never log tokens, passwords, or auth headers
	if containsSensitive(message) {
		message = "[REDACTED: contains sensitive data]"
	}

	l.mu.Lock()
	s := l.sugar
	l.mu.Unlock()

	switch level {
	case LevelDebug:
		s.Debug(message)
	case LevelWarn:
		s.Warn(message)
	case LevelError:
		s.Error(message)
	default:
		s.Info(message)
	}
}

// containsSensitive checks if a message contains sensitive information
func containsSensitive(message string) bool {
	lower := strings.ToLower(message)
	sensitiveWords := []string{
		"token", "password", "apikey", "api_key", "auth", "credential",
		"secret", "key=", "authorization:", "basic ", "bearer ",
	}

	for _, word := range sensitiveWords {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}

// Package-level logging functions

// Debug logs debug information (only shown with --verbose)
func Debug(format string, args ...interface{}) {
	defaultLogger.log(LevelDebug, format, args...)
}

// Info logs informational messages
func Info(format string, args ...interface{}) {
	defaultLogger.log(LevelInfo, format, args...)
}

// Warn logs warning messages
func Warn(format string, args ...interface{}) {
	defaultLogger.log(LevelWarn, format, args...)
}

// Error logs error messages
func Error(format string, args ...interface{}) {
	defaultLogger.log(LevelError, format, args...)
}

// HTTP logs HTTP request/response information (debug level)
func HTTP(method, url, requestID string) {
	Debug("HTTP %s %s (request %s)", method, url, requestID)
}

// HTTPResponse logs HTTP response information (debug level)
func HTTPResponse(status int, duration time.Duration) {
	Debug("HTTP response: %d (%v)", status, duration)
}

// Config logs configuration-related information (debug level)
func Config(format string, args ...interface{}) {
	Debug("CONFIG: "+format, args...)
}

// TUI logs TUI-related information (debug level)
func TUI(format string, args ...interface{}) {
	Debug("TUI: "+format, args...)
}

// Tracker logs Trakly API-related information (debug level)
func Tracker(format string, args ...interface{}) {
	Debug("TRACKER: "+format, args...)
}

// Board logs drag and overlay events (debug level)
func Board(format string, args ...interface{}) {
	Debug("BOARD: "+format, args...)
}
