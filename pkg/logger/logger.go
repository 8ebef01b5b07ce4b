package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync/atomic"
)

type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel maps a LOG_LEVEL value to a Level. Unknown values fall back to info.
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

type Logger struct {
	level       atomic.Int32
	infoLogger  *log.Logger
	warnLogger  *log.Logger
	errorLogger *log.Logger
	debugLogger *log.Logger
}

func New() *Logger {
	return NewWithWriters(os.Stdout, os.Stderr)
}

// NewWithWriters builds a logger that writes debug/info to out and warn/error to errOut.
func NewWithWriters(out, errOut io.Writer) *Logger {
	l := &Logger{
		infoLogger:  log.New(out, "INFO: ", log.Ldate|log.Ltime|log.Lshortfile),
		warnLogger:  log.New(errOut, "WARN: ", log.Ldate|log.Ltime|log.Lshortfile),
		errorLogger: log.New(errOut, "ERROR: ", log.Ldate|log.Ltime|log.Lshortfile),
		debugLogger: log.New(out, "DEBUG: ", log.Ldate|log.Ltime|log.Lshortfile),
	}
	l.SetLevel(LevelInfo)
	return l
}

func (l *Logger) SetLevel(level Level) {
	l.level.Store(int32(level))
}

func (l *Logger) enabled(level Level) bool {
	return Level(l.level.Load()) <= level
}

func (l *Logger) target(level Level) *log.Logger {
	switch level {
	case LevelDebug:
		return l.debugLogger
	case LevelWarn:
		return l.warnLogger
	case LevelError:
		return l.errorLogger
	default:
		return l.infoLogger
	}
}

// logf writes at level; depth is the stack distance to the caller that should be reported.
func (l *Logger) logf(level Level, depth int, format string, v ...interface{}) {
	if !l.enabled(level) {
		return
	}
	_ = l.target(level).Output(depth+1, fmt.Sprintf(format, v...))
}

func (l *Logger) Info(format string, v ...interface{}) {
	l.logf(LevelInfo, 2, format, v...)
}

func (l *Logger) Warn(format string, v ...interface{}) {
	l.logf(LevelWarn, 2, format, v...)
}

func (l *Logger) Error(format string, v ...interface{}) {
	l.logf(LevelError, 2, format, v...)
}

func (l *Logger) Debug(format string, v ...interface{}) {
	l.logf(LevelDebug, 2, format, v...)
}

func (l *Logger) Fatal(format string, v ...interface{}) {
	_ = l.errorLogger.Output(2, fmt.Sprintf(format, v...))
	os.Exit(1)
}

// Global logger instance
var GlobalLogger = New()

// SetLevel changes the minimum level of the global logger.
func SetLevel(level Level) {
	GlobalLogger.SetLevel(level)
}

// Convenience functions
func Info(format string, v ...interface{}) {
	GlobalLogger.logf(LevelInfo, 2, format, v...)
}

func Warn(format string, v ...interface{}) {
	GlobalLogger.logf(LevelWarn, 2, format, v...)
}

func Error(format string, v ...interface{}) {
	GlobalLogger.logf(LevelError, 2, format, v...)
}

func Debug(format string, v ...interface{}) {
	GlobalLogger.logf(LevelDebug, 2, format, v...)
}

func Fatal(format string, v ...interface{}) {
	GlobalLogger.Fatal(format, v...)
}
