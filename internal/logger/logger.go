// Package logger sets up the process-wide zap logger.
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level represents log level
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Options configures Setup
type Options struct {
	Level Level
	// Path adds a file sink when non-empty
	Path string
	// Format is "console" or "json"
	Format string
}

var (
	mu            sync.RWMutex
	defaultLogger = zap.NewNop()
	closers       []func() error
)

// ParseLevel maps a level name onto a zap level
func ParseLevel(l Level) (zapcore.Level, error) {
	switch Level(strings.ToLower(string(l))) {
	case LevelDebug:
		return zapcore.DebugLevel, nil
	case LevelInfo, "":
		return zapcore.InfoLevel, nil
	case LevelWarn, "warning":
		return zapcore.WarnLevel, nil
	case LevelError:
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", l)
	}
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}

// New builds a logger from opts without installing it
func New(opts Options) (*zap.Logger, func() error, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}

	var enc zapcore.Encoder
	switch opts.Format {
	case "", "console":
		enc = zapcore.NewConsoleEncoder(encoderConfig())
	case "json":
		enc = zapcore.NewJSONEncoder(encoderConfig())
	default:
		return nil, nil, fmt.Errorf("unknown log format %q", opts.Format)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(enc, zapcore.Lock(os.Stderr), level),
	}
	closeFn := func() error { return nil }

	if opts.Path != "" {
		if err := os.MkdirAll(filepath.Dir(opts.Path), 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		file, err := os.OpenFile(opts.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		// file sink is always JSON
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig()), zapcore.AddSync(file), level))
		closeFn = file.Close
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()), closeFn, nil
}

// Setup installs the process logger
func Setup(opts Options) error {
	l, closeFn, err := New(opts)
	if err != nil {
		return err
	}
	mu.Lock()
	defaultLogger = l
	closers = append(closers, closeFn)
	mu.Unlock()
	return nil
}

// Get returns the process logger. It is a no-op logger until Setup runs.
func Get() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return defaultLogger
}

// Sync flushes the process logger and closes any log files
func Sync() error {
	mu.Lock()
	defer mu.Unlock()
	_ = defaultLogger.Sync()
	var firstErr error
	for _, c := range closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	closers = nil
	return firstErr
}

// StartOperation logs the start of an operation and returns the completion callback
func StartOperation(l *zap.Logger, operation string, fields ...zap.Field) func(error) {
	if l == nil {
		l = Get()
	}
	start := time.Now()
	l.Info("operation_start", append([]zap.Field{zap.String("operation", operation)}, fields...)...)

	return func(err error) {
		end := []zap.Field{
			zap.String("operation", operation),
			zap.Duration("duration", time.Since(start)),
			zap.Bool("success", err == nil),
		}
		end = append(end, fields...)
		if err != nil {
			l.Error("operation_failed", append(end, zap.Error(err))...)
			return
		}
		l.Info("operation_complete", end...)
	}
}
