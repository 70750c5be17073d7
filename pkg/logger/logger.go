// Package logger owns the process-wide zap logger for evarc runs.
package logger

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/evarc/evarc/pkg/config"
)

var (
	mu     sync.Mutex
	global *zap.Logger
)

// contextKey scopes the context values this package reads back out.
type contextKey string

const (
	// RunIDKey carries the writer run identifier.
	RunIDKey contextKey = "run_id"
	// EventSeqKey carries the sequence number of the event in flight.
	EventSeqKey contextKey = "event_seq"
)

// Init builds the process-wide logger from the logging section of the run
// configuration. Calling it again replaces the previous logger, which
// keeps repeated CLI invocations and tests honest about their settings.
func Init(cfg config.LoggingConfig) error {
	l, err := build(cfg)
	if err != nil {
		return err
	}
	mu.Lock()
	global = l
	mu.Unlock()
	return nil
}

func build(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", cfg.Level, err)
	}

	enc := zap.NewProductionEncoderConfig()
	if cfg.Development {
		enc = zap.NewDevelopmentEncoderConfig()
		enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	enc.TimeKey = "timestamp"
	enc.MessageKey = "message"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.EncodeDuration = zapcore.StringDurationEncoder

	encoding := cfg.Encoding
	if encoding == "" {
		encoding = "json"
	}
	out := cfg.OutputPaths
	if len(out) == 0 {
		out = []string{"stdout"}
	}

	zc := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      cfg.Development,
		Encoding:         encoding,
		EncoderConfig:    enc,
		OutputPaths:      out,
		ErrorOutputPaths: []string{"stderr"},
	}
	l, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return l, nil
}

// Get returns the process-wide logger, standing up an info-level JSON
// logger on first use when Init was never called.
func Get() *zap.Logger {
	mu.Lock()
	defer mu.Unlock()
	if global == nil {
		l, err := build(config.LoggingConfig{Level: "info", Encoding: "json"})
		if err != nil {
			l = zap.NewNop()
		}
		global = l
	}
	return global
}

// WithContext returns the global logger annotated with whatever run and
// event identifiers ctx carries.
func WithContext(ctx context.Context) *zap.Logger {
	fields := make([]zap.Field, 0, 2)
	if runID, ok := ctx.Value(RunIDKey).(string); ok {
		fields = append(fields, zap.String("run_id", runID))
	}
	if seq, ok := ctx.Value(EventSeqKey).(uint64); ok {
		fields = append(fields, zap.Uint64("event_seq", seq))
	}
	if len(fields) == 0 {
		return Get()
	}
	return Get().With(fields...)
}

// Sync flushes buffered entries. Safe to call before Init.
func Sync() error {
	mu.Lock()
	defer mu.Unlock()
	if global == nil {
		return nil
	}
	return global.Sync()
}
