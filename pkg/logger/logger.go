// Package logger is the ledger's structured logger: a zap sugared logger
// carried through context.Context, enriched with the active span and any
// fields attached further up the call chain.
package logger

import (
	"context"
	"sync/atomic"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger embeds the sugared logger, so Infow, Errorw and friends are
// available directly.
type Logger struct {
	*zap.SugaredLogger
}

type (
	loggerKey struct{}
	fieldsKey struct{}
)

// Config selects level, encoding and sinks.
type Config struct {
	Level       string // debug, info, warn, error
	Development bool   // console encoder with colour levels
	OutputPaths []string
	// Service is attached to every line when set.
	Service string
}

// New builds a Logger. An unknown level falls back to info.
func New(cfg Config) (*Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.EncoderConfig.TimeKey = "ts"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if len(cfg.OutputPaths) > 0 {
		zc.OutputPaths = cfg.OutputPaths
	}

	z, err := zc.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}
	if cfg.Service != "" {
		z = z.With(zap.String("service", cfg.Service))
	}
	return Wrap(z), nil
}

// Wrap adapts an existing zap logger, e.g. one built on zaptest/observer.
func Wrap(z *zap.Logger) *Logger {
	return &Logger{z.Sugar()}
}

// NewNop discards everything.
func NewNop() *Logger {
	return Wrap(zap.NewNop())
}

var global atomic.Pointer[Logger]

// SetDefault replaces the logger used when a context carries none.
func SetDefault(l *Logger) {
	global.Store(l)
}

// Default returns the process-wide logger, a production JSON logger on
// stdout until SetDefault is called.
func Default() *Logger {
	if l := global.Load(); l != nil {
		return l
	}
	zc := zap.NewProductionConfig()
	zc.OutputPaths = []string{"stdout"}
	z, err := zc.Build(zap.AddCallerSkip(1))
	if err != nil {
		z = zap.NewNop()
	}
	global.CompareAndSwap(nil, Wrap(z))
	return global.Load()
}

// WithContext returns l extended with the span ids and the fields stored
// in ctx.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	sugar := l.SugaredLogger
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		sugar = sugar.With("trace_id", sc.TraceID().String(), "span_id", sc.SpanID().String())
	}
	if fields, ok := ctx.Value(fieldsKey{}).([]any); ok && len(fields) > 0 {
		sugar = sugar.With(fields...)
	}
	return &Logger{sugar}
}

func (l *Logger) With(keysAndValues ...any) *Logger {
	return &Logger{l.SugaredLogger.With(keysAndValues...)}
}

// WithComponent tags lines with the subsystem that wrote them.
func (l *Logger) WithComponent(name string) *Logger {
	return l.With("component", name)
}

// WithLogger stores l in ctx.
func WithLogger(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// WithFields appends key/value pairs carried by every line logged from ctx.
// Earlier fields are kept; the slice is copied so sibling contexts do not
// share it.
func WithFields(ctx context.Context, keysAndValues ...any) context.Context {
	existing, _ := ctx.Value(fieldsKey{}).([]any)
	merged := make([]any, 0, len(existing)+len(keysAndValues))
	merged = append(merged, existing...)
	merged = append(merged, keysAndValues...)
	return context.WithValue(ctx, fieldsKey{}, merged)
}

// FromContext returns the logger stored in ctx, or Default, enriched by
// WithContext.
func FromContext(ctx context.Context) *Logger {
	l, ok := ctx.Value(loggerKey{}).(*Logger)
	if !ok {
		l = Default()
	}
	return l.WithContext(ctx)
}

func Debug(ctx context.Context, msg string, keysAndValues ...any) {
	FromContext(ctx).Debugw(msg, keysAndValues...)
}

func Info(ctx context.Context, msg string, keysAndValues ...any) {
	FromContext(ctx).Infow(msg, keysAndValues...)
}

func Warn(ctx context.Context, msg string, keysAndValues ...any) {
	FromContext(ctx).Warnw(msg, keysAndValues...)
}

func Error(ctx context.Context, msg string, keysAndValues ...any) {
	FromContext(ctx).Errorw(msg, keysAndValues...)
}

// Fatal logs and exits the process with status 1.
func Fatal(ctx context.Context, msg string, keysAndValues ...any) {
	FromContext(ctx).Fatalw(msg, keysAndValues...)
}
