// Package logging is the structured logger used across the service.
package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Field is a structured logging attribute.
type Field struct {
	Key   string
	Value any
}

func String(key, value string) Field      { return Field{Key: key, Value: value} }
func Int(key string, value int) Field     { return Field{Key: key, Value: value} }
func Int64(key string, value int64) Field { return Field{Key: key, Value: value} }
func Float(key string, value float64) Field {
	return Field{Key: key, Value: value}
}
func Any(key string, value any) Field { return Field{Key: key, Value: value} }
func Err(err error) Field             { return Field{Key: "err", Value: err} }

// Logger is the logging surface the rest of the code depends on.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...Field)
	Info(ctx context.Context, msg string, fields ...Field)
	Warn(ctx context.Context, msg string, fields ...Field)
	Error(ctx context.Context, msg string, fields ...Field)
	With(fields ...Field) Logger
}

type Config struct {
	Level  string // debug, info, warn, error
	Format string // json or console
	Output io.Writer
}

// New builds a zerolog-backed Logger. Output defaults to stdout.
func New(cfg Config) Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	zl := zerolog.New(out).Level(parseLevel(cfg.Level)).With().Timestamp().Logger()
	return &zlogger{l: zl}
}

// Noop returns a logger that drops everything.
func Noop() Logger { return noopLogger{} }

type zlogger struct {
	l zerolog.Logger
}

func (z *zlogger) With(fields ...Field) Logger {
	c := z.l.With()
	for _, f := range fields {
		if err, ok := f.Value.(error); ok {
			c = c.AnErr(f.Key, err)
			continue
		}
		c = c.Interface(f.Key, f.Value)
	}
	return &zlogger{l: c.Logger()}
}

func (z *zlogger) Debug(ctx context.Context, msg string, fields ...Field) {
	emit(ctx, z.l.Debug(), msg, fields)
}

func (z *zlogger) Info(ctx context.Context, msg string, fields ...Field) {
	emit(ctx, z.l.Info(), msg, fields)
}

func (z *zlogger) Warn(ctx context.Context, msg string, fields ...Field) {
	emit(ctx, z.l.Warn(), msg, fields)
}

func (z *zlogger) Error(ctx context.Context, msg string, fields ...Field) {
	emit(ctx, z.l.Error(), msg, fields)
}

func emit(ctx context.Context, ev *zerolog.Event, msg string, fields []Field) {
	if ev == nil {
		return
	}
	if id := RequestID(ctx); id != "" {
		ev = ev.Str("request_id", id)
	}
	for _, f := range fields {
		if err, ok := f.Value.(error); ok {
			ev = ev.AnErr(f.Key, err)
			continue
		}
		ev = ev.Interface(f.Key, f.Value)
	}
	ev.Msg(msg)
}

type noopLogger struct{}

func (noopLogger) With(...Field) Logger                    { return noopLogger{} }
func (noopLogger) Debug(context.Context, string, ...Field) {}
func (noopLogger) Info(context.Context, string, ...Field)  {}
func (noopLogger) Warn(context.Context, string, ...Field)  {}
func (noopLogger) Error(context.Context, string, ...Field) {}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// ---- context helpers ----

type ctxKey string

const (
	requestIDKey ctxKey = "request_id"
	loggerKey    ctxKey = "logger"
)

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithLogger stores a logger on the context for code that has no logger field.
func WithLogger(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext returns the logger stored by WithLogger, or a no-op logger.
func FromContext(ctx context.Context) Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey).(Logger); ok && l != nil {
			return l
		}
	}
	return Noop()
}
