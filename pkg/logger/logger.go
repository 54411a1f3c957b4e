// Package logger wraps zerolog with context-scoped fields. Services
// accumulate fields on the context (request id, actor, project) and
// every log call picks up whatever scope is in effect.
package logger

import (
	"context"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/stagecrew/rentline-backend/pkg/env"
)

// Options configures the structured logger.
type Options struct {
	ServiceName string
	Level       zerolog.Level
	WarnStack   bool
	Output      io.Writer
}

type Logger struct {
	base      *zerolog.Logger
	warnStack bool
}

type ctxKey struct{}

// New builds a logger writing JSON to stdout by default. Setting
// LOG_FORMAT=console switches to the human-readable writer for local
// development.
func New(opts Options) *Logger {
	level := opts.Level
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var out io.Writer = os.Stdout
	if opts.Output != nil {
		out = opts.Output
	}
	if env.Get("LOG_FORMAT", "json") == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano

	base := zerolog.New(out).
		With().
		Timestamp().
		Str("service", opts.ServiceName).
		Logger().
		Level(level)

	return &Logger{base: &base, warnStack: opts.WarnStack}
}

// ParseLevel maps a config string to a zerolog level, defaulting to
// info on blank or unknown input rather than failing startup.
func ParseLevel(value string) zerolog.Level {
	s := strings.ToLower(strings.TrimSpace(value))
	if s == "" {
		return zerolog.InfoLevel
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

func (l *Logger) scoped(ctx context.Context) *zerolog.Logger {
	if ctx != nil {
		if entry, ok := ctx.Value(ctxKey{}).(*zerolog.Logger); ok {
			return entry
		}
	}
	return l.base
}

func (l *Logger) store(ctx context.Context, entry zerolog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, &entry)
}

// WithField returns a context whose logger carries one extra field.
func (l *Logger) WithField(ctx context.Context, key string, value any) context.Context {
	return l.store(ctx, l.scoped(ctx).With().Interface(key, value).Logger())
}

// WithFields returns a context whose logger carries every given field.
func (l *Logger) WithFields(ctx context.Context, fields map[string]any) context.Context {
	builder := l.scoped(ctx).With()
	for k, v := range fields {
		builder = builder.Interface(k, v)
	}
	return l.store(ctx, builder.Logger())
}

func (l *Logger) WithRequestID(ctx context.Context, requestID string) context.Context {
	return l.WithField(ctx, "request_id", requestID)
}

func (l *Logger) WithActor(ctx context.Context, actor string) context.Context {
	return l.WithField(ctx, "actor", actor)
}

func (l *Logger) WithProjectID(ctx context.Context, projectID string) context.Context {
	return l.WithField(ctx, "project_id", projectID)
}

func (l *Logger) WithItemID(ctx context.Context, itemID string) context.Context {
	return l.WithField(ctx, "item_id", itemID)
}

func (l *Logger) Info(ctx context.Context, msg string) {
	l.scoped(ctx).Info().Msg(msg)
}

// Warn logs at warn level, attaching a stack trace when the logger was
// built with WarnStack.
func (l *Logger) Warn(ctx context.Context, msg string) {
	event := l.scoped(ctx).Warn()
	if l.warnStack {
		event = event.Str("stack", stackTrace())
	}
	event.Msg(msg)
}

// Error logs at error level with a stack trace. err may be nil.
func (l *Logger) Error(ctx context.Context, msg string, err error) {
	event := l.scoped(ctx).Error()
	if err != nil {
		event = event.Err(err)
	}
	event.Str("stack", stackTrace()).Msg(msg)
}

func stackTrace() string {
	return strings.TrimSpace(string(debug.Stack()))
}
