package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// Log is the global logger instance. It defaults to a text handler so that
// packages used before Setup (tests, CLI) never hit a nil logger.
var Log = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

type ctxKey string

const (
	requestIDKey ctxKey = "request_id"
	operatorKey  ctxKey = "operator_id"
)

// Setup initializes the global logger based on the environment
func Setup(env, level string) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}

	if env == "production" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	Log = slog.New(handler)
	slog.SetDefault(Log)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithRequestID stores the request id for later log lines.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// WithOperator stores the acting operator id for later log lines.
func WithOperator(ctx context.Context, operatorID string) context.Context {
	return context.WithValue(ctx, operatorKey, operatorID)
}

// RequestID returns the request id carried by ctx, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithContext returns the global logger enriched with request scoped attributes.
func WithContext(ctx context.Context) *slog.Logger {
	l := Log
	if id := RequestID(ctx); id != "" {
		l = l.With(slog.String("request_id", id))
	}
	if op, ok := ctx.Value(operatorKey).(string); ok && op != "" {
		l = l.With(slog.String("operator_id", op))
	}
	return l
}

// Info logs an info message
func Info(msg string, args ...any) {
	Log.Info(msg, args...)
}

// Error logs an error message
func Error(msg string, args ...any) {
	Log.Error(msg, args...)
}

// Debug logs a debug message
func Debug(msg string, args ...any) {
	Log.Debug(msg, args...)
}

// Warn logs a warning message
func Warn(msg string, args ...any) {
	Log.Warn(msg, args...)
}
