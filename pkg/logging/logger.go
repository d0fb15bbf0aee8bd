package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// contextKey is a type for context keys to avoid collisions
type contextKey string

const requestIDKey contextKey = "requestID"

// LevelTrace sits below debug for very chatty output
const LevelTrace = slog.LevelDebug - 4

var (
	logger atomic.Pointer[slog.Logger]
	output io.Writer = os.Stdout
)

func init() {
	// Compact handler for readable console output; SetJSONOutput switches to JSON
	logger.Store(slog.New(NewCompactHandler(output, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))
}

func current() *slog.Logger {
	return logger.Load()
}

// SetLevel changes the logging level
func SetLevel(level slog.Level) {
	logger.Store(slog.New(NewCompactHandler(output, &slog.HandlerOptions{
		Level: level,
	})))
}

// SetJSONOutput switches to JSON format output
func SetJSONOutput(level slog.Level) {
	logger.Store(slog.New(slog.NewJSONHandler(output, &slog.HandlerOptions{
		Level: level,
	})))
}

// SetOutput redirects log output, keeping the compact format
func SetOutput(w io.Writer, level slog.Level) {
	output = w
	SetLevel(level)
}

// ParseLevel maps a verbosity name to a level. Unknown names yield info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "trace":
		return LevelTrace
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

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetRequestID retrieves the request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// Helper function to add request ID to log attributes if present
func withRequestID(ctx context.Context, args []any) []any {
	requestID := GetRequestID(ctx)
	if requestID != "" {
		return append([]any{"requestID", requestID}, args...)
	}
	return args
}

// Logger tags every record with a component name
type Logger struct {
	component string
}

// New returns a logger for a named component (e.g. "planner", "web")
func New(component string) *Logger {
	return &Logger{component: component}
}

func (l *Logger) args(args []any) []any {
	return append([]any{"component", l.component}, args...)
}

func (l *Logger) Debug(msg string, args ...any) { current().Debug(msg, l.args(args)...) }
func (l *Logger) Info(msg string, args ...any)  { current().Info(msg, l.args(args)...) }
func (l *Logger) Warn(msg string, args ...any)  { current().Warn(msg, l.args(args)...) }
func (l *Logger) Error(msg string, args ...any) { current().Error(msg, l.args(args)...) }

// InfoContext logs at INFO level with the request ID from ctx
func (l *Logger) InfoContext(ctx context.Context, msg string, args ...any) {
	current().InfoContext(ctx, msg, withRequestID(ctx, l.args(args))...)
}

// Trace logs at TRACE level (very verbose, debug-time only)
func Trace(msg string, args ...any) {
	current().Log(context.Background(), LevelTrace, msg, args...)
}

// Debug logs at DEBUG level (internal component behavior)
func Debug(msg string, args ...any) {
	current().Debug(msg, args...)
}

// DebugContext logs at DEBUG level with context
func DebugContext(ctx context.Context, msg string, args ...any) {
	current().DebugContext(ctx, msg, withRequestID(ctx, args)...)
}

// Info logs at INFO level (user-facing operations)
func Info(msg string, args ...any) {
	current().Info(msg, args...)
}

// InfoContext logs at INFO level with context
func InfoContext(ctx context.Context, msg string, args ...any) {
	current().InfoContext(ctx, msg, withRequestID(ctx, args)...)
}

// Warn logs at WARN level (should be monitored)
func Warn(msg string, args ...any) {
	current().Warn(msg, args...)
}

// WarnContext logs at WARN level with context
func WarnContext(ctx context.Context, msg string, args ...any) {
	current().WarnContext(ctx, msg, withRequestID(ctx, args)...)
}

// Error logs at ERROR level (logical bugs that shouldn't happen)
func Error(msg string, args ...any) {
	current().Error(msg, args...)
}

// ErrorContext logs at ERROR level with context
func ErrorContext(ctx context.Context, msg string, args ...any) {
	current().ErrorContext(ctx, msg, withRequestID(ctx, args)...)
}

// Fatal logs at ERROR level and exits (unrecoverable startup failures)
func Fatal(msg string, args ...any) {
	current().Error(msg, args...)
	os.Exit(1)
}
