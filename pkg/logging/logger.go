// Package logging provides the JSON slog logger used by roadmap-service and
// the structured helpers for events, audits and dependency calls.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"
)

// LogLevel is a textual slog level
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

func (l LogLevel) slogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(string(l)))); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Config holds logger configuration
type Config struct {
	Level       LogLevel
	ServiceName string
	Environment string
	Version     string
	Output      io.Writer
}

// DefaultConfig logs info and above to stdout. Environment and version come
// from ENVIRONMENT and VERSION.
func DefaultConfig(serviceName string) *Config {
	return &Config{
		Level:       LevelInfo,
		ServiceName: serviceName,
		Environment: envOr("ENVIRONMENT", "development"),
		Version:     envOr("VERSION", "unknown"),
		Output:      os.Stdout,
	}
}

// Logger is a slog.Logger whose records pick up the request-scoped ids
// stored in the context passed to the *Context methods.
type Logger struct {
	*slog.Logger
}

// New creates a JSON logger
func New(cfg *Config) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	json := slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: cfg.Level.slogLevel(),
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && a.Value.Kind() == slog.KindTime {
				a.Value = slog.StringValue(a.Value.Time().UTC().Format(time.RFC3339Nano))
			}
			return a
		},
	})

	base := slog.New(contextHandler{json}).With(
		"service", cfg.ServiceName,
		"environment", cfg.Environment,
		"version", cfg.Version,
	)
	return &Logger{Logger: base}
}

// NewNop discards everything
func NewNop() *Logger {
	return New(&Config{Level: LevelError, ServiceName: "nop", Output: io.Discard})
}

// SetDefault installs l as the process-wide slog logger
func (l *Logger) SetDefault() {
	slog.SetDefault(l.Logger)
}

func (l *Logger) with(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// WithContext binds the ids in ctx for calls that do not take a context
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if attrs := contextAttrs(ctx); len(attrs) > 0 {
		return l.with(attrs...)
	}
	return l
}

func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return l.with("error", err.Error())
}

func (l *Logger) WithComponent(component string) *Logger {
	return l.with("component", component)
}

func (l *Logger) WithOperation(operation string) *Logger {
	return l.with("operation", operation)
}

// Event logs a business event such as a completed generation run
func (l *Logger) Event(ctx context.Context, eventType string, data map[string]any) {
	l.InfoContext(ctx, "Business event", appendMap([]any{"eventType", eventType}, data)...)
}

// Audit logs an operator action on a resource
func (l *Logger) Audit(ctx context.Context, action, resource, resourceID, actorID string, details map[string]any) {
	attrs := []any{"auditAction", action, "resource", resource, "resourceId", resourceID, "actorId", actorID}
	l.InfoContext(ctx, "Audit event", appendMap(attrs, details)...)
}

// Performance logs how long an operation took
func (l *Logger) Performance(ctx context.Context, operation string, duration time.Duration, success bool, details map[string]any) {
	attrs := []any{"operation", operation, "durationMs", duration.Milliseconds(), "success", success}
	l.InfoContext(ctx, "Performance metric", appendMap(attrs, details)...)
}

// HTTPRequest logs a served request at a level derived from its status
func (l *Logger) HTTPRequest(ctx context.Context, method, path string, status int, duration time.Duration, clientIP string) {
	level := slog.LevelInfo
	switch {
	case status >= 500:
		level = slog.LevelError
	case status >= 400:
		level = slog.LevelWarn
	}
	l.Log(ctx, level, "HTTP request",
		"method", method, "path", path, "status", status,
		"durationMs", duration.Milliseconds(), "clientIP", clientIP)
}

// DatabaseQuery logs one repository operation; failures at error level
func (l *Logger) DatabaseQuery(ctx context.Context, collection, operation string, duration time.Duration, success bool) {
	l.Log(ctx, outcomeLevel(success), "Database query",
		"collection", collection, "operation", operation,
		"durationMs", duration.Milliseconds(), "success", success)
}

// KafkaPublish logs one publish; failures at error level
func (l *Logger) KafkaPublish(ctx context.Context, topic, eventType string, success bool, duration time.Duration) {
	l.Log(ctx, outcomeLevel(success), "Kafka publish",
		"topic", topic, "eventType", eventType,
		"success", success, "durationMs", duration.Milliseconds())
}

// Panic logs a recovered panic with the current goroutine's stack
func (l *Logger) Panic(ctx context.Context, recovered any) {
	stack := make([]byte, 4096)
	stack = stack[:runtime.Stack(stack, false)]
	l.ErrorContext(ctx, "Panic recovered", "panic", recovered, "stack", string(stack))
}

func outcomeLevel(success bool) slog.Level {
	if success {
		return slog.LevelDebug
	}
	return slog.LevelError
}

func appendMap(attrs []any, m map[string]any) []any {
	for k, v := range m {
		attrs = append(attrs, k, v)
	}
	return attrs
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
