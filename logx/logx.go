// Package logx provides the slog-backed implementation of core/log.Logger.
//
// Overview:
//   - Responsibility: logfmt/JSON output with sorted fields, level colorization and secret masking
//   - Key Types: Logger implementation, Options for configuration
//   - Concurrency Model: All loggers are safe for concurrent use; derived loggers share one writer lock
//   - Error Semantics: No errors returned; write failures are dropped
//   - Performance Notes: One allocation per record for the encoded line
//
// Usage:
//
//	logger := logx.New(logx.WithFormat(logx.FormatJSON), logx.WithLevel(slog.LevelDebug))
//	logger.Info("resource ready", log.Str("resource", "cache"))
package logx

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"go.eggybyte.com/orchid/core/log"
	"go.eggybyte.com/orchid/logx/internal"
)

// Format specifies the output format for logs.
type Format string

const (
	// FormatLogfmt outputs logs in logfmt format (key=value pairs).
	FormatLogfmt Format = "logfmt"
	// FormatJSON outputs one JSON object per line.
	FormatJSON Format = "json"
)

// DefaultSensitiveFields lists keys masked unless WithSensitiveFields overrides them.
// Connection strings carry credentials, so dsn and url are masked too.
var DefaultSensitiveFields = []string{"dsn", "url", "password", "secret_key", "access_key", "token"}

// Options configures the logger behavior.
type Options struct {
	Format           Format         // Output format: logfmt or json
	Level            slog.Level     // Minimum log level
	LevelVar         *slog.LevelVar // Overrides Level when set, for levels changed at runtime
	Color            bool           // Enable colorization for level field only
	Writer           io.Writer      // Output writer (default: os.Stderr)
	PayloadMaxBytes  int            // Maximum bytes to log for large payloads (0 = unlimited)
	SensitiveFields  []string       // Field names to mask
	DisableTimestamp bool           // Disable timestamp in output
}

// Option configures logger behavior.
type Option func(*Options)

// Logger implements the core/log.Logger interface.
type Logger struct {
	handler *internal.Handler
	attrs   []slog.Attr
}

// New creates a new Logger with the given options.
func New(opts ...Option) log.Logger {
	return newLogger(opts...)
}

func newLogger(opts ...Option) *Logger {
	options := Options{
		Format:          FormatLogfmt,
		Level:           slog.LevelInfo,
		Writer:          os.Stderr,
		SensitiveFields: DefaultSensitiveFields,
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Writer == nil {
		options.Writer = os.Stderr
	}

	var level slog.Leveler = options.Level
	if options.LevelVar != nil {
		level = options.LevelVar
	}
	handler := internal.NewHandler(internal.Options{
		Format:           string(options.Format),
		Level:            level,
		Color:            options.Color,
		PayloadMaxBytes:  options.PayloadMaxBytes,
		SensitiveFields:  options.SensitiveFields,
		DisableTimestamp: options.DisableTimestamp,
	}, options.Writer)

	return &Logger{handler: handler}
}

// NewSlog returns a *slog.Logger sharing the same encoder, for libraries that want one.
func NewSlog(opts ...Option) *slog.Logger {
	return slog.New(newLogger(opts...).handler)
}

// WithFormat sets the output format.
func WithFormat(format Format) Option {
	return func(o *Options) {
		o.Format = format
	}
}

// WithLevel sets the minimum log level.
func WithLevel(level slog.Level) Option {
	return func(o *Options) {
		o.Level = level
	}
}

// WithLevelVar reads the minimum level from v on every record, so changing v
// changes the level of every logger derived from this one.
func WithLevelVar(v *slog.LevelVar) Option {
	return func(o *Options) {
		o.LevelVar = v
	}
}

// WithColor enables colorization for the level field only.
func WithColor(enabled bool) Option {
	return func(o *Options) {
		o.Color = enabled
	}
}

// WithWriter sets the output writer.
func WithWriter(w io.Writer) Option {
	return func(o *Options) {
		o.Writer = w
	}
}

// WithPayloadLimit sets the maximum bytes to log for large payloads.
func WithPayloadLimit(maxBytes int) Option {
	return func(o *Options) {
		o.PayloadMaxBytes = maxBytes
	}
}

// WithSensitiveFields replaces the masked field names.
func WithSensitiveFields(fields ...string) Option {
	return func(o *Options) {
		o.SensitiveFields = fields
	}
}

// WithoutTimestamp drops the time field, for containers that stamp lines themselves.
func WithoutTimestamp() Option {
	return func(o *Options) {
		o.DisableTimestamp = true
	}
}

// ParseLevel converts a configuration string into a slog.Level.
// Unknown values fall back to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// With returns a new Logger with the given key-value pairs attached.
func (l *Logger) With(kv ...any) log.Logger {
	attrs := internal.KVToAttrs(kv)
	newAttrs := make([]slog.Attr, 0, len(l.attrs)+len(attrs))
	newAttrs = append(newAttrs, l.attrs...)
	newAttrs = append(newAttrs, attrs...)

	return &Logger{
		handler: l.handler,
		attrs:   newAttrs,
	}
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, kv ...any) {
	l.log(slog.LevelDebug, msg, internal.KVToAttrs(kv))
}

// Info logs an informational message.
func (l *Logger) Info(msg string, kv ...any) {
	l.log(slog.LevelInfo, msg, internal.KVToAttrs(kv))
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, kv ...any) {
	l.log(slog.LevelWarn, msg, internal.KVToAttrs(kv))
}

// Error logs an error message. A nil err is omitted.
func (l *Logger) Error(err error, msg string, kv ...any) {
	attrs := internal.KVToAttrs(kv)
	if err != nil {
		attrs = append([]slog.Attr{slog.Any("error", err)}, attrs...)
	}
	l.log(slog.LevelError, msg, attrs)
}

func (l *Logger) log(level slog.Level, msg string, attrs []slog.Attr) {
	all := make([]slog.Attr, 0, len(l.attrs)+len(attrs))
	all = append(all, l.attrs...)
	all = append(all, attrs...)
	_ = l.handler.LogRecord(level, msg, all)
}

// FromContext attaches trace_id and span_id from the active span in ctx.
// base is returned unchanged when ctx carries no valid span.
func FromContext(ctx context.Context, base log.Logger) log.Logger {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return base
	}
	return base.With(
		log.Str("trace_id", sc.TraceID().String()),
		log.Str("span_id", sc.SpanID().String()),
	)
}
