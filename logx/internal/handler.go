// Package internal provides the record encoder behind logx.
package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Redacted replaces the value of every sensitive field.
const Redacted = "***REDACTED***"

// Options configures the encoder.
type Options struct {
	Format           string       // logfmt or json
	Level            slog.Leveler // Minimum log level; nil means info
	Color            bool         // Colorize the level value (logfmt only)
	PayloadMaxBytes  int          // Truncate long strings (0 = unlimited)
	SensitiveFields  []string     // Keys whose values are redacted, matched case-insensitively
	DisableTimestamp bool         // Omit the time field
}

// Handler is a slog.Handler that emits one sorted line per record.
type Handler struct {
	opts   Options
	mu     *sync.Mutex
	writer io.Writer
	attrs  []slog.Attr
	group  string
}

// NewHandler creates a Handler writing to writer.
func NewHandler(opts Options, writer io.Writer) *Handler {
	return &Handler{
		opts:   opts,
		mu:     &sync.Mutex{},
		writer: writer,
	}
}

// Enabled reports whether the handler handles records at the given level.
func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.minLevel()
}

func (h *Handler) minLevel() slog.Level {
	if h.opts.Level == nil {
		return slog.LevelInfo
	}
	return h.opts.Level.Level()
}

// Handle implements slog.Handler.
func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	attrs := make([]slog.Attr, 0, r.NumAttrs())
	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, a)
		return true
	})
	return h.LogRecord(r.Level, r.Message, attrs)
}

// LogRecord writes a record built outside of slog.
func (h *Handler) LogRecord(level slog.Level, msg string, attrs []slog.Attr) error {
	if level < h.minLevel() {
		return nil
	}

	all := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	all = append(all, h.attrs...)
	for _, a := range attrs {
		if h.group != "" {
			a.Key = h.group + "." + a.Key
		}
		all = append(all, a)
	}
	all = SortAttrs(all)

	var line string
	if h.opts.Format == "json" {
		line = h.encodeJSON(level, msg, all)
	} else {
		line = h.encodeLogfmt(level, msg, all)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.writer, line)
	return err
}

func (h *Handler) encodeLogfmt(level slog.Level, msg string, attrs []slog.Attr) string {
	var buf strings.Builder

	if !h.opts.DisableTimestamp {
		buf.WriteString("time=")
		buf.WriteString(time.Now().UTC().Format(time.RFC3339))
		buf.WriteString(" ")
	}

	levelStr := LevelString(level)
	buf.WriteString("level=")
	if h.opts.Color {
		buf.WriteString(ColorizeLevel(levelStr))
	} else {
		buf.WriteString(levelStr)
	}

	buf.WriteString(" msg=")
	buf.WriteString(strconv.Quote(msg))

	for _, attr := range attrs {
		buf.WriteString(" ")
		buf.WriteString(attr.Key)
		buf.WriteString("=")
		buf.WriteString(FormatValue(attr.Key, attr.Value, h.opts))
	}

	buf.WriteString("\n")
	return buf.String()
}

func (h *Handler) encodeJSON(level slog.Level, msg string, attrs []slog.Attr) string {
	var buf strings.Builder
	buf.WriteString("{")
	if !h.opts.DisableTimestamp {
		fmt.Fprintf(&buf, "%q:%q,", "time", time.Now().UTC().Format(time.RFC3339Nano))
	}
	fmt.Fprintf(&buf, "%q:%q,%q:%s", "level", LevelString(level), "msg", jsonString(msg))
	for _, attr := range attrs {
		buf.WriteString(",")
		buf.WriteString(jsonString(attr.Key))
		buf.WriteString(":")
		buf.WriteString(jsonValue(attr.Key, attr.Value, h.opts))
	}
	buf.WriteString("}\n")
	return buf.String()
}

// WithAttrs returns a new Handler with the given attributes.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := append([]slog.Attr{}, h.attrs...)
	for _, a := range attrs {
		if h.group != "" {
			a.Key = h.group + "." + a.Key
		}
		newAttrs = append(newAttrs, a)
	}

	return &Handler{
		opts:   h.opts,
		mu:     h.mu,
		writer: h.writer,
		attrs:  newAttrs,
		group:  h.group,
	}
}

// WithGroup returns a new Handler that prefixes subsequent keys with name.
func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	group := name
	if h.group != "" {
		group = h.group + "." + name
	}
	return &Handler{
		opts:   h.opts,
		mu:     h.mu,
		writer: h.writer,
		attrs:  h.attrs,
		group:  group,
	}
}

// KVToAttrs converts key-value pairs to slog.Attr slice.
// Two-element []any items produced by core/log helpers are flattened first.
// A trailing key without a value is dropped.
func KVToAttrs(kv []any) []slog.Attr {
	flat := make([]any, 0, len(kv))
	for _, item := range kv {
		if pair, ok := item.([]any); ok && len(pair) == 2 {
			flat = append(flat, pair[0], pair[1])
			continue
		}
		if attr, ok := item.(slog.Attr); ok {
			flat = append(flat, attr.Key, attr.Value.Any())
			continue
		}
		flat = append(flat, item)
	}

	attrs := make([]slog.Attr, 0, len(flat)/2)
	for i := 0; i+1 < len(flat); i += 2 {
		key, ok := flat[i].(string)
		if !ok {
			key = fmt.Sprint(flat[i])
		}
		attrs = append(attrs, slog.Any(key, flat[i+1]))
	}
	return attrs
}

// SortAttrs returns a copy of attrs sorted by key. Equal keys keep their order.
func SortAttrs(attrs []slog.Attr) []slog.Attr {
	sorted := make([]slog.Attr, len(attrs))
	copy(sorted, attrs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Key < sorted[j].Key
	})
	return sorted
}

// IsSensitive reports whether key names a redacted field.
func IsSensitive(key string, fields []string) bool {
	leaf := key
	if idx := strings.LastIndexByte(key, '.'); idx >= 0 {
		leaf = key[idx+1:]
	}
	for _, field := range fields {
		if strings.EqualFold(leaf, field) {
			return true
		}
	}
	return false
}

// FormatValue formats a slog.Value for logfmt output.
func FormatValue(key string, v slog.Value, opts Options) string {
	if IsSensitive(key, opts.SensitiveFields) {
		return strconv.Quote(Redacted)
	}

	v = v.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return strconv.Quote(truncate(v.String(), opts.PayloadMaxBytes))
	case slog.KindInt64:
		return strconv.FormatInt(v.Int64(), 10)
	case slog.KindUint64:
		return strconv.FormatUint(v.Uint64(), 10)
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindBool:
		return strconv.FormatBool(v.Bool())
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return strconv.Quote(v.Time().UTC().Format(time.RFC3339))
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return strconv.Quote(truncate(err.Error(), opts.PayloadMaxBytes))
		}
		return strconv.Quote(truncate(fmt.Sprint(v.Any()), opts.PayloadMaxBytes))
	default:
		return strconv.Quote(truncate(v.String(), opts.PayloadMaxBytes))
	}
}

func jsonValue(key string, v slog.Value, opts Options) string {
	if IsSensitive(key, opts.SensitiveFields) {
		return jsonString(Redacted)
	}

	v = v.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return jsonString(truncate(v.String(), opts.PayloadMaxBytes))
	case slog.KindInt64:
		return strconv.FormatInt(v.Int64(), 10)
	case slog.KindUint64:
		return strconv.FormatUint(v.Uint64(), 10)
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindBool:
		return strconv.FormatBool(v.Bool())
	case slog.KindDuration:
		return jsonString(v.Duration().String())
	case slog.KindTime:
		return jsonString(v.Time().UTC().Format(time.RFC3339Nano))
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return jsonString(err.Error())
		}
		raw, err := json.Marshal(v.Any())
		if err != nil {
			return jsonString(fmt.Sprint(v.Any()))
		}
		return string(raw)
	default:
		return jsonString(v.String())
	}
}

func jsonString(s string) string {
	raw, _ := json.Marshal(s)
	return string(raw)
}

func truncate(s string, limit int) string {
	if limit > 0 && len(s) > limit {
		return fmt.Sprintf("%s...(truncated, %d bytes)", s[:limit], len(s))
	}
	return s
}

// LevelString returns the string representation of a log level.
func LevelString(level slog.Level) string {
	switch level {
	case slog.LevelDebug:
		return "DEBUG"
	case slog.LevelInfo:
		return "INFO"
	case slog.LevelWarn:
		return "WARN"
	case slog.LevelError:
		return "ERROR"
	default:
		return fmt.Sprintf("LEVEL(%d)", level)
	}
}

// ColorizeLevel wraps the level value in an ANSI color.
func ColorizeLevel(level string) string {
	const (
		reset   = "\033[0m"
		red     = "\033[31m"
		yellow  = "\033[33m"
		cyan    = "\033[36m"
		magenta = "\033[35m"
	)

	switch level {
	case "DEBUG":
		return magenta + level + reset
	case "INFO":
		return cyan + level + reset
	case "WARN":
		return yellow + level + reset
	case "ERROR":
		return red + level + reset
	default:
		return level
	}
}
