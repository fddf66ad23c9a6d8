package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

func newTestHandler(buf *bytes.Buffer, opts Options) *Handler {
	opts.DisableTimestamp = true
	return NewHandler(opts, buf)
}

func TestHandler_Enabled(t *testing.T) {
	h := NewHandler(Options{Level: slog.LevelWarn}, &bytes.Buffer{})

	tests := []struct {
		level    slog.Level
		expected bool
	}{
		{slog.LevelDebug, false},
		{slog.LevelInfo, false},
		{slog.LevelWarn, true},
		{slog.LevelError, true},
	}

	for _, tt := range tests {
		if got := h.Enabled(context.Background(), tt.level); got != tt.expected {
			t.Errorf("Enabled(%v) = %v, want %v", tt.level, got, tt.expected)
		}
	}
}

func TestHandler_Handle(t *testing.T) {
	var buf bytes.Buffer
	h := newTestHandler(&buf, Options{Level: slog.LevelInfo})

	r := slog.NewRecord(time.Now(), slog.LevelInfo, "resource ready", 0)
	r.AddAttrs(slog.String("resource", "cache"), slog.Int("attempt", 2))
	if err := h.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}

	want := `level=INFO msg="resource ready" attempt=2 resource="cache"` + "\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestHandler_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	h := newTestHandler(&buf, Options{Level: slog.LevelWarn})

	_ = h.LogRecord(slog.LevelInfo, "skipped", nil)
	if buf.Len() != 0 {
		t.Fatalf("expected no output below level, got %q", buf.String())
	}

	_ = h.LogRecord(slog.LevelError, "kept", nil)
	if !strings.Contains(buf.String(), "level=ERROR") {
		t.Errorf("expected ERROR line, got %q", buf.String())
	}
}

func TestHandler_WithAttrsAndGroup(t *testing.T) {
	var buf bytes.Buffer
	base := newTestHandler(&buf, Options{})

	h := base.WithAttrs([]slog.Attr{slog.String("component", "runtime")}).
		WithGroup("db").
		WithAttrs([]slog.Attr{slog.String("name", "primary")})

	r := slog.NewRecord(time.Now(), slog.LevelInfo, "opened", 0)
	r.AddAttrs(slog.Int("pool", 4))
	if err := h.Handle(context.Background(), r); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	for _, want := range []string{`component="runtime"`, `db.name="primary"`, `db.pool=4`} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %s in %q", want, out)
		}
	}
}

func TestHandler_JSON(t *testing.T) {
	var buf bytes.Buffer
	h := newTestHandler(&buf, Options{Format: "json", SensitiveFields: []string{"dsn"}})

	err := h.LogRecord(slog.LevelError, "startup failed", []slog.Attr{
		slog.Any("error", errors.New("refused")),
		slog.String("dsn", "postgres://u:p@h/db"),
		slog.Duration("elapsed", 1500*time.Millisecond),
		slog.Bool("required", true),
	})
	if err != nil {
		t.Fatal(err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if decoded["level"] != "ERROR" || decoded["msg"] != "startup failed" {
		t.Errorf("unexpected header fields: %v", decoded)
	}
	if decoded["error"] != "refused" {
		t.Errorf("error = %v, want refused", decoded["error"])
	}
	if decoded["dsn"] != Redacted {
		t.Errorf("dsn should be redacted, got %v", decoded["dsn"])
	}
	if decoded["elapsed"] != "1.5s" {
		t.Errorf("elapsed = %v, want 1.5s", decoded["elapsed"])
	}
	if decoded["required"] != true {
		t.Errorf("required = %v, want true", decoded["required"])
	}
}

func TestHandler_Timestamp(t *testing.T) {
	var buf bytes.Buffer
	h := NewHandler(Options{}, &buf)
	_ = h.LogRecord(slog.LevelInfo, "x", nil)
	if !strings.HasPrefix(buf.String(), "time=") {
		t.Errorf("expected time prefix, got %q", buf.String())
	}
}

func TestHandler_Color(t *testing.T) {
	var buf bytes.Buffer
	h := newTestHandler(&buf, Options{Color: true})
	_ = h.LogRecord(slog.LevelInfo, "x", nil)
	if !strings.Contains(buf.String(), "\033[36mINFO\033[0m") {
		t.Errorf("expected colorized level, got %q", buf.String())
	}
}

func TestKVToAttrs(t *testing.T) {
	tests := []struct {
		name string
		kv   []any
		keys []string
	}{
		{"plain pairs", []any{"a", 1, "b", "x"}, []string{"a", "b"}},
		{"helper pairs", []any{[]any{"a", 1}, []any{"b", 2}}, []string{"a", "b"}},
		{"mixed", []any{[]any{"a", 1}, "b", 2}, []string{"a", "b"}},
		{"slog attr", []any{slog.String("a", "v")}, nil},
		{"dangling key", []any{"a", 1, "b"}, []string{"a"}},
		{"non-string key", []any{7, "v"}, []string{"7"}},
		{"empty", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attrs := KVToAttrs(tt.kv)
			if tt.name == "slog attr" {
				if len(attrs) != 1 || attrs[0].Key != "a" {
					t.Fatalf("unexpected attrs %v", attrs)
				}
				return
			}
			if len(attrs) != len(tt.keys) {
				t.Fatalf("got %d attrs, want %d", len(attrs), len(tt.keys))
			}
			for i, key := range tt.keys {
				if attrs[i].Key != key {
					t.Errorf("attr %d key = %q, want %q", i, attrs[i].Key, key)
				}
			}
		})
	}
}

func TestSortAttrs(t *testing.T) {
	in := []slog.Attr{slog.Int("z", 1), slog.Int("a", 2), slog.Int("m", 3)}
	out := SortAttrs(in)
	if out[0].Key != "a" || out[1].Key != "m" || out[2].Key != "z" {
		t.Errorf("unexpected order: %v", out)
	}
	if in[0].Key != "z" {
		t.Error("SortAttrs must not modify its input")
	}
}

func TestFormatValue(t *testing.T) {
	opts := Options{SensitiveFields: []string{"secret_key"}, PayloadMaxBytes: 5}

	tests := []struct {
		name     string
		key      string
		value    slog.Value
		expected string
	}{
		{"string", "k", slog.StringValue("abc"), `"abc"`},
		{"truncated", "k", slog.StringValue("abcdefgh"), `"abcde...(truncated, 8 bytes)"`},
		{"int", "k", slog.IntValue(-3), "-3"},
		{"uint", "k", slog.Uint64Value(3), "3"},
		{"float", "k", slog.Float64Value(0.25), "0.25"},
		{"whole float", "k", slog.Float64Value(2), "2"},
		{"bool", "k", slog.BoolValue(false), "false"},
		{"duration", "k", slog.DurationValue(250 * time.Millisecond), "250ms"},
		{"time", "k", slog.TimeValue(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)), `"2024-01-02T03:04:05Z"`},
		{"error", "k", slog.AnyValue(errors.New("bad")), `"bad"`},
		{"sensitive", "secret_key", slog.StringValue("s3cr3t"), `"***REDACTED***"`},
		{"sensitive case-insensitive", "SECRET_KEY", slog.StringValue("s3cr3t"), `"***REDACTED***"`},
		{"sensitive grouped", "minio.secret_key", slog.StringValue("s3cr3t"), `"***REDACTED***"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatValue(tt.key, tt.value, opts); got != tt.expected {
				t.Errorf("FormatValue = %s, want %s", got, tt.expected)
			}
		})
	}
}

func TestLevelString(t *testing.T) {
	tests := map[slog.Level]string{
		slog.LevelDebug: "DEBUG",
		slog.LevelInfo:  "INFO",
		slog.LevelWarn:  "WARN",
		slog.LevelError: "ERROR",
		slog.Level(2):   "LEVEL(2)",
	}
	for level, want := range tests {
		if got := LevelString(level); got != want {
			t.Errorf("LevelString(%v) = %q, want %q", level, got, want)
		}
	}
}

func TestHandler_Concurrency(t *testing.T) {
	var buf bytes.Buffer
	h := newTestHandler(&buf, Options{})
	child := h.WithAttrs([]slog.Attr{slog.String("c", "1")}).(*Handler)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = h.LogRecord(slog.LevelInfo, "parent", nil)
		}()
		go func() {
			defer wg.Done()
			_ = child.LogRecord(slog.LevelInfo, "child", nil)
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 100 {
		t.Fatalf("expected 100 lines, got %d", len(lines))
	}
	for _, line := range lines {
		if !strings.HasPrefix(line, "level=INFO") {
			t.Fatalf("interleaved line: %q", line)
		}
	}
}
