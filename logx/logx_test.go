package logx

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/trace"

	"go.eggybyte.com/orchid/core/log"
)

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	logger := New(WithWriter(&buf), WithoutTimestamp())

	logger.Info("test message", "key", "value")

	output := buf.String()
	if !strings.HasPrefix(output, "level=INFO") {
		t.Errorf("expected line to start with level=INFO, got: %s", output)
	}
	if !strings.Contains(output, `msg="test message"`) {
		t.Errorf("expected msg in output, got: %s", output)
	}
	if !strings.Contains(output, `key="value"`) {
		t.Errorf("expected key=\"value\" in output, got: %s", output)
	}
}

func TestFieldSorting(t *testing.T) {
	var buf bytes.Buffer
	logger := New(WithWriter(&buf), WithoutTimestamp())

	logger.Info("test", "zebra", "z", "alpha", "a", "beta", "b")

	output := buf.String()
	alphaPos := strings.Index(output, `alpha="a"`)
	betaPos := strings.Index(output, `beta="b"`)
	zebraPos := strings.Index(output, `zebra="z"`)

	if alphaPos == -1 || betaPos == -1 || zebraPos == -1 {
		t.Fatalf("missing fields in output: %s", output)
	}
	if alphaPos > betaPos || betaPos > zebraPos {
		t.Errorf("fields not sorted: %s", output)
	}
}

func TestHelperPairs(t *testing.T) {
	var buf bytes.Buffer
	logger := New(WithWriter(&buf), WithoutTimestamp())

	logger.Info("factory finished", log.Str("resource", "cache"), log.Int("attempt", 2), log.Bool("ok", true))

	output := buf.String()
	for _, want := range []string{`resource="cache"`, "attempt=2", "ok=true"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %s in %s", want, output)
		}
	}
}

func TestDefaultSensitiveFields(t *testing.T) {
	var buf bytes.Buffer
	logger := New(WithWriter(&buf), WithoutTimestamp())

	logger.Info("connecting", log.Str("dsn", "postgres://user:pw@db/app"), log.Str("secret_key", "abc"))

	output := buf.String()
	if strings.Contains(output, "pw@db") || strings.Contains(output, `"abc"`) {
		t.Errorf("credentials leaked: %s", output)
	}
	if strings.Count(output, "***REDACTED***") != 2 {
		t.Errorf("expected two redacted values: %s", output)
	}
}

func TestWithSensitiveFieldsOverrides(t *testing.T) {
	var buf bytes.Buffer
	logger := New(WithWriter(&buf), WithoutTimestamp(), WithSensitiveFields("token"))

	logger.Info("x", "dsn", "visible", "token", "hidden")

	output := buf.String()
	if !strings.Contains(output, `dsn="visible"`) {
		t.Errorf("dsn should not be masked after override: %s", output)
	}
	if strings.Contains(output, "hidden") {
		t.Errorf("token should be masked: %s", output)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(WithWriter(&buf), WithLevel(slog.LevelWarn))

	logger.Debug("debug")
	logger.Info("info")
	logger.Warn("warn")

	output := buf.String()
	if strings.Contains(output, "debug") || strings.Contains(output, `msg="info"`) {
		t.Errorf("messages below WARN leaked: %s", output)
	}
	if !strings.Contains(output, `msg="warn"`) {
		t.Errorf("expected warn message: %s", output)
	}
}

func TestLevelVar(t *testing.T) {
	var buf bytes.Buffer
	var level slog.LevelVar
	level.Set(slog.LevelWarn)
	logger := New(WithWriter(&buf), WithLevelVar(&level)).With("component", "reload")

	logger.Info("before")
	level.Set(slog.LevelDebug)
	logger.Debug("after")

	output := buf.String()
	if strings.Contains(output, `msg="before"`) {
		t.Errorf("info logged while level was warn: %s", output)
	}
	if !strings.Contains(output, `msg="after"`) {
		t.Errorf("debug not logged after lowering the level: %s", output)
	}
}

func TestErrorField(t *testing.T) {
	var buf bytes.Buffer
	logger := New(WithWriter(&buf), WithoutTimestamp())

	logger.Error(errors.New("connection refused"), "startup failed", log.Str("resource", "queue"))
	logger.Error(nil, "no cause")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], `error="connection refused"`) {
		t.Errorf("expected error field, got %s", lines[0])
	}
	if strings.Contains(lines[1], "error=") {
		t.Errorf("nil error should be omitted, got %s", lines[1])
	}
}

func TestWith(t *testing.T) {
	var buf bytes.Buffer
	base := New(WithWriter(&buf), WithoutTimestamp())
	child := base.With("component", "runtime")

	child.Info("child")
	base.Info("base")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if !strings.Contains(lines[0], `component="runtime"`) {
		t.Errorf("child should carry component: %s", lines[0])
	}
	if strings.Contains(lines[1], "component") {
		t.Errorf("base must not inherit child fields: %s", lines[1])
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(WithWriter(&buf), WithFormat(FormatJSON), WithoutTimestamp())

	logger.Info("ready", log.Int("resources", 3))

	want := `{"level":"INFO","msg":"ready","resources":3}` + "\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestNewSlog(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlog(WithWriter(&buf), WithoutTimestamp())

	logger.Warn("slow query", "elapsed_ms", 250)

	if !strings.Contains(buf.String(), `level=WARN msg="slow query" elapsed_ms=250`) {
		t.Errorf("unexpected output: %s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		" error ": slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	base := New(WithWriter(&buf), WithoutTimestamp())

	if got := FromContext(context.Background(), base); got != base {
		t.Error("FromContext without a span should return base")
	}

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	FromContext(ctx, base).Info("traced")

	output := buf.String()
	if !strings.Contains(output, `trace_id="4bf92f3577b34da6a3ce929d0e0e4736"`) {
		t.Errorf("missing trace_id: %s", output)
	}
	if !strings.Contains(output, `span_id="00f067aa0ba902b7"`) {
		t.Errorf("missing span_id: %s", output)
	}
}
