package internal

import (
	"slices"
	"strings"
	"testing"
	"time"
)

type retrySection struct {
	Enabled     bool          `env:"RETRY_ENABLED" default:"true"`
	MaxAttempts int           `env:"RETRY_MAX_ATTEMPTS" default:"3"`
	MaxBackoff  time.Duration `env:"RETRY_MAX_BACKOFF" default:"5s"`
}

type dbSection struct {
	DSN      string `env:"DSN"`
	MaxConns int32  `env:"MAX_CONNS" default:"10"`
	Retry    retrySection
}

type sectionedConfig struct {
	Name     string       `env:"NAME" default:"svc"`
	Tags     []string     `env:"TAGS"`
	Primary  *dbSection   `envPrefix:"PRIMARY_"`
	Replica  *dbSection   `envPrefix:"REPLICA_"`
	Metrics  retrySection `envPrefix:"METRICS_"`
	internal string       `env:"INTERNAL"`
}

func TestBindToStruct_ScalarTypes(t *testing.T) {
	type Config struct {
		S   string        `env:"S"`
		I   int           `env:"I"`
		I8  int8          `env:"I8"`
		I64 int64         `env:"I64"`
		U   uint          `env:"U"`
		U16 uint16        `env:"U16"`
		B   bool          `env:"B"`
		F32 float32       `env:"F32"`
		F64 float64       `env:"F64"`
		D   time.Duration `env:"D"`
		DS  time.Duration `env:"DS"`
	}

	snapshot := map[string]string{
		"S":   "value",
		"I":   "-42",
		"I8":  "127",
		"I64": "9223372036854775807",
		"U":   "100",
		"U16": "65535",
		"B":   "true",
		"F32": "1.5",
		"F64": "3.14",
		"D":   "1m30s",
		"DS":  "0.25",
	}

	var cfg Config
	if err := BindToStruct(snapshot, &cfg); err != nil {
		t.Fatalf("BindToStruct() error = %v", err)
	}

	want := Config{
		S: "value", I: -42, I8: 127, I64: 9223372036854775807,
		U: 100, U16: 65535, B: true, F32: 1.5, F64: 3.14,
		D: 90 * time.Second, DS: 250 * time.Millisecond,
	}
	if cfg != want {
		t.Errorf("BindToStruct() = %+v, want %+v", cfg, want)
	}
}

func TestBindToStruct_Defaults(t *testing.T) {
	type Config struct {
		Host    string        `env:"HOST" default:"localhost"`
		Port    int           `env:"PORT" default:"8080"`
		Timeout time.Duration `env:"TIMEOUT" default:"2s"`
		Empty   string        `env:"EMPTY"`
	}

	var cfg Config
	if err := BindToStruct(map[string]string{"PORT": "9090"}, &cfg); err != nil {
		t.Fatalf("BindToStruct() error = %v", err)
	}
	if cfg.Host != "localhost" {
		t.Errorf("Host = %q, want localhost", cfg.Host)
	}
	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	if cfg.Timeout != 2*time.Second {
		t.Errorf("Timeout = %v, want 2s", cfg.Timeout)
	}
	if cfg.Empty != "" {
		t.Errorf("Empty = %q, want empty", cfg.Empty)
	}
}

func TestBindToStruct_Sections(t *testing.T) {
	snapshot := map[string]string{
		"PRIMARY_DSN":                "postgres://primary",
		"PRIMARY_RETRY_MAX_ATTEMPTS": "7",
		"METRICS_RETRY_ENABLED":      "false",
		"TAGS":                       "a, b,,c",
		"INTERNAL":                   "ignored",
	}

	var cfg sectionedConfig
	if err := BindToStruct(snapshot, &cfg); err != nil {
		t.Fatalf("BindToStruct() error = %v", err)
	}

	if cfg.Primary == nil {
		t.Fatal("Primary section should be allocated")
	}
	if cfg.Replica != nil {
		t.Errorf("Replica section should stay nil, got %+v", cfg.Replica)
	}
	if cfg.Primary.DSN != "postgres://primary" || cfg.Primary.MaxConns != 10 {
		t.Errorf("Primary = %+v", cfg.Primary)
	}
	if cfg.Primary.Retry.MaxAttempts != 7 || !cfg.Primary.Retry.Enabled {
		t.Errorf("Primary.Retry = %+v", cfg.Primary.Retry)
	}
	if cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled should be false")
	}
	if cfg.Metrics.MaxBackoff != 5*time.Second {
		t.Errorf("Metrics.MaxBackoff = %v, want 5s", cfg.Metrics.MaxBackoff)
	}
	if want := []string{"a", "b", "c"}; !slices.Equal(cfg.Tags, want) {
		t.Errorf("Tags = %v, want %v", cfg.Tags, want)
	}
	if cfg.internal != "" {
		t.Error("unexported fields must not be bound")
	}
}

func TestBindToStruct_SectionPresenceFromNestedKey(t *testing.T) {
	var cfg sectionedConfig
	if err := BindToStruct(map[string]string{"REPLICA_RETRY_ENABLED": "true"}, &cfg); err != nil {
		t.Fatalf("BindToStruct() error = %v", err)
	}
	if cfg.Replica == nil {
		t.Fatal("a nested retry key should allocate the Replica section")
	}
	if cfg.Replica.DSN != "" {
		t.Errorf("Replica.DSN = %q, want empty", cfg.Replica.DSN)
	}
}

func TestBindToStruct_ResetsAbsentSection(t *testing.T) {
	cfg := sectionedConfig{Replica: &dbSection{DSN: "stale"}}
	if err := BindToStruct(map[string]string{}, &cfg); err != nil {
		t.Fatalf("BindToStruct() error = %v", err)
	}
	if cfg.Replica != nil {
		t.Error("a section with no keys should be reset to nil on rebind")
	}
}

func TestBindToStruct_Errors(t *testing.T) {
	type ints struct {
		V int `env:"V"`
	}
	type uints struct {
		V uint8 `env:"V"`
	}
	type bools struct {
		V bool `env:"V"`
	}
	type floats struct {
		V float64 `env:"V"`
	}
	type durations struct {
		V time.Duration `env:"V"`
	}
	type unsupported struct {
		V map[string]string `env:"V"`
	}
	type intSlice struct {
		V []int `env:"V"`
	}
	type nested struct {
		Inner ints
	}

	tests := []struct {
		name   string
		target any
		value  string
	}{
		{"int", &ints{}, "abc"},
		{"uint overflow", &uints{}, "300"},
		{"bool", &bools{}, "maybe"},
		{"float", &floats{}, "pi"},
		{"duration", &durations{}, "soon"},
		{"negative duration", &durations{}, "-3"},
		{"map", &unsupported{}, "a=b"},
		{"int slice", &intSlice{}, "1,2"},
		{"nested", &nested{}, "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := BindToStruct(map[string]string{"V": tt.value}, tt.target); err == nil {
				t.Error("BindToStruct() should fail")
			}
		})
	}
}

func TestBindToStruct_InvalidTarget(t *testing.T) {
	var nilPtr *sectionedConfig
	value := 1
	for _, target := range []any{nil, sectionedConfig{}, nilPtr, &value} {
		if err := BindToStruct(map[string]string{}, target); err == nil {
			t.Errorf("BindToStruct(%T) should fail", target)
		}
	}
}

func TestKeys(t *testing.T) {
	keys := Keys(&sectionedConfig{})
	want := []string{
		"NAME",
		"TAGS",
		"PRIMARY_DSN",
		"PRIMARY_MAX_CONNS",
		"PRIMARY_RETRY_ENABLED",
		"REPLICA_RETRY_MAX_BACKOFF",
		"METRICS_RETRY_MAX_ATTEMPTS",
	}
	for _, k := range want {
		if !slices.Contains(keys, k) {
			t.Errorf("Keys() missing %s in %s", k, strings.Join(keys, ","))
		}
	}
	if slices.Contains(keys, "INTERNAL") {
		t.Error("Keys() should skip unexported fields")
	}
	if Keys(42) != nil {
		t.Error("Keys() of a non-struct should be nil")
	}
}
