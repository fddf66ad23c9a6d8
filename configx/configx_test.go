package configx

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"go.eggybyte.com/orchid/core/errors"
	"go.eggybyte.com/orchid/core/log"
)

type testLogger struct {
	logs []string
}

func (l *testLogger) With(kv ...any) log.Logger              { return l }
func (l *testLogger) Debug(msg string, kv ...any)            { l.logs = append(l.logs, "DEBUG: "+msg) }
func (l *testLogger) Info(msg string, kv ...any)             { l.logs = append(l.logs, "INFO: "+msg) }
func (l *testLogger) Warn(msg string, kv ...any)             { l.logs = append(l.logs, "WARN: "+msg) }
func (l *testLogger) Error(err error, msg string, kv ...any) { l.logs = append(l.logs, "ERROR: "+msg) }

func TestLoad_Defaults(t *testing.T) {
	var cfg AppSettings
	err := Load(context.Background(), &cfg, WithSources(NewMapSource(map[string]string{})))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ServiceName != "orchid" {
		t.Errorf("ServiceName = %q, want orchid", cfg.ServiceName)
	}
	if cfg.HealthTimeout != 5*time.Second {
		t.Errorf("HealthTimeout = %v, want 5s", cfg.HealthTimeout)
	}
	if !cfg.Observability.Enabled {
		t.Error("Observability.Enabled should default to true")
	}
	if cfg.Observability.Retry.MaxAttempts != 3 {
		t.Errorf("Observability.Retry.MaxAttempts = %d, want 3", cfg.Observability.Retry.MaxAttempts)
	}
	if got := cfg.Resources.Configured(); len(got) != 0 {
		t.Errorf("Configured() = %v, want none", got)
	}
}

func TestLoad_ResourceSections(t *testing.T) {
	src := NewMapSource(map[string]string{
		"MYSQL_DSN":                 "user:pass@tcp(localhost:3306)/app",
		"MYSQL_RETRY_MAX_ATTEMPTS":  "5",
		"MYSQL_RETRY_MAX_BACKOFF":   "2.5",
		"REDIS_URL":                 "redis://localhost:6379/0",
		"REDIS_KEY_PREFIX":          "orders",
		"REQUIRED_RESOURCES":        "mysql, redis",
		"OBSERVABILITY_SAMPLE_RATE": "0.25",
	})

	var cfg AppSettings
	if err := Load(context.Background(), &cfg, WithSources(src)); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	r := cfg.Resources
	if r.MySQL == nil || r.Redis == nil {
		t.Fatalf("MySQL and Redis sections should be set, got %v", r.Configured())
	}
	if r.SQLite != nil || r.Postgres != nil || r.MinIO != nil || r.R2 != nil || r.S3 != nil {
		t.Errorf("unconfigured sections should stay nil, got %v", r.Configured())
	}
	if want := []string{"MySQL", "Redis"}; !slices.Equal(r.Configured(), want) {
		t.Errorf("Configured() = %v, want %v", r.Configured(), want)
	}

	if r.MySQL.MaxOpenConns != 10 {
		t.Errorf("MySQL.MaxOpenConns = %d, want default 10", r.MySQL.MaxOpenConns)
	}
	if r.MySQL.Retry.MaxAttempts != 5 {
		t.Errorf("MySQL.Retry.MaxAttempts = %d, want 5", r.MySQL.Retry.MaxAttempts)
	}
	if r.MySQL.Retry.MaxBackoff != 2500*time.Millisecond {
		t.Errorf("MySQL.Retry.MaxBackoff = %v, want 2.5s", r.MySQL.Retry.MaxBackoff)
	}
	if r.Redis.KeyPrefix != "orders" {
		t.Errorf("Redis.KeyPrefix = %q, want orders", r.Redis.KeyPrefix)
	}
	if want := []string{"mysql", "redis"}; !slices.Equal(cfg.Required, want) {
		t.Errorf("Required = %v, want %v", cfg.Required, want)
	}
	if cfg.Observability.SampleRate != 0.25 {
		t.Errorf("SampleRate = %v, want 0.25", cfg.Observability.SampleRate)
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	src := NewMapSource(map[string]string{
		"REDIS_KEY_PREFIX": "orders",
	})

	var cfg AppSettings
	err := Load(context.Background(), &cfg, WithSources(src))
	if err == nil {
		t.Fatal("Load() should fail when a configured section misses a required key")
	}
	if !errors.IsCode(err, errors.CodeInvalidArgument) {
		t.Errorf("code = %v, want INVALID_ARGUMENT", errors.CodeOf(err))
	}

	cfg = AppSettings{}
	if err := Load(context.Background(), &cfg, WithSources(src), WithoutValidation()); err != nil {
		t.Fatalf("Load(WithoutValidation) error = %v", err)
	}
	if cfg.Resources.Redis == nil {
		t.Error("Redis section should be allocated")
	}
}

func TestLoad_FilesOverrideEnv(t *testing.T) {
	dir := t.TempDir()
	dotenv := filepath.Join(dir, ".env")
	yamlFile := filepath.Join(dir, "orchid.yaml")

	if err := os.WriteFile(dotenv, []byte("ORCHID_TEST_LOG_LEVEL=debug\nORCHID_TEST_SERVICE_NAME=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	yamlBody := "postgres:\n  dsn: postgres://b@localhost/two\n  max-conns: 20\n"
	if err := os.WriteFile(yamlFile, []byte(yamlBody), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ORCHID_TEST_SERVICE_NAME", "billing")
	t.Setenv("ORCHID_TEST_LOG_LEVEL", "warn")

	type settings struct {
		ServiceName string `env:"ORCHID_TEST_SERVICE_NAME"`
		LogLevel    string `env:"ORCHID_TEST_LOG_LEVEL"`
		Resources   Resources
	}

	var cfg settings
	err := Load(context.Background(), &cfg, WithFiles(dotenv, yamlFile), WithLogger(&testLogger{}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ServiceName != "from-file" {
		t.Errorf("ServiceName = %q, want from-file", cfg.ServiceName)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.Resources.Postgres == nil {
		t.Fatal("Postgres section should be set from YAML")
	}
	if cfg.Resources.Postgres.DSN != "postgres://b@localhost/two" {
		t.Errorf("Postgres.DSN = %q", cfg.Resources.Postgres.DSN)
	}
	if cfg.Resources.Postgres.MaxConns != 20 {
		t.Errorf("Postgres.MaxConns = %d, want 20", cfg.Resources.Postgres.MaxConns)
	}
}

func TestKeys(t *testing.T) {
	keys := Keys(&AppSettings{})
	for _, want := range []string{
		"SERVICE_NAME",
		"REQUIRED_RESOURCES",
		"OBSERVABILITY_RETRY_ENABLED",
		"MYSQL_DSN",
		"MYSQL_RETRY_MAX_ATTEMPTS",
		"R2_ACCOUNT_ID",
	} {
		if !slices.Contains(keys, want) {
			t.Errorf("Keys() missing %s", want)
		}
	}
}

func TestNewManager_RequiresSource(t *testing.T) {
	if _, err := NewManager(context.Background(), Options{}); err == nil {
		t.Fatal("NewManager() should fail without sources")
	}
}

func TestManager_BindAndUpdate(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mgr, err := NewManager(ctx, Options{
		Logger:  &testLogger{},
		Sources: []Source{NewMapSource(map[string]string{"SERVICE_NAME": "inventory"})},
	})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	if v, ok := mgr.Value("SERVICE_NAME"); !ok || v != "inventory" {
		t.Errorf("Value(SERVICE_NAME) = %q, %v", v, ok)
	}

	var cfg AppSettings
	if err := mgr.Bind(&cfg); err != nil {
		t.Fatalf("Bind() error = %v", err)
	}
	if cfg.ServiceName != "inventory" {
		t.Errorf("ServiceName = %q, want inventory", cfg.ServiceName)
	}

	unsubscribe := mgr.OnUpdate(func(map[string]string) {})
	unsubscribe()
}

func TestManager_FileWatchRebinds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	path := filepath.Join(t.TempDir(), "app.yaml")
	if err := os.WriteFile(path, []byte("log_level: info\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	mgr, err := NewManager(ctx, Options{
		Logger:   log.Nop(),
		Sources:  NewSources("CONFIGXWATCH_", []string{path}, FileOptions{Watch: true, Interval: 10 * time.Millisecond}),
		Debounce: 10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	var cfg AppSettings
	levels := make(chan string, 4)
	if err := mgr.Bind(&cfg, WithUpdateCallback(func() { levels <- cfg.LogLevel })); err != nil {
		t.Fatalf("Bind() error = %v", err)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("LogLevel = %q, want info", cfg.LogLevel)
	}

	if err := os.WriteFile(path, []byte("log_level: debug\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	later := time.Now().Add(time.Second)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-levels:
		if got != "debug" {
			t.Errorf("rebound LogLevel = %q, want debug", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("update callback never ran")
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"1m30s", 90 * time.Second, false},
		{"0.5", 500 * time.Millisecond, false},
		{"2", 2 * time.Second, false},
		{"-1s", 0, true},
		{"soon", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseDuration(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDuration(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseDuration(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
