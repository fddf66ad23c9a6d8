package internal

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm/logger"

	"go.eggybyte.com/orchid/core/log"
)

type mockLogger struct {
	entries []string
}

func (m *mockLogger) With(kv ...any) log.Logger   { return m }
func (m *mockLogger) Debug(msg string, kv ...any) { m.entries = append(m.entries, "DEBUG: "+msg) }
func (m *mockLogger) Info(msg string, kv ...any)  { m.entries = append(m.entries, "INFO: "+msg) }
func (m *mockLogger) Warn(msg string, kv ...any)  { m.entries = append(m.entries, "WARN: "+msg) }
func (m *mockLogger) Error(err error, msg string, kv ...any) {
	m.entries = append(m.entries, "ERROR: "+msg)
}

func TestDialector(t *testing.T) {
	tests := []struct {
		driver  string
		name    string
		wantErr bool
	}{
		{DriverMySQL, "mysql", false},
		{DriverPostgres, "postgres", false},
		{DriverSQLite, "sqlite", false},
		{"oracle", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			d, err := Dialector(tt.driver, "dsn")
			if tt.wantErr {
				if err == nil {
					t.Fatal("Dialector() should fail for unsupported driver")
				}
				if !strings.Contains(err.Error(), "unsupported driver") {
					t.Errorf("error = %q, want unsupported driver", err.Error())
				}
				return
			}
			if err != nil {
				t.Fatalf("Dialector() error = %v", err)
			}
			if d.Name() != tt.name {
				t.Errorf("Name() = %q, want %q", d.Name(), tt.name)
			}
		})
	}
}

func TestOpenGORM_EmptyDSN(t *testing.T) {
	_, err := OpenGORM(GORMOptions{Driver: DriverMySQL})
	if err == nil {
		t.Fatal("OpenGORM() should fail without DSN")
	}
	if !strings.Contains(err.Error(), "DSN is required") {
		t.Errorf("error = %q, want DSN is required", err.Error())
	}
}

func TestOpenGORM_UnsupportedDriver(t *testing.T) {
	_, err := OpenGORM(GORMOptions{DSN: "x", Driver: "oracle"})
	if err == nil {
		t.Fatal("OpenGORM() should fail for unsupported driver")
	}
}

func TestGormLogAdapter_Trace(t *testing.T) {
	connErr := errors.New("connection refused")
	isConn := func(err error) bool { return errors.Is(err, connErr) }
	query := func() (string, int64) { return "SELECT 1", 1 }

	tests := []struct {
		name  string
		begin time.Time
		err   error
		want  string
	}{
		{"connection error", time.Now(), connErr, "ERROR: database query failed"},
		{"query error", time.Now(), errors.New("duplicate key"), "DEBUG: database query completed with error"},
		{"slow query", time.Now().Add(-time.Second), nil, "WARN: slow database query"},
		{"fast query", time.Now(), nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &mockLogger{}
			adapter := &gormLogAdapter{logger: m, slow: 100 * time.Millisecond, isConnError: isConn}
			adapter.Trace(context.Background(), tt.begin, query, tt.err)

			if tt.want == "" {
				if len(m.entries) != 0 {
					t.Errorf("entries = %v, want none", m.entries)
				}
				return
			}
			if len(m.entries) != 1 || m.entries[0] != tt.want {
				t.Errorf("entries = %v, want [%s]", m.entries, tt.want)
			}
		})
	}
}

func TestGormLogAdapter_Printf(t *testing.T) {
	m := &mockLogger{}
	adapter := &gormLogAdapter{logger: m}

	if adapter.LogMode(logger.Silent) != adapter {
		t.Error("LogMode() should return the adapter itself")
	}

	ctx := context.Background()
	adapter.Info(ctx, "opened %s", "db")
	adapter.Warn(ctx, "pool at %d%%", 90)
	adapter.Error(ctx, "failed: %v", "boom")

	want := []string{"INFO: opened db", "WARN: pool at 90%", "ERROR: failed: boom"}
	if len(m.entries) != len(want) {
		t.Fatalf("entries = %v, want %v", m.entries, want)
	}
	for i := range want {
		if m.entries[i] != want[i] {
			t.Errorf("entries[%d] = %q, want %q", i, m.entries[i], want[i])
		}
	}
}
