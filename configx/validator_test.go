package configx

import (
	"testing"

	"github.com/go-playground/validator/v10"

	"go.eggybyte.com/orchid/core/errors"
	"go.eggybyte.com/orchid/retryx"
	"go.eggybyte.com/orchid/storex"
)

func TestNewValidator_WithOptions(t *testing.T) {
	called := false
	v := NewValidator(func(*validator.Validate) { called = true })
	if v == nil {
		t.Fatal("NewValidator() should return non-nil validator")
	}
	if !called {
		t.Error("validator option should be called")
	}
}

func TestValidateStruct(t *testing.T) {
	valid := Resources{Redis: &storex.RedisSettings{
		URL:      "redis://localhost",
		PoolSize: 10,
		Retry:    retryx.DefaultSettings(),
	}}
	if err := ValidateStruct(nil, &valid); err != nil {
		t.Errorf("ValidateStruct() error = %v", err)
	}

	if err := ValidateStruct(nil, &Resources{}); err != nil {
		t.Errorf("nil sections should be skipped, got %v", err)
	}

	badPool := Resources{Postgres: &storex.PostgresSettings{
		DSN:      "postgres://localhost",
		MinConns: 5,
		MaxConns: 2,
		Retry:    retryx.DefaultSettings(),
	}}
	err := ValidateStruct(nil, &badPool)
	if err == nil {
		t.Fatal("ValidateStruct() should reject MaxConns below MinConns")
	}
	if !errors.IsCode(err, errors.CodeInvalidArgument) {
		t.Errorf("code = %v, want INVALID_ARGUMENT", errors.CodeOf(err))
	}
}
