package configx

import (
	"github.com/go-playground/validator/v10"

	"go.eggybyte.com/orchid/core/errors"
)

// ValidatorOption configures the validator.
type ValidatorOption func(*validator.Validate)

// NewValidator creates a validator that requires validate tags on struct fields.
func NewValidator(opts ...ValidatorOption) *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// ValidateStruct checks target against its validate tags. Nil pointer
// sections are skipped. Failures carry INVALID_ARGUMENT.
func ValidateStruct(v *validator.Validate, target any) error {
	if v == nil {
		v = NewValidator()
	}
	if err := v.Struct(target); err != nil {
		return errors.Wrap(errors.CodeInvalidArgument, "configx.Validate", err)
	}
	return nil
}
