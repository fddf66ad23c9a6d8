package runtimex

import (
	"fmt"
	"slices"
	"strings"

	"go.eggybyte.com/orchid/core/errors"
)

// ErrResourceNotFound is returned by Get and Close for names that are not
// registered. Match it with errors.Is; the returned error also carries the name.
var ErrResourceNotFound = errors.New(errors.CodeNotFound, "resource not found")

func notFound(name string) error {
	return fmt.Errorf("%w: %s", ErrResourceNotFound, name)
}

// MissingRequiredResourceError lists every required resource that was not
// registered after startup.
type MissingRequiredResourceError struct {
	Names []string
}

func (e *MissingRequiredResourceError) Error() string {
	return "required resources not configured: " + strings.Join(e.Names, ", ")
}

// Code implements errors.Coder.
func (e *MissingRequiredResourceError) Code() errors.Code {
	return errors.CodeFailedPrecondition
}

// ShutdownError collects the close failures of one CloseAll pass, keyed by
// resource name. Every resource received a close attempt before it is returned.
type ShutdownError struct {
	Errors map[string]error
}

func (e *ShutdownError) Error() string {
	names := e.Names()
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s: %v", name, e.Errors[name])
	}
	return fmt.Sprintf("failed to close resources: %s", strings.Join(parts, "; "))
}

// Names returns the failed resource names in sorted order.
func (e *ShutdownError) Names() []string {
	names := make([]string, 0, len(e.Errors))
	for name := range e.Errors {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Unwrap exposes every member error to errors.Is and errors.As.
func (e *ShutdownError) Unwrap() []error {
	errs := make([]error, 0, len(e.Errors))
	for _, name := range e.Names() {
		errs = append(errs, e.Errors[name])
	}
	return errs
}

// Code implements errors.Coder.
func (e *ShutdownError) Code() errors.Code {
	return errors.CodeInternal
}
