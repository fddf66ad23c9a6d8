package runtimex

import (
	"context"
	"io"

	"go.eggybyte.com/orchid/core/errors"
	"go.eggybyte.com/orchid/healthx"
)

// HealthCheckable is implemented by resources that can probe their backend.
// A failed probe should be reported in the Status; a returned error is
// treated the same way.
type HealthCheckable interface {
	HealthCheck(ctx context.Context) (healthx.Status, error)
}

// Closer is implemented by resources that hold connections to release.
type Closer interface {
	Close(ctx context.Context) error
}

// Resource is a registered value together with the capabilities found on it.
// Either capability may be nil.
type Resource struct {
	Name   string
	Value  any
	Health HealthCheckable
	Closer Closer
}

// NewResource probes v for HealthCheckable and for either Closer or io.Closer.
func NewResource(name string, v any) Resource {
	r := Resource{Name: name, Value: v}
	if hc, ok := v.(HealthCheckable); ok {
		r.Health = hc
	}
	switch c := v.(type) {
	case Closer:
		r.Closer = c
	case io.Closer:
		r.Closer = ioCloser{c}
	}
	return r
}

// close is a no-op for resources without a close capability. A panicking
// Close is reported as an INTERNAL error.
func (r Resource) close(ctx context.Context) (err error) {
	if r.Closer == nil {
		return nil
	}
	defer func() {
		if p := recover(); p != nil {
			err = errors.Newf(errors.CodeInternal, "resource %s: close panicked: %v", r.Name, p)
		}
	}()
	return r.Closer.Close(ctx)
}

type ioCloser struct {
	c io.Closer
}

func (a ioCloser) Close(context.Context) error {
	return a.c.Close()
}
