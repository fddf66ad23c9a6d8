// Package faultx defines the closed error taxonomy shared by every backend adapter
// and the table-driven translator that maps raw client failures into it.
//
// Overview:
//   - Responsibility: classify backend failures into NotFound, Auth, Transient, Operation or Validation
//   - Key Types: Kind, Domain, Error, Table
//   - Concurrency Model: Tables are values; Translate is pure and safe for concurrent use
//   - Error Semantics: Translate is total; already-classified errors pass through unchanged
//   - Performance Notes: Classification walks the error chain a constant number of times
//
// Usage:
//
//	table := faultx.BlobTable()
//	if err := table.Translate("get_object", bucket+"/"+key, raw); faultx.IsTransient(err) {
//		// retry
//	}
package faultx

import (
	"context"
	"errors"
	"strings"

	coreerrors "go.eggybyte.com/orchid/core/errors"
)

// Kind is one variant of the closed taxonomy.
type Kind string

const (
	KindNotFound   Kind = "not_found"
	KindAuth       Kind = "auth"
	KindTransient  Kind = "transient"
	KindOperation  Kind = "operation"
	KindValidation Kind = "validation"
)

// String returns the label form of the kind.
func (k Kind) String() string { return string(k) }

// Code maps the kind onto the shared error codes.
func (k Kind) Code() coreerrors.Code {
	switch k {
	case KindNotFound:
		return coreerrors.CodeNotFound
	case KindAuth:
		return coreerrors.CodeUnauthenticated
	case KindTransient:
		return coreerrors.CodeUnavailable
	case KindValidation:
		return coreerrors.CodeInvalidArgument
	default:
		return coreerrors.CodeInternal
	}
}

// Domain names the backend family an error originated from.
type Domain string

const (
	DomainBlob     Domain = "blob"
	DomainVector   Domain = "vector"
	DomainDocument Domain = "document"
	DomainBroker   Domain = "broker"
	DomainCache    Domain = "cache"
	DomainSQL      Domain = "sql"
)

// Error is a classified backend failure.
// Every field except Kind may be empty.
type Error struct {
	Domain Domain
	Kind   Kind
	Op     string // backend operation, e.g. "get_object"
	Target string // bucket/key, collection, queue or cache key
	Msg    string
	Err    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	if e.Domain != "" {
		b.WriteString(string(e.Domain))
		b.WriteString(" ")
	}
	b.WriteString(string(e.Kind))
	if e.Op != "" {
		b.WriteString(": ")
		b.WriteString(e.Op)
		if e.Target != "" {
			b.WriteString(" ")
			b.WriteString(e.Target)
		}
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the raw backend failure.
func (e *Error) Unwrap() error { return e.Err }

// Code implements core/errors.Coder.
func (e *Error) Code() coreerrors.Code { return e.Kind.Code() }

// Is matches the kind sentinels, so errors.Is(err, faultx.ErrTransient) works
// regardless of domain.
func (e *Error) Is(target error) bool {
	s, ok := target.(sentinel)
	return ok && Kind(s) == e.Kind
}

type sentinel Kind

func (s sentinel) Error() string { return string(s) }

// Kind sentinels for errors.Is.
var (
	ErrNotFound   error = sentinel(KindNotFound)
	ErrAuth       error = sentinel(KindAuth)
	ErrTransient  error = sentinel(KindTransient)
	ErrOperation  error = sentinel(KindOperation)
	ErrValidation error = sentinel(KindValidation)
)

// Validation reports a locally rejected input before any backend call.
func Validation(domain Domain, op, msg string) *Error {
	return &Error{Domain: domain, Kind: KindValidation, Op: op, Msg: msg}
}

// KindOf returns the kind of the first classified error in err's chain,
// or the empty Kind when err is nil or unclassified.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// IsTransient reports whether err was classified as retryable.
// It is the retry predicate used by adapters during startup.
func IsTransient(err error) bool {
	return KindOf(err) == KindTransient
}

// ErrorType returns a short label describing err for health details and
// metric labels: the taxonomy kind when classified, "timeout" or "canceled"
// for context errors, otherwise the Go type name of the outermost error.
func ErrorType(err error) string {
	if err == nil {
		return ""
	}
	if k := KindOf(err); k != "" {
		return string(k)
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	}
	return typeName(err)
}
