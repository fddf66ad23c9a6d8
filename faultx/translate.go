package faultx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"slices"
	"strings"
	"syscall"
)

// Classifier inspects a raw failure with backend-specific knowledge
// (driver error types, SQLSTATE classes) and reports a kind when it recognises it.
type Classifier func(err error) (Kind, bool)

// Table is an explicit per-backend classification table.
// Lookups run in order: Classifiers, error codes, status codes, transport signals.
// Anything left over is KindOperation.
type Table struct {
	Domain Domain

	NotFoundStatus  []int
	AuthStatus      []int
	TransientStatus []int

	NotFoundCodes  []string
	AuthCodes      []string
	TransientCodes []string

	// ExtractCode overrides how a string error code is read from err.
	// The default looks for an ErrorCode() string method in the chain.
	ExtractCode func(err error) string

	Classifiers []Classifier
}

// Status sets shared by the HTTP-fronted backends.
var (
	notFoundHTTPStatus  = []int{404}
	authHTTPStatus      = []int{401, 403}
	transientHTTPStatus = []int{408, 425, 429, 500, 502, 503, 504}
)

// Translate classifies err for operation op against target.
// nil stays nil. Errors already carrying a Kind are returned unchanged.
func (t Table) Translate(op, target string, err error) error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return err
	}
	return &Error{
		Domain: t.Domain,
		Kind:   t.Classify(err),
		Op:     op,
		Target: target,
		Err:    err,
	}
}

// Classify returns the kind err maps to under this table. It never fails.
func (t Table) Classify(err error) Kind {
	if k := KindOf(err); k != "" {
		return k
	}

	for _, c := range t.Classifiers {
		if k, ok := c(err); ok {
			return k
		}
	}

	code := ""
	if t.ExtractCode != nil {
		code = t.ExtractCode(err)
	}
	if code == "" {
		code = ErrorCode(err)
	}
	if code != "" {
		switch {
		case slices.Contains(t.NotFoundCodes, code):
			return KindNotFound
		case slices.Contains(t.AuthCodes, code):
			return KindAuth
		case slices.Contains(t.TransientCodes, code):
			return KindTransient
		}
	}

	if status := StatusCode(err); status != 0 {
		switch {
		case slices.Contains(t.NotFoundStatus, status):
			return KindNotFound
		case slices.Contains(t.AuthStatus, status):
			return KindAuth
		case slices.Contains(t.TransientStatus, status):
			return KindTransient
		}
	}

	if IsConnectionSignal(err) {
		return KindTransient
	}
	return KindOperation
}

type httpStatusCoder interface{ HTTPStatusCode() int }
type statusCoder interface{ StatusCode() int }
type errorCoder interface{ ErrorCode() string }

// StatusCode extracts a numeric HTTP-like status from err's chain.
// It understands HTTPStatusCode() int (AWS smithy response errors) and
// StatusCode() int. Zero means no status was found.
func StatusCode(err error) int {
	var h httpStatusCoder
	if errors.As(err, &h) {
		if s := h.HTTPStatusCode(); s != 0 {
			return s
		}
	}
	var s statusCoder
	if errors.As(err, &s) {
		return s.StatusCode()
	}
	return 0
}

// ErrorCode extracts a backend string code (for example "NoSuchKey") from err's chain.
func ErrorCode(err error) string {
	var c errorCoder
	if errors.As(err, &c) {
		return c.ErrorCode()
	}
	return ""
}

// IsConnectionSignal reports transport-level failures that usually clear on retry:
// deadlines, network timeouts, refused or reset connections and truncated streams.
func IsConnectionSignal(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	for _, errno := range []syscall.Errno{
		syscall.ECONNREFUSED,
		syscall.ECONNRESET,
		syscall.ECONNABORTED,
		syscall.EPIPE,
		syscall.ETIMEDOUT,
		syscall.EHOSTUNREACH,
		syscall.ENETUNREACH,
	} {
		if errors.Is(err, errno) {
			return true
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && (dnsErr.IsTemporary || dnsErr.IsTimeout) {
		return true
	}
	return false
}

func typeName(err error) string {
	name := fmt.Sprintf("%T", err)
	name = strings.TrimLeft(name, "*")
	if idx := strings.LastIndexByte(name, '.'); idx >= 0 {
		name = name[idx+1:]
	}
	return name
}
