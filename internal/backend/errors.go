package backend

import (
	"errors"
	"fmt"
)

// Kind classifies a backend failure so callers can choose between retry,
// stale-cache fallback, re-selection, or an administrative fix.
type Kind int

const (
	// KindValidation marks malformed input caught before any network call.
	KindValidation Kind = iota
	// KindConfiguration marks a reachable backend that is structurally
	// unable to serve, e.g. no dentist assigned to the clinic.
	KindConfiguration
	// KindConflict marks a slot that is no longer free.
	KindConflict
	// KindTransient marks network-level failures eligible for retry.
	KindTransient
	// KindTimeout marks a request that exceeded its deadline.
	KindTimeout
	// KindUnavailable marks a 404 on a core endpoint: the appointment
	// subsystem itself is unreachable, not "no slots".
	KindUnavailable
	// KindAuth marks 401/403 responses. Propagated, never retried here.
	KindAuth
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConfiguration:
		return "configuration"
	case KindConflict:
		return "conflict"
	case KindTransient:
		return "transient"
	case KindTimeout:
		return "timeout"
	case KindUnavailable:
		return "unavailable"
	case KindAuth:
		return "auth"
	}
	return "unknown"
}

// Error is the classified error type returned by the backend client.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Status  int
	// Fields holds per-field validation detail from 422 responses.
	Fields map[string]string
	Err    error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend: %s: %s (%s)", e.Op, e.Message, e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("backend: %s: %v (%s)", e.Op, e.Err, e.Kind)
	}
	return fmt.Sprintf("backend: %s failed (%s)", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the classification from err, or KindTransient when err is
// not a classified backend error (an unclassified failure is treated as
// retryable rather than terminal).
func KindOf(err error) Kind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return KindTransient
}

// IsValidation reports whether err is a local input-validation failure.
func IsValidation(err error) bool { return isKind(err, KindValidation) }

// IsConfiguration reports whether err signals an administrative problem
// (e.g. no provider assigned) rather than legitimate full booking.
func IsConfiguration(err error) bool { return isKind(err, KindConfiguration) }

// IsConflict reports whether err signals the target slot is taken.
func IsConflict(err error) bool { return isKind(err, KindConflict) }

// IsUnavailable reports whether err signals the appointment service itself
// is unreachable.
func IsUnavailable(err error) bool { return isKind(err, KindUnavailable) }

// IsAuth reports whether err is a 401/403 from the backend.
func IsAuth(err error) bool { return isKind(err, KindAuth) }

// IsRetryable reports whether err is a transient failure (timeout, reset,
// abort) that a caller may retry or serve degraded.
func IsRetryable(err error) bool {
	return isKind(err, KindTransient) || isKind(err, KindTimeout)
}

func isKind(err error, k Kind) bool {
	var be *Error
	return errors.As(err, &be) && be.Kind == k
}
