package remote

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a remote failure. Every caller in the engine distinguishes
// at least Canceled from the rest: cancellations are expected (user navigated
// away, refresh superseded, logout) and must never surface an alert.
type Kind string

const (
	// KindCanceled means the request's context was canceled.
	KindCanceled Kind = "canceled"
	// KindCredentialsExpired means the server rejected our credentials;
	// triggers the logout flow rather than a retry.
	KindCredentialsExpired Kind = "credentials_expired"
	// KindUnavailable means the server could not be reached.
	KindUnavailable Kind = "unavailable"
	// KindServer means the server answered with a failure.
	KindServer Kind = "server"
	// KindDecode means the response body could not be decoded.
	KindDecode Kind = "decode"
)

// Error is a remote failure carrying its classification.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// NewError wraps err with a kind and the operation that failed.
func NewError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("remote %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("remote %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the failure kind from any error. Plain context
// cancellations classify as KindCanceled; everything unclassified is a
// server-side failure.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCanceled
	}
	return KindServer
}

// IsCanceled reports whether err is an expected cancellation.
func IsCanceled(err error) bool {
	return KindOf(err) == KindCanceled
}

// IsCredentialsExpired reports whether err means the login is no longer valid.
func IsCredentialsExpired(err error) bool {
	return KindOf(err) == KindCredentialsExpired
}
