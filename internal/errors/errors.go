package errors

import (
	"errors"
	"fmt"
)

// Kind classifies an error for propagation and logging decisions.
type Kind string

const (
	KindValidation       Kind = "validation"        // Malformed or missing request fields
	KindAuthentication   Kind = "authentication"    // Bad secret, bad PKCE verifier, bad signature
	KindExpired          Kind = "expired"           // Session, token or code past its TTL (or never existed)
	KindReplay           Kind = "replay"            // Reused code, session/token mismatch
	KindStoreUnavailable Kind = "store_unavailable" // Backing store unreachable
	KindInternal         Kind = "internal"
)

// Error is a classified error. Sentinels are compared by identity with errors.Is.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	return e.Msg
}

// New creates a classified sentinel error
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

// Common error types shared across packages
var (
	ErrNotFound         = New(KindExpired, "not found")
	ErrStoreUnavailable = New(KindStoreUnavailable, "store unavailable")
	ErrInternal         = New(KindInternal, "internal error")
)

// KindOf returns the Kind of the first classified error in err's chain.
// Unclassified errors are internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsSecurityFailure reports whether err must surface as a uniform denial
func IsSecurityFailure(err error) bool {
	switch KindOf(err) {
	case KindAuthentication, KindExpired, KindReplay:
		return true
	}
	return false
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
