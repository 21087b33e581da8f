// Package chaterr defines the closed error taxonomy shared by the key store,
// the cipher, and the lifecycle manager. Callers switch over Kind instead of
// probing error shapes at runtime.
package chaterr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure into the remediations it allows.
type Kind uint8

const (
	// KindUnknown covers failures outside the closed set.
	KindUnknown Kind = iota
	// KindKeyNotFound is expected absence: a record that has not been
	// provisioned yet. Triggers provisioning, not a user-facing failure.
	KindKeyNotFound
	// KindAuthorizationDenied means the backing store rejected the operation
	// because of stale or insufficient credentials. A retry cannot fix it;
	// the session has to be refreshed.
	KindAuthorizationDenied
	// KindUnwrapFailure means a wrong password or corrupted sealed blob.
	KindUnwrapFailure
	// KindPrimitiveFailure means a cryptographic primitive refused its
	// parameters. Always fatal, never retried.
	KindPrimitiveFailure
)

func (k Kind) String() string {
	switch k {
	case KindKeyNotFound:
		return "key not found"
	case KindAuthorizationDenied:
		return "authorization denied"
	case KindUnwrapFailure:
		return "unwrap failure"
	case KindPrimitiveFailure:
		return "crypto primitive failure"
	}
	return "unknown"
}

// Error carries a Kind, the operation that failed, and the underlying cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match two taxonomy errors by Kind alone.
func (e *Error) Is(target error) bool {
	var te *Error
	if !errors.As(target, &te) {
		return false
	}
	return e.Kind == te.Kind
}

// E builds a taxonomy error. err may be nil when the kind says it all.
func E(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf extracts the Kind from err, or KindUnknown for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKeyNotFound reports whether err is the expected-absence case.
func IsKeyNotFound(err error) bool { return KindOf(err) == KindKeyNotFound }

// IsAuthorizationDenied reports whether err is a backend permission rejection.
func IsAuthorizationDenied(err error) bool { return KindOf(err) == KindAuthorizationDenied }

// IsUnwrapFailure reports whether err is a wrong-password or corrupt-blob case.
func IsUnwrapFailure(err error) bool { return KindOf(err) == KindUnwrapFailure }

// IsPrimitiveFailure reports whether err is a fatal primitive misconfiguration.
func IsPrimitiveFailure(err error) bool { return KindOf(err) == KindPrimitiveFailure }
