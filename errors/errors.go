// Package errors provides error handling for jitter.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - User-facing hints and details
//
// Usage:
//
//	// Wrap with context
//	if err := snap.File(path); err != nil {
//	    return errors.Wrapf(err, "read %s", path)
//	}
//
//	// Add hints for operators
//	return errors.WithHint(err, "run `jitter pending` to list known stubs")
//
//	// Check errors
//	if errors.Is(err, errors.ErrUnknownSymbol) {
//	    // nothing was patched
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
	Mark         = crdb.Mark
)

// User-facing messages and details
var (
	WithHint      = crdb.WithHint
	WithHintf     = crdb.WithHintf
	WithDetail    = crdb.WithDetail
	WithDetailf   = crdb.WithDetailf
	GetAllHints   = crdb.GetAllHints
	GetAllDetails = crdb.GetAllDetails
	FlattenHints  = crdb.FlattenHints
)

// Error inspection
var (
	Is        = crdb.Is
	IsAny     = crdb.IsAny
	As        = crdb.As
	Unwrap    = crdb.Unwrap
	UnwrapAll = crdb.UnwrapAll
)

// Assertions
var AssertionFailedf = crdb.AssertionFailedf

// Sentinel errors. Wrap these with errors.Wrap() to add context while
// preserving identity for errors.Is().
var (
	// ErrUnresolvableSymbol marks a type or collaborator reference that could
	// not be located in the source root. Discovery records it and continues.
	ErrUnresolvableSymbol = New("unresolvable symbol")

	// ErrMalformedAnnotation marks a forward-reference marker that does not parse.
	ErrMalformedAnnotation = New("malformed annotation")

	// ErrUnknownSymbol means an install target has no declaring scope.
	// Nothing is mutated when this is returned.
	ErrUnknownSymbol = New("unknown symbol")

	// ErrPartialPatch marks a single aliasing scope that could not be updated.
	ErrPartialPatch = New("partial patch failure")

	// ErrSignatureMismatch means a replacement cannot be assigned to the declared binding.
	ErrSignatureMismatch = New("signature mismatch")

	// ErrNotImplemented is carried by pending stubs.
	ErrNotImplemented = New("not implemented")

	// ErrDeclined means the operator rejected a candidate implementation.
	ErrDeclined = New("implementation declined")

	// ErrNotFound indicates the requested resource does not exist
	ErrNotFound = New("not found")

	// ErrInvalidRequest indicates the request was malformed or invalid
	ErrInvalidRequest = New("invalid request")
)

// IsUnknownSymbol checks if an error is or wraps ErrUnknownSymbol
func IsUnknownSymbol(err error) bool {
	return err != nil && Is(err, ErrUnknownSymbol)
}

// IsUnresolvable checks if an error is or wraps ErrUnresolvableSymbol
func IsUnresolvable(err error) bool {
	return err != nil && Is(err, ErrUnresolvableSymbol)
}

// IsNotImplemented checks if an error is or wraps ErrNotImplemented
func IsNotImplemented(err error) bool {
	return err != nil && Is(err, ErrNotImplemented)
}

// IsNotFoundError checks if an error is or wraps ErrNotFound
func IsNotFoundError(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// NewUnresolvable creates an unresolvable-symbol error with a formatted message
func NewUnresolvable(format string, args ...interface{}) error {
	return Mark(Newf(format, args...), ErrUnresolvableSymbol)
}

// NewUnknownSymbol creates an unknown-symbol error for the given qualified name
func NewUnknownSymbol(qualifiedName string) error {
	err := Mark(Newf("unknown symbol %q: no declaring scope is registered", qualifiedName), ErrUnknownSymbol)
	return WithHint(err, "declare the symbol with live.Declare before installing a replacement")
}

// NewMalformedAnnotation creates a malformed-annotation error for the raw marker text
func NewMalformedAnnotation(raw string, reason string) error {
	return Mark(Newf("malformed annotation %q: %s", raw, reason), ErrMalformedAnnotation)
}

// NewInvalidRequestError creates an invalid-request error with a formatted message
func NewInvalidRequestError(format string, args ...interface{}) error {
	return Mark(Newf(format, args...), ErrInvalidRequest)
}
