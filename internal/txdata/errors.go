package txdata

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// ErrorKind categorizes transaction-builder errors.
type ErrorKind string

const (
	// ErrInvalidIdentifier indicates an ident that is not a namespaced
	// keyword (":ns/name").
	ErrInvalidIdentifier ErrorKind = "INVALID_IDENTIFIER"

	// ErrInvalidValueType indicates an unknown attribute value type, or a
	// value that does not fit its attribute's type.
	ErrInvalidValueType ErrorKind = "INVALID_VALUE_TYPE"

	// ErrInvalidCardinality indicates an unknown cardinality.
	ErrInvalidCardinality ErrorKind = "INVALID_CARDINALITY"

	// ErrInvalidUnique indicates an unknown uniqueness constraint.
	ErrInvalidUnique ErrorKind = "INVALID_UNIQUE"

	// ErrInvalidItem indicates malformed transaction data.
	ErrInvalidItem ErrorKind = "INVALID_ITEM"
)

// Error is a malformed attribute definition or transaction item.
type Error struct {
	Kind    ErrorKind
	Ident   string
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Ident != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Ident, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func newError(kind ErrorKind, ident, format string, args ...any) *Error {
	return &Error{Kind: kind, Ident: ident, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first txdata error in err's chain, or "".
func KindOf(err error) ErrorKind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return ""
}

// IsInvalidIdentifier returns true if err is or wraps an ErrInvalidIdentifier.
func IsInvalidIdentifier(err error) bool {
	return KindOf(err) == ErrInvalidIdentifier
}

// IsInvalidValueType returns true if err is or wraps an ErrInvalidValueType.
func IsInvalidValueType(err error) bool {
	return KindOf(err) == ErrInvalidValueType
}
