package compiler

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind categorizes compile errors.
type ErrorKind string

const (
	// ErrMalformedClauseShape indicates a where entry lacks its entity
	// binding, or a section is not the expected ordered-list shape.
	ErrMalformedClauseShape ErrorKind = "MALFORMED_CLAUSE_SHAPE"

	// ErrMalformedBindingList indicates a let list of odd length, or a
	// binding whose name is not a symbol.
	ErrMalformedBindingList ErrorKind = "MALFORMED_BINDING_LIST"

	// ErrOrphanSymbol indicates regular variables that occur exactly once.
	ErrOrphanSymbol ErrorKind = "ORPHAN_SYMBOL"

	// ErrOverusedWildcard indicates wildcard variables that occur more than once.
	ErrOverusedWildcard ErrorKind = "OVERUSED_WILDCARD"

	// ErrInvalidProjection indicates a find element that cannot be labeled
	// for keyed-map results.
	ErrInvalidProjection ErrorKind = "INVALID_PROJECTION"
)

// Error is a structural or validation failure detected before any engine
// call. Symbols carries the full offending-name list for symbol errors.
type Error struct {
	Kind    ErrorKind
	Field   string
	Message string
	Symbols []string
}

// Error implements the error interface.
func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(string(e.Kind))
	sb.WriteString(": ")
	if e.Field != "" {
		sb.WriteString(e.Field)
		sb.WriteString(": ")
	}
	sb.WriteString(e.Message)
	if len(e.Symbols) > 0 {
		sb.WriteString(" [")
		sb.WriteString(strings.Join(e.Symbols, " "))
		sb.WriteString("]")
	}
	return sb.String()
}

func newError(kind ErrorKind, field, format string, args ...any) *Error {
	return &Error{Kind: kind, Field: field, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first compile error in err's chain, or "".
func KindOf(err error) ErrorKind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}

// AsKind returns the compile error of the given kind found anywhere in err's
// tree, or nil. Both single and joined unwrapping are followed at every
// level, so a joined error still yields each kind after it has been wrapped.
func AsKind(err error, kind ErrorKind) *Error {
	switch e := err.(type) {
	case nil:
		return nil
	case *Error:
		if e.Kind == kind {
			return e
		}
		return nil
	case interface{ Unwrap() []error }:
		for _, inner := range e.Unwrap() {
			if found := AsKind(inner, kind); found != nil {
				return found
			}
		}
		return nil
	case interface{ Unwrap() error }:
		return AsKind(e.Unwrap(), kind)
	}
	return nil
}

// IsOrphanSymbolError returns true if err contains an orphan-symbol error.
func IsOrphanSymbolError(err error) bool {
	return AsKind(err, ErrOrphanSymbol) != nil
}

// IsOverusedWildcardError returns true if err contains an overused-wildcard error.
func IsOverusedWildcardError(err error) bool {
	return AsKind(err, ErrOverusedWildcard) != nil
}
