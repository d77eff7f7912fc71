package store

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// ErrorCode categorizes transaction and lookup failures.
type ErrorCode string

const (
	// ErrCodeUnknownAttribute indicates an attribute ident that is not
	// installed.
	ErrCodeUnknownAttribute ErrorCode = "UNKNOWN_ATTRIBUTE"

	// ErrCodeUnknownEntity indicates an ident or lookup ref that names no
	// entity.
	ErrCodeUnknownEntity ErrorCode = "UNKNOWN_ENTITY"

	// ErrCodeUniqueConflict indicates a unique attribute value already held
	// by another entity.
	ErrCodeUniqueConflict ErrorCode = "UNIQUE_CONFLICT"

	// ErrCodeDatomConflict indicates one transaction asserting two values
	// for a cardinality-one attribute, or asserting and retracting the same
	// fact.
	ErrCodeDatomConflict ErrorCode = "DATOM_CONFLICT"

	// ErrCodeSchemaConflict indicates a partition or attribute redefined
	// with a different definition.
	ErrCodeSchemaConflict ErrorCode = "SCHEMA_CONFLICT"

	// ErrCodeTempid indicates a tempid that cannot be resolved.
	ErrCodeTempid ErrorCode = "TEMPID"

	// ErrCodeInvalidInput indicates a query input the engine cannot bind.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// TxError is a transaction or lookup rejected by the store.
type TxError struct {
	Code    ErrorCode
	Message string
}

// Error implements the error interface.
func (e *TxError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func txError(code ErrorCode, format string, args ...any) error {
	return errors.WithStack(&TxError{Code: code, Message: fmt.Sprintf(format, args...)})
}

// CodeOf returns the code of the first TxError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var te *TxError
	if errors.As(err, &te) {
		return te.Code
	}
	return ""
}

// IsUniqueConflict returns true if err is or wraps a unique-constraint
// violation.
func IsUniqueConflict(err error) bool {
	return CodeOf(err) == ErrCodeUniqueConflict
}

// IsUnknownAttribute returns true if err is or wraps an unknown-attribute
// error.
func IsUnknownAttribute(err error) bool {
	return CodeOf(err) == ErrCodeUnknownAttribute
}
