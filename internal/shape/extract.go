package shape

import (
	"errors"
	"fmt"

	"github.com/roach88/datoms/internal/ir"
	"github.com/roach88/datoms/internal/queryir"
)

// CardinalityError is returned when a result does not have the exactly-one
// cardinality the caller demanded.
type CardinalityError struct {
	// Want describes the expected shape, e.g. "exactly one tuple".
	Want string

	// Got is the number of elements actually present.
	Got int
}

func (e *CardinalityError) Error() string {
	return fmt.Sprintf("RESULT_CARDINALITY: expected %s, got %d", e.Want, e.Got)
}

// IsCardinalityError returns true if err is or wraps a CardinalityError.
func IsCardinalityError(err error) bool {
	var ce *CardinalityError
	return errors.As(err, &ce)
}

// ExactlyOneTuple returns the single row of a result.
// Keyed-map results yield their single map's values in label order.
func ExactlyOneTuple(r Result) (queryir.Row, error) {
	if r == nil || r.Len() != 1 {
		return nil, &CardinalityError{Want: "exactly one tuple", Got: lenOf(r)}
	}
	switch res := r.(type) {
	case *TupleSet:
		return res.rows[0], nil
	case RowList:
		return res[0], nil
	case *KeyedMapSet:
		m := res.maps[0]
		row := make(queryir.Row, len(res.labels))
		for i, label := range res.labels {
			row[i] = m[label]
		}
		return row, nil
	default:
		return nil, fmt.Errorf("unsupported result type: %T", r)
	}
}

// ExactlyOneScalar returns the single value of a one-row, one-column result.
func ExactlyOneScalar(r Result) (ir.IRValue, error) {
	row, err := ExactlyOneTuple(r)
	if err != nil {
		return nil, err
	}
	if len(row) != 1 {
		return nil, &CardinalityError{Want: "exactly one scalar", Got: len(row)}
	}
	return row[0], nil
}

func lenOf(r Result) int {
	if r == nil {
		return 0
	}
	return r.Len()
}
