package harness

import (
	"bytes"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/datoms/internal/ir"
	"github.com/roach88/datoms/internal/shape"
)

// AssertionError is returned when a query's answer differs from the
// expected one.
type AssertionError struct {
	Shape    string   // Result shape the comparison used
	Expected []string // Expected values, formatted
	Actual   []string // Actual values, formatted
	Missing  []string // Expected but absent
	Extra    []string // Present but not expected
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "%s mismatch\n", e.Shape)
	fmt.Fprintf(&buf, "  Expected: [%s]\n", strings.Join(e.Expected, " "))
	fmt.Fprintf(&buf, "  Actual:   [%s]\n", strings.Join(e.Actual, " "))
	if len(e.Missing) > 0 {
		fmt.Fprintf(&buf, "  Missing:  [%s]\n", strings.Join(e.Missing, " "))
	}
	if len(e.Extra) > 0 {
		fmt.Fprintf(&buf, "  Extra:    [%s]\n", strings.Join(e.Extra, " "))
	}

	return buf.String()
}

// keyed pairs a value with its canonical encoding.
type keyed struct {
	key   []byte
	value ir.IRValue
}

// canonicalKeys encodes every value and sorts the pairs by encoding.
func canonicalKeys(values ir.IRArray) ([]keyed, error) {
	out := make([]keyed, len(values))
	for i, v := range values {
		key, err := ir.MarshalCanonical(v)
		if err != nil {
			return nil, fmt.Errorf("value %d: %w", i, err)
		}
		out[i] = keyed{key: key, value: v}
	}
	slices.SortStableFunc(out, func(a, b keyed) int { return bytes.Compare(a.key, b.key) })
	return out, nil
}

// compareRows checks actual against the expected YAML values. Set shapes
// compare as sets; OrderedRowList compares element by element.
func compareRows(policy shape.Policy, expect []any, actual ir.IRArray) error {
	want := make(ir.IRArray, len(expect))
	for i, e := range expect {
		v, err := ir.FromGo(e)
		if err != nil {
			return fmt.Errorf("expect[%d]: %w", i, err)
		}
		want[i] = v
	}

	wantKeys, err := encodeAll(want)
	if err != nil {
		return err
	}
	gotKeys, err := encodeAll(actual)
	if err != nil {
		return err
	}

	if policy != shape.OrderedRowList {
		slices.Sort(wantKeys)
		wantKeys = slices.Compact(wantKeys)
		slices.Sort(gotKeys)
	}
	if slices.Equal(wantKeys, gotKeys) {
		return nil
	}

	aerr := &AssertionError{
		Shape:    policy.String(),
		Expected: formatAll(want),
		Actual:   formatAll(actual),
	}
	for _, k := range wantKeys {
		if !slices.Contains(gotKeys, k) {
			aerr.Missing = append(aerr.Missing, k)
		}
	}
	for _, k := range gotKeys {
		if !slices.Contains(wantKeys, k) {
			aerr.Extra = append(aerr.Extra, k)
		}
	}
	return aerr
}

func encodeAll(values ir.IRArray) ([]string, error) {
	out := make([]string, len(values))
	for i, v := range values {
		key, err := ir.MarshalCanonical(v)
		if err != nil {
			return nil, fmt.Errorf("value %d: %w", i, err)
		}
		out[i] = string(key)
	}
	return out, nil
}

func formatAll(values ir.IRArray) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = ir.Format(v)
	}
	return out
}
