package shape

import (
	"bytes"
	"fmt"

	"github.com/zeebo/xxh3"

	"github.com/roach88/datoms/internal/ir"
	"github.com/roach88/datoms/internal/queryir"
)

// Policy selects how rows are shaped.
type Policy int

const (
	// UniqueTupleSet collects rows into a deduplicating set of tuples.
	UniqueTupleSet Policy = iota

	// UniqueKeyedMapSet converts rows into label→value maps, then dedups.
	UniqueKeyedMapSet

	// OrderedRowList keeps every row in engine order, duplicates included.
	OrderedRowList
)

// policyNames maps CLI/config spellings to policies.
var policyNames = map[string]Policy{
	"tuples": UniqueTupleSet,
	"maps":   UniqueKeyedMapSet,
	"rows":   OrderedRowList,
}

// String returns the CLI spelling of the policy.
func (p Policy) String() string {
	switch p {
	case UniqueTupleSet:
		return "tuples"
	case UniqueKeyedMapSet:
		return "maps"
	case OrderedRowList:
		return "rows"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy parses "tuples", "maps" or "rows".
func ParsePolicy(s string) (Policy, error) {
	p, ok := policyNames[s]
	if !ok {
		return 0, fmt.Errorf("invalid shape %q: must be one of tuples, maps, rows", s)
	}
	return p, nil
}

// Result is a shaped query answer.
//
// This is a sealed interface - only *TupleSet, *KeyedMapSet and RowList
// implement it.
type Result interface {
	result() // Marker method - seals interface to this package

	// Len returns the number of elements in the result.
	Len() int

	// Values returns the elements as IR values, for printing and encoding.
	Values() ir.IRArray
}

// Shape applies policy to rows. labels is only read by UniqueKeyedMapSet.
func Shape(policy Policy, labels []string, rows []queryir.Row) (Result, error) {
	switch policy {
	case UniqueTupleSet:
		set, err := Tuples(rows)
		if err != nil {
			return nil, err
		}
		return set, nil
	case UniqueKeyedMapSet:
		set, err := KeyedMaps(labels, rows)
		if err != nil {
			return nil, err
		}
		return set, nil
	case OrderedRowList:
		return Rows(rows), nil
	default:
		return nil, fmt.Errorf("unsupported shape policy: %v", policy)
	}
}

// index is an insertion-ordered set of canonical keys, bucketed by xxh3.
type index struct {
	buckets map[uint64][]int
	keys    [][]byte
}

func newIndex() index {
	return index{buckets: make(map[uint64][]int)}
}

// find returns the position of key, or -1.
func (ix *index) find(key []byte) int {
	for _, i := range ix.buckets[xxh3.Hash(key)] {
		if bytes.Equal(ix.keys[i], key) {
			return i
		}
	}
	return -1
}

// insert adds key if absent and reports whether it was added.
func (ix *index) insert(key []byte) bool {
	if ix.find(key) >= 0 {
		return false
	}
	h := xxh3.Hash(key)
	ix.buckets[h] = append(ix.buckets[h], len(ix.keys))
	ix.keys = append(ix.keys, key)
	return true
}

func canonicalKey(v ir.IRValue) ([]byte, error) {
	key, err := ir.MarshalCanonical(v)
	if err != nil {
		return nil, fmt.Errorf("dedup key: %w", err)
	}
	return key, nil
}

// TupleSet is a deduplicated set of rows.
// Rows() returns members in first-occurrence order.
type TupleSet struct {
	idx  index
	rows []queryir.Row
}

func (*TupleSet) result() {}

// NewTupleSet creates an empty set.
func NewTupleSet() *TupleSet {
	return &TupleSet{idx: newIndex()}
}

// Tuples shapes rows into a TupleSet.
func Tuples(rows []queryir.Row) (*TupleSet, error) {
	s := NewTupleSet()
	for i, row := range rows {
		if _, err := s.Add(row); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
	}
	return s, nil
}

// Add inserts row and reports whether it was new.
func (s *TupleSet) Add(row queryir.Row) (bool, error) {
	key, err := canonicalKey(ir.IRArray(row))
	if err != nil {
		return false, err
	}
	if !s.idx.insert(key) {
		return false, nil
	}
	s.rows = append(s.rows, row)
	return true, nil
}

// Contains reports whether row is a member.
func (s *TupleSet) Contains(row queryir.Row) bool {
	key, err := canonicalKey(ir.IRArray(row))
	if err != nil {
		return false
	}
	return s.idx.find(key) >= 0
}

// Len returns the number of distinct rows.
func (s *TupleSet) Len() int { return len(s.rows) }

// Rows returns the members in first-occurrence order.
func (s *TupleSet) Rows() []queryir.Row { return s.rows }

// Values returns each member as an IRArray.
func (s *TupleSet) Values() ir.IRArray {
	out := make(ir.IRArray, len(s.rows))
	for i, r := range s.rows {
		out[i] = ir.IRArray(r)
	}
	return out
}

// KeyedMapSet is a deduplicated set of label→value maps.
type KeyedMapSet struct {
	labels []string
	idx    index
	maps   []ir.IRObject
}

func (*KeyedMapSet) result() {}

// NewKeyedMapSet creates an empty set whose rows are keyed by labels.
func NewKeyedMapSet(labels []string) *KeyedMapSet {
	return &KeyedMapSet{labels: labels, idx: newIndex()}
}

// KeyedMaps shapes rows into a KeyedMapSet.
func KeyedMaps(labels []string, rows []queryir.Row) (*KeyedMapSet, error) {
	s := NewKeyedMapSet(labels)
	for i, row := range rows {
		if _, err := s.Add(row); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
	}
	return s, nil
}

// Add converts row to a map and inserts it, reporting whether it was new.
func (s *KeyedMapSet) Add(row queryir.Row) (bool, error) {
	if len(row) != len(s.labels) {
		return false, fmt.Errorf("row has %d values but %d labels", len(row), len(s.labels))
	}
	m := make(ir.IRObject, len(row))
	for i, label := range s.labels {
		m[label] = row[i]
	}
	key, err := canonicalKey(m)
	if err != nil {
		return false, err
	}
	if !s.idx.insert(key) {
		return false, nil
	}
	s.maps = append(s.maps, m)
	return true, nil
}

// Contains reports whether m is a member.
func (s *KeyedMapSet) Contains(m ir.IRObject) bool {
	key, err := canonicalKey(m)
	if err != nil {
		return false
	}
	return s.idx.find(key) >= 0
}

// Labels returns the keys every member map carries.
func (s *KeyedMapSet) Labels() []string { return s.labels }

// Len returns the number of distinct maps.
func (s *KeyedMapSet) Len() int { return len(s.maps) }

// Maps returns the members in first-occurrence order.
func (s *KeyedMapSet) Maps() []ir.IRObject { return s.maps }

// Values returns each member map.
func (s *KeyedMapSet) Values() ir.IRArray {
	out := make(ir.IRArray, len(s.maps))
	for i, m := range s.maps {
		out[i] = m
	}
	return out
}

// RowList keeps rows exactly as the engine returned them.
type RowList []queryir.Row

func (RowList) result() {}

// Rows shapes rows into a RowList without copying values.
func Rows(rows []queryir.Row) RowList {
	if rows == nil {
		return RowList{}
	}
	return RowList(rows)
}

// Len returns the number of rows, duplicates included.
func (l RowList) Len() int { return len(l) }

// Values returns each row as an IRArray.
func (l RowList) Values() ir.IRArray {
	out := make(ir.IRArray, len(l))
	for i, r := range l {
		out[i] = ir.IRArray(r)
	}
	return out
}
