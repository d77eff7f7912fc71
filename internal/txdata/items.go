package txdata

import (
	"fmt"
	"strings"

	"github.com/roach88/datoms/internal/ir"
)

// Item is one element of transaction data.
//
// This is a sealed interface - only Entity, Op, PartitionDef and
// AttributeDef implement it.
type Item interface {
	item() // Marker method - seals interface to this package
}

// Ref names an entity inside transaction data.
//
// This is a sealed interface - only EntityID, TempID, LookupRef and Ident
// implement it.
type Ref interface {
	ref() // Marker method - seals interface to this package
	String() string
}

// EntityID is an existing entity id.
type EntityID ir.Eid

func (EntityID) ref() {}

func (id EntityID) String() string { return fmt.Sprintf("%d", int64(id)) }

// TempID is a placeholder resolved to a fresh (or upserted) entity id when
// the transaction commits. The same name always resolves to the same id
// within one transaction.
type TempID struct {
	Name      string
	Partition string
}

func (TempID) ref() {}

func (t TempID) String() string { return "#tempid[" + t.Partition + " " + t.Name + "]" }

// NewTempID returns a tempid in the :db.part/user partition.
func NewTempID(name string) TempID {
	return TempID{Name: name, Partition: ir.PartitionUser}
}

// TempIDIn returns a tempid in the named partition.
func TempIDIn(partition, name string) TempID {
	return TempID{Name: name, Partition: partition}
}

// LookupRef names the entity holding Value for a unique attribute.
type LookupRef struct {
	Attr  string
	Value any
}

func (LookupRef) ref() {}

func (l LookupRef) String() string { return fmt.Sprintf("[%s %v]", l.Attr, l.Value) }

// NewLookupRef builds a lookup ref, checking the attribute ident.
func NewLookupRef(attr string, value any) (LookupRef, error) {
	if err := checkIdent(attr); err != nil {
		return LookupRef{}, err
	}
	return LookupRef{Attr: attr, Value: value}, nil
}

// Ident names the entity whose :db/ident is the keyword.
type Ident string

func (Ident) ref() {}

func (i Ident) String() string { return string(i) }

// Op is a single assertion or retraction: [:db/add e a v] or
// [:db/retract e a v].
type Op struct {
	Added bool
	E     Ref
	A     string
	V     any
}

func (Op) item() {}

// Add asserts that e has value v for attribute a.
func Add(e Ref, a string, v any) Op {
	return Op{Added: true, E: e, A: a, V: v}
}

// Retract retracts value v of attribute a from e.
func Retract(e Ref, a string, v any) Op {
	return Op{Added: false, E: e, A: a, V: v}
}

// AttrValue is one attribute of an entity map. For cardinality-many
// attributes Value may be a []any of values.
type AttrValue struct {
	Attr  string
	Value any
}

// Entity is an entity map: every attribute value becomes an assertion
// about ID. Attribute order is kept.
type Entity struct {
	ID    Ref
	Attrs []AttrValue
}

func (Entity) item() {}

// NewEntity builds an entity map from alternating attribute idents and
// values.
//
//	txdata.NewEntity(txdata.NewTempID("joe"), ":person/name", "Joe", ":person/age", 30)
func NewEntity(id Ref, pairs ...any) (Entity, error) {
	if id == nil {
		return Entity{}, newError(ErrInvalidItem, "", "entity map needs an id")
	}
	if len(pairs)%2 != 0 {
		return Entity{}, newError(ErrInvalidItem, "", "entity map has odd argument count %d", len(pairs))
	}
	ent := Entity{ID: id, Attrs: make([]AttrValue, 0, len(pairs)/2)}
	for i := 0; i < len(pairs); i += 2 {
		attr, ok := pairs[i].(string)
		if !ok {
			return Entity{}, newError(ErrInvalidItem, "", "attribute %d is %T, not a keyword", i/2, pairs[i])
		}
		if err := checkIdent(attr); err != nil {
			return Entity{}, err
		}
		ent.Attrs = append(ent.Attrs, AttrValue{Attr: attr, Value: pairs[i+1]})
	}
	return ent, nil
}

// PartitionDef installs a new partition.
type PartitionDef struct {
	Ident string
}

func (PartitionDef) item() {}

// Partition defines a partition named by ident.
func Partition(ident string) (PartitionDef, error) {
	if err := checkIdent(ident); err != nil {
		return PartitionDef{}, err
	}
	return PartitionDef{Ident: ident}, nil
}

// AttributeDef installs a new attribute.
type AttributeDef struct {
	Ident       string
	ValueType   ir.ValueType
	Cardinality ir.Cardinality
	Unique      ir.Uniqueness
	Doc         string
}

func (AttributeDef) item() {}

// AttrOption configures an attribute definition.
type AttrOption func(*AttributeDef) error

// Cardinality sets the cardinality: "one" or "many" (or their
// :db.cardinality/ keywords).
func Cardinality(c string) AttrOption {
	return func(def *AttributeDef) error {
		card, ok := ir.ParseCardinality(c)
		if !ok {
			return newError(ErrInvalidCardinality, def.Ident, "unknown cardinality %q (want one or many)", c)
		}
		def.Cardinality = card
		return nil
	}
}

// Many is shorthand for Cardinality("many").
func Many() AttrOption {
	return Cardinality("many")
}

// Unique sets the uniqueness constraint: "value" or "identity" (or their
// :db.unique/ keywords).
func Unique(u string) AttrOption {
	return func(def *AttributeDef) error {
		unique, ok := ir.ParseUniqueness(u)
		if !ok {
			return newError(ErrInvalidUnique, def.Ident, "unknown uniqueness %q (want value or identity)", u)
		}
		def.Unique = unique
		return nil
	}
}

// Doc sets the attribute's documentation string.
func Doc(s string) AttrOption {
	return func(def *AttributeDef) error {
		def.Doc = s
		return nil
	}
}

// Attribute defines an attribute named by ident with the given value type
// ("string", ":db.type/string", ...). Cardinality defaults to one.
func Attribute(ident, valueType string, opts ...AttrOption) (AttributeDef, error) {
	if err := checkIdent(ident); err != nil {
		return AttributeDef{}, err
	}
	vt, ok := ir.ParseValueType(valueType)
	if !ok {
		return AttributeDef{}, newError(ErrInvalidValueType, ident, "unknown value type %q", valueType)
	}

	def := AttributeDef{Ident: ident, ValueType: vt, Cardinality: ir.CardinalityOne}
	for _, opt := range opts {
		if err := opt(&def); err != nil {
			return AttributeDef{}, err
		}
	}
	return def, nil
}

// checkIdent requires a namespaced keyword: ":ns/name".
func checkIdent(ident string) error {
	if !ir.IsKeyword(ident) {
		return newError(ErrInvalidIdentifier, ident, "must be a keyword such as :ns/name")
	}
	kw := ir.IRKeyword(ident)
	if kw.Namespace() == "" || kw.Name() == "" || strings.Count(ident, "/") != 1 {
		return newError(ErrInvalidIdentifier, ident, "must be a namespaced keyword such as :ns/name")
	}
	return nil
}

// AsRef interprets v as an entity reference: a Ref as is, an integer as an
// entity id, a keyword as an ident, a two-element list starting with a
// keyword as a lookup ref, and any other string as a tempid name.
func AsRef(v any) (Ref, bool) {
	switch r := v.(type) {
	case Ref:
		return r, true
	case string:
		if ir.IsKeyword(r) {
			return Ident(r), true
		}
		if r == "" {
			return nil, false
		}
		return NewTempID(r), true
	case []any:
		if len(r) == 2 {
			if attr, ok := r[0].(string); ok && ir.IsKeyword(attr) {
				return LookupRef{Attr: attr, Value: r[1]}, true
			}
		}
		return nil, false
	case ir.IRKeyword:
		return Ident(r), true
	case ir.IRInt:
		return EntityID(r), true
	}
	if n, ok := asInt64(v); ok {
		return EntityID(n), true
	}
	return nil, false
}
