package ir

import "fmt"

// ValueType is the declared type of an attribute's values. The numeric code
// is what the store writes next to every value.
type ValueType int

const (
	TypeRef ValueType = iota
	TypeString
	TypeLong
	TypeBoolean
	TypeKeyword
	TypeUUID
	TypeInstant
)

var valueTypeIdents = map[ValueType]string{
	TypeRef:     ":db.type/ref",
	TypeString:  ":db.type/string",
	TypeLong:    ":db.type/long",
	TypeBoolean: ":db.type/boolean",
	TypeKeyword: ":db.type/keyword",
	TypeUUID:    ":db.type/uuid",
	TypeInstant: ":db.type/instant",
}

// ValueTypes lists every supported value type in code order.
var ValueTypes = []ValueType{TypeRef, TypeString, TypeLong, TypeBoolean, TypeKeyword, TypeUUID, TypeInstant}

// Ident returns the keyword naming the value type, e.g. ":db.type/string".
func (t ValueType) Ident() string {
	if s, ok := valueTypeIdents[t]; ok {
		return s
	}
	return fmt.Sprintf(":db.type/unknown-%d", int(t))
}

func (t ValueType) String() string {
	return t.Ident()
}

// ParseValueType accepts ":db.type/string" or the bare "string".
func ParseValueType(s string) (ValueType, bool) {
	for t, ident := range valueTypeIdents {
		if s == ident || ":db.type/"+s == ident {
			return t, true
		}
	}
	return 0, false
}

// Cardinality is how many values an entity may hold for an attribute.
type Cardinality int

const (
	CardinalityOne Cardinality = iota
	CardinalityMany
)

func (c Cardinality) Ident() string {
	if c == CardinalityMany {
		return ":db.cardinality/many"
	}
	return ":db.cardinality/one"
}

// ParseCardinality accepts ":db.cardinality/one" or the bare "one".
func ParseCardinality(s string) (Cardinality, bool) {
	switch s {
	case ":db.cardinality/one", "one":
		return CardinalityOne, true
	case ":db.cardinality/many", "many":
		return CardinalityMany, true
	}
	return 0, false
}

// Uniqueness constrains attribute values across entities.
type Uniqueness int

const (
	UniqueNone Uniqueness = iota
	// UniqueValue rejects a second entity asserting the same value.
	UniqueValue
	// UniqueIdentity also lets a tempid resolve to the entity already
	// holding the value (upsert).
	UniqueIdentity
)

func (u Uniqueness) Ident() string {
	switch u {
	case UniqueValue:
		return ":db.unique/value"
	case UniqueIdentity:
		return ":db.unique/identity"
	default:
		return ""
	}
}

// ParseUniqueness accepts ":db.unique/value", ":db.unique/identity" or the
// bare "value" / "identity".
func ParseUniqueness(s string) (Uniqueness, bool) {
	switch s {
	case ":db.unique/value", "value":
		return UniqueValue, true
	case ":db.unique/identity", "identity":
		return UniqueIdentity, true
	}
	return UniqueNone, false
}

// Entity ids are partition index << PartitionShift | sequence.
const PartitionShift = 42

// Built-in partition indexes.
const (
	PartDB   int64 = 0
	PartTx   int64 = 1
	PartUser int64 = 2
)

// MakeEid composes an entity id from a partition index and sequence number.
func MakeEid(part, seq int64) Eid {
	return part<<PartitionShift | seq
}

// PartitionOf returns the partition index of an entity id.
func PartitionOf(e Eid) int64 {
	return e >> PartitionShift
}

// SequenceOf returns the in-partition sequence number of an entity id.
func SequenceOf(e Eid) int64 {
	return e & (1<<PartitionShift - 1)
}

// TxEid returns the entity id of transaction t.
func TxEid(t int64) Eid {
	return MakeEid(PartTx, t)
}

// System entities installed by the bootstrap transaction. They live in the
// :db.part/db partition with fixed sequence numbers.
const (
	EidPartDB           Eid = 0
	EidIdent            Eid = 1
	EidInstallPartition Eid = 2
	EidInstallAttribute Eid = 3
	EidValueType        Eid = 4
	EidCardinality      Eid = 5
	EidUnique           Eid = 6
	EidDoc              Eid = 7
	EidTxInstant        Eid = 8
	EidPartTx           Eid = 9
	EidPartUser         Eid = 10
	EidTypeBase         Eid = 20 // plus ValueType
	EidCardinalityOne   Eid = 30
	EidCardinalityMany  Eid = 31
	EidUniqueValue      Eid = 35
	EidUniqueIdentity   Eid = 36
)

// FirstSchemaSeq is the first :db.part/db sequence number handed to
// user-installed attributes and partitions.
const FirstSchemaSeq int64 = 64

// System idents.
const (
	IdentAttribute       = ":db/ident"
	TxInstantAttribute   = ":db/txInstant"
	InstallPartition     = ":db.install/partition"
	InstallAttribute     = ":db.install/attribute"
	ValueTypeAttribute   = ":db/valueType"
	CardinalityAttribute = ":db/cardinality"
	UniqueAttribute      = ":db/unique"
	DocAttribute         = ":db/doc"
	PartitionDB          = ":db.part/db"
	PartitionTx          = ":db.part/tx"
	PartitionUser        = ":db.part/user"
)

// TypeEid returns the system entity naming a value type.
func TypeEid(t ValueType) Eid {
	return EidTypeBase + Eid(t)
}

// CardinalityEid returns the system entity naming a cardinality.
func CardinalityEid(c Cardinality) Eid {
	if c == CardinalityMany {
		return EidCardinalityMany
	}
	return EidCardinalityOne
}

// UniqueEid returns the system entity naming a uniqueness constraint, or 0
// for UniqueNone.
func UniqueEid(u Uniqueness) Eid {
	switch u {
	case UniqueValue:
		return EidUniqueValue
	case UniqueIdentity:
		return EidUniqueIdentity
	default:
		return 0
	}
}
