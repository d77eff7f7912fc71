// Package shape turns the raw rows an engine returns into one of three
// result shapes.
//
// POLICIES:
//
//	Policy             Result         Dedup   Order
//	------             ------         -----   -----
//	UniqueTupleSet     *TupleSet      yes     first occurrence
//	UniqueKeyedMapSet  *KeyedMapSet   yes     first occurrence
//	OrderedRowList     RowList        no      engine order
//
// UniqueTupleSet fits plain entity/attribute projections, where duplicate
// rows carry no information. UniqueKeyedMapSet converts each row into a map
// from label to value before dedup, so rows compare by map equality.
// OrderedRowList keeps every row exactly as returned; use it whenever a
// projection is a pull expression, whose results can repeat and whose order
// can matter.
//
// The shaper never second-guesses the caller's policy: any policy may be
// used with any document.
//
// Set membership is decided on the RFC 8785 canonical encoding of each row
// (see ir.MarshalCanonical), bucketed by its xxh3 hash. Rows containing
// IRNull cannot be canonically encoded and are rejected by the set shapes.
package shape
