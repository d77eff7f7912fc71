package ir

import "fmt"

// Eid is the integer identifier of an entity.
type Eid = int64

// Datom is a single fact: entity, attribute, value, transaction and whether
// the fact was asserted (true) or retracted (false).
//
// A is the attribute's entity id; the store resolves it to its keyword ident
// on request.
type Datom struct {
	E     Eid     `json:"e"`
	A     Eid     `json:"a"`
	V     IRValue `json:"v"`
	Tx    Eid     `json:"tx"`
	Added bool    `json:"added"`
}

// IR returns the datom as an IRArray [e a v tx added], the shape used for
// canonical hashing and printing.
func (d Datom) IR() IRArray {
	return IRArray{IRInt(d.E), IRInt(d.A), d.V, IRInt(d.Tx), IRBool(d.Added)}
}

// String renders the datom as #datom[e a v tx added].
func (d Datom) String() string {
	return fmt.Sprintf("#datom[%d %d %s %d %t]", d.E, d.A, Format(d.V), d.Tx, d.Added)
}
