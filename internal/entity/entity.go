// Package entity renders stored entities and datoms for people: attribute
// ids become idents and refs to named entities become keywords.
package entity

import (
	"context"
	"strconv"

	"github.com/cockroachdb/errors"

	"github.com/roach88/datoms/internal/ir"
	"github.com/roach88/datoms/internal/querysql"
	"github.com/roach88/datoms/internal/store"
)

// Reader is the read side of the store that introspection uses.
type Reader interface {
	Entid(ctx context.Context, db store.Snapshot, ident string) (ir.Eid, error)
	ResolveIdent(ctx context.Context, db store.Snapshot, eid ir.Eid) (string, bool, error)
	Pull(ctx context.Context, db store.Snapshot, eid ir.Eid, pattern []string) (ir.IRObject, error)
	Datoms(ctx context.Context, db store.Snapshot, index querysql.Index, components ...any) ([]ir.Datom, error)
	Attributes() []store.Attr
}

var _ Reader = (*store.Store)(nil)

// Resolve parses an entity reference typed by a person: a decimal entity id
// or a keyword ident.
func Resolve(ctx context.Context, r Reader, db store.Snapshot, ref string) (ir.Eid, error) {
	if ir.IsKeyword(ref) {
		return r.Entid(ctx, db, ref)
	}
	eid, err := strconv.ParseInt(ref, 10, 64)
	if err != nil {
		return 0, errors.Newf("%q is neither an entity id nor a keyword ident", ref)
	}
	return eid, nil
}

// Touch returns every attribute of eid, with ref values that point at named
// entities rendered as their idents.
func Touch(ctx context.Context, r Reader, db store.Snapshot, eid ir.Eid) (ir.IRObject, error) {
	obj, err := r.Pull(ctx, db, eid, []string{"*"})
	if err != nil {
		return nil, err
	}

	refs := refAttributes(r)
	for k, v := range obj {
		if !refs[k] {
			continue
		}
		switch val := v.(type) {
		case ir.IRInt:
			obj[k], err = identOr(ctx, r, db, val)
		case ir.IRArray:
			out := make(ir.IRArray, len(val))
			for i, elem := range val {
				if n, ok := elem.(ir.IRInt); ok {
					out[i], err = identOr(ctx, r, db, n)
				} else {
					out[i] = elem
				}
				if err != nil {
					break
				}
			}
			obj[k] = out
		}
		if err != nil {
			return nil, err
		}
	}
	return obj, nil
}

func refAttributes(r Reader) map[string]bool {
	refs := make(map[string]bool)
	for _, a := range r.Attributes() {
		if a.ValueType == ir.TypeRef {
			refs[a.Ident] = true
		}
	}
	return refs
}

func identOr(ctx context.Context, r Reader, db store.Snapshot, eid ir.IRInt) (ir.IRValue, error) {
	ident, ok, err := r.ResolveIdent(ctx, db, int64(eid))
	if err != nil {
		return nil, err
	}
	if ok {
		return ir.IRKeyword(ident), nil
	}
	return eid, nil
}

// Fact is a datom with its attribute named.
type Fact struct {
	E     ir.Eid     `json:"e"`
	A     string     `json:"a"`
	V     ir.IRValue `json:"v"`
	Tx    ir.Eid     `json:"tx"`
	Added bool       `json:"added"`
}

func (f Fact) String() string {
	op := "+"
	if !f.Added {
		op = "-"
	}
	return "[" + strconv.FormatInt(f.E, 10) + " " + f.A + " " + ir.Format(f.V) + " " + strconv.FormatInt(f.Tx, 10) + " " + op + "]"
}

// Facts names the attribute of each datom. Attributes the schema does not
// know keep their numeric id.
func Facts(r Reader, datoms []ir.Datom) []Fact {
	names := make(map[ir.Eid]string)
	for _, a := range r.Attributes() {
		names[a.ID] = a.Ident
	}
	out := make([]Fact, len(datoms))
	for i, d := range datoms {
		name, ok := names[d.A]
		if !ok {
			name = strconv.FormatInt(d.A, 10)
		}
		out[i] = Fact{E: d.E, A: name, V: d.V, Tx: d.Tx, Added: d.Added}
	}
	return out
}

// AttrInfo describes an installed attribute.
type AttrInfo struct {
	ID          ir.Eid `json:"id"`
	Ident       string `json:"ident"`
	ValueType   string `json:"valueType"`
	Cardinality string `json:"cardinality"`
	Unique      string `json:"unique,omitempty"`
	Doc         string `json:"doc,omitempty"`
}

// Schema lists the installed attributes in entity id order. System
// attributes are left out unless includeSystem is set.
func Schema(r Reader, includeSystem bool) []AttrInfo {
	var out []AttrInfo
	for _, a := range r.Attributes() {
		if !includeSystem && a.ID < ir.MakeEid(ir.PartDB, ir.FirstSchemaSeq) {
			continue
		}
		info := AttrInfo{
			ID:          a.ID,
			Ident:       a.Ident,
			ValueType:   a.ValueType.Ident(),
			Cardinality: a.Cardinality.Ident(),
			Doc:         a.Doc,
		}
		if a.Unique != ir.UniqueNone {
			info.Unique = a.Unique.Ident()
		}
		out = append(out, info)
	}
	return out
}
