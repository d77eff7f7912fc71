package store

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/cockroachdb/errors"

	"github.com/roach88/datoms/internal/ir"
	"github.com/roach88/datoms/internal/querysql"
)

// Attr is an installed attribute.
type Attr struct {
	ID          ir.Eid
	Ident       string
	ValueType   ir.ValueType
	Cardinality ir.Cardinality
	Unique      ir.Uniqueness
	Doc         string
}

// rows returns the datoms that install the attribute.
func (a Attr) rows(tx ir.Eid) []datomRow {
	row := func(e, attr ir.Eid, v any, vt ir.ValueType) datomRow {
		return datomRow{E: e, A: attr, V: v, VT: vt, Tx: tx, Added: true}
	}
	rows := []datomRow{
		row(a.ID, ir.EidIdent, a.Ident, ir.TypeKeyword),
		row(a.ID, ir.EidValueType, ir.TypeEid(a.ValueType), ir.TypeRef),
		row(a.ID, ir.EidCardinality, ir.CardinalityEid(a.Cardinality), ir.TypeRef),
	}
	if a.Unique != ir.UniqueNone {
		rows = append(rows, row(a.ID, ir.EidUnique, ir.UniqueEid(a.Unique), ir.TypeRef))
	}
	if a.Doc != "" {
		rows = append(rows, row(a.ID, ir.EidDoc, a.Doc, ir.TypeString))
	}
	return append(rows, row(ir.EidPartDB, ir.EidInstallAttribute, a.ID, ir.TypeRef))
}

// sameDefinition reports whether b installs the same attribute as a.
func (a Attr) sameDefinition(b Attr) bool {
	return a.Ident == b.Ident && a.ValueType == b.ValueType &&
		a.Cardinality == b.Cardinality && a.Unique == b.Unique && a.Doc == b.Doc
}

// schema indexes installed attributes. A schema is never mutated once
// published to the Store; Transact works on a clone.
type schema struct {
	byID    map[ir.Eid]*Attr
	byIdent map[string]*Attr
}

func newSchema() *schema {
	return &schema{byID: make(map[ir.Eid]*Attr), byIdent: make(map[string]*Attr)}
}

func (s *schema) clone() *schema {
	return &schema{byID: maps.Clone(s.byID), byIdent: maps.Clone(s.byIdent)}
}

func (s *schema) add(a *Attr) {
	s.byID[a.ID] = a
	s.byIdent[a.Ident] = a
}

// Attribute returns the installed attribute named by ident.
func (s *Store) Attribute(ident string) (Attr, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.schema.byIdent[ident]
	if !ok {
		return Attr{}, false
	}
	return *a, true
}

// Attributes returns every installed attribute ordered by entity id.
func (s *Store) Attributes() []Attr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Attr, 0, len(s.schema.byID))
	for _, a := range s.schema.byID {
		out = append(out, *a)
	}
	sortAttrs(out)
	return out
}

func (s *Store) attributeByID(id ir.Eid) (*Attr, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.schema.byID[id]
	return a, ok
}

// loadSchemaSQL selects the definition datoms of every installed attribute.
var loadSchemaSQL = querysql.FactsCTE + fmt.Sprintf(
	` SELECT f.e, f.a, f.v FROM facts f`+
		` WHERE f.e IN (SELECT x.v FROM facts x WHERE x.e = %d AND x.a = %d AND x.vt = %d)`+
		` AND f.a IN (%d, %d, %d, %d, %d)`+
		` ORDER BY f.e ASC, f.a ASC`,
	ir.EidPartDB, ir.EidInstallAttribute, ir.TypeRef,
	ir.EidIdent, ir.EidValueType, ir.EidCardinality, ir.EidUnique, ir.EidDoc)

// loadSchema reads attribute definitions as of basis.
func loadSchema(ctx context.Context, q querier, basis ir.Eid) (*schema, error) {
	rows, err := q.QueryContext(ctx, loadSchemaSQL, basis, basis)
	if err != nil {
		return nil, errors.Wrap(err, "load schema")
	}
	defer rows.Close()

	sch := newSchema()
	attrs := make(map[ir.Eid]*Attr)
	var order []ir.Eid
	for rows.Next() {
		var e, a ir.Eid
		var v any
		if err := rows.Scan(&e, &a, &v); err != nil {
			return nil, errors.Wrap(err, "load schema: scan")
		}
		attr, ok := attrs[e]
		if !ok {
			attr = &Attr{ID: e}
			attrs[e] = attr
			order = append(order, e)
		}
		if err := attr.set(a, v); err != nil {
			return nil, errors.Wrapf(err, "load schema: attribute %d", e)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "load schema")
	}

	for _, e := range order {
		if attrs[e].Ident == "" {
			return nil, errors.Newf("load schema: attribute %d has no ident", e)
		}
		sch.add(attrs[e])
	}
	return sch, nil
}

// set applies one definition datom.
func (a *Attr) set(attr ir.Eid, v any) error {
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	switch attr {
	case ir.EidIdent:
		s, ok := v.(string)
		if !ok {
			return errors.Newf("ident is %T", v)
		}
		a.Ident = s
	case ir.EidDoc:
		s, ok := v.(string)
		if !ok {
			return errors.Newf("doc is %T", v)
		}
		a.Doc = s
	default:
		ref, ok := v.(int64)
		if !ok {
			return errors.Newf("definition value is %T", v)
		}
		switch attr {
		case ir.EidValueType:
			a.ValueType = ir.ValueType(ref - ir.EidTypeBase)
		case ir.EidCardinality:
			a.Cardinality = ir.CardinalityOne
			if ref == ir.EidCardinalityMany {
				a.Cardinality = ir.CardinalityMany
			}
		case ir.EidUnique:
			switch ref {
			case ir.EidUniqueValue:
				a.Unique = ir.UniqueValue
			case ir.EidUniqueIdentity:
				a.Unique = ir.UniqueIdentity
			}
		}
	}
	return nil
}

func sortAttrs(attrs []Attr) {
	slices.SortFunc(attrs, func(a, b Attr) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
}
