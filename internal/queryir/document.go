package queryir

import (
	"fmt"
	"strings"

	"github.com/roach88/datoms/internal/ir"
)

// Document is the canonical find/in/where form handed to an engine.
//
// Semantics:
//
//	[:find <Find...> :in <In...> :where <Where...>]
//
// In is positionally aligned with the argument list passed next to the
// document. Where holds data patterns first (in authoring order), then the
// wrapped predicates, then rule invocations.
type Document struct {
	Find  []Projection
	In    []Symbol
	Where []Clause
}

// String renders the document in EDN form on one line.
func (d *Document) String() string {
	var sb strings.Builder
	sb.WriteString("[:find")
	for _, p := range d.Find {
		sb.WriteByte(' ')
		sb.WriteString(p.String())
	}
	if len(d.In) > 0 {
		sb.WriteString(" :in")
		for _, s := range d.In {
			sb.WriteByte(' ')
			sb.WriteString(string(s))
		}
	}
	sb.WriteString(" :where")
	for _, c := range d.Where {
		sb.WriteByte(' ')
		sb.WriteString(c.String())
	}
	sb.WriteByte(']')
	return sb.String()
}

// IR returns the document as an IRObject whose entries are EDN strings.
// Clauses render through their String form, so literal strings stay quoted
// and can never collide with variables.
func (d *Document) IR() ir.IRObject {
	find := make(ir.IRArray, len(d.Find))
	for i, p := range d.Find {
		find[i] = ir.IRString(p.String())
	}
	in := make(ir.IRArray, len(d.In))
	for i, s := range d.In {
		in[i] = ir.IRString(string(s))
	}
	where := make(ir.IRArray, len(d.Where))
	for i, c := range d.Where {
		where[i] = ir.IRString(c.String())
	}
	return ir.IRObject{"find": find, "in": in, "where": where}
}

// Canonical returns the RFC 8785 encoding of the document.
func (d *Document) Canonical() ([]byte, error) {
	out, err := ir.MarshalCanonical(d.IR())
	if err != nil {
		return nil, fmt.Errorf("canonical document: %w", err)
	}
	return out, nil
}

// ID returns the content-addressed identity of the document.
func (d *Document) ID() (string, error) {
	canonical, err := d.Canonical()
	if err != nil {
		return "", err
	}
	return ir.DocumentID(canonical), nil
}

// Patterns returns only the data patterns of the where list.
func (d *Document) Patterns() []Pattern {
	var out []Pattern
	for _, c := range d.Where {
		if p, ok := c.(Pattern); ok {
			out = append(out, p)
		}
	}
	return out
}
