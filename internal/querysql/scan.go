package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/datoms/internal/ir"
	"github.com/roach88/datoms/internal/queryir"
)

// Index names a sort order over the facts view.
type Index string

const (
	EAVT Index = ":eavt"
	AEVT Index = ":aevt"
	AVET Index = ":avet"
	VAET Index = ":vaet"
)

// indexColumns lists each index's columns in sort order.
var indexColumns = map[Index][]string{
	EAVT: {"e", "a", "v", "tx"},
	AEVT: {"a", "e", "v", "tx"},
	AVET: {"a", "v", "e", "tx"},
	VAET: {"v", "a", "e", "tx"},
}

// ParseIndex accepts ":eavt" or the bare "eavt".
func ParseIndex(s string) (Index, error) {
	if !strings.HasPrefix(s, ":") {
		s = ":" + s
	}
	idx := Index(s)
	if _, ok := indexColumns[idx]; !ok {
		return "", fmt.Errorf("unknown index %q: must be one of :eavt, :aevt, :avet, :vaet", s)
	}
	return idx, nil
}

// CompileScan returns SQL selecting e, a, v, vt, tx from the facts view in
// index order. components constrain the leading index columns positionally,
// as with (datoms db :avet :person/email "joe@example.com"). Keyword
// components in entity or attribute position are resolved as idents.
//
// :vaet only covers ref-typed values.
func (c *SQLCompiler) CompileScan(index Index, components []ir.IRValue) (string, []any, error) {
	cols, ok := indexColumns[index]
	if !ok {
		return "", nil, fmt.Errorf("unknown index %q", index)
	}
	if len(components) > len(cols) {
		return "", nil, fmt.Errorf("index %s takes at most %d components, got %d", index, len(cols), len(components))
	}

	b := &branch{vars: make(map[string]binding)}
	if index == VAET {
		b.cond(fmt.Sprintf("f.vt = %d", ir.TypeRef))
	}

	for i, comp := range components {
		col := "f." + cols[i]
		switch cols[i] {
		case "e", "a":
			switch v := comp.(type) {
			case ir.IRInt:
				b.cond(col+" = ?", int64(v))
			case ir.IRKeyword:
				b.cond(col+" = "+identSubquery, string(v))
			default:
				return "", nil, fmt.Errorf("component %d: %s is not an entity id or ident", i, ir.Format(comp))
			}
		case "v":
			if index == VAET {
				switch v := comp.(type) {
				case ir.IRInt:
					b.cond("f.v = ?", int64(v))
				case ir.IRKeyword:
					b.cond("f.v = "+identSubquery, string(v))
				default:
					return "", nil, fmt.Errorf("component %d: :vaet values must be entity ids or idents", i)
				}
				continue
			}
			if err := c.constrainValue(b, literal(comp), "f.v", "f.vt"); err != nil {
				return "", nil, fmt.Errorf("component %d: %w", i, err)
			}
		case "tx":
			v, ok := comp.(ir.IRInt)
			if !ok {
				return "", nil, fmt.Errorf("component %d: transaction must be an entity id", i)
			}
			b.cond("f.tx = ?", int64(v))
		}
	}

	var sb strings.Builder
	sb.WriteString(FactsCTE)
	sb.WriteString(" SELECT f.e, f.a, f.v, f.vt, f.tx FROM facts f")
	if len(b.where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(b.where, " AND "))
	}
	sb.WriteString(" ORDER BY ")
	order := make([]string, len(cols))
	for i, col := range cols {
		if col == "v" {
			order[i] = "f.vt ASC, f.v COLLATE BINARY ASC"
			continue
		}
		order[i] = "f." + col + " ASC"
	}
	sb.WriteString(strings.Join(order, ", "))

	params := append([]any{c.BasisTx, c.BasisTx}, b.whereParams...)
	return sb.String(), params, nil
}

func literal(v ir.IRValue) queryir.Term {
	return queryir.Literal{Value: v}
}
