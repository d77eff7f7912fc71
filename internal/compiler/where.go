package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/datoms/internal/ir"
	"github.com/roach88/datoms/internal/queryir"
)

// NormalizeWhere flattens clause maps into [entity attribute value] patterns.
//
// For each map in list order, the EntityKey entry supplies the entity term
// and every remaining entry, in map order, yields one pattern. Listing maps
// deliberately therefore controls clause order, which engines use as a
// search-order hint.
//
//	[{:db/id ?e, :a ?x}, {:db/id ?e, :b ?y}]  →  [?e :a ?x] [?e :b ?y]
func NormalizeWhere(maps []ClauseMap) ([]queryir.Pattern, error) {
	if len(maps) == 0 {
		return nil, newError(ErrMalformedClauseShape, "where", "where must contain at least one clause map")
	}

	var patterns []queryir.Pattern
	for i, m := range maps {
		field := fmt.Sprintf("where[%d]", i)

		entity, err := entityTerm(m, field)
		if err != nil {
			return nil, err
		}

		for _, e := range m {
			if e.Key == EntityKey {
				continue
			}
			attr, err := attributeTerm(e.Key)
			if err != nil {
				return nil, newError(ErrMalformedClauseShape, field, "attribute %q: %v", e.Key, err)
			}
			value, err := whereTerm(e.Value)
			if err != nil {
				return nil, newError(ErrMalformedClauseShape, field, "value of %s: %v", e.Key, err)
			}
			patterns = append(patterns, queryir.Pattern{E: entity, A: attr, V: value})
		}
	}
	return patterns, nil
}

// entityTerm extracts the single entity binding of a clause map.
func entityTerm(m ClauseMap, field string) (queryir.Term, error) {
	var (
		found bool
		raw   any
	)
	for _, e := range m {
		if e.Key != EntityKey {
			continue
		}
		if found {
			return nil, newError(ErrMalformedClauseShape, field, "entity binding %s given more than once", EntityKey)
		}
		found = true
		raw = e.Value
	}
	if !found {
		return nil, newError(ErrMalformedClauseShape, field, "clause map is missing its entity binding %s", EntityKey)
	}

	term, err := whereTerm(raw)
	if err != nil {
		return nil, newError(ErrMalformedClauseShape, field, "entity binding: %v", err)
	}
	return term, nil
}

// whereTerm parses an entity or value position. A plain Go string that
// starts with the sigil is refused: it would silently become a string
// literal and escape the symbol-usage checks.
func whereTerm(raw any) (queryir.Term, error) {
	if s, ok := raw.(string); ok && len(s) > 1 && s[0] == queryir.VariableSigil {
		return nil, fmt.Errorf("plain string %q looks like a variable; pass queryir.Sym(%q)", s, s)
	}
	return queryir.ParseTerm(raw)
}

// attributeTerm turns a map key into the attribute position of a pattern.
// Variable symbols stay variables; other keys become keywords, gaining a
// leading colon when written without one.
func attributeTerm(key string) (queryir.Term, error) {
	if key == "" {
		return nil, fmt.Errorf("empty attribute")
	}
	if key[0] == queryir.VariableSigil {
		return queryir.ParseTerm(queryir.Symbol(key))
	}
	if !strings.HasPrefix(key, ":") {
		key = ":" + key
	}
	if !ir.IsKeyword(key) {
		return nil, fmt.Errorf("not a keyword")
	}
	return queryir.Literal{Value: ir.IRKeyword(key)}, nil
}
