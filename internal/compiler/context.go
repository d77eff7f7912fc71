package compiler

import (
	"fmt"

	"github.com/roach88/datoms/internal/queryir"
)

// EntityKey is the reserved ClauseMap key that names the entity binding.
const EntityKey = ":db/id"

// Context is a query description in authoring shorthand.
//
// Example:
//
//	compiler.Context{
//	    Let:   []any{queryir.SourceSymbol, db},
//	    Yield: []any{queryir.Sym("?name"), queryir.Sym("?age")},
//	    Where: []compiler.ClauseMap{
//	        compiler.M(":db/id", queryir.Sym("?e"), ":person/name", queryir.Sym("?name")),
//	        compiler.M(":db/id", queryir.Sym("?e"), ":person/age", queryir.Sym("?age")),
//	    },
//	    Preds: []any{[]any{">=", queryir.Sym("?age"), 18}},
//	}
//
// A Context is request-scoped: build one per query and discard it after
// compilation.
type Context struct {
	// Let alternates binding names and source values:
	// name, value, name, value, ... Names are symbols ($, %, ?var).
	Let []any

	// Yield lists projections: variable symbols, *queryir.Pull values, or
	// []any{"pull", ?var, []any{attrs...}}.
	Yield []any

	// Where lists attribute-value maps. Each map names its entity with
	// EntityKey; every other entry becomes one [entity attribute value]
	// pattern, in entry order, across maps in list order.
	Where []ClauseMap

	// Preds lists predicates: queryir.Predicate values or
	// []any{fn, args...}.
	Preds []any

	// Rules lists rule invocations: queryir.RuleCall values or
	// []any{name, args...}.
	Rules []any
}

// Entry is one key/value pair of a ClauseMap.
type Entry struct {
	Key   string
	Value any
}

// ClauseMap is an ordered attribute→term map. Order is significant: it is
// the order the resulting patterns appear in the where list.
type ClauseMap []Entry

// M builds a ClauseMap from alternating keys and values.
// It panics on an odd argument count or a non-string key, like other
// literal-construction helpers.
func M(pairs ...any) ClauseMap {
	if len(pairs)%2 != 0 {
		panic(fmt.Sprintf("compiler.M: odd argument count %d", len(pairs)))
	}
	m := make(ClauseMap, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			if sym, isSym := pairs[i].(queryir.Symbol); isSym {
				key = string(sym)
			} else {
				panic(fmt.Sprintf("compiler.M: key %d is %T, not a string", i/2, pairs[i]))
			}
		}
		m = append(m, Entry{Key: key, Value: pairs[i+1]})
	}
	return m
}

// Get returns the value stored under key.
func (m ClauseMap) Get(key string) (any, bool) {
	for _, e := range m {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

// Options controls compilation. It is passed explicitly to every entry
// point; the compiler reads no process-wide settings.
type Options struct {
	// Strict enables the symbol-usage checks (orphan variables and overused
	// wildcards). Structural checks always run.
	Strict bool
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{Strict: true}
}

// WithInput returns a copy of qc whose let source for name is value. It
// reports whether let binds name; when it does not, qc is returned as is.
//
// Query files name $ and % with placeholder sources; callers swap in the
// live snapshot and rule set before compiling.
func (qc Context) WithInput(name queryir.Symbol, value any) (Context, bool) {
	for i := 0; i+1 < len(qc.Let); i += 2 {
		if sym, ok := qc.Let[i].(queryir.Symbol); ok && sym == name {
			let := make([]any, len(qc.Let))
			copy(let, qc.Let)
			let[i+1] = value
			qc.Let = let
			return qc, true
		}
	}
	return qc, false
}
