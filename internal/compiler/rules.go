package compiler

import (
	"fmt"

	"github.com/roach88/datoms/internal/queryir"
)

// RuleDef is a rule definition in the same shorthand as a Context:
//
//	compiler.RuleDef{
//	    Head:  []any{"adult", queryir.Sym("?p")},
//	    Where: []compiler.ClauseMap{compiler.M(":db/id", queryir.Sym("?p"), ":person/age", queryir.Sym("?a"))},
//	    Preds: []any{[]any{">=", queryir.Sym("?a"), 18}},
//	}
type RuleDef struct {
	Head  []any
	Where []ClauseMap
	Preds []any
	Rules []any
}

// BuildRule compiles a rule definition. The body is normalized exactly like
// a query's where/preds/rules sections. Parameters must be regular
// variables.
func BuildRule(def RuleDef) (queryir.Rule, error) {
	name, rawParams, err := splitCall(def.Head)
	if err != nil {
		return queryir.Rule{}, newError(ErrMalformedClauseShape, "head", "%v", err)
	}

	params := make([]queryir.Variable, 0, len(rawParams))
	for i, raw := range rawParams {
		term, err := queryir.ParseTerm(raw)
		if err != nil {
			return queryir.Rule{}, newError(ErrMalformedClauseShape, fmt.Sprintf("head[%d]", i+1), "%v", err)
		}
		v, ok := term.(queryir.Variable)
		if !ok {
			return queryir.Rule{}, newError(ErrMalformedClauseShape, fmt.Sprintf("head[%d]", i+1),
				"rule %s parameter %s must be a regular variable", name, term)
		}
		params = append(params, v)
	}

	patterns, err := NormalizeWhere(def.Where)
	if err != nil {
		return queryir.Rule{}, err
	}
	preds, err := parsePreds(def.Preds)
	if err != nil {
		return queryir.Rule{}, err
	}
	calls, err := parseRules(def.Rules)
	if err != nil {
		return queryir.Rule{}, err
	}

	body := Assemble(patterns, nil, nil, nil, preds, calls).Document.Where
	return queryir.Rule{Name: name, Params: params, Clauses: body}, nil
}

// BuildRuleSet compiles every definition, in order.
func BuildRuleSet(defs ...RuleDef) (queryir.RuleSet, error) {
	rs := make(queryir.RuleSet, 0, len(defs))
	for i, def := range defs {
		r, err := BuildRule(def)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		rs = append(rs, r)
	}
	return rs, nil
}

// Bind replaces the argument aligned with the :in symbol name. It reports
// whether name is one of the document's inputs.
//
// Query files carry placeholder sources for $ and %; callers bind the live
// database snapshot and rule set after loading.
func (c *Compiled) Bind(name queryir.Symbol, value any) bool {
	for i, in := range c.Document.In {
		if in == name {
			c.Args[i] = value
			return true
		}
	}
	return false
}
