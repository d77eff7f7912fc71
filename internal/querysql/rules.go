package querysql

import (
	"fmt"
	"slices"

	"github.com/roach88/datoms/internal/queryir"
)

// expand inlines rule invocations, returning one clause list per branch.
// Rule bodies are renamed so their private variables cannot collide with
// the caller's. Recursive rules are rejected: SQL branches are expanded
// eagerly and recursion would not terminate.
func (c *SQLCompiler) expand(clauses []queryir.Clause, stack []string) ([][]queryir.Clause, error) {
	branches := [][]queryir.Clause{nil}

	for _, clause := range clauses {
		call, ok := clause.(queryir.RuleCall)
		if !ok {
			for i := range branches {
				branches[i] = append(branches[i], clause)
			}
			continue
		}

		alternatives, err := c.expandCall(call, stack)
		if err != nil {
			return nil, err
		}

		next := make([][]queryir.Clause, 0, len(branches)*len(alternatives))
		for _, prefix := range branches {
			for _, alt := range alternatives {
				merged := make([]queryir.Clause, 0, len(prefix)+len(alt))
				merged = append(merged, prefix...)
				merged = append(merged, alt...)
				next = append(next, merged)
			}
		}
		if len(next) > MaxBranches {
			return nil, fmt.Errorf("rule expansion produces more than %d branches", MaxBranches)
		}
		branches = next
	}
	return branches, nil
}

// expandCall returns the expanded bodies of every definition of call.
func (c *SQLCompiler) expandCall(call queryir.RuleCall, stack []string) ([][]queryir.Clause, error) {
	if slices.Contains(stack, call.Name) {
		return nil, fmt.Errorf("rule %s is recursive (%v); recursive rules are not supported", call.Name, append(stack, call.Name))
	}

	defs := c.Rules.Lookup(call.Name)
	if len(defs) == 0 {
		return nil, fmt.Errorf("rule %s is not defined in the bound rule set", call.Name)
	}

	var out [][]queryir.Clause
	for _, def := range defs {
		if len(def.Params) != len(call.Args) {
			return nil, fmt.Errorf("rule %s takes %d arguments, called with %d", call.Name, len(def.Params), len(call.Args))
		}

		body := c.rename(def, call.Args)
		sub, err := c.expand(body, append(slices.Clone(stack), call.Name))
		if err != nil {
			return nil, err
		}
		out = append(out, sub...)
	}
	return out, nil
}

// rename substitutes call arguments for parameters and gives every other
// body variable a fresh name.
func (c *SQLCompiler) rename(def queryir.Rule, args []queryir.Term) []queryir.Clause {
	c.fresh++
	subst := make(map[string]queryir.Term, len(def.Params))
	for i, p := range def.Params {
		subst[p.Name] = args[i]
	}

	term := func(t queryir.Term) queryir.Term {
		switch v := t.(type) {
		case queryir.Variable:
			if s, ok := subst[v.Name]; ok {
				return s
			}
			renamed := queryir.Variable{Name: fmt.Sprintf("?%s__%s%d", v.Name[1:], def.Name, c.fresh)}
			subst[v.Name] = renamed
			return renamed
		case queryir.WildcardVariable:
			if s, ok := subst[v.Name]; ok {
				return s
			}
			base := queryir.Label(v.Name)
			renamed := queryir.WildcardVariable{Name: fmt.Sprintf("?%s__%s%d*", base, def.Name, c.fresh)}
			subst[v.Name] = renamed
			return renamed
		default:
			return t
		}
	}
	terms := func(ts []queryir.Term) []queryir.Term {
		out := make([]queryir.Term, len(ts))
		for i, t := range ts {
			out[i] = term(t)
		}
		return out
	}

	body := make([]queryir.Clause, 0, len(def.Clauses))
	for _, clause := range def.Clauses {
		switch cl := clause.(type) {
		case queryir.Pattern:
			body = append(body, queryir.Pattern{E: term(cl.E), A: term(cl.A), V: term(cl.V)})
		case queryir.PredicateClause:
			body = append(body, queryir.PredicateClause{Predicate: queryir.Predicate{Fn: cl.Predicate.Fn, Args: terms(cl.Predicate.Args)}})
		case queryir.RuleCall:
			body = append(body, queryir.RuleCall{Name: cl.Name, Args: terms(cl.Args)})
		default:
			body = append(body, clause)
		}
	}
	return body
}
