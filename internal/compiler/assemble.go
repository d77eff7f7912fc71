package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/datoms/internal/queryir"
)

// Compiled is a canonical query document plus the positional arguments
// aligned with its :in list.
type Compiled struct {
	Document *queryir.Document
	Args     []any
}

// Labels derives keyed-map labels from the find list.
func (c *Compiled) Labels() ([]string, error) {
	return Labels(c.Document.Find)
}

// Assemble builds the canonical document:
//
//	find  := projections, untransformed
//	in    := let names
//	where := patterns ++ [predicate]... ++ rule calls
//
// Args are the let sources in let order. Assemble is pure data
// transformation and performs no validation.
func Assemble(where []queryir.Pattern, letNames []queryir.Symbol, letSources []any, find []queryir.Projection, preds []queryir.Predicate, rules []queryir.RuleCall) *Compiled {
	clauses := make([]queryir.Clause, 0, len(where)+len(preds)+len(rules))
	for _, p := range where {
		clauses = append(clauses, p)
	}
	for _, p := range preds {
		clauses = append(clauses, queryir.PredicateClause{Predicate: p})
	}
	for _, r := range rules {
		clauses = append(clauses, r)
	}

	return &Compiled{
		Document: &queryir.Document{
			Find:  find,
			In:    letNames,
			Where: clauses,
		},
		Args: letSources,
	}
}

// Labels strips the sigil from each projection variable: ?eid → eid.
//
// Every projection must be a plain variable. Pull expressions have no
// single label, and two projections with the same label (?x and ?x*, or
// ?x twice) would collide in one map; both are rejected with
// ErrInvalidProjection.
func Labels(find []queryir.Projection) ([]string, error) {
	labels := make([]string, len(find))
	seen := make(map[string]int, len(find))
	for i, p := range find {
		name, ok := "", false
		switch v := p.(type) {
		case queryir.Variable:
			name, ok = v.Name, true
		case queryir.WildcardVariable:
			name, ok = v.Name, true
		}
		if !ok {
			return nil, newError(ErrInvalidProjection, fmt.Sprintf("yield[%d]", i),
				"%s is not a plain variable and cannot be labeled", p)
		}
		label := queryir.Label(name)
		if j, dup := seen[label]; dup {
			return nil, newError(ErrInvalidProjection, fmt.Sprintf("yield[%d]", i),
				"%s has the same label %q as yield[%d]", p, label, j)
		}
		seen[label] = i
		labels[i] = label
	}
	return labels, nil
}

// parseYield converts the yield section into projections.
func parseYield(yield []any) ([]queryir.Projection, error) {
	if len(yield) == 0 {
		return nil, newError(ErrMalformedClauseShape, "yield", "yield must list at least one projection")
	}
	find := make([]queryir.Projection, 0, len(yield))
	for i, raw := range yield {
		p, err := parseProjection(raw)
		if err != nil {
			return nil, newError(ErrMalformedClauseShape, fmt.Sprintf("yield[%d]", i), "%v", err)
		}
		find = append(find, p)
	}
	return find, nil
}

func parseProjection(raw any) (queryir.Projection, error) {
	switch v := raw.(type) {
	case queryir.Projection:
		return v, nil
	case queryir.Pull:
		return &v, nil
	case queryir.Symbol:
		term, err := queryir.ParseTerm(v)
		if err != nil {
			return nil, err
		}
		if p, ok := term.(queryir.Projection); ok {
			return p, nil
		}
		return nil, fmt.Errorf("%s is not a query variable", v)
	case []any:
		return parsePull(v)
	default:
		return nil, fmt.Errorf("%T is not a variable or pull expression", raw)
	}
}

// parsePull parses []any{"pull", ?var, []any{attrs...}}.
func parsePull(list []any) (*queryir.Pull, error) {
	if len(list) != 3 || fmt.Sprint(list[0]) != "pull" {
		return nil, fmt.Errorf("expected (pull ?var [attrs...])")
	}
	sym, ok := list[1].(queryir.Symbol)
	if !ok || !queryir.IsQueryVariable(sym) {
		return nil, fmt.Errorf("pull target %v is not a query variable", list[1])
	}
	rawAttrs, ok := list[2].([]any)
	if !ok || len(rawAttrs) == 0 {
		return nil, fmt.Errorf("pull pattern must be a non-empty list")
	}
	pattern := make([]string, len(rawAttrs))
	for i, a := range rawAttrs {
		s, ok := a.(string)
		if !ok {
			if sym, isSym := a.(queryir.Symbol); isSym {
				s = string(sym)
			} else {
				return nil, fmt.Errorf("pull pattern element %d is %T", i, a)
			}
		}
		if s != "*" && !strings.HasPrefix(s, ":") {
			s = ":" + s
		}
		pattern[i] = s
	}
	return &queryir.Pull{Var: queryir.Variable{Name: string(sym)}, Pattern: pattern}, nil
}

// parsePreds converts the preds section into predicates.
func parsePreds(preds []any) ([]queryir.Predicate, error) {
	out := make([]queryir.Predicate, 0, len(preds))
	for i, raw := range preds {
		field := fmt.Sprintf("preds[%d]", i)
		switch v := raw.(type) {
		case queryir.Predicate:
			out = append(out, v)
		case []any:
			name, args, err := splitCall(v)
			if err != nil {
				return nil, newError(ErrMalformedClauseShape, field, "%v", err)
			}
			p, err := queryir.NewPredicate(name, args...)
			if err != nil {
				return nil, newError(ErrMalformedClauseShape, field, "%v", err)
			}
			out = append(out, p)
		default:
			return nil, newError(ErrMalformedClauseShape, field, "%T is not a predicate", raw)
		}
	}
	return out, nil
}

// parseRules converts the rules section into rule invocations.
func parseRules(rules []any) ([]queryir.RuleCall, error) {
	out := make([]queryir.RuleCall, 0, len(rules))
	for i, raw := range rules {
		field := fmt.Sprintf("rules[%d]", i)
		switch v := raw.(type) {
		case queryir.RuleCall:
			out = append(out, v)
		case []any:
			name, args, err := splitCall(v)
			if err != nil {
				return nil, newError(ErrMalformedClauseShape, field, "%v", err)
			}
			r, err := queryir.NewRuleCall(name, args...)
			if err != nil {
				return nil, newError(ErrMalformedClauseShape, field, "%v", err)
			}
			out = append(out, r)
		default:
			return nil, newError(ErrMalformedClauseShape, field, "%T is not a rule invocation", raw)
		}
	}
	return out, nil
}

// splitCall splits (name args...) into its head and arguments.
func splitCall(list []any) (string, []any, error) {
	if len(list) == 0 {
		return "", nil, fmt.Errorf("empty call")
	}
	switch head := list[0].(type) {
	case string:
		return head, list[1:], nil
	case queryir.Symbol:
		return string(head), list[1:], nil
	default:
		return "", nil, fmt.Errorf("call head is %T, not a name", list[0])
	}
}
