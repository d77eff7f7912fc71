package queryir

import (
	"fmt"
	"strings"

	"github.com/roach88/datoms/internal/ir"
)

// Clause is one constraint in a where list.
//
// This is a sealed interface - only Pattern, PredicateClause and RuleCall
// implement it.
type Clause interface {
	clause() // Marker method - seals interface to this package
	String() string

	// Terms returns every term of the clause in written order.
	Terms() []Term
}

// Pattern is a data clause matching datoms: [entity attribute value].
type Pattern struct {
	E Term
	A Term
	V Term
}

func (Pattern) clause() {}

func (p Pattern) String() string {
	return "[" + p.E.String() + " " + p.A.String() + " " + p.V.String() + "]"
}

func (p Pattern) Terms() []Term {
	return []Term{p.E, p.A, p.V}
}

// Comparison operators supported in predicates.
const (
	OpEQ  = "="
	OpNE  = "!="
	OpLT  = "<"
	OpLTE = "<="
	OpGT  = ">"
	OpGTE = ">="
)

// ValidOperators lists the predicate functions engines must support.
var ValidOperators = map[string]bool{
	OpEQ: true, OpNE: true, OpLT: true, OpLTE: true, OpGT: true, OpGTE: true,
}

// Predicate is a function expression such as (> ?age 30).
type Predicate struct {
	Fn   string
	Args []Term
}

func (p Predicate) String() string {
	parts := make([]string, 0, len(p.Args)+1)
	parts = append(parts, p.Fn)
	for _, a := range p.Args {
		parts = append(parts, a.String())
	}
	return "(" + strings.Join(parts, " ") + ")"
}

// NewPredicate parses raw tokens into a predicate.
//
//	NewPredicate(">", Sym("?age"), 30)
func NewPredicate(fn string, args ...any) (Predicate, error) {
	terms, err := ParseTerms(args)
	if err != nil {
		return Predicate{}, fmt.Errorf("predicate %s: %w", fn, err)
	}
	return Predicate{Fn: fn, Args: terms}, nil
}

// PredicateClause is a predicate wrapped as a single-element clause:
// [(> ?age 30)].
type PredicateClause struct {
	Predicate Predicate
}

func (PredicateClause) clause() {}

func (c PredicateClause) String() string {
	return "[" + c.Predicate.String() + "]"
}

func (c PredicateClause) Terms() []Term {
	return c.Predicate.Args
}

// RuleCall invokes a named rule: (adult ?e).
type RuleCall struct {
	Name string
	Args []Term
}

func (RuleCall) clause() {}

func (r RuleCall) String() string {
	parts := make([]string, 0, len(r.Args)+1)
	parts = append(parts, r.Name)
	for _, a := range r.Args {
		parts = append(parts, a.String())
	}
	return "(" + strings.Join(parts, " ") + ")"
}

func (r RuleCall) Terms() []Term {
	return r.Args
}

// NewRuleCall parses raw tokens into a rule invocation.
func NewRuleCall(name string, args ...any) (RuleCall, error) {
	terms, err := ParseTerms(args)
	if err != nil {
		return RuleCall{}, fmt.Errorf("rule %s: %w", name, err)
	}
	return RuleCall{Name: name, Args: terms}, nil
}

// Rule is a named, parameterized group of clauses:
//
//	[(adult ?p) [?p :person/age ?a] [(>= ?a 18)]]
//
// A RuleSet may hold several rules with the same name; an invocation
// matches if any of them matches.
type Rule struct {
	Name    string
	Params  []Variable
	Clauses []Clause
}

func (r Rule) String() string {
	head := make([]string, 0, len(r.Params)+1)
	head = append(head, r.Name)
	for _, p := range r.Params {
		head = append(head, p.Name)
	}
	parts := []string{"(" + strings.Join(head, " ") + ")"}
	for _, c := range r.Clauses {
		parts = append(parts, c.String())
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// RuleSet is the value bound to the % input.
type RuleSet []Rule

// Lookup returns every rule definition with the given name.
func (rs RuleSet) Lookup(name string) []Rule {
	var out []Rule
	for _, r := range rs {
		if r.Name == name {
			out = append(out, r)
		}
	}
	return out
}

// Row is one result tuple, positionally aligned to a Document's find list.
type Row []ir.IRValue

func (r Row) String() string {
	parts := make([]string, len(r))
	for i, v := range r {
		parts[i] = ir.Format(v)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
