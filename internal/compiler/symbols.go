package compiler

import (
	"errors"

	"github.com/roach88/datoms/internal/queryir"
)

// CollectSymbols gathers every term whose variable usage is checked: all
// terms of the normalized where patterns, the let names, the projections
// and the rule-invocation arguments. Predicate arguments are not counted.
func CollectSymbols(where []queryir.Pattern, letNames []queryir.Symbol, find []queryir.Projection, rules []queryir.RuleCall) []queryir.Term {
	var all []queryir.Term
	for _, p := range where {
		all = append(all, p.Terms()...)
	}
	for _, name := range letNames {
		if term, err := queryir.ParseTerm(name); err == nil {
			all = append(all, term)
		}
	}
	for _, p := range find {
		if term := queryir.ProjectionTerm(p); term != nil {
			all = append(all, term)
		}
	}
	for _, r := range rules {
		all = append(all, r.Args...)
	}
	return all
}

// ValidateSymbols enforces variable usage across a whole query:
//   - a regular variable occurring exactly once is an orphan, almost always
//     a typo for a variable bound elsewhere
//   - a wildcard variable occurring more than once defeats its "used only
//     here" marking
//
// Both checks run before anything is reported. When both fail the returned
// error joins an ErrOrphanSymbol and an ErrOverusedWildcard error; each
// carries its full offending-name list in first-occurrence order.
func ValidateSymbols(all []queryir.Term) error {
	regular := newCounter()
	wildcards := newCounter()
	for _, t := range all {
		switch v := t.(type) {
		case queryir.Variable:
			regular.add(v.Name)
		case queryir.WildcardVariable:
			wildcards.add(v.Name)
		}
	}

	orphans := regular.where(func(n int) bool { return n == 1 })
	overused := wildcards.where(func(n int) bool { return n > 1 })

	var errs []error
	if len(orphans) > 0 {
		errs = append(errs, &Error{
			Kind:    ErrOrphanSymbol,
			Message: "variables used only once (bind them elsewhere or mark them as wildcards)",
			Symbols: orphans,
		})
	}
	if len(overused) > 0 {
		errs = append(errs, &Error{
			Kind:    ErrOverusedWildcard,
			Message: "wildcard variables used more than once",
			Symbols: overused,
		})
	}
	return errors.Join(errs...)
}

// counter is an occurrence-frequency map that remembers first-occurrence order.
type counter struct {
	order  []string
	counts map[string]int
}

func newCounter() *counter {
	return &counter{counts: make(map[string]int)}
}

func (c *counter) add(name string) {
	if c.counts[name] == 0 {
		c.order = append(c.order, name)
	}
	c.counts[name]++
}

func (c *counter) where(keep func(int) bool) []string {
	var out []string
	for _, name := range c.order {
		if keep(c.counts[name]) {
			out = append(out, name)
		}
	}
	return out
}
