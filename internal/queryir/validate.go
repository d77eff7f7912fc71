package queryir

import "fmt"

// ValidationResult contains the engine-portability analysis of a document.
//
// The portable fragment is the subset every engine in the family can run:
// patterns, comparison predicates and non-recursive rules, with every
// projected or filtered variable bound by a pattern, a rule or an input.
// Documents outside the fragment may still run on a specific engine.
type ValidationResult struct {
	// IsPortable indicates the document uses only portable features.
	IsPortable bool

	// Warnings lists the non-portable features found. Empty when IsPortable.
	Warnings []string
}

// Validate checks a document against the portable fragment rules:
//  1. The where list is non-empty
//  2. Every find variable is bound by a pattern, rule call or input
//  3. Every predicate uses a known comparison operator
//  4. Every predicate variable is bound by a pattern, rule call or input
//  5. Every input is a source ($...), the rule set (%) or a variable
//
// Validate is a pure function with no side effects. It complements, and
// does not replace, the symbol-usage checks the compiler performs.
func Validate(doc *Document) ValidationResult {
	v := &validator{warnings: []string{}}
	v.validateDocument(doc)

	return ValidationResult{
		IsPortable: len(v.warnings) == 0,
		Warnings:   v.warnings,
	}
}

// validator accumulates warnings during traversal.
type validator struct {
	warnings []string
	bound    map[string]bool
}

// addWarning appends a warning message.
func (v *validator) addWarning(format string, args ...any) {
	v.warnings = append(v.warnings, fmt.Sprintf(format, args...))
}

func (v *validator) validateDocument(doc *Document) {
	if doc == nil {
		v.addWarning("nil document")
		return
	}
	if len(doc.Where) == 0 {
		v.addWarning("empty where list - every document needs at least one clause")
	}

	v.bound = make(map[string]bool)
	for _, in := range doc.In {
		switch {
		case IsQueryVariable(in):
			v.bound[string(in)] = true
		case len(in) > 0 && (in[0] == '$' || in[0] == '%'):
		default:
			v.addWarning("input %q is neither a source, the rule set nor a variable", in)
		}
	}
	for _, c := range doc.Where {
		switch clause := c.(type) {
		case Pattern, RuleCall:
			for _, t := range clause.Terms() {
				if name, ok := VariableName(t); ok {
					v.bound[name] = true
				}
			}
		}
	}

	for _, p := range doc.Find {
		if name, ok := VariableName(ProjectionTerm(p)); ok && !v.bound[name] {
			v.addWarning("find element %s is not bound by any clause or input", p)
		}
	}

	for _, c := range doc.Where {
		if pc, ok := c.(PredicateClause); ok {
			v.validatePredicate(pc.Predicate)
		}
	}
}

func (v *validator) validatePredicate(p Predicate) {
	if !ValidOperators[p.Fn] {
		v.addWarning("predicate %s uses unsupported function %q", p, p.Fn)
	}
	if len(p.Args) != 2 {
		v.addWarning("predicate %s takes exactly two arguments", p)
	}
	for _, a := range p.Args {
		if name, ok := VariableName(a); ok && !v.bound[name] {
			v.addWarning("predicate %s uses unbound variable %s", p, name)
		}
	}
}
