package queryir

import (
	"strings"

	"github.com/roach88/datoms/internal/ir"
)

// Term is one position of a clause: a literal value or a variable.
//
// This is a sealed interface - only Literal, Variable and WildcardVariable
// implement it.
type Term interface {
	term() // Marker method - seals interface to this package
	String() string
}

// Literal is a constant value in a clause position.
type Literal struct {
	Value ir.IRValue
}

func (Literal) term() {}

// String renders the literal in EDN-like form (strings quoted, keywords bare).
func (l Literal) String() string {
	return ir.Format(l.Value)
}

// Variable is a query variable such as "?e". Name includes the sigil.
type Variable struct {
	Name string
}

func (Variable) term()       {}
func (Variable) projection() {}

func (v Variable) String() string {
	return v.Name
}

// WildcardVariable is a variable marked as intentionally used only once,
// such as "?skip*". Name includes the sigil and the marker.
type WildcardVariable struct {
	Name string
}

func (WildcardVariable) term()       {}
func (WildcardVariable) projection() {}

func (w WildcardVariable) String() string {
	return w.Name
}

// VariableName returns the variable name of t and whether t is a variable
// of either kind.
func VariableName(t Term) (string, bool) {
	switch v := t.(type) {
	case Variable:
		return v.Name, true
	case WildcardVariable:
		return v.Name, true
	default:
		return "", false
	}
}

// Projection is one element of a find list.
//
// This is a sealed interface - Variable, WildcardVariable and *Pull
// implement it. Pull is the sub-query form: its result per row is a nested
// map and may legitimately repeat.
type Projection interface {
	projection() // Marker method - seals interface to this package
	String() string
}

// Pull projects the attributes of the entity bound to Var.
//
// Pattern lists attribute keywords; "*" selects every attribute.
//
//	(pull ?e [:person/name :person/email])
type Pull struct {
	Var     Variable
	Pattern []string
}

func (*Pull) projection() {}

func (p *Pull) String() string {
	return "(pull " + p.Var.Name + " [" + strings.Join(p.Pattern, " ") + "])"
}

// HasPull reports whether any projection is a pull expression.
func HasPull(find []Projection) bool {
	for _, p := range find {
		if _, ok := p.(*Pull); ok {
			return true
		}
	}
	return false
}

// ProjectionTerm returns the variable a projection binds, as a Term.
func ProjectionTerm(p Projection) Term {
	switch v := p.(type) {
	case Variable:
		return v
	case WildcardVariable:
		return v
	case *Pull:
		return v.Var
	default:
		return nil
	}
}
