package queryir

import (
	"fmt"
	"strings"

	"github.com/roach88/datoms/internal/ir"
)

const (
	// VariableSigil is the first character of every query variable.
	VariableSigil = '?'

	// WildcardMarker is the last character of a wildcard variable.
	WildcardMarker = '*'

	// SourceSymbol names the default database input.
	SourceSymbol Symbol = "$"

	// RulesSymbol names the rule-set input.
	RulesSymbol Symbol = "%"
)

// Symbol is a symbolic identifier as written in a query description:
// "?e", "?skip*", "$", "%". Plain Go strings are always literals; only
// Symbol values can be variables.
type Symbol string

// Sym is shorthand for building a Symbol.
func Sym(name string) Symbol {
	return Symbol(name)
}

// IsQueryVariable reports whether token is a symbol whose first character is
// the "?" sigil. Non-symbols return false.
func IsQueryVariable(token any) bool {
	s, ok := symbolText(token)
	return ok && len(s) > 0 && s[0] == VariableSigil
}

// IsWildcardVariable reports whether token is a query variable whose last
// character is the "*" marker.
func IsWildcardVariable(token any) bool {
	if !IsQueryVariable(token) {
		return false
	}
	s, _ := symbolText(token)
	return len(s) > 1 && s[len(s)-1] == WildcardMarker
}

// symbolText extracts the text of a symbolic token. Variables that were
// already classified count as symbols too.
func symbolText(token any) (string, bool) {
	switch t := token.(type) {
	case Symbol:
		return string(t), true
	case Variable:
		return t.Name, true
	case WildcardVariable:
		return t.Name, true
	default:
		return "", false
	}
}

// ParseTerm classifies a raw token into a Term.
//
// Symbols with the sigil become Variable or WildcardVariable. Every other
// value becomes a Literal; keyword-shaped strings become keyword literals.
// Terms pass through unchanged.
func ParseTerm(token any) (Term, error) {
	switch t := token.(type) {
	case Term:
		return t, nil
	case Symbol:
		if IsWildcardVariable(t) {
			return WildcardVariable{Name: string(t)}, nil
		}
		if IsQueryVariable(t) {
			return Variable{Name: string(t)}, nil
		}
		return Literal{Value: ir.IRString(string(t))}, nil
	}

	v, err := ir.FromGo(token)
	if err != nil {
		return nil, fmt.Errorf("parse term: %w", err)
	}
	return Literal{Value: v}, nil
}

// ParseTerms classifies each token in order.
func ParseTerms(tokens []any) ([]Term, error) {
	terms := make([]Term, 0, len(tokens))
	for i, tok := range tokens {
		term, err := ParseTerm(tok)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		terms = append(terms, term)
	}
	return terms, nil
}

// AsSymbol interprets a raw token as a symbol. Strings written with the
// sigil, "$" or "%" prefixes also count, which lets query files written in
// CUE or YAML express symbols with plain strings.
func AsSymbol(token any) (Symbol, bool) {
	switch t := token.(type) {
	case Symbol:
		return t, true
	case string:
		if t == "" {
			return "", false
		}
		switch t[0] {
		case VariableSigil, '$', '%':
			return Symbol(t), true
		}
	}
	return "", false
}

// Label strips the sigil (and any wildcard marker) from a variable name:
// "?name" becomes "name".
func Label(name string) string {
	name = strings.TrimPrefix(name, string(VariableSigil))
	return strings.TrimSuffix(name, string(WildcardMarker))
}
