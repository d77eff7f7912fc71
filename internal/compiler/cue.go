package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/datoms/internal/queryir"
)

// ContextFromCUE reads a query context from a CUE struct.
//
// Field order in the CUE source is kept, so where maps expand in the order
// they were written:
//
//	adults: {
//	    let:   ["$", "db"]
//	    yield: ["?name", "?age"]
//	    where: [{":db/id": "?e*", "person/name": "?name", "person/age": "?age"}]
//	    preds: [[">=", "?age", 18]]
//	}
func ContextFromCUE(v cue.Value) (Context, error) {
	tree, err := decodeCUE(v)
	if err != nil {
		return Context{}, err
	}
	root, ok := tree.(ClauseMap)
	if !ok {
		return Context{}, &CUEError{Field: "query", Message: fmt.Sprintf("must be a struct, got %s", v.Kind()), Pos: v.Pos()}
	}
	return contextFromTree(root)
}

// RuleSetFromCUE reads a list of rule definitions from CUE:
//
//	rules: [{head: ["adult", "?p"], where: [{":db/id": "?p", "person/age": "?a"}], preds: [[">=", "?a", 18]]}]
func RuleSetFromCUE(v cue.Value) (queryir.RuleSet, error) {
	tree, err := decodeCUE(v)
	if err != nil {
		return nil, err
	}
	defs, err := ruleDefsFromTree(tree)
	if err != nil {
		return nil, err
	}
	return BuildRuleSet(defs...)
}

// CUEError is a query file error with its CUE source position.
type CUEError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CUEError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// decodeCUE converts a concrete CUE value into the ordered query tree.
func decodeCUE(v cue.Value) (any, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	switch v.Kind() {
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		var m ClauseMap
		for iter.Next() {
			sel := iter.Selector()
			if sel.LabelType() != cue.StringLabel {
				continue
			}
			val, err := decodeCUE(iter.Value())
			if err != nil {
				return nil, err
			}
			m = append(m, Entry{Key: sel.Unquoted(), Value: val})
		}
		return m, nil

	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		list := []any{}
		for iter.Next() {
			val, err := decodeCUE(iter.Value())
			if err != nil {
				return nil, err
			}
			list = append(list, val)
		}
		return list, nil

	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return liftScalar(s), nil

	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return n, nil

	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return b, nil

	case cue.NullKind:
		return nil, nil

	default:
		return nil, &CUEError{
			Field:   pathOf(v),
			Message: fmt.Sprintf("unsupported value of kind %s (want struct, list, string, int, bool or null)", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

func pathOf(v cue.Value) string {
	if p := v.Path().String(); p != "" {
		return p
	}
	return "value"
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CUEError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
