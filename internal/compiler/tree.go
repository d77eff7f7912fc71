package compiler

import (
	"fmt"

	"github.com/roach88/datoms/internal/queryir"
)

// Query and rule files (CUE or YAML) decode into an ordered tree first:
// structs become ClauseMap, lists []any, and sigil-prefixed strings
// queryir.Symbol. The tree is then read into a Context or RuleDef here so
// both file formats share one interpretation.

// contextFromTree reads a decoded query struct.
func contextFromTree(root ClauseMap) (Context, error) {
	var qc Context
	for _, e := range root {
		var err error
		switch e.Key {
		case "let":
			qc.Let, err = listField(e)
		case "yield", "find":
			qc.Yield, err = listField(e)
		case "where":
			qc.Where, err = clauseMapsField(e)
		case "preds":
			qc.Preds, err = listField(e)
		case "rules":
			qc.Rules, err = listField(e)
		default:
			err = newError(ErrMalformedClauseShape, e.Key, "unknown query section")
		}
		if err != nil {
			return Context{}, err
		}
	}
	return qc, nil
}

// ruleDefsFromTree reads a decoded list of rule definitions.
func ruleDefsFromTree(raw any) ([]RuleDef, error) {
	list, ok := raw.([]any)
	if !ok {
		return nil, newError(ErrMalformedClauseShape, "rules", "rule definitions must be a list, got %T", raw)
	}
	defs := make([]RuleDef, 0, len(list))
	for i, item := range list {
		m, ok := item.(ClauseMap)
		if !ok {
			return nil, newError(ErrMalformedClauseShape, fmt.Sprintf("rules[%d]", i), "rule definition must be a struct, got %T", item)
		}
		var def RuleDef
		for _, e := range m {
			var err error
			switch e.Key {
			case "head":
				def.Head, err = listField(e)
			case "where":
				def.Where, err = clauseMapsField(e)
			case "preds":
				def.Preds, err = listField(e)
			case "rules":
				def.Rules, err = listField(e)
			default:
				err = newError(ErrMalformedClauseShape, fmt.Sprintf("rules[%d].%s", i, e.Key), "unknown rule section")
			}
			if err != nil {
				return nil, err
			}
		}
		defs = append(defs, def)
	}
	return defs, nil
}

func listField(e Entry) ([]any, error) {
	list, ok := e.Value.([]any)
	if !ok {
		return nil, newError(ErrMalformedClauseShape, e.Key, "must be a list, got %T", e.Value)
	}
	return list, nil
}

func clauseMapsField(e Entry) ([]ClauseMap, error) {
	list, err := listField(e)
	if err != nil {
		return nil, err
	}
	maps := make([]ClauseMap, 0, len(list))
	for i, item := range list {
		m, ok := item.(ClauseMap)
		if !ok {
			return nil, newError(ErrMalformedClauseShape, fmt.Sprintf("%s[%d]", e.Key, i), "must be a map, got %T", item)
		}
		maps = append(maps, m)
	}
	return maps, nil
}

// liftScalar turns sigil-prefixed strings into symbols.
func liftScalar(v any) any {
	if sym, ok := queryir.AsSymbol(v); ok {
		return sym
	}
	return v
}
