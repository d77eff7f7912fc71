package compiler

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/roach88/datoms/internal/queryir"
)

// ContextFromYAML reads a query context from a YAML document:
//
//	let:   [$, db]
//	yield: ["?name", "?age"]
//	where:
//	  - ":db/id": ?e*
//	    person/name: ?name
//	    person/age: ?age
//	preds:
//	  - [">=", "?age", 18]
//
// Mapping order is kept, so where maps expand in the order they were
// written. Strings are lifted to symbols whether or not they are quoted;
// flow collections need quotes because YAML reads a leading "?" there as a
// key indicator.
func ContextFromYAML(data []byte) (Context, error) {
	var q YAMLQuery
	if err := yaml.Unmarshal(data, &q); err != nil {
		return Context{}, err
	}
	return q.Context, nil
}

// YAMLQuery embeds a query context in larger YAML documents, such as
// scenario files.
type YAMLQuery struct {
	Context Context
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (q *YAMLQuery) UnmarshalYAML(node *yaml.Node) error {
	tree, err := decodeYAML(node)
	if err != nil {
		return err
	}
	root, ok := tree.(ClauseMap)
	if !ok {
		return newError(ErrMalformedClauseShape, "query", "must be a mapping (line %d)", node.Line)
	}
	qc, err := contextFromTree(root)
	if err != nil {
		return err
	}
	q.Context = qc
	return nil
}

// YAMLRuleSet decodes a list of rule definitions.
type YAMLRuleSet struct {
	Rules queryir.RuleSet
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (r *YAMLRuleSet) UnmarshalYAML(node *yaml.Node) error {
	tree, err := decodeYAML(node)
	if err != nil {
		return err
	}
	defs, err := ruleDefsFromTree(tree)
	if err != nil {
		return err
	}
	rs, err := BuildRuleSet(defs...)
	if err != nil {
		return err
	}
	r.Rules = rs
	return nil
}

// decodeYAML converts a node into the ordered query tree.
func decodeYAML(node *yaml.Node) (any, error) {
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return nil, nil
		}
		return decodeYAML(node.Content[0])

	case yaml.AliasNode:
		return decodeYAML(node.Alias)

	case yaml.MappingNode:
		m := make(ClauseMap, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			key := node.Content[i]
			if key.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("line %d: mapping keys must be scalars", key.Line)
			}
			val, err := decodeYAML(node.Content[i+1])
			if err != nil {
				return nil, err
			}
			m = append(m, Entry{Key: key.Value, Value: val})
		}
		return m, nil

	case yaml.SequenceNode:
		list := make([]any, 0, len(node.Content))
		for _, item := range node.Content {
			val, err := decodeYAML(item)
			if err != nil {
				return nil, err
			}
			list = append(list, val)
		}
		return list, nil

	case yaml.ScalarNode:
		switch node.ShortTag() {
		case "!!null":
			return nil, nil
		case "!!bool":
			var b bool
			if err := node.Decode(&b); err != nil {
				return nil, err
			}
			return b, nil
		case "!!int":
			var n int64
			if err := node.Decode(&n); err != nil {
				return nil, err
			}
			return n, nil
		case "!!float":
			return nil, fmt.Errorf("line %d: floating-point value %s is not supported", node.Line, node.Value)
		default:
			return liftScalar(node.Value), nil
		}
	}
	return nil, fmt.Errorf("line %d: unsupported YAML node", node.Line)
}
