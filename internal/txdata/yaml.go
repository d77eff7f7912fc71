package txdata

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ParseYAML reads transaction data from a YAML list. Each element names its
// item kind with a single leading key:
//
//	# tx.yaml
//	- partition: :app.part/people
//	- attribute: :person/name
//	  type: string
//	  unique: identity
//	  doc: A person's full name
//	- entity:
//	    ":db/id": joe
//	    ":person/name": Joe
//	    ":person/friend": bob
//	- add: [joe, ":person/age", 30]
//	- retract: [[":person/name", Joe], ":person/age", 30]
//
// Entity positions accept an integer id, a keyword ident, a lookup ref
// ([attr, value]) or a tempid name. {tempid: name, partition: kw} puts a
// tempid outside :db.part/user.
func ParseYAML(data []byte) ([]Item, error) {
	var tx YAMLTx
	if err := yaml.Unmarshal(data, &tx); err != nil {
		return nil, err
	}
	return tx.Items, nil
}

// YAMLTx embeds transaction data in larger YAML documents.
type YAMLTx struct {
	Items []Item
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (t *YAMLTx) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode {
		return newError(ErrInvalidItem, "", "transaction data must be a list (line %d)", node.Line)
	}
	items := make([]Item, 0, len(node.Content))
	for i, n := range node.Content {
		item, err := itemFromYAML(n)
		if err != nil {
			return fmt.Errorf("tx item %d: %w", i, err)
		}
		items = append(items, item)
	}
	t.Items = items
	return nil
}

func itemFromYAML(node *yaml.Node) (Item, error) {
	if node.Kind != yaml.MappingNode || len(node.Content) < 2 {
		return nil, newError(ErrInvalidItem, "", "line %d: want a mapping such as {add: [e, a, v]}", node.Line)
	}

	fields := make(map[string]*yaml.Node, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		fields[node.Content[i].Value] = node.Content[i+1]
	}
	kind := node.Content[0].Value

	switch kind {
	case "partition":
		return Partition(fields["partition"].Value)

	case "attribute":
		var opts []AttrOption
		if c, ok := fields["cardinality"]; ok {
			opts = append(opts, Cardinality(c.Value))
		}
		if u, ok := fields["unique"]; ok {
			opts = append(opts, Unique(u.Value))
		}
		if d, ok := fields["doc"]; ok {
			opts = append(opts, Doc(d.Value))
		}
		vt, ok := fields["type"]
		if !ok {
			return nil, newError(ErrInvalidValueType, fields["attribute"].Value, "attribute needs a type")
		}
		return Attribute(fields["attribute"].Value, vt.Value, opts...)

	case "entity":
		return entityFromYAML(fields["entity"])

	case "add", "retract":
		args := fields[kind]
		if args.Kind != yaml.SequenceNode || len(args.Content) != 3 {
			return nil, newError(ErrInvalidItem, "", "line %d: %s takes [e, a, v]", args.Line, kind)
		}
		e, err := refFromYAML(args.Content[0])
		if err != nil {
			return nil, err
		}
		attr := args.Content[1].Value
		if err := checkIdent(attr); err != nil {
			return nil, err
		}
		v, err := valueFromYAML(args.Content[2])
		if err != nil {
			return nil, err
		}
		if kind == "add" {
			return Add(e, attr, v), nil
		}
		return Retract(e, attr, v), nil
	}
	return nil, newError(ErrInvalidItem, "", "line %d: unknown item kind %q", node.Line, kind)
}

func entityFromYAML(node *yaml.Node) (Item, error) {
	if node.Kind != yaml.MappingNode {
		return nil, newError(ErrInvalidItem, "", "line %d: entity must be a mapping", node.Line)
	}

	var id Ref
	var pairs []any
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i].Value, node.Content[i+1]
		if key == ":db/id" {
			ref, err := refFromYAML(val)
			if err != nil {
				return nil, err
			}
			id = ref
			continue
		}
		v, err := valueFromYAML(val)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, key, v)
	}
	if id == nil {
		return nil, newError(ErrInvalidItem, "", "line %d: entity needs a :db/id", node.Line)
	}
	return NewEntity(id, pairs...)
}

// refFromYAML reads an entity position.
func refFromYAML(node *yaml.Node) (Ref, error) {
	v, err := valueFromYAML(node)
	if err != nil {
		return nil, err
	}
	ref, ok := AsRef(v)
	if !ok {
		return nil, newError(ErrInvalidItem, "", "line %d: %v does not name an entity", node.Line, v)
	}
	return ref, nil
}

// valueFromYAML decodes a value position. Sequences stay []any; the store
// decides from the attribute whether they are lookup refs or many values.
func valueFromYAML(node *yaml.Node) (any, error) {
	switch node.Kind {
	case yaml.AliasNode:
		return valueFromYAML(node.Alias)

	case yaml.SequenceNode:
		list := make([]any, 0, len(node.Content))
		for _, n := range node.Content {
			v, err := valueFromYAML(n)
			if err != nil {
				return nil, err
			}
			list = append(list, v)
		}
		return list, nil

	case yaml.MappingNode:
		var name, part string
		for i := 0; i+1 < len(node.Content); i += 2 {
			switch node.Content[i].Value {
			case "tempid":
				name = node.Content[i+1].Value
			case "partition":
				part = node.Content[i+1].Value
			default:
				return nil, newError(ErrInvalidItem, "", "line %d: unknown key %q in tempid", node.Line, node.Content[i].Value)
			}
		}
		if name == "" {
			return nil, newError(ErrInvalidItem, "", "line %d: mapping values must be {tempid: name}", node.Line)
		}
		if part == "" {
			return NewTempID(name), nil
		}
		return TempIDIn(part, name), nil

	case yaml.ScalarNode:
		switch node.ShortTag() {
		case "!!null":
			return nil, newError(ErrInvalidItem, "", "line %d: null is not a value", node.Line)
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
			return nil, newError(ErrInvalidValueType, "", "line %d: floating-point value %s is not supported", node.Line, node.Value)
		default:
			return node.Value, nil
		}
	}
	return nil, newError(ErrInvalidItem, "", "line %d: unsupported YAML node", node.Line)
}
