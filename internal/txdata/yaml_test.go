package txdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/datoms/internal/ir"
)

func TestParseYAML(t *testing.T) {
	src := []byte(`
- partition: ":app.part/people"
- attribute: ":person/email"
  type: string
  unique: identity
  doc: Primary email
- attribute: ":person/friend"
  type: ref
  cardinality: many
- entity:
    ":db/id": joe
    ":person/email": joe@example.com
    ":person/friend": [bob, ann]
- entity:
    ":db/id": {tempid: bob, partition: ":app.part/people"}
    ":person/email": bob@example.com
- add: [[":person/email", joe@example.com], ":person/age", 30]
- retract: [42, ":person/admin", true]
`)

	items, err := ParseYAML(src)
	require.NoError(t, err)
	require.Len(t, items, 7)

	assert.Equal(t, PartitionDef{Ident: ":app.part/people"}, items[0])
	assert.Equal(t, AttributeDef{
		Ident: ":person/email", ValueType: ir.TypeString,
		Cardinality: ir.CardinalityOne, Unique: ir.UniqueIdentity, Doc: "Primary email",
	}, items[1])
	assert.Equal(t, ir.CardinalityMany, items[2].(AttributeDef).Cardinality)

	assert.Equal(t, Entity{
		ID: NewTempID("joe"),
		Attrs: []AttrValue{
			{":person/email", "joe@example.com"},
			{":person/friend", []any{"bob", "ann"}},
		},
	}, items[3])
	assert.Equal(t, TempIDIn(":app.part/people", "bob"), items[4].(Entity).ID)

	assert.Equal(t, Add(LookupRef{Attr: ":person/email", Value: "joe@example.com"}, ":person/age", int64(30)), items[5])
	assert.Equal(t, Retract(EntityID(42), ":person/admin", true), items[6])
}

func TestParseYAMLErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		kind ErrorKind
	}{
		{"not a list", "partition: :a/b", ErrInvalidItem},
		{"unknown kind", "- upsert: [1, ':a/b', 2]", ErrInvalidItem},
		{"attribute without type", "- attribute: ':a/b'", ErrInvalidValueType},
		{"bad attribute ident", "- attribute: name\n  type: string", ErrInvalidIdentifier},
		{"add arity", "- add: [1, ':a/b']", ErrInvalidItem},
		{"float value", "- add: [1, ':a/b', 1.5]", ErrInvalidValueType},
		{"entity without id", "- entity: {':a/b': 1}", ErrInvalidItem},
		{"null value", "- add: [1, ':a/b', ~]", ErrInvalidItem},
		{"bad entity position", "- add: [true, ':a/b', 1]", ErrInvalidItem},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseYAML([]byte(tt.src))
			require.Error(t, err)
			assert.Equal(t, tt.kind, KindOf(err))
		})
	}
}
