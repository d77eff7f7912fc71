package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/roach88/datoms/internal/queryir"
)

func TestContextFromYAML(t *testing.T) {
	src := []byte(`
let: [$, db]
yield: ["?name", "?age"]
where:
  - ":db/id": ?e
    person/name: ?name
  - person/age: ?age
    ":db/id": ?e
preds:
  - [">=", "?age", 18]
`)

	qc, err := ContextFromYAML(src)
	require.NoError(t, err)

	assert.Equal(t, []any{db, "db"}, qc.Let)
	assert.Equal(t, []any{name, age}, qc.Yield)
	assert.Equal(t, M("person/age", age, EntityKey, e), qc.Where[1])

	compiled, err := Compile(qc, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t,
		`[:find ?name ?age :in $ :where [?e :person/name ?name] [?e :person/age ?age] [(>= ?age 18)]]`,
		compiled.Document.String())
}

func TestContextFromYAMLScalars(t *testing.T) {
	src := []byte(`
yield: ["?e"]
where:
  - ":db/id": ?e
    person/admin: true
    person/age: 30
    person/nick: ~
    person/role: ":role/admin"
`)

	qc, err := ContextFromYAML(src)
	require.NoError(t, err)

	assert.Equal(t, M(EntityKey, e, "person/admin", true, "person/age", int64(30), "person/nick", nil, "person/role", ":role/admin"), qc.Where[0])
}

func TestContextFromYAMLAnchors(t *testing.T) {
	src := []byte(`
yield: ["?e", "?name"]
where:
  - &person {":db/id": "?e", person/name: "?name"}
  - *person
`)

	qc, err := ContextFromYAML(src)
	require.NoError(t, err)
	require.Len(t, qc.Where, 2)
	assert.Equal(t, qc.Where[0], qc.Where[1])
}

func TestContextFromYAMLErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"not a mapping", `["?e"]`},
		{"float", "yield: [\"?e\"]\nwhere: [{\":db/id\": \"?e\", score: 1.5}]"},
		{"unknown section", `select: ["?e"]`},
		{"where is a scalar", `where: ?e`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ContextFromYAML([]byte(tt.src))
			assert.Error(t, err)
		})
	}
}

func TestYAMLRuleSet(t *testing.T) {
	src := []byte(`
- head: [adult, "?p"]
  where:
    - {":db/id": "?p", person/age: "?a"}
  preds:
    - [">=", "?a", 18]
- head: [adult, "?p"]
  where:
    - {":db/id": "?p", person/guardian-approved: true}
`)

	var rs YAMLRuleSet
	require.NoError(t, yaml.Unmarshal(src, &rs))
	require.Len(t, rs.Rules, 2)
	assert.Len(t, rs.Rules.Lookup("adult"), 2)
	assert.Equal(t, []queryir.Variable{{Name: "?p"}}, rs.Rules[0].Params)
}
