package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/datoms/internal/queryir"
)

func TestBuildRule(t *testing.T) {
	p, a := queryir.Sym("?p"), queryir.Sym("?a")
	rule, err := BuildRule(RuleDef{
		Head:  []any{"adult", p},
		Where: []ClauseMap{M(EntityKey, p, ":person/age", a)},
		Preds: []any{[]any{">=", a, 18}},
	})
	require.NoError(t, err)

	assert.Equal(t, "adult", rule.Name)
	assert.Equal(t, []queryir.Variable{{Name: "?p"}}, rule.Params)
	require.Len(t, rule.Clauses, 2)
	assert.IsType(t, queryir.Pattern{}, rule.Clauses[0])
	assert.IsType(t, queryir.PredicateClause{}, rule.Clauses[1])
}

func TestBuildRuleNested(t *testing.T) {
	p := queryir.Sym("?p")
	rule, err := BuildRule(RuleDef{
		Head:  []any{"senior-admin", p},
		Where: []ClauseMap{M(EntityKey, p, ":person/role", ":role/admin")},
		Rules: []any{[]any{"adult", p}},
	})
	require.NoError(t, err)
	assert.Equal(t, "[(senior-admin ?p) [?p :person/role :role/admin] (adult ?p)]", rule.String())
}

func TestBuildRuleErrors(t *testing.T) {
	p := queryir.Sym("?p")
	tests := []struct {
		name string
		def  RuleDef
	}{
		{"empty head", RuleDef{Where: []ClauseMap{M(EntityKey, p)}}},
		{"literal parameter", RuleDef{Head: []any{"r", 1}, Where: []ClauseMap{M(EntityKey, p)}}},
		{"wildcard parameter", RuleDef{Head: []any{"r", queryir.Sym("?p*")}, Where: []ClauseMap{M(EntityKey, p)}}},
		{"empty body", RuleDef{Head: []any{"r", p}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildRule(tt.def)
			require.Error(t, err)
			assert.Equal(t, ErrMalformedClauseShape, KindOf(err))
		})
	}
}

func TestBuildRuleSetWrapsIndex(t *testing.T) {
	_, err := BuildRuleSet(RuleDef{Head: []any{"ok", queryir.Sym("?p")}, Where: []ClauseMap{M(EntityKey, queryir.Sym("?p"))}}, RuleDef{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rule 1")
	assert.Equal(t, ErrMalformedClauseShape, KindOf(err))
}
