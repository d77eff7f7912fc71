package compiler

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/datoms/internal/queryir"
)

func TestAssembleClauseOrder(t *testing.T) {
	patterns, err := NormalizeWhere([]ClauseMap{M(EntityKey, e, ":person/age", age)})
	require.NoError(t, err)
	pred, err := queryir.NewPredicate(">", age, 18)
	require.NoError(t, err)
	call, err := queryir.NewRuleCall("adult", e)
	require.NoError(t, err)

	compiled := Assemble(
		patterns,
		[]queryir.Symbol{db, rules},
		[]any{"db1", queryir.RuleSet{}},
		[]queryir.Projection{queryir.Variable{Name: "?e"}},
		[]queryir.Predicate{pred},
		[]queryir.RuleCall{call},
	)

	require.Len(t, compiled.Document.Where, 3)
	assert.Equal(t, patterns[0], compiled.Document.Where[0])
	assert.Equal(t, queryir.PredicateClause{Predicate: pred}, compiled.Document.Where[1])
	assert.Equal(t, call, compiled.Document.Where[2])
	assert.Equal(t, []queryir.Symbol{db, rules}, compiled.Document.In)
	assert.Equal(t, []any{"db1", queryir.RuleSet{}}, compiled.Args)
}

func TestAssembleKeepsProjectionsUntransformed(t *testing.T) {
	pull := &queryir.Pull{Var: queryir.Variable{Name: "?e"}, Pattern: []string{"*"}}
	compiled := Assemble(nil, nil, nil, []queryir.Projection{pull}, nil, nil)
	assert.Same(t, pull, compiled.Document.Find[0])
}

func TestLabels(t *testing.T) {
	labels, err := Labels([]queryir.Projection{
		queryir.Variable{Name: "?eid"},
		queryir.Variable{Name: "?name"},
		queryir.WildcardVariable{Name: "?skip*"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"eid", "name", "skip"}, labels)
}

func TestLabelsRejectsPull(t *testing.T) {
	_, err := Labels([]queryir.Projection{
		queryir.Variable{Name: "?eid"},
		&queryir.Pull{Var: queryir.Variable{Name: "?e"}, Pattern: []string{"*"}},
	})
	require.Error(t, err)

	ce := AsKind(err, ErrInvalidProjection)
	require.NotNil(t, ce)
	assert.Equal(t, "yield[1]", ce.Field)
}

func TestLabelsRejectsCollidingLabels(t *testing.T) {
	tests := []struct {
		name string
		find []queryir.Projection
	}{
		{"variable and wildcard", []queryir.Projection{
			queryir.Variable{Name: "?x"},
			queryir.WildcardVariable{Name: "?x*"},
		}},
		{"repeated variable", []queryir.Projection{
			queryir.Variable{Name: "?name"},
			queryir.Variable{Name: "?e"},
			queryir.Variable{Name: "?name"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Labels(tt.find)
			ce := AsKind(err, ErrInvalidProjection)
			require.NotNil(t, ce)
			assert.Equal(t, fmt.Sprintf("yield[%d]", len(tt.find)-1), ce.Field)
		})
	}
}
