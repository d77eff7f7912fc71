package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/datoms/internal/ir"
)

func TestValidate_PortableDocument(t *testing.T) {
	result := Validate(sampleDocument())

	assert.True(t, result.IsPortable, "sample document should be portable")
	assert.Empty(t, result.Warnings)
}

func TestValidate_NilDocument(t *testing.T) {
	result := Validate(nil)

	assert.False(t, result.IsPortable)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "nil document")
}

func TestValidate_EmptyWhere(t *testing.T) {
	result := Validate(&Document{Find: []Projection{Variable{Name: "?e"}}, In: []Symbol{Sym("?e")}})

	assert.False(t, result.IsPortable)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "empty where")
}

func TestValidate_UnboundFind(t *testing.T) {
	doc := &Document{
		Find:  []Projection{Variable{Name: "?e"}, Variable{Name: "?ghost"}},
		Where: []Clause{Pattern{E: Variable{Name: "?e"}, A: Literal{Value: ir.IRKeyword(":a")}, V: Literal{Value: ir.IRInt(1)}}},
	}

	result := Validate(doc)

	assert.False(t, result.IsPortable)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "?ghost")
}

func TestValidate_Predicates(t *testing.T) {
	tests := []struct {
		name    string
		pred    Predicate
		warning string
	}{
		{
			name:    "unknown function",
			pred:    Predicate{Fn: "re-find", Args: []Term{Variable{Name: "?v"}, Literal{Value: ir.IRString("x")}}},
			warning: "unsupported function",
		},
		{
			name:    "wrong arity",
			pred:    Predicate{Fn: ">", Args: []Term{Variable{Name: "?v"}}},
			warning: "exactly two arguments",
		},
		{
			name:    "unbound variable",
			pred:    Predicate{Fn: ">", Args: []Term{Variable{Name: "?nope"}, Literal{Value: ir.IRInt(1)}}},
			warning: "unbound variable ?nope",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := &Document{
				Find: []Projection{Variable{Name: "?e"}},
				Where: []Clause{
					Pattern{E: Variable{Name: "?e"}, A: Literal{Value: ir.IRKeyword(":a")}, V: Variable{Name: "?v"}},
					PredicateClause{Predicate: tt.pred},
				},
			}
			result := Validate(doc)
			assert.False(t, result.IsPortable)
			require.NotEmpty(t, result.Warnings)
			assert.Contains(t, result.Warnings[0], tt.warning)
		})
	}
}

func TestValidate_BadInput(t *testing.T) {
	doc := sampleDocument()
	doc.In = append(doc.In, Sym("db"))

	result := Validate(doc)

	assert.False(t, result.IsPortable)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], `"db"`)
}
