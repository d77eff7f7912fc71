package compiler

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/datoms/internal/ir"
	"github.com/roach88/datoms/internal/queryir"
)

func terms(t *testing.T, tokens ...any) []queryir.Term {
	t.Helper()
	out, err := queryir.ParseTerms(tokens)
	require.NoError(t, err)
	return out
}

func TestValidateSymbolsOK(t *testing.T) {
	err := ValidateSymbols(terms(t, e, ":person/name", name, e, name, queryir.Sym("?skip*"), 42, "literal"))
	assert.NoError(t, err)
}

func TestValidateSymbolsIgnoresLiterals(t *testing.T) {
	assert.NoError(t, ValidateSymbols(terms(t, "?not-a-var", ":kw", 1, true)))
	assert.NoError(t, ValidateSymbols(nil))
}

func TestValidateSymbolsOrphansInFirstOccurrenceOrder(t *testing.T) {
	err := ValidateSymbols(terms(t, queryir.Sym("?b"), e, queryir.Sym("?a"), e))
	require.Error(t, err)

	orphan := AsKind(err, ErrOrphanSymbol)
	require.NotNil(t, orphan)
	assert.Equal(t, []string{"?b", "?a"}, orphan.Symbols)
	assert.Equal(t, "ORPHAN_SYMBOL: variables used only once (bind them elsewhere or mark them as wildcards) [?b ?a]", orphan.Error())
}

func TestValidateSymbolsReportsBothKinds(t *testing.T) {
	skip := queryir.Sym("?skip*")
	err := ValidateSymbols(terms(t, queryir.Sym("?lonely"), skip, skip, e, e))
	require.Error(t, err)

	assert.True(t, IsOrphanSymbolError(err))
	assert.True(t, IsOverusedWildcardError(err))
	assert.Equal(t, []string{"?lonely"}, AsKind(err, ErrOrphanSymbol).Symbols)
	assert.Equal(t, []string{"?skip*"}, AsKind(err, ErrOverusedWildcard).Symbols)

	var ce *Error
	assert.True(t, errors.As(err, &ce))
}

func TestAsKindFindsBothKindsThroughWrapping(t *testing.T) {
	w := queryir.Sym("?w*")
	err := ValidateSymbols(terms(t, queryir.Sym("?q"), w, w, e, e))
	require.Error(t, err)

	for _, wrapped := range []error{
		fmt.Errorf("people: %w", err),
		fmt.Errorf("outer: %w", fmt.Errorf("people: %w", err)),
		errors.Join(errors.New("first query failed"), fmt.Errorf("people: %w", err)),
	} {
		assert.True(t, IsOrphanSymbolError(wrapped))
		assert.True(t, IsOverusedWildcardError(wrapped))
		require.NotNil(t, AsKind(wrapped, ErrOverusedWildcard))
		assert.Equal(t, []string{"?w*"}, AsKind(wrapped, ErrOverusedWildcard).Symbols)
		assert.Equal(t, []string{"?q"}, AsKind(wrapped, ErrOrphanSymbol).Symbols)
	}
	assert.Nil(t, AsKind(fmt.Errorf("plain: %w", errors.New("x")), ErrOrphanSymbol))
	assert.Nil(t, AsKind(nil, ErrOrphanSymbol))
}

func TestValidateSymbolsWildcardAndRegularAreDistinct(t *testing.T) {
	// ?x and ?x* are separate variables.
	err := ValidateSymbols(terms(t, queryir.Sym("?x"), queryir.Sym("?x*"), queryir.Sym("?x")))
	assert.NoError(t, err)
}

func TestCollectSymbols(t *testing.T) {
	patterns, err := NormalizeWhere([]ClauseMap{M(EntityKey, e, ":person/name", name)})
	require.NoError(t, err)
	rule, err := queryir.NewRuleCall("adult", e)
	require.NoError(t, err)

	all := CollectSymbols(
		patterns,
		[]queryir.Symbol{db, queryir.Sym("?min")},
		[]queryir.Projection{queryir.Variable{Name: "?name"}, &queryir.Pull{Var: queryir.Variable{Name: "?e"}, Pattern: []string{"*"}}},
		[]queryir.RuleCall{rule},
	)

	assert.Equal(t, []queryir.Term{
		queryir.Variable{Name: "?e"},
		queryir.Literal{Value: ir.IRKeyword(":person/name")},
		queryir.Variable{Name: "?name"},
		queryir.Literal{Value: ir.IRString("$")},
		queryir.Variable{Name: "?min"},
		queryir.Variable{Name: "?name"},
		queryir.Variable{Name: "?e"},
		queryir.Variable{Name: "?e"},
	}, all)
}

func TestCollectSymbolsSkipsPredicates(t *testing.T) {
	// Predicate arguments are not part of the usage count, so a variable
	// bound once and only compared is still an orphan.
	qc := Context{
		Yield: []any{e},
		Where: []ClauseMap{M(EntityKey, e, ":person/age", age)},
		Preds: []any{[]any{">", age, 18}},
	}

	_, err := Compile(qc, DefaultOptions())
	require.Error(t, err)
	assert.Equal(t, []string{"?age"}, AsKind(err, ErrOrphanSymbol).Symbols)
}

func TestErrorFormatting(t *testing.T) {
	err := newError(ErrMalformedClauseShape, "where[0]", "clause map is missing its entity binding %s", EntityKey)
	assert.Equal(t, "MALFORMED_CLAUSE_SHAPE: where[0]: clause map is missing its entity binding :db/id", err.Error())

	assert.Equal(t, ErrorKind(""), KindOf(errors.New("other")))
	assert.Nil(t, AsKind(nil, ErrOrphanSymbol))
}
