package compiler

import (
	"context"

	"github.com/roach88/datoms/internal/queryir"
	"github.com/roach88/datoms/internal/shape"
)

// Engine executes canonical query documents against a fact store.
//
// Errors returned by an Engine propagate unchanged through CompileAndRun.
type Engine interface {
	Query(ctx context.Context, doc *queryir.Document, args []any) ([]queryir.Row, error)
}

// Compile turns a query context into a canonical document plus positional
// arguments. All structural checks run, and the symbol-usage checks run when
// opts.Strict is set. Compile performs no I/O and is safe to call
// concurrently.
func Compile(qc Context, opts Options) (*Compiled, error) {
	patterns, err := NormalizeWhere(qc.Where)
	if err != nil {
		return nil, err
	}

	names, sources, err := SplitLet(qc.Let)
	if err != nil {
		return nil, err
	}

	find, err := parseYield(qc.Yield)
	if err != nil {
		return nil, err
	}

	preds, err := parsePreds(qc.Preds)
	if err != nil {
		return nil, err
	}

	rules, err := parseRules(qc.Rules)
	if err != nil {
		return nil, err
	}

	if opts.Strict {
		if err := ValidateSymbols(CollectSymbols(patterns, names, find, rules)); err != nil {
			return nil, err
		}
	}

	return Assemble(patterns, names, sources, find, preds, rules), nil
}

// CompileAndRun compiles qc, executes it on eng and shapes the rows with
// policy. Every compile error, including unlabelable projections for
// UniqueKeyedMapSet, is reported before the engine is called.
func CompileAndRun(ctx context.Context, eng Engine, qc Context, policy shape.Policy, opts Options) (shape.Result, error) {
	compiled, err := Compile(qc, opts)
	if err != nil {
		return nil, err
	}

	var labels []string
	if policy == shape.UniqueKeyedMapSet {
		labels, err = compiled.Labels()
		if err != nil {
			return nil, err
		}
	}

	rows, err := eng.Query(ctx, compiled.Document, compiled.Args)
	if err != nil {
		return nil, err
	}
	return shape.Shape(policy, labels, rows)
}
