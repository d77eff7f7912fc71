package compiler

import (
	"github.com/roach88/datoms/internal/queryir"
)

// SplitLet separates an interleaved binding list into parallel name and
// source sequences: even positions are names, odd positions their sources.
//
//	[$ db ?min 18]  →  names [$ ?min], sources [db 18]
func SplitLet(bindings []any) ([]queryir.Symbol, []any, error) {
	if len(bindings)%2 != 0 {
		return nil, nil, newError(ErrMalformedBindingList, "let",
			"binding list has odd length %d: every name needs a source", len(bindings))
	}

	names := make([]queryir.Symbol, 0, len(bindings)/2)
	sources := make([]any, 0, len(bindings)/2)
	for i := 0; i < len(bindings); i += 2 {
		name, ok := bindings[i].(queryir.Symbol)
		if !ok || name == "" {
			return nil, nil, newError(ErrMalformedBindingList, "let",
				"binding name at position %d is %T, not a symbol", i, bindings[i])
		}
		names = append(names, name)
		sources = append(sources, bindings[i+1])
	}
	return names, sources, nil
}
