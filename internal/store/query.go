package store

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/roach88/datoms/internal/ir"
	"github.com/roach88/datoms/internal/queryir"
	"github.com/roach88/datoms/internal/querysql"
	"github.com/roach88/datoms/internal/txdata"
)

// Query runs a canonical query document. args align with doc.In:
//
//   - $ binds a Snapshot; nil or a placeholder string reads the current
//     database
//   - % binds a queryir.RuleSet
//   - ?x binds a scalar (string, keyword, integer or boolean)
//
// Rows come back in the SQL compiler's stable order. Pull projections are
// resolved once the SQL result is fully read.
func (s *Store) Query(ctx context.Context, doc *queryir.Document, args []any) ([]queryir.Row, error) {
	if doc == nil {
		return nil, txError(ErrCodeInvalidInput, "nil query document")
	}
	if len(args) != len(doc.In) {
		return nil, txError(ErrCodeInvalidInput, "query takes %d inputs, got %d", len(doc.In), len(args))
	}

	db := s.Db()
	c := querysql.NewSQLCompiler(0)
	sources := 0
	for i, name := range doc.In {
		arg := args[i]
		switch {
		case strings.HasPrefix(string(name), "$"):
			sources++
			if sources > 1 {
				return nil, txError(ErrCodeInvalidInput, "only one database input is supported, found %s", name)
			}
			snap, err := s.bindSource(arg)
			if err != nil {
				return nil, err
			}
			db = snap
		case name == queryir.RulesSymbol:
			rules, err := bindRules(arg)
			if err != nil {
				return nil, err
			}
			c.Rules = rules
		case queryir.IsQueryVariable(name):
			v, err := bindScalar(name, arg)
			if err != nil {
				return nil, err
			}
			c.BoundValues[string(name)] = v
		default:
			return nil, txError(ErrCodeInvalidInput, "unsupported input %s", name)
		}
	}
	c.BasisTx = db.BasisTx()

	sqlText, params, err := c.Compile(doc)
	if err != nil {
		return nil, errors.Wrap(err, "compile query")
	}
	out, err := s.scanRows(ctx, len(doc.Find), sqlText, params)
	if err != nil {
		return nil, err
	}

	for i, p := range doc.Find {
		pull, ok := p.(*queryir.Pull)
		if !ok {
			continue
		}
		for _, row := range out {
			eid, ok := row[i].(ir.IRInt)
			if !ok {
				return nil, errors.Newf("pull %s: %s is not an entity", pull.Var.Name, ir.Format(row[i]))
			}
			obj, err := s.Pull(ctx, db, int64(eid), pull.Pattern)
			if err != nil {
				return nil, err
			}
			row[i] = obj
		}
	}

	s.log.Debugw("query", "basis_t", db.BasisT, "find", len(doc.Find), "rows", len(out))
	return out, nil
}

// scanRows reads (value, type code) column pairs into rows.
func (s *Store) scanRows(ctx context.Context, width int, sqlText string, params []any) ([]queryir.Row, error) {
	rows, err := s.db.QueryContext(ctx, sqlText, params...)
	if err != nil {
		return nil, errors.Wrap(err, "run query")
	}
	defer rows.Close()

	var out []queryir.Row
	raw := make([]any, 2*width)
	ptrs := make([]any, 2*width)
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, errors.Wrap(err, "scan row")
		}
		row := make(queryir.Row, width)
		for i := 0; i < width; i++ {
			code, ok := raw[2*i+1].(int64)
			if !ok {
				return nil, errors.Newf("column %d: type code is %T", i, raw[2*i+1])
			}
			v, err := txdata.DecodeValue(ir.ValueType(code), raw[2*i])
			if err != nil {
				return nil, errors.Wrapf(err, "column %d", i)
			}
			row[i] = v
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (s *Store) bindSource(arg any) (Snapshot, error) {
	switch src := arg.(type) {
	case nil, string, queryir.Symbol:
		return s.Db(), nil
	case Snapshot:
		return s.AsOf(src.BasisT)
	case *Snapshot:
		return s.AsOf(src.BasisT)
	}
	return Snapshot{}, txError(ErrCodeInvalidInput, "$ must be bound to a database snapshot, got %T", arg)
}

func bindRules(arg any) (queryir.RuleSet, error) {
	switch rs := arg.(type) {
	case nil, string, queryir.Symbol:
		return nil, nil
	case queryir.RuleSet:
		return rs, nil
	case []queryir.Rule:
		return queryir.RuleSet(rs), nil
	}
	return nil, txError(ErrCodeInvalidInput, "%% must be bound to a rule set, got %T", arg)
}

func bindScalar(name queryir.Symbol, arg any) (ir.IRValue, error) {
	v, err := ir.FromGo(arg)
	if err != nil {
		return nil, txError(ErrCodeInvalidInput, "input %s: %v", name, err)
	}
	switch v.(type) {
	case ir.IRString, ir.IRKeyword, ir.IRInt, ir.IRBool:
		return v, nil
	}
	return nil, txError(ErrCodeInvalidInput, "input %s must be a scalar, got %s", name, ir.Format(v))
}
