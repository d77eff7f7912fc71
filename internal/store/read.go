package store

import (
	"context"
	"database/sql"
	"fmt"
	"slices"

	"github.com/cockroachdb/errors"

	"github.com/roach88/datoms/internal/ir"
	"github.com/roach88/datoms/internal/querysql"
	"github.com/roach88/datoms/internal/txdata"
)

var lookupIdentSQL = querysql.FactsCTE + fmt.Sprintf(
	` SELECT f.e FROM facts f WHERE f.a = %d AND f.vt = %d AND f.v = ? ORDER BY f.e ASC LIMIT 1`,
	ir.EidIdent, ir.TypeKeyword)

func lookupIdent(ctx context.Context, q querier, basis ir.Eid, ident string) (ir.Eid, bool, error) {
	var e ir.Eid
	err := q.QueryRowContext(ctx, lookupIdentSQL, basis, basis, ident).Scan(&e)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errors.Wrapf(err, "look up ident %s", ident)
	}
	return e, true, nil
}

// Entid returns the entity named by a keyword ident in db.
func (s *Store) Entid(ctx context.Context, db Snapshot, ident string) (ir.Eid, error) {
	e, ok, err := lookupIdent(ctx, s.db, db.BasisTx(), ident)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, txError(ErrCodeUnknownEntity, "no entity has ident %s in %s", ident, db)
	}
	return e, nil
}

var resolveIdentSQL = querysql.FactsCTE + fmt.Sprintf(
	` SELECT f.v FROM facts f WHERE f.e = ? AND f.a = %d AND f.vt = %d LIMIT 1`,
	ir.EidIdent, ir.TypeKeyword)

// ResolveIdent returns the keyword ident of eid in db. ok is false when the
// entity has no ident.
func (s *Store) ResolveIdent(ctx context.Context, db Snapshot, eid ir.Eid) (ident string, ok bool, err error) {
	err = s.db.QueryRowContext(ctx, resolveIdentSQL, db.BasisTx(), db.BasisTx(), eid).Scan(&ident)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "resolve ident of %d", eid)
	}
	return ident, true, nil
}

// Datoms returns the datoms of db in index order, constrained positionally
// by components:
//
//	s.Datoms(ctx, db, querysql.AVET, ":person/email", "joe@example.com")
//
// Keyword components in entity or attribute position name entities by
// ident.
func (s *Store) Datoms(ctx context.Context, db Snapshot, index querysql.Index, components ...any) ([]ir.Datom, error) {
	comps := make([]ir.IRValue, len(components))
	for i, c := range components {
		v, err := ir.FromGo(c)
		if err != nil {
			return nil, errors.Wrapf(err, "component %d", i)
		}
		comps[i] = v
	}

	sqlText, params, err := querysql.NewSQLCompiler(db.BasisTx()).CompileScan(index, comps)
	if err != nil {
		return nil, errors.Wrap(err, "datoms")
	}
	rows, err := s.db.QueryContext(ctx, sqlText, params...)
	if err != nil {
		return nil, errors.Wrap(err, "datoms")
	}
	defer rows.Close()

	var out []ir.Datom
	for rows.Next() {
		var r datomRow
		var vt int
		if err := rows.Scan(&r.E, &r.A, &r.V, &vt, &r.Tx); err != nil {
			return nil, errors.Wrap(err, "datoms: scan")
		}
		r.VT = ir.ValueType(vt)
		r.Added = true
		d, err := r.datom()
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Partition describes an installed partition.
type Partition struct {
	Ident   string `json:"ident"`
	Eid     ir.Eid `json:"eid"`
	Index   int64  `json:"index"`
	NextSeq int64  `json:"next_seq"`
}

// Partitions lists every partition in index order.
func (s *Store) Partitions(ctx context.Context) ([]Partition, error) {
	parts, err := loadPartitions(ctx, s.db)
	if err != nil {
		return nil, err
	}
	out := make([]Partition, len(parts))
	for i, p := range parts {
		out[i] = Partition{Ident: p.ident, Eid: p.eid, Index: p.part, NextSeq: p.nextSeq}
	}
	return out, nil
}

// Tx is one committed transaction.
type Tx struct {
	T       int64  `json:"t"`
	Instant int64  `json:"instant"`
	Hash    string `json:"hash"`
}

// Log lists committed transactions with t in [from, to], oldest first.
func (s *Store) Log(ctx context.Context, from, to int64) ([]Tx, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT t, instant, hash FROM txs WHERE t >= ? AND t <= ? ORDER BY t ASC", from, to)
	if err != nil {
		return nil, errors.Wrap(err, "read log")
	}
	defer rows.Close()

	var out []Tx
	for rows.Next() {
		var tx Tx
		if err := rows.Scan(&tx.T, &tx.Instant, &tx.Hash); err != nil {
			return nil, errors.Wrap(err, "read log: scan")
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

var pullSQL = querysql.FactsCTE +
	` SELECT f.a, f.v, f.vt FROM facts f WHERE f.e = ? ORDER BY f.a ASC, f.vt ASC, f.v COLLATE BINARY ASC`

// Pull returns the attributes of eid in db, keyed by attribute ident.
// pattern lists the attributes to include; "*" includes every attribute
// and :db/id. Cardinality-many attributes become arrays; refs are entity
// ids.
func (s *Store) Pull(ctx context.Context, db Snapshot, eid ir.Eid, pattern []string) (ir.IRObject, error) {
	wildcard := slices.Contains(pattern, "*")

	rows, err := s.db.QueryContext(ctx, pullSQL, db.BasisTx(), db.BasisTx(), eid)
	if err != nil {
		return nil, errors.Wrapf(err, "pull %d", eid)
	}
	defer rows.Close()

	obj := make(ir.IRObject)
	for rows.Next() {
		var r datomRow
		var vt int
		if err := rows.Scan(&r.A, &r.V, &vt); err != nil {
			return nil, errors.Wrapf(err, "pull %d: scan", eid)
		}
		r.VT = ir.ValueType(vt)
		v, err := txdata.DecodeValue(r.VT, r.V)
		if err != nil {
			return nil, errors.Wrapf(err, "pull %d", eid)
		}

		attr, ok := s.attributeByID(r.A)
		if !ok {
			return nil, errors.Newf("pull %d: attribute %d is not installed", eid, r.A)
		}
		if !wildcard && !slices.Contains(pattern, attr.Ident) {
			continue
		}
		if attr.Cardinality == ir.CardinalityMany {
			arr, _ := obj[attr.Ident].(ir.IRArray)
			obj[attr.Ident] = append(arr, v)
			continue
		}
		obj[attr.Ident] = v
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(err, "pull %d", eid)
	}

	if wildcard || slices.Contains(pattern, ":db/id") {
		obj[":db/id"] = ir.IRInt(eid)
	}
	return obj, nil
}
