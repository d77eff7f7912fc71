package store

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/roach88/datoms/internal/ir"
	"github.com/roach88/datoms/internal/txdata"
)

// datomRow is one row of the datoms table, value in stored form.
type datomRow struct {
	E     ir.Eid
	A     ir.Eid
	V     any
	VT    ir.ValueType
	Tx    ir.Eid
	Added bool
}

// datom decodes the stored value.
func (r datomRow) datom() (ir.Datom, error) {
	v, err := txdata.DecodeValue(r.VT, r.V)
	if err != nil {
		return ir.Datom{}, errors.Wrapf(err, "datom [%d %d]", r.E, r.A)
	}
	return ir.Datom{E: r.E, A: r.A, V: v, Tx: r.Tx, Added: r.Added}, nil
}

// insertRows writes rows and returns them decoded, in order.
func insertRows(ctx context.Context, q querier, rows []datomRow) ([]ir.Datom, error) {
	datoms := make([]ir.Datom, 0, len(rows))
	for _, r := range rows {
		d, err := r.datom()
		if err != nil {
			return nil, err
		}
		added := 0
		if r.Added {
			added = 1
		}
		if _, err := q.ExecContext(ctx,
			"INSERT INTO datoms (e, a, v, vt, tx, added) VALUES (?, ?, ?, ?, ?, ?)",
			r.E, r.A, r.V, int(r.VT), r.Tx, added); err != nil {
			return nil, errors.Wrapf(err, "insert %s", d)
		}
		datoms = append(datoms, d)
	}
	return datoms, nil
}

// partition is one row of the partitions table.
type partition struct {
	part    int64
	eid     ir.Eid
	ident   string
	nextSeq int64
}

var builtinPartitions = []partition{
	{part: ir.PartDB, eid: ir.EidPartDB, ident: ir.PartitionDB, nextSeq: ir.FirstSchemaSeq},
	{part: ir.PartTx, eid: ir.EidPartTx, ident: ir.PartitionTx, nextSeq: 1},
	{part: ir.PartUser, eid: ir.EidPartUser, ident: ir.PartitionUser, nextSeq: 1},
}

// systemAttributes are installed by the bootstrap transaction.
var systemAttributes = []Attr{
	{ID: ir.EidIdent, Ident: ir.IdentAttribute, ValueType: ir.TypeKeyword, Unique: ir.UniqueIdentity},
	{ID: ir.EidInstallPartition, Ident: ir.InstallPartition, ValueType: ir.TypeRef, Cardinality: ir.CardinalityMany},
	{ID: ir.EidInstallAttribute, Ident: ir.InstallAttribute, ValueType: ir.TypeRef, Cardinality: ir.CardinalityMany},
	{ID: ir.EidValueType, Ident: ir.ValueTypeAttribute, ValueType: ir.TypeRef},
	{ID: ir.EidCardinality, Ident: ir.CardinalityAttribute, ValueType: ir.TypeRef},
	{ID: ir.EidUnique, Ident: ir.UniqueAttribute, ValueType: ir.TypeRef},
	{ID: ir.EidDoc, Ident: ir.DocAttribute, ValueType: ir.TypeString},
	{ID: ir.EidTxInstant, Ident: ir.TxInstantAttribute, ValueType: ir.TypeInstant},
}

// bootstrapRows builds transaction 0: idents for every system entity,
// the system attribute definitions and the built-in partitions.
func bootstrapRows() []datomRow {
	tx := ir.TxEid(0)
	var rows []datomRow
	assert := func(e, a ir.Eid, v any, vt ir.ValueType) {
		rows = append(rows, datomRow{E: e, A: a, V: v, VT: vt, Tx: tx, Added: true})
	}
	ident := func(e ir.Eid, kw string) {
		assert(e, ir.EidIdent, kw, ir.TypeKeyword)
	}

	for _, p := range builtinPartitions {
		ident(p.eid, p.ident)
		assert(ir.EidPartDB, ir.EidInstallPartition, p.eid, ir.TypeRef)
	}
	for _, vt := range ir.ValueTypes {
		ident(ir.TypeEid(vt), vt.Ident())
	}
	for _, c := range []ir.Cardinality{ir.CardinalityOne, ir.CardinalityMany} {
		ident(ir.CardinalityEid(c), c.Ident())
	}
	for _, u := range []ir.Uniqueness{ir.UniqueValue, ir.UniqueIdentity} {
		ident(ir.UniqueEid(u), u.Ident())
	}
	for _, attr := range systemAttributes {
		rows = append(rows, attr.rows(tx)...)
	}

	assert(tx, ir.EidTxInstant, int64(0), ir.TypeInstant)
	return rows
}
