package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/roach88/datoms/internal/ir"
	"github.com/roach88/datoms/internal/querysql"
	"github.com/roach88/datoms/internal/txdata"
)

// TxReport describes a committed transaction.
type TxReport struct {
	DBBefore Snapshot
	DBAfter  Snapshot

	// TxData holds every datom written, the transaction's own
	// :db/txInstant included.
	TxData []ir.Datom

	// Tempids maps tempid names to the entity ids they resolved to.
	Tempids map[string]ir.Eid

	// Hash is the content hash of TxData.
	Hash string
}

// Transact applies items atomically as one transaction.
//
// Partitions and attributes are installed first in item order, so later
// items may use them. Tempids that assert a :db.unique/identity value
// already held by an entity resolve to that entity; the rest get fresh ids
// from their partition. Asserting a value already present is a no-op, as
// is retracting one that is absent. A new value for a cardinality-one
// attribute retracts the old one.
func (s *Store) Transact(ctx context.Context, items []txdata.Item) (*TxReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := Snapshot{BasisT: s.clock.Current()}
	t := before.BasisT + 1

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "transact: begin")
	}
	defer sqlTx.Rollback() // No-op if committed

	b, err := newTxBuilder(ctx, s, sqlTx, before.BasisTx(), t)
	if err != nil {
		return nil, err
	}
	for i, item := range items {
		if err := b.add(ctx, item); err != nil {
			return nil, errors.Wrapf(err, "tx item %d", i)
		}
	}
	if err := b.resolveTempids(ctx); err != nil {
		return nil, err
	}
	rows, err := b.rows(ctx)
	if err != nil {
		return nil, err
	}

	datoms, err := insertRows(ctx, sqlTx, rows)
	if err != nil {
		return nil, errors.Wrap(err, "transact")
	}
	hash, err := ir.TxHash(datoms)
	if err != nil {
		return nil, errors.Wrap(err, "transact")
	}
	if err := b.commitCounters(ctx, hash); err != nil {
		return nil, err
	}
	if err := sqlTx.Commit(); err != nil {
		return nil, errors.Wrap(err, "transact: commit")
	}

	s.schema = b.schema
	s.clock.Next()

	tempids := make(map[string]ir.Eid, len(b.tempids))
	for tid, e := range b.tempids {
		tempids[tid.Name] = e
	}

	s.log.Debugw("transaction committed", "t", t, "datoms", len(datoms), "tempids", len(tempids), "hash", hash)
	return &TxReport{
		DBBefore: before,
		DBAfter:  Snapshot{BasisT: t},
		TxData:   datoms,
		Tempids:  tempids,
		Hash:     hash,
	}, nil
}

// pendingOp is an assertion or retraction whose entity and value may still
// be tempids, idents or lookup refs.
type pendingOp struct {
	added bool
	e     txdata.Ref
	attr  *Attr
	v     any
}

// txBuilder accumulates one transaction. Lookups read the database as of
// basis, plus the idents this transaction installs.
type txBuilder struct {
	q       querier
	basis   ir.Eid
	t       int64
	txEid   ir.Eid
	now     time.Time
	enforce bool

	schema  *schema
	parts   map[string]*partition
	dirty   map[string]bool
	idents  map[string]ir.Eid
	tempids map[txdata.TempID]ir.Eid
	ops     []pendingOp
}

func newTxBuilder(ctx context.Context, s *Store, q querier, basis ir.Eid, t int64) (*txBuilder, error) {
	parts, err := loadPartitions(ctx, q)
	if err != nil {
		return nil, err
	}
	byIdent := make(map[string]*partition, len(parts))
	for i := range parts {
		byIdent[parts[i].ident] = &parts[i]
	}
	return &txBuilder{
		q:       q,
		basis:   basis,
		t:       t,
		txEid:   ir.TxEid(t),
		now:     s.opts.Now(),
		enforce: s.opts.EnforceSchema,
		schema:  s.schema.clone(),
		parts:   byIdent,
		dirty:   make(map[string]bool),
		idents:  make(map[string]ir.Eid),
		tempids: make(map[txdata.TempID]ir.Eid),
	}, nil
}

func (b *txBuilder) add(ctx context.Context, item txdata.Item) error {
	switch it := item.(type) {
	case txdata.PartitionDef:
		return b.installPartition(ctx, it)
	case txdata.AttributeDef:
		return b.installAttribute(ctx, Attr{
			Ident:       it.Ident,
			ValueType:   it.ValueType,
			Cardinality: it.Cardinality,
			Unique:      it.Unique,
			Doc:         it.Doc,
		})
	case txdata.Op:
		attr, err := b.attribute(ctx, it.A, it.V)
		if err != nil {
			return err
		}
		b.ops = append(b.ops, pendingOp{added: it.Added, e: it.E, attr: attr, v: it.V})
		return nil
	case txdata.Entity:
		for _, av := range it.Attrs {
			attr, err := b.attribute(ctx, av.Attr, av.Value)
			if err != nil {
				return err
			}
			values := []any{av.Value}
			if list, ok := av.Value.([]any); ok && attr.Cardinality == ir.CardinalityMany {
				values = list
			}
			for _, v := range values {
				b.ops = append(b.ops, pendingOp{added: true, e: it.ID, attr: attr, v: v})
			}
		}
		return nil
	case nil:
		return txError(ErrCodeInvalidInput, "nil transaction item")
	default:
		return txError(ErrCodeInvalidInput, "unsupported transaction item %T", item)
	}
}

// attribute resolves an attribute ident, installing it on first use when
// the schema is not enforced.
func (b *txBuilder) attribute(ctx context.Context, ident string, sample any) (*Attr, error) {
	if a, ok := b.schema.byIdent[ident]; ok {
		return a, nil
	}
	if b.enforce {
		return nil, errors.WithHint(
			txError(ErrCodeUnknownAttribute, "attribute %s is not installed", ident),
			"install it with an attribute item first")
	}

	vt, err := inferValueType(sample)
	if err != nil {
		return nil, txError(ErrCodeUnknownAttribute, "attribute %s is not installed and %v", ident, err)
	}
	attr := Attr{Ident: ident, ValueType: vt}
	if _, ok := sample.([]any); ok {
		attr.Cardinality = ir.CardinalityMany
	}
	if err := b.installAttribute(ctx, attr); err != nil {
		return nil, err
	}
	return b.schema.byIdent[ident], nil
}

// inferValueType picks a value type for an attribute installed on first use.
// A list always means a cardinality-many attribute typed by its first element.
func inferValueType(v any) (ir.ValueType, error) {
	if list, ok := v.([]any); ok {
		if len(list) == 0 {
			return 0, fmt.Errorf("an empty list has no value type")
		}
		return inferValueType(list[0])
	}
	switch val := v.(type) {
	case string:
		if ir.IsKeyword(val) {
			return ir.TypeKeyword, nil
		}
		return ir.TypeString, nil
	case ir.IRKeyword:
		return ir.TypeKeyword, nil
	case ir.IRString:
		return ir.TypeString, nil
	case int, int32, int64, uint32, ir.IRInt:
		return ir.TypeLong, nil
	case bool, ir.IRBool:
		return ir.TypeBoolean, nil
	case time.Time:
		return ir.TypeInstant, nil
	case uuid.UUID:
		return ir.TypeUUID, nil
	case txdata.Ref:
		return ir.TypeRef, nil
	}
	return 0, fmt.Errorf("%T values have no value type", v)
}

func (b *txBuilder) installAttribute(ctx context.Context, attr Attr) error {
	if existing, ok := b.schema.byIdent[attr.Ident]; ok {
		attr.ID = existing.ID
		if existing.sameDefinition(attr) {
			return nil
		}
		return txError(ErrCodeSchemaConflict, "attribute %s is already installed as %s %s",
			attr.Ident, existing.ValueType.Ident(), existing.Cardinality.Ident())
	}
	if e, ok, err := b.identEid(ctx, attr.Ident); err != nil {
		return err
	} else if ok {
		return txError(ErrCodeSchemaConflict, "%s already names entity %d", attr.Ident, e)
	}

	id, err := b.alloc(ir.PartitionDB)
	if err != nil {
		return err
	}
	attr.ID = id
	b.schema.add(&attr)
	b.idents[attr.Ident] = id
	for _, r := range attr.rows(b.txEid) {
		b.ops = append(b.ops, b.systemOp(r))
	}
	return nil
}

func (b *txBuilder) installPartition(ctx context.Context, def txdata.PartitionDef) error {
	if _, ok := b.parts[def.Ident]; ok {
		return nil
	}
	if e, ok, err := b.identEid(ctx, def.Ident); err != nil {
		return err
	} else if ok {
		return txError(ErrCodeSchemaConflict, "%s already names entity %d", def.Ident, e)
	}

	eid, err := b.alloc(ir.PartitionDB)
	if err != nil {
		return err
	}
	next := int64(0)
	for _, p := range b.parts {
		next = max(next, p.part+1)
	}
	b.parts[def.Ident] = &partition{part: next, eid: eid, ident: def.Ident, nextSeq: 1}
	b.dirty[def.Ident] = true
	b.idents[def.Ident] = eid

	tx := b.txEid
	b.ops = append(b.ops,
		b.systemOp(datomRow{E: eid, A: ir.EidIdent, V: def.Ident, VT: ir.TypeKeyword, Tx: tx, Added: true}),
		b.systemOp(datomRow{E: ir.EidPartDB, A: ir.EidInstallPartition, V: eid, VT: ir.TypeRef, Tx: tx, Added: true}))
	return nil
}

// systemOp wraps a definition datom as a pending assertion.
func (b *txBuilder) systemOp(r datomRow) pendingOp {
	attr := b.schema.byID[r.A]
	var v any = r.V
	if r.VT == ir.TypeRef {
		v = txdata.EntityID(r.V.(ir.Eid))
	}
	return pendingOp{added: true, e: txdata.EntityID(r.E), attr: attr, v: v}
}

// alloc hands out the next entity id in a partition.
func (b *txBuilder) alloc(partIdent string) (ir.Eid, error) {
	if partIdent == ir.PartitionTx {
		return b.txEid, nil
	}
	p, ok := b.parts[partIdent]
	if !ok {
		return 0, txError(ErrCodeTempid, "unknown partition %s", partIdent)
	}
	e := ir.MakeEid(p.part, p.nextSeq)
	p.nextSeq++
	b.dirty[partIdent] = true
	return e, nil
}

// resolveTempids maps every tempid in entity position: upserts first, then
// fresh ids in the order tempids first appear.
func (b *txBuilder) resolveTempids(ctx context.Context) error {
	for _, op := range b.ops {
		tid, ok := op.e.(txdata.TempID)
		if !ok || !op.added || op.attr.Unique != ir.UniqueIdentity {
			continue
		}
		if vt, isTemp := op.v.(txdata.TempID); isTemp && op.attr.ValueType == ir.TypeRef {
			if _, resolved := b.tempids[vt]; !resolved {
				continue
			}
		}
		stored, err := b.encode(ctx, op.attr, op.v)
		if err != nil {
			return err
		}
		holder, found, err := b.entityWith(ctx, op.attr, stored)
		if err != nil {
			return err
		}
		if !found {
			continue
		}
		if prev, seen := b.tempids[tid]; seen && prev != holder {
			return txError(ErrCodeUniqueConflict, "tempid %s upserts to both %d and %d", tid.Name, prev, holder)
		}
		b.tempids[tid] = holder
	}

	for _, op := range b.ops {
		tid, ok := op.e.(txdata.TempID)
		if !ok {
			continue
		}
		if _, seen := b.tempids[tid]; seen {
			continue
		}
		e, err := b.alloc(tid.Partition)
		if err != nil {
			return err
		}
		b.tempids[tid] = e
	}
	return nil
}

// factKey identifies a datom without its transaction.
type factKey struct {
	e, a ir.Eid
	v    any
	vt   ir.ValueType
}

// rows resolves every pending op to concrete datoms, applying redundancy
// elimination, cardinality-one replacement and uniqueness.
func (b *txBuilder) rows(ctx context.Context) ([]datomRow, error) {
	var out []datomRow
	asserted := make(map[factKey]bool)
	retracted := make(map[factKey]bool)
	cardOne := make(map[[2]ir.Eid]factKey)
	unique := make(map[factKey]ir.Eid)

	emit := func(k factKey, added bool) {
		out = append(out, datomRow{E: k.e, A: k.a, V: k.v, VT: k.vt, Tx: b.txEid, Added: added})
	}

	hasInstant := false
	for _, op := range b.ops {
		e, err := b.resolveRef(ctx, op.e)
		if err != nil {
			return nil, err
		}
		stored, err := b.encode(ctx, op.attr, op.v)
		if err != nil {
			return nil, err
		}
		k := factKey{e: e, a: op.attr.ID, v: stored, vt: op.attr.ValueType}
		if e == b.txEid && op.attr.ID == ir.EidTxInstant {
			hasInstant = true
		}

		if !op.added {
			if asserted[k] {
				return nil, txError(ErrCodeDatomConflict, "%s is both asserted and retracted", b.describe(k))
			}
			if retracted[k] {
				continue
			}
			present, err := b.isAsserted(ctx, k)
			if err != nil {
				return nil, err
			}
			if present {
				retracted[k] = true
				emit(k, false)
			}
			continue
		}

		if retracted[k] {
			return nil, txError(ErrCodeDatomConflict, "%s is both asserted and retracted", b.describe(k))
		}
		if asserted[k] {
			continue
		}
		asserted[k] = true

		if op.attr.Cardinality == ir.CardinalityOne {
			slot := [2]ir.Eid{e, op.attr.ID}
			if prev, ok := cardOne[slot]; ok && prev != k {
				return nil, txError(ErrCodeDatomConflict, "two values for cardinality-one %s of %d: %v and %v",
					op.attr.Ident, e, prev.v, k.v)
			}
			cardOne[slot] = k
		}

		if op.attr.Unique != ir.UniqueNone {
			uk := factKey{a: k.a, v: k.v, vt: k.vt}
			if other, ok := unique[uk]; ok && other != e {
				return nil, txError(ErrCodeUniqueConflict, "%s %v asserted for both %d and %d", op.attr.Ident, k.v, other, e)
			}
			unique[uk] = e
			holder, found, err := b.entityWith(ctx, op.attr, stored)
			if err != nil {
				return nil, err
			}
			if found && holder != e {
				return nil, txError(ErrCodeUniqueConflict, "%s %v already belongs to %d", op.attr.Ident, k.v, holder)
			}
		}

		present, err := b.isAsserted(ctx, k)
		if err != nil {
			return nil, err
		}
		if present {
			continue
		}

		if op.attr.Cardinality == ir.CardinalityOne {
			old, err := b.currentValues(ctx, e, op.attr)
			if err != nil {
				return nil, err
			}
			for _, prev := range old {
				if prev != k && !retracted[prev] {
					retracted[prev] = true
					emit(prev, false)
				}
			}
		}
		emit(k, true)
	}

	if !hasInstant {
		emit(factKey{e: b.txEid, a: ir.EidTxInstant, v: b.now.UnixMilli(), vt: ir.TypeInstant}, true)
	}
	return out, nil
}

func (b *txBuilder) describe(k factKey) string {
	attr := fmt.Sprintf("%d", k.a)
	if a, ok := b.schema.byID[k.a]; ok {
		attr = a.Ident
	}
	return fmt.Sprintf("[%d %s %v]", k.e, attr, k.v)
}

// encode converts a value to its stored form for attr.
func (b *txBuilder) encode(ctx context.Context, attr *Attr, v any) (any, error) {
	if attr.ValueType != ir.TypeRef {
		return txdata.EncodeValue(attr.Ident, attr.ValueType, v)
	}
	ref, ok := txdata.AsRef(v)
	if !ok {
		return nil, txError(ErrCodeInvalidInput, "%s needs an entity reference, got %T %v", attr.Ident, v, v)
	}
	if tid, isTemp := ref.(txdata.TempID); isTemp {
		e, resolved := b.tempids[tid]
		if !resolved {
			if tid.Partition == ir.PartitionTx {
				return b.txEid, nil
			}
			return nil, txError(ErrCodeTempid, "tempid %s is used as a value but never as an entity", tid.Name)
		}
		return e, nil
	}
	return b.resolveRef(ctx, ref)
}

// resolveRef turns an entity reference into an entity id.
func (b *txBuilder) resolveRef(ctx context.Context, ref txdata.Ref) (ir.Eid, error) {
	switch r := ref.(type) {
	case txdata.EntityID:
		return ir.Eid(r), nil
	case txdata.TempID:
		e, ok := b.tempids[r]
		if !ok {
			return 0, txError(ErrCodeTempid, "tempid %s is unresolved", r.Name)
		}
		return e, nil
	case txdata.Ident:
		e, ok, err := b.identEid(ctx, string(r))
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, txError(ErrCodeUnknownEntity, "no entity has ident %s", r)
		}
		return e, nil
	case txdata.LookupRef:
		attr, ok := b.schema.byIdent[r.Attr]
		if !ok {
			return 0, txError(ErrCodeUnknownAttribute, "lookup ref attribute %s is not installed", r.Attr)
		}
		if attr.Unique == ir.UniqueNone {
			return 0, txError(ErrCodeInvalidInput, "lookup ref attribute %s is not unique", r.Attr)
		}
		stored, err := b.encode(ctx, attr, r.Value)
		if err != nil {
			return 0, err
		}
		e, found, err := b.entityWith(ctx, attr, stored)
		if err != nil {
			return 0, err
		}
		if !found {
			return 0, txError(ErrCodeUnknownEntity, "no entity matches lookup ref %s", r)
		}
		return e, nil
	case nil:
		return 0, txError(ErrCodeInvalidInput, "missing entity reference")
	}
	return 0, txError(ErrCodeInvalidInput, "unsupported entity reference %T", ref)
}

// identEid resolves a keyword ident, including idents installed by this
// transaction.
func (b *txBuilder) identEid(ctx context.Context, ident string) (ir.Eid, bool, error) {
	if e, ok := b.idents[ident]; ok {
		return e, true, nil
	}
	return lookupIdent(ctx, b.q, b.basis, ident)
}

var entityWithSQL = querysql.FactsCTE +
	` SELECT f.e FROM facts f WHERE f.a = ? AND f.v = ? AND f.vt = ? ORDER BY f.e ASC LIMIT 1`

// entityWith finds the entity holding value v for attr.
func (b *txBuilder) entityWith(ctx context.Context, attr *Attr, v any) (ir.Eid, bool, error) {
	var e ir.Eid
	err := b.q.QueryRowContext(ctx, entityWithSQL, b.basis, b.basis, attr.ID, v, int(attr.ValueType)).Scan(&e)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errors.Wrapf(err, "look up %s", attr.Ident)
	}
	return e, true, nil
}

var isAssertedSQL = querysql.FactsCTE +
	` SELECT COUNT(*) FROM facts f WHERE f.e = ? AND f.a = ? AND f.v = ? AND f.vt = ?`

func (b *txBuilder) isAsserted(ctx context.Context, k factKey) (bool, error) {
	var n int
	if err := b.q.QueryRowContext(ctx, isAssertedSQL, b.basis, b.basis, k.e, k.a, k.v, int(k.vt)).Scan(&n); err != nil {
		return false, errors.Wrap(err, "check datom")
	}
	return n > 0, nil
}

var currentValuesSQL = querysql.FactsCTE +
	` SELECT f.v, f.vt FROM facts f WHERE f.e = ? AND f.a = ? ORDER BY f.vt ASC, f.v COLLATE BINARY ASC`

// currentValues returns the facts e holds for attr.
func (b *txBuilder) currentValues(ctx context.Context, e ir.Eid, attr *Attr) ([]factKey, error) {
	rows, err := b.q.QueryContext(ctx, currentValuesSQL, b.basis, b.basis, e, attr.ID)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s of %d", attr.Ident, e)
	}
	defer rows.Close()

	var out []factKey
	for rows.Next() {
		var v any
		var vt int
		if err := rows.Scan(&v, &vt); err != nil {
			return nil, errors.Wrap(err, "scan value")
		}
		if bs, ok := v.([]byte); ok {
			v = string(bs)
		}
		out = append(out, factKey{e: e, a: attr.ID, v: v, vt: ir.ValueType(vt)})
	}
	return out, rows.Err()
}

// commitCounters records the transaction and persists partition counters.
func (b *txBuilder) commitCounters(ctx context.Context, hash string) error {
	if _, err := b.q.ExecContext(ctx,
		"INSERT INTO txs (t, instant, hash) VALUES (?, ?, ?)", b.t, b.now.UnixMilli(), hash); err != nil {
		return errors.Wrap(err, "record transaction")
	}
	for ident := range b.dirty {
		p := b.parts[ident]
		if _, err := b.q.ExecContext(ctx, `
			INSERT INTO partitions (part, eid, ident, next_seq) VALUES (?, ?, ?, ?)
			ON CONFLICT(part) DO UPDATE SET next_seq = excluded.next_seq
		`, p.part, p.eid, p.ident, p.nextSeq); err != nil {
			return errors.Wrapf(err, "save partition %s", ident)
		}
	}
	return nil
}

func loadPartitions(ctx context.Context, q querier) ([]partition, error) {
	rows, err := q.QueryContext(ctx, "SELECT part, eid, ident, next_seq FROM partitions ORDER BY part ASC")
	if err != nil {
		return nil, errors.Wrap(err, "load partitions")
	}
	defer rows.Close()

	var parts []partition
	for rows.Next() {
		var p partition
		if err := rows.Scan(&p.part, &p.eid, &p.ident, &p.nextSeq); err != nil {
			return nil, errors.Wrap(err, "scan partition")
		}
		parts = append(parts, p)
	}
	return parts, rows.Err()
}
