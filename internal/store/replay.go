package store

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/roach88/datoms/internal/ir"
)

// TxDatoms returns the datoms transaction t wrote, in write order.
func (s *Store) TxDatoms(ctx context.Context, t int64) ([]ir.Datom, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT e, a, v, vt, tx, added FROM datoms WHERE tx = ? ORDER BY rowid ASC", ir.TxEid(t))
	if err != nil {
		return nil, errors.Wrapf(err, "read tx %d", t)
	}
	defer rows.Close()

	var out []ir.Datom
	for rows.Next() {
		var r datomRow
		var vt, added int
		if err := rows.Scan(&r.E, &r.A, &r.V, &vt, &r.Tx, &added); err != nil {
			return nil, errors.Wrapf(err, "read tx %d: scan", t)
		}
		r.VT = ir.ValueType(vt)
		r.Added = added == 1
		d, err := r.datom()
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// LogMismatch is a transaction whose datoms no longer hash to the recorded
// value.
type LogMismatch struct {
	T        int64  `json:"t"`
	Recorded string `json:"recorded"`
	Actual   string `json:"actual"`
}

// VerifyLog recomputes the content hash of every transaction from its
// datoms and reports the ones that differ from the hash recorded at commit.
// An empty result means the log is intact.
func (s *Store) VerifyLog(ctx context.Context) ([]LogMismatch, error) {
	txs, err := s.Log(ctx, 0, s.clock.Current())
	if err != nil {
		return nil, err
	}

	var mismatches []LogMismatch
	for _, tx := range txs {
		datoms, err := s.TxDatoms(ctx, tx.T)
		if err != nil {
			return nil, err
		}
		actual, err := ir.TxHash(datoms)
		if err != nil {
			return nil, errors.Wrapf(err, "hash tx %d", tx.T)
		}
		if actual != tx.Hash {
			mismatches = append(mismatches, LogMismatch{T: tx.T, Recorded: tx.Hash, Actual: actual})
		}
	}

	s.log.Debugw("verified log", "transactions", len(txs), "mismatches", len(mismatches))
	return mismatches, nil
}
