// Package store is a SQLite-backed fact store of datoms: entity, attribute,
// value, transaction and an added flag.
//
// The store keeps an append-only log:
//   - datoms: every assertion and retraction, tagged with its transaction
//   - txs: one row per transaction with its instant and content hash
//   - partitions: entity id allocation counters
//
// Idents, attribute definitions and partitions are themselves datoms about
// system entities, installed by the bootstrap transaction (t = 0).
//
// # Critical Patterns
//
// Immutable database values:
//   - A Snapshot is a basis t; reads see datoms asserted at or before t
//     and not retracted at or before t
//   - The basis only advances after a transaction commits
//
// Deterministic query results:
//   - All queries end in ORDER BY over every output column, COLLATE BINARY
//     on values
//
// Content-addressed transactions:
//   - Each transaction's datoms are hashed with RFC 8785 canonical JSON and
//     SHA-256 (ir.TxHash); VerifyLog recomputes them
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
