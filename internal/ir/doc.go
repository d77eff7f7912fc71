// Package ir provides the value and fact vocabulary shared by the query
// compiler, the result shaper and the fact-store engine.
//
// This package contains type definitions and canonical encoding only. All
// other internal packages import ir; ir imports nothing internal. This keeps
// IR the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - NO float types anywhere - use int64 for numbers, floats break
//     deterministic encoding and dedup keys
//   - Keywords (":person/name") are a distinct value type from strings
//   - Canonical JSON (RFC 8785) is the only encoding used for identity:
//     document hashes and result dedup keys are computed from it
//   - Datom is the record exchanged with the fact store: entity, attribute,
//     value, transaction and assertion flag
package ir
