// Package harness runs conformance scenarios against a fresh fact store.
//
// A scenario applies transactions in order, then compiles and runs query
// contexts, checking each shaped answer or expected error.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: adults
//	description: "Ages filter through a predicate"
//	rules:
//	  - head: [adult, "?p"]
//	    where:
//	      - {":db/id": "?p", person/age: "?age"}
//	    preds:
//	      - [">=", "?age", 18]
//	transactions:
//	  - name: schema
//	    tx:
//	      - attribute: :person/name
//	        type: string
//	        unique: identity
//	  - name: people
//	    tx:
//	      - entity: {":db/id": ann, ":person/name": Ann}
//	  - name: duplicate
//	    tx:
//	      - add: [x, ":person/name", Ann]
//	    error: UNIQUE_CONFLICT
//	queries:
//	  - name: names
//	    shape: tuples
//	    query:
//	      let: [$, db]
//	      yield: ["?name"]
//	      where:
//	        - {":db/id": "?e", person/name: "?name"}
//	    expect:
//	      - [Ann]
//
// The $ input is bound to the current database, or to the database as of
// as_of when set. The % input is bound to the scenario's rules. Expected
// errors name a compile error kind (ORPHAN_SYMBOL) or a store error code
// (UNIQUE_CONFLICT).
//
// # Determinism
//
// The store clock starts at testutil.Epoch and advances one second per
// transaction, so tempid resolution and transaction instants repeat across
// runs. Set shapes are sorted by canonical encoding before they are traced,
// so golden files are byte-stable.
//
// # Golden Files
//
// RunWithGolden writes the trace as canonical JSON to
// testdata/golden/{name}.golden. Regenerate with:
//
//	go test ./internal/harness -update
package harness
