// Package queryir provides the canonical query representation exchanged
// between the query-description compiler and fact-store engines.
//
// ARCHITECTURE:
//
// The Query IR sits between the authoring layer and the engine:
//
//	[query context] → [compiler] → [Document] → [SQLite engine]
//	                                          → [other engines]
//
// A Document is the find/in/where form every Datalog engine in the family
// accepts:
//
//	[:find ?e ?name
//	 :in $ ?min
//	 :where [?e :person/name ?name]
//	        [?e :person/age ?age]
//	        [(>= ?age ?min)]
//	        (adult ?e)]
//
// TERMS:
//
// Every position of a clause holds a Term, resolved once at parse time:
//   - Literal: a constant IR value (string, keyword, int, bool)
//   - Variable: a token starting with the "?" sigil
//   - WildcardVariable: a variable that also ends with "*", marking a
//     binding that is intentionally used only once
//
// SEALED INTERFACES:
//
// Term, Projection and Clause are sealed interfaces using the marker method
// pattern. Only types in this package implement them, which keeps type
// switches in engines exhaustive:
//
//	switch c := clause.(type) {
//	case Pattern:
//	    // [e a v]
//	case PredicateClause:
//	    // [(fn args...)]
//	case RuleCall:
//	    // (rule args...)
//	}
//
// DETERMINISM:
//
// Document.Canonical renders RFC 8785 canonical JSON, so compiling the same
// query twice yields byte-identical documents and identical Document IDs.
package queryir
