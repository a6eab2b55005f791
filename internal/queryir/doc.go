// Package queryir defines the intermediate representation produced by the
// Cosmos SQL translator and consumed by the MongoDB lowering.
//
// ParsedQuery is the contract between the two halves:
//
//	[Cosmos SQL text + parameters] → cosmossql.Parse → [ParsedQuery]
//	                                                 → querymongo.Compile → [bson]
//
// ARCHITECTURE:
//
// A ParsedQuery is answered in exactly one of two ways, signaled by
// IsAggregate:
//
//   - Find path: Filter, Sort, Projection, Skip and Limit describe a plain
//     cursor query. Pipeline is empty.
//   - Aggregate path: Pipeline is authoritative (match → group → optional
//     project). Every find-path field is left at its zero value.
//
// SEALED INTERFACES:
//
// Predicate and Stage are sealed interfaces using the marker method
// pattern. Only types in this package implement them, so lowerings can
// use exhaustive type switches:
//
//	switch p := pred.(type) {
//	case Eq:
//	    // field == value
//	case And:
//	    // recurse
//	default:
//	    // impossible
//	}
//
// Predicates form a tagged union rather than loosely typed filter maps.
// AND merging and key collision detection happen at the lowering
// boundary, where the native filter document is built.
//
// VALUES:
//
// All literal values use ir.IRValue. Integers stay int64 and floats appear
// only for literals or parameters with a fractional part, so snapshots
// and fingerprints are deterministic.
//
// DIAGNOSTICS:
//
// The translator never fails. Every fragment it could not honor is
// recorded as a Diagnostic on the ParsedQuery (and logged), and the
// fragment contributes "match everything" to the filter. Returning too
// many rows is preferred over returning none or aborting.
package queryir
