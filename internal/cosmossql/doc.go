// Package cosmossql translates the Cosmos DB SQL subset used by Items API
// call sites into queryir.ParsedQuery.
//
// Supported surface:
//
//	SELECT [DISTINCT] [TOP n] * | c | VALUE c | c.a, c.b.c [AS x]
//	SELECT VALUE COUNT(1) | SUM(c.f) | AVG | MIN | MAX
//	SELECT VALUE {alias: AGG(arg), ...}
//	FROM <alias>
//	WHERE <predicates joined by AND / OR, parenthesized groups, NOT>
//	ORDER BY c.f [ASC|DESC], ...
//	OFFSET n|@p LIMIT n|@p
//
// Predicates are recognized by an ordered dispatch table (see
// predicateForms); the first structural match wins. Adding a form means
// adding a table entry.
//
// DEGRADATION POLICY:
//
// Parse never fails. A fragment it cannot translate is logged at warn
// level, recorded as a queryir.Diagnostic and treated as "match
// everything". A listing that returns extra rows is a recoverable bug; a
// listing that errors or silently returns nothing is an outage.
package cosmossql
