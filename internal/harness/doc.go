// Package harness provides conformance testing for the Cosmos adapter and
// the query translator.
//
// # Scenarios
//
// A scenario runs a sequence of adapter operations against a fresh
// in-memory store and records every step in a trace. Scenarios are YAML:
//
//	name: close_ticket
//	description: "Patching closes a ticket and bumps its version"
//	container: tickets
//	seed:
//	  - { id: t1, status: open, version: 1 }
//	steps:
//	  - op: patch
//	    id: t1
//	    patch:
//	      - { op: set, path: /status, value: closed }
//	      - { op: incr, path: /version, value: 1 }
//	    expect:
//	      status: 200
//	      resource: { status: closed, version: 2 }
//	  - op: query
//	    query: "SELECT VALUE COUNT(1) FROM c WHERE c.status = @s"
//	    params: { "@s": closed }
//	    expect:
//	      resources: [1]
//	assertions:
//	  - type: final_state
//	    id: t1
//	    expect: { status: closed }
//
// Supported ops are query, create, upsert, replace, patch, delete, read
// and batch. An expect clause may check status, error (conflict,
// not_found, bad_request or any), resource (subset match), resources
// (exact) and ids (result ids, in order).
//
// # Assertion Types
//
//   - trace_count: an op appears exactly N times in the trace
//   - final_state: the stored item with id matches expect (subset), or
//     is absent when absent is true
//   - final_count: the container holds exactly N items
//
// # Translation Fixtures
//
// Translation fixtures are CUE files listing queries and the lowering
// they must produce:
//
//	cases: [{
//		name:  "equality"
//		query: "SELECT * FROM c WHERE c.status = @s"
//		params: "@s": "active"
//		expect: filter: status: "active"
//	}]
//
// Every expect field is optional: filter, sort, projection, skip, limit,
// aggregate, pipeline and diagnostics (a list of diagnostic codes).
//
// # Golden Files
//
// RunWithGolden and AssertTranslationGolden compare canonical JSON against
// testdata/golden/<name>.golden. Regenerate with:
//
//	go test ./internal/harness -update
package harness
