// Package ir provides the value model shared by the query IR, the SQL
// transpiler and the Mongo lowering.
//
// This package contains value types only. All other internal packages may
// import ir; ir imports nothing internal.
//
// Key design constraints:
//   - IRValue is sealed: IRNull, IRString, IRInt, IRFloat, IRBool, IRArray,
//     IRObject are the only implementations
//   - Integers stay int64 end to end; floats only appear when the source
//     literal or bound parameter was fractional
//   - Object iteration goes through SortedKeys (RFC 8785 order) so every
//     rendering of the IR is deterministic
//
// Canonical JSON (MarshalCanonical) is the only serialization used for
// snapshots and query fingerprints.
package ir
