// Package store provides a SQLite-backed document store implementing
// docstore.Backend.
//
// It is the embedded alternative to MongoDB: the CLI selects it for
// sqlite: URIs and the adapter tests run against it in memory. Documents
// are stored as JSON text, one row each, and queries are evaluated in
// process with internal/docmatch.
//
// # Ordering
//
// Every document carries a seq assigned at insert. Reads return
// documents in seq order, which is the natural order a find without a
// sort observes. Replacing or updating a document keeps its seq.
//
// # Numbers
//
// Integers round-trip as int64. Floats round-trip as float64, except
// that an integral float (3.0) reads back as the integer 3.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
