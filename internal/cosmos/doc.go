// Package cosmos exposes a Cosmos DB Items API over a document backend.
//
// The surface mirrors the Cosmos container client: a Client hands out
// Databases, a Database hands out Containers, and a Container offers the
// item-set operations (query, upsert, create, batch) and single-item
// operations (read, replace, delete, patch). Documents cross the adapter
// boundary through an envelope mapping that renames the Cosmos "id"
// property to the backend's "_id" and strips Cosmos housekeeping fields.
//
// Queries are Cosmos SQL text. They are translated by the cosmossql
// package and lowered to MongoDB filters or pipelines by querymongo, so
// the same query runs unchanged on MongoDB or on the SQLite store.
//
// Backends are opened lazily by a Connection, which owns the process-wide
// resource and closes it on shutdown.
package cosmos
