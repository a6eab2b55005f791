// Package querymongo lowers queryir.ParsedQuery into MongoDB filter, sort,
// projection and aggregation pipeline documents.
//
// Field references to the Cosmos identifier "id" become "_id". Conjunctions
// are flattened into a single document only when no key collides; the
// result is otherwise an explicit $and.
package querymongo
