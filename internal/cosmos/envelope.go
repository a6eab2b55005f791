package cosmos

import (
	"fmt"
	"strconv"

	"github.com/roach88/cosmongo/internal/querymongo"
)

// sourceID is the Cosmos identifier property.
const sourceID = "id"

// housekeeping lists Cosmos system properties. They are meaningless to the
// backend and are dropped in both directions.
var housekeeping = []string{"_rid", "_self", "_etag", "_attachments", "_ts"}

// toStore maps a Cosmos document to its stored form: id becomes _id and
// housekeeping fields are dropped. The input is not modified.
func toStore(doc map[string]any) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	for _, k := range housekeeping {
		delete(out, k)
	}
	if id, ok := out[sourceID]; ok {
		delete(out, sourceID)
		out[querymongo.IDField] = id
	}
	return out
}

// fromStore maps a stored document back to its Cosmos form: _id becomes
// a string id and housekeeping fields are dropped.
func fromStore(doc map[string]any) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	for _, k := range housekeeping {
		delete(out, k)
	}
	if id, ok := out[querymongo.IDField]; ok {
		delete(out, querymongo.IDField)
		out[sourceID] = idString(id)
	}
	return out
}

// idString renders a stored identifier. Backends hand ObjectIDs back as
// hex strings already.
func idString(id any) string {
	switch v := id.(type) {
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case nil:
		return ""
	}
	return fmt.Sprint(id)
}

// resolveID returns the document's id, synthesizing one with gen when it
// is absent or empty. The returned document is a copy carrying the id.
func resolveID(doc map[string]any, gen IDGenerator) (map[string]any, string) {
	out := make(map[string]any, len(doc)+1)
	for k, v := range doc {
		out[k] = v
	}
	id := idString(out[sourceID])
	if id == "" {
		id = gen.Generate()
	}
	out[sourceID] = id
	return out, id
}
