package cosmos

import (
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/roach88/cosmongo/internal/docstore"
	"github.com/roach88/cosmongo/internal/querymongo"
)

// Container is a handle on one collection.
type Container struct {
	client   *Client
	database string
	name     string
	coll     docstore.Collection
}

// ID returns the container name.
func (c *Container) ID() string {
	return c.name
}

// Database returns the name of the owning database.
func (c *Container) Database() string {
	return c.database
}

// Items returns the item-set operations of the container.
func (c *Container) Items() *Items {
	return &Items{container: c}
}

// Item returns the single-item operations for id. The partition key is
// accepted for API compatibility and ignored: a backend collection is one
// logical partition.
func (c *Container) Item(id string, partitionKey any) *Item {
	return &Item{container: c, id: id}
}

func idFilter(id string) bson.D {
	return bson.D{{Key: querymongo.IDField, Value: id}}
}
