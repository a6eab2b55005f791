package cosmos

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/cosmongo/internal/querymongo"
)

// Client is the entry point of the adapter. It hands out Databases and
// caches Containers.
//
// Thread-safety: Client is safe for concurrent use.
type Client struct {
	conn     *Connection
	ids      IDGenerator
	compiler *querymongo.Compiler

	mu         sync.Mutex
	containers map[string]*Container
}

// Option configures a Client.
type Option func(*Client)

// WithIDGenerator sets the generator used for documents written without
// an id. The default is UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(c *Client) {
		c.ids = g
	}
}

// NewClient creates a Client on conn.
func NewClient(conn *Connection, opts ...Option) *Client {
	c := &Client{
		conn:       conn,
		ids:        UUIDv7Generator{},
		compiler:   querymongo.NewCompiler(),
		containers: make(map[string]*Container),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Database returns a handle for the named database. No I/O happens until
// a container is requested.
func (c *Client) Database(name string) *Database {
	return &Database{client: c, name: name}
}

// Close closes the underlying Connection.
func (c *Client) Close(ctx context.Context) error {
	return c.conn.Close(ctx)
}

// Database is a handle on one database.
type Database struct {
	client *Client
	name   string
}

// ID returns the database name.
func (d *Database) ID() string {
	return d.name
}

// Container returns the named container, creating the backing collection
// on first use. Repeated calls return the same *Container.
func (d *Database) Container(ctx context.Context, name string) (*Container, error) {
	c := d.client
	key := d.name + "/" + name

	c.mu.Lock()
	defer c.mu.Unlock()

	if cont, ok := c.containers[key]; ok {
		return cont, nil
	}

	backend, err := c.conn.Backend(ctx)
	if err != nil {
		return nil, err
	}
	coll, err := backend.Collection(ctx, d.name, name)
	if err != nil {
		return nil, fmt.Errorf("container %s: %w", key, err)
	}

	cont := &Container{
		client:   c,
		database: d.name,
		name:     name,
		coll:     coll,
	}
	c.containers[key] = cont
	slog.Debug("container ready", "database", d.name, "container", name)
	return cont, nil
}
