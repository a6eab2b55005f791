package cosmos

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/hashicorp/go-multierror"

	"github.com/roach88/cosmongo/internal/docstore"
)

// ErrClosed is returned by a Connection after Close.
var ErrClosed = errors.New("connection closed")

// Opener dials a backend. It is called at most once per successful open.
type Opener func(ctx context.Context) (docstore.Backend, error)

// Connection owns the process-wide backend.
//
// The backend is opened lazily on first use. A failed open is not cached:
// the next call dials again. Close releases the backend and runs every
// registered OnClose hook, in registration order.
//
// Thread-safety: all methods are safe for concurrent use.
type Connection struct {
	open Opener

	mu      sync.Mutex
	backend docstore.Backend
	closed  bool
	hooks   []func(ctx context.Context) error
}

// NewConnection creates a Connection that dials with open on first use.
func NewConnection(open Opener) *Connection {
	return &Connection{open: open}
}

// Backend returns the open backend, dialing it if needed.
func (c *Connection) Backend(ctx context.Context) (docstore.Backend, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	if c.backend != nil {
		return c.backend, nil
	}

	backend, err := c.open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open backend: %w", err)
	}
	c.backend = backend
	slog.Debug("backend opened")
	return backend, nil
}

// OnClose registers fn to run during Close, after the backend is closed.
func (c *Connection) OnClose(fn func(ctx context.Context) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = append(c.hooks, fn)
}

// Close closes the backend (if it was ever opened) and runs the OnClose
// hooks. Every step runs even when an earlier one fails; the failures
// are returned together. Closing twice is a no-op.
//
// Hooks run without the lock held; from inside a hook Backend returns
// ErrClosed and OnClose registers a hook that never runs.
func (c *Connection) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	backend, hooks := c.backend, c.hooks
	c.backend, c.hooks = nil, nil
	c.mu.Unlock()

	var result error
	if backend != nil {
		if err := backend.Close(ctx); err != nil {
			result = multierror.Append(result, fmt.Errorf("close backend: %w", err))
		}
	}
	for _, hook := range hooks {
		if err := hook(ctx); err != nil {
			result = multierror.Append(result, err)
		}
	}

	slog.Debug("connection closed", "error", result)
	return result
}

// CloseOnSignal closes the Connection when one of sigs arrives (SIGINT
// and SIGTERM when none are given). The returned stop function cancels
// the watch without closing.
func (c *Connection) CloseOnSignal(ctx context.Context, sigs ...os.Signal) (stop func()) {
	if len(sigs) == 0 {
		sigs = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, sigs...)
	done := make(chan struct{})

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, closing connection", "signal", sig.String())
			if err := c.Close(context.WithoutCancel(ctx)); err != nil {
				slog.Error("close on signal failed", "error", err)
			}
		case <-done:
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}
