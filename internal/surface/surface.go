// Package surface defines the contract between the panel composer and the
// host that displays its documents.
package surface

import (
	"errors"
	"sync"

	"github.com/dshills/livecode/internal/document"
	"github.com/dshills/livecode/internal/scroll"
)

// ErrDisposed is returned when content is pushed to a surface the user has
// already closed.
var ErrDisposed = errors.New("surface disposed")

// Surface displays one panel document at a time.
//
// SetContent and PostMessage must not block on delivery; the host delivers
// asynchronously. After Dispose, SetContent returns ErrDisposed and
// PostMessage is a no-op.
type Surface interface {
	// SetContent replaces the displayed document.
	SetContent(doc document.Document) error

	// PostMessage sends a fire-and-forget scroll message to the live document.
	PostMessage(msg scroll.Message) error

	// OnDispose registers fn to run once when the surface is torn down.
	OnDispose(fn func())

	// OnMessage registers fn to receive inbound line events.
	OnMessage(fn func(msg scroll.Message))

	// Dispose tears the surface down. Calling it more than once is harmless.
	Dispose() error
}

// Host creates surfaces.
type Host interface {
	// Open creates a surface labelled for the given source.
	Open(label string) (Surface, error)
}

// Callbacks tracks dispose and inbound message handlers for a surface
// implementation. It is safe for concurrent use.
type Callbacks struct {
	mu        sync.Mutex
	disposed  bool
	onDispose []func()
	onMessage []func(scroll.Message)
}

// OnDispose registers a dispose handler. If the surface is already
// disposed, fn runs immediately.
func (c *Callbacks) OnDispose(fn func()) {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		fn()
		return
	}
	c.onDispose = append(c.onDispose, fn)
	c.mu.Unlock()
}

// OnMessage registers an inbound message handler.
func (c *Callbacks) OnMessage(fn func(scroll.Message)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onMessage = append(c.onMessage, fn)
}

// Disposed reports whether FireDispose has run.
func (c *Callbacks) Disposed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disposed
}

// FireDispose marks the surface disposed and runs the dispose handlers
// once. It reports false if the surface was already disposed.
func (c *Callbacks) FireDispose() bool {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return false
	}
	c.disposed = true
	handlers := c.onDispose
	c.onDispose = nil
	c.onMessage = nil
	c.mu.Unlock()

	for _, fn := range handlers {
		fn()
	}
	return true
}

// FireMessage delivers an inbound message to every handler. Messages after
// disposal are dropped.
func (c *Callbacks) FireMessage(msg scroll.Message) {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	handlers := make([]func(scroll.Message), len(c.onMessage))
	copy(handlers, c.onMessage)
	c.mu.Unlock()

	for _, fn := range handlers {
		fn(msg)
	}
}
