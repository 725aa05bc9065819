package chat

import (
	"fmt"
)

// Handler processes one inbound frame kind.
type Handler interface {
	Kind() EventKind
	Handle(ctx *Context, c *Client, f *Frame) error
}

// Context carries the server into handlers.
type Context struct {
	S *Server
}

// Dispatcher binds inbound frame kinds to handlers. The table is closed:
// EnsureHandlers is called at startup with every inbound kind, so a kind
// nobody registered is a boot failure, not a silent runtime miss.
type Dispatcher struct {
	handlers map[EventKind]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[EventKind]Handler)}
}

func (d *Dispatcher) Register(h Handler) { d.handlers[h.Kind()] = h }

func (d *Dispatcher) Dispatch(ctx *Context, c *Client, f *Frame) error {
	h, ok := d.handlers[f.Kind]
	if !ok {
		return fmt.Errorf("no handler for kind=%s", f.Kind)
	}
	return h.Handle(ctx, c, f)
}

func (d *Dispatcher) HasHandler(kind EventKind) bool {
	_, ok := d.handlers[kind]
	return ok
}

// EnsureHandlers verifies full coverage of the given kinds.
func (d *Dispatcher) EnsureHandlers(kinds ...EventKind) error {
	for _, k := range kinds {
		if !d.HasHandler(k) {
			return fmt.Errorf("no handler registered for kind=%s", k)
		}
	}
	return nil
}
