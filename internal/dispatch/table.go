// Package dispatch maps decoded packet names to handlers.
package dispatch

import (
	"sort"
	"sync"

	"github.com/1ureka/soegate/internal/protocol"
)

// HandlerFunc handles one decoded packet. C is the per-connection state the
// owning component threads through its handlers.
type HandlerFunc[C any] func(c C, msg protocol.Message)

// Table maintains the packet-name → handler route table. Routes are
// registered once at construction; names without a route are dropped.
type Table[C any] struct {
	mu     sync.RWMutex
	routes map[string]HandlerFunc[C]
}

// New creates an empty table.
func New[C any]() *Table[C] {
	return &Table[C]{
		routes: make(map[string]HandlerFunc[C]),
	}
}

// Register installs fn for name, replacing any previous route.
func (t *Table[C]) Register(name string, fn HandlerFunc[C]) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.routes[name] = fn
}

// Lookup returns the handler for name.
func (t *Table[C]) Lookup(name string) (HandlerFunc[C], bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	fn, ok := t.routes[name]
	return fn, ok
}

// Dispatch runs the handler registered for msg. It reports whether one ran;
// an unknown name is a no-op, never an error.
func (t *Table[C]) Dispatch(c C, msg protocol.Message) bool {
	fn, ok := t.Lookup(msg.Name())
	if !ok {
		return false
	}
	fn(c, msg)
	return true
}

// Handle parses data with codec and dispatches the result. A parse error is
// returned untouched and nothing is dispatched.
func (t *Table[C]) Handle(c C, codec protocol.Codec, data []byte) (protocol.Message, error) {
	msg, err := codec.Parse(data)
	if err != nil {
		return nil, err
	}
	t.Dispatch(c, msg)
	return msg, nil
}

// Names lists the registered packet names in sorted order.
func (t *Table[C]) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.routes))
	for name := range t.routes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
