// Package event provides per-component event fan-out.
package event

import "sync"

// Kind names an event a component emits, e.g. "login" or "tunneldata".
type Kind string

// Bus delivers events of type E to the subscribers of each kind. Delivery is
// synchronous on the emitting goroutine, in subscription order. The zero
// value is ready to use.
type Bus[E any] struct {
	mu   sync.RWMutex
	subs map[Kind][]func(E)
}

// On subscribes fn to kind. Multiple subscribers per kind are allowed.
func (b *Bus[E]) On(kind Kind, fn func(E)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs == nil {
		b.subs = make(map[Kind][]func(E))
	}
	b.subs[kind] = append(b.subs[kind], fn)
}

// Emit delivers ev to every subscriber of kind and returns how many ran.
func (b *Bus[E]) Emit(kind Kind, ev E) int {
	b.mu.RLock()
	handlers := make([]func(E), len(b.subs[kind]))
	copy(handlers, b.subs[kind])
	b.mu.RUnlock()

	for _, fn := range handlers {
		fn(ev)
	}
	return len(handlers)
}
