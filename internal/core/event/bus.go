package event

import (
	"reflect"
	"sync"
)

// Bus is a double-buffered event bus. Events emitted in step N are readable
// in step N+1: SwapBuffers is called at step start by the dispatch receiver.
// Event types are delivered in subscription order so dispatch is deterministic.
type Bus struct {
	mu       sync.Mutex // only protects handler registration
	front    map[reflect.Type][]any
	back     map[reflect.Type][]any
	handlers map[reflect.Type][]func(any)
	order    []reflect.Type
}

func NewBus() *Bus {
	return &Bus{
		front:    make(map[reflect.Type][]any),
		back:     make(map[reflect.Type][]any),
		handlers: make(map[reflect.Type][]func(any)),
	}
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Emit queues an event into the back buffer (delivered next step).
// Events without subscribers are dropped.
func Emit[T any](b *Bus, event T) {
	t := typeOf[T]()
	if _, ok := b.handlers[t]; !ok {
		return
	}
	b.back[t] = append(b.back[t], event)
}

// Subscribe registers a typed handler for events of type T.
func Subscribe[T any](b *Bus, fn func(T)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t := typeOf[T]()
	if _, ok := b.handlers[t]; !ok {
		b.order = append(b.order, t)
	}
	b.handlers[t] = append(b.handlers[t], func(ev any) { fn(ev.(T)) })
}

// SwapBuffers rotates back→front and clears the new back buffer.
func (b *Bus) SwapBuffers() {
	b.front, b.back = b.back, b.front
	for k := range b.back {
		b.back[k] = b.back[k][:0]
	}
}

// DispatchAll delivers all front-buffer events to their subscribed handlers.
func (b *Bus) DispatchAll() {
	for _, t := range b.order {
		events := b.front[t]
		for _, ev := range events {
			for _, h := range b.handlers[t] {
				h(ev)
			}
		}
		b.front[t] = events[:0]
	}
}

// Flush delivers everything emitted so far, including the current back buffer.
// Called at turn end so no event crosses a rewind.
func (b *Bus) Flush() {
	b.DispatchAll()
	b.SwapBuffers()
	b.DispatchAll()
}

// Reset drops every undelivered event.
func (b *Bus) Reset() {
	for k := range b.front {
		b.front[k] = b.front[k][:0]
	}
	for k := range b.back {
		b.back[k] = b.back[k][:0]
	}
}
