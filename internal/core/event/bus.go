package event

import (
	"reflect"
	"sync"

	"go.uber.org/zap"
)

// Bus is a double-buffered event bus. Events emitted in tick N are
// delivered in tick N+1 by EventDispatchSystem, which calls SwapBuffers
// and then DispatchAll. Only Subscribe may be called off the game loop.
type Bus struct {
	mu       sync.Mutex // guards handlers
	front    map[reflect.Type][]any
	back     map[reflect.Type][]any
	handlers map[reflect.Type][]func(any)
	log      *zap.Logger
}

func NewBus(log *zap.Logger) *Bus {
	return &Bus{
		front:    make(map[reflect.Type][]any),
		back:     make(map[reflect.Type][]any),
		handlers: make(map[reflect.Type][]func(any)),
		log:      log,
	}
}

func keyOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Emit queues an event into the back buffer (readable next tick).
func Emit[T any](b *Bus, ev T) {
	t := keyOf[T]()
	b.back[t] = append(b.back[t], ev)
}

// Subscribe registers a typed handler for events of type T.
func Subscribe[T any](b *Bus, fn func(T)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t := keyOf[T]()
	b.handlers[t] = append(b.handlers[t], func(ev any) { fn(ev.(T)) })
}

// SwapBuffers rotates back to front and clears the new back buffer.
func (b *Bus) SwapBuffers() {
	b.front, b.back = b.back, b.front
	for k := range b.back {
		b.back[k] = b.back[k][:0]
	}
}

// DispatchAll delivers all front-buffer events to their handlers. A
// panicking handler is logged and skipped.
func (b *Bus) DispatchAll() int {
	b.mu.Lock()
	handlers := b.handlers
	b.mu.Unlock()

	n := 0
	for t, events := range b.front {
		hs := handlers[t]
		for _, ev := range events {
			for _, h := range hs {
				b.call(t, h, ev)
			}
			n++
		}
		b.front[t] = events[:0]
	}
	return n
}

func (b *Bus) call(t reflect.Type, h func(any), ev any) {
	defer func() {
		if rec := recover(); rec != nil {
			b.log.Error("event handler panic recovered",
				zap.String("event", t.String()),
				zap.Any("panic", rec),
			)
		}
	}()
	h(ev)
}
