// Package broadcast delivers events to multiple subscribers in
// registration order, synchronously on the publisher goroutine. There is
// no buffering: a subscriber joining after an event was published never
// sees it.
package broadcast

import (
	"log/slog"
	"slices"
	"sync"
)

// Hub fans one event stream out to its subscribers.
type Hub[T any] struct {
	mx   sync.Mutex
	subs []*Subscription[T]
}

func New[T any]() *Hub[T] {
	return &Hub[T]{}
}

// Subscription pairs a listener with its revocation capability.
type Subscription[T any] struct {
	hub  *Hub[T]
	fn   func(T)
	dead bool // guarded by hub.mx
}

// Subscribe registers fn. The listener runs on the publisher goroutine and
// stays registered until Unsubscribe is called.
func (h *Hub[T]) Subscribe(fn func(T)) *Subscription[T] {
	s := &Subscription[T]{hub: h, fn: fn}
	h.mx.Lock()
	h.subs = append(h.subs, s)
	h.mx.Unlock()
	return s
}

// Publish delivers v to every subscriber registered at the moment of the
// call, in registration order. A panicking listener is isolated: the panic
// is recovered and logged, and delivery continues with the next listener.
func (h *Hub[T]) Publish(v T) {
	h.mx.Lock()
	subs := slices.Clone(h.subs)
	h.mx.Unlock()

	for _, s := range subs {
		s.deliver(v)
	}
}

// Len returns the current subscriber count.
func (h *Hub[T]) Len() int {
	h.mx.Lock()
	defer h.mx.Unlock()
	return len(h.subs)
}

// Unsubscribe removes the listener. Idempotent. An unsubscribed listener
// receives no further events, including events already published whose
// delivery has not yet reached it.
func (s *Subscription[T]) Unsubscribe() {
	s.hub.mx.Lock()
	defer s.hub.mx.Unlock()
	if s.dead {
		return
	}
	s.dead = true
	s.hub.subs = slices.DeleteFunc(s.hub.subs, func(other *Subscription[T]) bool {
		return other == s
	})
}

func (s *Subscription[T]) deliver(v T) {
	s.hub.mx.Lock()
	dead := s.dead
	s.hub.mx.Unlock()
	if dead {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("event listener panicked", "panic", r)
		}
	}()
	s.fn(v)
}
