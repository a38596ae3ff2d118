// Package broadcast provides a single-shot publish primitive: a value is sent
// once to every observer subscribed at that moment, followed by completion.
package broadcast

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Observer receives the single value published by a Broadcaster.
type Observer[T any] interface {
	OnNext(value T) error
	OnCompleted()
}

// Subscription removes an observer from its broadcaster.
type Subscription interface {
	Dispose()
}

type state int

const (
	idle state = iota
	fired
)

// Broadcaster delivers exactly one value to its subscribers. Subscribers
// added after the value was sent receive nothing.
type Broadcaster[T any] struct {
	mu        sync.Mutex
	name      string
	logger    *slog.Logger
	state     state
	nextID    uint64
	observers []entry[T]
}

type entry[T any] struct {
	id       uint64
	observer Observer[T]
}

// New creates a Broadcaster. The name is attached to log records.
func New[T any](name string, logger *slog.Logger) *Broadcaster[T] {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Broadcaster[T]{name: name, logger: logger}
}

// Subscribe registers an observer. Nil observers and subscriptions made after
// the value was sent return a no-op Subscription.
func (b *Broadcaster[T]) Subscribe(observer Observer[T]) Subscription {
	if observer == nil {
		return noop{}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == fired {
		return noop{}
	}

	b.nextID++
	id := b.nextID
	b.observers = append(b.observers, entry[T]{id: id, observer: observer})

	return &subscription[T]{b: b, id: id}
}

// Send publishes value to the current subscribers and completes them.
// Only the first call has any effect; it reports whether delivery happened.
func (b *Broadcaster[T]) Send(value T) bool {
	b.mu.Lock()
	if b.state == fired {
		b.mu.Unlock()
		return false
	}

	b.state = fired
	observers := b.observers
	b.observers = nil
	b.mu.Unlock()

	for _, e := range observers {
		b.deliver(e.observer, value)
	}

	return true
}

// Fired reports whether the value has been sent.
func (b *Broadcaster[T]) Fired() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == fired
}

// Len returns the number of pending subscribers.
func (b *Broadcaster[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.observers)
}

func (b *Broadcaster[T]) deliver(observer Observer[T], value T) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.LogAttrs(context.Background(), slog.LevelError, "failed to execute observer",
				slog.String("event", b.name),
				slog.String("observer", fmt.Sprintf("%T", observer)),
				slog.Any("panic", r),
			)
		}
	}()

	if err := observer.OnNext(value); err != nil {
		b.logger.LogAttrs(context.Background(), slog.LevelError, "failed to execute observer",
			slog.String("event", b.name),
			slog.String("observer", fmt.Sprintf("%T", observer)),
			slog.Any("error", err),
		)
	}

	observer.OnCompleted()
}

func (b *Broadcaster[T]) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, e := range b.observers {
		if e.id == id {
			b.observers = append(b.observers[:i:i], b.observers[i+1:]...)
			return
		}
	}
}

type subscription[T any] struct {
	once sync.Once
	b    *Broadcaster[T]
	id   uint64
}

func (s *subscription[T]) Dispose() {
	s.once.Do(func() { s.b.remove(s.id) })
}

type noop struct{}

func (noop) Dispose() {}
