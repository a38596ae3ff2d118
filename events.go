package conventions

import "github.com/junioryono/conventions/internal/broadcast"

// Observer receives a build artifact once, followed by OnCompleted.
type Observer[T any] = broadcast.Observer[T]

// Subscription removes an observer that has not been notified yet.
type Subscription = broadcast.Subscription

// Observable publishes a single build artifact. Observers subscribed after
// the artifact was published are never notified.
type Observable[T any] interface {
	Subscribe(observer Observer[T]) Subscription
}

// ObserverFunc adapts a function to an Observer. OnCompleted does nothing.
type ObserverFunc[T any] func(value T) error

// OnNext calls f(value).
func (f ObserverFunc[T]) OnNext(value T) error { return f(value) }

// OnCompleted implements Observer.
func (f ObserverFunc[T]) OnCompleted() {}

// OnNext subscribes fn to o. It is shorthand for
// o.Subscribe(ObserverFunc[T](fn)).
func OnNext[T any](o Observable[T], fn func(T) error) Subscription {
	return o.Subscribe(ObserverFunc[T](fn))
}
