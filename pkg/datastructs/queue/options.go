package queue

type options[T any] struct {
	nodeCache int
	discard   func(T)
}

// Option configures a Concurrent queue at Init.
type Option[T any] func(*options[T])

// WithNodeCache recycles up to n released nodes through a lock-free free-list
// instead of allocating a new node on every Enqueue. n <= 0 disables the cache.
func WithNodeCache[T any](n int) Option[T] {
	return func(o *options[T]) {
		o.nodeCache = n
	}
}

// WithDiscard sets a hook that takes ownership of every value still linked
// when Shutdown releases the queue. It is called with the lock held and must
// not call back into the queue.
func WithDiscard[T any](fn func(T)) Option[T] {
	return func(o *options[T]) {
		o.discard = fn
	}
}
