package pump

import "github.com/huynhanx03/go-cqueue/pkg/datastructs/queue"

// Consumer is the interface that must be implemented by users of the Pump.
// It is responsible for processing a batch of items.
type Consumer[T any] interface {
	// Consume processes a batch of items. The batch is owned by the
	// Consumer once passed. Returns an error if processing fails.
	Consume(batch []T) error
}

// ConsumerFunc adapts a plain function to a Consumer.
type ConsumerFunc[T any] func(batch []T) error

// Consume calls f(batch).
func (f ConsumerFunc[T]) Consume(batch []T) error { return f(batch) }

// Source is a queue a Pump can drain in batches.
type Source[T any] interface {
	queue.Queue[T]
	TryDequeueBatch(out []T) (int, error)
}

// Config holds configuration for the Pump.
type Config struct {
	// BatchSize is the maximum number of items passed to one Consume call.
	BatchSize int

	// Poll tunes the backoff while the source is empty.
	Poll queue.PollConfig
}
