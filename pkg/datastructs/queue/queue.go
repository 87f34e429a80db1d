package queue

import "errors"

var (
	// ErrNotInitialized is returned by every operation on a queue whose Init was never called.
	ErrNotInitialized = errors.New("queue: not initialized")

	// ErrAlreadyInitialized is returned when Init is called on a ready queue.
	ErrAlreadyInitialized = errors.New("queue: already initialized")

	// ErrClosed is returned by every operation on a queue that has been shut down.
	ErrClosed = errors.New("queue: shut down")

	// ErrWaitersPresent is returned by Shutdown while consumers are blocked in Dequeue.
	ErrWaitersPresent = errors.New("queue: consumers still waiting")
)

// Queue is a generic interface for unbounded FIFO queues.
type Queue[T any] interface {
	// Enqueue appends an item to the tail of the queue.
	Enqueue(item T) error

	// Dequeue removes and returns the head item, blocking while the queue is empty.
	Dequeue() (T, error)

	// TryDequeue removes and returns the head item without blocking.
	// Returns (zero, false, nil) if the queue is empty.
	TryDequeue() (T, bool, error)

	// Size returns the number of items currently linked.
	Size() uint64
}

// Stats is a point-in-time snapshot of the queue counters.
// The fields are loaded independently and may not be mutually consistent
// under concurrent mutation.
type Stats struct {
	Size    uint64 `json:"size"`    // Items currently linked
	Waiting uint64 `json:"waiting"` // Consumers blocked in Dequeue
	Visited uint64 `json:"visited"` // Successful enqueues since Init
}
