package queue

// process is the process-wide queue instance. Its lifecycle is the same as
// any Concurrent: Init once, Shutdown once after every user has stopped.
var process Concurrent[any]

// Default returns the process-wide queue.
func Default() *Concurrent[any] {
	return &process
}

// Init initializes the process-wide queue.
func Init(opts ...Option[any]) error {
	return process.Init(opts...)
}

// Shutdown releases the process-wide queue.
func Shutdown() error {
	return process.Shutdown()
}

// Enqueue appends value to the process-wide queue.
func Enqueue(value any) error {
	return process.Enqueue(value)
}

// Dequeue removes the head of the process-wide queue, blocking while it is empty.
func Dequeue() (any, error) {
	return process.Dequeue()
}

// TryDequeue removes the head of the process-wide queue without blocking.
func TryDequeue() (any, bool, error) {
	return process.TryDequeue()
}

// Size returns the depth of the process-wide queue.
func Size() uint64 { return process.Size() }

// Waiting returns the number of consumers parked on the process-wide queue.
func Waiting() uint64 { return process.Waiting() }

// Visited returns the total number of enqueues on the process-wide queue.
func Visited() uint64 { return process.Visited() }
