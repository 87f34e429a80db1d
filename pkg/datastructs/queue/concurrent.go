package queue

import (
	"sync"
	"sync/atomic"
)

var _ Queue[int] = (*Concurrent[int])(nil)

const (
	stateUninitialized uint32 = iota
	stateReady
	stateShutdown
)

type node[T any] struct {
	value T
	next  *node[T]
}

// Concurrent is an unbounded FIFO queue shared by any number of producers
// and consumers. Structural mutation is serialized by a mutex; consumers
// blocked on an empty queue park on a condition variable.
//
// The chain always starts at a sentinel node that carries no payload, so
// the queue is empty exactly when head == tail. head designates the
// sentinel for the lifetime of the queue and removal always unlinks
// head.next.
//
// The zero value is not ready: call Init (or use NewConcurrent) first and
// Shutdown once every producer and consumer has stopped. Operations outside
// that window return ErrNotInitialized or ErrClosed.
//
// Node allocation uses the Go allocator, which aborts the process on
// exhaustion, so Enqueue never reports an allocation failure.
type Concurrent[T any] struct {
	sentinel node[T]
	head     *node[T]
	tail     *node[T]

	mu    sync.Mutex
	cond  *sync.Cond
	state uint32 // guarded by mu

	nodes   atomic.Pointer[freeList[T]]
	discard func(T)

	size    atomic.Uint64 // Linked real nodes
	waiting atomic.Uint64 // Consumers parked in Dequeue
	visited atomic.Uint64 // Successful enqueues since Init
}

// NewConcurrent creates a queue that is already initialized.
func NewConcurrent[T any](opts ...Option[T]) *Concurrent[T] {
	q := &Concurrent[T]{}
	_ = q.Init(opts...) // a fresh queue cannot fail Init
	return q
}

// Init moves the queue from uninitialized to ready.
// It must be called exactly once before any other operation.
func (q *Concurrent[T]) Init(opts ...Option[T]) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	switch q.state {
	case stateReady:
		return ErrAlreadyInitialized
	case stateShutdown:
		return ErrClosed
	}

	var o options[T]
	for _, opt := range opts {
		opt(&o)
	}

	q.sentinel = node[T]{}
	q.head = &q.sentinel
	q.tail = &q.sentinel
	q.cond = sync.NewCond(&q.mu)
	q.discard = o.discard
	if o.nodeCache > 0 {
		q.nodes.Store(newFreeList[T](o.nodeCache))
	}

	q.size.Store(0)
	q.waiting.Store(0)
	q.visited.Store(0)

	q.state = stateReady
	return nil
}

// Shutdown releases every node still linked and invalidates the queue.
// Values still in the queue are handed to the discard hook, if any.
//
// Callers must stop all producers and consumers first; Shutdown does not
// wait for in-flight operations. Consumers still parked in Dequeue are
// detected and reported as ErrWaitersPresent, leaving the queue ready.
func (q *Concurrent[T]) Shutdown() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.checkLocked(); err != nil {
		return err
	}
	if q.waiting.Load() > 0 {
		return ErrWaitersPresent
	}

	var zero T
	for n := q.head.next; n != nil; {
		next := n.next
		if q.discard != nil {
			q.discard(n.value)
		}
		n.value = zero
		n.next = nil
		n = next
	}

	q.head.next = nil
	q.tail = q.head
	q.size.Store(0)
	q.nodes.Store(nil)
	q.state = stateShutdown
	return nil
}

// Enqueue links value at the tail and wakes one parked consumer, if any.
// It never blocks beyond the structural lock.
func (q *Concurrent[T]) Enqueue(value T) error {
	n := q.newNode(value)

	q.mu.Lock()
	if err := q.checkLocked(); err != nil {
		q.mu.Unlock()
		return err
	}
	q.tail.next = n
	q.tail = n
	q.size.Add(1)
	q.mu.Unlock()

	// A consumer that saw the queue empty incremented waiting under the
	// lock before parking, so it is visible here.
	if q.waiting.Load() > 0 {
		q.cond.Signal()
	}
	q.visited.Add(1)
	return nil
}

// EnqueueBatch links all items under a single lock acquisition.
// One parked consumer is signalled per item while any remain parked.
func (q *Concurrent[T]) EnqueueBatch(items []T) error {
	if len(items) == 0 {
		return q.check()
	}

	first := q.newNode(items[0])
	last := first
	for _, item := range items[1:] {
		n := q.newNode(item)
		last.next = n
		last = n
	}

	q.mu.Lock()
	if err := q.checkLocked(); err != nil {
		q.mu.Unlock()
		q.releaseChain(first)
		return err
	}
	q.tail.next = first
	q.tail = last
	q.size.Add(uint64(len(items)))
	waiting := q.waiting.Load()
	q.mu.Unlock()

	for i := uint64(0); i < uint64(len(items)) && i < waiting; i++ {
		q.cond.Signal()
	}
	q.visited.Add(uint64(len(items)))
	return nil
}

// Dequeue removes and returns the head item, parking the caller while the
// queue is empty. A parked Dequeue can only be released by an Enqueue;
// callers that need a deadline should use Poll instead.
func (q *Concurrent[T]) Dequeue() (T, error) {
	var zero T

	q.mu.Lock()
	if err := q.checkLocked(); err != nil {
		q.mu.Unlock()
		return zero, err
	}

	for q.head == q.tail {
		q.waiting.Add(1)
		q.cond.Wait()
		q.waiting.Add(^uint64(0))

		if err := q.checkLocked(); err != nil {
			q.mu.Unlock()
			return zero, err
		}
	}

	n := q.unlinkLocked()
	q.mu.Unlock()

	return q.releaseNode(n), nil
}

// TryDequeue removes and returns the head item without parking.
// An empty queue yields (zero, false, nil) and leaves every counter untouched.
func (q *Concurrent[T]) TryDequeue() (T, bool, error) {
	var zero T

	q.mu.Lock()
	if err := q.checkLocked(); err != nil {
		q.mu.Unlock()
		return zero, false, err
	}
	if q.head == q.tail {
		q.mu.Unlock()
		return zero, false, nil
	}

	n := q.unlinkLocked()
	q.mu.Unlock()

	return q.releaseNode(n), true, nil
}

// TryDequeueBatch removes up to len(out) items into out under a single lock
// acquisition. Returns the number of items removed.
func (q *Concurrent[T]) TryDequeueBatch(out []T) (int, error) {
	q.mu.Lock()
	if err := q.checkLocked(); err != nil {
		q.mu.Unlock()
		return 0, err
	}

	var chain, last *node[T]
	count := 0
	for count < len(out) && q.head != q.tail {
		n := q.unlinkLocked()
		if chain == nil {
			chain = n
		} else {
			last.next = n
		}
		last = n
		count++
	}
	q.mu.Unlock()

	for i, n := 0, chain; n != nil; i++ {
		next := n.next
		out[i] = q.releaseNode(n)
		n = next
	}
	return count, nil
}

// Size returns the number of items currently linked.
func (q *Concurrent[T]) Size() uint64 { return q.size.Load() }

// Waiting returns the number of consumers currently parked in Dequeue.
func (q *Concurrent[T]) Waiting() uint64 { return q.waiting.Load() }

// Visited returns the total number of items ever enqueued since Init.
func (q *Concurrent[T]) Visited() uint64 { return q.visited.Load() }

// Stats returns a snapshot of all three counters.
func (q *Concurrent[T]) Stats() Stats {
	return Stats{
		Size:    q.size.Load(),
		Waiting: q.waiting.Load(),
		Visited: q.visited.Load(),
	}
}

// unlinkLocked detaches the first real node. The queue must be non-empty.
func (q *Concurrent[T]) unlinkLocked() *node[T] {
	n := q.head.next
	q.head.next = n.next
	if q.tail == n {
		q.tail = q.head
	}
	n.next = nil
	q.size.Add(^uint64(0))
	return n
}

func (q *Concurrent[T]) check() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.checkLocked()
}

func (q *Concurrent[T]) checkLocked() error {
	switch q.state {
	case stateReady:
		return nil
	case stateShutdown:
		return ErrClosed
	default:
		return ErrNotInitialized
	}
}

func (q *Concurrent[T]) newNode(value T) *node[T] {
	if nodes := q.nodes.Load(); nodes != nil {
		if n := nodes.get(); n != nil {
			n.value = value
			return n
		}
	}
	return &node[T]{value: value}
}

// releaseNode takes the value out of a detached node and recycles the node.
func (q *Concurrent[T]) releaseNode(n *node[T]) T {
	var zero T
	value := n.value
	n.value = zero
	n.next = nil
	if nodes := q.nodes.Load(); nodes != nil {
		nodes.put(n)
	}
	return value
}

func (q *Concurrent[T]) releaseChain(n *node[T]) {
	for n != nil {
		next := n.next
		q.releaseNode(n)
		n = next
	}
}
