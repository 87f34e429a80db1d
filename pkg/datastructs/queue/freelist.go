package queue

import (
	"math/bits"
	"runtime"
	"sync/atomic"

	pkgRuntime "github.com/huynhanx03/go-cqueue/pkg/runtime"
	"github.com/huynhanx03/go-cqueue/pkg/utils"
)

const (
	cacheLineSize = 64

	// Adaptive spinning: PAUSE first, then yield to the scheduler.
	activeSpinCycles = 4
	activeSpinTries  = 30
)

type cacheSlot[T any] struct {
	turn atomic.Uint64
	n    *node[T]
	_    [cacheLineSize - 16]byte // Padding to prevent false sharing
}

// freeList is a bounded lock-free multi-producer multi-consumer ring of
// released nodes. A node is owned either by the queue chain, by the
// free-list, or by nobody; put and get hand that ownership over.
type freeList[T any] struct {
	capacity     uint64
	mask         uint64
	capacityLog2 uint64
	slots        []cacheSlot[T]

	_ [cacheLineSize]byte

	head atomic.Uint64 // Next put position

	_ [cacheLineSize]byte

	tail atomic.Uint64 // Next get position
}

// newFreeList creates a free-list with capacity rounded up to a power of 2.
func newFreeList[T any](capacity int) *freeList[T] {
	capacity = utils.CeilToPowerOfTwo(capacity)

	return &freeList[T]{
		capacity:     uint64(capacity),
		mask:         uint64(capacity - 1),
		capacityLog2: uint64(bits.TrailingZeros64(uint64(capacity))),
		slots:        make([]cacheSlot[T], capacity),
	}
}

func (f *freeList[T]) idx(pos uint64) uint64  { return pos & f.mask }
func (f *freeList[T]) turn(pos uint64) uint64 { return pos >> f.capacityLog2 }

// put offers a cleared node to the free-list.
// Returns false if the list is full, in which case the node is left to the GC.
func (f *freeList[T]) put(n *node[T]) bool {
	for spin := 0; ; spin++ {
		head := f.head.Load()
		slot := &f.slots[f.idx(head)]
		expectedTurn := f.turn(head) * 2

		if slot.turn.Load() == expectedTurn {
			if f.head.CompareAndSwap(head, head+1) {
				slot.n = n
				slot.turn.Store(expectedTurn + 1)
				return true
			}
		} else if head == f.head.Load() {
			return false
		}

		backoff(spin)
	}
}

// get takes a node from the free-list, or returns nil if it is empty.
func (f *freeList[T]) get() *node[T] {
	for spin := 0; ; spin++ {
		tail := f.tail.Load()
		slot := &f.slots[f.idx(tail)]
		expectedTurn := f.turn(tail)*2 + 1

		if slot.turn.Load() == expectedTurn {
			if f.tail.CompareAndSwap(tail, tail+1) {
				n := slot.n
				slot.n = nil
				slot.turn.Store(expectedTurn + 1)
				return n
			}
		} else if tail == f.tail.Load() {
			return nil
		}

		backoff(spin)
	}
}

func backoff(spin int) {
	if spin < activeSpinTries {
		pkgRuntime.Procyield(activeSpinCycles)
		return
	}
	runtime.Gosched()
}
