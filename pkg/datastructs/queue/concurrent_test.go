package queue

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

// =============================================================================
// Lifecycle Tests
// =============================================================================

func TestNewConcurrent(t *testing.T) {
	q := NewConcurrent[int]()
	if q == nil {
		t.Fatal("NewConcurrent returned nil")
	}

	assert.Equal(t, Stats{}, q.Stats())
	assert.Same(t, &q.sentinel, q.head)
	assert.Same(t, q.head, q.tail)
}

func TestInit_Twice(t *testing.T) {
	var q Concurrent[int]
	require.NoError(t, q.Init())
	assert.ErrorIs(t, q.Init(), ErrAlreadyInitialized)
}

func TestOperations_BeforeInit(t *testing.T) {
	var q Concurrent[int]

	tests := []struct {
		name string
		op   func() error
	}{
		{"enqueue", func() error { return q.Enqueue(1) }},
		{"enqueue_batch", func() error { return q.EnqueueBatch([]int{1, 2}) }},
		{"enqueue_batch_empty", func() error { return q.EnqueueBatch(nil) }},
		{"dequeue", func() error { _, err := q.Dequeue(); return err }},
		{"try_dequeue", func() error { _, _, err := q.TryDequeue(); return err }},
		{"try_dequeue_batch", func() error { _, err := q.TryDequeueBatch(make([]int, 2)); return err }},
		{"shutdown", func() error { return q.Shutdown() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.op(), ErrNotInitialized)
		})
	}

	assert.Equal(t, Stats{}, q.Stats())
}

func TestOperations_AfterShutdown(t *testing.T) {
	q := NewConcurrent[int]()
	require.NoError(t, q.Enqueue(1))
	require.NoError(t, q.Shutdown())

	tests := []struct {
		name string
		op   func() error
	}{
		{"init", func() error { return q.Init() }},
		{"enqueue", func() error { return q.Enqueue(1) }},
		{"enqueue_batch", func() error { return q.EnqueueBatch([]int{1, 2}) }},
		{"dequeue", func() error { _, err := q.Dequeue(); return err }},
		{"try_dequeue", func() error { _, _, err := q.TryDequeue(); return err }},
		{"try_dequeue_batch", func() error { _, err := q.TryDequeueBatch(make([]int, 2)); return err }},
		{"shutdown", func() error { return q.Shutdown() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.op(), ErrClosed)
		})
	}

	assert.Equal(t, uint64(0), q.Size())
	assert.Equal(t, uint64(1), q.Visited(), "visited is cumulative and survives shutdown")
}

// =============================================================================
// Enqueue / Dequeue Tests
// =============================================================================

func TestDequeue_FIFOOrder(t *testing.T) {
	q := NewConcurrent[int]()
	items := []int{5, 1, 4, 2, 3}

	for _, item := range items {
		if err := q.Enqueue(item); err != nil {
			t.Fatalf("Enqueue(%d) error: %v", item, err)
		}
	}

	for i, want := range items {
		got, err := q.Dequeue()
		if err != nil {
			t.Fatalf("Dequeue %d error: %v", i, err)
		}
		if got != want {
			t.Errorf("Dequeue() = %d, want %d (FIFO order)", got, want)
		}
	}

	if q.head != q.tail {
		t.Error("drained queue should have head == tail")
	}
}

func TestSizeInvariant(t *testing.T) {
	tests := []struct {
		name     string
		enqueues int
		removals int
	}{
		{"empty", 0, 0},
		{"enqueue_only", 10, 0},
		{"partial_drain", 10, 4},
		{"full_drain", 10, 10},
		{"single", 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := NewConcurrent[int]()
			for i := 0; i < tt.enqueues; i++ {
				q.Enqueue(i)
			}
			// Alternate blocking and non-blocking removal.
			for i := 0; i < tt.removals; i++ {
				if i%2 == 0 {
					q.Dequeue()
				} else if _, ok, _ := q.TryDequeue(); !ok {
					t.Fatalf("TryDequeue %d found nothing", i)
				}
			}

			want := uint64(tt.enqueues - tt.removals)
			if got := q.Size(); got != want {
				t.Errorf("Size() = %d, want %d", got, want)
			}
		})
	}
}

func TestVisited_Monotonic(t *testing.T) {
	q := NewConcurrent[int]()

	prev := q.Visited()
	for i := 1; i <= 20; i++ {
		q.Enqueue(i)
		if i%3 == 0 {
			q.TryDequeue()
		}
		got := q.Visited()
		if got < prev {
			t.Fatalf("Visited() decreased: %d -> %d", prev, got)
		}
		prev = got
	}

	if got := q.Visited(); got != 20 {
		t.Errorf("Visited() = %d, want 20", got)
	}
}

func TestTryDequeue_Empty(t *testing.T) {
	q := NewConcurrent[int]()

	for i := 0; i < 3; i++ {
		v, ok, err := q.TryDequeue()
		if err != nil {
			t.Fatalf("TryDequeue error: %v", err)
		}
		if ok {
			t.Error("TryDequeue on empty queue should report not found")
		}
		if v != 0 {
			t.Errorf("TryDequeue on empty should return zero value, got %d", v)
		}
	}

	assert.Equal(t, Stats{}, q.Stats(), "empty TryDequeue must not touch counters")
}

func TestTryDequeue_LastNodeResetsTail(t *testing.T) {
	q := NewConcurrent[int]()
	q.Enqueue(1)

	v, ok, err := q.TryDequeue()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Same(t, &q.sentinel, q.tail)

	// The chain must still accept appends after the tail moved back.
	q.Enqueue(2)
	v, _ = q.Dequeue()
	assert.Equal(t, 2, v)
}

func TestDequeue_ZeroValue(t *testing.T) {
	q := NewConcurrent[int]()
	q.Enqueue(0)
	q.Enqueue(0)

	for i := 0; i < 2; i++ {
		v, ok, _ := q.TryDequeue()
		if !ok || v != 0 {
			t.Errorf("TryDequeue() = (%d, %v), want (0, true)", v, ok)
		}
	}
	if _, ok, _ := q.TryDequeue(); ok {
		t.Error("TryDequeue on drained queue should report not found")
	}
}

// =============================================================================
// Blocking Tests
// =============================================================================

func TestDequeue_BlocksUntilEnqueue(t *testing.T) {
	q := NewConcurrent[int]()
	got := make(chan int, 1)

	go func() {
		v, err := q.Dequeue()
		if err != nil {
			t.Errorf("Dequeue error: %v", err)
		}
		got <- v
	}()

	waitFor(t, "consumer to park", func() bool { return q.Waiting() == 1 })

	select {
	case v := <-got:
		t.Fatalf("Dequeue returned %d on an empty queue", v)
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, q.Enqueue(42))

	select {
	case v := <-got:
		assert.Equal(t, 42, v)
	case <-time.After(2 * time.Second):
		t.Fatal("Dequeue was not woken by Enqueue")
	}

	assert.Equal(t, uint64(0), q.Waiting())
	assert.Equal(t, uint64(0), q.Size())
}

func TestDequeue_SpuriousWakeup(t *testing.T) {
	q := NewConcurrent[int]()
	got := make(chan int, 1)

	go func() {
		v, err := q.Dequeue()
		if err != nil {
			t.Errorf("Dequeue error: %v", err)
		}
		got <- v
	}()

	waitFor(t, "consumer to park", func() bool { return q.Waiting() == 1 })

	// Wakeups without an item must send the consumer back to sleep.
	for i := 0; i < 5; i++ {
		q.cond.Broadcast()
		time.Sleep(2 * time.Millisecond)
	}

	select {
	case v := <-got:
		t.Fatalf("Dequeue returned %d after a wakeup on an empty queue", v)
	case <-time.After(20 * time.Millisecond):
	}
	waitFor(t, "consumer to park again", func() bool { return q.Waiting() == 1 })
	assert.Equal(t, uint64(0), q.Size())

	require.NoError(t, q.Enqueue(9))

	select {
	case v := <-got:
		assert.Equal(t, 9, v)
	case <-time.After(2 * time.Second):
		t.Fatal("Dequeue was not woken by Enqueue")
	}
	assert.Equal(t, uint64(0), q.Waiting())
}

func TestDequeue_MultipleWaiters(t *testing.T) {
	const consumers = 4
	q := NewConcurrent[int]()
	got := make(chan int, consumers)

	for i := 0; i < consumers; i++ {
		go func() {
			v, _ := q.Dequeue()
			got <- v
		}()
	}

	waitFor(t, "all consumers to park", func() bool { return q.Waiting() == consumers })

	for i := 0; i < consumers; i++ {
		q.Enqueue(i)
	}

	seen := make(map[int]bool)
	for i := 0; i < consumers; i++ {
		select {
		case v := <-got:
			seen[v] = true
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d of %d consumers woke", i, consumers)
		}
	}

	assert.Len(t, seen, consumers)
	waitFor(t, "waiting to return to zero", func() bool { return q.Waiting() == 0 })
}

func TestEnqueueBatch_WakesWaiters(t *testing.T) {
	const consumers = 3
	q := NewConcurrent[string]()
	var wg sync.WaitGroup
	var received atomic.Int32

	wg.Add(consumers)
	for i := 0; i < consumers; i++ {
		go func() {
			defer wg.Done()
			if _, err := q.Dequeue(); err == nil {
				received.Add(1)
			}
		}()
	}

	waitFor(t, "consumers to park", func() bool { return q.Waiting() == consumers })
	require.NoError(t, q.EnqueueBatch([]string{"a", "b", "c"}))

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("EnqueueBatch did not wake every waiter")
	}

	assert.Equal(t, int32(consumers), received.Load())
	assert.Equal(t, uint64(3), q.Visited())
}

// =============================================================================
// Batch Tests
// =============================================================================

func TestTryDequeueBatch(t *testing.T) {
	tests := []struct {
		name       string
		enqueue    []int
		outSize    int
		wantCount  int
		wantValues []int
		wantSize   uint64
	}{
		{"all_available", []int{1, 2, 3}, 5, 3, []int{1, 2, 3}, 0},
		{"partial_available", []int{1, 2, 3, 4, 5}, 3, 3, []int{1, 2, 3}, 2},
		{"empty_queue", nil, 5, 0, nil, 0},
		{"nil_out", []int{1, 2}, 0, 0, nil, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := NewConcurrent[int]()
			require.NoError(t, q.EnqueueBatch(tt.enqueue))

			out := make([]int, tt.outSize)
			got, err := q.TryDequeueBatch(out)
			require.NoError(t, err)

			assert.Equal(t, tt.wantCount, got)
			for i := 0; i < tt.wantCount; i++ {
				assert.Equal(t, tt.wantValues[i], out[i], "out[%d]", i)
			}
			assert.Equal(t, tt.wantSize, q.Size())
			assert.Equal(t, uint64(len(tt.enqueue)), q.Visited())
		})
	}
}

func TestEnqueueBatch_PreservesOrderAfterSingles(t *testing.T) {
	q := NewConcurrent[int]()
	q.Enqueue(1)
	q.EnqueueBatch([]int{2, 3, 4})
	q.Enqueue(5)

	for want := 1; want <= 5; want++ {
		v, ok, _ := q.TryDequeue()
		if !ok || v != want {
			t.Fatalf("TryDequeue() = (%d, %v), want (%d, true)", v, ok, want)
		}
	}
}

// =============================================================================
// Shutdown Tests
// =============================================================================

func TestShutdown_Drained(t *testing.T) {
	var discarded []int
	q := NewConcurrent(WithDiscard(func(v int) { discarded = append(discarded, v) }))

	for i := 0; i < 5; i++ {
		q.Enqueue(i)
	}
	for i := 0; i < 5; i++ {
		q.Dequeue()
	}

	require.NoError(t, q.Shutdown())
	assert.Empty(t, discarded, "a drained queue has nothing to release")
	assert.Nil(t, q.sentinel.next)
}

func TestShutdown_WithItems(t *testing.T) {
	var discarded []int
	q := NewConcurrent(WithDiscard(func(v int) { discarded = append(discarded, v) }))

	for i := 0; i < 6; i++ {
		q.Enqueue(i)
	}
	q.Dequeue()

	require.NoError(t, q.Shutdown())
	assert.Equal(t, []int{1, 2, 3, 4, 5}, discarded, "every remaining value released exactly once, in order")
	assert.Equal(t, uint64(0), q.Size())
	assert.Same(t, q.head, q.tail)
}

func TestShutdown_WaitersPresent(t *testing.T) {
	q := NewConcurrent[int]()
	got := make(chan int, 1)

	go func() {
		v, _ := q.Dequeue()
		got <- v
	}()
	waitFor(t, "consumer to park", func() bool { return q.Waiting() == 1 })

	assert.ErrorIs(t, q.Shutdown(), ErrWaitersPresent)

	// The queue stays ready and the parked consumer is still serviceable.
	require.NoError(t, q.Enqueue(7))
	assert.Equal(t, 7, <-got)

	waitFor(t, "waiting to return to zero", func() bool { return q.Waiting() == 0 })
	assert.NoError(t, q.Shutdown())
}

// =============================================================================
// Concurrency Tests
// =============================================================================

// runStress runs producers*perProducer items through q with blocking
// consumers, each stopped by a -1 token, and checks exactly-once delivery.
func runStress(t *testing.T, q *Concurrent[int], producers, consumers, perProducer int) {
	t.Helper()
	total := producers * perProducer
	seen := make([]atomic.Int32, total)
	var received atomic.Int64

	var consumerWG sync.WaitGroup
	consumerWG.Add(consumers)
	for c := 0; c < consumers; c++ {
		go func() {
			defer consumerWG.Done()
			for {
				v, err := q.Dequeue()
				if err != nil {
					t.Errorf("Dequeue error: %v", err)
					return
				}
				if v < 0 {
					return
				}
				seen[v].Add(1)
				received.Add(1)
			}
		}()
	}

	var producerWG sync.WaitGroup
	producerWG.Add(producers)
	for p := 0; p < producers; p++ {
		go func(id int) {
			defer producerWG.Done()
			for i := 0; i < perProducer; i++ {
				if err := q.Enqueue(id*perProducer + i); err != nil {
					t.Errorf("Enqueue error: %v", err)
				}
			}
		}(p)
	}
	producerWG.Wait()

	for c := 0; c < consumers; c++ {
		q.Enqueue(-1)
	}
	consumerWG.Wait()

	if got := received.Load(); got != int64(total) {
		t.Errorf("received %d items, want %d", got, total)
	}
	for i := range seen {
		if n := seen[i].Load(); n != 1 {
			t.Fatalf("item %d received %d times, want exactly once", i, n)
		}
	}
	if s := q.Size(); s != 0 {
		t.Errorf("Size() = %d after completion, want 0", s)
	}
	if w := q.Waiting(); w != 0 {
		t.Errorf("Waiting() = %d after completion, want 0", w)
	}
	if v := q.Visited(); v != uint64(total+consumers) {
		t.Errorf("Visited() = %d, want %d", v, total+consumers)
	}
}

func TestConcurrency_Stress(t *testing.T) {
	tests := []struct {
		name        string
		producers   int
		consumers   int
		perProducer int
	}{
		{"1P1C", 1, 1, 2000},
		{"4P1C", 4, 1, 500},
		{"1P4C", 1, 4, 2000},
		{"4P4C", 4, 4, 1000},
		{"8P3C", 8, 3, 250},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runStress(t, NewConcurrent[int](), tt.producers, tt.consumers, tt.perProducer)
		})
	}
}

func TestConcurrency_StressWithNodeCache(t *testing.T) {
	q := NewConcurrent(WithNodeCache[int](64))
	runStress(t, q, 4, 4, 1000)

	if n := depth(q.nodes.Load()); n <= 0 {
		t.Errorf("node cache holds %d nodes after traffic, want > 0", n)
	}
	require.NoError(t, q.Shutdown())
}

func TestConcurrency_MixedTryDequeue(t *testing.T) {
	q := NewConcurrent[int]()
	const producers, perProducer = 4, 500
	total := int64(producers * perProducer)

	var wg sync.WaitGroup
	var consumed atomic.Int64

	wg.Add(producers)
	for p := 0; p < producers; p++ {
		go func(id int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Enqueue(id*perProducer + i)
			}
		}(p)
	}

	for c := 0; c < 2; c++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for consumed.Load() < total {
				if _, ok, _ := q.TryDequeue(); ok {
					consumed.Add(1)
				}
			}
		}()
	}

	wg.Wait()

	if got := consumed.Load(); got != total {
		t.Errorf("consumed %d, want %d", got, total)
	}
	if q.Size() != 0 {
		t.Errorf("Size() = %d, want 0", q.Size())
	}
	if q.Waiting() != 0 {
		t.Error("TryDequeue must never park")
	}
}

// =============================================================================
// Generic Type Tests
// =============================================================================

func TestConcurrent_StructType(t *testing.T) {
	type Item struct {
		ID   int
		Name string
	}

	q := NewConcurrent[Item]()
	q.Enqueue(Item{ID: 1, Name: "first"})
	q.Enqueue(Item{ID: 2, Name: "second"})

	v, err := q.Dequeue()
	if err != nil || v.ID != 1 || v.Name != "first" {
		t.Errorf("Dequeue = (%+v, %v), want ({ID:1 Name:first}, nil)", v, err)
	}
}

func TestConcurrent_PointerType(t *testing.T) {
	q := NewConcurrent[*int]()

	val := 42
	q.Enqueue(&val)
	q.Enqueue(nil)

	v, _ := q.Dequeue()
	if v == nil || *v != 42 {
		t.Error("Dequeue pointer failed")
	}

	v2, ok, _ := q.TryDequeue()
	if !ok || v2 != nil {
		t.Error("Dequeue nil pointer failed")
	}
}

func TestErrors_Distinct(t *testing.T) {
	all := []error{ErrNotInitialized, ErrAlreadyInitialized, ErrClosed, ErrWaitersPresent}
	for i := range all {
		for j := range all {
			if i != j && errors.Is(all[i], all[j]) {
				t.Errorf("%v should not match %v", all[i], all[j])
			}
		}
	}
}
