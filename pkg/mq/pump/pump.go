package pump

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/huynhanx03/go-cqueue/pkg/datastructs/queue"
)

const defaultBatchSize = 512

// Pump moves items from a Source to a Consumer in batches.
//
// Behavior:
//   - Run waits for the first item with queue.Poll, so it stays cancellable
//     and never parks inside the queue.
//   - Whatever else is immediately available, up to BatchSize, is taken in
//     the same lock acquisition and the batch is flushed at once.
//   - Items removed from the source are always handed to the Consumer, even
//     when the context is cancelled meanwhile.
//   - Consumer errors are counted, not retried.
type Pump[T any] struct {
	src  Source[T]
	cons Consumer[T]
	cfg  Config

	batches  atomic.Uint64
	items    atomic.Uint64
	failures atomic.Uint64
}

// Stats is a snapshot of a Pump's counters.
type Stats struct {
	Batches  uint64
	Items    uint64
	Failures uint64
}

// New creates a Pump draining src into cons.
func New[T any](src Source[T], cons Consumer[T], cfg Config) *Pump[T] {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	return &Pump[T]{src: src, cons: cons, cfg: cfg}
}

// Run drains the source until ctx is done, returning nil in that case.
// Any error from the source itself ends the run and is returned.
func (p *Pump[T]) Run(ctx context.Context) error {
	for {
		first, err := queue.Poll[T](ctx, p.src, p.cfg.Poll)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}

		batch := make([]T, 1, p.cfg.BatchSize)
		batch[0] = first
		n, err := p.src.TryDequeueBatch(batch[1:p.cfg.BatchSize])
		batch = batch[:1+n]

		p.flush(batch)
		if err != nil {
			return err
		}
	}
}

func (p *Pump[T]) flush(batch []T) {
	p.batches.Add(1)
	p.items.Add(uint64(len(batch)))
	if err := p.cons.Consume(batch); err != nil {
		p.failures.Add(1)
	}
}

// Stats returns the pump counters.
func (p *Pump[T]) Stats() Stats {
	return Stats{
		Batches:  p.batches.Load(),
		Items:    p.items.Load(),
		Failures: p.failures.Load(),
	}
}
