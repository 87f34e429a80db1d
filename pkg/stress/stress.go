// Package stress drives a queue with concurrent producers and consumers and
// checks that every item is delivered exactly once.
package stress

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/huynhanx03/go-cqueue/pkg/datastructs/queue"
	"github.com/huynhanx03/go-cqueue/pkg/datastructs/shardedmap"
	"github.com/huynhanx03/go-cqueue/pkg/hash"
	"github.com/huynhanx03/go-cqueue/pkg/mq/pump"
	pkgRuntime "github.com/huynhanx03/go-cqueue/pkg/runtime"
	"github.com/huynhanx03/go-cqueue/pkg/settings"
)

const (
	ModeBlocking = "blocking"
	ModeBatch    = "batch"
)

// stopToken tells a blocking consumer to return.
type stopToken struct{}

// Report summarizes one run.
type Report struct {
	Mode       string        `json:"mode"`
	Produced   uint64        `json:"produced"`
	Received   uint64        `json:"received"`
	Duplicates uint64        `json:"duplicates"`
	Missing    uint64        `json:"missing"`
	Queue      queue.Stats   `json:"queue"`
	Elapsed    time.Duration `json:"elapsed"`
}

// OK reports whether every produced item was received exactly once and the
// queue ended empty.
func (r *Report) OK() bool {
	return r.Received == r.Produced && r.Duplicates == 0 && r.Missing == 0 && r.Queue.Size == 0
}

type runner struct {
	q   *queue.Concurrent[any]
	cfg settings.Stress
	log *zap.Logger

	total    uint64
	received atomic.Uint64
	tally    *shardedmap.Map[uint64, uint32]
}

// Run pushes Producers*ItemsPerProducer IDs through q and collects them with
// Consumers consumers in the configured mode. q must be initialized and must
// not be used by anyone else during the run.
func Run(ctx context.Context, q *queue.Concurrent[any], cfg settings.Stress, log *zap.Logger) (*Report, error) {
	if cfg.Producers <= 0 || cfg.Consumers <= 0 || cfg.ItemsPerProducer <= 0 {
		return nil, errors.Errorf("invalid workload: %d producers, %d consumers, %d items each",
			cfg.Producers, cfg.Consumers, cfg.ItemsPerProducer)
	}

	r := &runner{
		q:     q,
		cfg:   cfg,
		log:   log,
		total: uint64(cfg.Producers) * uint64(cfg.ItemsPerProducer),
		tally: shardedmap.New[uint64, uint32](cfg.Consumers*16, hash.Sum64[uint64]),
	}

	log.Info("stress run starting",
		zap.String("mode", cfg.Mode),
		zap.Int("producers", cfg.Producers),
		zap.Int("consumers", cfg.Consumers),
		zap.Uint64("items", r.total))

	start := pkgRuntime.NanoTime()
	var err error
	switch cfg.Mode {
	case ModeBlocking, "":
		err = r.runBlocking(ctx)
	case ModeBatch:
		err = r.runBatch(ctx)
	default:
		return nil, errors.Errorf("unknown stress mode %q", cfg.Mode)
	}
	if err != nil {
		return nil, err
	}

	report := r.report(time.Duration(pkgRuntime.NanoTime() - start))
	log.Info("stress run finished",
		zap.Uint64("received", report.Received),
		zap.Uint64("duplicates", report.Duplicates),
		zap.Uint64("missing", report.Missing),
		zap.Uint64("visited", report.Queue.Visited),
		zap.Duration("elapsed", report.Elapsed))
	return report, nil
}

func (r *runner) produce(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	per := uint64(r.cfg.ItemsPerProducer)

	for p := 0; p < r.cfg.Producers; p++ {
		base := uint64(p) * per
		g.Go(func() error {
			for i := uint64(0); i < per; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				if err := r.q.Enqueue(base + i); err != nil {
					return errors.Wrapf(err, "producer %d", base/per)
				}
			}
			return nil
		})
	}
	return g.Wait()
}

func (r *runner) record(id uint64) {
	r.tally.Update(id, func(n uint32, _ bool) uint32 { return n + 1 })
}

// runBlocking uses parked Dequeue consumers, each released by one stop token
// once all producers are done.
func (r *runner) runBlocking(ctx context.Context) error {
	var consumers errgroup.Group
	for c := 0; c < r.cfg.Consumers; c++ {
		consumers.Go(func() error {
			for {
				v, err := r.q.Dequeue()
				if err != nil {
					return errors.Wrap(err, "consumer dequeue")
				}
				if _, stop := v.(stopToken); stop {
					return nil
				}
				r.record(v.(uint64))
				r.received.Add(1)
			}
		})
	}

	prodErr := r.produce(ctx)

	for c := 0; c < r.cfg.Consumers; c++ {
		if err := r.q.Enqueue(stopToken{}); err != nil {
			r.log.Warn("failed to stop consumer", zap.Error(err))
		}
	}

	if err := consumers.Wait(); err != nil {
		return err
	}
	return prodErr
}

// runBatch uses pumps that poll the queue and stop once every item arrived.
func (r *runner) runBatch(ctx context.Context) error {
	pumpCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	cons := pump.ConsumerFunc[any](func(batch []any) error {
		for _, v := range batch {
			r.record(v.(uint64))
		}
		if r.received.Add(uint64(len(batch))) >= r.total {
			cancel()
		}
		return nil
	})

	var consumers errgroup.Group
	for c := 0; c < r.cfg.Consumers; c++ {
		p := pump.New[any](r.q, cons, pump.Config{BatchSize: r.cfg.BatchSize})
		consumers.Go(func() error {
			return p.Run(pumpCtx)
		})
	}

	if err := r.produce(ctx); err != nil {
		cancel()
		_ = consumers.Wait()
		return err
	}
	return consumers.Wait()
}

func (r *runner) report(elapsed time.Duration) *Report {
	rep := &Report{
		Mode:     r.cfg.Mode,
		Produced: r.total,
		Received: r.received.Load(),
		Queue:    r.q.Stats(),
		Elapsed:  elapsed,
	}
	if rep.Mode == "" {
		rep.Mode = ModeBlocking
	}

	r.tally.Do(func(_ uint64, n uint32) {
		if n > 1 {
			rep.Duplicates += uint64(n - 1)
		}
	})
	if seen := uint64(r.tally.Len()); seen < r.total {
		rep.Missing = r.total - seen
	}
	return rep
}
