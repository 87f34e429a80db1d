package queue

import (
	"context"
	"runtime"
	"time"

	pkgRuntime "github.com/huynhanx03/go-cqueue/pkg/runtime"
)

// PollConfig tunes the backoff used by Poll between empty TryDequeue calls.
type PollConfig struct {
	ActiveSpins  int           // PAUSE-based spins before yielding
	PassiveSpins int           // Gosched yields before sleeping
	MinSleep     time.Duration // First sleep duration
	MaxSleep     time.Duration // Sleep cap; doubling stops here
}

// DefaultPollConfig returns the backoff used when a zero PollConfig is passed.
func DefaultPollConfig() PollConfig {
	return PollConfig{
		ActiveSpins:  activeSpinTries,
		PassiveSpins: 10,
		MinSleep:     50 * time.Microsecond,
		MaxSleep:     5 * time.Millisecond,
	}
}

// Poll removes the head item of q, retrying TryDequeue with adaptive backoff
// until an item arrives or ctx is done. It is the cancellable counterpart of
// Dequeue: it never parks inside the queue, so Waiting is not affected.
func Poll[T any](ctx context.Context, q Queue[T], cfg PollConfig) (T, error) {
	var zero T
	if cfg == (PollConfig{}) {
		cfg = DefaultPollConfig()
	}
	if cfg.MinSleep <= 0 {
		cfg.MinSleep = DefaultPollConfig().MinSleep
	}
	if cfg.MaxSleep < cfg.MinSleep {
		cfg.MaxSleep = cfg.MinSleep
	}

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	sleep := cfg.MinSleep
	for attempt := 0; ; attempt++ {
		item, ok, err := q.TryDequeue()
		if err != nil {
			return zero, err
		}
		if ok {
			return item, nil
		}
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		switch {
		case attempt < cfg.ActiveSpins:
			pkgRuntime.Procyield(activeSpinCycles)
		case attempt < cfg.ActiveSpins+cfg.PassiveSpins:
			runtime.Gosched()
		default:
			d := jitter(sleep)
			if timer == nil {
				timer = time.NewTimer(d)
			} else {
				timer.Reset(d)
			}
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-timer.C:
			}
			if sleep < cfg.MaxSleep {
				sleep = min(sleep*2, cfg.MaxSleep)
			}
		}
	}
}

// jitter spreads d uniformly over [d/2, d) so pollers do not wake in lockstep.
func jitter(d time.Duration) time.Duration {
	half := d / 2
	if half <= 0 {
		return d
	}
	span := uint32(min(int64(half), 1<<31-1))
	return half + time.Duration(pkgRuntime.Uint32n(span))
}
