package fc2meta

import (
	"context"
	"time"
)

// backoffStrategy is a doubling retry delay generator, grounded on the
// teacher's proxy.BackoffStrategy, reused here to give get_meta a few
// retries across transient transport failures — resilience the original
// aiohttp-based client doesn't have, since aiohttp surfaces the error
// immediately instead.
type backoffStrategy struct {
	initial time.Duration
	max     time.Duration
	current time.Duration
}

func newBackoffStrategy(initial, max time.Duration) *backoffStrategy {
	return &backoffStrategy{initial: initial, max: max, current: initial}
}

func (b *backoffStrategy) next() time.Duration {
	current := b.current
	b.current *= 2
	if b.current > b.max {
		b.current = b.max
	}
	return current
}

func (b *backoffStrategy) sleep(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(b.next()):
		return nil
	}
}
