package pool

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/input-output-hk/catalyst-forge-libs/treesync/errors"
)

// DefaultSize is the worker count used when a non-positive size is given.
const DefaultSize = 4

// Stats tracks the outcome of a Run.
type Stats struct {
	// Dispatched is the number of items handed to a worker
	Dispatched int64

	// Completed is the number of items whose function returned nil
	Completed int64

	// Failed is the number of items whose function returned an error
	Failed int64
}

// queue hands out items in order until it is stopped or drained.
type queue[T any] struct {
	mu      sync.Mutex
	items   []T
	next    int
	stopped bool
}

func (q *queue[T]) pop(ctx context.Context) (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if q.stopped || q.next >= len(q.items) || ctx.Err() != nil {
		return zero, false
	}
	item := q.items[q.next]
	q.next++
	return item, true
}

func (q *queue[T]) stop() {
	q.mu.Lock()
	q.stopped = true
	q.mu.Unlock()
}

func (q *queue[T]) remaining() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.next
}

// Run calls fn for each item on at most size concurrent workers.
//
// The first error returned by fn stops dispatch and is returned once the
// in-flight items finish. If ctx is done before every item was dispatched,
// Run returns a cancellation error instead. fn never sees ctx itself: it
// receives a context that carries ctx's values but not its cancellation.
func Run[T any](ctx context.Context, size int, items []T, fn func(context.Context, T) error) (Stats, error) {
	if size <= 0 {
		size = DefaultSize
	}
	if size > len(items) {
		size = len(items)
	}

	var (
		stats    Stats
		q        = &queue[T]{items: items}
		detached = context.WithoutCancel(ctx)
		g        errgroup.Group
	)

	for i := 0; i < size; i++ {
		g.Go(func() error {
			for {
				item, ok := q.pop(ctx)
				if !ok {
					return nil
				}
				atomic.AddInt64(&stats.Dispatched, 1)
				if err := fn(detached, item); err != nil {
					atomic.AddInt64(&stats.Failed, 1)
					q.stop()
					return err
				}
				atomic.AddInt64(&stats.Completed, 1)
			}
		})
	}

	if err := g.Wait(); err != nil {
		return stats, err
	}
	if ctxErr := ctx.Err(); ctxErr != nil && q.remaining() > 0 {
		return stats, errors.NewCancelledError("dispatch", ctxErr)
	}
	return stats, nil
}
