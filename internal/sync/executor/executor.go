// Package executor applies planned actions to a destination tree.
//
// Run executes the transfer phase on a bounded worker pool and, once every
// transfer has finished, the delete phase. Destinations that implement
// tree.BatchDeleter have their deletes grouped into batch requests.
package executor

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/input-output-hk/catalyst-forge-libs/treesync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/internal/pathmap"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/internal/pool"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/internal/sync/planner"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/synctypes"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/tree"
)

// MaxDeleteBatch is the largest number of paths passed to a single
// DeleteBatch call.
const MaxDeleteBatch = 1000

// Executor applies actions from a source tree to a destination tree.
type Executor struct {
	src    tree.Tree
	dst    tree.Tree
	mapper *pathmap.Mapper

	// Concurrency control
	concurrency int

	// Progress tracking
	progress synctypes.ProgressTracker

	logger *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithConcurrency sets the number of workers. Non-positive values select
// synctypes.DefaultConcurrency.
func WithConcurrency(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithProgressTracker sets the tracker notified after every completed action.
func WithProgressTracker(tracker synctypes.ProgressTracker) Option {
	return func(e *Executor) {
		e.progress = tracker
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewExecutor creates an executor copying from src to dst through mapper.
func NewExecutor(src, dst tree.Tree, mapper *pathmap.Mapper, opts ...Option) *Executor {
	e := &Executor{
		src:         src,
		dst:         dst,
		mapper:      mapper,
		concurrency: synctypes.DefaultConcurrency,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Concurrency returns the configured worker count.
func (e *Executor) Concurrency() int {
	return e.concurrency
}

// Result contains the outcome of a Run. Counts only include actions that
// completed, so a partial result is meaningful alongside an error.
type Result struct {
	// Transferred is the number of entries written to the destination
	Transferred int

	// Deleted is the number of entries removed from the destination
	Deleted int

	// BytesTransferred is the total size of the transferred entries
	BytesTransferred int64

	// Duration is how long the run took
	Duration time.Duration
}

// Apply performs a single action. There is no retry: a failure is returned
// as a transfer error naming the action's destination path.
func (e *Executor) Apply(ctx context.Context, action *planner.Action) error {
	switch action.Kind {
	case synctypes.ActionTransfer:
		data, err := e.src.Read(ctx, e.mapper.ToSource(action.SourcePath))
		if err != nil {
			return errors.NewTransferError("transfer", action.DestPath, err).WithTree(e.src.String())
		}
		if err := e.dst.Write(ctx, action.DestPath, data, action.ModTime); err != nil {
			return errors.NewTransferError("transfer", action.DestPath, err).WithTree(e.dst.String())
		}
		return nil

	case synctypes.ActionDelete:
		if err := e.dst.Delete(ctx, action.DestPath); err != nil && !errors.IsNotFound(err) {
			return errors.NewTransferError("delete", action.DestPath, err).WithTree(e.dst.String())
		}
		return nil

	default:
		return errors.NewTransferError("apply", action.DestPath, nil).
			WithMessage("unknown action kind " + string(action.Kind))
	}
}

// Run executes actions, all transfers first and then all deletes.
//
// The first failing action stops dispatch; actions already running finish
// and the failure is returned with the partial result. A done ctx likewise
// stops dispatch and yields a cancellation error.
func (e *Executor) Run(ctx context.Context, actions []*planner.Action) (*Result, error) {
	start := time.Now()
	transfers, deletes := planner.Split(actions)

	var (
		transferred int64
		deleted     int64
		bytes       int64
		completed   int64
		total       = int64(len(actions))
	)
	result := func() *Result {
		return &Result{
			Transferred:      int(atomic.LoadInt64(&transferred)),
			Deleted:          int(atomic.LoadInt64(&deleted)),
			BytesTransferred: atomic.LoadInt64(&bytes),
			Duration:         time.Since(start),
		}
	}
	notify := func(n int64) {
		done := atomic.AddInt64(&completed, n)
		if e.progress != nil {
			e.progress.Update(done, total)
		}
	}

	if len(transfers) > 0 {
		_, err := pool.Run(ctx, e.concurrency, transfers, func(ctx context.Context, a *planner.Action) error {
			if err := e.Apply(ctx, a); err != nil {
				e.logger.Error("transfer failed", "path", a.DestPath, "error", err)
				return err
			}
			atomic.AddInt64(&transferred, 1)
			atomic.AddInt64(&bytes, int64(a.Size))
			notify(1)
			e.logger.Debug("transferred", "path", a.DestPath, "size", humanize.IBytes(a.Size), "reason", a.Reason)
			return nil
		})
		if err != nil {
			return result(), err
		}
	}

	if len(deletes) > 0 {
		var err error
		if bd, ok := e.dst.(tree.BatchDeleter); ok {
			err = e.runBatchDeletes(ctx, bd, deletes, func(n int) {
				atomic.AddInt64(&deleted, int64(n))
				notify(int64(n))
			})
		} else {
			_, err = pool.Run(ctx, e.concurrency, deletes, func(ctx context.Context, a *planner.Action) error {
				if err := e.Apply(ctx, a); err != nil {
					e.logger.Error("delete failed", "path", a.DestPath, "error", err)
					return err
				}
				atomic.AddInt64(&deleted, 1)
				notify(1)
				e.logger.Debug("deleted", "path", a.DestPath)
				return nil
			})
		}
		if err != nil {
			return result(), err
		}
	}

	res := result()
	e.logger.Debug("executed actions",
		"transferred", res.Transferred,
		"deleted", res.Deleted,
		"bytes", humanize.IBytes(uint64(res.BytesTransferred)),
		"duration", res.Duration)
	return res, nil
}

// runBatchDeletes removes the destination paths of deletes in batches of
// MaxDeleteBatch. Cancellation is checked between batches; a batch that has
// been sent completes on a detached context.
func (e *Executor) runBatchDeletes(
	ctx context.Context,
	bd tree.BatchDeleter,
	deletes []*planner.Action,
	onDeleted func(n int),
) error {
	detached := context.WithoutCancel(ctx)

	for start := 0; start < len(deletes); start += MaxDeleteBatch {
		if err := ctx.Err(); err != nil {
			return errors.NewCancelledError("delete", err).WithTree(e.dst.String())
		}

		end := min(start+MaxDeleteBatch, len(deletes))
		batch := deletes[start:end]
		paths := make([]string, len(batch))
		for i, a := range batch {
			paths[i] = a.DestPath
		}

		n, err := bd.DeleteBatch(detached, paths)
		if n > 0 {
			onDeleted(n)
		}
		if err != nil {
			path := failedPath(err, batch, n)
			e.logger.Error("batch delete failed", "path", path, "deleted", n, "error", err)
			return errors.NewTransferError("delete", path, err).WithTree(e.dst.String())
		}
		e.logger.Debug("deleted batch", "count", n)
	}
	return nil
}

// failedPath names the path a batch failure refers to, preferring the path
// recorded by the tree.
func failedPath(err error, batch []*planner.Action, n int) string {
	var te *errors.Error
	if errors.As(err, &te) && te.Path != "" {
		return te.Path
	}
	if n < len(batch) {
		return batch[n].DestPath
	}
	return ""
}
