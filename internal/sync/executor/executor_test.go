package executor

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/catalyst-forge-libs/treesync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/internal/pathmap"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/internal/sync/planner"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/internal/testutil"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/synctypes"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/tree"
)

var modTime = time.Date(2024, 3, 1, 10, 0, 0, 123, time.UTC)

func sourceTree(names ...string) *testutil.MemTree {
	src := testutil.NewMemTree(tree.KindLocal, "src")
	for _, n := range names {
		src.Put("/src/"+n, []byte("data-"+n), modTime)
	}
	return src
}

func transfer(name string) *planner.Action {
	return &planner.Action{
		Kind:       synctypes.ActionTransfer,
		SourcePath: name,
		DestPath:   "dst/" + name,
		Size:       uint64(len("data-" + name)),
		ModTime:    modTime,
	}
}

func remove(name string) *planner.Action {
	return &planner.Action{Kind: synctypes.ActionDelete, DestPath: "dst/" + name}
}

func TestExecutor_Apply(t *testing.T) {
	ctx := context.Background()
	src := sourceTree("a")
	dst := testutil.NewMemTree(tree.KindObjectStore, "dst")
	dst.Put("dst/old", []byte("x"), modTime)
	ex := NewExecutor(src, dst, pathmap.New("/src", "dst"))

	require.NoError(t, ex.Apply(ctx, transfer("a")))
	data, mt, ok := dst.Get("dst/a")
	require.True(t, ok)
	assert.Equal(t, []byte("data-a"), data)
	assert.True(t, mt.Equal(modTime))

	require.NoError(t, ex.Apply(ctx, remove("old")))
	_, _, ok = dst.Get("dst/old")
	assert.False(t, ok)

	t.Run("missing delete target is fine", func(t *testing.T) {
		assert.NoError(t, ex.Apply(ctx, remove("never-existed")))
	})

	t.Run("missing source is a transfer failure", func(t *testing.T) {
		err := ex.Apply(ctx, transfer("gone"))
		require.Error(t, err)
		assert.ErrorIs(t, err, errors.ErrTransfer)
		assert.True(t, errors.IsNotFound(err))
		assert.Contains(t, err.Error(), "dst/gone")
	})

	t.Run("unknown kind", func(t *testing.T) {
		err := ex.Apply(ctx, &planner.Action{Kind: "rename", DestPath: "x"})
		assert.ErrorIs(t, err, errors.ErrTransfer)
	})
}

func TestExecutor_Run(t *testing.T) {
	src := sourceTree("a", "b", "c")
	dst := testutil.NewMemTree(tree.KindObjectStore, "dst")
	dst.Put("dst/stale", []byte("s"), modTime)
	progress := &testutil.MockProgressTracker{}

	ex := NewExecutor(src, dst, pathmap.New("/src", "dst"),
		WithConcurrency(2), WithProgressTracker(progress))
	res, err := ex.Run(context.Background(),
		[]*planner.Action{transfer("a"), transfer("b"), transfer("c"), remove("stale")})
	require.NoError(t, err)

	assert.Equal(t, 3, res.Transferred)
	assert.Equal(t, 1, res.Deleted)
	assert.Equal(t, int64(18), res.BytesTransferred)
	assert.Equal(t, 3, dst.Len())
	assert.Equal(t, int64(4), progress.Completed)
	assert.Equal(t, int64(4), progress.Total)
}

func TestExecutor_TransfersFinishBeforeDeletes(t *testing.T) {
	src := sourceTree("a", "b", "c", "d")
	dst := testutil.NewMemTree(tree.KindObjectStore, "dst")
	dst.Put("dst/x", nil, modTime)
	dst.Put("dst/y", nil, modTime)

	var mu sync.Mutex
	var ops []string
	dst.Before = func(_ context.Context, op, _ string) {
		mu.Lock()
		ops = append(ops, op)
		mu.Unlock()
	}

	ex := NewExecutor(src, dst, pathmap.New("/src", "dst"), WithConcurrency(4))
	_, err := ex.Run(context.Background(), []*planner.Action{
		transfer("a"), transfer("b"), transfer("c"), transfer("d"), remove("x"), remove("y"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"write", "write", "write", "write", "delete", "delete"}, ops)
}

// A failing action stops the queue: with one worker nothing after it runs and
// the delete phase never starts.
func TestExecutor_FirstFailureStopsQueue(t *testing.T) {
	src := sourceTree("a", "b", "c", "d")
	dst := testutil.NewMemTree(tree.KindObjectStore, "dst")
	dst.Put("dst/stale", []byte("s"), modTime)
	dst.Fail = func(op, path string) error {
		if op == "write" && path == "dst/b" {
			return stderrors.New("access denied")
		}
		return nil
	}

	ex := NewExecutor(src, dst, pathmap.New("/src", "dst"), WithConcurrency(1))
	res, err := ex.Run(context.Background(), []*planner.Action{
		transfer("a"), transfer("b"), transfer("c"), transfer("d"), remove("stale"),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrTransfer)
	assert.ErrorIs(t, err, errors.ErrIO)
	assert.Contains(t, err.Error(), "dst/b")

	require.NotNil(t, res)
	assert.Equal(t, 1, res.Transferred)
	assert.Equal(t, 0, res.Deleted)
	assert.Equal(t, 2, dst.Calls("write"))
	_, _, ok := dst.Get("dst/stale")
	assert.True(t, ok)
}

func TestExecutor_CancelReturnsPartialCounts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := sourceTree("a", "b", "c", "d")
	dst := testutil.NewMemTree(tree.KindObjectStore, "dst")
	dst.Before = func(wctx context.Context, op, path string) {
		if path == "dst/b" {
			cancel()
			// the in-flight write must not observe the cancellation
			assert.NoError(t, wctx.Err())
		}
	}

	ex := NewExecutor(src, dst, pathmap.New("/src", "dst"), WithConcurrency(1))
	res, err := ex.Run(ctx, []*planner.Action{transfer("a"), transfer("b"), transfer("c"), transfer("d")})
	require.Error(t, err)
	assert.True(t, errors.IsCancelled(err))
	assert.Equal(t, 2, res.Transferred)

	_, _, ok := dst.Get("dst/b")
	assert.True(t, ok, "in-flight write completes")
	_, _, ok = dst.Get("dst/c")
	assert.False(t, ok)
}

func TestExecutor_ConcurrencyBound(t *testing.T) {
	names := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"}
	src := sourceTree(names...)
	dst := testutil.NewMemTree(tree.KindObjectStore, "dst")

	var active, peak int64
	dst.Before = func(context.Context, string, string) {
		n := atomic.AddInt64(&active, 1)
		for {
			p := atomic.LoadInt64(&peak)
			if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt64(&active, -1)
	}

	actions := make([]*planner.Action, len(names))
	for i, n := range names {
		actions[i] = transfer(n)
	}

	ex := NewExecutor(src, dst, pathmap.New("/src", "dst"), WithConcurrency(3))
	assert.Equal(t, 3, ex.Concurrency())
	res, err := ex.Run(context.Background(), actions)
	require.NoError(t, err)
	assert.Equal(t, len(names), res.Transferred)
	assert.LessOrEqual(t, peak, int64(3))
}

func TestExecutor_BatchDeletes(t *testing.T) {
	ctx := context.Background()

	t.Run("grouped into batches", func(t *testing.T) {
		dst := testutil.NewBatchMemTree("dst")
		actions := make([]*planner.Action, 0, MaxDeleteBatch+5)
		for i := 0; i < MaxDeleteBatch+5; i++ {
			name := fmt.Sprintf("f%04d", i)
			dst.Put("dst/"+name, nil, modTime)
			actions = append(actions, remove(name))
		}

		ex := NewExecutor(sourceTree(), dst, pathmap.New("/src", "dst"))
		res, err := ex.Run(ctx, actions)
		require.NoError(t, err)
		assert.Equal(t, MaxDeleteBatch+5, res.Deleted)
		assert.Equal(t, 2, dst.Calls("deleteBatch"))
		assert.Equal(t, 0, dst.Len())
	})

	t.Run("failure names the path", func(t *testing.T) {
		dst := testutil.NewBatchMemTree("dst")
		for _, n := range []string{"x", "y", "z"} {
			dst.Put("dst/"+n, nil, modTime)
		}
		dst.Fail = func(op, path string) error {
			if op == "delete" && path == "dst/y" {
				return stderrors.New("denied")
			}
			return nil
		}

		ex := NewExecutor(sourceTree(), dst, pathmap.New("/src", "dst"))
		res, err := ex.Run(ctx, []*planner.Action{remove("x"), remove("y"), remove("z")})
		require.Error(t, err)
		assert.ErrorIs(t, err, errors.ErrTransfer)
		assert.Contains(t, err.Error(), "dst/y")
		assert.Equal(t, 1, res.Deleted)
	})

	t.Run("cancelled before the first batch", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		dst := testutil.NewBatchMemTree("dst")
		dst.Put("dst/x", nil, modTime)

		ex := NewExecutor(sourceTree(), dst, pathmap.New("/src", "dst"))
		res, err := ex.Run(cctx, []*planner.Action{remove("x")})
		assert.True(t, errors.IsCancelled(err))
		assert.Equal(t, 0, res.Deleted)
		assert.Equal(t, 1, dst.Len())
	})
}
