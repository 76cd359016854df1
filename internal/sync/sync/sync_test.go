package sync

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/catalyst-forge-libs/treesync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/fs/billy"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/internal/sync/comparator"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/internal/testutil"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/synctypes"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/tree"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/tree/localtree"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/tree/s3tree"
)

var (
	t1 = time.Date(2024, 5, 1, 8, 30, 0, 250_000_000, time.UTC)
	t2 = t1.Add(time.Hour)
)

func memPair() (*testutil.MemTree, *testutil.MemTree) {
	return testutil.NewMemTree(tree.KindLocal, "src"), testutil.NewMemTree(tree.KindObjectStore, "dst")
}

func TestManager_SyncScenarios(t *testing.T) {
	ctx := context.Background()

	t.Run("upload new file", func(t *testing.T) {
		src, dst := memPair()
		src.Put("/data/a.txt", []byte("hello"), t1)

		report, err := NewManager(nil).Sync(ctx, &Config{
			Source: src, SourceRoot: "/data", Dest: dst, DestRoot: "backup",
		})
		require.NoError(t, err)
		assert.Equal(t, 1, report.Transferred)
		assert.Equal(t, int64(5), report.BytesTransferred)
		assert.Equal(t, 0, report.Skipped)

		data, mt, ok := dst.Get("backup/a.txt")
		require.True(t, ok)
		assert.Equal(t, "hello", string(data))
		assert.True(t, mt.Equal(t1))
	})

	t.Run("delete extraneous", func(t *testing.T) {
		src, dst := memPair()
		src.Put("/data/a.txt", []byte("hello"), t1)
		dst.Put("backup/a.txt", []byte("hello"), t1)
		dst.Put("backup/old.txt", []byte("bye"), t1)

		report, err := NewManager(nil).Sync(ctx, &Config{
			Source: src, SourceRoot: "/data", Dest: dst, DestRoot: "backup", DeleteExtra: true,
		})
		require.NoError(t, err)
		assert.Equal(t, 0, report.Transferred)
		assert.Equal(t, 1, report.Deleted)
		assert.Equal(t, 1, report.Skipped)
		_, _, ok := dst.Get("backup/old.txt")
		assert.False(t, ok)
	})

	t.Run("extraneous kept without delete", func(t *testing.T) {
		src, dst := memPair()
		src.Put("/data/a.txt", []byte("hello"), t1)
		dst.Put("backup/old.txt", []byte("bye"), t1)

		report, err := NewManager(nil).Sync(ctx, &Config{
			Source: src, SourceRoot: "/data", Dest: dst, DestRoot: "backup",
		})
		require.NoError(t, err)
		assert.Equal(t, 0, report.Deleted)
		assert.Equal(t, 2, dst.Len())
	})

	t.Run("size change transfers", func(t *testing.T) {
		src, dst := memPair()
		src.Put("/data/a.txt", []byte("hello world"), t1)
		dst.Put("backup/a.txt", []byte("hello"), t1)

		report, err := NewManager(nil).Sync(ctx, &Config{
			Source: src, SourceRoot: "/data", Dest: dst, DestRoot: "backup",
		})
		require.NoError(t, err)
		assert.Equal(t, 1, report.Transferred)
		require.Len(t, report.Planned, 1)
		assert.Equal(t, "size differs", report.Planned[0].Reason)
	})

	t.Run("excluded destination entries are not extraneous", func(t *testing.T) {
		src, dst := memPair()
		src.Put("/data/a.txt", []byte("a"), t1)
		dst.Put("backup/a.txt", []byte("a"), t1)
		dst.Put("backup/cache.tmp", []byte("c"), t1)

		report, err := NewManager(nil).Sync(ctx, &Config{
			Source: src, SourceRoot: "/data", Dest: dst, DestRoot: "backup",
			DeleteExtra: true, ExcludePatterns: []string{"*.tmp"},
		})
		require.NoError(t, err)
		assert.Equal(t, 0, report.Deleted)
		assert.Equal(t, 2, dst.Len())
	})
}

func TestManager_DryRunChangesNothing(t *testing.T) {
	src, dst := memPair()
	src.Put("/data/a.txt", []byte("a"), t1)
	dst.Put("backup/b.txt", []byte("b"), t1)
	progress := &testutil.MockProgressTracker{}

	report, err := NewManager(nil).Sync(context.Background(), &Config{
		Source: src, SourceRoot: "/data", Dest: dst, DestRoot: "backup",
		DeleteExtra: true, DryRun: true, ProgressTracker: progress,
	})
	require.NoError(t, err)
	assert.True(t, report.DryRun)
	assert.Zero(t, report.Transferred)
	assert.Zero(t, report.Deleted)
	assert.Equal(t, []synctypes.PlannedAction{
		{Kind: synctypes.ActionTransfer, SourcePath: "a.txt", DestPath: "backup/a.txt", Size: 1,
			Reason: "missing at destination"},
		{Kind: synctypes.ActionDelete, DestPath: "backup/b.txt", Size: 1, Reason: "not present at source"},
	}, report.Planned)

	assert.Zero(t, dst.Calls("write"))
	assert.Zero(t, dst.Calls("delete"))
	assert.True(t, progress.CompleteCalled)
}

func TestManager_MissingRoots(t *testing.T) {
	ctx := context.Background()

	t.Run("missing destination is empty", func(t *testing.T) {
		src := testutil.NewMemTree(tree.KindObjectStore, "src")
		dst := testutil.NewMemTree(tree.KindLocal, "dst")
		src.Put("p/a", []byte("a"), t1)

		report, err := NewManager(nil).Sync(ctx, &Config{
			Source: src, SourceRoot: "p", Dest: dst, DestRoot: "/out", DeleteExtra: true,
		})
		require.NoError(t, err)
		assert.Equal(t, 1, report.Transferred)
		_, _, ok := dst.Get("/out/a")
		assert.True(t, ok)
	})

	t.Run("missing source fails", func(t *testing.T) {
		src, dst := memPair()
		report, err := NewManager(nil).Sync(ctx, &Config{
			Source: src, SourceRoot: "/nope", Dest: dst, DestRoot: "backup",
		})
		require.Error(t, err)
		assert.Nil(t, report)
		assert.ErrorIs(t, err, errors.ErrIO)
		assert.True(t, errors.IsNotFound(err))
	})
}

func TestManager_InvalidConfig(t *testing.T) {
	ctx := context.Background()
	local := testutil.NewMemTree(tree.KindLocal, "a")

	_, err := NewManager(nil).Sync(ctx, &Config{Source: local, Dest: testutil.NewMemTree(tree.KindLocal, "b")})
	assert.True(t, errors.IsUnsupported(err))

	_, err = NewManager(nil).Sync(ctx, &Config{Source: local})
	assert.True(t, errors.IsConfig(err))

	_, err = NewManager(nil).Sync(ctx, &Config{
		Source: local, Dest: testutil.NewMemTree(tree.KindObjectStore, "b"),
		IncludePatterns: []string{"[bad"},
	})
	assert.True(t, errors.IsConfig(err))
}

func TestManager_FailureKeepsPartialReport(t *testing.T) {
	src, dst := memPair()
	for _, n := range []string{"a", "b", "c"} {
		src.Put("/data/"+n, []byte(n), t1)
	}
	dst.Fail = func(op, path string) error {
		if op == "write" && path == "backup/b" {
			return stderrors.New("quota exceeded")
		}
		return nil
	}
	progress := &testutil.MockProgressTracker{}

	report, err := NewManager(nil).Sync(context.Background(), &Config{
		Source: src, SourceRoot: "/data", Dest: dst, DestRoot: "backup",
		Parallelism: 1, ProgressTracker: progress,
	})
	require.Error(t, err)
	assert.Equal(t, errors.CodeTransferFailed, errors.CodeOf(err))
	require.NotNil(t, report)
	assert.Equal(t, 1, report.Transferred)
	assert.Len(t, report.Planned, 3)
	assert.True(t, progress.ErrorCalled)
}

func TestManager_CancelledAfterPlanning(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src, dst := memPair()
	src.Put("/data/a", []byte("a"), t1)
	src.Put("/data/b", []byte("b"), t1)
	src.Put("/data/c", []byte("c"), t1)
	dst.Before = func(_ context.Context, op, path string) {
		if path == "backup/a" {
			cancel()
		}
	}
	defer cancel()

	report, err := NewManager(nil).Sync(ctx, &Config{
		Source: src, SourceRoot: "/data", Dest: dst, DestRoot: "backup", Parallelism: 1,
	})
	require.Error(t, err)
	assert.True(t, errors.IsCancelled(err))
	require.NotNil(t, report)
	assert.Equal(t, 1, report.Transferred)
	assert.Equal(t, 1, dst.Len())
}

func TestManager_CancelledWhilePlanning(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src, dst := memPair()
	src.Put("/data/a", []byte("a"), t1)
	src.Fail = func(op, _ string) error {
		if op == "list" {
			return context.Canceled
		}
		return nil
	}
	progress := &testutil.MockProgressTracker{}

	report, err := NewManager(nil).Sync(ctx, &Config{
		Source: src, SourceRoot: "/data", Dest: dst, DestRoot: "backup",
		ProgressTracker: progress,
	})
	require.Error(t, err)
	assert.True(t, errors.IsCancelled(err))
	require.NotNil(t, report)
	assert.Zero(t, report.Transferred)
	assert.Empty(t, report.Planned)
	assert.True(t, progress.ErrorCalled)
	assert.Zero(t, dst.Len())
}

func TestManager_SingleEntry(t *testing.T) {
	ctx := context.Background()

	t.Run("file copied to exact destination", func(t *testing.T) {
		src := testutil.NewMemTree(tree.KindObjectStore, "src")
		dst := testutil.NewMemTree(tree.KindLocal, "dst")
		src.Put("models/weights.bin", []byte("w"), t1)
		src.Put("models/weights.bin.sig", []byte("s"), t1)

		report, err := NewManager(nil).Sync(ctx, &Config{
			Source: src, SourceRoot: "models/weights.bin",
			Dest: dst, DestRoot: "/tmp/w.bin", SingleEntry: true,
		})
		require.NoError(t, err)
		assert.Equal(t, 1, report.Transferred)
		assert.Equal(t, 1, dst.Len())
		_, _, ok := dst.Get("/tmp/w.bin")
		assert.True(t, ok)
	})

	t.Run("include pattern keeps a file root", func(t *testing.T) {
		for _, single := range []bool{false, true} {
			src := testutil.NewMemTree(tree.KindLocal, "src")
			dst := testutil.NewMemTree(tree.KindObjectStore, "dst")
			src.Put("/data/model.bin", []byte("weights"), t1)

			report, err := NewManager(nil).Sync(ctx, &Config{
				Source: src, SourceRoot: "/data/model.bin",
				Dest: dst, DestRoot: "backup/model.bin",
				IncludePatterns: []string{"*.bin"}, SingleEntry: single,
			})
			require.NoError(t, err)
			assert.Equal(t, 1, report.Transferred)
			data, _, ok := dst.Get("backup/model.bin")
			require.True(t, ok)
			assert.Equal(t, []byte("weights"), data)
		}
	})

	t.Run("directory source is unsupported", func(t *testing.T) {
		src := testutil.NewMemTree(tree.KindObjectStore, "src")
		src.Put("models/a", []byte("a"), t1)

		_, err := NewManager(nil).Sync(ctx, &Config{
			Source: src, SourceRoot: "models",
			Dest: testutil.NewMemTree(tree.KindLocal, "dst"), DestRoot: "/tmp/m", SingleEntry: true,
		})
		assert.True(t, errors.IsUnsupported(err))
	})

	t.Run("absent object is not found", func(t *testing.T) {
		_, err := NewManager(nil).Sync(ctx, &Config{
			Source: testutil.NewMemTree(tree.KindObjectStore, "src"), SourceRoot: "nothing",
			Dest: testutil.NewMemTree(tree.KindLocal, "dst"), DestRoot: "/tmp/x", SingleEntry: true,
		})
		assert.True(t, errors.IsNotFound(err))
	})

	t.Run("unchanged file is skipped", func(t *testing.T) {
		src := testutil.NewMemTree(tree.KindObjectStore, "src")
		dst := testutil.NewMemTree(tree.KindLocal, "dst")
		src.Put("f", []byte("f"), t1)
		dst.Put("/tmp/f", []byte("f"), t1)
		dst.Put("/tmp/f-other", []byte("o"), t1)

		report, err := NewManager(nil).Sync(ctx, &Config{
			Source: src, SourceRoot: "f", Dest: dst, DestRoot: "/tmp/f", SingleEntry: true, DeleteExtra: true,
		})
		require.NoError(t, err)
		assert.Equal(t, 0, report.Transferred)
		assert.Equal(t, 1, report.Skipped)
		assert.Equal(t, 2, dst.Len())
	})
}

func TestManager_SizeOnlyComparator(t *testing.T) {
	src, dst := memPair()
	src.Put("/data/a", []byte("same"), t1)
	dst.Put("backup/a", []byte("same"), t2)

	report, err := NewManager(nil).Sync(context.Background(), &Config{
		Source: src, SourceRoot: "/data", Dest: dst, DestRoot: "backup",
		Comparator: comparator.NewSizeOnlyComparator(),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, report.Transferred)
	assert.Equal(t, 1, report.Skipped)
}

// A second sync over real adapters finds nothing to do in either direction.
func TestManager_IdempotentOverAdapters(t *testing.T) {
	ctx := context.Background()
	local := localtree.New(localtree.WithFilesystem(billy.NewInMemoryFS()))
	remote := s3tree.New(testutil.NewFakeS3("bucket"), "bucket")

	require.NoError(t, local.Write(ctx, "/work/a.txt", []byte("alpha"), t1))
	require.NoError(t, local.Write(ctx, "/work/sub/b.json", []byte(`{"b":1}`), t2))
	require.NoError(t, local.Write(ctx, "/work/sub/deeper/c.bin", []byte{0, 1, 2}, t1))

	up := &Config{Source: local, SourceRoot: "/work", Dest: remote, DestRoot: "backups/v1", DeleteExtra: true}
	report, err := NewManager(nil).Sync(ctx, up)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Transferred)

	report, err = NewManager(nil).Sync(ctx, up)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Transferred)
	assert.Equal(t, 0, report.Deleted)
	assert.Equal(t, 3, report.Skipped)

	down := &Config{Source: remote, SourceRoot: "backups/v1", Dest: local, DestRoot: "/restore", DeleteExtra: true}
	report, err = NewManager(nil).Sync(ctx, down)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Transferred)

	report, err = NewManager(nil).Sync(ctx, down)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Transferred)
	assert.Equal(t, 3, report.Skipped)

	data, err := local.Read(ctx, "/restore/sub/b.json")
	require.NoError(t, err)
	assert.Equal(t, `{"b":1}`, string(data))
}

// Randomly generated trees converge after one sync with deletion enabled.
func TestManager_GeneratedTreesConverge(t *testing.T) {
	ctx := context.Background()
	gen := testutil.NewTestDataGenerator(7)
	src := testutil.NewMemTree(tree.KindLocal, "src")
	dst := testutil.NewMemTree(tree.KindObjectStore, "dst")

	for _, f := range gen.GenerateFiles(60, 3, 512) {
		src.Put("/gen/"+f.Path, f.Data, f.ModTime)
	}
	for _, f := range gen.GenerateFiles(40, 2, 256) {
		dst.Put("mirror/"+f.Path, f.Data, f.ModTime)
	}

	cfg := &Config{Source: src, SourceRoot: "/gen", Dest: dst, DestRoot: "mirror", DeleteExtra: true, Parallelism: 8}
	_, err := NewManager(nil).Sync(ctx, cfg)
	require.NoError(t, err)

	report, err := NewManager(nil).Sync(ctx, cfg)
	require.NoError(t, err)
	assert.Zero(t, report.Transferred)
	assert.Zero(t, report.Deleted)
	assert.Equal(t, 60, report.Skipped)
	assert.Equal(t, 60, dst.Len())
}
