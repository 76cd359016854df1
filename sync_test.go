package treesync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/catalyst-forge-libs/treesync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/fs/billy"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/internal/testutil"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/synctypes"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/tree"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/tree/localtree"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/tree/s3tree"
)

var stamp = time.Date(2024, 6, 1, 12, 0, 0, 42, time.UTC)

func fixture(t *testing.T) (Location, Location, *testutil.FakeS3) {
	t.Helper()
	ctx := context.Background()

	local := localtree.New(localtree.WithFilesystem(billy.NewInMemoryFS()))
	require.NoError(t, local.Write(ctx, "/project/main.go", []byte("package main"), stamp))
	require.NoError(t, local.Write(ctx, "/project/README.md", []byte("# readme"), stamp))
	require.NoError(t, local.Write(ctx, "/project/build/out.bin", []byte{1, 2, 3}, stamp))

	fake := testutil.NewFakeS3("artifacts")
	return Location{Tree: local, Root: "/project"},
		Location{Tree: s3tree.New(fake, "artifacts"), Root: "project"},
		fake
}

func TestClient_Sync(t *testing.T) {
	ctx := context.Background()

	t.Run("upload then nothing to do", func(t *testing.T) {
		src, dst, fake := fixture(t)
		client := New()

		report, err := client.Sync(ctx, src, dst)
		require.NoError(t, err)
		assert.Equal(t, 3, report.Transferred)
		assert.Equal(t, int64(len("package main")+len("# readme")+3), report.BytesTransferred)
		assert.Equal(t, []string{"project/README.md", "project/build/out.bin", "project/main.go"},
			fake.Keys("artifacts"))

		report, err = client.Sync(ctx, src, dst)
		require.NoError(t, err)
		assert.Zero(t, report.Transferred)
		assert.Equal(t, 3, report.Skipped)
	})

	t.Run("exclude and delete", func(t *testing.T) {
		src, dst, fake := fixture(t)
		fake.Seed("artifacts", "project/stale.txt", []byte("old"), nil, stamp)
		fake.Seed("artifacts", "project/build/keep.bin", []byte("k"), nil, stamp)

		report, err := New().Sync(ctx, src, dst, WithDelete(true), WithExclude("build/"))
		require.NoError(t, err)
		assert.Equal(t, 2, report.Transferred)
		assert.Equal(t, 1, report.Deleted)
		assert.Equal(t, []string{"project/README.md", "project/build/keep.bin", "project/main.go"},
			fake.Keys("artifacts"))
	})

	t.Run("dry run", func(t *testing.T) {
		src, dst, fake := fixture(t)

		report, err := New().Sync(ctx, src, dst, WithDryRun(true))
		require.NoError(t, err)
		assert.True(t, report.DryRun)
		assert.Len(t, report.Planned, 3)
		assert.Empty(t, fake.Keys("artifacts"))
	})

	t.Run("local to local is unsupported", func(t *testing.T) {
		src, _, _ := fixture(t)
		other := Location{Tree: localtree.New(localtree.WithFilesystem(billy.NewInMemoryFS())), Root: "/copy"}

		report, err := New().Sync(ctx, src, other)
		assert.Nil(t, report)
		assert.True(t, errors.IsUnsupported(err))
		assert.Equal(t, errors.CodeNotImplemented, errors.CodeOf(err))
	})

	t.Run("missing bucket is a configuration failure", func(t *testing.T) {
		src, _, _ := fixture(t)
		dst := Location{Tree: s3tree.New(testutil.NewFakeS3(), "nope"), Root: "x"}

		_, err := New().Sync(ctx, src, dst)
		assert.True(t, errors.IsConfig(err))
	})

	t.Run("progress", func(t *testing.T) {
		src, dst, _ := fixture(t)
		tracker := &testutil.MockProgressTracker{}

		_, err := New().Sync(ctx, src, dst, WithProgress(tracker), WithSyncConcurrency(1))
		require.NoError(t, err)
		assert.True(t, tracker.CompleteCalled)
		assert.Equal(t, int64(3), tracker.Completed)
		assert.Equal(t, int64(3), tracker.Total)
	})
}

func TestClient_Copy(t *testing.T) {
	ctx := context.Background()

	t.Run("recursive copy never deletes", func(t *testing.T) {
		src, dst, fake := fixture(t)
		fake.Seed("artifacts", "project/extra", []byte("e"), nil, stamp)

		report, err := New().Copy(ctx, src, dst, true, WithDelete(true))
		require.NoError(t, err)
		assert.Equal(t, 3, report.Transferred)
		assert.Zero(t, report.Deleted)
		assert.Len(t, fake.Keys("artifacts"), 4)
	})

	t.Run("single object download", func(t *testing.T) {
		_, _, fake := fixture(t)
		fake.Seed("artifacts", "models/w.bin", []byte("weights"),
			map[string]string{"mtime": stamp.Format(time.RFC3339Nano)}, stamp)
		fake.Seed("artifacts", "models/w.bin.sha256", []byte("sum"), nil, stamp)
		local := localtree.New(localtree.WithFilesystem(billy.NewInMemoryFS()))

		report, err := New().Copy(ctx,
			Location{Tree: s3tree.New(fake, "artifacts"), Root: "models/w.bin"},
			Location{Tree: local, Root: "/tmp/w.bin"},
			false)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Transferred)

		data, err := local.Read(ctx, "/tmp/w.bin")
		require.NoError(t, err)
		assert.Equal(t, "weights", string(data))

		snap, err := local.List(ctx, "/tmp/w.bin")
		require.NoError(t, err)
		e, ok := snap.Get("")
		require.True(t, ok)
		assert.True(t, e.ModTime.Equal(stamp))
	})

	t.Run("directory without recursive", func(t *testing.T) {
		src, dst, _ := fixture(t)
		_, err := New().Copy(ctx, src, dst, false)
		assert.True(t, errors.IsUnsupported(err))
	})
}

func TestClient_List(t *testing.T) {
	ctx := context.Background()
	src, _, _ := fixture(t)

	snap, err := New().List(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, []string{"README.md", "build/out.bin", "main.go"}, snap.Paths())
	assert.Equal(t, uint64(len("package main")+len("# readme")+3), snap.TotalSize())

	_, err = New().List(ctx, Location{Root: "x"})
	assert.True(t, errors.IsConfig(err))

	_, err = New().List(ctx, Location{Tree: src.Tree, Root: "/absent"})
	assert.True(t, errors.IsNotFound(err))
}

func TestLocation_String(t *testing.T) {
	assert.Equal(t, "p", Location{Root: "p"}.String())
	loc := Location{Tree: testutil.NewMemTree(tree.KindObjectStore, "b"), Root: "p"}
	assert.Equal(t, "mem://b p", loc.String())
}

var _ synctypes.ProgressTracker = (*testutil.MockProgressTracker)(nil)
