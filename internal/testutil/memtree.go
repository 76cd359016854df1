package testutil

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/treesync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/internal/pathmap"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/tree"
)

var (
	_ tree.Tree         = (*MemTree)(nil)
	_ tree.BatchDeleter = (*BatchMemTree)(nil)
)

// MemTree is an in-memory tree.Tree with hooks for failure injection.
//
// A local MemTree reports ErrNotFound when listing a root with no entries, the
// way a missing directory does; an object-store MemTree returns an empty
// snapshot, the way a missing prefix does.
type MemTree struct {
	mu    sync.Mutex
	kind  tree.Kind
	name  string
	files map[string]memFile
	calls map[string]int

	// Fail, when set, is consulted before every operation. A non-nil return
	// value is returned as the operation's error.
	Fail func(op, path string) error

	// Before, when set, runs before every Read, Write and Delete, after Fail.
	// Tests use it to block or to observe concurrency.
	Before func(ctx context.Context, op, path string)
}

type memFile struct {
	data    []byte
	modTime time.Time
}

// NewMemTree creates an empty tree of the given kind.
func NewMemTree(kind tree.Kind, name string) *MemTree {
	return &MemTree{
		kind:  kind,
		name:  name,
		files: make(map[string]memFile),
		calls: make(map[string]int),
	}
}

// Put stores a file directly, bypassing hooks and call counting.
func (m *MemTree) Put(path string, data []byte, modTime time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = memFile{data: bytes.Clone(data), modTime: modTime}
}

// Get returns the file stored at path.
func (m *MemTree) Get(path string) ([]byte, time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[path]
	return bytes.Clone(f.data), f.modTime, ok
}

// Len returns the number of stored files.
func (m *MemTree) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.files)
}

// Calls returns how many times op was invoked.
func (m *MemTree) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

func (m *MemTree) begin(ctx context.Context, op, path string) error {
	m.mu.Lock()
	m.calls[op]++
	fail, before := m.Fail, m.Before
	m.mu.Unlock()
	if fail != nil {
		if err := fail(op, path); err != nil {
			return err
		}
	}
	if before != nil && op != "list" {
		before(ctx, op, path)
	}
	return nil
}

// List implements tree.Tree.
func (m *MemTree) List(ctx context.Context, root string) (*tree.Snapshot, error) {
	if err := m.begin(ctx, "list", root); err != nil {
		return nil, errors.NewIOError("list", err).WithTree(m.String()).WithPath(root)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	b := tree.NewBuilder(root)
	for p, f := range m.files {
		rel, ok := pathmap.Relative(root, p)
		if !ok {
			continue
		}
		b.Add(tree.Entry{RelativePath: rel, Size: uint64(len(f.data)), ModTime: f.modTime})
	}
	if b.Len() == 0 && m.kind == tree.KindLocal {
		return nil, errors.New("list", errors.ErrNotFound, nil).WithTree(m.String()).WithPath(root)
	}
	return b.Snapshot(), nil
}

// Read implements tree.Tree.
func (m *MemTree) Read(ctx context.Context, path string) ([]byte, error) {
	if err := m.begin(ctx, "read", path); err != nil {
		return nil, errors.NewIOError("read", err).WithTree(m.String()).WithPath(path)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[path]
	if !ok {
		return nil, errors.New("read", errors.ErrNotFound, nil).WithTree(m.String()).WithPath(path)
	}
	return bytes.Clone(f.data), nil
}

// Write implements tree.Tree.
func (m *MemTree) Write(ctx context.Context, path string, data []byte, modTime time.Time) error {
	if err := m.begin(ctx, "write", path); err != nil {
		return errors.NewIOError("write", err).WithTree(m.String()).WithPath(path)
	}

	m.Put(path, data, modTime)
	return nil
}

// Delete implements tree.Tree.
func (m *MemTree) Delete(ctx context.Context, path string) error {
	if err := m.begin(ctx, "delete", path); err != nil {
		return errors.NewIOError("delete", err).WithTree(m.String()).WithPath(path)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, path)
	return nil
}

// Kind implements tree.Tree.
func (m *MemTree) Kind() tree.Kind { return m.kind }

// String implements tree.Tree.
func (m *MemTree) String() string { return fmt.Sprintf("mem://%s", m.name) }

// BatchMemTree is a MemTree that also implements tree.BatchDeleter.
type BatchMemTree struct {
	*MemTree
}

// NewBatchMemTree creates an empty object-store tree supporting batch deletes.
func NewBatchMemTree(name string) *BatchMemTree {
	return &BatchMemTree{MemTree: NewMemTree(tree.KindObjectStore, name)}
}

// DeleteBatch implements tree.BatchDeleter by deleting paths in order and
// stopping at the first failure.
func (b *BatchMemTree) DeleteBatch(ctx context.Context, paths []string) (int, error) {
	b.mu.Lock()
	b.calls["deleteBatch"]++
	b.mu.Unlock()
	for i, p := range paths {
		if err := b.Delete(ctx, p); err != nil {
			return i, err
		}
	}
	return len(paths), nil
}
