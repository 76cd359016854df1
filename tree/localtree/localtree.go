// Package localtree implements tree.Tree over a local filesystem.
package localtree

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/treesync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/fs"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/fs/billy"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/internal/pathmap"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/tree"
)

const (
	dirPerm     = 0o755
	tempPrefix  = ".treesync-"
	description = "local"
)

var _ tree.Tree = (*Tree)(nil)

// IsTemp reports whether name is a temporary file written by an in-progress
// Write.
func IsTemp(name string) bool {
	return strings.HasPrefix(path.Base(filepath.ToSlash(name)), tempPrefix)
}

// Tree is a local filesystem tree. Paths are slash separated and absolute
// within the underlying filesystem.
type Tree struct {
	fs     fs.Filesystem
	logger *slog.Logger
}

// Option configures a Tree.
type Option func(*Tree)

// WithFilesystem replaces the host filesystem, typically with an in-memory one.
func WithFilesystem(fsys fs.Filesystem) Option {
	return func(t *Tree) {
		t.fs = fsys
	}
}

// WithLogger sets the logger used to report skipped entries.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tree) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// New creates a tree over the host filesystem.
func New(opts ...Option) *Tree {
	t := &Tree{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.fs == nil {
		t.fs = billy.NewOSFS("/")
	}
	return t
}

// List walks root depth-first. Symbolic links are skipped, never followed, as
// are temporary files left by in-progress writes. A root naming a single file
// yields one entry with the empty relative path.
func (t *Tree) List(ctx context.Context, root string) (*tree.Snapshot, error) {
	b := tree.NewBuilder(root)

	info, err := t.fs.Lstat(root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errors.New("list", errors.ErrNotFound, err).WithTree(t.String()).WithPath(root)
		}
		return nil, errors.NewIOError("list", err).WithTree(t.String()).WithPath(root)
	}
	if info.Mode().IsRegular() {
		b.Add(entryOf("", info))
		return b.Snapshot(), nil
	}
	if !info.IsDir() {
		t.logger.Debug("skipping non-regular root", "path", root, "mode", info.Mode().String())
		return b.Snapshot(), nil
	}

	err = t.fs.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if info.IsDir() || info.Mode()&os.ModeSymlink != 0 {
			if info.Mode()&os.ModeSymlink != 0 {
				t.logger.Debug("skipping symbolic link", "path", p)
			}
			return nil
		}
		if !info.Mode().IsRegular() || IsTemp(info.Name()) {
			return nil
		}

		rel, ok := pathmap.Relative(root, filepath.ToSlash(p))
		if !ok || !pathmap.Clean(rel) {
			t.logger.Warn("skipping entry outside root", "root", root, "path", p)
			return nil
		}
		b.Add(entryOf(rel, info))
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, errors.NewCancelledError("list", ctxErr).WithTree(t.String()).WithPath(root)
		}
		return nil, errors.NewIOError("list", err).WithTree(t.String()).WithPath(root)
	}

	return b.Snapshot(), nil
}

// Read returns the contents of the file at p.
func (t *Tree) Read(ctx context.Context, p string) ([]byte, error) {
	f, err := t.fs.Open(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errors.New("read", errors.ErrNotFound, err).WithTree(t.String()).WithPath(p)
		}
		return nil, errors.NewIOError("read", err).WithTree(t.String()).WithPath(p)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, errors.NewIOError("read", err).WithTree(t.String()).WithPath(p)
	}
	return data, nil
}

// Write creates missing parent directories, writes data to a temporary file
// beside p and renames it into place, then stamps it with modTime.
func (t *Tree) Write(ctx context.Context, p string, data []byte, modTime time.Time) error {
	dir := path.Dir(p)
	if err := t.fs.MkdirAll(dir, dirPerm); err != nil {
		return errors.NewIOError("write", err).WithTree(t.String()).WithPath(p)
	}

	tmp, err := t.fs.TempFile(dir, tempPrefix)
	if err != nil {
		return errors.NewIOError("write", err).WithTree(t.String()).WithPath(p)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = t.fs.Remove(tmpName)
		return errors.NewIOError("write", err).WithTree(t.String()).WithPath(p)
	}
	if err := tmp.Close(); err != nil {
		_ = t.fs.Remove(tmpName)
		return errors.NewIOError("write", err).WithTree(t.String()).WithPath(p)
	}
	if err := t.fs.Rename(tmpName, p); err != nil {
		_ = t.fs.Remove(tmpName)
		return errors.NewIOError("write", err).WithTree(t.String()).WithPath(p)
	}

	if !modTime.IsZero() {
		if err := t.fs.Chtimes(p, modTime, modTime); err != nil {
			return errors.NewIOError("write", err).WithTree(t.String()).WithPath(p).
				WithMessage("set modification time")
		}
	}
	return nil
}

// Delete removes the file at p. A missing file is not an error.
func (t *Tree) Delete(ctx context.Context, p string) error {
	if err := t.fs.Remove(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return errors.NewIOError("delete", err).WithTree(t.String()).WithPath(p)
	}
	return nil
}

// Kind implements tree.Tree.
func (t *Tree) Kind() tree.Kind {
	return tree.KindLocal
}

// String implements tree.Tree.
func (t *Tree) String() string {
	return description
}

func entryOf(rel string, info os.FileInfo) tree.Entry {
	size := info.Size()
	if size < 0 {
		size = 0
	}
	return tree.Entry{
		RelativePath: rel,
		Size:         uint64(size),
		ModTime:      info.ModTime(),
	}
}
