// Package billy implements fs.Filesystem on top of go-billy.
package billy

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"

	parentfs "github.com/input-output-hk/catalyst-forge-libs/treesync/fs"
)

// FS implements the Filesystem interface using go-billy.
//
// go-billy's in-memory and OS backends do not implement billy.Change, so FS
// applies Chtimes itself: directly on the host for OS backed filesystems, and
// through an overlay of recorded modification times otherwise.
type FS struct {
	fs     billy.Filesystem
	osRoot string

	mu     sync.RWMutex
	mtimes map[string]time.Time
}

var _ parentfs.Filesystem = (*FS)(nil)

// Create implements Filesystem.Create.
//
//nolint:ireturn // Filesystem methods return fs.File.
func (b *FS) Create(name string) (parentfs.File, error) {
	f, err := b.fs.Create(name)
	if err != nil {
		return nil, fmt.Errorf("billy: create %q: %w", name, err)
	}
	b.forget(name)
	return &File{file: f, name: name}, nil
}

// Exists implements Filesystem.Exists.
func (b *FS) Exists(path string) (bool, error) {
	_, err := b.fs.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case os.IsNotExist(err):
		return false, nil
	default:
		return false, fmt.Errorf("billy: stat %q: %w", path, err)
	}
}

// MkdirAll implements Filesystem.MkdirAll.
func (b *FS) MkdirAll(path string, perm os.FileMode) error {
	if err := b.fs.MkdirAll(path, perm); err != nil {
		return fmt.Errorf("billy: mkdirall %q: %w", path, err)
	}
	return nil
}

// Open implements Filesystem.Open.
//
//nolint:ireturn // Filesystem methods return fs.File.
func (b *FS) Open(name string) (parentfs.File, error) {
	f, err := b.fs.Open(name)
	if err != nil {
		return nil, fmt.Errorf("billy: open %q: %w", name, err)
	}
	return &File{file: f, name: name}, nil
}

// OpenFile implements Filesystem.OpenFile.
//
//nolint:ireturn // Filesystem methods return fs.File.
func (b *FS) OpenFile(name string, flag int, perm os.FileMode) (parentfs.File, error) {
	f, err := b.fs.OpenFile(name, flag, perm)
	if err != nil {
		return nil, fmt.Errorf("billy: openfile %q: %w", name, err)
	}
	if flag&(os.O_WRONLY|os.O_RDWR|os.O_TRUNC|os.O_APPEND) != 0 {
		b.forget(name)
	}
	return &File{file: f, name: name}, nil
}

// TempFile implements Filesystem.TempFile. The returned file's Name is the
// path relative to this filesystem, suitable for Rename.
//
//nolint:ireturn // Filesystem methods return fs.File.
func (b *FS) TempFile(dir, prefix string) (parentfs.File, error) {
	for i := 0; i < maxTempAttempts; i++ {
		name := path.Join(filepath.ToSlash(dir), prefix+tempSuffix())
		f, err := b.fs.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("billy: tempfile dir=%q prefix=%q: %w", dir, prefix, err)
		}
		return &File{file: f, name: name}, nil
	}
	return nil, fmt.Errorf("billy: tempfile dir=%q prefix=%q: %w", dir, prefix, os.ErrExist)
}

const maxTempAttempts = 100

func tempSuffix() string {
	var buf [6]byte
	_, _ = rand.Read(buf[:])
	return hex.EncodeToString(buf[:])
}

// ReadDir implements Filesystem.ReadDir.
func (b *FS) ReadDir(dirname string) ([]os.FileInfo, error) {
	list, err := b.fs.ReadDir(dirname)
	if err != nil {
		return nil, fmt.Errorf("billy: readdir %q: %w", dirname, err)
	}
	for i, info := range list {
		list[i] = b.overlay(path.Join(dirname, info.Name()), info)
	}
	return list, nil
}

// ReadFile implements Filesystem.ReadFile.
func (b *FS) ReadFile(path string) ([]byte, error) {
	bts, err := util.ReadFile(b.fs, path)
	if err != nil {
		return nil, fmt.Errorf("billy: readfile %q: %w", path, err)
	}
	return bts, nil
}

// Rename implements Filesystem.Rename. A recorded modification time follows the file.
func (b *FS) Rename(oldpath, newpath string) error {
	if err := b.fs.Rename(oldpath, newpath); err != nil {
		return fmt.Errorf("billy: rename %q to %q: %w", oldpath, newpath, err)
	}
	b.mu.Lock()
	if t, ok := b.mtimes[clean(oldpath)]; ok {
		delete(b.mtimes, clean(oldpath))
		b.mtimes[clean(newpath)] = t
	} else {
		delete(b.mtimes, clean(newpath))
	}
	b.mu.Unlock()
	return nil
}

// Remove implements Filesystem.Remove.
func (b *FS) Remove(name string) error {
	if err := b.fs.Remove(name); err != nil {
		return fmt.Errorf("billy: remove %q: %w", name, err)
	}
	b.forget(name)
	return nil
}

// Stat implements Filesystem.Stat.
func (b *FS) Stat(name string) (os.FileInfo, error) {
	info, err := b.fs.Stat(name)
	if err != nil {
		return nil, fmt.Errorf("billy: stat %q: %w", name, err)
	}
	return b.overlay(name, info), nil
}

// Lstat implements Filesystem.Lstat.
func (b *FS) Lstat(name string) (os.FileInfo, error) {
	info, err := b.fs.Lstat(name)
	if err != nil {
		return nil, fmt.Errorf("billy: lstat %q: %w", name, err)
	}
	return b.overlay(name, info), nil
}

// Chtimes implements Filesystem.Chtimes.
func (b *FS) Chtimes(name string, atime, mtime time.Time) error {
	if ch, ok := b.fs.(billy.Change); ok {
		if err := ch.Chtimes(name, atime, mtime); err != nil {
			return fmt.Errorf("billy: chtimes %q: %w", name, err)
		}
		return nil
	}

	if b.osRoot != "" {
		if err := os.Chtimes(b.hostPath(name), atime, mtime); err != nil {
			return fmt.Errorf("billy: chtimes %q: %w", name, err)
		}
		return nil
	}

	if _, err := b.fs.Stat(name); err != nil {
		return fmt.Errorf("billy: chtimes %q: %w", name, err)
	}
	b.mu.Lock()
	b.mtimes[clean(name)] = mtime
	b.mu.Unlock()
	return nil
}

// Walk implements Filesystem.Walk. Symbolic links are reported but not followed.
func (b *FS) Walk(root string, walkFn filepath.WalkFunc) error {
	err := util.Walk(b.fs, root, func(p string, info os.FileInfo, err error) error {
		if info != nil {
			info = b.overlay(p, info)
		}
		return walkFn(p, info, err)
	})
	if err != nil {
		return fmt.Errorf("billy: walk %q: %w", root, err)
	}
	return nil
}

// WriteFile implements Filesystem.WriteFile.
func (b *FS) WriteFile(filename string, data []byte, perm os.FileMode) error {
	if err := util.WriteFile(b.fs, filename, data, perm); err != nil {
		return fmt.Errorf("billy: writefile %q: %w", filename, err)
	}
	b.forget(filename)
	return nil
}

// Raw returns the underlying go-billy filesystem.
//
//nolint:ireturn // returning interface here is intentional to expose the adapter target.
func (b *FS) Raw() billy.Filesystem {
	return b.fs
}

func (b *FS) hostPath(name string) string {
	name = filepath.Clean(filepath.FromSlash(name))
	if name == b.osRoot || strings.HasPrefix(name, b.osRoot+string(filepath.Separator)) {
		return name
	}
	return filepath.Join(b.osRoot, name)
}

func (b *FS) forget(name string) {
	b.mu.Lock()
	delete(b.mtimes, clean(name))
	b.mu.Unlock()
}

func (b *FS) overlay(name string, info os.FileInfo) os.FileInfo {
	b.mu.RLock()
	t, ok := b.mtimes[clean(name)]
	b.mu.RUnlock()
	if !ok {
		return info
	}
	return fileInfo{FileInfo: info, modTime: t}
}

func clean(name string) string {
	return path.Clean("/" + filepath.ToSlash(name))
}

// fileInfo replaces the modification time reported by the wrapped FileInfo.
type fileInfo struct {
	os.FileInfo
	modTime time.Time
}

func (fi fileInfo) ModTime() time.Time { return fi.modTime }

// NewFS creates a new FS using the given go-billy filesystem.
func NewFS(fsys billy.Filesystem) *FS {
	return &FS{
		fs:     fsys,
		mtimes: make(map[string]time.Time),
	}
}

// NewInMemoryFS creates a new in-memory filesystem.
func NewInMemoryFS() *FS {
	return NewFS(memfs.New())
}

// NewOSFS creates a filesystem backed by the host OS and rooted at dir.
// Paths passed to the returned FS cannot escape dir.
func NewOSFS(dir string) *FS {
	dir = filepath.Clean(dir)
	b := NewFS(osfs.New(dir, osfs.WithBoundOS()))
	b.osRoot = dir
	return b
}
