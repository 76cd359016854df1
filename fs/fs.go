// Package fs defines the filesystem abstraction used by local trees.
//
// The interface mirrors the subset of go-billy the synchronizer relies on, so
// that tests can swap the host filesystem for an in-memory one.
package fs

import (
	"io"
	"os"
	"path/filepath"
	"time"
)

// File is an open file. Name reports the path the file was opened with.
type File interface {
	io.ReadWriteCloser
	Name() string
}

// Filesystem is a hierarchical filesystem addressed by slash separated paths.
type Filesystem interface {
	Create(name string) (File, error)
	Open(name string) (File, error)
	OpenFile(name string, flag int, perm os.FileMode) (File, error)
	TempFile(dir, prefix string) (File, error)
	Exists(path string) (bool, error)
	MkdirAll(path string, perm os.FileMode) error
	ReadDir(dirname string) ([]os.FileInfo, error)
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte, perm os.FileMode) error
	Rename(oldpath, newpath string) error
	Remove(name string) error
	Stat(name string) (os.FileInfo, error)
	Lstat(name string) (os.FileInfo, error)

	// Chtimes sets the access and modification times of name.
	Chtimes(name string, atime, mtime time.Time) error

	// Walk walks the tree rooted at root without following symbolic links.
	Walk(root string, walkFn filepath.WalkFunc) error
}
