// Package tree defines the capability interface shared by every synchronizable
// store and the immutable snapshot type produced by listing one.
//
// Two families of implementations exist: local filesystem trees
// (package localtree) and object-store trees (packages s3tree and miniotree).
// Paths handed to a Tree are in that tree's own namespace: absolute slash
// separated paths for the filesystem, object keys for object stores.
package tree

import (
	"context"
	"time"
)

// Kind identifies the family a Tree belongs to.
type Kind int

const (
	// KindLocal is a tree rooted at a directory on the local filesystem.
	KindLocal Kind = iota

	// KindObjectStore is a tree rooted at a bucket and key prefix.
	KindObjectStore
)

// String returns a short label for the kind.
func (k Kind) String() string {
	switch k {
	case KindLocal:
		return "local"
	case KindObjectStore:
		return "object-store"
	default:
		return "unknown"
	}
}

// Tree is a hierarchical store of named byte blobs.
//
// Implementations must tolerate concurrent calls that touch distinct paths.
type Tree interface {
	// List returns a snapshot of every entry at or beneath root.
	List(ctx context.Context, root string) (*Snapshot, error)

	// Read returns the full contents of the entry at path.
	Read(ctx context.Context, path string) ([]byte, error)

	// Write stores data at path and records modTime as its modification time.
	// Missing parent directories are created as needed.
	Write(ctx context.Context, path string, data []byte, modTime time.Time) error

	// Delete removes the entry at path. A missing path is not an error.
	Delete(ctx context.Context, path string) error

	// Kind reports the family of this tree.
	Kind() Kind

	// String describes the tree for logs and error messages.
	String() string
}

// BatchDeleter is implemented by trees that can remove many paths per request.
type BatchDeleter interface {
	// DeleteBatch removes paths and returns how many were deleted before the
	// first failure. Missing paths count as deleted.
	DeleteBatch(ctx context.Context, paths []string) (int, error)
}

// Entry describes one file in a snapshot.
type Entry struct {
	// RelativePath is the slash separated path relative to the snapshot root
	RelativePath string

	// Size is the content length in bytes
	Size uint64

	// ModTime is the modification time; the zero value means unknown
	ModTime time.Time
}

// SameMetadata reports whether e and other carry identical, known metadata.
func (e Entry) SameMetadata(other Entry) bool {
	if e.Size != other.Size {
		return false
	}
	if e.ModTime.IsZero() || other.ModTime.IsZero() {
		return false
	}
	return e.ModTime.Equal(other.ModTime)
}
