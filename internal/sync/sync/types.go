package sync

import (
	"github.com/input-output-hk/catalyst-forge-libs/treesync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/synctypes"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/tree"
)

// Config holds configuration for a sync operation.
type Config struct {
	// Source is the tree read from
	Source tree.Tree

	// SourceRoot is the directory or key prefix within Source
	SourceRoot string

	// Dest is the tree written to
	Dest tree.Tree

	// DestRoot is the directory or key prefix within Dest
	DestRoot string

	// IncludePatterns are glob patterns for files to include
	IncludePatterns []string

	// ExcludePatterns are glob patterns for files to exclude
	ExcludePatterns []string

	// DeleteExtra determines if destination entries missing from the
	// source should be deleted
	DeleteExtra bool

	// DryRun determines if this should be a dry run (no actual changes)
	DryRun bool

	// SingleEntry restricts the operation to the entry at exactly
	// SourceRoot, copied to exactly DestRoot
	SingleEntry bool

	// Comparator decides whether an entry changed; nil compares size and
	// modification time
	Comparator synctypes.Comparator

	// ProgressTracker tracks sync progress
	ProgressTracker synctypes.ProgressTracker

	// Parallelism controls the number of concurrent operations
	Parallelism int
}

// Validate checks that the configuration describes a supported operation.
func (c *Config) Validate() error {
	if c.Source == nil || c.Dest == nil {
		return errors.NewConfigError("sync", "source and destination trees are required")
	}
	if c.Source.Kind() == tree.KindLocal && c.Dest.Kind() == tree.KindLocal {
		return errors.NewUnsupportedError("sync", "local to local synchronization is not supported")
	}
	if c.Parallelism < 0 {
		return errors.NewConfigError("sync", "parallelism must not be negative")
	}
	return nil
}
