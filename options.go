package treesync

import (
	"log/slog"

	"github.com/input-output-hk/catalyst-forge-libs/treesync/internal/sync/comparator"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/synctypes"
)

// WithLogger sets the logger. Phase boundaries are logged at Info and
// individual actions at Debug.
func WithLogger(logger *slog.Logger) synctypes.Option {
	return func(c *synctypes.ClientConfig) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// WithConcurrency sets the maximum number of concurrent actions.
// Default is 4.
func WithConcurrency(concurrency int) synctypes.Option {
	return func(c *synctypes.ClientConfig) {
		if concurrency > 0 {
			c.Concurrency = concurrency
		}
	}
}

// WithDryRun plans the operation and reports it without changing either tree.
func WithDryRun(dryRun bool) synctypes.SyncOption {
	return func(c *synctypes.SyncOptionConfig) {
		c.DryRun = dryRun
	}
}

// WithInclude restricts the operation to paths matching at least one of the
// glob patterns. Patterns use doublestar syntax and match relative paths; a
// pattern without "/" also matches a file name at any depth.
func WithInclude(patterns ...string) synctypes.SyncOption {
	return func(c *synctypes.SyncOptionConfig) {
		c.IncludePatterns = append(c.IncludePatterns, patterns...)
	}
}

// WithExclude skips paths matching any of the glob patterns. Excludes win
// over includes and apply to the destination too, so an excluded destination
// file is never deleted. A pattern ending in "/" excludes a whole directory.
func WithExclude(patterns ...string) synctypes.SyncOption {
	return func(c *synctypes.SyncOptionConfig) {
		c.ExcludePatterns = append(c.ExcludePatterns, patterns...)
	}
}

// WithProgress sets a progress tracker.
func WithProgress(tracker synctypes.ProgressTracker) synctypes.SyncOption {
	return func(c *synctypes.SyncOptionConfig) {
		c.ProgressTracker = tracker
	}
}

// WithDelete removes destination entries that are absent from the source.
//
// Syncing an empty source with deletion enabled empties the destination.
func WithDelete(deleteExtra bool) synctypes.SyncOption {
	return func(c *synctypes.SyncOptionConfig) {
		c.DeleteExtra = deleteExtra
	}
}

// WithSizeOnly compares entries by size alone, for stores that cannot
// record modification times.
func WithSizeOnly(sizeOnly bool) synctypes.SyncOption {
	return func(c *synctypes.SyncOptionConfig) {
		if sizeOnly {
			c.Comparator = comparator.NewSizeOnlyComparator()
		} else {
			c.Comparator = nil
		}
	}
}

// WithComparator sets a custom change detector.
func WithComparator(comp synctypes.Comparator) synctypes.SyncOption {
	return func(c *synctypes.SyncOptionConfig) {
		c.Comparator = comp
	}
}

// WithSyncConcurrency overrides the client concurrency for one operation.
func WithSyncConcurrency(concurrency int) synctypes.SyncOption {
	return func(c *synctypes.SyncOptionConfig) {
		if concurrency > 0 {
			c.Concurrency = concurrency
		}
	}
}
