package treesync

import (
	"context"
	"slices"

	"github.com/input-output-hk/catalyst-forge-libs/treesync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/internal/sync/sync"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/synctypes"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/tree"
)

// Sync makes dst mirror src.
//
// The operation follows three phases:
// 1. Inventory: list both locations
// 2. Planning: determine what transfers and deletes are needed
// 3. Execution: perform transfers, then deletes, with concurrency control
//
// By default Sync only transfers new or modified entries. Use WithDelete to
// remove destination entries that don't exist in the source.
//
// The report is non-nil whenever planning succeeded or ctx was cancelled,
// including when an action fails; its counts then reflect the actions that
// completed.
//
// Errors:
//   - ErrConfig: missing trees, invalid patterns, unknown bucket
//   - ErrUnsupported: both locations are local
//   - ErrIO: a location could not be listed
//   - ErrTransfer: an action failed
//   - ErrCancelled: ctx was cancelled
//
// Example:
//
//	report, err := client.Sync(ctx, src, dst,
//	    treesync.WithDryRun(true),
//	    treesync.WithExclude("*.tmp"),
//	)
func (c *Client) Sync(
	ctx context.Context,
	src, dst Location,
	opts ...synctypes.SyncOption,
) (*synctypes.Report, error) {
	return c.run(ctx, src, dst, false, opts)
}

// Copy transfers src to dst without deleting anything.
//
// A recursive copy transfers every new or modified entry beneath src. A
// non-recursive copy transfers the single entry at exactly src.Root to
// exactly dst.Root; naming a directory without recursive is ErrUnsupported.
//
// Example:
//
//	report, err := client.Copy(ctx,
//	    treesync.Location{Tree: remote, Root: "models/weights.bin"},
//	    treesync.Location{Tree: local, Root: "/tmp/weights.bin"},
//	    false,
//	)
func (c *Client) Copy(
	ctx context.Context,
	src, dst Location,
	recursive bool,
	opts ...synctypes.SyncOption,
) (*synctypes.Report, error) {
	opts = append(slices.Clone(opts), WithDelete(false))
	return c.run(ctx, src, dst, !recursive, opts)
}

// List returns every entry at or beneath loc.
func (c *Client) List(ctx context.Context, loc Location) (*tree.Snapshot, error) {
	if loc.Tree == nil {
		return nil, errors.NewConfigError("list", "location has no tree")
	}
	snap, err := loc.Tree.List(ctx, loc.Root)
	if err != nil {
		return nil, err
	}
	c.config.Logger.Debug("listed location", "location", loc.String(), "entries", snap.Len())
	return snap, nil
}

func (c *Client) run(
	ctx context.Context,
	src, dst Location,
	singleEntry bool,
	opts []synctypes.SyncOption,
) (*synctypes.Report, error) {
	cfg := &synctypes.SyncOptionConfig{
		Concurrency: c.config.Concurrency,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return c.manager.Sync(ctx, &sync.Config{
		Source:          src.Tree,
		SourceRoot:      src.Root,
		Dest:            dst.Tree,
		DestRoot:        dst.Root,
		IncludePatterns: cfg.IncludePatterns,
		ExcludePatterns: cfg.ExcludePatterns,
		DeleteExtra:     cfg.DeleteExtra,
		DryRun:          cfg.DryRun,
		SingleEntry:     singleEntry,
		Comparator:      cfg.Comparator,
		ProgressTracker: cfg.ProgressTracker,
		Parallelism:     cfg.Concurrency,
	})
}
