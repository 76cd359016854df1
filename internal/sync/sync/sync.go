// Package sync drives a synchronization from snapshot to report.
package sync

import (
	"context"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/input-output-hk/catalyst-forge-libs/treesync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/internal/pathmap"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/internal/sync/executor"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/internal/sync/planner"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/internal/sync/scanner"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/synctypes"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/tree"
)

// Manager coordinates the phases of a sync operation:
// 1. Inventory: list the source and destination into snapshots
// 2. Planning: diff the snapshots into transfers and deletes
// 3. Execution: apply the actions with concurrency control
type Manager struct {
	logger *slog.Logger
}

// NewManager creates a new sync manager.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{logger: logger}
}

// Plan holds the outcome of the inventory and planning phases.
type Plan struct {
	Source  *tree.Snapshot
	Dest    *tree.Snapshot
	Mapper  *pathmap.Mapper
	Actions []*planner.Action
}

// Sync executes a complete sync operation.
//
// The returned report is non-nil whenever planning succeeded or was
// cancelled, including when execution fails; its counts then reflect
// completed actions.
func (sm *Manager) Sync(ctx context.Context, config *Config) (*synctypes.Report, error) {
	startTime := time.Now()

	plan, err := sm.Plan(ctx, config)
	if err != nil {
		sm.fail(config, err)
		if errors.IsCancelled(err) {
			return &synctypes.Report{DryRun: config.DryRun, Duration: time.Since(startTime)}, err
		}
		return nil, err
	}

	transfers, _ := planner.Split(plan.Actions)
	report := &synctypes.Report{
		Skipped: plan.Source.Len() - len(transfers),
		Planned: planner.Public(plan.Actions),
		DryRun:  config.DryRun,
	}

	if config.DryRun {
		stats := planner.GetStats(plan.Actions)
		sm.logger.Info("dry run planned",
			"source", describe(config.Source, config.SourceRoot),
			"destination", describe(config.Dest, config.DestRoot),
			"transfers", stats.Transfers,
			"deletes", stats.Deletes,
			"bytes", humanize.IBytes(stats.BytesToTransfer))
		report.Duration = time.Since(startTime)
		if config.ProgressTracker != nil {
			config.ProgressTracker.Complete()
		}
		return report, nil
	}

	ex := executor.NewExecutor(config.Source, config.Dest, plan.Mapper,
		executor.WithConcurrency(config.Parallelism),
		executor.WithProgressTracker(config.ProgressTracker),
		executor.WithLogger(sm.logger))

	result, err := ex.Run(ctx, plan.Actions)
	if result != nil {
		report.Transferred = result.Transferred
		report.Deleted = result.Deleted
		report.BytesTransferred = result.BytesTransferred
	}
	report.Duration = time.Since(startTime)

	if err != nil {
		sm.fail(config, err)
		return report, err
	}

	sm.logger.Info("sync complete",
		"source", describe(config.Source, config.SourceRoot),
		"destination", describe(config.Dest, config.DestRoot),
		"transferred", report.Transferred,
		"deleted", report.Deleted,
		"skipped", report.Skipped,
		"bytes", humanize.IBytes(uint64(report.BytesTransferred)),
		"duration", report.Duration)
	if config.ProgressTracker != nil {
		config.ProgressTracker.Complete()
	}
	return report, nil
}

// Plan performs the inventory and planning phases without touching either
// tree. A missing destination root is planned against as an empty tree; a
// missing source root is a failure.
func (sm *Manager) Plan(ctx context.Context, config *Config) (*Plan, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	sc, err := scanner.NewScanner(config.IncludePatterns, config.ExcludePatterns, sm.logger)
	if err != nil {
		return nil, err
	}

	src, err := sc.Build(ctx, config.Source, config.SourceRoot)
	if err != nil {
		return nil, err
	}

	dst, err := sc.Build(ctx, config.Dest, config.DestRoot)
	if err != nil {
		if !errors.IsNotFound(err) {
			return nil, err
		}
		sm.logger.Debug("destination root does not exist yet",
			"destination", describe(config.Dest, config.DestRoot))
		dst = tree.Empty(config.DestRoot)
	}

	deleteExtra := config.DeleteExtra
	if config.SingleEntry {
		if src, dst, err = singleEntry(config, src, dst); err != nil {
			return nil, err
		}
		deleteExtra = false
	}

	mapper := pathmap.New(config.SourceRoot, config.DestRoot)
	actions := planner.NewPlanner(config.Comparator).Plan(src, dst, mapper, deleteExtra)
	if err := planner.Validate(actions); err != nil {
		return nil, err
	}

	stats := planner.GetStats(actions)
	sm.logger.Debug("planned sync",
		"transfers", stats.Transfers,
		"deletes", stats.Deletes,
		"bytes_to_transfer", humanize.IBytes(stats.BytesToTransfer),
		"bytes_to_delete", humanize.IBytes(stats.BytesToDelete))

	return &Plan{Source: src, Dest: dst, Mapper: mapper, Actions: actions}, nil
}

// singleEntry narrows both snapshots to the entry at exactly their root.
func singleEntry(config *Config, src, dst *tree.Snapshot) (*tree.Snapshot, *tree.Snapshot, error) {
	if _, ok := src.Get(""); !ok {
		if src.Len() > 0 {
			return nil, nil, errors.NewUnsupportedError("copy",
				"source is a directory; use a recursive copy").WithTree(config.Source.String()).WithPath(config.SourceRoot)
		}
		return nil, nil, errors.New("copy", errors.ErrNotFound, nil).
			WithTree(config.Source.String()).WithPath(config.SourceRoot).WithMessage("source does not exist")
	}

	atRoot := func(e tree.Entry) bool { return e.RelativePath == "" }
	return src.Filter(atRoot), dst.Filter(atRoot), nil
}

func (sm *Manager) fail(config *Config, err error) {
	if config.ProgressTracker != nil {
		config.ProgressTracker.Error(err)
	}
	if errors.IsCancelled(err) {
		sm.logger.Warn("sync cancelled", "error", err)
		return
	}
	sm.logger.Error("sync failed", "code", errors.CodeOf(err), "error", err)
}

func describe(t tree.Tree, root string) string {
	if t == nil {
		return root
	}
	return t.String() + " " + root
}
