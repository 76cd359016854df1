// Package planner diffs a source and a destination snapshot into the ordered
// list of actions that make the destination match the source.
package planner

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/treesync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/internal/pathmap"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/internal/sync/comparator"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/synctypes"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/tree"
)

// Action is one planned change to the destination tree.
type Action struct {
	// Kind is transfer or delete
	Kind synctypes.ActionKind

	// SourcePath is the path relative to the source root; empty for deletes
	SourcePath string

	// DestPath is the path in the destination tree's namespace
	DestPath string

	// Size is the source entry size for transfers and the destination
	// entry size for deletes
	Size uint64

	// ModTime is the source modification time a transfer stamps on the destination
	ModTime time.Time

	// Reason describes why this action was planned
	Reason string
}

// Planner creates action plans for sync operations.
type Planner struct {
	comparator synctypes.Comparator
}

// NewPlanner creates a planner using comp for change detection. A nil
// comparator selects the exact metadata rule.
func NewPlanner(comp synctypes.Comparator) *Planner {
	if comp == nil {
		comp = comparator.NewMetadataComparator()
	}
	return &Planner{comparator: comp}
}

// Plan computes the actions that bring dst in line with src. Transfers come
// first, then deletes; each phase is ordered by destination path.
//
// With deleteExtra set, an empty source against a non-empty destination
// plans the deletion of every destination entry.
func (p *Planner) Plan(src, dst *tree.Snapshot, mapper *pathmap.Mapper, deleteExtra bool) []*Action {
	var transfers, deletes []*Action

	src.Range(func(s tree.Entry) bool {
		d, exists := dst.Get(s.RelativePath)
		if exists && !p.comparator.HasChanged(s, d) {
			return true
		}
		transfers = append(transfers, &Action{
			Kind:       synctypes.ActionTransfer,
			SourcePath: s.RelativePath,
			DestPath:   mapper.ToDest(s.RelativePath),
			Size:       s.Size,
			ModTime:    s.ModTime,
			Reason:     comparator.Reason(s, d, exists),
		})
		return true
	})

	if deleteExtra {
		dst.Range(func(d tree.Entry) bool {
			destPath := mapper.ToDest(d.RelativePath)
			if _, ok := src.Get(mapper.ToSourceRelative(destPath)); ok {
				return true
			}
			deletes = append(deletes, &Action{
				Kind:     synctypes.ActionDelete,
				DestPath: destPath,
				Size:     d.Size,
				Reason:   "not present at source",
			})
			return true
		})
	}

	byDest := func(a, b *Action) int { return cmp.Compare(a.DestPath, b.DestPath) }
	slices.SortFunc(transfers, byDest)
	slices.SortFunc(deletes, byDest)

	return append(transfers, deletes...)
}

// Stats contains statistics about planned actions.
type Stats struct {
	// Transfers is the number of planned transfers
	Transfers int

	// Deletes is the number of planned deletions
	Deletes int

	// BytesToTransfer is the total size of planned transfers
	BytesToTransfer uint64

	// BytesToDelete is the total size of entries planned for deletion
	BytesToDelete uint64
}

// GetStats returns statistics about the planned actions.
func GetStats(actions []*Action) Stats {
	var stats Stats
	for _, a := range actions {
		switch a.Kind {
		case synctypes.ActionTransfer:
			stats.Transfers++
			stats.BytesToTransfer += a.Size
		case synctypes.ActionDelete:
			stats.Deletes++
			stats.BytesToDelete += a.Size
		}
	}
	return stats
}

// Split partitions actions into the transfer and delete phases, keeping order.
func Split(actions []*Action) (transfers, deletes []*Action) {
	for _, a := range actions {
		if a.Kind == synctypes.ActionDelete {
			deletes = append(deletes, a)
		} else {
			transfers = append(transfers, a)
		}
	}
	return transfers, deletes
}

// Validate checks that no destination path is touched by more than one
// action and that every transfer precedes every delete.
func Validate(actions []*Action) error {
	seen := make(map[string]synctypes.ActionKind, len(actions))
	inDeletes := false
	for _, a := range actions {
		if prev, ok := seen[a.DestPath]; ok {
			return errors.NewTransferError("plan", a.DestPath,
				fmt.Errorf("conflicting actions: %s and %s planned for the same path", prev, a.Kind))
		}
		seen[a.DestPath] = a.Kind

		switch a.Kind {
		case synctypes.ActionDelete:
			inDeletes = true
		case synctypes.ActionTransfer:
			if inDeletes {
				return errors.NewTransferError("plan", a.DestPath,
					fmt.Errorf("transfer planned after a delete"))
			}
		default:
			return errors.NewTransferError("plan", a.DestPath, fmt.Errorf("unknown action kind %q", a.Kind))
		}
	}
	return nil
}

// Public converts actions into their report form.
func Public(actions []*Action) []synctypes.PlannedAction {
	out := make([]synctypes.PlannedAction, 0, len(actions))
	for _, a := range actions {
		out = append(out, synctypes.PlannedAction{
			Kind:       a.Kind,
			SourcePath: a.SourcePath,
			DestPath:   a.DestPath,
			Size:       a.Size,
			Reason:     a.Reason,
		})
	}
	return out
}
