// Package scanner builds the snapshots the planner diffs.
//
// The scanner is the one place listing results are filtered: include and
// exclude patterns are applied identically to the source and destination
// snapshot, so an excluded destination file is never considered extraneous.
package scanner

import (
	"context"
	"log/slog"

	"github.com/dustin/go-humanize"

	"github.com/input-output-hk/catalyst-forge-libs/treesync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/tree"
)

// Scanner lists trees into snapshots.
type Scanner struct {
	patterns *PatternMatcher
	logger   *slog.Logger
}

// NewScanner creates a scanner applying the given patterns. Invalid patterns
// are a configuration failure.
func NewScanner(include, exclude []string, logger *slog.Logger) (*Scanner, error) {
	pm, err := NewPatternMatcher(include, exclude)
	if err != nil {
		return nil, errors.New("scan", errors.ErrConfig, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{patterns: pm, logger: logger}, nil
}

// Build lists t under root and filters the result. An entry at root itself is
// never filtered: a root naming a single file was chosen explicitly.
// Cancellation and configuration failures pass through unchanged; every other
// listing failure is wrapped as an I/O failure, still matching its original kind.
func (s *Scanner) Build(ctx context.Context, t tree.Tree, root string) (*tree.Snapshot, error) {
	snap, err := t.List(ctx, root)
	if err != nil {
		if errors.IsCancelled(err) || errors.IsConfig(err) {
			return nil, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, errors.NewCancelledError("scan", ctxErr).WithTree(t.String()).WithPath(root)
		}
		return nil, errors.NewIOError("scan", err).WithTree(t.String()).WithPath(root)
	}

	if !s.patterns.Empty() {
		before := snap.Len()
		snap = snap.Filter(func(e tree.Entry) bool {
			return e.RelativePath == "" || s.patterns.ShouldIncludeFile(e.RelativePath)
		})
		s.logger.Debug("applied path filters", "tree", t.String(), "root", root,
			"kept", snap.Len(), "filtered", before-snap.Len())
	}

	s.logger.Debug("scanned tree", "tree", t.String(), "root", root,
		"entries", snap.Len(), "size", humanize.IBytes(snap.TotalSize()))
	return snap, nil
}
