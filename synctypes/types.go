// Package synctypes provides the shared option, progress and report types of
// the treesync module.
package synctypes

import (
	"log/slog"
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/treesync/tree"
)

// DefaultConcurrency is the number of actions executed in parallel when no
// limit is configured.
const DefaultConcurrency = 4

// ProgressTracker receives progress notifications while a plan executes.
// Calls may arrive from several worker goroutines.
type ProgressTracker interface {
	// Update is called after every completed action with the number of
	// actions completed so far and the number planned.
	Update(completed, total int64)

	// Complete is called once when every planned action has completed
	Complete()

	// Error is called once when execution stops early
	Error(err error)
}

// Comparator decides whether a source entry must be copied over the
// destination entry at the mapped path.
type Comparator interface {
	// HasChanged reports whether dst differs from src
	HasChanged(src, dst tree.Entry) bool
}

// ActionKind names the kind of a planned action.
type ActionKind string

const (
	// ActionTransfer copies a source entry to the destination.
	ActionTransfer ActionKind = "transfer"

	// ActionDelete removes an extraneous destination entry.
	ActionDelete ActionKind = "delete"
)

// PlannedAction is the public view of one planned action.
type PlannedAction struct {
	// Kind is transfer or delete
	Kind ActionKind

	// SourcePath is the path relative to the source root; empty for deletes
	SourcePath string

	// DestPath is the path in the destination tree's namespace
	DestPath string

	// Size is the number of bytes a transfer moves
	Size uint64

	// Reason explains why the action was planned
	Reason string
}

// Report summarizes a sync or copy invocation.
//
// A report is returned alongside an error whenever planning succeeded, so the
// counts always describe what was actually applied.
type Report struct {
	// Transferred is the number of completed transfers
	Transferred int

	// Deleted is the number of completed deletions
	Deleted int

	// Skipped is the number of source entries already up to date
	Skipped int

	// BytesTransferred is the payload size of the completed transfers
	BytesTransferred int64

	// Planned lists every planned action in execution order
	Planned []PlannedAction

	// Duration is the wall time of the invocation
	Duration time.Duration

	// DryRun is set when the plan was computed but not applied
	DryRun bool
}

// ClientConfig holds configuration for a treesync client.
type ClientConfig struct {
	Logger      *slog.Logger
	Concurrency int
}

// SyncOptionConfig holds configuration for a single sync or copy invocation.
type SyncOptionConfig struct {
	DryRun          bool
	ExcludePatterns []string
	IncludePatterns []string
	ProgressTracker ProgressTracker
	Concurrency     int
	Comparator      Comparator
	DeleteExtra     bool
}

type (
	// Option is a functional option for configuring a treesync client.
	Option func(*ClientConfig)
	// SyncOption is a functional option for configuring a sync or copy invocation.
	SyncOption func(*SyncOptionConfig)
)
