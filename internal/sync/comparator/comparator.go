// Package comparator provides the change detection strategies used by the
// planner.
//
// A comparator only ever sees listing metadata. Content is never read, so
// two entries with equal metadata are considered identical even if their
// bytes differ.
package comparator

import (
	"github.com/input-output-hk/catalyst-forge-libs/treesync/synctypes"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/tree"
)

var (
	_ synctypes.Comparator = (*MetadataComparator)(nil)
	_ synctypes.Comparator = (*SizeOnlyComparator)(nil)
)

// MetadataComparator is the default comparator. An entry is unchanged only
// when both sizes are equal and both modification times are known and equal
// to the nanosecond.
type MetadataComparator struct{}

// NewMetadataComparator creates the default comparator.
func NewMetadataComparator() *MetadataComparator {
	return &MetadataComparator{}
}

// HasChanged implements synctypes.Comparator.
func (c *MetadataComparator) HasChanged(src, dst tree.Entry) bool {
	return !src.SameMetadata(dst)
}

// SizeOnlyComparator only compares sizes. It suits destinations that cannot
// preserve modification times.
type SizeOnlyComparator struct{}

// NewSizeOnlyComparator creates a new size-only comparator.
func NewSizeOnlyComparator() *SizeOnlyComparator {
	return &SizeOnlyComparator{}
}

// HasChanged implements synctypes.Comparator.
func (c *SizeOnlyComparator) HasChanged(src, dst tree.Entry) bool {
	return src.Size != dst.Size
}

// Reason describes why src must be transferred over dst. exists reports
// whether dst is present at all.
func Reason(src, dst tree.Entry, exists bool) string {
	switch {
	case !exists:
		return "missing at destination"
	case src.Size != dst.Size:
		return "size differs"
	case src.ModTime.IsZero() || dst.ModTime.IsZero():
		return "modification time unknown"
	case !src.ModTime.Equal(dst.ModTime):
		return "modification time differs"
	default:
		return "changed"
	}
}
