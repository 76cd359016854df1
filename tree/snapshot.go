package tree

import (
	"sort"
)

// Snapshot is an immutable point-in-time listing of a tree beneath a root.
type Snapshot struct {
	root    string
	entries map[string]Entry
}

// Root returns the root the snapshot was taken at.
func (s *Snapshot) Root() string {
	return s.root
}

// Get returns the entry at the relative path.
func (s *Snapshot) Get(rel string) (Entry, bool) {
	e, ok := s.entries[rel]
	return e, ok
}

// Len returns the number of entries.
func (s *Snapshot) Len() int {
	return len(s.entries)
}

// Range calls fn for every entry until fn returns false.
// Iteration order is unspecified.
func (s *Snapshot) Range(fn func(Entry) bool) {
	for _, e := range s.entries {
		if !fn(e) {
			return
		}
	}
}

// Paths returns the relative paths in lexical order.
func (s *Snapshot) Paths() []string {
	paths := make([]string, 0, len(s.entries))
	for p := range s.entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Entries returns the entries in lexical path order.
func (s *Snapshot) Entries() []Entry {
	paths := s.Paths()
	out := make([]Entry, len(paths))
	for i, p := range paths {
		out[i] = s.entries[p]
	}
	return out
}

// TotalSize returns the sum of all entry sizes.
func (s *Snapshot) TotalSize() uint64 {
	var total uint64
	for _, e := range s.entries {
		total += e.Size
	}
	return total
}

// Filter returns a new snapshot holding the entries for which keep returns true.
func (s *Snapshot) Filter(keep func(Entry) bool) *Snapshot {
	b := NewBuilder(s.root)
	for _, e := range s.entries {
		if keep(e) {
			b.Add(e)
		}
	}
	return b.Snapshot()
}

// Builder accumulates entries for a snapshot. It is not safe for concurrent use.
type Builder struct {
	root    string
	entries map[string]Entry
}

// NewBuilder starts a snapshot rooted at root.
func NewBuilder(root string) *Builder {
	return &Builder{
		root:    root,
		entries: make(map[string]Entry),
	}
}

// Add records e, replacing any entry at the same relative path.
func (b *Builder) Add(e Entry) {
	b.entries[e.RelativePath] = e
}

// Len returns the number of entries added so far.
func (b *Builder) Len() int {
	return len(b.entries)
}

// Snapshot seals the builder. The builder must not be used afterwards.
func (b *Builder) Snapshot() *Snapshot {
	s := &Snapshot{
		root:    b.root,
		entries: b.entries,
	}
	b.entries = nil
	return s
}

// Empty returns a snapshot with no entries.
func Empty(root string) *Snapshot {
	return NewBuilder(root).Snapshot()
}
