// Package pathmap translates paths between the namespaces of a source and a
// destination tree.
//
// Paths are always slash separated, whatever the host OS. A root is either a
// key prefix ("models/v1") or an absolute directory ("/data/models"); relative
// paths never start with a separator.
package pathmap

import "strings"

const sep = "/"

// Mapper performs prefix substitution between a source root and a destination root.
type Mapper struct {
	srcRoot string
	dstRoot string
}

// New creates a Mapper for the given roots.
func New(srcRoot, dstRoot string) *Mapper {
	return &Mapper{
		srcRoot: srcRoot,
		dstRoot: dstRoot,
	}
}

// SourceRoot returns the source root.
func (m *Mapper) SourceRoot() string { return m.srcRoot }

// DestRoot returns the destination root.
func (m *Mapper) DestRoot() string { return m.dstRoot }

// ToDest maps a relative path to its location in the destination tree.
func (m *Mapper) ToDest(rel string) string {
	return Join(m.dstRoot, rel)
}

// ToSource maps a relative path to its location in the source tree.
func (m *Mapper) ToSource(rel string) string {
	return Join(m.srcRoot, rel)
}

// ToSourceRelative is the inverse of ToDest. A path outside the destination
// root is returned unchanged minus its leading separator.
func (m *Mapper) ToSourceRelative(destPath string) string {
	if rel, ok := Relative(m.dstRoot, destPath); ok {
		return rel
	}
	return strings.TrimLeft(destPath, sep)
}

// Join joins root and rel with exactly one separator. An empty rel yields root.
// A leading separator on root is kept so absolute directories stay absolute.
func Join(root, rel string) string {
	rel = strings.Trim(rel, sep)
	base := trimRoot(root)
	switch {
	case rel == "":
		if base == "" && strings.HasPrefix(root, sep) {
			return sep
		}
		return base
	case base == "":
		if strings.HasPrefix(root, sep) {
			return sep + rel
		}
		return rel
	default:
		return base + sep + rel
	}
}

// Relative strips root from path. It reports false when path is not root
// itself or a descendant of root; "models/v10" is not under "models/v1".
func Relative(root, path string) (string, bool) {
	base := trimRoot(root)
	rooted := strings.HasPrefix(root, sep)

	candidate := path
	if rooted {
		if !strings.HasPrefix(candidate, sep) {
			return "", false
		}
		candidate = strings.TrimLeft(candidate, sep)
		base = strings.TrimLeft(base, sep)
	}

	if base == "" {
		return strings.Trim(candidate, sep), true
	}

	candidate = strings.TrimRight(candidate, sep)
	if candidate == base {
		return "", true
	}
	if strings.HasPrefix(candidate, base+sep) {
		return strings.TrimLeft(candidate[len(base)+1:], sep), true
	}
	return "", false
}

// Clean reports whether rel is a well-formed relative path: no leading
// separator, no empty, "." or ".." segments.
func Clean(rel string) bool {
	if rel == "" {
		return true
	}
	if strings.HasPrefix(rel, sep) {
		return false
	}
	for _, seg := range strings.Split(rel, sep) {
		if seg == "" || seg == "." || seg == ".." {
			return false
		}
	}
	return true
}

// trimRoot removes trailing separators from root. The filesystem root "/"
// becomes "".
func trimRoot(root string) string {
	return strings.TrimRight(root, sep)
}
