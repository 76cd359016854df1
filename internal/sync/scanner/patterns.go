package scanner

import (
	"fmt"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// PatternMatcher handles pattern matching for file filtering.
//
// Patterns are doublestar globs matched against slash-separated relative
// paths. A pattern without a "/" also matches the final path element at any
// depth, and a pattern ending in "/" matches everything beneath that directory.
type PatternMatcher struct {
	include []string
	exclude []string
}

// NewPatternMatcher creates a matcher for the given patterns. The first
// invalid pattern is reported as a *PatternError.
func NewPatternMatcher(include, exclude []string) (*PatternMatcher, error) {
	var errs []error
	errs = append(errs, ValidatePatterns("include", include)...)
	errs = append(errs, ValidatePatterns("exclude", exclude)...)
	if len(errs) > 0 {
		return nil, errs[0]
	}
	return &PatternMatcher{include: include, exclude: exclude}, nil
}

// Empty reports whether the matcher accepts every path.
func (pm *PatternMatcher) Empty() bool {
	return pm == nil || (len(pm.include) == 0 && len(pm.exclude) == 0)
}

// ShouldIncludeFile determines if a file should be included. Excludes take
// precedence; with include patterns present a path must match at least one.
func (pm *PatternMatcher) ShouldIncludeFile(relPath string) bool {
	if pm.Empty() {
		return true
	}

	for _, pattern := range pm.exclude {
		if matchesPattern(relPath, pattern) {
			return false
		}
	}

	if len(pm.include) == 0 {
		return true
	}
	for _, pattern := range pm.include {
		if matchesPattern(relPath, pattern) {
			return true
		}
	}
	return false
}

func matchesPattern(relPath, pattern string) bool {
	if dir, ok := strings.CutSuffix(pattern, "/"); ok {
		pattern = dir + "/**"
	}

	if ok, _ := doublestar.Match(pattern, relPath); ok {
		return true
	}
	if !strings.Contains(pattern, "/") {
		ok, _ := doublestar.Match(pattern, path.Base(relPath))
		return ok
	}
	return false
}

// ValidatePatterns validates that the given patterns are syntactically correct.
func ValidatePatterns(kind string, patterns []string) []error {
	var errs []error
	for i, pattern := range patterns {
		if pattern == "" || !doublestar.ValidatePattern(pattern) {
			errs = append(errs, &PatternError{Kind: kind, Pattern: pattern, Index: i})
		}
	}
	return errs
}

// PatternError represents an error with a pattern.
type PatternError struct {
	Kind    string
	Pattern string
	Index   int
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("invalid %s pattern at index %d '%s'", e.Kind, e.Index, e.Pattern)
}
