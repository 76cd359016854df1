package testutil

import (
	"fmt"
	"math/rand"
	"path"
	"sort"
	"time"
)

// GeneratedFile is one file of a generated tree.
type GeneratedFile struct {
	Path    string
	Data    []byte
	ModTime time.Time
}

// TestDataGenerator provides utilities for generating test data.
type TestDataGenerator struct {
	rand *rand.Rand
	base time.Time
}

// NewTestDataGenerator creates a new test data generator with a seed.
func NewTestDataGenerator(seed int64) *TestDataGenerator {
	return &TestDataGenerator{
		rand: rand.New(rand.NewSource(seed)), //nolint:gosec // Test data generation doesn't need crypto rand
		base: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// GenerateRelativePaths generates count distinct relative paths of up to
// maxDepth directory levels.
func (g *TestDataGenerator) GenerateRelativePaths(count, maxDepth int) []string {
	seen := make(map[string]struct{}, count)
	paths := make([]string, 0, count)
	for i := 0; len(paths) < count; i++ {
		depth := g.rand.Intn(maxDepth + 1)
		parts := make([]string, 0, depth+1)
		for d := 0; d < depth; d++ {
			parts = append(parts, fmt.Sprintf("dir%d", g.rand.Intn(4)))
		}
		parts = append(parts, fmt.Sprintf("file-%d.dat", i))
		p := path.Join(parts...)
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// GenerateFiles generates count files with random contents of at most
// maxSize bytes and distinct, whole-second modification times.
func (g *TestDataGenerator) GenerateFiles(count, maxDepth, maxSize int) []GeneratedFile {
	paths := g.GenerateRelativePaths(count, maxDepth)
	files := make([]GeneratedFile, len(paths))
	for i, p := range paths {
		data := make([]byte, g.rand.Intn(maxSize+1))
		_, _ = g.rand.Read(data)
		files[i] = GeneratedFile{
			Path:    p,
			Data:    data,
			ModTime: g.base.Add(time.Duration(g.rand.Intn(1_000_000)) * time.Second),
		}
	}
	return files
}
