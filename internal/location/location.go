// Package location parses command-line locations into a tree kind and root.
//
// A location is either an object-store URI, s3://bucket/key/prefix, or a
// local path. Local paths are made absolute and slash separated.
package location

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/input-output-hk/catalyst-forge-libs/treesync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/fs"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/internal/validation"
)

// Scheme is the only object-store URI scheme understood. It addresses both
// the s3 and minio providers.
const Scheme = "s3"

const schemeSep = "://"

// Location is a parsed command-line location.
type Location struct {
	// Raw is the text the location was parsed from
	Raw string

	// Bucket is the bucket of a remote location; empty for local ones
	Bucket string

	// Root is the key prefix of a remote location or the absolute slash
	// separated path of a local one
	Root string

	// Dir reports whether Raw ended in a separator, naming a directory
	Dir bool
}

// Remote reports whether the location is in an object store.
func (l Location) Remote() bool {
	return l.Bucket != ""
}

// String formats the location canonically.
func (l Location) String() string {
	if l.Remote() {
		if l.Root == "" {
			return Scheme + schemeSep + l.Bucket
		}
		return Scheme + schemeSep + l.Bucket + "/" + l.Root
	}
	return l.Root
}

// Base returns the final element of the root.
func (l Location) Base() string {
	if l.Root == "" {
		return ""
	}
	return path.Base(l.Root)
}

// Child returns the location of name beneath l.
func (l Location) Child(name string) Location {
	out := l
	out.Dir = false
	switch {
	case l.Root == "":
		out.Root = name
	case strings.HasSuffix(l.Root, "/"):
		out.Root = l.Root + name
	default:
		out.Root = l.Root + "/" + name
	}
	out.Raw = out.String()
	return out
}

// Parse parses raw. A URI without a bucket, such as s3:///models, uses
// defaultBucket; it is a configuration failure when that is empty too.
func Parse(raw, defaultBucket string) (Location, error) {
	if raw == "" {
		return Location{}, errors.NewConfigError("parseLocation", "location cannot be empty")
	}

	scheme, rest, ok := strings.Cut(raw, schemeSep)
	if !ok {
		return parseLocal(raw)
	}
	if scheme != Scheme {
		return Location{}, errors.NewUnsupportedError("parseLocation", "unsupported scheme "+scheme).WithPath(raw)
	}

	bucket, key, _ := strings.Cut(rest, "/")
	if bucket == "" {
		bucket = defaultBucket
	}
	if bucket == "" {
		return Location{}, errors.NewConfigError("parseLocation", "no bucket in location and none configured").WithPath(raw)
	}
	if err := validation.ValidateBucketName(bucket); err != nil {
		return Location{}, err
	}

	dir := strings.HasSuffix(key, "/")
	key = strings.Trim(key, "/")
	if err := validation.ValidatePrefix(key); err != nil {
		return Location{}, err
	}

	return Location{Raw: raw, Bucket: bucket, Root: key, Dir: dir}, nil
}

func parseLocal(raw string) (Location, error) {
	dir := strings.HasSuffix(raw, "/") || strings.HasSuffix(raw, string(filepath.Separator))
	abs, err := fs.GetAbs(raw)
	if err != nil {
		return Location{}, errors.NewIOError("parseLocation", err).WithPath(raw)
	}
	return Location{Raw: raw, Root: filepath.ToSlash(abs), Dir: dir}, nil
}
