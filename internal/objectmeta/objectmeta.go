// Package objectmeta encodes the metadata object-store trees attach to every
// object they write, and detects content types for uploads.
package objectmeta

import (
	"mime"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/input-output-hk/catalyst-forge-libs/treesync/internal/validation"
)

// MtimeKey is the user metadata key holding the source modification time.
const MtimeKey = "mtime"

// DefaultContentType is used when detection yields nothing more specific.
const DefaultContentType = "application/octet-stream"

// Encode returns the user metadata recording modTime. A zero modTime yields no
// metadata, so the object will later list with an unknown time.
func Encode(modTime time.Time) map[string]string {
	if modTime.IsZero() {
		return map[string]string{}
	}
	return map[string]string{
		MtimeKey: FormatTime(modTime),
	}
}

// Prepare checks key before an upload and returns the user metadata to store
// with it. An unusable key or metadata set is a configuration failure, caught
// before any request reaches the store.
func Prepare(key string, modTime time.Time) (map[string]string, error) {
	if err := validation.ValidateObjectKey(key); err != nil {
		return nil, err
	}
	metadata := Encode(modTime)
	if err := validation.ValidateMetadata(metadata); err != nil {
		return nil, err
	}
	return metadata, nil
}

// FormatTime renders t in UTC with nanosecond precision.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ModTime extracts the recorded modification time from user metadata.
// Metadata key case differs between providers, so the lookup ignores it.
func ModTime(metadata map[string]string) (time.Time, bool) {
	for k, v := range metadata {
		if !strings.EqualFold(k, MtimeKey) {
			continue
		}
		t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(v))
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
	return time.Time{}, false
}

// ResolveModTime prefers the recorded time and falls back to the store's
// LastModified value.
func ResolveModTime(metadata map[string]string, lastModified time.Time) time.Time {
	if t, ok := ModTime(metadata); ok {
		return t
	}
	return lastModified
}

// ContentType sniffs data and falls back to the extension of key when the
// content alone is not conclusive.
func ContentType(key string, data []byte) string {
	if len(data) > 0 {
		mt := mimetype.Detect(data)
		if !isGeneric(mt.String()) {
			return mt.String()
		}
	}

	if ext := strings.ToLower(path.Ext(key)); ext != "" {
		if byExt := mime.TypeByExtension(ext); byExt != "" {
			return byExt
		}
	}

	if len(data) > 0 {
		return mimetype.Detect(data).String()
	}
	return DefaultContentType
}

func isGeneric(contentType string) bool {
	return contentType == DefaultContentType || strings.HasPrefix(contentType, "text/plain")
}

// RelativeKey converts key into a path relative to prefix, treating prefix as
// a directory. ok is false when key lies outside the prefix.
//
// The empty prefix contains every key. A key equal to the prefix itself maps
// to the empty relative path. Directory marker keys ending in "/" are never
// entries.
func RelativeKey(prefix, key string) (string, bool) {
	if strings.HasSuffix(key, "/") {
		return "", false
	}
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		return key, key != ""
	}
	if key == prefix {
		return "", true
	}
	if strings.HasPrefix(key, prefix+"/") {
		return key[len(prefix)+1:], true
	}
	return "", false
}

// ListPrefix returns the prefix to send to a listing request for root so that
// both the object named root and objects beneath root/ are returned.
func ListPrefix(root string) string {
	return strings.TrimSuffix(root, "/")
}
