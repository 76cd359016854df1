package location

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/catalyst-forge-libs/treesync/errors"
)

func TestParse_Remote(t *testing.T) {
	tests := []struct {
		name          string
		raw           string
		defaultBucket string
		want          Location
	}{
		{
			name: "bucket and prefix",
			raw:  "s3://my-bucket/models/v1",
			want: Location{Raw: "s3://my-bucket/models/v1", Bucket: "my-bucket", Root: "models/v1"},
		},
		{
			name: "trailing slash marks a directory",
			raw:  "s3://my-bucket/models/",
			want: Location{Raw: "s3://my-bucket/models/", Bucket: "my-bucket", Root: "models", Dir: true},
		},
		{
			name: "bucket only",
			raw:  "s3://my-bucket",
			want: Location{Raw: "s3://my-bucket", Bucket: "my-bucket"},
		},
		{
			name:          "missing bucket uses the configured one",
			raw:           "s3:///data/file.bin",
			defaultBucket: "configured",
			want:          Location{Raw: "s3:///data/file.bin", Bucket: "configured", Root: "data/file.bin"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.raw, tt.defaultBucket)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, got.Remote())
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		is   error
	}{
		{"empty", "", errors.ErrConfig},
		{"no bucket anywhere", "s3:///key", errors.ErrConfig},
		{"invalid bucket", "s3://Not_Valid/key", errors.ErrConfig},
		{"traversal", "s3://my-bucket/a/../b", errors.ErrConfig},
		{"other scheme", "gs://my-bucket/key", errors.ErrUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.raw, "")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.is)
		})
	}
}

func TestParse_Local(t *testing.T) {
	loc, err := Parse("/var/data/", "bucket")
	require.NoError(t, err)
	assert.False(t, loc.Remote())
	assert.Equal(t, "/var/data", loc.Root)
	assert.True(t, loc.Dir)

	wd, err := os.Getwd()
	require.NoError(t, err)
	loc, err = Parse("rel/file.txt", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.ToSlash(filepath.Join(wd, "rel", "file.txt")), loc.Root)
	assert.False(t, loc.Dir)
}

func TestLocation_StringBaseChild(t *testing.T) {
	loc, err := Parse("s3://my-bucket/models/", "")
	require.NoError(t, err)
	assert.Equal(t, "s3://my-bucket/models", loc.String())
	assert.Equal(t, "models", loc.Base())

	child := loc.Child("w.bin")
	assert.Equal(t, "models/w.bin", child.Root)
	assert.Equal(t, "s3://my-bucket/models/w.bin", child.Raw)
	assert.False(t, child.Dir)

	root, err := Parse("s3://my-bucket", "")
	require.NoError(t, err)
	assert.Equal(t, "w.bin", root.Child("w.bin").Root)
	assert.Equal(t, "", root.Base())

	local, err := Parse("/tmp/", "")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x", local.Child("x").Root)
	assert.Equal(t, "/tmp", local.String())
}
