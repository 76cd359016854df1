package main

import (
	"bytes"
	"context"
	stderrors "errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/catalyst-forge-libs/treesync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/internal/config"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/internal/testutil"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/tree"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/tree/s3tree"
)

const bucket = "artifacts"

type harness struct {
	fake      *testutil.FakeS3
	dir       string
	configDir string
	out       bytes.Buffer
	logs      bytes.Buffer
	connects  int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		fake:      testutil.NewFakeS3(bucket),
		dir:       t.TempDir(),
		configDir: t.TempDir(),
	}
	t.Setenv("XDG_CONFIG_HOME", h.configDir)

	noColor := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = noColor })
	return h
}

func (h *harness) run(args ...string) error {
	a := newApp(&h.logs)
	a.connect = func(_ context.Context, _ *config.Config, logger *slog.Logger) (backend, error) {
		h.connects++
		return func(name string) tree.Tree {
			return s3tree.New(h.fake, name, s3tree.WithLogger(logger))
		}, nil
	}

	cmd := newRootCmd(a)
	h.out.Reset()
	cmd.SetOut(&h.out)
	cmd.SetErr(&h.logs)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(context.Background())
}

func (h *harness) write(t *testing.T, rel, content string) string {
	t.Helper()
	p := filepath.Join(h.dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestSyncCommand(t *testing.T) {
	h := newHarness(t)
	src := filepath.Join(h.dir, "site")
	h.write(t, "site/index.html", "<html>")
	h.write(t, "site/css/main.css", "body{}")
	h.fake.Seed(bucket, "site/stale.txt", []byte("old"), nil, time.Now())
	h.fake.Seed(bucket, "site/server.log", []byte("log"), nil, time.Now())

	require.NoError(t, h.run("sync", src, "s3://artifacts/site", "--delete", "--exclude", "*.log"))
	assert.Contains(t, h.out.String(), "transferred 2 (")
	assert.Contains(t, h.out.String(), "deleted 1")
	assert.Equal(t, []string{"site/css/main.css", "site/index.html", "site/server.log"}, h.fake.Keys(bucket))

	data, _, ok := h.fake.Object(bucket, "site/index.html")
	require.True(t, ok)
	assert.Equal(t, "<html>", string(data))

	// nothing left to do
	require.NoError(t, h.run("sync", src, "s3://artifacts/site", "--delete", "--exclude", "*.log"))
	assert.Contains(t, h.out.String(), "transferred 0 (")
	assert.Contains(t, h.out.String(), "skipped 2")
}

func TestSyncCommand_DryRun(t *testing.T) {
	h := newHarness(t)
	src := filepath.Join(h.dir, "site")
	h.write(t, "site/a.txt", "a")
	h.write(t, "site/b.txt", "bb")

	require.NoError(t, h.run("sync", "--dry-run", src, "s3://artifacts/site/"))
	out := h.out.String()
	assert.Contains(t, out, "transfer site/a.txt (missing at destination)")
	assert.Contains(t, out, "dry run: 2 to transfer (3 B), 0 to delete")
	assert.Empty(t, h.fake.Keys(bucket))
}

func TestSyncCommand_Rejected(t *testing.T) {
	h := newHarness(t)
	other := t.TempDir()

	err := h.run("sync", h.dir, other)
	require.Error(t, err)
	assert.True(t, errors.IsUnsupported(err))

	err = h.run("sync", "--watch", "s3://artifacts/site", h.dir)
	require.Error(t, err)
	assert.True(t, errors.IsUnsupported(err))

	err = h.run("sync", "gs://bucket/x", h.dir)
	require.Error(t, err)
	assert.True(t, errors.IsUnsupported(err))

	err = h.run("sync", h.dir)
	assert.Error(t, err)
}

func TestCopyCommand(t *testing.T) {
	h := newHarness(t)
	file := h.write(t, "report.pdf", "pdf")

	t.Run("file into directory", func(t *testing.T) {
		require.NoError(t, h.run("copy", file, "s3://artifacts/in/"))
		assert.Equal(t, []string{"in/report.pdf"}, h.fake.Keys(bucket))
	})

	t.Run("file to exact key", func(t *testing.T) {
		require.NoError(t, h.run("copy", file, "s3://artifacts/renamed.pdf"))
		_, _, ok := h.fake.Object(bucket, "renamed.pdf")
		assert.True(t, ok)
	})

	t.Run("directory needs recursive", func(t *testing.T) {
		err := h.run("copy", h.dir, "s3://artifacts/all")
		require.Error(t, err)
		assert.True(t, errors.IsUnsupported(err))
	})

	t.Run("recursive download", func(t *testing.T) {
		h.fake.Seed(bucket, "data/x.txt", []byte("x"), nil, time.Now())
		h.fake.Seed(bucket, "data/sub/y.txt", []byte("yy"), nil, time.Now())
		out := filepath.Join(h.dir, "out")

		require.NoError(t, h.run("copy", "-r", "s3://artifacts/data", out))
		got, err := os.ReadFile(filepath.Join(out, "sub", "y.txt"))
		require.NoError(t, err)
		assert.Equal(t, "yy", string(got))
		assert.FileExists(t, filepath.Join(out, "x.txt"))
	})

	t.Run("missing source", func(t *testing.T) {
		err := h.run("copy", filepath.Join(h.dir, "nope"), "s3://artifacts/x")
		require.Error(t, err)
		assert.True(t, errors.IsNotFound(err))
	})
}

func TestListCommand(t *testing.T) {
	h := newHarness(t)
	h.fake.Seed(bucket, "data/x.txt", []byte("x"), nil, time.Now())
	h.fake.Seed(bucket, "data/sub/y.txt", []byte("yy"), nil, time.Now())

	require.NoError(t, h.run("list", "s3://artifacts/data"))
	assert.Equal(t, "s3://artifacts/data/sub/y.txt\ns3://artifacts/data/x.txt\n", h.out.String())

	require.NoError(t, h.run("ls", "-l", "s3:///data", "--bucket", bucket))
	lines := strings.Split(strings.TrimSpace(h.out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "2 B")
	assert.True(t, strings.HasSuffix(lines[0], "s3://artifacts/data/sub/y.txt"))
	assert.Equal(t, "2 entries, 3 B", lines[2])

	err := h.run("list", "s3:///data")
	require.Error(t, err)
	assert.True(t, errors.IsConfig(err))

	h.write(t, "local/file.txt", "abc")
	require.NoError(t, h.run("list", filepath.Join(h.dir, "local")))
	assert.Equal(t, filepath.ToSlash(filepath.Join(h.dir, "local", "file.txt"))+"\n", h.out.String())
}

func TestRemoteConnectionIsShared(t *testing.T) {
	h := newHarness(t)
	h.fake.Seed(bucket, "a/x", []byte("x"), nil, time.Now())

	require.NoError(t, h.run("copy", "-r", "s3://artifacts/a", "s3://artifacts/b"))
	assert.Equal(t, 1, h.connects)
	assert.Equal(t, []string{"a/x", "b/x"}, h.fake.Keys(bucket))
}

func TestConfigCommands(t *testing.T) {
	h := newHarness(t)
	path := filepath.Join(h.configDir, "treesync", "config.yaml")

	require.NoError(t, h.run("config", "init", "--bucket", bucket))
	assert.Equal(t, "wrote "+path+"\n", h.out.String())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	err = h.run("config", "init")
	require.Error(t, err)
	assert.True(t, errors.IsConfig(err))
	require.NoError(t, h.run("config", "init", "--force", "--bucket", "other"))

	t.Setenv("TREESYNC_STORAGE_ACCESS_KEY_ID", "AKIAEXAMPLE")
	t.Setenv("TREESYNC_STORAGE_SECRET_ACCESS_KEY", "supersecret")
	require.NoError(t, h.run("config", "show"))
	out := h.out.String()
	assert.True(t, strings.HasPrefix(out, "# "+path+"\n"))
	assert.Contains(t, out, "bucket: other")
	assert.Contains(t, out, "access_key_id: AKIAEXAMPLE")
	assert.Contains(t, out, "********")
	assert.NotContains(t, out, "supersecret")

	err = h.run("config", "init", "--force", "--provider", "gcs")
	assert.True(t, errors.IsConfig(err))
}

func TestConfigFlagMustExist(t *testing.T) {
	h := newHarness(t)
	err := h.run("list", "--config", filepath.Join(h.dir, "missing.yaml"), h.dir)
	require.Error(t, err)
	assert.True(t, errors.IsConfig(err))
}

func TestVersionCommand(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.run("version"))
	assert.Equal(t, "treesync dev (unknown)\n", h.out.String())
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, 0},
		{"cancelled", errors.NewCancelledError("sync", context.Canceled), exitCancelled},
		{"bare context cancellation", context.Canceled, exitCancelled},
		{"transfer failure", errors.NewTransferError("transfer", "x", stderrors.New("boom")), exitFailure},
		{"usage error", stderrors.New("accepts 2 arg(s), received 1"), exitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestMinioEndpoint(t *testing.T) {
	tests := []struct {
		endpoint   string
		secure     bool
		wantHost   string
		wantSecure bool
	}{
		{"localhost:9000", true, "localhost:9000", true},
		{"localhost:9000", false, "localhost:9000", false},
		{"http://minio:9000/", true, "minio:9000", false},
		{"https://play.min.io", false, "play.min.io", true},
	}
	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			host, secure := minioEndpoint(tt.endpoint, tt.secure)
			assert.Equal(t, tt.wantHost, host)
			assert.Equal(t, tt.wantSecure, secure)
		})
	}
}

func TestNewLogger_NoColorOffTerminal(t *testing.T) {
	var buf bytes.Buffer
	level := new(slog.LevelVar)
	logger := newLogger(&buf, level)

	logger.Debug("hidden")
	logger.Info("shown", "n", 1)
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown n=1")
	assert.NotContains(t, buf.String(), "\x1b[")
}
