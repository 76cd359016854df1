// Package miniotree implements tree.Tree over a bucket of a MinIO or other
// S3-compatible server using the MinIO client.
//
// Key layout, root semantics and modification time metadata match the s3tree
// package, so either adapter can read a tree the other wrote.
package miniotree

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/minio/minio-go/v7"
	miniocreds "github.com/minio/minio-go/v7/pkg/credentials"
	"golang.org/x/sync/errgroup"

	"github.com/input-output-hk/catalyst-forge-libs/treesync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/internal/objectmeta"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/internal/pathmap"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/tree"
)

// DefaultConcurrency bounds StatObject calls issued while listing.
const DefaultConcurrency = 4

var (
	_ tree.Tree         = (*Tree)(nil)
	_ tree.BatchDeleter = (*Tree)(nil)
	_ API               = (*minio.Client)(nil)
)

// API is the subset of *minio.Client used by Tree.
type API interface {
	ListObjects(ctx context.Context, bucket string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	StatObject(ctx context.Context, bucket, key string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	GetObject(ctx context.Context, bucket, key string, opts minio.GetObjectOptions) (*minio.Object, error)
	PutObject(
		ctx context.Context,
		bucket, key string,
		reader io.Reader,
		size int64,
		opts minio.PutObjectOptions,
	) (minio.UploadInfo, error)
	RemoveObject(ctx context.Context, bucket, key string, opts minio.RemoveObjectOptions) error
	RemoveObjects(
		ctx context.Context,
		bucket string,
		objects <-chan minio.ObjectInfo,
		opts minio.RemoveObjectsOptions,
	) <-chan minio.RemoveObjectError
}

// ClientConfig holds the settings used to build a MinIO client.
type ClientConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Region          string
	Secure          bool
}

// NewClient creates a MinIO client with static credentials and path-style
// bucket lookup.
func NewClient(cfg ClientConfig) (*minio.Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.NewConfigError("client", "minio endpoint is required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:        miniocreds.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		Secure:       cfg.Secure,
		Region:       cfg.Region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, errors.New("client", errors.ErrConfig, err)
	}
	return client, nil
}

// Tree is one bucket of a MinIO server.
type Tree struct {
	client      API
	bucket      string
	concurrency int
	logger      *slog.Logger
}

// Option configures a Tree.
type Option func(*Tree)

// WithConcurrency bounds concurrent StatObject calls while listing.
func WithConcurrency(n int) Option {
	return func(t *Tree) {
		if n > 0 {
			t.concurrency = n
		}
	}
}

// WithLogger sets the logger used to report skipped keys.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tree) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// New creates a tree over bucket.
func New(client API, bucket string, opts ...Option) *Tree {
	t := &Tree{
		client:      client,
		bucket:      bucket,
		concurrency: DefaultConcurrency,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

type listed struct {
	key          string
	rel          string
	size         int64
	lastModified time.Time
}

// List enumerates every object under root, then stats each one for its
// recorded modification time.
func (t *Tree) List(ctx context.Context, root string) (*tree.Snapshot, error) {
	lctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var objects []listed
	for info := range t.client.ListObjects(lctx, t.bucket, minio.ListObjectsOptions{
		Prefix:    objectmeta.ListPrefix(root),
		Recursive: true,
	}) {
		if info.Err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, errors.NewCancelledError("list", ctxErr).WithTree(t.String()).WithPath(root)
			}
			return nil, t.classify("list", root, info.Err)
		}
		rel, ok := objectmeta.RelativeKey(root, info.Key)
		if !ok {
			continue
		}
		if !pathmap.Clean(rel) {
			t.logger.Warn("skipping key that is not a clean path", "bucket", t.bucket, "key", info.Key)
			continue
		}
		objects = append(objects, listed{
			key:          info.Key,
			rel:          rel,
			size:         info.Size,
			lastModified: info.LastModified,
		})
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.NewCancelledError("list", err).WithTree(t.String()).WithPath(root)
	}

	modTimes := make([]time.Time, len(objects))
	found := make([]bool, len(objects))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.concurrency)
	for i, obj := range objects {
		i, obj := i, obj
		g.Go(func() error {
			info, err := t.client.StatObject(gctx, t.bucket, obj.key, minio.StatObjectOptions{})
			if err != nil {
				err = t.classify("list", obj.key, err)
				if errors.IsNotFound(err) {
					return nil
				}
				return err
			}
			modTimes[i] = objectmeta.ResolveModTime(info.UserMetadata, obj.lastModified)
			found[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, errors.NewCancelledError("list", ctxErr).WithTree(t.String()).WithPath(root)
		}
		return nil, err
	}

	b := tree.NewBuilder(root)
	for i, obj := range objects {
		if !found[i] {
			continue
		}
		b.Add(tree.Entry{RelativePath: obj.rel, Size: uint64(max(obj.size, 0)), ModTime: modTimes[i]})
	}
	return b.Snapshot(), nil
}

// Read downloads the object at key.
func (t *Tree) Read(ctx context.Context, key string) ([]byte, error) {
	obj, err := t.client.GetObject(ctx, t.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, t.classify("read", key, err)
	}
	defer func() {
		_ = obj.Close()
	}()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, t.classify("read", key, err)
	}
	return data, nil
}

// Write uploads data to key with modTime recorded as user metadata.
func (t *Tree) Write(ctx context.Context, key string, data []byte, modTime time.Time) error {
	metadata, err := objectmeta.Prepare(key, modTime)
	if err != nil {
		return err
	}
	_, err = t.client.PutObject(
		ctx,
		t.bucket,
		key,
		bytes.NewReader(data),
		int64(len(data)),
		minio.PutObjectOptions{
			ContentType:  objectmeta.ContentType(key, data),
			UserMetadata: metadata,
		},
	)
	if err != nil {
		return t.classify("write", key, err)
	}
	return nil
}

// Delete removes the object at key. Deleting a missing key succeeds.
func (t *Tree) Delete(ctx context.Context, key string) error {
	if err := t.client.RemoveObject(ctx, t.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		err = t.classify("delete", key, err)
		if errors.IsNotFound(err) {
			return nil
		}
		return err
	}
	return nil
}

// DeleteBatch removes keys through the multi-object delete API. It returns
// the number of keys deleted and the first per-key failure.
func (t *Tree) DeleteBatch(ctx context.Context, keys []string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, errors.NewCancelledError("delete", err).WithTree(t.String())
	}

	objects := make(chan minio.ObjectInfo, len(keys))
	for _, k := range keys {
		objects <- minio.ObjectInfo{Key: k}
	}
	close(objects)

	failed := 0
	var first error
	for rerr := range t.client.RemoveObjects(ctx, t.bucket, objects, minio.RemoveObjectsOptions{}) {
		failed++
		if first == nil {
			first = t.classify("delete", rerr.ObjectName, rerr.Err)
		}
	}
	return len(keys) - failed, first
}

// Kind implements tree.Tree.
func (t *Tree) Kind() tree.Kind {
	return tree.KindObjectStore
}

// String implements tree.Tree.
func (t *Tree) String() string {
	return fmt.Sprintf("minio://%s", t.bucket)
}

// classify maps MinIO error responses to the error taxonomy.
func (t *Tree) classify(op, key string, err error) error {
	return Classify(op, err).WithTree(t.String()).WithPath(key)
}

// Classify maps a MinIO client error to the error taxonomy by its response code.
func Classify(op string, err error) *errors.Error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return errors.NewCancelledError(op, err)
	}
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NotFound":
		return errors.New(op, errors.ErrNotFound, err)
	case "NoSuchBucket":
		return errors.New(op, errors.ErrConfig, err).WithMessage("bucket does not exist")
	case "InvalidBucketName", "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return errors.New(op, errors.ErrConfig, err)
	}
	return errors.NewIOError(op, err)
}
