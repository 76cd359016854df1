package s3tree

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/sync/errgroup"

	"github.com/input-output-hk/catalyst-forge-libs/treesync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/internal/objectmeta"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/internal/pathmap"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/tree"
)

// object is a listed key before its metadata has been resolved.
type object struct {
	key          string
	rel          string
	size         int64
	lastModified time.Time
}

// paginator walks every page of a ListObjectsV2 listing.
type paginator struct {
	t                 *Tree
	prefix            string
	continuationToken *string
	hasMorePages      bool
	firstPage         bool
}

func (t *Tree) paginate(prefix string) *paginator {
	return &paginator{t: t, prefix: prefix, firstPage: true}
}

// HasMorePages returns true if there are more pages to fetch.
func (p *paginator) HasMorePages() bool {
	return p.firstPage || p.hasMorePages
}

// NextPage fetches the next page of results.
func (p *paginator) NextPage(ctx context.Context) (*s3.ListObjectsV2Output, error) {
	input := &s3.ListObjectsV2Input{
		Bucket:  aws.String(p.t.bucket),
		MaxKeys: aws.Int32(maxPageSize),
	}
	if p.prefix != "" {
		input.Prefix = aws.String(p.prefix)
	}
	if !p.firstPage && p.continuationToken != nil {
		input.ContinuationToken = p.continuationToken
	}

	output, err := p.t.client.ListObjectsV2(ctx, input)
	if err != nil {
		return nil, err
	}

	p.firstPage = false
	p.hasMorePages = aws.ToBool(output.IsTruncated) && output.NextContinuationToken != nil
	p.continuationToken = output.NextContinuationToken
	return output, nil
}

// List enumerates every object under root. Modification times come from the
// recorded mtime metadata when present and from LastModified otherwise, which
// costs one HeadObject per key, issued with bounded concurrency.
//
// A prefix with no objects lists as an empty snapshot.
func (t *Tree) List(ctx context.Context, root string) (*tree.Snapshot, error) {
	objects, err := t.listObjects(ctx, root)
	if err != nil {
		return nil, err
	}

	modTimes := make([]time.Time, len(objects))
	found := make([]bool, len(objects))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.concurrency)
	for i, obj := range objects {
		i, obj := i, obj
		g.Go(func() error {
			out, err := t.client.HeadObject(gctx, &s3.HeadObjectInput{
				Bucket: aws.String(t.bucket),
				Key:    aws.String(obj.key),
			})
			if err != nil {
				err = t.classify("list", obj.key, err)
				if errors.IsNotFound(err) {
					t.logger.Debug("object vanished while listing", "bucket", t.bucket, "key", obj.key)
					return nil
				}
				return err
			}
			modTimes[i] = objectmeta.ResolveModTime(out.Metadata, obj.lastModified)
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
		size := obj.size
		if size < 0 {
			size = 0
		}
		b.Add(tree.Entry{
			RelativePath: obj.rel,
			Size:         uint64(size),
			ModTime:      modTimes[i],
		})
	}
	return b.Snapshot(), nil
}

// listObjects pages through every key under root, keeping those that map to a
// well-formed relative path.
func (t *Tree) listObjects(ctx context.Context, root string) ([]object, error) {
	var objects []object

	p := t.paginate(objectmeta.ListPrefix(root))
	for p.HasMorePages() {
		if err := ctx.Err(); err != nil {
			return nil, errors.NewCancelledError("list", err).WithTree(t.String()).WithPath(root)
		}

		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, t.classify("list", root, err)
		}

		for _, o := range page.Contents {
			key := aws.ToString(o.Key)
			rel, ok := objectmeta.RelativeKey(root, key)
			if !ok {
				continue
			}
			if !pathmap.Clean(rel) {
				t.logger.Warn("skipping key that is not a clean path", "bucket", t.bucket, "key", key)
				continue
			}
			objects = append(objects, object{
				key:          key,
				rel:          rel,
				size:         aws.ToInt64(o.Size),
				lastModified: aws.ToTime(o.LastModified),
			})
		}
	}
	return objects, nil
}
