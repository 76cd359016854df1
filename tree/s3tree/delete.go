package s3tree

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awstypes "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/input-output-hk/catalyst-forge-libs/treesync/errors"
)

// DeleteBatch removes keys using DeleteObjects, at most 1000 keys per
// request, in order. It stops at the first request that fails or reports a
// per-key error and returns how many keys were deleted before that point.
func (t *Tree) DeleteBatch(ctx context.Context, keys []string) (int, error) {
	deleted := 0
	for _, batch := range splitIntoBatches(keys, maxBatchDelete) {
		if err := ctx.Err(); err != nil {
			return deleted, errors.NewCancelledError("delete", err).WithTree(t.String())
		}

		n, err := t.deleteBatchDirect(ctx, batch)
		deleted += n
		if err != nil {
			return deleted, err
		}
	}
	return deleted, nil
}

func (t *Tree) deleteBatchDirect(ctx context.Context, keys []string) (int, error) {
	ids := make([]awstypes.ObjectIdentifier, 0, len(keys))
	for _, key := range keys {
		ids = append(ids, awstypes.ObjectIdentifier{Key: aws.String(key)})
	}

	out, err := t.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(t.bucket),
		Delete: &awstypes.Delete{
			Objects: ids,
			Quiet:   aws.Bool(false),
		},
	})
	if err != nil {
		return 0, t.classify("delete", keys[0], err)
	}

	if len(out.Errors) > 0 {
		first := out.Errors[0]
		cause := fmt.Errorf("%s: %s", aws.ToString(first.Code), aws.ToString(first.Message))
		return len(out.Deleted), errors.NewIOError("delete", cause).
			WithTree(t.String()).
			WithPath(aws.ToString(first.Key))
	}
	return len(out.Deleted), nil
}

// splitIntoBatches splits a slice into batches of specified size.
func splitIntoBatches(keys []string, batchSize int) [][]string {
	batches := make([][]string, 0, (len(keys)+batchSize-1)/batchSize)
	for i := 0; i < len(keys); i += batchSize {
		end := min(i+batchSize, len(keys))
		batches = append(batches, keys[i:end])
	}
	return batches
}
