package s3tree

import (
	"bytes"
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awstypes "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"golang.org/x/sync/errgroup"

	"github.com/input-output-hk/catalyst-forge-libs/treesync/internal/objectmeta"
)

// Write uploads data to key, recording modTime as user metadata. Payloads of
// at least the chunk size are sent as a multipart upload.
func (t *Tree) Write(ctx context.Context, key string, data []byte, modTime time.Time) error {
	metadata, err := objectmeta.Prepare(key, modTime)
	if err != nil {
		return err
	}
	contentType := objectmeta.ContentType(key, data)

	if int64(len(data)) >= t.chunkSize {
		return t.writeMultipart(ctx, key, data, metadata, contentType)
	}

	_, err = t.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(t.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
		Metadata:      metadata,
	})
	if err != nil {
		return t.classify("write", key, err)
	}
	return nil
}

// writeMultipart uploads data in chunk-sized parts. A failed upload is
// aborted so no parts are left behind.
func (t *Tree) writeMultipart(
	ctx context.Context,
	key string,
	data []byte,
	metadata map[string]string,
	contentType string,
) error {
	created, err := t.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket:      aws.String(t.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
		Metadata:    metadata,
	})
	if err != nil {
		return t.classify("write", key, err)
	}
	uploadID := created.UploadId

	parts, err := t.uploadParts(ctx, key, uploadID, data)
	if err != nil {
		t.abort(ctx, key, uploadID)
		return err
	}

	_, err = t.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(t.bucket),
		Key:             aws.String(key),
		UploadId:        uploadID,
		MultipartUpload: &awstypes.CompletedMultipartUpload{Parts: parts},
	})
	if err != nil {
		t.abort(ctx, key, uploadID)
		return t.classify("write", key, err)
	}
	return nil
}

func (t *Tree) uploadParts(ctx context.Context, key string, uploadID *string, data []byte) ([]awstypes.CompletedPart, error) {
	numParts := partCount(int64(len(data)), t.chunkSize)
	parts := make([]awstypes.CompletedPart, numParts)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.concurrency)
	for i := 0; i < numParts; i++ {
		i := i
		start := int64(i) * t.chunkSize
		end := min(start+t.chunkSize, int64(len(data)))
		partNumber := aws.Int32(int32(i + 1))

		g.Go(func() error {
			out, err := t.client.UploadPart(gctx, &s3.UploadPartInput{
				Bucket:        aws.String(t.bucket),
				Key:           aws.String(key),
				UploadId:      uploadID,
				PartNumber:    partNumber,
				Body:          bytes.NewReader(data[start:end]),
				ContentLength: aws.Int64(end - start),
			})
			if err != nil {
				return t.classify("write", key, err)
			}
			parts[i] = awstypes.CompletedPart{
				ETag:       out.ETag,
				PartNumber: partNumber,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return parts, nil
}

// abort discards a multipart upload. It runs even when ctx is cancelled.
func (t *Tree) abort(ctx context.Context, key string, uploadID *string) {
	_, err := t.client.AbortMultipartUpload(context.WithoutCancel(ctx), &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(t.bucket),
		Key:      aws.String(key),
		UploadId: uploadID,
	})
	if err != nil {
		t.logger.Warn("abort multipart upload", "bucket", t.bucket, "key", key, "error", err)
	}
}

// partCount returns how many parts of partSize hold size bytes.
func partCount(size, partSize int64) int {
	if size == 0 {
		return 1
	}
	return int((size + partSize - 1) / partSize)
}
