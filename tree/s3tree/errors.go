package s3tree

import (
	"context"

	"github.com/aws/smithy-go"

	"github.com/input-output-hk/catalyst-forge-libs/treesync/errors"
)

// classify wraps an SDK error in the error taxonomy.
func (t *Tree) classify(op, key string, err error) error {
	return Classify(op, err).WithTree(t.String()).WithPath(key)
}

// Classify maps an AWS SDK error to the error taxonomy by its API error code.
// Missing keys become ErrNotFound, a missing bucket becomes ErrConfig and
// context errors become ErrCancelled. Everything else is ErrIO.
func Classify(op string, err error) *errors.Error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return errors.NewCancelledError(op, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return errors.New(op, errors.ErrNotFound, err)
		case "NoSuchBucket":
			return errors.New(op, errors.ErrConfig, err).WithMessage("bucket does not exist")
		case "InvalidBucketName", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return errors.New(op, errors.ErrConfig, err)
		}
	}
	return errors.NewIOError(op, err)
}
