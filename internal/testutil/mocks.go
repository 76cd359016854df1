// Package testutil provides test doubles for object stores and trees.
package testutil

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/input-output-hk/catalyst-forge-libs/treesync/internal/s3api"
)

// MockS3Client is a mock implementation of the S3API interface for testing.
// It allows customization of each S3 operation through function fields.
//
// Operations without a function field behave like an empty bucket: reads
// report NoSuchKey, listings are empty and writes succeed.
type MockS3Client struct {
	mu    sync.Mutex
	calls []string

	PutObjectFunc               func(context.Context, *s3.PutObjectInput, ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObjectFunc               func(context.Context, *s3.GetObjectInput, ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObjectFunc            func(context.Context, *s3.DeleteObjectInput, ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	DeleteObjectsFunc           func(context.Context, *s3.DeleteObjectsInput, ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
	ListObjectsV2Func           func(context.Context, *s3.ListObjectsV2Input, ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	HeadObjectFunc              func(context.Context, *s3.HeadObjectInput, ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	CreateMultipartUploadFunc   func(context.Context, *s3.CreateMultipartUploadInput, ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error)
	UploadPartFunc              func(context.Context, *s3.UploadPartInput, ...func(*s3.Options)) (*s3.UploadPartOutput, error)
	CompleteMultipartUploadFunc func(context.Context, *s3.CompleteMultipartUploadInput, ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error)
	AbortMultipartUploadFunc    func(context.Context, *s3.AbortMultipartUploadInput, ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error)
}

var _ s3api.S3API = (*MockS3Client)(nil)

// invoke records op and calls fn, or returns the empty-bucket fallback when
// fn is unset.
func invoke[I, O any](
	ctx context.Context,
	m *MockS3Client,
	op string,
	fn func(context.Context, I, ...func(*s3.Options)) (O, error),
	in I,
	optFns []func(*s3.Options),
	fallback func() (O, error),
) (O, error) {
	m.record(op)
	if fn != nil {
		return fn(ctx, in, optFns...)
	}
	return fallback()
}

func (m *MockS3Client) PutObject(
	ctx context.Context,
	in *s3.PutObjectInput,
	optFns ...func(*s3.Options),
) (*s3.PutObjectOutput, error) {
	return invoke(ctx, m, "PutObject", m.PutObjectFunc, in, optFns, func() (*s3.PutObjectOutput, error) {
		return &s3.PutObjectOutput{}, nil
	})
}

func (m *MockS3Client) GetObject(
	ctx context.Context,
	in *s3.GetObjectInput,
	optFns ...func(*s3.Options),
) (*s3.GetObjectOutput, error) {
	return invoke(ctx, m, "GetObject", m.GetObjectFunc, in, optFns, func() (*s3.GetObjectOutput, error) {
		return nil, &types.NoSuchKey{Message: aws.String("The specified key does not exist.")}
	})
}

func (m *MockS3Client) HeadObject(
	ctx context.Context,
	in *s3.HeadObjectInput,
	optFns ...func(*s3.Options),
) (*s3.HeadObjectOutput, error) {
	return invoke(ctx, m, "HeadObject", m.HeadObjectFunc, in, optFns, func() (*s3.HeadObjectOutput, error) {
		return nil, &types.NotFound{Message: aws.String("Not Found")}
	})
}

func (m *MockS3Client) ListObjectsV2(
	ctx context.Context,
	in *s3.ListObjectsV2Input,
	optFns ...func(*s3.Options),
) (*s3.ListObjectsV2Output, error) {
	return invoke(ctx, m, "ListObjectsV2", m.ListObjectsV2Func, in, optFns, func() (*s3.ListObjectsV2Output, error) {
		return &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}, nil
	})
}

func (m *MockS3Client) DeleteObject(
	ctx context.Context,
	in *s3.DeleteObjectInput,
	optFns ...func(*s3.Options),
) (*s3.DeleteObjectOutput, error) {
	return invoke(ctx, m, "DeleteObject", m.DeleteObjectFunc, in, optFns, func() (*s3.DeleteObjectOutput, error) {
		return &s3.DeleteObjectOutput{}, nil
	})
}

func (m *MockS3Client) DeleteObjects(
	ctx context.Context,
	in *s3.DeleteObjectsInput,
	optFns ...func(*s3.Options),
) (*s3.DeleteObjectsOutput, error) {
	return invoke(ctx, m, "DeleteObjects", m.DeleteObjectsFunc, in, optFns, func() (*s3.DeleteObjectsOutput, error) {
		return &s3.DeleteObjectsOutput{}, nil
	})
}

func (m *MockS3Client) CreateMultipartUpload(
	ctx context.Context,
	in *s3.CreateMultipartUploadInput,
	optFns ...func(*s3.Options),
) (*s3.CreateMultipartUploadOutput, error) {
	return invoke(ctx, m, "CreateMultipartUpload", m.CreateMultipartUploadFunc, in, optFns, func() (*s3.CreateMultipartUploadOutput, error) {
		return &s3.CreateMultipartUploadOutput{UploadId: aws.String("mock-upload")}, nil
	})
}

func (m *MockS3Client) UploadPart(
	ctx context.Context,
	in *s3.UploadPartInput,
	optFns ...func(*s3.Options),
) (*s3.UploadPartOutput, error) {
	return invoke(ctx, m, "UploadPart", m.UploadPartFunc, in, optFns, func() (*s3.UploadPartOutput, error) {
		return &s3.UploadPartOutput{}, nil
	})
}

func (m *MockS3Client) CompleteMultipartUpload(
	ctx context.Context,
	in *s3.CompleteMultipartUploadInput,
	optFns ...func(*s3.Options),
) (*s3.CompleteMultipartUploadOutput, error) {
	return invoke(ctx, m, "CompleteMultipartUpload", m.CompleteMultipartUploadFunc, in, optFns, func() (*s3.CompleteMultipartUploadOutput, error) {
		return &s3.CompleteMultipartUploadOutput{}, nil
	})
}

func (m *MockS3Client) AbortMultipartUpload(
	ctx context.Context,
	in *s3.AbortMultipartUploadInput,
	optFns ...func(*s3.Options),
) (*s3.AbortMultipartUploadOutput, error) {
	return invoke(ctx, m, "AbortMultipartUpload", m.AbortMultipartUploadFunc, in, optFns, func() (*s3.AbortMultipartUploadOutput, error) {
		return &s3.AbortMultipartUploadOutput{}, nil
	})
}

func (m *MockS3Client) record(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, op)
}

// Calls returns the operations invoked so far, in order.
func (m *MockS3Client) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}
