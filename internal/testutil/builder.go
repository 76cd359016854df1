package testutil

import (
	"context"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// MockBuilder provides a fluent interface for building MockS3Client instances.
type MockBuilder struct {
	client *MockS3Client
}

// NewMockBuilder creates a new MockBuilder.
func NewMockBuilder() *MockBuilder {
	return &MockBuilder{
		client: &MockS3Client{},
	}
}

// Build returns the configured MockS3Client.
func (b *MockBuilder) Build() *MockS3Client {
	return b.client
}

// WithListPages serves pages in order, one per ListObjectsV2 call. Every page
// but the last is marked truncated with a continuation token.
func (b *MockBuilder) WithListPages(pages ...[]types.Object) *MockBuilder {
	call := 0
	b.client.ListObjectsV2Func = func(ctx context.Context, params *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
		if call >= len(pages) {
			return CreateListObjectsV2Output(nil, aws.ToString(params.Prefix), false), nil
		}
		page := pages[call]
		call++
		return CreateListObjectsV2Output(page, aws.ToString(params.Prefix), call < len(pages)), nil
	}
	return b
}

// WithHeadMetadata answers HeadObject from a key to user metadata table.
// Unknown keys report NotFound.
func (b *MockBuilder) WithHeadMetadata(metadata map[string]map[string]string) *MockBuilder {
	b.client.HeadObjectFunc = func(ctx context.Context, params *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
		md, ok := metadata[aws.ToString(params.Key)]
		if !ok {
			return nil, &types.NotFound{Message: aws.String("Not Found")}
		}
		return &s3.HeadObjectOutput{Metadata: md}, nil
	}
	return b
}

// WithSuccessfulUpload configures the mock to accept every PutObject.
func (b *MockBuilder) WithSuccessfulUpload() *MockBuilder {
	b.client.PutObjectFunc = func(ctx context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		if params.Body != nil {
			_, _ = io.Copy(io.Discard, params.Body)
		}
		return &s3.PutObjectOutput{
			ETag: aws.String(`"test-etag"`),
		}, nil
	}
	return b
}

// WithFailedUpload configures the mock to always return upload failures.
func (b *MockBuilder) WithFailedUpload(err error) *MockBuilder {
	b.client.PutObjectFunc = func(ctx context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return nil, err
	}
	return b
}

// WithObjectNotFound configures reads and heads to report a missing key.
func (b *MockBuilder) WithObjectNotFound() *MockBuilder {
	b.client.GetObjectFunc = func(ctx context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
		return nil, &types.NoSuchKey{Message: aws.String("The specified key does not exist.")}
	}
	b.client.HeadObjectFunc = func(ctx context.Context, params *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
		return nil, &types.NotFound{Message: aws.String("Not Found")}
	}
	return b
}

// WithAccessDenied configures every data operation to fail with AccessDenied.
func (b *MockBuilder) WithAccessDenied() *MockBuilder {
	denied := NewAPIError("AccessDenied", "Access Denied")

	b.client.PutObjectFunc = func(ctx context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return nil, denied
	}
	b.client.GetObjectFunc = func(ctx context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
		return nil, denied
	}
	b.client.DeleteObjectFunc = func(ctx context.Context, params *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
		return nil, denied
	}
	b.client.ListObjectsV2Func = func(ctx context.Context, params *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
		return nil, denied
	}

	return b
}
