package testutil

import (
	"bytes"
	"crypto/md5" //nolint:gosec // ETags are MD5 by definition
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// GenerateRandomData generates deterministic pseudo-random bytes of the given size.
func GenerateRandomData(size int) []byte {
	data := make([]byte, size)
	r := rand.New(rand.NewSource(int64(size))) //nolint:gosec // test data only
	_, _ = r.Read(data)
	return data
}

// CalculateETag calculates the ETag for the given data.
// For simple uploads, this is the quoted MD5 hash.
func CalculateETag(data []byte) string {
	h := md5.Sum(data) //nolint:gosec // ETags are MD5 by definition
	return fmt.Sprintf(`"%x"`, h)
}

// CreateTestObject creates a listing entry for key.
func CreateTestObject(key string, size int64, lastModified time.Time) types.Object {
	return types.Object{
		Key:          aws.String(key),
		Size:         aws.Int64(size),
		LastModified: aws.Time(lastModified),
		ETag:         aws.String(CalculateETag([]byte(key))),
		StorageClass: types.ObjectStorageClassStandard,
	}
}

// CreateListObjectsV2Output creates a ListObjectsV2 page. A truncated page
// carries a continuation token naming its last key.
func CreateListObjectsV2Output(objects []types.Object, prefix string, truncated bool) *s3.ListObjectsV2Output {
	output := &s3.ListObjectsV2Output{
		Contents:    objects,
		KeyCount:    aws.Int32(int32(len(objects))),
		MaxKeys:     aws.Int32(1000),
		Name:        aws.String("test-bucket"),
		Prefix:      aws.String(prefix),
		IsTruncated: aws.Bool(truncated),
	}
	if truncated && len(objects) > 0 {
		output.NextContinuationToken = objects[len(objects)-1].Key
	}
	return output
}

// CreateGetObjectOutput creates a GetObject response serving data.
func CreateGetObjectOutput(data []byte, metadata map[string]string) *s3.GetObjectOutput {
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(data)),
		ContentLength: aws.Int64(int64(len(data))),
		ETag:          aws.String(CalculateETag(data)),
		LastModified:  aws.Time(time.Now()),
		Metadata:      metadata,
	}
}
