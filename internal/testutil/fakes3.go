package testutil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/input-output-hk/catalyst-forge-libs/treesync/internal/s3api"
)

var _ s3api.S3API = (*FakeS3)(nil)

// FakeS3 is an in-memory implementation of the S3API interface. It keeps
// objects, user metadata and multipart uploads per bucket, and honours
// ListObjectsV2 pagination, so it can stand in for a real store in tests of
// the sync engine.
type FakeS3 struct {
	mu      sync.Mutex
	buckets map[string]map[string]*fakeObject
	uploads map[string]*fakeUpload
	nextID  int
	calls   map[string]int

	// Now supplies LastModified values. Defaults to time.Now.
	Now func() time.Time

	// FailOn, when set, is consulted before every operation. A non-nil
	// return value is returned as the operation's error.
	FailOn func(op, key string) error
}

type fakeObject struct {
	data         []byte
	metadata     map[string]string
	contentType  string
	lastModified time.Time
}

type fakeUpload struct {
	bucket      string
	key         string
	metadata    map[string]string
	contentType string
	parts       map[int32][]byte
}

// NewFakeS3 creates a fake with the given buckets already created.
func NewFakeS3(buckets ...string) *FakeS3 {
	f := &FakeS3{
		buckets: make(map[string]map[string]*fakeObject),
		uploads: make(map[string]*fakeUpload),
		calls:   make(map[string]int),
		Now:     time.Now,
	}
	for _, b := range buckets {
		f.buckets[b] = make(map[string]*fakeObject)
	}
	return f
}

// NewAPIError returns a smithy API error carrying code, as the SDK does.
func NewAPIError(code, message string) error {
	return &smithy.GenericAPIError{Code: code, Message: message}
}

// Calls returns how many times op was invoked.
func (f *FakeS3) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// Object returns the data and user metadata stored at bucket/key.
func (f *FakeS3) Object(bucket, key string) ([]byte, map[string]string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.buckets[bucket][key]
	if !ok {
		return nil, nil, false
	}
	return bytes.Clone(obj.data), maps.Clone(obj.metadata), true
}

// ContentType returns the content type stored at bucket/key.
func (f *FakeS3) ContentType(bucket, key string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if obj, ok := f.buckets[bucket][key]; ok {
		return obj.contentType
	}
	return ""
}

// Keys returns the sorted keys stored in bucket.
func (f *FakeS3) Keys(bucket string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.buckets[bucket]))
	for k := range f.buckets[bucket] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// PendingUploads returns the number of multipart uploads neither completed nor aborted.
func (f *FakeS3) PendingUploads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.uploads)
}

// Seed stores an object directly, bypassing FailOn and call counting.
func (f *FakeS3) Seed(bucket, key string, data []byte, metadata map[string]string, lastModified time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.buckets[bucket] == nil {
		f.buckets[bucket] = make(map[string]*fakeObject)
	}
	f.buckets[bucket][key] = &fakeObject{
		data:         bytes.Clone(data),
		metadata:     maps.Clone(metadata),
		lastModified: lastModified,
	}
}

func (f *FakeS3) begin(op, key string) error {
	f.mu.Lock()
	f.calls[op]++
	fail := f.FailOn
	f.mu.Unlock()
	if fail != nil {
		return fail(op, key)
	}
	return nil
}

func (f *FakeS3) bucket(name string) (map[string]*fakeObject, error) {
	b, ok := f.buckets[name]
	if !ok {
		return nil, NewAPIError("NoSuchBucket", "The specified bucket does not exist")
	}
	return b, nil
}

// PutObject stores the request body.
func (f *FakeS3) PutObject(
	ctx context.Context,
	params *s3.PutObjectInput,
	_ ...func(*s3.Options),
) (*s3.PutObjectOutput, error) {
	key := aws.ToString(params.Key)
	if err := f.begin("PutObject", key); err != nil {
		return nil, err
	}

	var data []byte
	if params.Body != nil {
		var err error
		if data, err = io.ReadAll(params.Body); err != nil {
			return nil, err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	b, err := f.bucket(aws.ToString(params.Bucket))
	if err != nil {
		return nil, err
	}
	b[key] = &fakeObject{
		data:         data,
		metadata:     maps.Clone(params.Metadata),
		contentType:  aws.ToString(params.ContentType),
		lastModified: f.Now().UTC().Truncate(time.Second),
	}
	return &s3.PutObjectOutput{ETag: aws.String(CalculateETag(data))}, nil
}

// GetObject returns the stored object.
func (f *FakeS3) GetObject(
	ctx context.Context,
	params *s3.GetObjectInput,
	_ ...func(*s3.Options),
) (*s3.GetObjectOutput, error) {
	key := aws.ToString(params.Key)
	if err := f.begin("GetObject", key); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	b, err := f.bucket(aws.ToString(params.Bucket))
	if err != nil {
		return nil, err
	}
	obj, ok := b[key]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("The specified key does not exist.")}
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(bytes.Clone(obj.data))),
		ContentLength: aws.Int64(int64(len(obj.data))),
		ContentType:   aws.String(obj.contentType),
		LastModified:  aws.Time(obj.lastModified),
		Metadata:      maps.Clone(obj.metadata),
	}, nil
}

// HeadObject returns the stored object's metadata.
func (f *FakeS3) HeadObject(
	ctx context.Context,
	params *s3.HeadObjectInput,
	_ ...func(*s3.Options),
) (*s3.HeadObjectOutput, error) {
	key := aws.ToString(params.Key)
	if err := f.begin("HeadObject", key); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	b, err := f.bucket(aws.ToString(params.Bucket))
	if err != nil {
		return nil, err
	}
	obj, ok := b[key]
	if !ok {
		return nil, &types.NotFound{Message: aws.String("Not Found")}
	}
	return &s3.HeadObjectOutput{
		ContentLength: aws.Int64(int64(len(obj.data))),
		ContentType:   aws.String(obj.contentType),
		LastModified:  aws.Time(obj.lastModified),
		Metadata:      maps.Clone(obj.metadata),
	}, nil
}

// DeleteObject removes the object. Missing keys succeed, as on S3.
func (f *FakeS3) DeleteObject(
	ctx context.Context,
	params *s3.DeleteObjectInput,
	_ ...func(*s3.Options),
) (*s3.DeleteObjectOutput, error) {
	key := aws.ToString(params.Key)
	if err := f.begin("DeleteObject", key); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	b, err := f.bucket(aws.ToString(params.Bucket))
	if err != nil {
		return nil, err
	}
	delete(b, key)
	return &s3.DeleteObjectOutput{}, nil
}

// DeleteObjects removes every listed object. FailOn is consulted per key with
// op "DeleteObjects.Key"; failures are reported in the output's Errors.
func (f *FakeS3) DeleteObjects(
	ctx context.Context,
	params *s3.DeleteObjectsInput,
	_ ...func(*s3.Options),
) (*s3.DeleteObjectsOutput, error) {
	if err := f.begin("DeleteObjects", ""); err != nil {
		return nil, err
	}
	if params.Delete == nil {
		return nil, NewAPIError("MalformedXML", "missing Delete")
	}
	if len(params.Delete.Objects) > 1000 {
		return nil, NewAPIError("MalformedXML", "more than 1000 keys")
	}

	out := &s3.DeleteObjectsOutput{}
	for _, id := range params.Delete.Objects {
		key := aws.ToString(id.Key)

		f.mu.Lock()
		fail := f.FailOn
		f.mu.Unlock()
		if fail != nil {
			if err := fail("DeleteObjects.Key", key); err != nil {
				out.Errors = append(out.Errors, types.Error{
					Key:     aws.String(key),
					Code:    aws.String("InternalError"),
					Message: aws.String(err.Error()),
				})
				continue
			}
		}

		f.mu.Lock()
		b, err := f.bucket(aws.ToString(params.Bucket))
		if err != nil {
			f.mu.Unlock()
			return nil, err
		}
		delete(b, key)
		f.mu.Unlock()
		out.Deleted = append(out.Deleted, types.DeletedObject{Key: aws.String(key)})
	}
	return out, nil
}

// ListObjectsV2 lists keys in lexical order, honouring Prefix, MaxKeys,
// StartAfter and ContinuationToken.
func (f *FakeS3) ListObjectsV2(
	ctx context.Context,
	params *s3.ListObjectsV2Input,
	_ ...func(*s3.Options),
) (*s3.ListObjectsV2Output, error) {
	prefix := aws.ToString(params.Prefix)
	if err := f.begin("ListObjectsV2", prefix); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	b, err := f.bucket(aws.ToString(params.Bucket))
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(b))
	for k := range b {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	after := aws.ToString(params.StartAfter)
	if token := aws.ToString(params.ContinuationToken); token != "" {
		after = token
	}
	start := sort.SearchStrings(keys, after)
	if start < len(keys) && keys[start] == after {
		start++
	}

	maxKeys := int(aws.ToInt32(params.MaxKeys))
	if maxKeys <= 0 || maxKeys > 1000 {
		maxKeys = 1000
	}

	end := start + maxKeys
	truncated := end < len(keys)
	if !truncated {
		end = len(keys)
	}

	out := &s3.ListObjectsV2Output{
		Name:        params.Bucket,
		Prefix:      params.Prefix,
		MaxKeys:     aws.Int32(int32(maxKeys)),
		IsTruncated: aws.Bool(truncated),
		KeyCount:    aws.Int32(int32(end - start)),
	}
	for _, k := range keys[start:end] {
		obj := b[k]
		out.Contents = append(out.Contents, types.Object{
			Key:          aws.String(k),
			Size:         aws.Int64(int64(len(obj.data))),
			LastModified: aws.Time(obj.lastModified),
			ETag:         aws.String(CalculateETag(obj.data)),
		})
	}
	if truncated {
		out.NextContinuationToken = aws.String(keys[end-1])
	}
	return out, nil
}

// CreateMultipartUpload starts a multipart upload.
func (f *FakeS3) CreateMultipartUpload(
	ctx context.Context,
	params *s3.CreateMultipartUploadInput,
	_ ...func(*s3.Options),
) (*s3.CreateMultipartUploadOutput, error) {
	key := aws.ToString(params.Key)
	if err := f.begin("CreateMultipartUpload", key); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.bucket(aws.ToString(params.Bucket)); err != nil {
		return nil, err
	}
	f.nextID++
	id := fmt.Sprintf("upload-%d", f.nextID)
	f.uploads[id] = &fakeUpload{
		bucket:      aws.ToString(params.Bucket),
		key:         key,
		metadata:    maps.Clone(params.Metadata),
		contentType: aws.ToString(params.ContentType),
		parts:       make(map[int32][]byte),
	}
	return &s3.CreateMultipartUploadOutput{
		Bucket:   params.Bucket,
		Key:      params.Key,
		UploadId: aws.String(id),
	}, nil
}

// UploadPart stores one part of a multipart upload.
func (f *FakeS3) UploadPart(
	ctx context.Context,
	params *s3.UploadPartInput,
	_ ...func(*s3.Options),
) (*s3.UploadPartOutput, error) {
	key := aws.ToString(params.Key)
	if err := f.begin("UploadPart", key); err != nil {
		return nil, err
	}

	var data []byte
	if params.Body != nil {
		var err error
		if data, err = io.ReadAll(params.Body); err != nil {
			return nil, err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	up, ok := f.uploads[aws.ToString(params.UploadId)]
	if !ok {
		return nil, NewAPIError("NoSuchUpload", "The specified upload does not exist")
	}
	part := aws.ToInt32(params.PartNumber)
	up.parts[part] = data
	return &s3.UploadPartOutput{ETag: aws.String(CalculateETag(data))}, nil
}

// CompleteMultipartUpload assembles the listed parts into the final object.
func (f *FakeS3) CompleteMultipartUpload(
	ctx context.Context,
	params *s3.CompleteMultipartUploadInput,
	_ ...func(*s3.Options),
) (*s3.CompleteMultipartUploadOutput, error) {
	key := aws.ToString(params.Key)
	if err := f.begin("CompleteMultipartUpload", key); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	id := aws.ToString(params.UploadId)
	up, ok := f.uploads[id]
	if !ok {
		return nil, NewAPIError("NoSuchUpload", "The specified upload does not exist")
	}

	var buf bytes.Buffer
	if params.MultipartUpload != nil {
		for _, p := range params.MultipartUpload.Parts {
			data, ok := up.parts[aws.ToInt32(p.PartNumber)]
			if !ok {
				return nil, NewAPIError("InvalidPart", "part was not uploaded")
			}
			buf.Write(data)
		}
	}

	b, err := f.bucket(up.bucket)
	if err != nil {
		return nil, err
	}
	b[up.key] = &fakeObject{
		data:         buf.Bytes(),
		metadata:     up.metadata,
		contentType:  up.contentType,
		lastModified: f.Now().UTC().Truncate(time.Second),
	}
	delete(f.uploads, id)
	return &s3.CompleteMultipartUploadOutput{
		Bucket: aws.String(up.bucket),
		Key:    aws.String(up.key),
		ETag:   aws.String(CalculateETag(buf.Bytes())),
	}, nil
}

// AbortMultipartUpload discards a multipart upload.
func (f *FakeS3) AbortMultipartUpload(
	ctx context.Context,
	params *s3.AbortMultipartUploadInput,
	_ ...func(*s3.Options),
) (*s3.AbortMultipartUploadOutput, error) {
	if err := f.begin("AbortMultipartUpload", aws.ToString(params.Key)); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.uploads, aws.ToString(params.UploadId))
	return &s3.AbortMultipartUploadOutput{}, nil
}
