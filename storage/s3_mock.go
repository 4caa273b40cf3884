package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// ErrPushdownUnsupported is returned by every MockS3Client.SelectObjectContent
// call, so tests exercise the client-side fallback path the way an object
// store lacking S3 Select support would.
var ErrPushdownUnsupported = errors.New("storage: mock does not support pushdown")

// MockS3Client is a mock implementation of S3Client for testing
type MockS3Client struct {
	// Objects stores mock S3 objects with their content and metadata
	Objects map[string]*MockS3Object
	// Buckets stores the list of buckets
	Buckets map[string]bool
	// Error to return from operations
	Err error
	// Track function calls
	HeadBucketCalled          bool
	PutObjectCalled           bool
	CreateBucketCalled        bool
	ListObjectsV2Called       bool
	GetObjectCalled           bool
	HeadObjectCalled          bool
	DeleteObjectCalled        bool
	SelectObjectContentCalled bool
	// Store last call parameters
	LastBucket    string
	LastObjectKey string
	LastMetadata  map[string]string

	// multipart tracks in-flight multipart uploads by upload id
	multipart map[string]map[int32]string
}

// MockS3Object represents a mock S3 object with content and metadata
type MockS3Object struct {
	Key      string
	Content  string
	Metadata map[string]string
	Size     int64
}

// NewMockS3Client creates a new mock S3 client
func NewMockS3Client() *MockS3Client {
	return &MockS3Client{
		Objects: make(map[string]*MockS3Object),
		Buckets: make(map[string]bool),
	}
}

// HeadBucket mocks checking bucket existence
func (m *MockS3Client) HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	m.HeadBucketCalled = true
	if params.Bucket != nil {
		m.LastBucket = *params.Bucket
	}

	if m.Err != nil {
		return nil, m.Err
	}

	if params.Bucket != nil && m.Buckets[*params.Bucket] {
		return &s3.HeadBucketOutput{}, nil
	}

	return nil, &types.NoSuchBucket{}
}

// PutObject mocks uploading an object
func (m *MockS3Client) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	m.PutObjectCalled = true
	if params.Bucket != nil {
		m.LastBucket = *params.Bucket
	}
	if params.Key != nil {
		m.LastObjectKey = *params.Key
	}
	if params.Metadata != nil {
		m.LastMetadata = params.Metadata
	}

	if m.Err != nil {
		return nil, m.Err
	}

	// Read content from body if provided
	content := ""
	if params.Body != nil {
		data, err := io.ReadAll(params.Body)
		if err == nil {
			content = string(data)
		}
	}

	// Store the object
	if params.Key != nil {
		m.Objects[*params.Key] = &MockS3Object{
			Key:      *params.Key,
			Content:  content,
			Metadata: params.Metadata,
			Size:     int64(len(content)),
		}
	}

	return &s3.PutObjectOutput{}, nil
}

// CreateBucket mocks creating a bucket
func (m *MockS3Client) CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	m.CreateBucketCalled = true
	if params.Bucket != nil {
		m.LastBucket = *params.Bucket
	}

	if m.Err != nil {
		return nil, m.Err
	}

	if params.Bucket != nil {
		m.Buckets[*params.Bucket] = true
	}

	return &s3.CreateBucketOutput{}, nil
}

// ListObjectsV2 mocks listing objects
func (m *MockS3Client) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	m.ListObjectsV2Called = true
	if params.Bucket != nil {
		m.LastBucket = *params.Bucket
	}

	if m.Err != nil {
		return nil, m.Err
	}

	// Filter objects by prefix if provided
	var contents []types.Object
	prefix := ""
	if params.Prefix != nil {
		prefix = *params.Prefix
	}

	for key, obj := range m.Objects {
		if prefix == "" || strings.HasPrefix(key, prefix) {
			contents = append(contents, types.Object{
				Key:  aws.String(obj.Key),
				Size: aws.Int64(obj.Size),
			})
		}
	}

	return &s3.ListObjectsV2Output{
		Contents: contents,
	}, nil
}

// GetObject mocks retrieving an object
func (m *MockS3Client) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.GetObjectCalled = true
	if params.Bucket != nil {
		m.LastBucket = *params.Bucket
	}
	if params.Key != nil {
		m.LastObjectKey = *params.Key
	}

	if m.Err != nil {
		return nil, m.Err
	}

	if params.Key != nil {
		if obj, exists := m.Objects[*params.Key]; exists {
			return &s3.GetObjectOutput{
				Body:     io.NopCloser(strings.NewReader(obj.Content)),
				Metadata: obj.Metadata,
			}, nil
		}
		return nil, &types.NoSuchKey{}
	}

	return nil, &types.NoSuchKey{}
}

// HeadObject mocks retrieving object metadata
func (m *MockS3Client) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	m.HeadObjectCalled = true
	if params.Bucket != nil {
		m.LastBucket = *params.Bucket
	}
	if params.Key != nil {
		m.LastObjectKey = *params.Key
	}

	if m.Err != nil {
		return nil, m.Err
	}

	if params.Key != nil {
		if obj, exists := m.Objects[*params.Key]; exists {
			return &s3.HeadObjectOutput{
				Metadata:      obj.Metadata,
				ContentLength: aws.Int64(obj.Size),
			}, nil
		}
		return nil, &types.NoSuchKey{}
	}

	return nil, &types.NoSuchKey{}
}

// DeleteObject mocks removing an object. Deleting an absent key is not an
// error, matching real S3 semantics.
func (m *MockS3Client) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	m.DeleteObjectCalled = true
	if params.Bucket != nil {
		m.LastBucket = *params.Bucket
	}
	if params.Key != nil {
		m.LastObjectKey = *params.Key
	}

	if m.Err != nil {
		return nil, m.Err
	}

	if params.Key != nil {
		delete(m.Objects, *params.Key)
	}
	return &s3.DeleteObjectOutput{}, nil
}

// CreateMultipartUpload mocks starting a multipart upload.
func (m *MockS3Client) CreateMultipartUpload(ctx context.Context, params *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if m.multipart == nil {
		m.multipart = make(map[string]map[int32]string)
	}
	uploadID := "upload-" + *params.Key
	m.multipart[uploadID] = make(map[int32]string)
	return &s3.CreateMultipartUploadOutput{UploadId: aws.String(uploadID)}, nil
}

// UploadPart mocks uploading one part of a multipart upload.
func (m *MockS3Client) UploadPart(ctx context.Context, params *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	parts, ok := m.multipart[aws.ToString(params.UploadId)]
	if !ok {
		return nil, &types.NoSuchUpload{}
	}
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	parts[aws.ToInt32(params.PartNumber)] = string(data)
	etag := fmt.Sprintf("etag-%d", aws.ToInt32(params.PartNumber))
	return &s3.UploadPartOutput{ETag: aws.String(etag)}, nil
}

// CompleteMultipartUpload mocks assembling the uploaded parts into the
// final object.
func (m *MockS3Client) CompleteMultipartUpload(ctx context.Context, params *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	parts, ok := m.multipart[aws.ToString(params.UploadId)]
	if !ok {
		return nil, &types.NoSuchUpload{}
	}

	numbers := make([]int, 0, len(parts))
	for n := range parts {
		numbers = append(numbers, int(n))
	}
	sort.Ints(numbers)

	var content strings.Builder
	for _, n := range numbers {
		content.WriteString(parts[int32(n)])
	}
	delete(m.multipart, aws.ToString(params.UploadId))

	key := aws.ToString(params.Key)
	m.Objects[key] = &MockS3Object{
		Key:     key,
		Content: content.String(),
		Size:    int64(content.Len()),
	}
	return &s3.CompleteMultipartUploadOutput{Key: params.Key}, nil
}

// AbortMultipartUpload mocks discarding an in-flight multipart upload.
func (m *MockS3Client) AbortMultipartUpload(ctx context.Context, params *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	delete(m.multipart, aws.ToString(params.UploadId))
	return &s3.AbortMultipartUploadOutput{}, nil
}

// SelectObjectContent mocks S3 Select. MockS3Client exists to exercise
// Client's put/get/delete/list surface; pushdown queries are tested against
// the PushdownScanner interface with a hand-written fake instead, since
// faking the SDK's event stream here would not exercise anything real.
// This always reports pushdown as unavailable so callers exercising
// S3Client directly fall back to client-side filtering.
func (m *MockS3Client) SelectObjectContent(ctx context.Context, params *s3.SelectObjectContentInput, optFns ...func(*s3.Options)) (*s3.SelectObjectContentOutput, error) {
	m.SelectObjectContentCalled = true
	if params.Bucket != nil {
		m.LastBucket = *params.Bucket
	}
	if params.Key != nil {
		m.LastObjectKey = *params.Key
	}
	return nil, ErrPushdownUnsupported
}
