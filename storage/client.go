// Package storage wraps the AWS SDK v2 S3 client into the typed put/get/
// delete/list/presign/pushdown surface the receipt engine's components
// build on, with construction aimed at S3-compatible backends (AWS S3,
// MinIO, and similar) reachable through a custom endpoint.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/voltcharge/receiptengine/receipterrors"
)

// sharedHTTPClient provides connection pooling across every request the
// client issues.
var sharedHTTPClient = &http.Client{
	Timeout: 60 * time.Second,
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     90 * time.Second,
	},
}

// Options configures Client construction.
type Options struct {
	Bucket    string
	Region    string
	Endpoint  string // optional; set for MinIO or another S3-compatible backend
	AccessKey string
	SecretKey string
	// UsePathStyle is required by most S3-compatible backends other than AWS.
	UsePathStyle bool
}

// Client is the object-store wrapper every core component depends on.
// It is safe for concurrent use, matching the AWS SDK v2 client it wraps.
type Client struct {
	api    S3Client
	bucket string
}

// NewClient constructs a Client from Options, resolving a custom endpoint
// when one is supplied so the same code path serves AWS S3 and an
// S3-compatible backend such as MinIO.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("storage: bucket is required: %w", receipterrors.ErrConfig)
	}

	region := opts.Region
	if region == "" {
		region = "us-east-1"
	}

	cfgOpts := []func(*config.LoadOptions) error{
		config.WithRegion(region),
	}
	if opts.AccessKey != "" || opts.SecretKey != "" {
		cfgOpts = append(cfgOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")))
	}
	if opts.Endpoint != "" {
		endpoint := opts.Endpoint
		cfgOpts = append(cfgOpts, config.WithEndpointResolverWithOptions(aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				return aws.Endpoint{
					URL:               endpoint,
					SigningRegion:     region,
					HostnameImmutable: true,
				}, nil
			})))
	}

	cfg, err := config.LoadDefaultConfig(ctx, cfgOpts...)
	if err != nil {
		return nil, fmt.Errorf("storage: failed to load configuration: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = opts.UsePathStyle
		o.HTTPClient = sharedHTTPClient
	})

	return &Client{api: client, bucket: opts.Bucket}, nil
}

// NewClientWithAPI wraps an already-constructed S3Client (typically the
// in-memory MockS3Client) for tests that don't want real network I/O.
func NewClientWithAPI(api S3Client, bucket string) *Client {
	return &Client{api: api, bucket: bucket}
}

// Bucket returns the bucket this client was constructed for.
func (c *Client) Bucket() string {
	return c.bucket
}

// API exposes the underlying S3Client, e.g. for the presign and pushdown
// wrappers that need direct access to operations Client doesn't surface.
func (c *Client) API() S3Client {
	return c.api
}

// ioKind classifies a request failure for the error taxonomy: caller
// cancellation and deadline expiry surface as cancellation, everything
// else as a storage failure.
func ioKind(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return receipterrors.ErrCancelled
	}
	return receipterrors.ErrStorage
}

// Put uploads body at key with the given content type.
func (c *Client) Put(ctx context.Context, key string, body []byte, contentType string) error {
	_, err := c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("storage: put %s failed: %w", key, errors.Join(err, ioKind(err)))
	}
	return nil
}

// Upload uploads body at key through the SDK's transfer manager, which
// switches to concurrent multipart upload when body exceeds the part size.
// The write pipeline uses this for PDF documents, the largest artifact a
// transaction stores.
func (c *Client) Upload(ctx context.Context, key string, body []byte, contentType string) error {
	uploader := manager.NewUploader(c.api)
	_, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("storage: upload %s failed: %w", key, errors.Join(err, ioKind(err)))
	}
	return nil
}

// Get retrieves the full contents of key. A missing object surfaces
// receipterrors.ErrNotFound.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, fmt.Errorf("storage: object %s not found: %w", key, receipterrors.ErrNotFound)
		}
		return nil, fmt.Errorf("storage: get %s failed: %w", key, errors.Join(err, ioKind(err)))
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("storage: read body for %s failed: %w", key, errors.Join(err, ioKind(err)))
	}
	return data, nil
}

// Delete removes key. A missing object is not an error: delete is
// idempotent, matching the rollback manager's best-effort semantics.
func (c *Client) Delete(ctx context.Context, key string) error {
	_, err := c.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("storage: delete %s failed: %w", key, errors.Join(err, ioKind(err)))
	}
	return nil
}

// List returns every object key under prefix.
func (c *Client) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	var token *string

	for {
		out, err := c.api.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(c.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("storage: list %s failed: %w", prefix, errors.Join(err, ioKind(err)))
		}
		for _, obj := range out.Contents {
			if obj.Key != nil {
				keys = append(keys, *obj.Key)
			}
		}
		if out.IsTruncated == nil || !*out.IsTruncated || out.NextContinuationToken == nil {
			break
		}
		token = out.NextContinuationToken
	}
	return keys, nil
}
