package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// DefaultPresignTTL is used when a caller does not specify one.
const DefaultPresignTTL = 1 * time.Hour

// Presigner issues time-limited GET URLs for an object without verifying
// the object exists; a presigned URL over a missing key is valid and
// simply 404s when fetched.
type Presigner interface {
	PresignGetObject(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
}

// S3Presigner implements Presigner on the AWS SDK v2 presign client.
type S3Presigner struct {
	presign *s3.PresignClient
}

// NewS3Presigner builds a presigner from a concrete AWS SDK v2 client.
// Presigning requires request signing the mock double doesn't implement,
// so this is only constructed against the real client.
func NewS3Presigner(client *s3.Client) *S3Presigner {
	return &S3Presigner{presign: s3.NewPresignClient(client)}
}

// PresignGetObject returns a GET URL for key valid for ttl, with
// Content-Type pinned to application/pdf for receipt downloads.
func (p *S3Presigner) PresignGetObject(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultPresignTTL
	}
	req, err := p.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket:                     aws.String(bucket),
		Key:                        aws.String(key),
		ResponseContentType:        aws.String("application/pdf"),
		ResponseContentDisposition: aws.String("inline"),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("storage: presign %s failed: %w", key, err)
	}
	return req.URL, nil
}
