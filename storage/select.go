package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/voltcharge/receiptengine/receipterrors"
)

// PushdownScanner evaluates a SQL-like expression against one object's
// decompressed NDJSON contents and returns only the matching records,
// newline-delimited JSON. The event-stream plumbing this requires against
// the real SDK is isolated behind this interface so callers and tests
// never touch it directly.
type PushdownScanner interface {
	SelectNDJSON(ctx context.Context, key, sqlExpr string) ([]byte, error)
}

// S3PushdownScanner implements PushdownScanner via S3 Select
// (SelectObjectContent) against gzip-compressed NDJSON objects.
type S3PushdownScanner struct {
	client *Client
}

// NewS3PushdownScanner builds a pushdown scanner bound to client's bucket.
func NewS3PushdownScanner(client *Client) *S3PushdownScanner {
	return &S3PushdownScanner{client: client}
}

// SelectNDJSON runs sqlExpr against key via S3 Select, assuming key holds
// gzip-compressed newline-delimited JSON and requesting JSON-object output.
func (s *S3PushdownScanner) SelectNDJSON(ctx context.Context, key, sqlExpr string) ([]byte, error) {
	out, err := s.client.api.SelectObjectContent(ctx, &s3.SelectObjectContentInput{
		Bucket:         aws.String(s.client.bucket),
		Key:            aws.String(key),
		Expression:     aws.String(sqlExpr),
		ExpressionType: types.ExpressionTypeSql,
		InputSerialization: &types.InputSerialization{
			CompressionType: types.CompressionTypeGzip,
			JSON:            &types.JSONInput{Type: types.JSONTypeLines},
		},
		OutputSerialization: &types.OutputSerialization{
			JSON: &types.JSONOutput{},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("storage: pushdown select on %s failed: %w", key, errors.Join(err, receipterrors.ErrPushdown))
	}

	stream := out.GetStream()
	defer stream.Close()

	var buf bytes.Buffer
	for event := range stream.Events() {
		if rec, ok := event.(*types.SelectObjectContentEventStreamMemberRecords); ok {
			buf.Write(rec.Value.Payload)
		}
	}
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("storage: pushdown stream on %s failed: %w", key, errors.Join(err, receipterrors.ErrPushdown))
	}
	return buf.Bytes(), nil
}
