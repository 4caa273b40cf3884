package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltcharge/receiptengine/receipterrors"
)

func TestClientPutGet(t *testing.T) {
	mock := NewMockS3Client()
	client := NewClientWithAPI(mock, "receipts")

	err := client.Put(context.Background(), "pdfs/abc.pdf", []byte("%PDF-1.4"), "application/pdf")
	require.NoError(t, err)
	assert.True(t, mock.PutObjectCalled)
	assert.Equal(t, "receipts", mock.LastBucket)

	data, err := client.Get(context.Background(), "pdfs/abc.pdf")
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4"), data)
}

func TestClientGetNotFound(t *testing.T) {
	mock := NewMockS3Client()
	client := NewClientWithAPI(mock, "receipts")

	_, err := client.Get(context.Background(), "pdfs/missing.pdf")
	require.Error(t, err)
	assert.True(t, errors.Is(err, receipterrors.ErrNotFound))
}

func TestClientGetStorageError(t *testing.T) {
	mock := NewMockS3Client()
	mock.Err = errors.New("connection reset")
	client := NewClientWithAPI(mock, "receipts")

	_, err := client.Get(context.Background(), "pdfs/abc.pdf")
	require.Error(t, err)
	assert.True(t, errors.Is(err, receipterrors.ErrStorage))
	assert.False(t, errors.Is(err, receipterrors.ErrNotFound))
}

func TestClientDelete(t *testing.T) {
	mock := NewMockS3Client()
	client := NewClientWithAPI(mock, "receipts")

	require.NoError(t, client.Put(context.Background(), "pdfs/abc.pdf", []byte("x"), "application/pdf"))
	require.NoError(t, client.Delete(context.Background(), "pdfs/abc.pdf"))
	assert.True(t, mock.DeleteObjectCalled)

	_, err := client.Get(context.Background(), "pdfs/abc.pdf")
	assert.True(t, errors.Is(err, receipterrors.ErrNotFound))
}

func TestClientDeleteMissingIsNotError(t *testing.T) {
	mock := NewMockS3Client()
	client := NewClientWithAPI(mock, "receipts")

	err := client.Delete(context.Background(), "pdfs/never-existed.pdf")
	require.NoError(t, err)
}

func TestClientList(t *testing.T) {
	mock := NewMockS3Client()
	client := NewClientWithAPI(mock, "receipts")

	require.NoError(t, client.Put(context.Background(), "index/dt=2026-07-01/part-a.ndjson.gz", []byte("a"), "application/gzip"))
	require.NoError(t, client.Put(context.Background(), "index/dt=2026-07-01/part-b.ndjson.gz", []byte("b"), "application/gzip"))
	require.NoError(t, client.Put(context.Background(), "index/dt=2026-07-02/part-c.ndjson.gz", []byte("c"), "application/gzip"))

	keys, err := client.List(context.Background(), "index/dt=2026-07-01/")
	require.NoError(t, err)
	assert.Len(t, keys, 2)
}

func TestClientBucketAndAPI(t *testing.T) {
	mock := NewMockS3Client()
	client := NewClientWithAPI(mock, "receipts")

	assert.Equal(t, "receipts", client.Bucket())
	assert.Equal(t, mock, client.API())
}

func TestNewClientRejectsEmptyBucket(t *testing.T) {
	_, err := NewClient(context.Background(), Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, receipterrors.ErrConfig))
}
