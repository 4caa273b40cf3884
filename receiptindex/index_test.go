package receiptindex

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltcharge/receiptengine/storage"
)

func TestManagerWriteAndReadPart(t *testing.T) {
	mock := storage.NewMockS3Client()
	client := storage.NewClientWithAPI(mock, "receipts")
	mgr := NewManager(client)

	prefix := mgr.BuildPrefix("2026-07-15")
	assert.Equal(t, "index/dt=2026-07-15/", prefix)

	record := []byte(`{"session_id":"sess-1","amount_pence":1000}`)
	key, err := mgr.WritePart(context.Background(), record, prefix)
	require.NoError(t, err)
	assert.Contains(t, key, prefix)
	assert.Contains(t, key, "part-")
	assert.Contains(t, key, ".ndjson.gz")

	content, err := mgr.ReadPart(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, string(record)+"\n", content)
}

func TestManagerListPartsFiltersNonPartKeys(t *testing.T) {
	mock := storage.NewMockS3Client()
	client := storage.NewClientWithAPI(mock, "receipts")
	mgr := NewManager(client)

	prefix := mgr.BuildPrefix("2026-07-15")
	_, err := mgr.WritePart(context.Background(), []byte(`{"a":1}`), prefix)
	require.NoError(t, err)
	_, err = mgr.WritePart(context.Background(), []byte(`{"b":2}`), prefix)
	require.NoError(t, err)

	require.NoError(t, client.Put(context.Background(), prefix+"manifest.json", []byte("{}"), "application/json"))

	parts, err := mgr.ListParts(context.Background(), prefix)
	require.NoError(t, err)
	assert.Len(t, parts, 2)
}

func TestManagerWritesDoNotCollide(t *testing.T) {
	mock := storage.NewMockS3Client()
	client := storage.NewClientWithAPI(mock, "receipts")
	mgr := NewManager(client)

	prefix := mgr.BuildPrefix("2026-07-15")
	keyA, err := mgr.WritePart(context.Background(), []byte(`{"x":1}`), prefix)
	require.NoError(t, err)
	keyB, err := mgr.WritePart(context.Background(), []byte(`{"x":2}`), prefix)
	require.NoError(t, err)

	assert.NotEqual(t, keyA, keyB)

	parts, err := mgr.ListParts(context.Background(), prefix)
	require.NoError(t, err)
	assert.Len(t, parts, 2)
}

func TestManagerReadPartMissingReturnsEmpty(t *testing.T) {
	mock := storage.NewMockS3Client()
	client := storage.NewClientWithAPI(mock, "receipts")
	mgr := NewManager(client)

	content, err := mgr.ReadPart(context.Background(), "index/dt=2026-07-15/part-missing.ndjson.gz")
	require.NoError(t, err)
	assert.Equal(t, "", content)
}

func TestManagerReadPartStorageError(t *testing.T) {
	mock := storage.NewMockS3Client()
	mock.Err = errors.New("network blip")
	client := storage.NewClientWithAPI(mock, "receipts")
	mgr := NewManager(client)

	_, err := mgr.ReadPart(context.Background(), "index/dt=2026-07-15/part-x.ndjson.gz")
	require.Error(t, err)
}
