// Package receiptindex manages the date-partitioned NDJSON index and the
// best-effort compensating rollback used when a write transaction fails
// partway through.
package receiptindex

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/voltcharge/receiptengine/keys"
	"github.com/voltcharge/receiptengine/receipterrors"
	"github.com/voltcharge/receiptengine/storage"
)

// Manager reads and writes index part files for date partitions. Each write
// produces a fresh part file so concurrent writers on the same date never
// collide; there is no read-modify-write on a shared index object.
type Manager struct {
	client *storage.Client
}

// NewManager builds an index manager bound to client's bucket.
func NewManager(client *storage.Client) *Manager {
	return &Manager{client: client}
}

// BuildPrefix returns the index partition prefix for a payment date
// formatted YYYY-MM-DD.
func (m *Manager) BuildPrefix(date string) string {
	return keys.IndexPrefix(date)
}

// ListParts returns every valid part key under prefix, silently excluding
// any object under prefix that doesn't match the part-file shape.
func (m *Manager) ListParts(ctx context.Context, prefix string) ([]string, error) {
	all, err := m.client.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("receiptindex: list parts under %s: %w", prefix, err)
	}

	parts := make([]string, 0, len(all))
	for _, k := range all {
		if keys.IsPartKey(k) {
			parts = append(parts, k)
		}
	}
	return parts, nil
}

// ReadPart returns the decompressed NDJSON content of a part file. A
// missing part is not an error: it returns empty content, since a part
// that disappeared between list and read contributes nothing to the scan.
func (m *Manager) ReadPart(ctx context.Context, key string) (string, error) {
	raw, err := m.client.Get(ctx, key)
	if err != nil {
		if errors.Is(err, receipterrors.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("receiptindex: read part %s: %w", key, err)
	}

	gz, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("receiptindex: decompress part %s: %w", key, errors.Join(err, receipterrors.ErrStorage))
	}
	defer gz.Close()

	data, err := io.ReadAll(gz)
	if err != nil {
		return "", fmt.Errorf("receiptindex: decompress part %s: %w", key, errors.Join(err, receipterrors.ErrStorage))
	}
	return string(data), nil
}

// WritePart serializes record as a single line of NDJSON, gzip-compresses
// it, and PUTs it at a fresh part key under prefix. It returns the key.
func (m *Manager) WritePart(ctx context.Context, record []byte, prefix string) (string, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(record); err != nil {
		return "", fmt.Errorf("receiptindex: compress part: %w", errors.Join(err, receipterrors.ErrStorage))
	}
	if _, err := gz.Write([]byte("\n")); err != nil {
		return "", fmt.Errorf("receiptindex: compress part: %w", errors.Join(err, receipterrors.ErrStorage))
	}
	if err := gz.Close(); err != nil {
		return "", fmt.Errorf("receiptindex: compress part: %w", errors.Join(err, receipterrors.ErrStorage))
	}

	key := keys.PartKey(prefix)
	if err := m.client.Put(ctx, key, buf.Bytes(), "application/gzip"); err != nil {
		return "", fmt.Errorf("receiptindex: write part %s: %w", key, err)
	}
	return key, nil
}
