// Package receiptstore serves stored receipt PDFs: full-object fetch,
// base64 fetch for JSON transports, and presigned download URLs. It is the
// read path external handlers use directly, independent of the query
// engine.
package receiptstore

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/voltcharge/receiptengine/common"
	"github.com/voltcharge/receiptengine/receipterrors"
	"github.com/voltcharge/receiptengine/storage"
)

// Facade exposes the PDF read operations over the object-store client and
// an optional presigner.
type Facade struct {
	client  *storage.Client
	presign storage.Presigner
	log     *logrus.Logger
}

// NewFacade builds a facade over client. presign may be nil when the
// deployment never issues download URLs; GetSignedPDFURL then fails with a
// config error instead of panicking.
func NewFacade(client *storage.Client, presign storage.Presigner) *Facade {
	return &Facade{
		client:  client,
		presign: presign,
		log:     common.Logger,
	}
}

// GetPDF returns the full PDF bytes stored at key. A missing object
// surfaces receipterrors.ErrNotFound.
func (f *Facade) GetPDF(ctx context.Context, key string) ([]byte, error) {
	data, err := f.client.Get(ctx, key)
	if err != nil {
		f.log.WithFields(logrus.Fields{
			"operation": "get_pdf",
			"key":       key,
			"error":     err.Error(),
		}).Warn("receiptstore: pdf fetch failed")
		return nil, fmt.Errorf("receiptstore: get pdf %s: %w", key, err)
	}
	return data, nil
}

// GetPDFBase64 returns the PDF at key encoded as standard base64.
func (f *Facade) GetPDFBase64(ctx context.Context, key string) (string, error) {
	data, err := f.GetPDF(ctx, key)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// GetSignedPDFURL issues a presigned GET URL for key, valid for ttl
// (DefaultPresignTTL when ttl <= 0). The object's existence is not
// verified: a URL over a missing key is valid and 404s when fetched.
func (f *Facade) GetSignedPDFURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if f.presign == nil {
		return "", fmt.Errorf("receiptstore: no presigner configured: %w", receipterrors.ErrConfig)
	}
	url, err := f.presign.PresignGetObject(ctx, f.client.Bucket(), key, ttl)
	if err != nil {
		f.log.WithFields(logrus.Fields{
			"operation": "presign_pdf",
			"key":       key,
			"error":     err.Error(),
		}).Warn("receiptstore: presign failed")
		return "", fmt.Errorf("receiptstore: presign %s: %w", key, err)
	}
	return url, nil
}
