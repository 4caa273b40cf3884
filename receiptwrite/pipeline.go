// Package receiptwrite implements the transactional write pipeline: one
// Store call persists a receipt's PDF, its canonical metadata sidecar, and
// a fresh line in the date-partitioned index as a single logical unit,
// with best-effort compensating rollback when a later step fails.
package receiptwrite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/voltcharge/receiptengine/common"
	"github.com/voltcharge/receiptengine/keys"
	"github.com/voltcharge/receiptengine/money"
	"github.com/voltcharge/receiptengine/receipt"
	"github.com/voltcharge/receiptengine/receipterrors"
	"github.com/voltcharge/receiptengine/receiptindex"
	"github.com/voltcharge/receiptengine/receiptmetrics"
	"github.com/voltcharge/receiptengine/storage"
)

const dateLayout = "2006-01-02"

// Pipeline orchestrates the three-artifact write. It is safe for concurrent
// use: concurrent transactions for distinct session IDs never touch the
// same object, and same-date writers each produce their own index part.
type Pipeline struct {
	client   *storage.Client
	index    *receiptindex.Manager
	rollback *receiptindex.RollbackManager
	log      *logrus.Logger
	nowFunc  func() time.Time
}

// NewPipeline builds a write pipeline over client. index and rollback may
// be nil, in which case managers bound to the same client are constructed.
func NewPipeline(client *storage.Client, index *receiptindex.Manager, rollback *receiptindex.RollbackManager) *Pipeline {
	if index == nil {
		index = receiptindex.NewManager(client)
	}
	if rollback == nil {
		rollback = receiptindex.NewRollbackManager(client, nil)
	}
	return &Pipeline{
		client:   client,
		index:    index,
		rollback: rollback,
		log:      common.Logger,
		nowFunc:  time.Now,
	}
}

// Store persists pdfBytes and the record derived from partial as one
// logical unit. The PDF is uploaded first, then the metadata sidecar, then
// the index part; a failure at any step deletes whatever the transaction
// already PUT and surfaces the original error. The returned IndexKey is
// the freshly written part file.
//
// Retries are the caller's responsibility; a retried write that must stay
// unique needs a fresh session ID, since same-session writes are
// last-writer-wins for the PDF and sidecar and both index lines persist.
func (p *Pipeline) Store(ctx context.Context, pdfBytes []byte, partial receipt.PartialMetadata) (receipt.WriteResult, error) {
	start := p.nowFunc()

	record, err := p.buildRecord(partial)
	if err != nil {
		receiptmetrics.WriteDuration.WithLabelValues("validation_error").Observe(time.Since(start).Seconds())
		return receipt.WriteResult{}, err
	}

	if err := p.client.Upload(ctx, record.PDFKey, pdfBytes, "application/pdf"); err != nil {
		p.failed(start, "put_pdf", record.PDFKey, err)
		return receipt.WriteResult{}, fmt.Errorf("receiptwrite: store pdf for session %s: %w", record.SessionID, err)
	}

	sidecar, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		p.runRollback(ctx, record.PDFKey)
		p.failed(start, "encode_metadata", record.MetadataKey, err)
		return receipt.WriteResult{}, fmt.Errorf("receiptwrite: encode metadata for session %s: %w", record.SessionID, err)
	}
	if err := p.client.Put(ctx, record.MetadataKey, sidecar, "application/json"); err != nil {
		p.runRollback(ctx, record.PDFKey)
		p.failed(start, "put_metadata", record.MetadataKey, err)
		return receipt.WriteResult{}, fmt.Errorf("receiptwrite: store metadata for session %s: %w", record.SessionID, err)
	}

	line, err := json.Marshal(record)
	if err != nil {
		p.runRollback(ctx, record.PDFKey, record.MetadataKey)
		p.failed(start, "encode_index", "", err)
		return receipt.WriteResult{}, fmt.Errorf("receiptwrite: encode index line for session %s: %w", record.SessionID, err)
	}
	indexKey, err := p.index.WritePart(ctx, line, p.index.BuildPrefix(record.PaymentDate))
	if err != nil {
		p.runRollback(ctx, record.PDFKey, record.MetadataKey)
		p.failed(start, "put_index", record.PaymentDate, err)
		return receipt.WriteResult{}, fmt.Errorf("receiptwrite: store index line for session %s: %w", record.SessionID, err)
	}

	receiptmetrics.WriteDuration.WithLabelValues("success").Observe(time.Since(start).Seconds())
	p.log.WithFields(logrus.Fields{
		"session_id":   record.SessionID,
		"payment_date": record.PaymentDate,
		"index_key":    indexKey,
	}).Debug("receiptwrite: transaction committed")

	return receipt.WriteResult{
		PDFKey:      record.PDFKey,
		MetadataKey: record.MetadataKey,
		IndexKey:    indexKey,
	}, nil
}

// buildRecord validates partial and fills in every derived field. It runs
// before any PUT so a validation failure leaves the store untouched.
func (p *Pipeline) buildRecord(partial receipt.PartialMetadata) (receipt.Metadata, error) {
	if partial.SessionID == "" {
		return receipt.Metadata{}, receipterrors.NewFieldError("session_id", "must not be empty")
	}
	if _, err := time.Parse(dateLayout, partial.PaymentDate); err != nil {
		return receipt.Metadata{}, receipterrors.NewFieldError("payment_date",
			fmt.Sprintf("%q is not a valid YYYY-MM-DD date", partial.PaymentDate))
	}
	pence, err := money.Parse(partial.Amount)
	if err != nil {
		return receipt.Metadata{}, err
	}

	return receipt.Metadata{
		SessionID:     partial.SessionID,
		ConsumerID:    partial.ConsumerID,
		ReceiptNumber: partial.ReceiptNumber,
		PaymentDate:   partial.PaymentDate,
		CardLastFour:  partial.CardLastFour,
		Amount:        partial.Amount,
		AmountPence:   pence.ToMinor(),
		PDFKey:        keys.PDFKey(partial.SessionID),
		MetadataKey:   keys.MetadataKey(partial.SessionID),
		CreatedAt:     p.nowFunc().UTC().Format(time.RFC3339),
	}, nil
}

// runRollback deletes the listed keys in reverse insertion order. The
// caller's cancellation is stripped so a transaction aborted mid-flight
// still gets its completed PUTs cleaned up.
func (p *Pipeline) runRollback(ctx context.Context, staged ...string) {
	result := "clean"
	if !p.rollback.Rollback(context.WithoutCancel(ctx), staged) {
		result = "partial"
	}
	receiptmetrics.RollbackTotal.WithLabelValues(result).Inc()
}

// failed records the metric and the single structured failure line the
// pipeline emits per failed transaction.
func (p *Pipeline) failed(start time.Time, operation, key string, err error) {
	receiptmetrics.WriteDuration.WithLabelValues("storage_error").Observe(time.Since(start).Seconds())
	p.log.WithFields(logrus.Fields{
		"operation": operation,
		"key":       key,
		"error":     err.Error(),
	}).Error("receiptwrite: transaction failed")
}
