package receiptindex

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/voltcharge/receiptengine/common"
	"github.com/voltcharge/receiptengine/storage"
)

// RollbackManager issues best-effort compensating deletes for keys that
// were successfully PUT during a now-failed write transaction.
type RollbackManager struct {
	client *storage.Client
	log    *logrus.Logger
}

// NewRollbackManager builds a rollback manager bound to client's bucket. A
// nil logger falls back to the package-wide default logger.
func NewRollbackManager(client *storage.Client, log *logrus.Logger) *RollbackManager {
	if log == nil {
		log = common.Logger
	}
	return &RollbackManager{client: client, log: log}
}

// Rollback deletes keys in reverse insertion order, logging but not
// aborting on individual delete failures. It reports true iff every
// delete succeeded; callers surface the original transaction error
// regardless of this result.
func (r *RollbackManager) Rollback(ctx context.Context, keys []string) bool {
	allOK := true
	for i := len(keys) - 1; i >= 0; i-- {
		key := keys[i]
		if err := r.client.Delete(ctx, key); err != nil {
			allOK = false
			r.log.WithFields(logrus.Fields{
				"key":   key,
				"error": err.Error(),
			}).Warn("receiptindex: rollback delete failed, continuing")
			continue
		}
		r.log.WithField("key", key).Debug("receiptindex: rollback delete succeeded")
	}
	return allOK
}
