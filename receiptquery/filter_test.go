package receiptquery

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/voltcharge/receiptengine/common"
	"github.com/voltcharge/receiptengine/receipt"
)

func TestBuildSQLAllFilters(t *testing.T) {
	q := receipt.Query{
		ConsumerID: "c1",
		AmountMin:  common.Ptr(10.0),
		AmountMax:  common.Ptr(50.0),
	}
	sql := BuildSQL(q)
	assert.Equal(t,
		"SELECT * FROM s3object s WHERE s.consumer_id = 'c1' AND s.amount_pence >= 1000 AND s.amount_pence <= 5000",
		sql)
}

func TestBuildSQLNoFilters(t *testing.T) {
	assert.Equal(t, "SELECT * FROM s3object s", BuildSQL(receipt.Query{}))
}

func TestBuildSQLEqualityKeys(t *testing.T) {
	q := receipt.Query{
		SessionID:     "sess-1",
		CardLastFour:  "5555",
		ReceiptNumber: "EVC-2025-00001",
	}
	sql := BuildSQL(q)
	assert.Contains(t, sql, "s.session_id = 'sess-1'")
	assert.Contains(t, sql, "s.card_last_four = '5555'")
	assert.Contains(t, sql, "s.receipt_number = 'EVC-2025-00001'")
}

func TestBuildSQLEscapesQuotes(t *testing.T) {
	sql := BuildSQL(receipt.Query{ConsumerID: "o'brien"})
	assert.Contains(t, sql, "s.consumer_id = 'o''brien'")
}

func TestMatchesClientEquality(t *testing.T) {
	rec := receipt.Metadata{
		SessionID:    "sess-1",
		ConsumerID:   "c1",
		CardLastFour: "5555",
		AmountPence:  2550,
	}

	assert.True(t, MatchesClient(receipt.Query{ConsumerID: "c1"}, rec))
	assert.False(t, MatchesClient(receipt.Query{ConsumerID: "c2"}, rec))
	assert.True(t, MatchesClient(receipt.Query{CardLastFour: "5555"}, rec))
	assert.False(t, MatchesClient(receipt.Query{CardLastFour: "6666"}, rec))
	assert.True(t, MatchesClient(receipt.Query{}, rec))
}

func TestMatchesClientAmountBounds(t *testing.T) {
	rec := receipt.Metadata{SessionID: "s", AmountPence: 2500}

	assert.True(t, MatchesClient(receipt.Query{AmountMin: common.Ptr(20.0), AmountMax: common.Ptr(60.0)}, rec))
	assert.False(t, MatchesClient(receipt.Query{AmountMin: common.Ptr(30.0)}, rec))
	assert.False(t, MatchesClient(receipt.Query{AmountMax: common.Ptr(20.0)}, rec))
	// Inclusive bounds.
	assert.True(t, MatchesClient(receipt.Query{AmountMin: common.Ptr(25.0), AmountMax: common.Ptr(25.0)}, rec))
}

func TestMatchesClientLegacyRecordWithoutPence(t *testing.T) {
	// Records written before amount_pence existed carry only the display
	// amount; the predicate derives minor units on the fly.
	rec := receipt.Metadata{SessionID: "s", Amount: "£14.06"}

	assert.True(t, MatchesClient(receipt.Query{AmountMin: common.Ptr(14.0)}, rec))
	assert.False(t, MatchesClient(receipt.Query{AmountMin: common.Ptr(15.0)}, rec))
}
