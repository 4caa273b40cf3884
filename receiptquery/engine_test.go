package receiptquery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltcharge/receiptengine/cache"
	"github.com/voltcharge/receiptengine/common"
	"github.com/voltcharge/receiptengine/money"
	"github.com/voltcharge/receiptengine/receipt"
	"github.com/voltcharge/receiptengine/receiptindex"
	"github.com/voltcharge/receiptengine/storage"
)

func newTestIndex(t *testing.T) *receiptindex.Manager {
	t.Helper()
	client := storage.NewClientWithAPI(storage.NewMockS3Client(), "receipts")
	return receiptindex.NewManager(client)
}

func newTestEngine(t *testing.T, index *receiptindex.Manager) *Engine {
	t.Helper()
	c, err := cache.New[[]receipt.Metadata](100, time.Minute)
	require.NoError(t, err)
	return NewEngine(index, nil, NewShardCache(c), 0)
}

func seedRecord(t *testing.T, index *receiptindex.Manager, m receipt.Metadata) {
	t.Helper()
	line, err := json.Marshal(m)
	require.NoError(t, err)
	_, err = index.WritePart(context.Background(), line, index.BuildPrefix(m.PaymentDate))
	require.NoError(t, err)
}

func testReceipt(sessionID, consumerID, date, card, amount string) receipt.Metadata {
	pence, _ := money.Parse(amount)
	return receipt.Metadata{
		SessionID:    sessionID,
		ConsumerID:   consumerID,
		PaymentDate:  date,
		CardLastFour: card,
		Amount:       amount,
		AmountPence:  pence.ToMinor(),
		PDFKey:       "pdfs/" + sessionID + ".pdf",
		MetadataKey:  "metadata/" + sessionID + ".json",
		CreatedAt:    date + "T12:00:00Z",
	}
}

func TestQuerySessionLookup(t *testing.T) {
	index := newTestIndex(t)
	seedRecord(t, index, testReceipt("sess-001", "c-alice", "2025-12-24", "5555", "£25.50"))
	engine := newTestEngine(t, index)

	result, err := engine.Query(context.Background(), receipt.Query{
		SessionID: "sess-001",
		DateFrom:  "2025-12-24",
		DateTo:    "2025-12-24",
	})
	require.NoError(t, err)

	require.Len(t, result.Records, 1)
	assert.Equal(t, "sess-001", result.Records[0].SessionID)
	assert.Equal(t, int64(2550), result.Records[0].AmountPence)
	assert.Equal(t, 1, result.TotalCount)
	assert.False(t, result.HasMore)
}

func TestQueryRequiredFieldGate(t *testing.T) {
	index := newTestIndex(t)
	seedRecord(t, index, testReceipt("sess-001", "c-alice", "2025-12-24", "5555", "£25.50"))
	engine := newTestEngine(t, index)

	result, err := engine.Query(context.Background(), receipt.Query{AmountMin: common.Ptr(10.0)})
	require.NoError(t, err)

	assert.Empty(t, result.Records)
	assert.Empty(t, result.ScannedDates)
	assert.Equal(t, 0, result.TotalCount)
	assert.Equal(t, DefaultLimit, result.PageSize)
	assert.False(t, result.HasMore)
}

func TestQueryCardFilterAcrossShard(t *testing.T) {
	index := newTestIndex(t)
	seedRecord(t, index, testReceipt("sess-1", "c1", "2025-12-24", "5555", "£10.00"))
	seedRecord(t, index, testReceipt("sess-2", "c2", "2025-12-24", "6666", "£11.00"))
	seedRecord(t, index, testReceipt("sess-3", "c3", "2025-12-24", "5555", "£12.00"))
	engine := newTestEngine(t, index)

	result, err := engine.Query(context.Background(), receipt.Query{
		CardLastFour: "5555",
		DateFrom:     "2025-12-24",
		DateTo:       "2025-12-24",
	})
	require.NoError(t, err)

	require.Len(t, result.Records, 2)
	for _, r := range result.Records {
		assert.Equal(t, "5555", r.CardLastFour)
	}
}

func TestQueryDateRange(t *testing.T) {
	index := newTestIndex(t)
	seedRecord(t, index, testReceipt("sess-20", "c-week", "2025-12-20", "5555", "£10.00"))
	seedRecord(t, index, testReceipt("sess-21", "c-week", "2025-12-21", "5555", "£11.00"))
	seedRecord(t, index, testReceipt("sess-22", "c-week", "2025-12-22", "5555", "£12.00"))
	engine := newTestEngine(t, index)

	result, err := engine.Query(context.Background(), receipt.Query{
		ConsumerID: "c-week",
		DateFrom:   "2025-12-20",
		DateTo:     "2025-12-22",
	})
	require.NoError(t, err)

	assert.Len(t, result.Records, 3)
	assert.Equal(t, []string{"2025-12-20", "2025-12-21", "2025-12-22"}, result.ScannedDates)
}

func TestQueryAmountBounds(t *testing.T) {
	index := newTestIndex(t)
	for i, amount := range []string{"£10.00", "£25.00", "£50.00", "£75.00"} {
		seedRecord(t, index, testReceipt(fmt.Sprintf("sess-%d", i), "c-amounts", "2025-12-24", "5555", amount))
	}
	engine := newTestEngine(t, index)

	result, err := engine.Query(context.Background(), receipt.Query{
		ConsumerID: "c-amounts",
		DateFrom:   "2025-12-24",
		DateTo:     "2025-12-24",
		AmountMin:  common.Ptr(20.0),
		AmountMax:  common.Ptr(60.0),
	})
	require.NoError(t, err)

	require.Len(t, result.Records, 2)
	amounts := []string{result.Records[0].Amount, result.Records[1].Amount}
	assert.ElementsMatch(t, []string{"£25.00", "£50.00"}, amounts)
}

func TestQuerySortDescendingByDateThenSession(t *testing.T) {
	index := newTestIndex(t)
	seedRecord(t, index, testReceipt("sess-a", "c1", "2025-12-20", "5555", "£10.00"))
	seedRecord(t, index, testReceipt("sess-b", "c1", "2025-12-22", "5555", "£11.00"))
	seedRecord(t, index, testReceipt("sess-c", "c1", "2025-12-22", "5555", "£12.00"))
	engine := newTestEngine(t, index)

	result, err := engine.Query(context.Background(), receipt.Query{
		ConsumerID: "c1",
		DateFrom:   "2025-12-20",
		DateTo:     "2025-12-22",
	})
	require.NoError(t, err)
	require.Len(t, result.Records, 3)

	for i := 0; i < len(result.Records)-1; i++ {
		a, b := result.Records[i], result.Records[i+1]
		ordered := a.PaymentDate > b.PaymentDate ||
			(a.PaymentDate == b.PaymentDate && a.SessionID > b.SessionID)
		assert.True(t, ordered, "records[%d] and records[%d] out of order", i, i+1)
	}
}

func TestQueryPagination(t *testing.T) {
	index := newTestIndex(t)
	for i := 0; i < 10; i++ {
		date := fmt.Sprintf("2025-12-%02d", i+10)
		seedRecord(t, index, testReceipt(fmt.Sprintf("sess-%02d", i), "c-page", date, "5555", "£10.00"))
	}
	engine := newTestEngine(t, index)

	base := receipt.Query{
		ConsumerID: "c-page",
		DateFrom:   "2025-12-10",
		DateTo:     "2025-12-19",
		Limit:      3,
	}

	first, err := engine.Query(context.Background(), base)
	require.NoError(t, err)
	assert.Len(t, first.Records, 3)
	assert.Equal(t, 10, first.TotalCount)
	assert.True(t, first.HasMore)
	assert.NotEmpty(t, first.NextCursor)

	seen := make(map[string]bool)
	pages := 1
	for _, r := range first.Records {
		seen[r.SessionID] = true
	}

	cursor := first.NextCursor
	for cursor != "" {
		q := base
		q.Cursor = cursor
		page, err := engine.Query(context.Background(), q)
		require.NoError(t, err)
		pages++

		for _, r := range page.Records {
			assert.False(t, seen[r.SessionID], "record %s returned twice", r.SessionID)
			seen[r.SessionID] = true
		}
		cursor = page.NextCursor
	}

	assert.Equal(t, 4, pages)
	assert.Len(t, seen, 10)
}

func TestQueryCursorForMissingRecordStartsAtBeginning(t *testing.T) {
	index := newTestIndex(t)
	seedRecord(t, index, testReceipt("sess-1", "c1", "2025-12-24", "5555", "£10.00"))
	seedRecord(t, index, testReceipt("sess-2", "c1", "2025-12-24", "5555", "£11.00"))
	engine := newTestEngine(t, index)

	result, err := engine.Query(context.Background(), receipt.Query{
		ConsumerID: "c1",
		DateFrom:   "2025-12-24",
		DateTo:     "2025-12-24",
		Cursor:     "2025-11-01:sess-elsewhere",
	})
	require.NoError(t, err)
	assert.Len(t, result.Records, 2)
}

func TestQueryLimitClamping(t *testing.T) {
	index := newTestIndex(t)
	seedRecord(t, index, testReceipt("sess-1", "c1", "2025-12-24", "5555", "£10.00"))
	engine := newTestEngine(t, index)

	q := receipt.Query{ConsumerID: "c1", DateFrom: "2025-12-24", DateTo: "2025-12-24"}

	q.Limit = 0
	result, err := engine.Query(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, DefaultLimit, result.PageSize)

	q.Limit = -3
	result, err = engine.Query(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, DefaultLimit, result.PageSize)

	q.Limit = 500
	result, err = engine.Query(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, MaxLimit, result.PageSize)
}

func TestQueryCacheEquivalence(t *testing.T) {
	index := newTestIndex(t)
	for i := 0; i < 5; i++ {
		seedRecord(t, index, testReceipt(fmt.Sprintf("sess-%d", i), "c1", "2025-12-24", "5555", "£10.00"))
	}

	cached := newTestEngine(t, index)
	uncached := NewEngine(index, nil, NewShardCache(nil), 0)

	q := receipt.Query{ConsumerID: "c1", DateFrom: "2025-12-24", DateTo: "2025-12-24"}

	// Run the cached engine twice so the second read is served from cache.
	warm, err := cached.Query(context.Background(), q)
	require.NoError(t, err)
	fromCache, err := cached.Query(context.Background(), q)
	require.NoError(t, err)
	cold, err := uncached.Query(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, cold.Records, warm.Records)
	assert.Equal(t, cold.Records, fromCache.Records)
	assert.Equal(t, cold.TotalCount, fromCache.TotalCount)
}

// fakePushdown serves pushdown scans by reading the part through the index
// manager and filtering with the given predicate, simulating server-side
// evaluation. A non-nil err makes every scan fail, forcing the fallback.
type fakePushdown struct {
	index  *receiptindex.Manager
	filter func(receipt.Metadata) bool
	err    error
}

func (f *fakePushdown) SelectNDJSON(ctx context.Context, key, sqlExpr string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	content, err := f.index.ReadPart(ctx, key)
	if err != nil {
		return nil, err
	}

	var out strings.Builder
	for _, line := range strings.Split(strings.TrimRight(content, "\n"), "\n") {
		if line == "" {
			continue
		}
		var rec receipt.Metadata
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, err
		}
		if f.filter(rec) {
			out.WriteString(line)
			out.WriteString("\n")
		}
	}
	return []byte(out.String()), nil
}

func TestQueryPushdownFallbackEquivalence(t *testing.T) {
	index := newTestIndex(t)
	seedRecord(t, index, testReceipt("sess-1", "c1", "2025-12-24", "5555", "£10.00"))
	seedRecord(t, index, testReceipt("sess-2", "c2", "2025-12-24", "6666", "£20.00"))
	seedRecord(t, index, testReceipt("sess-3", "c1", "2025-12-24", "7777", "£30.00"))

	q := receipt.Query{ConsumerID: "c1", DateFrom: "2025-12-24", DateTo: "2025-12-24"}

	pushed := NewEngine(index, &fakePushdown{
		index:  index,
		filter: func(m receipt.Metadata) bool { return MatchesClient(q, m) },
	}, NewShardCache(nil), 0)
	clientSide := NewEngine(index, nil, NewShardCache(nil), 0)

	viaPushdown, err := pushed.Query(context.Background(), q)
	require.NoError(t, err)
	viaClient, err := clientSide.Query(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, viaClient.Records, viaPushdown.Records)
	assert.Len(t, viaPushdown.Records, 2)
}

func TestQueryPushdownErrorFallsBackToClientFilter(t *testing.T) {
	index := newTestIndex(t)
	seedRecord(t, index, testReceipt("sess-1", "c1", "2025-12-24", "5555", "£10.00"))

	engine := NewEngine(index, &fakePushdown{err: errors.New("select not supported")}, NewShardCache(nil), 0)

	result, err := engine.Query(context.Background(), receipt.Query{
		ConsumerID: "c1",
		DateFrom:   "2025-12-24",
		DateTo:     "2025-12-24",
	})
	require.NoError(t, err)
	assert.Len(t, result.Records, 1)
}

func TestQueryEmptyShardIsNotAnError(t *testing.T) {
	index := newTestIndex(t)
	engine := newTestEngine(t, index)

	result, err := engine.Query(context.Background(), receipt.Query{
		ConsumerID: "c-nobody",
		DateFrom:   "2025-12-24",
		DateTo:     "2025-12-26",
	})
	require.NoError(t, err)
	assert.Empty(t, result.Records)
	assert.Equal(t, 0, result.TotalCount)
	assert.Len(t, result.ScannedDates, 3)
}
