package receiptquery

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/voltcharge/receiptengine/common"
	"github.com/voltcharge/receiptengine/receipt"
	"github.com/voltcharge/receiptengine/receiptindex"
	"github.com/voltcharge/receiptengine/receiptmetrics"
	"github.com/voltcharge/receiptengine/scanner"
	"github.com/voltcharge/receiptengine/storage"
)

// DefaultLimit and MaxLimit bound the page size the engine returns.
const (
	DefaultLimit = 50
	MaxLimit     = 100
)

// Engine answers paginated receipt queries by expanding a date range,
// scanning each day's index partition in parallel (via S3 Select pushdown
// where available, falling back to client-side filtering), and applying a
// single total ordering across the concatenated results.
type Engine struct {
	index       *receiptindex.Manager
	pushdown    storage.PushdownScanner
	shardCache  *ShardCache
	concurrency int
	log         *logrus.Logger
}

// NewEngine builds a query engine. pushdown may be nil, in which case
// every shard falls back to client-side filtering. shardCache may wrap a
// nil cache.Cache to run in disabled mode. concurrency <= 0 uses
// scanner.DefaultConcurrency.
func NewEngine(index *receiptindex.Manager, pushdown storage.PushdownScanner, shardCache *ShardCache, concurrency int) *Engine {
	if shardCache == nil {
		shardCache = NewShardCache(nil)
	}
	return &Engine{
		index:       index,
		pushdown:    pushdown,
		shardCache:  shardCache,
		concurrency: concurrency,
		log:         common.Logger,
	}
}

// Query resolves q against the index, returning a single total-ordered,
// cursor-paginated page of records.
func (e *Engine) Query(ctx context.Context, q receipt.Query) (receipt.Result, error) {
	start := time.Now()
	defer func() {
		receiptmetrics.QueryDuration.Observe(time.Since(start).Seconds())
	}()

	pageSize := clampLimit(q.Limit)

	if !q.HasRequiredField() {
		return receipt.Result{PageSize: pageSize}, nil
	}

	from, to := DateRange(q.DateFrom, q.DateTo)
	dates := ToArray(from, to)

	var all []receipt.Metadata
	for _, date := range dates {
		records, err := e.shardRecords(ctx, date, q)
		if err != nil {
			return receipt.Result{}, err
		}
		all = append(all, records...)
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].PaymentDate != all[j].PaymentDate {
			return all[i].PaymentDate > all[j].PaymentDate
		}
		return all[i].SessionID > all[j].SessionID
	})

	total := len(all)
	startIdx := 0
	if date, sessionID, ok := DecodeCursor(q.Cursor); ok {
		startIdx = cursorStartIndex(all, date, sessionID)
	}

	endIdx := startIdx + pageSize
	if endIdx > total {
		endIdx = total
	}
	if startIdx > total {
		startIdx = total
	}

	var page []receipt.Metadata
	if startIdx < endIdx {
		page = all[startIdx:endIdx]
	}

	result := receipt.Result{
		Records:      page,
		ScannedDates: dates,
		TotalCount:   total,
		HasMore:      endIdx < total,
		PageSize:     pageSize,
	}
	if result.HasMore && len(page) > 0 {
		last := page[len(page)-1]
		result.NextCursor = EncodeCursor(last.PaymentDate, last.SessionID)
	}
	return result, nil
}

// cursorStartIndex finds the first index strictly past the record matching
// (date, sessionID) in all's descending order. If no record matches, it
// starts from the beginning, per the "invalid cursor honored only if its
// record appears in the scan" edge case.
func cursorStartIndex(all []receipt.Metadata, date, sessionID string) int {
	for i, r := range all {
		if r.PaymentDate == date && r.SessionID == sessionID {
			return i + 1
		}
	}
	return 0
}

// shardRecords returns every record for date matching q's filters,
// consulting the shard cache first.
func (e *Engine) shardRecords(ctx context.Context, date string, q receipt.Query) ([]receipt.Metadata, error) {
	key := Key(date, q)
	if cached, ok := e.shardCache.Get(ctx, key); ok {
		receiptmetrics.CacheTotal.WithLabelValues("hit").Inc()
		return cached, nil
	}
	receiptmetrics.CacheTotal.WithLabelValues("miss").Inc()

	prefix := e.index.BuildPrefix(date)
	parts, err := e.index.ListParts(ctx, prefix)
	if err != nil {
		return nil, err
	}

	sqlExpr := BuildSQL(q)
	records, err := scanner.ScanAndFlatten(ctx, parts, e.concurrency, func(ctx context.Context, partKey string) ([]receipt.Metadata, error) {
		return e.scanPart(ctx, partKey, sqlExpr, q)
	})
	if err != nil {
		return nil, err
	}

	e.shardCache.Set(ctx, key, records)
	return records, nil
}

// scanPart returns the records in partKey matching q, trying pushdown
// first and falling back to a full read plus client-side filtering on any
// pushdown error or when no pushdown scanner is configured.
func (e *Engine) scanPart(ctx context.Context, partKey, sqlExpr string, q receipt.Query) ([]receipt.Metadata, error) {
	if e.pushdown != nil {
		payload, err := e.pushdown.SelectNDJSON(ctx, partKey, sqlExpr)
		if err == nil {
			records, decodeErr := decodeNDJSON(payload)
			if decodeErr == nil {
				return records, nil
			}
			e.log.WithFields(logrus.Fields{"part": partKey, "error": decodeErr.Error()}).
				Warn("receiptquery: pushdown payload decode failed, falling back to client-side filter")
		} else {
			e.log.WithFields(logrus.Fields{"part": partKey, "error": err.Error()}).
				Debug("receiptquery: pushdown unavailable, falling back to client-side filter")
		}
		receiptmetrics.PushdownFallbackTotal.Inc()
	}

	content, err := e.index.ReadPart(ctx, partKey)
	if err != nil {
		return nil, err
	}

	all, err := decodeNDJSON([]byte(content))
	if err != nil {
		return nil, err
	}

	var matched []receipt.Metadata
	for _, rec := range all {
		if MatchesClient(q, rec) {
			matched = append(matched, rec)
		}
	}
	return matched, nil
}

func decodeNDJSON(payload []byte) ([]receipt.Metadata, error) {
	var records []receipt.Metadata
	for _, line := range strings.Split(strings.TrimRight(string(payload), "\n"), "\n") {
		if line == "" {
			continue
		}
		var rec receipt.Metadata
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}
