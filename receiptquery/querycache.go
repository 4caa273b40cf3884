package receiptquery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/voltcharge/receiptengine/cache"
	"github.com/voltcharge/receiptengine/receipt"
)

// ShardCache memoizes the filtered records of one date shard under one
// filter tuple, following the "cache:" + key convention used throughout
// this codebase's Redis-backed repositories. The in-process cache is the
// first tier; an optional Backend adds a shared out-of-process tier for
// multi-instance deployments. A nil underlying cache runs in disabled
// mode: Get always misses and Set is a no-op.
type ShardCache struct {
	cache   *cache.Cache[[]receipt.Metadata]
	backend cache.Backend
	ttl     time.Duration
}

// NewShardCache wraps c. Pass nil to construct a disabled cache.
func NewShardCache(c *cache.Cache[[]receipt.Metadata]) *ShardCache {
	return &ShardCache{cache: c}
}

// NewShardCacheWithBackend wraps c plus a shared backend tier whose
// entries expire after ttl. Backend misses and errors fall through to a
// normal cache miss; the backend never makes a query fail.
func NewShardCacheWithBackend(c *cache.Cache[[]receipt.Metadata], backend cache.Backend, ttl time.Duration) *ShardCache {
	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}
	return &ShardCache{cache: c, backend: backend, ttl: ttl}
}

// Key builds the canonical cache key for one date shard under query q.
func Key(date string, q receipt.Query) string {
	var b strings.Builder
	b.WriteString("cache:")
	b.WriteString(date)
	writeIfSet(&b, "sid", q.SessionID)
	writeIfSet(&b, "cid", q.ConsumerID)
	writeIfSet(&b, "clf", q.CardLastFour)
	writeIfSet(&b, "rcn", q.ReceiptNumber)
	if q.AmountMin != nil {
		fmt.Fprintf(&b, ":amin=%g", *q.AmountMin)
	}
	if q.AmountMax != nil {
		fmt.Fprintf(&b, ":amax=%g", *q.AmountMax)
	}
	return b.String()
}

func writeIfSet(b *strings.Builder, label, value string) {
	if value != "" {
		b.WriteString(":")
		b.WriteString(label)
		b.WriteString("=")
		b.WriteString(value)
	}
}

// Get returns the cached shard records for key, or false on a miss or when
// the cache is disabled. A backend hit repopulates the in-process tier.
func (s *ShardCache) Get(ctx context.Context, key string) ([]receipt.Metadata, bool) {
	if s.cache == nil {
		return nil, false
	}
	if records, ok := s.cache.Get(key); ok {
		return records, true
	}
	if s.backend != nil {
		var records []receipt.Metadata
		err := s.backend.Get(ctx, key, &records)
		if err == nil {
			s.cache.Set(key, records)
			return records, true
		}
		if !errors.Is(err, cache.ErrBackendMiss) {
			return nil, false
		}
	}
	return nil, false
}

// Set stores records under key in every configured tier. A no-op when the
// cache is disabled; backend write failures are ignored, the next query
// simply re-resolves the shard.
func (s *ShardCache) Set(ctx context.Context, key string, records []receipt.Metadata) {
	if s.cache == nil {
		return
	}
	s.cache.Set(key, records)
	if s.backend != nil {
		_ = s.backend.Set(ctx, key, records, s.ttl)
	}
}

// Clear drains the in-process tier. Backend entries are left to their TTL;
// cross-instance invalidation is out of scope and divergent caches are
// tolerated.
func (s *ShardCache) Clear() {
	if s.cache == nil {
		return
	}
	s.cache.Clear()
}
