package scanner

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanPreservesInputOrder(t *testing.T) {
	items := []int{5, 3, 8, 1, 9, 2, 7}

	results, err := Scan(context.Background(), items, 3, func(ctx context.Context, n int) (string, error) {
		// Stagger completion so later items often finish first.
		time.Sleep(time.Duration(10-n) * time.Millisecond)
		return strconv.Itoa(n * 10), nil
	})
	require.NoError(t, err)

	expected := []string{"50", "30", "80", "10", "90", "20", "70"}
	assert.Equal(t, expected, results)
}

func TestScanBoundsConcurrency(t *testing.T) {
	const limit = 3
	var inFlight, peak int32

	items := make([]int, 20)
	_, err := Scan(context.Background(), items, limit, func(ctx context.Context, n int) (int, error) {
		cur := atomic.AddInt32(&inFlight, 1)
		for {
			old := atomic.LoadInt32(&peak)
			if cur <= old || atomic.CompareAndSwapInt32(&peak, old, cur) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return n, nil
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, peak, int32(limit))
	assert.Positive(t, peak)
}

func TestScanSurfacesFirstFailureInInputOrder(t *testing.T) {
	errA := errors.New("boom a")
	errB := errors.New("boom b")

	var entered sync.WaitGroup
	entered.Add(4)

	items := []int{0, 1, 2, 3}
	_, err := Scan(context.Background(), items, 4, func(ctx context.Context, n int) (int, error) {
		// Hold every handler in flight until all have started, so both
		// failures are recorded and the earlier one must win.
		entered.Done()
		entered.Wait()
		switch n {
		case 1:
			return 0, errA
		case 3:
			return 0, errB
		}
		return n, nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errA)
}

func TestScanStopsDispatchingAfterFailure(t *testing.T) {
	var started int32

	items := make([]int, 50)
	for i := range items {
		items[i] = i
	}

	_, err := Scan(context.Background(), items, 1, func(ctx context.Context, n int) (int, error) {
		// Whichever handler runs first fails; with concurrency 1 every
		// later item sees the failure before its handler starts.
		if atomic.AddInt32(&started, 1) == 1 {
			return 0, errors.New("fail first")
		}
		return n, nil
	})
	require.Error(t, err)
	assert.Less(t, atomic.LoadInt32(&started), int32(len(items)))
}

func TestScanDefaultConcurrency(t *testing.T) {
	results, err := Scan(context.Background(), []int{1, 2, 3}, 0, func(ctx context.Context, n int) (int, error) {
		return n * n, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 4, 9}, results)
}

func TestScanEmptyItems(t *testing.T) {
	results, err := Scan(context.Background(), nil, 5, func(ctx context.Context, n int) (int, error) {
		return n, nil
	})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestScanAndFlatten(t *testing.T) {
	items := []int{1, 2, 3}
	results, err := ScanAndFlatten(context.Background(), items, 2, func(ctx context.Context, n int) ([]int, error) {
		out := make([]int, n)
		for i := range out {
			out[i] = n
		}
		return out, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 2, 3, 3, 3}, results)
}

func TestScanConcurrentHandlersShareNothing(t *testing.T) {
	var mu sync.Mutex
	seen := make(map[int]bool)

	items := make([]int, 100)
	for i := range items {
		items[i] = i
	}

	_, err := Scan(context.Background(), items, 10, func(ctx context.Context, n int) (int, error) {
		mu.Lock()
		seen[n] = true
		mu.Unlock()
		return n, nil
	})
	require.NoError(t, err)
	assert.Len(t, seen, 100)
}
