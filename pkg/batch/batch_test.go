package batch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_AllItemsComplete(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7}

	var mu sync.Mutex
	seen := make(map[int]bool)

	errs := Run(context.Background(), items, 3, func(_ context.Context, n int) error {
		mu.Lock()
		seen[n] = true
		mu.Unlock()
		return nil
	})

	require.Len(t, errs, len(items))
	for i, err := range errs {
		assert.NoError(t, err, "item %d", i)
	}
	assert.Len(t, seen, len(items))
}

func TestRun_ConcurrencyBound(t *testing.T) {
	const limit = 2
	items := make([]int, 20)

	var inFlight, peak atomic.Int32

	Run(context.Background(), items, limit, func(_ context.Context, _ int) error {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return nil
	})

	assert.LessOrEqual(t, peak.Load(), int32(limit), "more than %d tasks in flight", limit)
}

func TestRun_FailuresDoNotCancelSiblings(t *testing.T) {
	items := []int{0, 1, 2, 3, 4}
	boom := errors.New("boom")

	var completed atomic.Int32
	errs := Run(context.Background(), items, 2, func(_ context.Context, n int) error {
		completed.Add(1)
		if n == 1 {
			return boom
		}
		return nil
	})

	assert.Equal(t, int32(len(items)), completed.Load(), "every item must run")
	assert.NoError(t, errs[0])
	assert.ErrorIs(t, errs[1], boom)
	assert.NoError(t, errs[4])
	assert.ErrorIs(t, FirstError(errs), boom)
}

func TestRun_EmptyInput(t *testing.T) {
	errs := Run(context.Background(), nil, 4, func(_ context.Context, _ struct{}) error {
		t.Fatal("fn must not be called")
		return nil
	})
	assert.Empty(t, errs)
	assert.NoError(t, FirstError(errs))
}

func TestRun_ZeroLimitTreatedAsOne(t *testing.T) {
	errs := Run(context.Background(), []int{1, 2}, 0, func(_ context.Context, _ int) error {
		return nil
	})
	require.Len(t, errs, 2)
	assert.NoError(t, FirstError(errs))
}
