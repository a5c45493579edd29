package views

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"finviz/internal/core"
	"finviz/internal/services"
	"finviz/internal/storage/memory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingLister struct {
	inner Lister
	calls atomic.Int32
	delay time.Duration
	err   error
}

func (c *countingLister) List(ctx context.Context) ([]core.Transaction, error) {
	c.calls.Add(1)
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	if c.err != nil {
		return nil, c.err
	}
	return c.inner.List(ctx)
}

func newTx(amount int64, y, m, d int) core.NewTransaction {
	return core.NewTransaction{Amount: decimal.NewFromInt(amount), Description: "t", Date: core.NewDate(y, m, d)}
}

func TestDashboard_CachesUntilInvalidated(t *testing.T) {
	svc := services.NewTransactionService(memory.New())
	lister := &countingLister{inner: svc}
	d := NewDashboard(lister, Options{TTL: time.Minute})
	ctx := context.Background()

	_, err := svc.Create(ctx, newTx(100, 2024, 1, 5))
	require.NoError(t, err)

	first, err := d.Chart(ctx, core.SortByLabel)
	require.NoError(t, err)
	_, err = d.Chart(ctx, core.SortByLabel)
	require.NoError(t, err)
	_, err = d.Transactions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(1), lister.calls.Load())
	require.Len(t, first.Buckets, 1)

	d.Invalidate(core.NewInvalidation(core.OpCreated, "x"))
	_, err = d.Chart(ctx, core.SortByLabel)
	require.NoError(t, err)
	assert.Equal(t, int32(2), lister.calls.Load())
	assert.Equal(t, uint64(1), d.Version())
}

func TestDashboard_NotifiedByServiceRefetchesAfterMutation(t *testing.T) {
	store := memory.New()
	d := NewDashboard(ListerFunc(store.ListByDateDesc), Options{})
	svc := services.NewTransactionService(store, d)
	ctx := context.Background()

	_, err := svc.Create(ctx, newTx(100, 2024, 1, 5))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), d.Version())

	before, err := d.Chart(ctx, core.SortChronological)
	require.NoError(t, err)
	require.Len(t, before.Buckets, 1)

	_, err = svc.Create(ctx, newTx(75, 2024, 2, 1))
	require.NoError(t, err)

	after, err := d.Chart(ctx, core.SortChronological)
	require.NoError(t, err)
	require.Len(t, after.Buckets, 2)
	assert.Equal(t, "2024-01", after.Buckets[0].Key)

	list, err := d.Transactions(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	inv, ok := d.LastInvalidation()
	assert.True(t, ok)
	assert.Equal(t, core.OpCreated, inv.Op)
}

func TestDashboard_ConcurrentMissesShareOneFetch(t *testing.T) {
	lister := &countingLister{inner: services.NewTransactionService(memory.New()), delay: 20 * time.Millisecond}
	d := NewDashboard(lister, Options{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := d.Transactions(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), lister.calls.Load())
}

func TestDashboard_ErrorsAreNotCached(t *testing.T) {
	lister := &countingLister{err: errors.New("store down")}
	d := NewDashboard(lister, Options{})

	_, err := d.Chart(context.Background(), core.SortByLabel)
	assert.Error(t, err)
	_, err = d.Chart(context.Background(), core.SortByLabel)
	assert.Error(t, err)
	assert.Equal(t, int32(2), lister.calls.Load())
}

func TestDashboard_SharedFetchIgnoresCallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The first caller disconnects while its fetch is in flight.
	lister := ListerFunc(func(lctx context.Context) ([]core.Transaction, error) {
		cancel()
		if err := lctx.Err(); err != nil {
			return nil, err
		}
		return []core.Transaction{newTx(5, 2024, 1, 1).Build("a")}, nil
	})
	d := NewDashboard(lister, Options{})

	txs, err := d.Transactions(ctx)
	require.NoError(t, err)
	assert.Len(t, txs, 1)

	ctx2, cancel2 := context.WithCancel(context.Background())
	defer cancel2()
	d = NewDashboard(ListerFunc(func(lctx context.Context) ([]core.Transaction, error) {
		cancel2()
		return nil, lctx.Err()
	}), Options{})

	s, err := d.Chart(ctx2, core.SortChronological)
	require.NoError(t, err)
	assert.Empty(t, s.Buckets)
}
