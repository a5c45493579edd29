// Package storetest holds the behaviour every ports.TransactionStore must
// share. Backend packages call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"finviz/internal/core"
	"finviz/internal/ports"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty store. Cleanup is registered on t.
type Factory func(t *testing.T) ports.TransactionStore

func newTx(amount string, desc string, y, m, d int) core.NewTransaction {
	return core.NewTransaction{
		Amount:      decimal.RequireFromString(amount),
		Description: desc,
		Date:        core.NewDate(y, m, d),
	}
}

// Run executes the shared store cases.
func Run(t *testing.T, newStore Factory) {
	t.Run("insert assigns unique ids", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		a, err := s.Insert(ctx, newTx("100", "Rent", 2024, 1, 5))
		require.NoError(t, err)
		b, err := s.Insert(ctx, newTx("100", "Rent", 2024, 1, 5))
		require.NoError(t, err)

		assert.NotEmpty(t, a.ID)
		assert.NotEqual(t, a.ID, b.ID)

		list, err := s.ListByDateDesc(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.True(t, list[0].Amount.Equal(decimal.NewFromInt(100)))
		assert.Equal(t, "Rent", list[0].Description)
		assert.Equal(t, "2024-01-05", list[0].Date.String())
	})

	t.Run("list is date descending with stable ties", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		first, err := s.Insert(ctx, newTx("1", "first same day", 2024, 2, 1))
		require.NoError(t, err)
		_, err = s.Insert(ctx, newTx("2", "older", 2023, 12, 31))
		require.NoError(t, err)
		second, err := s.Insert(ctx, newTx("3", "second same day", 2024, 2, 1))
		require.NoError(t, err)
		newest, err := s.Insert(ctx, newTx("4", "newest", 2024, 3, 10))
		require.NoError(t, err)

		list, err := s.ListByDateDesc(ctx)
		require.NoError(t, err)
		ids := make([]string, 0, len(list))
		for _, tx := range list {
			ids = append(ids, tx.ID)
		}
		require.Len(t, ids, 4)
		assert.Equal(t, newest.ID, ids[0])
		assert.Equal(t, first.ID, ids[1])
		assert.Equal(t, second.ID, ids[2])
		assert.Equal(t, "older", list[3].Description)
	})

	t.Run("empty list is not nil", func(t *testing.T) {
		s := newStore(t)
		list, err := s.ListByDateDesc(context.Background())
		require.NoError(t, err)
		assert.NotNil(t, list)
		assert.Empty(t, list)
	})

	t.Run("update merges supplied fields", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		orig, err := s.Insert(ctx, newTx("12.50", "Cinema", 2024, 4, 2))
		require.NoError(t, err)

		desc := "Cinema tickets"
		res, err := s.UpdateByID(ctx, orig.ID, core.Patch{Description: &desc})
		require.NoError(t, err)
		require.True(t, res.Found())
		assert.Equal(t, orig.ID, res.Transaction.ID)
		assert.Equal(t, desc, res.Transaction.Description)
		assert.True(t, res.Transaction.Amount.Equal(orig.Amount))
		assert.Equal(t, orig.Date.String(), res.Transaction.Date.String())

		got, err := s.Get(ctx, orig.ID)
		require.NoError(t, err)
		assert.Equal(t, res.Transaction.Description, got.Description)

		amount := decimal.RequireFromString("15")
		date := core.NewDate(2024, 5, 1)
		res, err = s.UpdateByID(ctx, orig.ID, core.Patch{Amount: &amount, Date: &date})
		require.NoError(t, err)
		require.True(t, res.Found())
		assert.True(t, res.Transaction.Amount.Equal(amount))
		assert.Equal(t, "2024-05-01", res.Transaction.Date.String())
		assert.Equal(t, desc, res.Transaction.Description)
	})

	t.Run("update of missing id is not found", func(t *testing.T) {
		s := newStore(t)
		desc := "x"
		res, err := s.UpdateByID(context.Background(), "00000000-0000-4000-8000-000000000000", core.Patch{Description: &desc})
		require.NoError(t, err)
		assert.Equal(t, core.NotFound, res.Outcome)

		res, err = s.UpdateByID(context.Background(), "00000000-0000-4000-8000-000000000000", core.Patch{})
		require.NoError(t, err)
		assert.False(t, res.Found())
	})

	t.Run("empty patch returns current record", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		orig, err := s.Insert(ctx, newTx("9", "Books", 2024, 6, 6))
		require.NoError(t, err)

		res, err := s.UpdateByID(ctx, orig.ID, core.Patch{})
		require.NoError(t, err)
		require.True(t, res.Found())
		assert.Equal(t, "Books", res.Transaction.Description)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		tx, err := s.Insert(ctx, newTx("5", "Snack", 2024, 1, 1))
		require.NoError(t, err)

		require.NoError(t, s.DeleteByID(ctx, tx.ID))
		require.NoError(t, s.DeleteByID(ctx, tx.ID))
		require.NoError(t, s.DeleteByID(ctx, "00000000-0000-4000-8000-000000000001"))

		list, err := s.ListByDateDesc(ctx)
		require.NoError(t, err)
		for _, got := range list {
			assert.NotEqual(t, tx.ID, got.ID)
		}

		_, err = s.Get(ctx, tx.ID)
		assert.True(t, errors.Is(err, core.ErrNotFound))
	})

	t.Run("concurrent inserts", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.Insert(ctx, newTx("1", "parallel", 2024, 7, 1))
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		list, err := s.ListByDateDesc(ctx)
		require.NoError(t, err)
		assert.Len(t, list, 10)
	})
}
