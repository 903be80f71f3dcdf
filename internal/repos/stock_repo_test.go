package repos_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qrshop/internal/domain"
	"qrshop/internal/repos"
)

func TestReserveRejectsOverdraw(t *testing.T) {
	db := memdb(t)
	_, ids := fixture(t, db, prod{"A", "10.00", 1})
	stock := repos.NewStockRepo()
	ctx := context.Background()

	err := stock.Reserve(ctx, db, ids[0], 2)
	var ise *domain.InsufficientStockError
	require.True(t, errors.As(err, &ise), "got %v", err)
	assert.Equal(t, domain.InsufficientStockError{ProductID: ids[0], Requested: 2, Available: 1}, *ise)
	assert.Equal(t, 1, stockOf(t, db, ids[0]))

	require.NoError(t, stock.Reserve(ctx, db, ids[0], 1))
	assert.Equal(t, 0, stockOf(t, db, ids[0]))
}

func TestReserveReleaseSequenceNeverNegative(t *testing.T) {
	db := memdb(t)
	_, ids := fixture(t, db, prod{"A", "1.00", 3})
	stock := repos.NewStockRepo()
	ctx := context.Background()

	ops := []int{-2, -2, +1, -2, -1, +4, -5, -4}
	for _, d := range ops {
		_ = stock.Apply(ctx, db, ids[0], d)
		assert.GreaterOrEqual(t, stockOf(t, db, ids[0]), 0)
	}
	// 3 -2 =1, -2 rejected, +1 =2, -2 =0, -1 rejected, +4 =4, -5 rejected, -4 =0
	assert.Equal(t, 0, stockOf(t, db, ids[0]))
}

func TestStockUnknownProductAndBadQty(t *testing.T) {
	db := memdb(t)
	stock := repos.NewStockRepo()
	ctx := context.Background()

	assert.True(t, domain.IsNotFound(stock.Reserve(ctx, db, 999, 1)))
	assert.True(t, domain.IsNotFound(stock.Release(ctx, db, 999, 1)))

	var ve *domain.ValidationError
	assert.ErrorAs(t, stock.Reserve(ctx, db, 1, 0), &ve)
	assert.ErrorAs(t, stock.Release(ctx, db, 1, -3), &ve)
}

func TestReserveRollsBackWithTransaction(t *testing.T) {
	db := memdb(t)
	_, ids := fixture(t, db, prod{"A", "1.00", 5})
	stock := repos.NewStockRepo()
	ctx := context.Background()

	err := repos.WithTx(ctx, db, func(tx *sqlx.Tx) error {
		if err := stock.Reserve(ctx, tx, ids[0], 4); err != nil {
			return err
		}
		return errors.New("later step failed")
	})
	require.Error(t, err)
	assert.Equal(t, 5, stockOf(t, db, ids[0]))
}
