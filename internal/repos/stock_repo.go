package repos

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"qrshop/internal/domain"
)

// StockRepo is the stock ledger. Every mutation runs on the caller's
// transaction so it commits or rolls back with the entry that caused it.
type StockRepo struct{}

func NewStockRepo() *StockRepo { return &StockRepo{} }

// Available returns the current stock-on-hand of a product.
func (r *StockRepo) Available(ctx context.Context, q sqlx.QueryerContext, productID int64) (int, error) {
	var qty int
	err := sqlx.GetContext(ctx, q, &qty, rebind(q, `SELECT stock FROM products WHERE id = ?`), productID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.NotFound("product", productID)
	}
	return qty, err
}

// Reserve atomically subtracts qty units if enough stock exists. A rejected
// reserve leaves the row untouched.
func (r *StockRepo) Reserve(ctx context.Context, tx sqlx.ExtContext, productID int64, qty int) error {
	if qty <= 0 {
		return domain.Invalid("quantity", "must be greater than zero")
	}
	res, err := tx.ExecContext(ctx, tx.Rebind(`
		UPDATE products
		SET stock = stock - ?
		WHERE id = ? AND stock >= ?
	`), qty, productID, qty)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		avail, err := r.Available(ctx, tx, productID)
		if err != nil {
			return err
		}
		return &domain.InsufficientStockError{ProductID: productID, Requested: qty, Available: avail}
	}
	return nil
}

// Release puts qty units back on hand.
func (r *StockRepo) Release(ctx context.Context, tx sqlx.ExtContext, productID int64, qty int) error {
	if qty <= 0 {
		return domain.Invalid("quantity", "must be greater than zero")
	}
	res, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE products SET stock = stock + ? WHERE id = ?`), qty, productID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return domain.NotFound("product", productID)
	}
	return nil
}

// Apply reserves or releases according to the sign of delta.
func (r *StockRepo) Apply(ctx context.Context, tx sqlx.ExtContext, productID int64, delta int) error {
	switch {
	case delta > 0:
		return r.Release(ctx, tx, productID, delta)
	case delta < 0:
		return r.Reserve(ctx, tx, productID, -delta)
	}
	return nil
}

func rebind(q sqlx.QueryerContext, query string) string {
	if b, ok := q.(interface{ Rebind(string) string }); ok {
		return b.Rebind(query)
	}
	return query
}
