package repos

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"qrshop/internal/domain"
)

type SaleRepo struct{ db *sqlx.DB }

func NewSaleRepo(db *sqlx.DB) *SaleRepo { return &SaleRepo{db: db} }

const saleCols = `id, user_id, total, status, transaction_id, reference, version, created_at, updated_at`

// Create persists a sale header and its lines on tx. Subtotals and the total
// are computed here so the header always matches its lines.
func (r *SaleRepo) Create(ctx context.Context, tx sqlx.ExtContext, userID int64, lines []domain.LineInput, status domain.SaleStatus) (domain.Sale, error) {
	if len(lines) == 0 {
		return domain.Sale{}, domain.Invalid("lines", "a sale needs at least one line")
	}
	if !status.Valid() {
		return domain.Sale{}, domain.Invalid("status", "unknown sale status")
	}
	sale := domain.Sale{UserID: userID, Status: status, Total: decimal.Zero, Version: 1}
	for _, in := range lines {
		if in.Quantity <= 0 {
			return domain.Sale{}, domain.Invalid("quantity", "must be greater than zero")
		}
		if in.UnitPrice.IsNegative() {
			return domain.Sale{}, domain.Invalid("unit_price", "must not be negative")
		}
		l := domain.SaleLine{
			ProductID:   in.ProductID,
			ProductName: in.Name,
			Quantity:    in.Quantity,
			UnitPrice:   in.UnitPrice,
			Subtotal:    in.UnitPrice.Mul(decimal.NewFromInt(int64(in.Quantity))),
		}
		sale.Total = sale.Total.Add(l.Subtotal)
		sale.Lines = append(sale.Lines, l)
	}

	if err := tx.QueryRowxContext(ctx, tx.Rebind(`
		INSERT INTO sales(user_id, total, status)
		VALUES(?, ?, ?)
		RETURNING id, created_at, updated_at`), userID, sale.Total, status).
		Scan(&sale.ID, &sale.CreatedAt, &sale.UpdatedAt); err != nil {
		return domain.Sale{}, err
	}
	for i := range sale.Lines {
		l := &sale.Lines[i]
		l.SaleID = sale.ID
		if err := tx.QueryRowxContext(ctx, tx.Rebind(`
			INSERT INTO sale_lines(sale_id, product_id, quantity, unit_price, subtotal)
			VALUES(?, ?, ?, ?, ?)
			RETURNING id`), sale.ID, l.ProductID, l.Quantity, l.UnitPrice, l.Subtotal).Scan(&l.ID); err != nil {
			return domain.Sale{}, err
		}
	}
	return sale, nil
}

// SetTransaction stores the provider transaction id and the order reference.
func (r *SaleRepo) SetTransaction(ctx context.Context, tx sqlx.ExtContext, saleID int64, transactionID, reference string) error {
	_, err := tx.ExecContext(ctx, tx.Rebind(`
		UPDATE sales SET transaction_id = ?, reference = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`), transactionID, reference, saleID)
	return err
}

// Transition moves a sale to "to" only if its current status is one of from.
// The reported bool is false when nothing changed.
func (r *SaleRepo) Transition(ctx context.Context, tx sqlx.ExtContext, saleID int64, from []domain.SaleStatus, to domain.SaleStatus) (bool, error) {
	if len(from) == 0 {
		return false, nil
	}
	q, args, err := sqlx.In(`
		UPDATE sales
		SET status = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status IN (?)`, to, saleID, from)
	if err != nil {
		return false, err
	}
	res, err := tx.ExecContext(ctx, tx.Rebind(q), args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (r *SaleRepo) Get(ctx context.Context, id int64) (domain.Sale, error) {
	return r.GetWith(ctx, r.db, id)
}

// GetWith loads a sale and its lines through q.
func (r *SaleRepo) GetWith(ctx context.Context, q sqlx.QueryerContext, id int64) (domain.Sale, error) {
	var s domain.Sale
	err := sqlx.GetContext(ctx, q, &s, r.db.Rebind(`SELECT `+saleCols+` FROM sales WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return s, domain.NotFound("sale", id)
	}
	if err != nil {
		return s, err
	}
	s.Lines = []domain.SaleLine{}
	err = sqlx.SelectContext(ctx, q, &s.Lines, r.db.Rebind(`
		SELECT l.id, l.sale_id, l.product_id, p.name AS product_name, l.quantity, l.unit_price, l.subtotal
		FROM sale_lines l
		JOIN products p ON p.id = l.product_id
		WHERE l.sale_id = ?
		ORDER BY l.id`), id)
	return s, err
}

func (r *SaleRepo) ByTransaction(ctx context.Context, transactionID string) (domain.Sale, error) {
	var s domain.Sale
	err := r.db.GetContext(ctx, &s, r.db.Rebind(`SELECT `+saleCols+` FROM sales WHERE transaction_id = ?`), transactionID)
	if errors.Is(err, sql.ErrNoRows) {
		return s, domain.NotFound("sale", transactionID)
	}
	return s, err
}

const summarySelect = `
	SELECT s.id, s.user_id, u.name AS customer_name, u.email AS customer_email, s.total, s.status, s.created_at
	FROM sales s
	JOIN users u ON u.id = s.user_id`

func (r *SaleRepo) ListByUser(ctx context.Context, userID int64) ([]domain.SaleSummary, error) {
	out := []domain.SaleSummary{}
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(summarySelect+` WHERE s.user_id = ? ORDER BY s.id DESC`), userID)
	return out, err
}

func (r *SaleRepo) ListLatest(ctx context.Context, limit int) ([]domain.SaleSummary, error) {
	if limit <= 0 {
		limit = 100
	}
	out := []domain.SaleSummary{}
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(summarySelect+` ORDER BY s.id DESC LIMIT ?`), limit)
	return out, err
}

// CountByStatus feeds the admin dashboard.
func (r *SaleRepo) CountByStatus(ctx context.Context) (map[domain.SaleStatus]int, error) {
	var rows []struct {
		Status domain.SaleStatus `db:"status"`
		N      int               `db:"n"`
	}
	if err := r.db.SelectContext(ctx, &rows, `SELECT status, COUNT(*) AS n FROM sales GROUP BY status`); err != nil {
		return nil, err
	}
	out := make(map[domain.SaleStatus]int, len(rows))
	for _, row := range rows {
		out[row.Status] = row.N
	}
	return out, nil
}
