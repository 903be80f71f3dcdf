package repos

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"qrshop/internal/domain"
)

type MovementRepo struct{ db *sqlx.DB }

func NewMovementRepo(db *sqlx.DB) *MovementRepo { return &MovementRepo{db: db} }

const movementSelect = `
	SELECT m.id, m.product_id, p.name AS product_name, m.kind, m.quantity, m.note, m.created_at, m.updated_at
	FROM stock_movements m
	JOIN products p ON p.id = m.product_id`

func (r *MovementRepo) List(ctx context.Context, limit int) ([]domain.Movement, error) {
	if limit <= 0 {
		limit = 100
	}
	out := []domain.Movement{}
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(movementSelect+` ORDER BY m.id DESC LIMIT ?`), limit)
	return out, err
}

func (r *MovementRepo) Get(ctx context.Context, q sqlx.QueryerContext, id int64) (domain.Movement, error) {
	var m domain.Movement
	err := sqlx.GetContext(ctx, q, &m, r.db.Rebind(movementSelect+` WHERE m.id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return m, domain.NotFound("movement", id)
	}
	return m, err
}

func (r *MovementRepo) Insert(ctx context.Context, tx sqlx.ExtContext, m domain.Movement) (int64, error) {
	var id int64
	err := tx.QueryRowxContext(ctx, tx.Rebind(`
		INSERT INTO stock_movements(product_id, kind, quantity, note)
		VALUES(?, ?, ?, ?)
		RETURNING id`), m.ProductID, m.Kind, m.Quantity, m.Note).Scan(&id)
	return id, err
}

func (r *MovementRepo) Update(ctx context.Context, tx sqlx.ExtContext, m domain.Movement) error {
	_, err := tx.ExecContext(ctx, tx.Rebind(`
		UPDATE stock_movements
		SET product_id = ?, kind = ?, quantity = ?, note = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`), m.ProductID, m.Kind, m.Quantity, m.Note, m.ID)
	return err
}

func (r *MovementRepo) Delete(ctx context.Context, tx sqlx.ExtContext, id int64) error {
	_, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM stock_movements WHERE id = ?`), id)
	return err
}
