package repos

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"qrshop/internal/domain"
)

type CategoryRepo struct{ db *sqlx.DB }

func NewCategoryRepo(db *sqlx.DB) *CategoryRepo { return &CategoryRepo{db: db} }

func (r *CategoryRepo) List(ctx context.Context) ([]domain.Category, error) {
	out := []domain.Category{}
	err := r.db.SelectContext(ctx, &out, `SELECT id, name, description FROM categories ORDER BY name`)
	return out, err
}

func (r *CategoryRepo) Get(ctx context.Context, id int64) (domain.Category, error) {
	var c domain.Category
	err := r.db.GetContext(ctx, &c, r.db.Rebind(`SELECT id, name, description FROM categories WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return c, domain.NotFound("category", id)
	}
	return c, err
}

// NameTaken reports whether another category (not exceptID) uses name.
func (r *CategoryRepo) NameTaken(ctx context.Context, name string, exceptID int64) (bool, error) {
	var n int
	err := r.db.GetContext(ctx, &n, r.db.Rebind(`SELECT COUNT(*) FROM categories WHERE name = ? AND id <> ?`), name, exceptID)
	return n > 0, err
}

func (r *CategoryRepo) Create(ctx context.Context, c domain.Category) (int64, error) {
	var id int64
	err := r.db.QueryRowxContext(ctx, r.db.Rebind(`INSERT INTO categories(name, description) VALUES(?, ?) RETURNING id`),
		c.Name, c.Description).Scan(&id)
	return id, err
}

func (r *CategoryRepo) Update(ctx context.Context, c domain.Category) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE categories SET name = ?, description = ? WHERE id = ?`),
		c.Name, c.Description, c.ID)
	if err != nil {
		return err
	}
	return expectOne(res, "category", c.ID)
}

// Delete refuses categories that still hold products.
func (r *CategoryRepo) Delete(ctx context.Context, id int64) error {
	return WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var n int
		if err := tx.GetContext(ctx, &n, tx.Rebind(`SELECT COUNT(*) FROM products WHERE category_id = ?`), id); err != nil {
			return err
		}
		if n > 0 {
			return domain.Conflict("category still has products")
		}
		res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM categories WHERE id = ?`), id)
		if err != nil {
			return err
		}
		return expectOne(res, "category", id)
	})
}

func expectOne(res sql.Result, entity string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.NotFound(entity, id)
	}
	return nil
}
