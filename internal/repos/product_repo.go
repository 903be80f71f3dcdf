package repos

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"qrshop/internal/domain"
)

type ProductRepo struct{ db *sqlx.DB }

func NewProductRepo(db *sqlx.DB) *ProductRepo { return &ProductRepo{db: db} }

const productCols = `id, category_id, name, description, price, stock, image, created_at`

func (r *ProductRepo) List(ctx context.Context, categoryID int64, limit, offset int) ([]domain.Product, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT ` + productCols + ` FROM products`
	args := []any{}
	if categoryID > 0 {
		q += ` WHERE category_id = ?`
		args = append(args, categoryID)
	}
	q += ` ORDER BY name LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	out := []domain.Product{}
	err := sqlx.SelectContext(ctx, r.db, &out, r.db.Rebind(q), args...)
	return out, err
}

func (r *ProductRepo) Get(ctx context.Context, id int64) (domain.Product, error) {
	return r.GetWith(ctx, r.db, id)
}

// GetWith reads a product through q, which may be a transaction.
func (r *ProductRepo) GetWith(ctx context.Context, q sqlx.QueryerContext, id int64) (domain.Product, error) {
	var p domain.Product
	err := sqlx.GetContext(ctx, q, &p, r.db.Rebind(`SELECT `+productCols+` FROM products WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return p, domain.NotFound("product", id)
	}
	return p, err
}

func (r *ProductRepo) NameTaken(ctx context.Context, name string, exceptID int64) (bool, error) {
	var n int
	err := r.db.GetContext(ctx, &n, r.db.Rebind(`SELECT COUNT(*) FROM products WHERE name = ? AND id <> ?`), name, exceptID)
	return n > 0, err
}

func (r *ProductRepo) Create(ctx context.Context, p domain.Product) (int64, error) {
	var id int64
	err := r.db.QueryRowxContext(ctx, r.db.Rebind(`
		INSERT INTO products(category_id, name, description, price, stock, image)
		VALUES(?, ?, ?, ?, ?, ?)
		RETURNING id`), p.CategoryID, p.Name, p.Description, p.Price, p.Stock, p.Image).Scan(&id)
	return id, err
}

// Update edits the catalog fields. Stock is left to reservations and
// movements.
func (r *ProductRepo) Update(ctx context.Context, p domain.Product) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE products
		SET category_id = ?, name = ?, description = ?, price = ?, image = ?
		WHERE id = ?`), p.CategoryID, p.Name, p.Description, p.Price, p.Image, p.ID)
	if err != nil {
		return err
	}
	return expectOne(res, "product", p.ID)
}

// Delete removes a product nobody has bought or moved stock for; history
// rows keep referencing it otherwise.
func (r *ProductRepo) Delete(ctx context.Context, id int64) error {
	return WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var n int
		if err := tx.GetContext(ctx, &n, tx.Rebind(`
			SELECT (SELECT COUNT(*) FROM sale_lines WHERE product_id = ?)
			     + (SELECT COUNT(*) FROM stock_movements WHERE product_id = ?)`), id, id); err != nil {
			return err
		}
		if n > 0 {
			return domain.Conflict("product has sales or stock movements")
		}
		res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM products WHERE id = ?`), id)
		if err != nil {
			return err
		}
		return expectOne(res, "product", id)
	})
}
