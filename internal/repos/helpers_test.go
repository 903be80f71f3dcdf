package repos_test

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"qrshop/internal/repos"
)

func memdb(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := repos.OpenDB(context.Background(), ":memory:", repos.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// fixture inserts one category, one user and the given products (price, stock).
func fixture(t *testing.T, db *sqlx.DB, products ...prod) (userID int64, productIDs []int64) {
	t.Helper()
	db.MustExec(`INSERT INTO categories(name) VALUES('General')`)
	require.NoError(t, db.Get(&userID, `INSERT INTO users(email, name, phone, password_hash, role)
		VALUES('ana@example.test', 'Ana', '70000001', 'x', 'customer') RETURNING id`))
	for _, p := range products {
		var id int64
		require.NoError(t, db.Get(&id, `INSERT INTO products(category_id, name, price, stock) VALUES(1, ?, ?, ?) RETURNING id`,
			p.Name, p.Price, p.Stock))
		productIDs = append(productIDs, id)
	}
	return userID, productIDs
}

type prod struct {
	Name  string
	Price string
	Stock int
}

func stockOf(t *testing.T, db *sqlx.DB, id int64) int {
	t.Helper()
	var n int
	require.NoError(t, db.Get(&n, `SELECT stock FROM products WHERE id = ?`, id))
	return n
}
