package services_test

import (
	"context"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"qrshop/internal/domain"
	"qrshop/internal/gateway"
	"qrshop/internal/repos"
)

func memdb(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := repos.OpenDB(context.Background(), ":memory:", repos.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type world struct {
	db       *sqlx.DB
	users    *repos.UserRepo
	products *repos.ProductRepo
	stock    *repos.StockRepo
	sales    *repos.SaleRepo
	buyer    int64
	noPhone  int64
	a, b     int64 // products A (10.00) and B (5.00)
}

func newWorld(t *testing.T, stockA, stockB int) *world {
	t.Helper()
	db := memdb(t)
	w := &world{
		db:       db,
		users:    repos.NewUserRepo(db),
		products: repos.NewProductRepo(db),
		stock:    repos.NewStockRepo(),
		sales:    repos.NewSaleRepo(db),
	}
	db.MustExec(`INSERT INTO categories(name) VALUES('General')`)
	require.NoError(t, db.Get(&w.buyer, `INSERT INTO users(email, name, phone, password_hash, role)
		VALUES('ana@example.test', 'Ana', '70000001', 'x', 'customer') RETURNING id`))
	require.NoError(t, db.Get(&w.noPhone, `INSERT INTO users(email, name, password_hash, role)
		VALUES('leo@example.test', 'Leo', 'x', 'customer') RETURNING id`))
	require.NoError(t, db.Get(&w.a, `INSERT INTO products(category_id, name, price, stock) VALUES(1, 'A', 10.00, ?) RETURNING id`, stockA))
	require.NoError(t, db.Get(&w.b, `INSERT INTO products(category_id, name, price, stock) VALUES(1, 'B', 5.00, ?) RETURNING id`, stockB))
	return w
}

func (w *world) stockOf(t *testing.T, id int64) int {
	t.Helper()
	var n int
	require.NoError(t, w.db.Get(&n, `SELECT stock FROM products WHERE id = ?`, id))
	return n
}

func (w *world) count(t *testing.T, table string) int {
	t.Helper()
	var n int
	require.NoError(t, w.db.Get(&n, `SELECT COUNT(*) FROM `+table))
	return n
}

func (w *world) cart(entries ...domain.CartEntry) domain.Cart {
	return domain.Cart{Entries: entries}
}

func entry(id int64, qty int, price string) domain.CartEntry {
	return domain.CartEntry{ProductID: id, Quantity: qty, UnitPrice: dec(price)}
}

// fakeGateway records QR requests and answers with canned results.
type fakeGateway struct {
	mu       sync.Mutex
	qrErr    error
	status   gateway.Status
	stErr    error
	requests []gateway.QRRequest
	queries  int
}

func (f *fakeGateway) RequestQRPayment(_ context.Context, req gateway.QRRequest) (gateway.QRPayment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.qrErr != nil {
		return gateway.QRPayment{}, f.qrErr
	}
	return gateway.QRPayment{TransactionID: "TX-" + req.Reference, QRImage: "data:image/png;base64,AAAA"}, nil
}

func (f *fakeGateway) QueryStatus(_ context.Context, _ string) (gateway.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries++
	if f.stErr != nil {
		return gateway.Unknown(), f.stErr
	}
	return f.status, nil
}
