package repos

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"

	applog "qrshop/internal/log"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrations embed.FS

type Options struct {
	Seed bool
}

func isPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// OpenDB opens sqlite (default) or postgres depending on the DSN, applies the
// embedded migrations and optionally seeds demo data.
func OpenDB(ctx context.Context, dsn string, opts Options) (*sqlx.DB, error) {
	driver, dialect, dir := "sqlite", goose.DialectSQLite3, "migrations/sqlite"
	if isPostgres(dsn) {
		driver, dialect, dir = "pgx", goose.DialectPostgres, "migrations/postgres"
	}
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == "sqlite" {
		// one writer; also keeps ":memory:" databases on a single connection
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := migrate(ctx, db, dialect, dir); err != nil {
		_ = db.Close()
		return nil, err
	}
	if opts.Seed {
		if err := seed(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return db, nil
}

func migrate(ctx context.Context, db *sqlx.DB, dialect goose.Dialect, dir string) error {
	sub, err := fs.Sub(migrations, dir)
	if err != nil {
		return err
	}
	p, err := goose.NewProvider(dialect, db.DB, sub)
	if err != nil {
		return err
	}
	res, err := p.Up(ctx)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	for _, r := range res {
		applog.Named("db").Info("migration applied", zap.String("source", r.Source.Path), zap.Duration("took", r.Duration))
	}
	return nil
}

// seed inserts the demo catalog when empty and makes sure the demo users exist.
func seed(ctx context.Context, db *sqlx.DB) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var n int
	if err := tx.GetContext(ctx, &n, `SELECT COUNT(*) FROM categories`); err != nil {
		return err
	}
	if n == 0 {
		applog.Named("db").Info("seeding demo catalog")
		cats := []struct{ name, desc string }{
			{"Consolas Retro", "Consolas y portátiles clásicas"},
			{"Radios Antiguas", "Radios de válvulas y transistores"},
		}
		ids := make([]int64, len(cats))
		for i, c := range cats {
			if err := tx.QueryRowxContext(ctx, tx.Rebind(`INSERT INTO categories(name, description) VALUES(?, ?) RETURNING id`),
				c.name, c.desc).Scan(&ids[i]); err != nil {
				return err
			}
		}
		products := []struct {
			cat        int
			name, desc string
			price      string
			stock      int
		}{
			{0, "Game Boy Color", "Consola portátil", "129.99", 8},
			{0, "NES", "Consola clásica de 8 bits", "199.00", 5},
			{0, "Super Nintendo", "Consola de 16 bits con control", "199.00", 7},
			{1, "Philco 1939", "Radio de válvulas", "349.50", 2},
			{1, "Zenith Royal 500", "Radio de transistores de bolsillo", "89.00", 5},
		}
		for _, p := range products {
			if _, err := tx.ExecContext(ctx, tx.Rebind(`
				INSERT INTO products(category_id, name, description, price, stock)
				VALUES(?, ?, ?, ?, ?)`), ids[p.cat], p.name, p.desc, p.price, p.stock); err != nil {
				return err
			}
		}
	}

	users := []struct {
		email, name, phone, role string
	}{
		{"cliente@qrshop.test", "Cliente Demo", "70000001", "customer"},
		{"sintelefono@qrshop.test", "Sin Teléfono", "", "customer"},
		{"admin@qrshop.test", "Admin", "70000009", "admin"},
	}
	for _, u := range users {
		h, err := bcrypt.GenerateFromPassword([]byte("Passw0rd!"), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		var phone any
		if u.phone != "" {
			phone = u.phone
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO users(email, name, phone, password_hash, role)
			VALUES(?, ?, ?, ?, ?)
			ON CONFLICT(email) DO NOTHING`), u.email, u.name, phone, string(h), u.role); err != nil {
			return err
		}
	}
	return tx.Commit()
}
