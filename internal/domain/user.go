package domain

import "database/sql"

const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

type User struct {
	ID    int64          `db:"id"`
	Email string         `db:"email"`
	Name  string         `db:"name"`
	Phone sql.NullString `db:"phone"`
	TaxID sql.NullString `db:"tax_id"`
	Hash  string         `db:"password_hash"`
	Role  string         `db:"role"`
}

func (u *User) IsAdmin() bool { return u != nil && u.Role == RoleAdmin }
