package domain

import "github.com/shopspring/decimal"

type Category struct {
	ID          int64  `db:"id" json:"id"`
	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description,omitempty"`
}

type Product struct {
	ID          int64           `db:"id" json:"id"`
	CategoryID  int64           `db:"category_id" json:"category_id"`
	Name        string          `db:"name" json:"name"`
	Description string          `db:"description" json:"description,omitempty"`
	Price       decimal.Decimal `db:"price" json:"price"`
	Stock       int             `db:"stock" json:"stock"` // never negative
	Image       string          `db:"image" json:"image,omitempty"`
	CreatedAt   string          `db:"created_at" json:"created_at"`
}

// Availability is what the storefront shows next to a product.
type Availability struct {
	Status string `json:"status"` // IN_STOCK | LOW_STOCK | OUT_OF_STOCK
	Qty    int    `json:"qty,omitempty"`
}

const lowStockThreshold = 3

func AvailabilityOf(stock int) Availability {
	switch {
	case stock <= 0:
		return Availability{Status: "OUT_OF_STOCK"}
	case stock <= lowStockThreshold:
		return Availability{Status: "LOW_STOCK", Qty: stock}
	default:
		return Availability{Status: "IN_STOCK", Qty: stock}
	}
}
