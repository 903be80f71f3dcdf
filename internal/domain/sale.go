package domain

import (
	"slices"

	"github.com/shopspring/decimal"
)

type SaleStatus string

const (
	StatusPendingPayment SaleStatus = "pending_payment"
	StatusPaid           SaleStatus = "pagado"
	StatusCompleted      SaleStatus = "completado"
	StatusFailed         SaleStatus = "fallido"
)

// GatewayPaidCode is the provider's status code for a settled payment.
const GatewayPaidCode = 2

func (s SaleStatus) IsTerminal() bool {
	switch s {
	case StatusPaid, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

func (s SaleStatus) Valid() bool {
	return s == StatusPendingPayment || s.IsTerminal()
}

// TransitionSource names who drives a status change.
type TransitionSource string

const (
	SourceCallback TransitionSource = "callback"
	SourcePolling  TransitionSource = "polling"
)

// AllowedFrom lists the states a source may move a sale out of.
// The relayed callback outranks client polling, so it may still confirm a
// polling-derived completado; polling only ever leaves pending_payment.
func (src TransitionSource) AllowedFrom() []SaleStatus {
	switch src {
	case SourceCallback:
		return []SaleStatus{StatusPendingPayment, StatusCompleted}
	case SourcePolling:
		return []SaleStatus{StatusPendingPayment}
	}
	return nil
}

// CanMove reports whether src may take a sale from one state to another. A
// completado sale was already seen paid, so a callback can only upgrade it
// to pagado and never fail it.
func (src TransitionSource) CanMove(from, to SaleStatus) bool {
	if from == to || !slices.Contains(src.AllowedFrom(), from) {
		return false
	}
	if src == SourceCallback && from == StatusCompleted {
		return to == StatusPaid
	}
	return true
}

// StatusForCallbackCode maps a provider status code to the terminal state it
// produces through the callback path.
func StatusForCallbackCode(code int) SaleStatus {
	if code == GatewayPaidCode {
		return StatusPaid
	}
	return StatusFailed
}

type Sale struct {
	ID            int64           `db:"id" json:"id"`
	UserID        int64           `db:"user_id" json:"user_id"`
	Total         decimal.Decimal `db:"total" json:"total"`
	Status        SaleStatus      `db:"status" json:"status"`
	TransactionID *string         `db:"transaction_id" json:"transaction_id,omitempty"`
	Reference     *string         `db:"reference" json:"reference,omitempty"`
	Version       int             `db:"version" json:"version"`
	CreatedAt     string          `db:"created_at" json:"created_at"`
	UpdatedAt     string          `db:"updated_at" json:"updated_at"`
	Lines         []SaleLine      `db:"-" json:"lines,omitempty"`
}

// SaleLine is immutable once written; UnitPrice is frozen at sale time.
type SaleLine struct {
	ID          int64           `db:"id" json:"id"`
	SaleID      int64           `db:"sale_id" json:"sale_id"`
	ProductID   int64           `db:"product_id" json:"product_id"`
	ProductName string          `db:"product_name" json:"product_name,omitempty"`
	Quantity    int             `db:"quantity" json:"quantity"`
	UnitPrice   decimal.Decimal `db:"unit_price" json:"unit_price"`
	Subtotal    decimal.Decimal `db:"subtotal" json:"subtotal"`
}

// LineInput is a validated request for one sale line.
type LineInput struct {
	ProductID int64
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
}

// SaleSummary is a list row for customer and admin sale listings.
type SaleSummary struct {
	ID            int64           `db:"id" json:"id"`
	UserID        int64           `db:"user_id" json:"user_id"`
	CustomerName  string          `db:"customer_name" json:"customer_name"`
	CustomerEmail string          `db:"customer_email" json:"customer_email"`
	Total         decimal.Decimal `db:"total" json:"total"`
	Status        SaleStatus      `db:"status" json:"status"`
	CreatedAt     string          `db:"created_at" json:"created_at"`
}
