package domain

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyCart       = errors.New("cart is empty")
	ErrUnauthenticated = errors.New("login required")
	ErrPaymentPending  = errors.New("payment not confirmed yet")
)

// ValidationError is a user-correctable problem with one input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func Invalid(field, msg string) error { return &ValidationError{Field: field, Message: msg} }

type NotFoundError struct {
	Entity string
	ID     any
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %v not found", e.Entity, e.ID) }

func NotFound(entity string, id any) error { return &NotFoundError{Entity: entity, ID: id} }

type InsufficientStockError struct {
	ProductID int64
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d (requested %d, available %d)",
		e.ProductID, e.Requested, e.Available)
}

// ConflictError is a request that cannot apply to the current state, such as
// deleting a category that still has products.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

func Conflict(msg string) error { return &ConflictError{Message: msg} }

// GatewayError is any failure talking to the payment provider.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string { return "gateway " + e.Op + ": " + e.Err.Error() }
func (e *GatewayError) Unwrap() error { return e.Err }

// AuthError means the provider did not hand out an access token. It always
// travels wrapped in a GatewayError.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string { return "token not issued: " + e.Reason }

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
