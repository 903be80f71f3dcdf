package services

import (
	"context"

	"github.com/shopspring/decimal"

	"qrshop/internal/domain"
)

// ProductReader is the catalog lookup the cart needs.
type ProductReader interface {
	Get(ctx context.Context, id int64) (domain.Product, error)
}

// CartService applies cart operations to a session-owned cart value.
type CartService struct {
	Prods ProductReader
}

func NewCartService(prods ProductReader) *CartService {
	return &CartService{Prods: prods}
}

func (s *CartService) Add(ctx context.Context, cart *domain.Cart, productID int64, qty int) error {
	if qty < 1 {
		return domain.Invalid("quantity", "must be at least 1")
	}
	p, err := s.Prods.Get(ctx, productID)
	if err != nil {
		return err
	}
	cart.Merge(domain.CartEntry{
		ProductID: p.ID,
		Name:      p.Name,
		Image:     p.Image,
		Quantity:  qty,
		UnitPrice: p.Price,
	})
	return nil
}

// Update sets the quantity of an entry; zero removes it.
func (s *CartService) Update(ctx context.Context, cart *domain.Cart, productID int64, qty int) error {
	if qty < 0 {
		return domain.Invalid("quantity", "must not be negative")
	}
	if qty == 0 {
		return s.Remove(ctx, cart, productID)
	}
	if !cart.SetQuantity(productID, qty) {
		return domain.NotFound("cart entry", productID)
	}
	return nil
}

func (s *CartService) Remove(_ context.Context, cart *domain.Cart, productID int64) error {
	if !cart.Remove(productID) {
		return domain.NotFound("cart entry", productID)
	}
	return nil
}

type CartLine struct {
	domain.CartEntry
	Subtotal decimal.Decimal `json:"subtotal"`
}

type CartView struct {
	Items []CartLine      `json:"items"`
	Total decimal.Decimal `json:"total"`
	Count int             `json:"count"`
}

func (s *CartService) View(cart *domain.Cart) CartView {
	v := CartView{Items: []CartLine{}, Total: decimal.Zero}
	if cart == nil {
		return v
	}
	for _, e := range cart.Entries {
		v.Items = append(v.Items, CartLine{CartEntry: e, Subtotal: e.Subtotal()})
		v.Count += e.Quantity
	}
	v.Total = cart.Total()
	return v
}
