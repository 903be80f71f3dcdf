package domain

import "github.com/shopspring/decimal"

// CartEntry is one product line of a session cart. Price, name and image are
// copied from the catalog when the entry is first added.
type CartEntry struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Image     string          `json:"image,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

func (e CartEntry) Subtotal() decimal.Decimal {
	return e.UnitPrice.Mul(decimal.NewFromInt(int64(e.Quantity)))
}

// Cart belongs to exactly one session. Entries keep insertion order.
type Cart struct {
	Entries []CartEntry `json:"entries"`
}

func (c *Cart) IsEmpty() bool { return c == nil || len(c.Entries) == 0 }

func (c *Cart) index(productID int64) int {
	for i, e := range c.Entries {
		if e.ProductID == productID {
			return i
		}
	}
	return -1
}

func (c *Cart) Find(productID int64) (CartEntry, bool) {
	if i := c.index(productID); i >= 0 {
		return c.Entries[i], true
	}
	return CartEntry{}, false
}

// Merge adds e to the cart, summing quantities when the product is already
// present. The existing price snapshot wins.
func (c *Cart) Merge(e CartEntry) {
	if i := c.index(e.ProductID); i >= 0 {
		c.Entries[i].Quantity += e.Quantity
		return
	}
	c.Entries = append(c.Entries, e)
}

// SetQuantity reports false when the product is not in the cart.
func (c *Cart) SetQuantity(productID int64, qty int) bool {
	i := c.index(productID)
	if i < 0 {
		return false
	}
	c.Entries[i].Quantity = qty
	return true
}

func (c *Cart) Remove(productID int64) bool {
	i := c.index(productID)
	if i < 0 {
		return false
	}
	c.Entries = append(c.Entries[:i], c.Entries[i+1:]...)
	return true
}

func (c *Cart) Clear() { c.Entries = nil }

func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, e := range c.Entries {
		total = total.Add(e.Subtotal())
	}
	return total
}
