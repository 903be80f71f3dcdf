package handlers

import (
	"github.com/gofiber/fiber/v2"

	"qrshop/internal/domain"
	applog "qrshop/internal/log"
	"qrshop/internal/repos"
	"qrshop/internal/services"
)

type CheckoutHandler struct {
	Checkout services.Checkout
	Sessions *Sessions
}

type checkoutResponse struct {
	Success bool `json:"success"`
	services.CheckoutResult
}

// POST /api/v1/checkout turns the session cart into a sale. The cart is only
// cleared once the sale is committed.
func (h *CheckoutHandler) Place(c *fiber.Ctx) error {
	sess, cart, err := h.Sessions.cart(c)
	if err != nil {
		return respondErr(c, err)
	}
	res, err := h.Checkout.Checkout(c.UserContext(), userID(c), cart)
	if err != nil {
		applog.Security(c, "checkout.fail", map[string]any{"strategy": h.Checkout.Name(), "reason": err.Error()})
		return respondErr(c, err)
	}
	if err := saveCart(sess, domain.Cart{}); err != nil {
		applog.Error(c, "checkout.cart.clear", err, map[string]any{"sale_id": res.SaleID})
	}
	applog.Audit(c, "checkout.placed", map[string]any{
		"sale_id":  res.SaleID,
		"strategy": h.Checkout.Name(),
		"total":    res.Total.StringFixed(2),
	})
	return c.JSON(checkoutResponse{Success: true, CheckoutResult: res})
}

type SalesHandler struct {
	Sales *repos.SaleRepo
}

// GET /api/v1/sales
func (h *SalesHandler) Mine(c *fiber.Ctx) error {
	sales, err := h.Sales.ListByUser(c.UserContext(), userID(c))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"sales": sales})
}

// GET /api/v1/sales/:id; other users' sales look missing.
func (h *SalesHandler) Get(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondErr(c, err)
	}
	sale, err := h.Sales.Get(c.UserContext(), id)
	if err != nil {
		return respondErr(c, err)
	}
	if sale.UserID != userID(c) {
		return respondErr(c, domain.NotFound("sale", id))
	}
	return c.JSON(fiber.Map{"sale": sale})
}
