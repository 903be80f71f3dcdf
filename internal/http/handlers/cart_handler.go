package handlers

import (
	"github.com/gofiber/fiber/v2"

	applog "qrshop/internal/log"
	"qrshop/internal/services"
)

type CartHandler struct {
	Cart     *services.CartService
	Sessions *Sessions
}

type addCartRequest struct {
	ProductID int64 `json:"product_id" form:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" form:"quantity" validate:"required,min=1,max=99"`
}

type updateCartRequest struct {
	Quantity *int `json:"quantity" form:"quantity" validate:"required,min=0,max=99"`
}

func (h *CartHandler) View(c *fiber.Ctx) error {
	_, cart, err := h.Sessions.cart(c)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(h.Cart.View(&cart))
}

// POST /api/v1/cart
func (h *CartHandler) Add(c *fiber.Ctx) error {
	var req addCartRequest
	if err := bind(c, &req); err != nil {
		return respondErr(c, err)
	}
	sess, cart, err := h.Sessions.cart(c)
	if err != nil {
		return respondErr(c, err)
	}
	if err := h.Cart.Add(c.UserContext(), &cart, req.ProductID, req.Quantity); err != nil {
		return respondErr(c, err)
	}
	if err := saveCart(sess, cart); err != nil {
		return respondErr(c, err)
	}
	applog.Info(c, "cart.add", map[string]any{"product_id": req.ProductID, "quantity": req.Quantity})
	return c.JSON(h.Cart.View(&cart))
}

// PUT /api/v1/cart/:productId; quantity 0 drops the entry.
func (h *CartHandler) Update(c *fiber.Ctx) error {
	id, err := paramID(c, "productId")
	if err != nil {
		return respondErr(c, err)
	}
	var req updateCartRequest
	if err := bind(c, &req); err != nil {
		return respondErr(c, err)
	}
	sess, cart, err := h.Sessions.cart(c)
	if err != nil {
		return respondErr(c, err)
	}
	if err := h.Cart.Update(c.UserContext(), &cart, id, *req.Quantity); err != nil {
		return respondErr(c, err)
	}
	if err := saveCart(sess, cart); err != nil {
		return respondErr(c, err)
	}
	return c.JSON(h.Cart.View(&cart))
}

func (h *CartHandler) Remove(c *fiber.Ctx) error {
	id, err := paramID(c, "productId")
	if err != nil {
		return respondErr(c, err)
	}
	sess, cart, err := h.Sessions.cart(c)
	if err != nil {
		return respondErr(c, err)
	}
	if err := h.Cart.Remove(c.UserContext(), &cart, id); err != nil {
		return respondErr(c, err)
	}
	if err := saveCart(sess, cart); err != nil {
		return respondErr(c, err)
	}
	return c.JSON(h.Cart.View(&cart))
}
