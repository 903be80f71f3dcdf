package handlers

import (
	"github.com/gofiber/fiber/v2"

	"qrshop/internal/domain"
	applog "qrshop/internal/log"
	"qrshop/internal/repos"
	"qrshop/internal/services"
)

type AdminHandler struct {
	Sales   *repos.SaleRepo
	Stock   *services.StockService
	Catalog *services.CatalogService
}

type movementRequest struct {
	ProductID int64  `json:"product_id" form:"product_id" validate:"required,gt=0"`
	Kind      string `json:"kind" form:"kind" validate:"required,movementkind"`
	Quantity  int    `json:"quantity" form:"quantity" validate:"required,min=1,max=100000"`
	Note      string `json:"note" form:"note" validate:"max=200"`
}

func (r movementRequest) input() services.MovementInput {
	return services.MovementInput{
		ProductID: r.ProductID,
		Kind:      domain.MovementKind(r.Kind),
		Quantity:  r.Quantity,
		Note:      r.Note,
	}
}

// GET /admin
func (h *AdminHandler) Dashboard(c *fiber.Ctx) error {
	counts, err := h.Sales.CountByStatus(c.UserContext())
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"sales_by_status": counts})
}

// GET /admin/sales
func (h *AdminHandler) SalesList(c *fiber.Ctx) error {
	sales, err := h.Sales.ListLatest(c.UserContext(), c.QueryInt("limit", 100))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"sales": sales})
}

// GET /admin/sales/:id
func (h *AdminHandler) SaleDetail(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondErr(c, err)
	}
	sale, err := h.Sales.Get(c.UserContext(), id)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"sale": sale})
}

// GET /admin/movements
func (h *AdminHandler) Movements(c *fiber.Ctx) error {
	ms, err := h.Stock.List(c.UserContext(), c.QueryInt("limit", 100))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"movements": ms})
}

// POST /admin/movements
func (h *AdminHandler) CreateMovement(c *fiber.Ctx) error {
	var req movementRequest
	if err := bind(c, &req); err != nil {
		return respondErr(c, err)
	}
	m, err := h.Stock.Create(c.UserContext(), req.input())
	if err != nil {
		return respondErr(c, err)
	}
	applog.Audit(c, "admin.movement.create", map[string]any{
		"movement_id": m.ID, "product_id": m.ProductID, "kind": m.Kind, "quantity": m.Quantity,
	})
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "movement": m})
}

// PUT /admin/movements/:id
func (h *AdminHandler) UpdateMovement(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondErr(c, err)
	}
	var req movementRequest
	if err := bind(c, &req); err != nil {
		return respondErr(c, err)
	}
	m, err := h.Stock.Update(c.UserContext(), id, req.input())
	if err != nil {
		return respondErr(c, err)
	}
	applog.Audit(c, "admin.movement.update", map[string]any{
		"movement_id": id, "product_id": m.ProductID, "kind": m.Kind, "quantity": m.Quantity,
	})
	return c.JSON(fiber.Map{"success": true, "movement": m})
}

// DELETE /admin/movements/:id
func (h *AdminHandler) DeleteMovement(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondErr(c, err)
	}
	if err := h.Stock.Delete(c.UserContext(), id); err != nil {
		return respondErr(c, err)
	}
	applog.Audit(c, "admin.movement.delete", map[string]any{"movement_id": id})
	return c.JSON(fiber.Map{"success": true})
}
