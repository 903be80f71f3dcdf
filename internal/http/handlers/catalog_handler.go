package handlers

import (
	"github.com/gofiber/fiber/v2"

	"qrshop/internal/services"
	"qrshop/internal/validate"
)

type CatalogHandler struct {
	Catalog *services.CatalogService
}

func (h *CatalogHandler) Categories(c *fiber.Ctx) error {
	cats, err := h.Catalog.Categories(c.UserContext())
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"categories": cats})
}

// Products lists the catalog, optionally filtered by ?category=.
func (h *CatalogHandler) Products(c *fiber.Ctx) error {
	var category int64
	if raw := c.Query("category"); raw != "" {
		id, ok := validate.ID(raw)
		if !ok {
			return fail(c, fiber.StatusBadRequest, "must be a positive integer", fiber.Map{"field": "category"})
		}
		category = id
	}
	products, err := h.Catalog.Products(c.UserContext(), category, c.QueryInt("limit", 50), c.QueryInt("offset", 0))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"products": products})
}

func (h *CatalogHandler) Product(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondErr(c, err)
	}
	p, avail, err := h.Catalog.Product(c.UserContext(), id)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"product": p, "availability": avail})
}
