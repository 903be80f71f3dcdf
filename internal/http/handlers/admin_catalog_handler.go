package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"qrshop/internal/domain"
	applog "qrshop/internal/log"
	"qrshop/internal/services"
)

type categoryRequest struct {
	Name        string `json:"name" form:"name" validate:"required,max=100"`
	Description string `json:"description" form:"description" validate:"max=500"`
}

type productRequest struct {
	CategoryID  int64  `json:"category_id" form:"category_id" validate:"required,gt=0"`
	Name        string `json:"name" form:"name" validate:"required,max=100"`
	Description string `json:"description" form:"description" validate:"max=1000"`
	Price       string `json:"price" form:"price" validate:"required,numeric"`
	Stock       int    `json:"stock" form:"stock" validate:"min=0,max=100000"`
	Image       string `json:"image" form:"image" validate:"max=255"`
}

func (r productRequest) input() (services.ProductInput, error) {
	price, err := decimal.NewFromString(r.Price)
	if err != nil {
		return services.ProductInput{}, domain.Invalid("price", "must be a number")
	}
	return services.ProductInput{
		CategoryID:  r.CategoryID,
		Name:        r.Name,
		Description: r.Description,
		Price:       price,
		Stock:       r.Stock,
		Image:       r.Image,
	}, nil
}

// POST /admin/categories
func (h *AdminHandler) CreateCategory(c *fiber.Ctx) error {
	var req categoryRequest
	if err := bind(c, &req); err != nil {
		return respondErr(c, err)
	}
	cat, err := h.Catalog.CreateCategory(c.UserContext(), services.CategoryInput{Name: req.Name, Description: req.Description})
	if err != nil {
		return respondErr(c, err)
	}
	applog.Audit(c, "admin.category.create", map[string]any{"category_id": cat.ID})
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "category": cat})
}

// PUT /admin/categories/:id
func (h *AdminHandler) UpdateCategory(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondErr(c, err)
	}
	var req categoryRequest
	if err := bind(c, &req); err != nil {
		return respondErr(c, err)
	}
	cat, err := h.Catalog.UpdateCategory(c.UserContext(), id, services.CategoryInput{Name: req.Name, Description: req.Description})
	if err != nil {
		return respondErr(c, err)
	}
	applog.Audit(c, "admin.category.update", map[string]any{"category_id": id})
	return c.JSON(fiber.Map{"success": true, "category": cat})
}

// DELETE /admin/categories/:id
func (h *AdminHandler) DeleteCategory(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondErr(c, err)
	}
	if err := h.Catalog.DeleteCategory(c.UserContext(), id); err != nil {
		return respondErr(c, err)
	}
	applog.Audit(c, "admin.category.delete", map[string]any{"category_id": id})
	return c.JSON(fiber.Map{"success": true})
}

// POST /admin/products
func (h *AdminHandler) CreateProduct(c *fiber.Ctx) error {
	var req productRequest
	if err := bind(c, &req); err != nil {
		return respondErr(c, err)
	}
	in, err := req.input()
	if err != nil {
		return respondErr(c, err)
	}
	p, err := h.Catalog.CreateProduct(c.UserContext(), in)
	if err != nil {
		return respondErr(c, err)
	}
	applog.Audit(c, "admin.product.create", map[string]any{"product_id": p.ID, "stock": p.Stock})
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "product": p})
}

// PUT /admin/products/:id
func (h *AdminHandler) UpdateProduct(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondErr(c, err)
	}
	var req productRequest
	if err := bind(c, &req); err != nil {
		return respondErr(c, err)
	}
	in, err := req.input()
	if err != nil {
		return respondErr(c, err)
	}
	p, err := h.Catalog.UpdateProduct(c.UserContext(), id, in)
	if err != nil {
		return respondErr(c, err)
	}
	applog.Audit(c, "admin.product.update", map[string]any{"product_id": id, "price": p.Price.StringFixed(2)})
	return c.JSON(fiber.Map{"success": true, "product": p})
}

// DELETE /admin/products/:id
func (h *AdminHandler) DeleteProduct(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondErr(c, err)
	}
	if err := h.Catalog.DeleteProduct(c.UserContext(), id); err != nil {
		return respondErr(c, err)
	}
	applog.Audit(c, "admin.product.delete", map[string]any{"product_id": id})
	return c.JSON(fiber.Map{"success": true})
}
