package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"qrshop/internal/domain"
	applog "qrshop/internal/log"
	"qrshop/internal/services"
	"qrshop/internal/validate"
)

const genericError = "Something went wrong. Please try again."

func fail(c *fiber.Ctx, status int, msg string, extra fiber.Map) error {
	body := fiber.Map{"success": false, "error": msg}
	for k, v := range extra {
		body[k] = v
	}
	return c.Status(status).JSON(body)
}

// respondErr maps service errors onto HTTP responses. Anything unrecognised
// is logged and hidden behind a generic 500.
func respondErr(c *fiber.Ctx, err error) error {
	var (
		ve  *domain.ValidationError
		nf  *domain.NotFoundError
		ise *domain.InsufficientStockError
		ge  *domain.GatewayError
		ce  *domain.ConflictError
	)
	switch {
	case errors.As(err, &ve):
		applog.Security(c, "validation.fail", map[string]any{"field": ve.Field})
		return fail(c, fiber.StatusBadRequest, ve.Message, fiber.Map{"field": ve.Field})
	case errors.Is(err, domain.ErrEmptyCart):
		return fail(c, fiber.StatusBadRequest, "Your cart is empty", nil)
	case errors.Is(err, domain.ErrUnauthenticated):
		return fail(c, fiber.StatusUnauthorized, "Login required", nil)
	case errors.Is(err, domain.ErrPaymentPending):
		return fail(c, fiber.StatusConflict, "Payment has not been confirmed yet", nil)
	case errors.As(err, &ise):
		return fail(c, fiber.StatusConflict, "Not enough stock", fiber.Map{
			"product_id": ise.ProductID,
			"requested":  ise.Requested,
			"available":  ise.Available,
		})
	case errors.As(err, &ce):
		return fail(c, fiber.StatusConflict, ce.Message, nil)
	case errors.As(err, &nf):
		return fail(c, fiber.StatusNotFound, "Not found", nil)
	case errors.As(err, &ge):
		applog.Error(c, "gateway.error", err, map[string]any{"op": ge.Op})
		return fail(c, fiber.StatusBadGateway, "The payment provider is unavailable. Please try again.", nil)
	case errors.Is(err, services.ErrBadCreds):
		return fail(c, fiber.StatusUnauthorized, "Invalid email or password", nil)
	}
	applog.Error(c, "server.error", err, nil)
	return fail(c, fiber.StatusInternalServerError, genericError, nil)
}

// bind parses the request body into dst and runs its validate tags.
func bind(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return domain.Invalid("", "malformed request body")
	}
	return validate.Struct(dst)
}

func paramID(c *fiber.Ctx, name string) (int64, error) {
	id, ok := validate.ID(c.Params(name))
	if !ok {
		return 0, domain.Invalid(name, "must be a positive integer")
	}
	return id, nil
}
