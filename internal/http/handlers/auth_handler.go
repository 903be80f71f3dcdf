package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	applog "qrshop/internal/log"
	"qrshop/internal/services"
)

type AuthHandler struct {
	Auth     *services.AuthService
	Sessions *Sessions
}

type loginRequest struct {
	Email    string `json:"email" form:"email" validate:"required,email,max=100"`
	Password string `json:"password" form:"password" validate:"required,min=8,max=72"`
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := bind(c, &req); err != nil {
		applog.Security(c, "auth.login.fail", map[string]any{"reason": "bad_format"})
		return fail(c, fiber.StatusUnauthorized, "Invalid email or password", nil)
	}
	u, err := h.Auth.Login(c.UserContext(), req.Email, req.Password)
	if errors.Is(err, services.ErrBadCreds) {
		applog.Security(c, "auth.login.fail", map[string]any{"email": req.Email})
		return fail(c, fiber.StatusUnauthorized, "Invalid email or password", nil)
	}
	if err != nil {
		return respondErr(c, err)
	}
	if err := h.Sessions.login(c, u.ID); err != nil {
		return respondErr(c, err)
	}
	c.Locals("user_id", u.ID)
	applog.Audit(c, "auth.login.success", map[string]any{"role": u.Role})
	return c.JSON(fiber.Map{
		"success": true,
		"user":    fiber.Map{"id": u.ID, "email": u.Email, "name": u.Name, "role": u.Role},
	})
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	if err := h.Sessions.logout(c); err != nil {
		return respondErr(c, err)
	}
	applog.Audit(c, "auth.logout", nil)
	return c.JSON(fiber.Map{"success": true})
}

// Me reports the session user, or 401.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	u, err := h.Auth.User(c.UserContext(), userID(c))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{
		"id":        u.ID,
		"email":     u.Email,
		"name":      u.Name,
		"role":      u.Role,
		"has_phone": u.Phone.Valid && u.Phone.String != "",
	})
}
