package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/csrf"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"qrshop/internal/config"
	applog "qrshop/internal/log"
)

const (
	CSRFHeader   = "X-Csrf-Token"
	CSRFCookie   = "csrf_"
	callbackPath = "/api/v1/payments/callback"
)

// NewApp assembles middleware and routes around d.
func NewApp(cfg config.Config, d *Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName: "qrshop",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) && fe.Code < fiber.StatusInternalServerError {
				return fail(c, fe.Code, fe.Message, nil)
			}
			applog.Error(c, "server.error", err, nil)
			return fail(c, fiber.StatusInternalServerError, genericError, nil)
		},
	})
	app.Server().MaxRequestBodySize = 1 << 20

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(logger.New())
	app.Use(helmet.New())
	app.Use(d.Sessions.Attach())
	app.Use(limiter.New(limiter.Config{
		Max:        cfg.Server.RateLimit,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			switch c.Path() {
			case "/healthz", "/metrics", callbackPath:
				return true
			}
			return false
		},
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.global.hit", nil)
			return fail(c, fiber.StatusTooManyRequests, "rate limit exceeded, retry soon", nil)
		},
	}))
	if cfg.Server.CSRF {
		app.Use(csrf.New(csrf.Config{
			KeyLookup:      "header:" + CSRFHeader,
			CookieName:     CSRFCookie,
			CookieSameSite: "Lax",
			CookieSecure:   cfg.Server.CookieSecure,
			Expiration:     2 * time.Hour,
			// the relay authenticates with its own token, not a browser cookie
			Next: func(c *fiber.Ctx) bool { return c.Path() == callbackPath },
			ErrorHandler: func(c *fiber.Ctx, err error) error {
				applog.Security(c, "csrf.fail", map[string]any{"reason": err.Error()})
				return fail(c, fiber.StatusForbidden, "Security check failed. Please refresh and try again.", nil)
			},
		}))
	}

	user := RequireUser(d.Sessions)

	api := app.Group("/api/v1")
	api.Get("/categories", d.CatalogHandler.Categories)
	api.Get("/products", d.CatalogHandler.Products)
	api.Get("/products/:id", d.CatalogHandler.Product)

	api.Post("/login", limiter.New(limiter.Config{
		Max:        5,
		Expiration: 10 * time.Minute,
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.login.hit", nil)
			return fail(c, fiber.StatusTooManyRequests, "Too many attempts. Please try again later.", nil)
		},
	}), d.AuthHandler.Login)
	api.Post("/logout", d.AuthHandler.Logout)
	api.Get("/me", user, d.AuthHandler.Me)

	api.Get("/cart", d.CartHandler.View)
	api.Post("/cart", d.CartHandler.Add)
	api.Put("/cart/:productId", d.CartHandler.Update)
	api.Delete("/cart/:productId", d.CartHandler.Remove)

	// checkout checks the session user itself, after the cart
	api.Post("/checkout", d.CheckoutHandler.Place)
	api.Get("/sales", user, d.SalesHandler.Mine)
	api.Get("/sales/:id", user, d.SalesHandler.Get)

	api.Post("/payments/status", user, d.PaymentHandler.Status)
	api.Post("/payments/finalize", user, d.PaymentHandler.Finalize)
	api.Post("/payments/callback", RequireRelayToken(cfg.Payment.RelaySecret), d.PaymentHandler.Callback)

	admin := app.Group("/admin", RequireAdmin(d.Sessions, d.Auth))
	admin.Get("/", d.AdminHandler.Dashboard)
	admin.Get("/sales", d.AdminHandler.SalesList)
	admin.Get("/sales/:id", d.AdminHandler.SaleDetail)
	admin.Get("/movements", d.AdminHandler.Movements)
	admin.Post("/movements", d.AdminHandler.CreateMovement)
	admin.Put("/movements/:id", d.AdminHandler.UpdateMovement)
	admin.Delete("/movements/:id", d.AdminHandler.DeleteMovement)
	admin.Post("/categories", d.AdminHandler.CreateCategory)
	admin.Put("/categories/:id", d.AdminHandler.UpdateCategory)
	admin.Delete("/categories/:id", d.AdminHandler.DeleteCategory)
	admin.Post("/products", d.AdminHandler.CreateProduct)
	admin.Put("/products/:id", d.AdminHandler.UpdateProduct)
	admin.Delete("/products/:id", d.AdminHandler.DeleteProduct)

	app.Get("/healthz", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"ok": true}) })
	if d.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(d.Metrics.Handler()))
	}
	app.Use(func(c *fiber.Ctx) error {
		return fail(c, fiber.StatusNotFound, "Page not found", nil)
	})
	return app
}
