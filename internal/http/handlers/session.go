package handlers

import (
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/google/uuid"

	"qrshop/internal/domain"
	applog "qrshop/internal/log"
)

const (
	sessUserID = "user_id"
	sessCart   = "cart"

	// SessionCookie carries the session id; the cart and login live server side.
	SessionCookie = "qrshop_sid"
)

type Sessions struct {
	store *session.Store
}

func NewSessions(cookieSecure bool) *Sessions {
	return &Sessions{store: session.New(session.Config{
		Expiration:     24 * time.Hour,
		KeyLookup:      "cookie:" + SessionCookie,
		CookieHTTPOnly: true,
		CookieSameSite: "Lax",
		CookieSecure:   cookieSecure,
		KeyGenerator:   uuid.NewString,
	})}
}

// UserID returns the logged-in user or 0.
func (s *Sessions) UserID(c *fiber.Ctx) int64 {
	sess, err := s.store.Get(c)
	if err != nil {
		return 0
	}
	id, _ := sess.Get(sessUserID).(int64)
	return id
}

// Attach exposes the session user to later handlers and to request logs.
func (s *Sessions) Attach() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if id := s.UserID(c); id > 0 {
			c.Locals("user_id", id)
		}
		return c.Next()
	}
}

func (s *Sessions) login(c *fiber.Ctx, userID int64) error {
	sess, err := s.store.Get(c)
	if err != nil {
		return err
	}
	// new id on privilege change; the cart survives
	if err := sess.Regenerate(); err != nil {
		return err
	}
	sess.Set(sessUserID, userID)
	return sess.Save()
}

func (s *Sessions) logout(c *fiber.Ctx) error {
	sess, err := s.store.Get(c)
	if err != nil {
		return err
	}
	return sess.Destroy()
}

func (s *Sessions) cart(c *fiber.Ctx) (*session.Session, domain.Cart, error) {
	sess, err := s.store.Get(c)
	if err != nil {
		return nil, domain.Cart{}, err
	}
	var cart domain.Cart
	if raw, ok := sess.Get(sessCart).([]byte); ok && len(raw) > 0 {
		if err := json.Unmarshal(raw, &cart); err != nil {
			applog.Security(c, "cart.decode.fail", nil)
			cart = domain.Cart{}
		}
	}
	return sess, cart, nil
}

func saveCart(sess *session.Session, cart domain.Cart) error {
	raw, err := json.Marshal(cart)
	if err != nil {
		return err
	}
	sess.Set(sessCart, raw)
	return sess.Save()
}

func userID(c *fiber.Ctx) int64 {
	id, _ := c.Locals("user_id").(int64)
	return id
}
