package handlers

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	applog "qrshop/internal/log"
	"qrshop/internal/services"
)

type PaymentHandler struct {
	Payments *services.PaymentService
}

type pollRequest struct {
	TransactionID string `json:"transaction_id" form:"transaction_id" validate:"required,max=64"`
}

type finalizeRequest struct {
	SaleID int64 `json:"sale_id" form:"sale_id" validate:"required,gt=0"`
}

// callbackFields reads the relayed notification from either a JSON or a form
// body. Estado may arrive as a number or a string.
func callbackFields(c *fiber.Ctx) func(string) string {
	if !strings.Contains(c.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		return func(k string) string { return strings.TrimSpace(c.FormValue(k)) }
	}
	var m map[string]any
	_ = json.Unmarshal(c.Body(), &m)
	return func(k string) string {
		switch v := m[k].(type) {
		case string:
			return strings.TrimSpace(v)
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
		return ""
	}
}

func ack(c *fiber.Ctx, ok bool, msg string) error {
	if ok {
		return c.JSON(fiber.Map{"error": 0, "status": 1, "message": msg})
	}
	return c.JSON(fiber.Map{"error": 1, "status": 0, "message": msg})
}

// Callback always answers 200 so the relay does not retry a notification
// that was received.
func (h *PaymentHandler) Callback(c *fiber.Ctx) error {
	get := callbackFields(c)
	ref, estado, txID := get("Referencia"), get("Estado"), get("IdTransaccion")
	applog.Audit(c, "payment.callback.received", map[string]any{
		"reference": ref, "estado": estado, "transaction_id": txID,
	})
	if ref == "" {
		return ack(c, true, "Referencia requerida")
	}
	code, err := strconv.Atoi(estado)
	if err != nil {
		// not a provider code; treated as a failed payment
		code = -1
	}
	out, err := h.Payments.HandleCallback(c.UserContext(), services.CallbackInput{
		Reference:     ref,
		Code:          code,
		TransactionID: txID,
	})
	if err != nil {
		applog.Error(c, "payment.callback.fail", err, map[string]any{"reference": ref})
		return ack(c, false, "Error al procesar el pago")
	}
	if out.Applied {
		applog.Audit(c, "payment.callback.applied", map[string]any{"sale_id": out.SaleID, "sale_status": out.Status})
	}
	return ack(c, true, out.Message)
}

// POST /api/v1/payments/status
func (h *PaymentHandler) Status(c *fiber.Ctx) error {
	var req pollRequest
	if err := bind(c, &req); err != nil {
		return respondErr(c, err)
	}
	res, err := h.Payments.PollStatus(c.UserContext(), userID(c), strings.TrimSpace(req.TransactionID))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "status": res})
}

// POST /api/v1/payments/finalize
func (h *PaymentHandler) Finalize(c *fiber.Ctx) error {
	var req finalizeRequest
	if err := bind(c, &req); err != nil {
		return respondErr(c, err)
	}
	res, err := h.Payments.Finalize(c.UserContext(), userID(c), req.SaleID)
	if err != nil {
		return respondErr(c, err)
	}
	if res.Applied {
		applog.Audit(c, "payment.finalize", map[string]any{"sale_id": res.SaleID})
	}
	return c.JSON(fiber.Map{"success": true, "sale": res})
}
