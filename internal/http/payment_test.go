package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qrshop/internal/config"
)

// placeSale checks out one Game Boy for the demo customer.
func placeSale(t *testing.T, h *harness) (int64, string, string) {
	t.Helper()
	h.login("cliente@qrshop.test")
	h.addToCart(gameBoy, 1)
	code, body := h.do(http.MethodPost, "/api/v1/checkout", nil)
	require.Equal(t, http.StatusOK, code, body)
	id := num(body["sale_id"])
	var ref string
	require.NoError(t, h.db.Get(&ref, `SELECT reference FROM sales WHERE id = ?`, id))
	return id, ref, body["transaction_id"].(string)
}

func (h *harness) callback(fields map[string]any) (int, map[string]any) {
	h.t.Helper()
	return h.do(http.MethodPost, "/api/v1/payments/callback", fields)
}

func TestCallbackPaidIsIdempotent(t *testing.T) {
	h := newHarness(t)
	id, ref, tx := placeSale(t, h)

	for i := 0; i < 2; i++ {
		code, body := h.callback(map[string]any{"Referencia": ref, "Estado": 2, "IdTransaccion": tx})
		require.Equal(t, http.StatusOK, code)
		assert.EqualValues(t, 0, num(body["error"]))
		assert.EqualValues(t, 1, num(body["status"]))
	}
	assert.Equal(t, "pagado", h.saleStatus(id))
	var version int
	require.NoError(t, h.db.Get(&version, `SELECT version FROM sales WHERE id = ?`, id))
	assert.Equal(t, 2, version)
	assert.Equal(t, 7, h.stockOf(gameBoy))
}

func TestCallbackFormFailureReleasesStock(t *testing.T) {
	h := newHarness(t)
	id, ref, tx := placeSale(t, h)
	assert.Equal(t, 7, h.stockOf(gameBoy))

	form := url.Values{"Referencia": {ref}, "Estado": {"7"}, "IdTransaccion": {tx}}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/callback", strings.NewReader(form.Encode()))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)
	resp := h.send(req)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, "fallido", h.saleStatus(id))
	assert.Equal(t, 8, h.stockOf(gameBoy))

	// a late "paid" does not resurrect a failed sale
	code, _ := h.callback(map[string]any{"Referencia": ref, "Estado": "2"})
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "fallido", h.saleStatus(id))
	assert.Equal(t, 8, h.stockOf(gameBoy))
}

func TestCallbackUnresolvedStillAcknowledged(t *testing.T) {
	h := newHarness(t)
	for _, ref := range []string{"garbage", "ORDEN-999-abcdef0123456", ""} {
		code, body := h.callback(map[string]any{"Referencia": ref, "Estado": 2})
		assert.Equal(t, http.StatusOK, code, ref)
		assert.EqualValues(t, 0, num(body["error"]), ref)
		assert.EqualValues(t, 1, num(body["status"]), ref)
	}
	var n int
	require.NoError(t, h.db.Get(&n, `SELECT COUNT(*) FROM sales`))
	assert.Zero(t, n)
}

func TestPollThenFinalize(t *testing.T) {
	h := newHarness(t)
	id, _, tx := placeSale(t, h)

	code, body := h.do(http.MethodPost, "/api/v1/payments/status", map[string]string{"transaction_id": tx})
	require.Equal(t, http.StatusOK, code, body)
	st := body["status"].(map[string]any)
	assert.Equal(t, "pending", st["state"])

	code, _ = h.do(http.MethodPost, "/api/v1/payments/finalize", map[string]any{"sale_id": id})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "pending_payment", h.saleStatus(id))

	h.prov.mu.Lock()
	h.prov.code = 2
	h.prov.mu.Unlock()
	_, body = h.do(http.MethodPost, "/api/v1/payments/status", map[string]string{"transaction_id": tx})
	assert.Equal(t, "paid", body["status"].(map[string]any)["state"])

	code, body = h.do(http.MethodPost, "/api/v1/payments/finalize", map[string]any{"sale_id": id})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "completado", h.saleStatus(id))

	code, _ = h.do(http.MethodPost, "/api/v1/payments/status", map[string]string{"transaction_id": "TX-404"})
	assert.Equal(t, http.StatusNotFound, code)
}

func TestCallbackOverridesPollingCompletion(t *testing.T) {
	h := newHarness(t, func(c *config.Config) { c.Payment.VerifyFinalize = false })
	id, ref, _ := placeSale(t, h)

	code, _ := h.do(http.MethodPost, "/api/v1/payments/finalize", map[string]any{"sale_id": id})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "completado", h.saleStatus(id))

	h.callback(map[string]any{"Referencia": ref, "Estado": 2})
	assert.Equal(t, "pagado", h.saleStatus(id))

	// finalize after the callback keeps the callback's word
	code, body := h.do(http.MethodPost, "/api/v1/payments/finalize", map[string]any{"sale_id": id})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "pagado", body["sale"].(map[string]any)["status"])
}

func TestCallbackRelayToken(t *testing.T) {
	const secret = "relay-secret"
	h := newHarness(t, func(c *config.Config) { c.Payment.RelaySecret = secret })
	id, ref, _ := placeSale(t, h)

	post := func(token string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/callback",
			strings.NewReader(`{"Referencia":"`+ref+`","Estado":2}`))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		if token != "" {
			req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
		}
		return h.send(req).StatusCode
	}
	sign := func(key string) string {
		tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "relay"}).SignedString([]byte(key))
		require.NoError(t, err)
		return tok
	}

	assert.Equal(t, http.StatusUnauthorized, post(""))
	assert.Equal(t, http.StatusUnauthorized, post(sign("wrong")))
	assert.Equal(t, "pending_payment", h.saleStatus(id))

	assert.Equal(t, http.StatusOK, post(sign(secret)))
	assert.Equal(t, "pagado", h.saleStatus(id))
}

func TestCallbackForeignReferenceLeavesSaleAlone(t *testing.T) {
	h := newHarness(t)
	id, ref, tx := placeSale(t, h)
	h.prov.mu.Lock()
	h.prov.code = 2
	h.prov.mu.Unlock()

	code, body := h.do(http.MethodPost, "/api/v1/payments/finalize", map[string]any{"sale_id": id})
	require.Equal(t, http.StatusOK, code, body)
	require.Equal(t, "completado", h.saleStatus(id))

	for _, fields := range []map[string]any{
		{"Referencia": "ORDEN-" + itoa(id) + "-notours", "Estado": 7, "IdTransaccion": "SOMEONE-ELSE"},
		{"Referencia": ref, "Estado": 7, "IdTransaccion": "SOMEONE-ELSE"},
		{"Referencia": ref, "Estado": 7, "IdTransaccion": tx},
	} {
		code, body := h.callback(fields)
		require.Equal(t, http.StatusOK, code)
		assert.EqualValues(t, 1, num(body["status"]))
	}
	assert.Equal(t, "completado", h.saleStatus(id))
	assert.Equal(t, 7, h.stockOf(gameBoy))
}
