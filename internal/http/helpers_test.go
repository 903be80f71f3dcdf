package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"qrshop/internal/config"
	"qrshop/internal/gateway"
	"qrshop/internal/http/handlers"
	applog "qrshop/internal/log"
	"qrshop/internal/metrics"
	"qrshop/internal/repos"
)

// Seeded catalog ids.
const (
	gameBoy  = 1 // 129.99, stock 8
	philco   = 4 // 349.50, stock 2
	password = "Passw0rd!"
)

// provider is a stand-in for the QR payment service.
type provider struct {
	mu     sync.Mutex
	next   int
	code   int // EstadoTransaccion answered by /consultartransaccion
	qrFail bool
}

func (p *provider) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"error":0,"status":1,"values":"tok"}`)
	})
	mux.HandleFunc("/pagoqr", func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.qrFail {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		p.next++
		fmt.Fprintf(w, `{"error":0,"status":1,"values":"TX-%d;{\"qrImage\":\"iVBORw0KGgo=\"}"}`, p.next)
	})
	mux.HandleFunc("/consultartransaccion", func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		defer p.mu.Unlock()
		fmt.Fprintf(w, `{"error":0,"status":1,"values":{"EstadoTransaccion":%d,"messageEstado":"estado"}}`, p.code)
	})
	return mux
}

type harness struct {
	t    *testing.T
	app  *fiber.App
	db   *sqlx.DB
	prov *provider
	logs *observer.ObservedLogs

	jar  map[string]*http.Cookie
	csrf string
}

func testConfig(baseURL string) config.Config {
	return config.Config{
		Server: config.ServerConfig{RateLimit: 1000},
		Gateway: config.GatewayConfig{
			BaseURL:      baseURL,
			TokenService: "svc",
			TokenSecret:  "secret",
			CommerceID:   "commerce-1",
			Currency:     2,
			ClientAmount: "0.01",
			TaxID:        "1234567",
			Timeout:      2 * time.Second,
		},
		Checkout: config.CheckoutConfig{Strategy: config.StrategyGateway},
		Payment:  config.PaymentConfig{VerifyFinalize: true},
	}
}

func newHarness(t *testing.T, tweak ...func(*config.Config)) *harness {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	t.Cleanup(applog.SetLogger(zap.New(core)))

	db, err := repos.OpenDB(context.Background(), ":memory:", repos.Options{Seed: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	prov := &provider{code: 1}
	srv := httptest.NewServer(prov.handler())
	t.Cleanup(srv.Close)

	cfg := testConfig(srv.URL)
	for _, f := range tweak {
		f(&cfg)
	}
	m := metrics.New()
	gw := gateway.New(gateway.Config{
		BaseURL:      cfg.Gateway.BaseURL,
		TokenService: cfg.Gateway.TokenService,
		TokenSecret:  cfg.Gateway.TokenSecret,
		CommerceID:   cfg.Gateway.CommerceID,
		Currency:     cfg.Gateway.Currency,
		ClientAmount: cfg.Gateway.ClientAmount,
		Timeout:      cfg.Gateway.Timeout,
	}, gateway.WithRecorder(m))
	deps, err := handlers.NewDeps(db, cfg, gw, nil, m)
	require.NoError(t, err)

	return &harness{
		t:    t,
		app:  handlers.NewApp(cfg, deps),
		db:   db,
		prov: prov,
		logs: logs,
		jar:  map[string]*http.Cookie{},
	}
}

// send issues a request with the harness cookies and keeps whatever cookies
// come back.
func (h *harness) send(req *http.Request) *http.Response {
	h.t.Helper()
	for _, c := range h.jar {
		req.AddCookie(c)
	}
	if h.csrf != "" {
		req.Header.Set(handlers.CSRFHeader, h.csrf)
	}
	resp, err := h.app.Test(req, -1)
	require.NoError(h.t, err)
	for _, c := range resp.Cookies() {
		if c.MaxAge < 0 || (!c.Expires.IsZero() && c.Expires.Before(time.Now())) || c.Value == "" {
			delete(h.jar, c.Name)
			continue
		}
		h.jar[c.Name] = c
	}
	return resp
}

// do sends body as JSON and decodes a JSON object reply.
func (h *harness) do(method, path string, body any) (int, map[string]any) {
	h.t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(h.t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	resp := h.send(req)
	defer resp.Body.Close()
	out := map[string]any{}
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out)
	}
	return resp.StatusCode, out
}

func (h *harness) login(email string) {
	h.t.Helper()
	code, body := h.do(http.MethodPost, "/api/v1/login", map[string]string{"email": email, "password": password})
	require.Equal(h.t, http.StatusOK, code, body)
}

func (h *harness) addToCart(productID int64, qty int) {
	h.t.Helper()
	code, body := h.do(http.MethodPost, "/api/v1/cart", map[string]any{"product_id": productID, "quantity": qty})
	require.Equal(h.t, http.StatusOK, code, body)
}

func (h *harness) stockOf(id int64) int {
	h.t.Helper()
	var n int
	require.NoError(h.t, h.db.Get(&n, `SELECT stock FROM products WHERE id = ?`, id))
	return n
}

func (h *harness) saleStatus(id int64) string {
	h.t.Helper()
	var s string
	require.NoError(h.t, h.db.Get(&s, `SELECT status FROM sales WHERE id = ?`, id))
	return s
}

func num(v any) int64 {
	f, _ := v.(float64)
	return int64(f)
}

func itoa(n int64) string { return strconv.FormatInt(n, 10) }

func newGet(path string) *http.Request { return httptest.NewRequest(http.MethodGet, path, nil) }

func readAll(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(raw)
}
