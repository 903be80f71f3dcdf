// Package gateway talks to the PagoFácil QR payment service: it obtains an
// access token, requests QR payments and queries transaction status.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"qrshop/internal/domain"
)

const (
	OpLogin  = "login"
	OpQR     = "qr"
	OpStatus = "status"

	// UnknownStatusMessage is reported when the provider cannot be read.
	UnknownStatusMessage = "Estado desconocido"
)

type Config struct {
	BaseURL      string
	TokenService string
	TokenSecret  string
	CommerceID   string
	CallbackURL  string
	ReturnURL    string
	Currency     int
	ClientAmount string
	Timeout      time.Duration
}

// Recorder receives one sample per provider call.
type Recorder interface {
	ObserveGateway(op, outcome string, took time.Duration)
}

type Client struct {
	cfg  Config
	http *http.Client
	log  *zap.Logger
	rec  Recorder
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }
func WithLogger(l *zap.Logger) Option      { return func(c *Client) { c.log = l } }
func WithRecorder(r Recorder) Option       { return func(c *Client) { c.rec = r } }

func New(cfg Config, opts ...Option) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	c := &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}, log: zap.NewNop()}
	for _, o := range opts {
		o(c)
	}
	return c
}

// envelope is the common response wrapper; values changes shape per endpoint.
type envelope struct {
	Error   int             `json:"error"`
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Values  json.RawMessage `json:"values"`
}

func (c *Client) post(ctx context.Context, op, path, token string, body any) (envelope, error) {
	start := time.Now()
	env, err := c.do(ctx, path, token, body)
	outcome := "ok"
	if err != nil {
		outcome = "error"
		c.log.Warn("gateway call failed", zap.String("op", op), zap.Duration("took", time.Since(start)), zap.Error(err))
	} else {
		c.log.Debug("gateway call", zap.String("op", op), zap.Duration("took", time.Since(start)))
	}
	if c.rec != nil {
		c.rec.ObserveGateway(op, outcome, time.Since(start))
	}
	if err != nil {
		return env, &domain.GatewayError{Op: op, Err: err}
	}
	return env, nil
}

func (c *Client) do(ctx context.Context, path, token string, body any) (envelope, error) {
	var env envelope
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	payload, err := json.Marshal(body)
	if err != nil {
		return env, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return env, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return env, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return env, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return env, fmt.Errorf("http status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return env, fmt.Errorf("decode response: %w", err)
	}
	return env, nil
}

type loginRequest struct {
	TokenService string `json:"TokenService"`
	TokenSecret  string `json:"TokenSecret"`
}

// Authenticate exchanges the static service credentials for a bearer token.
func (c *Client) Authenticate(ctx context.Context) (string, error) {
	env, err := c.post(ctx, OpLogin, "/login", "", loginRequest{
		TokenService: c.cfg.TokenService,
		TokenSecret:  c.cfg.TokenSecret,
	})
	if err != nil {
		return "", err
	}
	var token string
	if len(env.Values) == 0 || json.Unmarshal(env.Values, &token) != nil || token == "" {
		reason := "response has no token"
		if env.Message != "" {
			reason = env.Message
		}
		return "", &domain.GatewayError{Op: OpLogin, Err: &domain.AuthError{Reason: reason}}
	}
	return token, nil
}
