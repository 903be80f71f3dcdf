package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"qrshop/internal/domain"
)

type Payer struct {
	Name  string
	Phone string // digits only
	Email string
	TaxID string // digits only
}

type Item struct {
	Serial    int64 // catalog product id
	Product   string
	Quantity  int
	UnitPrice decimal.Decimal
	Discount  decimal.Decimal
}

func (it Item) Total() decimal.Decimal {
	return it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))).Sub(it.Discount)
}

type QRRequest struct {
	Reference string
	Payer     Payer
	Items     []Item
}

type QRPayment struct {
	TransactionID string
	QRImage       string // data URI, base64 PNG
}

type qrDetail struct {
	Serial   string      `json:"Serial"`
	Product  string      `json:"Producto"`
	Quantity int         `json:"Cantidad"`
	Price    json.Number `json:"Precio"`
	Discount json.Number `json:"Descuento"`
	Total    json.Number `json:"Total"`
}

type qrBody struct {
	CommerceID    string      `json:"tcCommerceID"`
	PaymentNumber string      `json:"tcNroPago"`
	UserName      string      `json:"tcNombreUsuario"`
	TaxID         json.Number `json:"tnCiNit"`
	Phone         json.Number `json:"tnTelefono"`
	Email         string      `json:"tcCorreo"`
	ClientAmount  string      `json:"tnMontoClienteEmpresa"`
	Currency      int         `json:"tnMoneda"`
	CallbackURL   string      `json:"tcUrlCallBack"`
	ReturnURL     string      `json:"tcUrlReturn"`
	Detail        []qrDetail  `json:"taPedidoDetalle"`
}

type qrPayload struct {
	QRImage string `json:"qrImage"`
}

func money(d decimal.Decimal) json.Number { return json.Number(d.StringFixed(2)) }

func digits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (c *Client) buildQRBody(req QRRequest) (qrBody, error) {
	if req.Reference == "" {
		return qrBody{}, errors.New("missing order reference")
	}
	if len(req.Items) == 0 {
		return qrBody{}, errors.New("order has no items")
	}
	if !digits(req.Payer.Phone) {
		return qrBody{}, errors.New("payer phone must be numeric")
	}
	if !digits(req.Payer.TaxID) {
		return qrBody{}, errors.New("payer tax id must be numeric")
	}
	body := qrBody{
		CommerceID:    c.cfg.CommerceID,
		PaymentNumber: req.Reference,
		UserName:      req.Payer.Name,
		TaxID:         json.Number(req.Payer.TaxID),
		Phone:         json.Number(req.Payer.Phone),
		Email:         req.Payer.Email,
		ClientAmount:  c.cfg.ClientAmount,
		Currency:      c.cfg.Currency,
		CallbackURL:   c.cfg.CallbackURL,
		ReturnURL:     c.cfg.ReturnURL,
	}
	for _, it := range req.Items {
		body.Detail = append(body.Detail, qrDetail{
			Serial:   strconv.FormatInt(it.Serial, 10),
			Product:  it.Product,
			Quantity: it.Quantity,
			Price:    money(it.UnitPrice),
			Discount: money(it.Discount),
			Total:    money(it.Total()),
		})
	}
	return body, nil
}

// RequestQRPayment asks the provider for a QR code paying req. The provider
// answers values as "<transactionId>;<json>" with the image inside the json.
func (c *Client) RequestQRPayment(ctx context.Context, req QRRequest) (QRPayment, error) {
	body, err := c.buildQRBody(req)
	if err != nil {
		return QRPayment{}, &domain.GatewayError{Op: OpQR, Err: err}
	}
	token, err := c.Authenticate(ctx)
	if err != nil {
		return QRPayment{}, err
	}
	env, err := c.post(ctx, OpQR, "/pagoqr", token, body)
	if err != nil {
		return QRPayment{}, err
	}
	p, err := parseQRValues(env.Values)
	if err != nil {
		c.log.Warn("malformed qr response", zap.String("reference", req.Reference), zap.Error(err))
		return QRPayment{}, &domain.GatewayError{Op: OpQR, Err: err}
	}
	c.log.Info("qr issued", zap.String("reference", req.Reference), zap.String("transaction_id", p.TransactionID))
	return p, nil
}

func parseQRValues(raw json.RawMessage) (QRPayment, error) {
	var values string
	if len(raw) == 0 || json.Unmarshal(raw, &values) != nil {
		return QRPayment{}, errors.New("values is not a string")
	}
	txID, rest, ok := strings.Cut(values, ";")
	txID = strings.TrimSpace(txID)
	if !ok || txID == "" {
		return QRPayment{}, errors.New("values is not <transactionId>;<json>")
	}
	var payload qrPayload
	if err := json.Unmarshal([]byte(rest), &payload); err != nil {
		return QRPayment{}, errors.New("qr payload is not json")
	}
	if payload.QRImage == "" {
		return QRPayment{}, errors.New("qr payload has no qrImage")
	}
	return QRPayment{TransactionID: txID, QRImage: "data:image/png;base64," + payload.QRImage}, nil
}
