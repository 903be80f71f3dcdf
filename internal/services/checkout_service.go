package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"qrshop/internal/domain"
	"qrshop/internal/events"
	"qrshop/internal/gateway"
	"qrshop/internal/repos"
	"qrshop/internal/validate"
)

// PaymentGateway is the part of the provider adapter the orchestrator uses.
type PaymentGateway interface {
	RequestQRPayment(ctx context.Context, req gateway.QRRequest) (gateway.QRPayment, error)
	QueryStatus(ctx context.Context, transactionID string) (gateway.Status, error)
}

type CheckoutResult struct {
	SaleID        int64             `json:"sale_id"`
	Status        domain.SaleStatus `json:"status"`
	Total         decimal.Decimal   `json:"total"`
	TransactionID string            `json:"transaction_id,omitempty"`
	QRImage       string            `json:"qr_image,omitempty"`
}

// Checkout turns a session cart into a sale. Implementations are selected by
// configuration, never by cart contents.
type Checkout interface {
	Name() string
	Checkout(ctx context.Context, userID int64, cart domain.Cart) (CheckoutResult, error)
}

type CheckoutDeps struct {
	DB       *sqlx.DB
	Users    *repos.UserRepo
	Products *repos.ProductRepo
	Stock    *repos.StockRepo
	Sales    *repos.SaleRepo
	Events   events.Publisher
	Recorder Recorder
	Log      *zap.Logger
}

func (d CheckoutDeps) withDefaults() CheckoutDeps {
	if d.Events == nil {
		d.Events = events.Noop{}
	}
	if d.Recorder == nil {
		d.Recorder = nopRecorder{}
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	return d
}

type GatewayOptions struct {
	Timeout      time.Duration
	DefaultTaxID string
}

// NewCheckout builds the strategy named by strategy ("gateway" or "direct").
func NewCheckout(strategy string, deps CheckoutDeps, gw PaymentGateway, opts GatewayOptions) (Checkout, error) {
	deps = deps.withDefaults()
	switch strategy {
	case "direct":
		return &DirectCheckout{core: checkoutCore{deps}}, nil
	case "gateway":
		if gw == nil {
			return nil, errors.New("gateway checkout needs a payment gateway")
		}
		if opts.Timeout <= 0 {
			opts.Timeout = 15 * time.Second
		}
		return &GatewayCheckout{core: checkoutCore{deps}, gw: gw, opts: opts}, nil
	}
	return nil, fmt.Errorf("unknown checkout strategy %q", strategy)
}

type checkoutCore struct {
	CheckoutDeps
}

// begin runs the checks that happen before any write.
func (c *checkoutCore) begin(ctx context.Context, userID int64, cart domain.Cart) (*domain.User, error) {
	if cart.IsEmpty() {
		return nil, domain.ErrEmptyCart
	}
	if userID <= 0 {
		return nil, domain.ErrUnauthenticated
	}
	u, err := c.Users.ByID(ctx, userID)
	if domain.IsNotFound(err) {
		return nil, domain.ErrUnauthenticated
	}
	return u, err
}

// place re-validates stock against the live rows, writes the sale and its
// lines and reserves stock, all on tx.
func (c *checkoutCore) place(ctx context.Context, tx *sqlx.Tx, userID int64, cart domain.Cart, status domain.SaleStatus) (domain.Sale, error) {
	lines := make([]domain.LineInput, 0, len(cart.Entries))
	for _, e := range cart.Entries {
		if e.Quantity <= 0 {
			return domain.Sale{}, domain.Invalid("quantity", "must be greater than zero")
		}
		p, err := c.Products.GetWith(ctx, tx, e.ProductID)
		if err != nil {
			return domain.Sale{}, err
		}
		if p.Stock < e.Quantity {
			return domain.Sale{}, &domain.InsufficientStockError{ProductID: p.ID, Requested: e.Quantity, Available: p.Stock}
		}
		lines = append(lines, domain.LineInput{ProductID: p.ID, Name: p.Name, Quantity: e.Quantity, UnitPrice: e.UnitPrice})
	}
	sale, err := c.Sales.Create(ctx, tx, userID, lines, status)
	if err != nil {
		return domain.Sale{}, err
	}
	for _, l := range sale.Lines {
		if err := c.Stock.Reserve(ctx, tx, l.ProductID, l.Quantity); err != nil {
			return domain.Sale{}, err
		}
	}
	return sale, nil
}

func (c *checkoutCore) finish(ctx context.Context, strategy string, res CheckoutResult, userID int64, err error) {
	if err != nil {
		c.Recorder.ObserveCheckout(strategy, outcomeOf(err))
		c.Log.Warn("checkout failed", zap.String("strategy", strategy), zap.Int64("user_id", userID), zap.Error(err))
		return
	}
	c.Recorder.ObserveCheckout(strategy, "ok")
	c.Log.Info("checkout placed", zap.String("strategy", strategy), zap.Int64("sale_id", res.SaleID),
		zap.Int64("user_id", userID), zap.String("status", string(res.Status)), zap.String("total", res.Total.StringFixed(2)))
	_ = c.Events.Publish(ctx, events.SaleEvent{
		Type:          events.TypeSaleCreated,
		SaleID:        res.SaleID,
		UserID:        userID,
		Status:        string(res.Status),
		Total:         res.Total.StringFixed(2),
		TransactionID: res.TransactionID,
	})
}

func outcomeOf(err error) string {
	var (
		ise *domain.InsufficientStockError
		ve  *domain.ValidationError
		ge  *domain.GatewayError
	)
	switch {
	case errors.Is(err, domain.ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, domain.ErrUnauthenticated):
		return "unauthenticated"
	case errors.As(err, &ise):
		return "insufficient_stock"
	case errors.As(err, &ve):
		return "invalid"
	case errors.As(err, &ge):
		return "gateway_error"
	case domain.IsNotFound(err):
		return "not_found"
	}
	return "error"
}

// DirectCheckout completes the sale immediately without a payment provider.
type DirectCheckout struct {
	core checkoutCore
}

func (d *DirectCheckout) Name() string { return "direct" }

func (d *DirectCheckout) Checkout(ctx context.Context, userID int64, cart domain.Cart) (res CheckoutResult, err error) {
	defer func() { d.core.finish(ctx, d.Name(), res, userID, err) }()

	if _, err = d.core.begin(ctx, userID, cart); err != nil {
		return CheckoutResult{}, err
	}
	err = repos.WithTx(ctx, d.core.DB, func(tx *sqlx.Tx) error {
		sale, err := d.core.place(ctx, tx, userID, cart, domain.StatusCompleted)
		if err != nil {
			return err
		}
		res = CheckoutResult{SaleID: sale.ID, Status: sale.Status, Total: sale.Total}
		return nil
	})
	if err != nil {
		return CheckoutResult{}, err
	}
	return res, nil
}

// GatewayCheckout leaves the sale pending and hands the buyer a QR code. The
// provider call happens inside the transaction, so a provider failure undoes
// the sale and its stock reservation.
type GatewayCheckout struct {
	core checkoutCore
	gw   PaymentGateway
	opts GatewayOptions
}

func (g *GatewayCheckout) Name() string { return "gateway" }

func (g *GatewayCheckout) payer(u *domain.User) (gateway.Payer, error) {
	phone, ok := validate.Phone(u.Phone.String)
	if !u.Phone.Valid || !ok {
		return gateway.Payer{}, domain.Invalid("phone", "a phone number is required to pay by QR")
	}
	taxID := g.opts.DefaultTaxID
	if u.TaxID.Valid {
		if t, ok := validate.TaxID(u.TaxID.String); ok {
			taxID = t
		}
	}
	return gateway.Payer{Name: u.Name, Phone: phone, Email: u.Email, TaxID: taxID}, nil
}

func (g *GatewayCheckout) Checkout(ctx context.Context, userID int64, cart domain.Cart) (res CheckoutResult, err error) {
	defer func() { g.core.finish(ctx, g.Name(), res, userID, err) }()

	u, err := g.core.begin(ctx, userID, cart)
	if err != nil {
		return CheckoutResult{}, err
	}
	payer, err := g.payer(u)
	if err != nil {
		return CheckoutResult{}, err
	}
	err = repos.WithTx(ctx, g.core.DB, func(tx *sqlx.Tx) error {
		sale, err := g.core.place(ctx, tx, userID, cart, domain.StatusPendingPayment)
		if err != nil {
			return err
		}
		ref := BuildReference(sale.ID)
		items := make([]gateway.Item, 0, len(sale.Lines))
		for _, l := range sale.Lines {
			items = append(items, gateway.Item{
				Serial:    l.ProductID,
				Product:   l.ProductName,
				Quantity:  l.Quantity,
				UnitPrice: l.UnitPrice,
				Discount:  decimal.Zero,
			})
		}
		gctx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
		defer cancel()
		qr, err := g.gw.RequestQRPayment(gctx, gateway.QRRequest{Reference: ref, Payer: payer, Items: items})
		if err != nil {
			return err
		}
		if err := g.core.Sales.SetTransaction(ctx, tx, sale.ID, qr.TransactionID, ref); err != nil {
			return err
		}
		res = CheckoutResult{
			SaleID:        sale.ID,
			Status:        sale.Status,
			Total:         sale.Total,
			TransactionID: qr.TransactionID,
			QRImage:       qr.QRImage,
		}
		return nil
	})
	if err != nil {
		return CheckoutResult{}, err
	}
	return res, nil
}
