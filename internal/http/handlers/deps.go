package handlers

import (
	"github.com/jmoiron/sqlx"

	"qrshop/internal/config"
	"qrshop/internal/events"
	applog "qrshop/internal/log"
	"qrshop/internal/metrics"
	"qrshop/internal/repos"
	"qrshop/internal/services"
)

type Deps struct {
	Sessions *Sessions
	Auth     *services.AuthService
	Metrics  *metrics.Metrics

	AuthHandler     *AuthHandler
	CatalogHandler  *CatalogHandler
	CartHandler     *CartHandler
	CheckoutHandler *CheckoutHandler
	PaymentHandler  *PaymentHandler
	SalesHandler    *SalesHandler
	AdminHandler    *AdminHandler
}

// NewDeps wires repositories, services and handlers. gw is the payment
// provider client; pub and m may be nil.
func NewDeps(db *sqlx.DB, cfg config.Config, gw services.PaymentGateway, pub events.Publisher, m *metrics.Metrics) (*Deps, error) {
	catRepo := repos.NewCategoryRepo(db)
	prodRepo := repos.NewProductRepo(db)
	userRepo := repos.NewUserRepo(db)
	saleRepo := repos.NewSaleRepo(db)
	stockRepo := repos.NewStockRepo()
	moveRepo := repos.NewMovementRepo(db)

	if pub == nil {
		pub = events.Noop{}
	}
	var rec services.Recorder
	if m != nil {
		rec = m
	}

	checkout, err := services.NewCheckout(cfg.Checkout.Strategy, services.CheckoutDeps{
		DB:       db,
		Users:    userRepo,
		Products: prodRepo,
		Stock:    stockRepo,
		Sales:    saleRepo,
		Events:   pub,
		Recorder: rec,
		Log:      applog.Named("checkout"),
	}, gw, services.GatewayOptions{
		Timeout:      cfg.Gateway.Timeout,
		DefaultTaxID: cfg.Gateway.TaxID,
	})
	if err != nil {
		return nil, err
	}
	payments := &services.PaymentService{
		DB:             db,
		Sales:          saleRepo,
		Stock:          stockRepo,
		Gateway:        gw,
		Events:         pub,
		Recorder:       rec,
		Log:            applog.Named("payments"),
		VerifyFinalize: cfg.Payment.VerifyFinalize,
	}

	sessions := NewSessions(cfg.Server.CookieSecure)
	auth := &services.AuthService{Users: userRepo}
	catalog := services.NewCatalogService(catRepo, prodRepo)

	return &Deps{
		Sessions: sessions,
		Auth:     auth,
		Metrics:  m,

		AuthHandler:     &AuthHandler{Auth: auth, Sessions: sessions},
		CatalogHandler:  &CatalogHandler{Catalog: catalog},
		CartHandler:     &CartHandler{Cart: services.NewCartService(prodRepo), Sessions: sessions},
		CheckoutHandler: &CheckoutHandler{Checkout: checkout, Sessions: sessions},
		PaymentHandler:  &PaymentHandler{Payments: payments},
		SalesHandler:    &SalesHandler{Sales: saleRepo},
		AdminHandler: &AdminHandler{
			Sales:   saleRepo,
			Stock:   services.NewStockService(db, stockRepo, moveRepo, applog.Named("stock")),
			Catalog: catalog,
		},
	}, nil
}
