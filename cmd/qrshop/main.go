package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"qrshop/internal/config"
	"qrshop/internal/events"
	"qrshop/internal/gateway"
	"qrshop/internal/http/handlers"
	applog "qrshop/internal/log"
	"qrshop/internal/metrics"
	"qrshop/internal/repos"
)

func main() {
	// a missing .env is fine; the environment wins either way
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("[warn] .env: %v", err)
	}
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	logger, err := applog.New(applog.Config{Level: cfg.Log.Level, Encoding: cfg.Log.Encoding, File: cfg.Log.File})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	applog.SetLogger(logger)
	defer applog.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repos.OpenDB(ctx, cfg.Database.DSN, repos.Options{Seed: cfg.Database.Seed})
	if err != nil {
		logger.Fatal("open database", zap.Error(err))
	}
	defer db.Close()

	m := metrics.New()
	gw := gateway.New(gateway.Config{
		BaseURL:      cfg.Gateway.BaseURL,
		TokenService: cfg.Gateway.TokenService,
		TokenSecret:  cfg.Gateway.TokenSecret,
		CommerceID:   cfg.Gateway.CommerceID,
		CallbackURL:  cfg.Gateway.CallbackURL,
		ReturnURL:    cfg.Gateway.ReturnURL,
		Currency:     cfg.Gateway.Currency,
		ClientAmount: cfg.Gateway.ClientAmount,
		Timeout:      cfg.Gateway.Timeout,
	}, gateway.WithLogger(applog.Named("gateway")), gateway.WithRecorder(m))

	pub := events.New(cfg.Kafka.Brokers, cfg.Kafka.Topic, applog.Named("events"))
	defer pub.Close()

	deps, err := handlers.NewDeps(db, cfg, gw, pub, m)
	if err != nil {
		logger.Fatal("wire handlers", zap.Error(err))
	}
	app := handlers.NewApp(cfg, deps)

	go func() {
		<-ctx.Done()
		logger.Info("shutting down", zap.Duration("timeout", cfg.Server.ShutdownTimeout))
		if err := app.ShutdownWithTimeout(cfg.Server.ShutdownTimeout); err != nil {
			logger.Error("shutdown", zap.Error(err))
		}
	}()

	logger.Info("listening",
		zap.String("port", cfg.Server.Port),
		zap.String("checkout", cfg.Checkout.Strategy),
		zap.Bool("kafka", len(cfg.Kafka.Brokers) > 0),
	)
	if err := app.Listen(":" + cfg.Server.Port); err != nil {
		logger.Fatal("listen", zap.Error(err))
	}
}
