package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/payreconapp/payrecon/internal/cache"
	"github.com/payreconapp/payrecon/internal/config"
	"github.com/payreconapp/payrecon/internal/db"
	"github.com/payreconapp/payrecon/internal/email"
	"github.com/payreconapp/payrecon/internal/gateway"
	"github.com/payreconapp/payrecon/internal/handlers"
	"github.com/payreconapp/payrecon/internal/services"
)

type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	DB            *pgxpool.Pool
	CacheProvider cache.Provider
	Handlers      *handlers.Handlers
	Sweeper       *services.Sweeper
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := newLogger(cfg)

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	database, err := db.Connect(startupCtx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	cacheProvider, err := cache.NewProvider(cache.Config{
		Provider:              cfg.CacheProvider,
		RedisConnectionString: cfg.RedisConnectionString,
	})
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to initialize cache provider: %w", err)
	}

	orderStore := db.NewOrderStore(database)
	transactionStore := db.NewTransactionStore(database)
	invoiceStore := db.NewInvoiceStore(database)

	gatewayClient := gateway.NewRazorpayClient(cfg.RazorpayKeyID, cfg.RazorpayKeySecret, cfg.RazorpayWebhookSecret)

	var emailSender services.PaymentEmailSender
	if cfg.EmailProvider != "" {
		emailProvider, err := email.NewProvider(email.Config{
			Provider: cfg.EmailProvider,
			APIKey:   cfg.EmailAPIKey,
			From:     cfg.EmailFrom,
		})
		if err != nil {
			closeCacheProvider(logger, cacheProvider)
			database.Close()
			return nil, fmt.Errorf("failed to initialize email provider: %w", err)
		}
		emailSender = services.NewEmailPaymentSender(emailProvider)
	}

	engine := services.NewTransitionEngine(
		orderStore,
		transactionStore,
		invoiceStore,
		emailSender,
		cfg,
		logger.With("component", "transition_engine"),
	)
	verifier := services.NewVerificationService(orderStore, engine, gatewayClient, cfg, logger.With("component", "verification_service"))
	sweeper := services.NewSweeper(orderStore, engine, cfg.SweepInterval, cfg.SweepWaitWindow, logger.With("component", "sweeper"))

	h, err := handlers.New(handlers.Dependencies{
		Config:        cfg,
		Verifier:      verifier,
		OrderStore:    orderStore,
		InvoiceStore:  invoiceStore,
		Ledger:        transactionStore,
		Gateway:       gatewayClient,
		CacheProvider: cacheProvider,
		Logger:        logger,
	})
	if err != nil {
		closeCacheProvider(logger, cacheProvider)
		database.Close()
		return nil, fmt.Errorf("failed to initialize handlers: %w", err)
	}

	return &App{
		Config:        cfg,
		Logger:        logger,
		DB:            database,
		CacheProvider: cacheProvider,
		Handlers:      h,
		Sweeper:       sweeper,
	}, nil
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.CacheProvider != nil {
		closeCacheProvider(a.Logger, a.CacheProvider)
	}
	if a.DB != nil {
		a.DB.Close()
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	format := strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	switch format {
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	case "text", "":
		return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
			Level: cfg.LogLevel,
		}))
	}
	return slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: cfg.LogLevel}))
}

func closeCacheProvider(logger *slog.Logger, provider cache.Provider) {
	if provider == nil {
		return
	}
	if err := provider.Close(); err != nil && logger != nil {
		logger.Warn("failed to close cache provider", "error", err)
	}
}
