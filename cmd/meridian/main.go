package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/meridianhq/meridian/internal/app"
	"github.com/meridianhq/meridian/internal/billing"
	"github.com/meridianhq/meridian/internal/contracts"
	"github.com/meridianhq/meridian/internal/mailer"
	"github.com/meridianhq/meridian/internal/observability"
	"github.com/meridianhq/meridian/internal/orders"
	"github.com/meridianhq/meridian/internal/platform/cache"
	"github.com/meridianhq/meridian/internal/platform/db"
	"github.com/meridianhq/meridian/internal/quotes"
	"github.com/meridianhq/meridian/internal/shared"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	if err := db.Migrate(cfg.PGDSN); err != nil {
		logger.Error("run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	authenticator := shared.NewAuthenticator(redisClient, logger)
	auditLogger := shared.NewAuditLogger(dbpool)
	metrics := observability.NewMetrics()
	validate := validator.New()

	sender := mailer.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom)
	notifier := mailer.NewDispatcher(sender, logger, cfg.PublicBaseURL)

	invoicer := billing.NewStripeInvoicer(cfg.StripeSecretKey, cfg.InvoiceDueDays, logger)

	ordersRepo := orders.NewRepository(dbpool)
	projector := orders.NewProjector(ordersRepo, auditLogger, logger)

	quotesRepo := quotes.NewRepository(dbpool)
	quotesService := quotes.NewService(quotes.ServiceParams{
		Repo:      quotesRepo,
		Orders:    ordersRepo,
		Projector: projector,
		Invoicer:  invoicer,
		Notifier:  notifier,
		Audit:     auditLogger,
		Logger:    logger,
		Metrics:   metrics,
		Config: quotes.ServiceConfig{
			DefaultValidDays:      cfg.QuoteValidDays,
			DefaultDepositPercent: cfg.DepositPercent,
			Currency:              cfg.Currency,
		},
	})
	quotesHandler := quotes.NewHandler(logger, quotesService, validate)

	contractsRepo := contracts.NewRepository(dbpool)
	contractsService := contracts.NewService(contracts.ServiceParams{
		Repo:       contractsRepo,
		Orders:     ordersRepo,
		Projector:  projector,
		Notifier:   notifier,
		Audit:      auditLogger,
		Logger:     logger,
		Metrics:    metrics,
		AdminEmail: cfg.AdminNotifyAddress,
		Config: contracts.ServiceConfig{
			DefaultValidDays: cfg.ContractValidDays,
		},
	})
	contractsHandler := contracts.NewHandler(logger, contractsService, validate)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		Authenticator:    authenticator,
		QuotesHandler:    quotesHandler,
		ContractsHandler: contractsHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
