package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/contalibre/contalibre/internal/app"
	"github.com/contalibre/contalibre/internal/balances"
	"github.com/contalibre/contalibre/internal/ledger"
	"github.com/contalibre/contalibre/internal/observability"
	"github.com/contalibre/contalibre/internal/platform/cache"
	"github.com/contalibre/contalibre/internal/platform/db"
	"github.com/contalibre/contalibre/internal/sanitize"
	"github.com/contalibre/contalibre/internal/terceros"
	"github.com/contalibre/contalibre/internal/transactions"
	"github.com/contalibre/contalibre/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.Connect(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.Connect(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, balance cache disabled", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	cipher, err := sanitize.NewCipher(cfg.SanitizeKey)
	if err != nil {
		logger.Error("init field cipher", slog.Any("error", err))
		os.Exit(1)
	}
	sanitizer := sanitize.New()

	ledgerRepo := ledger.NewRepository(pool)
	ledgerService := ledger.NewService(ledgerRepo)
	ledgerHandler := ledger.NewHandler(logger, ledgerService)

	tercerosRepo := terceros.NewRepository(pool)
	tercerosService := terceros.NewService(tercerosRepo, cipher)
	tercerosHandler := terceros.NewHandler(logger, tercerosService, sanitizer)

	transactionsRepo := transactions.NewRepository(pool)
	transactionsService := transactions.NewService(transactionsRepo, ledgerService, tercerosService)
	transactionsHandler := transactions.NewHandler(logger, transactionsService)

	balancesService := balances.NewService(logger, ledgerService, redisClient, cfg.BalanceCacheTTL)
	balancesHandler := balances.NewHandler(logger, balancesService)

	metrics := observability.NewMetrics()

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, jobsClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:              logger,
		Config:              cfg,
		Metrics:             metrics,
		LedgerHandler:       ledgerHandler,
		BalancesHandler:     balancesHandler,
		TercerosHandler:     tercerosHandler,
		TransactionsHandler: transactionsHandler,
		JobsHandler:         jobsHandler,
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
