package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/contalibre/contalibre/internal/app"
	"github.com/contalibre/contalibre/internal/balances"
	jobmetrics "github.com/contalibre/contalibre/internal/jobs"
	"github.com/contalibre/contalibre/internal/ledger"
	"github.com/contalibre/contalibre/internal/platform/cache"
	"github.com/contalibre/contalibre/internal/platform/db"
	"github.com/contalibre/contalibre/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := jobmetrics.NewMetrics(nil)

	ledgerService := ledger.NewService(ledger.NewRepository(pool))
	balancesService := balances.NewService(logger, ledgerService, redisClient, cfg.BalanceCacheTTL)

	integrityJob := jobs.NewLedgerIntegrityJob(pool, logger, metrics)
	warmupJob := jobs.NewBalancesWarmupJob(balancesService, logger, metrics)

	integrityTask, err := jobs.NewLedgerIntegrityTask()
	if err != nil {
		logger.Error("build integrity task", slog.Any("error", err))
		os.Exit(1)
	}
	warmupTask, err := jobs.NewBalancesWarmupTask()
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}

	handlers := map[string]asynq.Handler{
		jobs.TaskLedgerIntegrity: asynq.HandlerFunc(integrityJob.Handle),
		jobs.TaskBalancesWarmup:  asynq.HandlerFunc(warmupJob.Handle),
	}
	cron := []jobs.CronJob{
		{Spec: "0 1 * * *", Task: integrityTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		{Spec: "30 1 * * *", Task: warmupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
	}
	worker, err := jobs.NewWorker(asynq.RedisClientOpt{Addr: cfg.RedisAddr}, logger, handlers, cron)
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
