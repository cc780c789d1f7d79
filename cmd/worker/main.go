package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/sahel-erp/sahel-erp/internal/app"
	"github.com/sahel-erp/sahel-erp/internal/observability"
	"github.com/sahel-erp/sahel-erp/internal/platform/db"
	"github.com/sahel-erp/sahel-erp/internal/shared"
	"github.com/sahel-erp/sahel-erp/internal/stock"
	"github.com/sahel-erp/sahel-erp/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	audit := shared.NewAuditLogger(pool)
	idempotency := shared.NewIdempotencyStore(pool)
	stockService := stock.NewService(stock.NewRepository(pool), audit, idempotency)

	metrics := observability.NewMetrics()
	scanner := jobs.NewLowStockScanner(stockService, audit, logger, metrics)
	checker := jobs.NewMovementIntegrityChecker(pool, logger, metrics)

	scanTask, err := jobs.NewLowStockScanTask(jobs.LowStockScanPayload{})
	if err != nil {
		logger.Error("build scan task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskLowStockScan, Handler: scanner.Handle},
			{Type: jobs.TaskMovementIntegrity, Handler: checker.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.LowStockCron, Task: scanTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: cfg.MovementIntegrityCron, Task: jobs.NewMovementIntegrityTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting worker")
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
