package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sahel-erp/sahel-erp/internal/accounting"
	"github.com/sahel-erp/sahel-erp/internal/app"
	"github.com/sahel-erp/sahel-erp/internal/inventory"
	"github.com/sahel-erp/sahel-erp/internal/observability"
	"github.com/sahel-erp/sahel-erp/internal/platform/cache"
	"github.com/sahel-erp/sahel-erp/internal/platform/db"
	"github.com/sahel-erp/sahel-erp/internal/reporting"
	"github.com/sahel-erp/sahel-erp/internal/shared"
	"github.com/sahel-erp/sahel-erp/internal/stock"
	"github.com/sahel-erp/sahel-erp/internal/treasury"
	"github.com/sahel-erp/sahel-erp/internal/warehouse"
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

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, reports run uncached", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient != nil {
			_ = redisClient.Close()
		}
	}()

	audit := shared.NewAuditLogger(pool)
	idempotency := shared.NewIdempotencyStore(pool)

	warehouseService := warehouse.NewService(warehouse.NewRepository(pool), audit)
	stockService := stock.NewService(stock.NewRepository(pool), audit, idempotency)
	inventoryService := inventory.NewService(inventory.NewRepository(pool), audit)
	accountingService := accounting.NewService(accounting.NewRepository(pool), audit)
	treasuryService := treasury.NewService(treasury.NewRepository(pool), audit, cfg.CashAccountIDs)
	reportingService := reporting.NewService(
		reporting.NewRepository(pool),
		reporting.NewCache(redisClient, cfg.ReportCacheTTL),
	)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		Metrics:           observability.NewMetrics(),
		WarehouseHandler:  warehouse.NewHandler(logger, warehouseService),
		StockHandler:      stock.NewHandler(logger, stockService),
		InventoryHandler:  inventory.NewHandler(logger, inventoryService),
		AccountingHandler: accounting.NewHandler(logger, accountingService),
		TreasuryHandler:   treasury.NewHandler(logger, treasuryService),
		ReportingHandler:  reporting.NewHandler(logger, reportingService),
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
