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

	"github.com/bindery-erp/bindery-erp/internal/app"
	"github.com/bindery-erp/bindery-erp/internal/batch"
	"github.com/bindery-erp/bindery-erp/internal/bindingadvice"
	"github.com/bindery-erp/bindery-erp/internal/dispatch"
	"github.com/bindery-erp/bindery-erp/internal/jobcard"
	"github.com/bindery-erp/bindery-erp/internal/observability"
	"github.com/bindery-erp/bindery-erp/internal/platform/cache"
	"github.com/bindery-erp/bindery-erp/internal/platform/db"
	"github.com/bindery-erp/bindery-erp/internal/shared"
	"github.com/bindery-erp/bindery-erp/jobs"
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
		logger.Warn("redis unavailable, serving without cache", slog.Any("error", err))
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

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(pool, logger)
	idempotency := shared.NewIdempotencyStore(pool)

	adviceRepo := bindingadvice.NewRepository(pool)
	cardRepo := jobcard.NewRepository(pool)
	batchRepo := batch.NewRepository(pool)
	dispatchRepo := dispatch.NewRepository(pool)

	adviceService := bindingadvice.NewService(adviceRepo, cardRepo, auditLogger)

	var progressCache *jobcard.Cache
	if redisClient != nil {
		progressCache = jobcard.NewCache(redisClient, cfg.ProgressCacheTTL)
	}
	batchService := batch.NewService(batchRepo, cardRepo, progressCache, auditLogger, metrics)
	cardService := jobcard.NewService(cardRepo, adviceRepo, batchService, progressCache, auditLogger, metrics)
	dispatchService := dispatch.NewService(dispatchRepo, batchRepo, idempotency, auditLogger, metrics)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:               logger,
		Config:               cfg,
		BindingAdviceHandler: bindingadvice.NewHandler(logger, adviceService),
		JobCardHandler:       jobcard.NewHandler(logger, cardService),
		BatchHandler:         batch.NewHandler(logger, batchService),
		DispatchHandler:      dispatch.NewHandler(logger, dispatchService),
		JobHandler:           jobs.NewHandler(inspector, jobClient, logger),
		Metrics:              metrics,
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
