package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/groupledger/groupledger/internal/app"
	"github.com/groupledger/groupledger/internal/fxrate"
	"github.com/groupledger/groupledger/internal/ledger"
	"github.com/groupledger/groupledger/internal/masterdata/codemaster"
	"github.com/groupledger/groupledger/internal/masterdata/entities"
	"github.com/groupledger/groupledger/internal/masterdata/periods"
	"github.com/groupledger/groupledger/internal/reporting"
	"github.com/groupledger/groupledger/internal/shared"
	"github.com/groupledger/groupledger/internal/storage"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := pgxpool.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	progressStore := shared.NewProgressStore(redisClient, cfg.ProgressTTL)
	uploadLocks := shared.NewScopeLock(redisClient, cfg.UploadLockTTL)

	entitiesRepo := entities.NewRepository(dbpool)
	fxRepo := fxrate.NewRepository(dbpool)
	fxService := fxrate.NewService(fxRepo, entitiesRepo, logger)
	entitiesService := entities.NewService(entitiesRepo, fxService, cfg.ReportingCurrency, logger)

	codeMasterRepo := codemaster.NewRepository(dbpool)
	codeMasterService := codemaster.NewService(codeMasterRepo, progressStore, logger)

	periodsRepo := periods.NewRepository(dbpool)
	periodsService := periods.NewService(periodsRepo)

	auditRepo := storage.NewAuditRepository(dbpool)

	ledgerRepo := ledger.NewRepository(dbpool)
	ledgerService := ledger.NewService(ledger.ServiceDeps{
		Repo:           ledgerRepo,
		Entities:       entitiesRepo,
		Periods:        periodsService,
		Categories:     codeMasterService,
		Rates:          fxService.Resolver(),
		Locks:          uploadLocks,
		Progress:       progressStore,
		Uploader:       storage.NoopUploader{},
		Audits:         auditRepo,
		Logger:         logger,
		MaxErrorDetail: cfg.MaxRowErrorDetail,
	})
	// Legacy rate changes push recomputed conversions back into the ledger.
	fxService.SetRecomputer(ledgerService)

	reportingRepo := reporting.NewRepository(dbpool)
	reportingService := reporting.NewService(reportingRepo, entitiesService, ledgerService, auditRepo, logger)

	router := app.NewRouter(app.RouterParams{
		Logger: logger,
		Config: cfg,

		EntitiesHandler:   entities.NewHandler(logger, entitiesService),
		CodeMasterHandler: codemaster.NewHandler(logger, codeMasterService, progressStore, cfg.MaxUploadBytes),
		PeriodsHandler:    periods.NewHandler(logger, periodsService),
		FxRateHandler:     fxrate.NewHandler(logger, fxService),
		LedgerHandler:     ledger.NewHandler(logger, ledgerService, cfg.MaxUploadBytes),
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
