package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/groupledger/groupledger/internal/app"
	"github.com/groupledger/groupledger/internal/fxrate"
	"github.com/groupledger/groupledger/internal/ledger"
	"github.com/groupledger/groupledger/internal/masterdata/codemaster"
	"github.com/groupledger/groupledger/internal/masterdata/entities"
	"github.com/groupledger/groupledger/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	pool, err := pgxpool.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}

	entitiesRepo := entities.NewRepository(pool)
	fxRepo := fxrate.NewRepository(pool)
	fxService := fxrate.NewService(fxRepo, entitiesRepo, logger)

	codeMasterRepo := codemaster.NewRepository(pool)
	codeMasterService := codemaster.NewService(codeMasterRepo, nil, logger)

	ledgerService := ledger.NewService(ledger.ServiceDeps{
		Repo:       ledger.NewRepository(pool),
		Entities:   entitiesRepo,
		Categories: codeMasterService,
		Rates:      fxService.Resolver(),
		Logger:     logger,
	})
	fxService.SetRecomputer(ledgerService)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Ledger:    ledgerService,
		Cron: []jobs.CronRegistration{
			{Spec: "15 1 * * *", Task: jobs.NewCategorySyncTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 2 * * *", Task: jobs.NewFxBackfillTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
