// Package jobs runs background maintenance for the ledger: periodic
// category syncs and conversion backfills through asynq.
package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/groupledger/groupledger/internal/ledger"
)

const (
	// QueueDefault is the queue all ledger maintenance runs on.
	QueueDefault = "default"
	// TaskCategorySync re-applies the code master to derived rows.
	TaskCategorySync = "ledger:category_sync"
	// TaskFxBackfill retries conversion for unrated rows.
	TaskFxBackfill = "ledger:fx_backfill"
)

// LedgerMaintainer is the slice of the ledger service the worker needs.
type LedgerMaintainer interface {
	SyncCategories(ctx context.Context) (ledger.SyncOutcome, error)
	SweepUnrated(ctx context.Context) (int, error)
}

func NewCategorySyncTask() *asynq.Task {
	return asynq.NewTask(TaskCategorySync, nil)
}

func NewFxBackfillTask() *asynq.Task {
	return asynq.NewTask(TaskFxBackfill, nil)
}

// CategorySyncHandler builds the asynq handler for TaskCategorySync.
func CategorySyncHandler(svc LedgerMaintainer, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		out, err := svc.SyncCategories(ctx)
		if err != nil {
			return err
		}
		logger.InfoContext(ctx, "scheduled category sync done",
			slog.Int64("updated", out.Updated), slog.Int("converted", out.Converted))
		return nil
	}
}

// FxBackfillHandler builds the asynq handler for TaskFxBackfill.
func FxBackfillHandler(svc LedgerMaintainer, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		converted, err := svc.SweepUnrated(ctx)
		if err != nil {
			return err
		}
		logger.InfoContext(ctx, "scheduled conversion backfill done", slog.Int("converted", converted))
		return nil
	}
}
