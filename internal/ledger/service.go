package ledger

import (
	"context"
	"log/slog"
	"time"

	"github.com/groupledger/groupledger/internal/fxrate"
	"github.com/groupledger/groupledger/internal/masterdata/codemaster"
	"github.com/groupledger/groupledger/internal/masterdata/entities"
	"github.com/groupledger/groupledger/internal/masterdata/periods"
	"github.com/groupledger/groupledger/internal/shared"
	"github.com/groupledger/groupledger/internal/storage"
)

// EntityLookup resolves upload entity codes.
type EntityLookup interface {
	GetByCode(ctx context.Context, code string) (entities.Entity, error)
}

// PeriodValidator enforces the period policy on upload dates.
type PeriodValidator interface {
	ValidateDate(ctx context.Context, date, today time.Time) (periods.Period, error)
}

// CategorySource supplies the code master keyed by normalized particular.
type CategorySource interface {
	NormalizedMap(ctx context.Context) (map[string]codemaster.Mapping, error)
}

// RateSource builds conversion caches for a set of rate keys.
type RateSource interface {
	BuildCache(ctx context.Context, keys []fxrate.Key) (*fxrate.Cache, error)
}

// ServiceDeps wires the upload pipeline. Locks, progress, uploader and
// audits are optional; nil disables that concern.
type ServiceDeps struct {
	Repo       Repository
	Entities   EntityLookup
	Periods    PeriodValidator
	Categories CategorySource
	Rates      RateSource
	Locks      *shared.ScopeLock
	Progress   *shared.ProgressStore
	Uploader   storage.Uploader
	Audits     storage.AuditRepository
	Logger     *slog.Logger
	// MaxErrorDetail caps row errors echoed back per upload.
	MaxErrorDetail int
}

type Service struct {
	repo       Repository
	entities   EntityLookup
	periods    PeriodValidator
	categories CategorySource
	rates      RateSource
	locks      *shared.ScopeLock
	progress   *shared.ProgressStore
	uploader   storage.Uploader
	audits     storage.AuditRepository
	logger     *slog.Logger
	errLimit   int
}

func NewService(d ServiceDeps) *Service {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.MaxErrorDetail <= 0 {
		d.MaxErrorDetail = 20
	}
	return &Service{
		repo:       d.Repo,
		entities:   d.Entities,
		periods:    d.Periods,
		categories: d.Categories,
		rates:      d.Rates,
		locks:      d.Locks,
		progress:   d.Progress,
		uploader:   d.Uploader,
		audits:     d.Audits,
		logger:     d.Logger,
		errLimit:   d.MaxErrorDetail,
	}
}

// Progress answers polling requests for a running or finished upload.
func (s *Service) Progress(ctx context.Context, operationID string) (*shared.Progress, error) {
	if s.progress == nil {
		return nil, shared.ErrNotFound
	}
	return s.progress.Get(ctx, operationID)
}

// Purge wipes all raw and derived ledger rows.
func (s *Service) Purge(ctx context.Context) (int64, error) {
	removed, err := s.repo.PurgeAll(ctx)
	if err != nil {
		return 0, err
	}
	s.logger.InfoContext(ctx, "ledger purged", slog.Int64("rows", removed))
	return removed, nil
}

func (s *Service) reportProgress(ctx context.Context, summary *UploadSummary, stage string, processed, total int, message string) {
	if s.progress == nil || summary.OperationID == "" {
		return
	}
	err := s.progress.Update(ctx, shared.Progress{
		OperationID: summary.OperationID,
		Stage:       stage,
		Processed:   processed,
		Total:       total,
		Message:     message,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "progress update failed", slog.String("operation_id", summary.OperationID), slog.Any("error", err))
	}
}

func (s *Service) finishProgress(ctx context.Context, summary *UploadSummary, success bool, message string) {
	if s.progress == nil || summary.OperationID == "" {
		return
	}
	err := s.progress.Update(ctx, shared.Progress{
		OperationID: summary.OperationID,
		Stage:       "done",
		Processed:   summary.TotalRows,
		Total:       summary.TotalRows,
		Message:     message,
		Done:        true,
		Success:     success,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "progress finish failed", slog.String("operation_id", summary.OperationID), slog.Any("error", err))
	}
}

func strOrNil(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
