package fxrate

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/text/currency"

	"github.com/groupledger/groupledger/internal/fiscal"
	"github.com/groupledger/groupledger/internal/masterdata/entities"
	"github.com/groupledger/groupledger/internal/shared"
)

// Recomputer re-derives converted amounts after a legacy rate changes.
// The ledger service implements it; the hook is optional so rate edits
// still land when the ledger is unavailable.
type Recomputer interface {
	RecomputeCurrency(ctx context.Context, currencyCode string, quote Quote) error
}

type Service struct {
	repo       Repository
	entityRepo entities.Repository
	resolver   *Resolver
	recomputer Recomputer
	logger     *slog.Logger
}

func NewService(repo Repository, entityRepo entities.Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, entityRepo: entityRepo, resolver: NewResolver(repo), logger: logger}
}

// SetRecomputer wires the ledger recompute hook after construction.
func (s *Service) SetRecomputer(r Recomputer) {
	s.recomputer = r
}

// Resolver exposes the batch quote resolver for the ledger.
func (s *Service) Resolver() *Resolver {
	return s.resolver
}

// ListLatest returns the newest legacy row per currency.
func (s *Service) ListLatest(ctx context.Context) ([]LegacyRate, error) {
	return s.repo.LatestLegacyAll(ctx)
}

// History returns all legacy rows for a currency, newest first.
func (s *Service) History(ctx context.Context, currencyCode string) ([]LegacyRate, error) {
	if strings.TrimSpace(currencyCode) == "" {
		return nil, shared.NewCodedError(shared.CategoryValidation, "INVALID_RATE", "currency is required")
	}
	return s.repo.LegacyHistory(ctx, currencyCode)
}

// CreateLegacy appends a fresh legacy rate row and triggers a recompute
// over ledger rows carrying the currency.
func (s *Service) CreateLegacy(ctx context.Context, rate LegacyRate) (LegacyRate, error) {
	if strings.TrimSpace(rate.Currency) == "" {
		return LegacyRate{}, shared.NewCodedError(shared.CategoryValidation, "INVALID_RATE", "currency is required")
	}
	if rate.InitialRate == nil && rate.LatestRate == nil {
		return LegacyRate{}, shared.NewCodedError(shared.CategoryValidation, "INVALID_RATE", "at least one of initial and latest rate is required")
	}
	if err := checkPositive(rate.InitialRate, rate.LatestRate); err != nil {
		return LegacyRate{}, err
	}
	saved, err := s.repo.InsertLegacy(ctx, rate)
	if err != nil {
		return LegacyRate{}, err
	}
	s.triggerRecompute(ctx, saved)
	return saved, nil
}

// UpdateLegacy appends a new row for the currency, copying forward
// whichever side the caller left out from the previous latest row.
func (s *Service) UpdateLegacy(ctx context.Context, rate LegacyRate) (LegacyRate, error) {
	if strings.TrimSpace(rate.Currency) == "" {
		return LegacyRate{}, shared.NewCodedError(shared.CategoryValidation, "INVALID_RATE", "currency is required")
	}
	if rate.InitialRate == nil && rate.LatestRate == nil {
		return LegacyRate{}, shared.NewCodedError(shared.CategoryValidation, "INVALID_RATE", "nothing to update")
	}
	if err := checkPositive(rate.InitialRate, rate.LatestRate); err != nil {
		return LegacyRate{}, err
	}
	previous, err := s.repo.LatestLegacy(ctx, rate.Currency)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return LegacyRate{}, err
	}
	if err == nil {
		if rate.InitialRate == nil {
			rate.InitialRate = previous.InitialRate
		}
		if rate.LatestRate == nil {
			rate.LatestRate = previous.LatestRate
		}
		if rate.MonthLabel == "" {
			rate.MonthLabel = previous.MonthLabel
		}
	}
	saved, err := s.repo.InsertLegacy(ctx, rate)
	if err != nil {
		return LegacyRate{}, err
	}
	s.triggerRecompute(ctx, saved)
	return saved, nil
}

// EnsureCurrency seeds an unrated placeholder row when the currency has
// no legacy history yet. Entities created with a new local currency call
// this so the currency shows up as a countable conversion gap.
func (s *Service) EnsureCurrency(ctx context.Context, currencyCode string) error {
	currencyCode = strings.ToUpper(strings.TrimSpace(currencyCode))
	if currencyCode == "" {
		return nil
	}
	_, err := s.repo.LatestLegacy(ctx, currencyCode)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}
	_, err = s.repo.InsertLegacy(ctx, LegacyRate{Currency: currencyCode})
	return err
}

// UpsertEntityRate saves a per-entity financial-year quote, deriving the
// year window from the entity's fiscal convention.
func (s *Service) UpsertEntityRate(ctx context.Context, rate EntityRate) (EntityRate, error) {
	if strings.TrimSpace(rate.EntityCode) == "" {
		return EntityRate{}, shared.NewCodedError(shared.CategoryValidation, "INVALID_RATE", "entity code is required")
	}
	if _, err := currency.ParseISO(strings.TrimSpace(rate.Currency)); err != nil {
		return EntityRate{}, shared.NewCodedError(shared.CategoryValidation, "INVALID_RATE", "currency must be an ISO code")
	}
	year, err := fiscal.Parse(rate.YearLabel)
	if err != nil {
		return EntityRate{}, shared.NewCodedError(shared.CategoryValidation, "INVALID_RATE", "financial year must look like 2024-25")
	}
	if rate.OpeningRate == nil && rate.ClosingRate == nil {
		return EntityRate{}, shared.NewCodedError(shared.CategoryValidation, "INVALID_RATE", "at least one of opening and closing rate is required")
	}
	if err := checkPositive(rate.OpeningRate, rate.ClosingRate); err != nil {
		return EntityRate{}, err
	}
	entity, err := s.entityRepo.GetByCode(ctx, rate.EntityCode)
	if err != nil {
		if errors.Is(err, entities.ErrNotFound) {
			return EntityRate{}, shared.NewCodedError(shared.CategoryNotFound, "ENTITY_NOT_FOUND", "entity does not exist")
		}
		return EntityRate{}, err
	}
	rate.YearLabel = fiscal.Format(year)
	rate.StartDate, rate.EndDate = fiscal.YearDates(year, time.Month(entity.FYStartMonth), entity.FYStartDay)
	rate.CreatedBy = shared.CallerFromContext(ctx)
	return s.repo.UpsertEntityRate(ctx, rate)
}

// EntityRates lists the configured rates for an entity.
func (s *Service) EntityRates(ctx context.Context, entityCode string) ([]EntityRate, error) {
	if strings.TrimSpace(entityCode) == "" {
		return nil, shared.NewCodedError(shared.CategoryValidation, "INVALID_RATE", "entity code is required")
	}
	return s.repo.EntityRates(ctx, entityCode)
}

func (s *Service) triggerRecompute(ctx context.Context, rate LegacyRate) {
	if s.recomputer == nil {
		return
	}
	quote := Quote{Opening: rate.InitialRate, Closing: rate.LatestRate, Source: "legacy"}
	if quote.Empty() {
		return
	}
	if err := s.recomputer.RecomputeCurrency(ctx, rate.Currency, quote); err != nil && s.logger != nil {
		s.logger.Error("recompute converted amounts after rate change",
			slog.String("currency", rate.Currency), slog.Any("error", err))
	}
}

func checkPositive(rates ...*float64) error {
	for _, r := range rates {
		if r != nil && *r <= 0 {
			return shared.NewCodedError(shared.CategoryValidation, "INVALID_RATE", "rates must be positive")
		}
	}
	return nil
}
