package periods

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/groupledger/groupledger/internal/fiscal"
	"github.com/groupledger/groupledger/internal/shared"
)

// Machine-readable period policy codes surfaced to callers.
const (
	CodeNotCurrentYear    = "NOT_CURRENT_FINANCIAL_YEAR"
	CodePreviousYearUnset = "PREVIOUS_FINANCIAL_YEAR_NOT_CONFIGURED"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, includeInactive bool) ([]Period, error) {
	return s.repo.List(ctx, includeInactive)
}

func (s *Service) Get(ctx context.Context, id int64) (Period, error) {
	if id <= 0 {
		return Period{}, ErrNotFound
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, p Period) (Period, error) {
	p.Label = strings.TrimSpace(p.Label)
	if err := s.validate(ctx, p, 0); err != nil {
		return Period{}, err
	}
	return s.repo.Create(ctx, p)
}

func (s *Service) Update(ctx context.Context, id int64, p Period) error {
	if id <= 0 {
		return ErrNotFound
	}
	p.Label = strings.TrimSpace(p.Label)
	if err := s.validate(ctx, p, id); err != nil {
		return err
	}
	return s.repo.Update(ctx, id, p)
}

// Deactivate soft deletes a period; the row stays for audit.
func (s *Service) Deactivate(ctx context.Context, id int64) error {
	if id <= 0 {
		return ErrNotFound
	}
	return s.repo.Deactivate(ctx, id)
}

// Current returns the active period containing today.
func (s *Service) Current(ctx context.Context, today time.Time) (Period, error) {
	return s.repo.FindByDate(ctx, truncate(today))
}

// ValidateDate enforces the upload period policy: the date must fall in
// the active period that also contains today. A date in an older
// configured period is rejected as not-current; a date in no configured
// period is rejected with a suggested label to configure.
func (s *Service) ValidateDate(ctx context.Context, date, today time.Time) (Period, error) {
	date = truncate(date)
	p, err := s.repo.FindByDate(ctx, date)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Period{}, shared.NewCodedError(shared.CategoryPeriodPolicy, CodePreviousYearUnset,
				"no financial year is configured for this date").
				WithDetail("suggested_label", SuggestLabel(date)).
				WithDetail("date", date.Format("2006-01-02"))
		}
		return Period{}, err
	}
	current, err := s.repo.FindByDate(ctx, truncate(today))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// No period covers today; the configured period for the date wins.
			return p, nil
		}
		return Period{}, err
	}
	if p.ID != current.ID {
		return Period{}, shared.NewCodedError(shared.CategoryPeriodPolicy, CodeNotCurrentYear,
			"date falls outside the current financial year").
			WithDetail("period_label", p.Label).
			WithDetail("current_label", current.Label)
	}
	return p, nil
}

// SuggestLabel proposes the financial-year label covering d, on the
// April-start convention: January through March roll back a year.
func SuggestLabel(d time.Time) string {
	return fiscal.Format(fiscal.YearForDate(d))
}

func (s *Service) validate(ctx context.Context, p Period, excludeID int64) error {
	if p.Label == "" {
		return shared.NewCodedError(shared.CategoryValidation, "INVALID_PERIOD", "label is required")
	}
	if _, err := fiscal.Parse(p.Label); err != nil {
		return shared.NewCodedError(shared.CategoryValidation, "INVALID_PERIOD", "label must look like 2024-25")
	}
	if p.StartDate.IsZero() || p.EndDate.IsZero() {
		return shared.NewCodedError(shared.CategoryValidation, "INVALID_PERIOD", "start and end dates are required")
	}
	if !p.EndDate.After(p.StartDate) {
		return shared.NewCodedError(shared.CategoryValidation, "INVALID_PERIOD", "end date must be after start date")
	}
	if p.IsActive {
		overlaps, err := s.repo.Overlapping(ctx, p.StartDate, p.EndDate, excludeID)
		if err != nil {
			return err
		}
		if overlaps {
			return shared.NewCodedError(shared.CategoryConflict, "PERIOD_OVERLAP", "period overlaps an active financial year")
		}
	}
	return nil
}

func truncate(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}
