package codemaster

import (
	"context"
	"log/slog"
	"strings"

	"github.com/groupledger/groupledger/internal/shared"
)

type Service struct {
	repo     Repository
	progress *shared.ProgressStore
	logger   *slog.Logger
}

func NewService(repo Repository, progress *shared.ProgressStore, logger *slog.Logger) *Service {
	return &Service{repo: repo, progress: progress, logger: logger}
}

func (s *Service) List(ctx context.Context, search string) ([]Mapping, error) {
	return s.repo.List(ctx, search)
}

func (s *Service) Get(ctx context.Context, id int64) (Mapping, error) {
	if id <= 0 {
		return Mapping{}, ErrNotFound
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Lookup(ctx context.Context, particular string) (Mapping, error) {
	return s.repo.Lookup(ctx, particular)
}

// Upsert stores a mapping. The normalized particular is the key, so saving
// " Sales Revenue " and "sales revenue" updates the same row.
func (s *Service) Upsert(ctx context.Context, m Mapping) (Mapping, bool, error) {
	if err := s.validate(m); err != nil {
		return Mapping{}, false, err
	}
	m.RawParticulars = strings.TrimSpace(m.RawParticulars)
	return s.repo.Upsert(ctx, m)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return ErrNotFound
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) DeleteAll(ctx context.Context) (int64, error) {
	return s.repo.DeleteAll(ctx)
}

// NormalizedMap loads every mapping keyed by its normalized particular.
func (s *Service) NormalizedMap(ctx context.Context) (map[string]Mapping, error) {
	all, err := s.repo.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]Mapping, len(all))
	for _, m := range all {
		out[NormalizeParticular(m.RawParticulars)] = m
	}
	return out, nil
}

func (s *Service) validate(m Mapping) error {
	if strings.TrimSpace(m.RawParticulars) == "" {
		return shared.NewCodedError(shared.CategoryValidation, "INVALID_MAPPING", "raw particulars is required")
	}
	if strings.TrimSpace(m.CategoryMain) == "" {
		return shared.NewCodedError(shared.CategoryValidation, "INVALID_MAPPING", "category main is required")
	}
	return nil
}
