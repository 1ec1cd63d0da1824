package entities

import (
	"context"
	"errors"
	"log/slog"
	"strings"
)

// ErrSelfParent indicates an entity was assigned itself as parent.
var ErrSelfParent = errors.New("entities: entity cannot be its own parent")

// ErrHierarchyCycle indicates the parent assignment would create a cycle.
var ErrHierarchyCycle = errors.New("entities: parent assignment creates a cycle")

// RateSeeder ensures a conversion rate row exists for a currency. Entities
// created with a non-reporting currency get a placeholder rate so their
// uploads resolve a quote immediately.
type RateSeeder interface {
	EnsureCurrency(ctx context.Context, currency string) error
}

type Service struct {
	repo              Repository
	seeder            RateSeeder
	reportingCurrency string
	logger            *slog.Logger
}

func NewService(repo Repository, seeder RateSeeder, reportingCurrency string, logger *slog.Logger) *Service {
	return &Service{repo: repo, seeder: seeder, reportingCurrency: strings.ToUpper(reportingCurrency), logger: logger}
}

func (s *Service) List(ctx context.Context) ([]Entity, error) {
	return s.repo.List(ctx)
}

func (s *Service) Get(ctx context.Context, id int64) (Entity, error) {
	if id <= 0 {
		return Entity{}, ErrNotFound
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) GetByCode(ctx context.Context, code string) (Entity, error) {
	return s.repo.GetByCode(ctx, code)
}

func (s *Service) Create(ctx context.Context, entity Entity) (Entity, error) {
	if err := s.validate(entity); err != nil {
		return Entity{}, err
	}
	if entity.ParentID != nil {
		if _, err := s.repo.Get(ctx, *entity.ParentID); err != nil {
			return Entity{}, err
		}
	}
	created, err := s.repo.Create(ctx, entity)
	if err != nil {
		return Entity{}, err
	}
	s.seedCurrency(ctx, created.Currency)
	return created, nil
}

func (s *Service) Update(ctx context.Context, id int64, entity Entity) error {
	if id <= 0 {
		return ErrNotFound
	}
	if err := s.validate(entity); err != nil {
		return err
	}
	if entity.ParentID != nil {
		if err := s.checkParent(ctx, id, *entity.ParentID); err != nil {
			return err
		}
	}
	if err := s.repo.Update(ctx, id, entity); err != nil {
		return err
	}
	s.seedCurrency(ctx, entity.Currency)
	return nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return ErrNotFound
	}
	return s.repo.Delete(ctx, id)
}

// Descendants returns the deduplicated subtree rooted at id, root included.
func (s *Service) Descendants(ctx context.Context, id int64) ([]Entity, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.Descendants(ctx, id)
}

// DescendantCodes returns the entity codes of the subtree rooted at id.
func (s *Service) DescendantCodes(ctx context.Context, id int64) ([]string, error) {
	subtree, err := s.Descendants(ctx, id)
	if err != nil {
		return nil, err
	}
	codes := make([]string, 0, len(subtree))
	for _, e := range subtree {
		codes = append(codes, e.Code)
	}
	return codes, nil
}

// checkParent rejects self-parenting and ancestry cycles. A cycle exists
// when the proposed parent already sits below the entity.
func (s *Service) checkParent(ctx context.Context, id, parentID int64) error {
	if parentID == id {
		return ErrSelfParent
	}
	if _, err := s.repo.Get(ctx, parentID); err != nil {
		return err
	}
	subtree, err := s.repo.Descendants(ctx, id)
	if err != nil {
		return err
	}
	for _, e := range subtree {
		if e.ID == parentID {
			return ErrHierarchyCycle
		}
	}
	return nil
}

func (s *Service) seedCurrency(ctx context.Context, currency string) {
	if s.seeder == nil {
		return
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" || currency == s.reportingCurrency {
		return
	}
	if err := s.seeder.EnsureCurrency(ctx, currency); err != nil && s.logger != nil {
		s.logger.Warn("seed conversion rate for entity currency", slog.String("currency", currency), slog.Any("error", err))
	}
}
