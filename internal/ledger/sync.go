package ledger

import (
	"context"
	"log/slog"
)

// SyncOutcome reports what a category sync touched.
type SyncOutcome struct {
	Updated   int64 `json:"updated"`
	Converted int   `json:"converted"`
}

// SyncCategories backfills derived rows from the code master: rows with
// missing category fields pick up their mapping, and newly categorised
// rows get a conversion attempt. Rows that already carry a full set of
// categories are never touched.
func (s *Service) SyncCategories(ctx context.Context) (SyncOutcome, error) {
	var out SyncOutcome
	var err error

	if out.Updated, err = s.repo.SyncCategories(ctx); err != nil {
		return out, err
	}
	if out.Converted, err = s.SweepUnrated(ctx); err != nil {
		return out, err
	}
	s.logger.InfoContext(ctx, "categories synced",
		slog.Int64("updated", out.Updated), slog.Int("converted", out.Converted))
	return out, nil
}

// SyncParticular propagates one mapping change without rescanning the
// whole table.
func (s *Service) SyncParticular(ctx context.Context, particular string) (SyncOutcome, error) {
	var out SyncOutcome
	var err error

	if out.Updated, err = s.repo.SyncCategoriesForParticular(ctx, particular); err != nil {
		return out, err
	}
	if out.Converted, err = s.SweepUnrated(ctx); err != nil {
		return out, err
	}
	return out, nil
}

// PruneUnmapped strips categories and conversions from rows whose
// particular has no code-master entry. Explicit administrative action,
// used after mappings are deleted on purpose.
func (s *Service) PruneUnmapped(ctx context.Context) (int64, error) {
	pruned, err := s.repo.PruneUnmapped(ctx)
	if err != nil {
		return 0, err
	}
	s.logger.InfoContext(ctx, "unmapped rows pruned", slog.Int64("rows", pruned))
	return pruned, nil
}
