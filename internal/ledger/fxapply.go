package ledger

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/groupledger/groupledger/internal/fxrate"
)

func plCategoryList() []string {
	out := make([]string, 0, len(plSynonyms))
	for k := range plSynonyms {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// currencyVariants folds an IN-suffixed legacy code back to its ISO base
// and matches both spellings.
func currencyVariants(code string) []string {
	base := strings.ToUpper(strings.TrimSpace(code))
	if len(base) == 5 && strings.HasSuffix(base, "IN") {
		base = base[:3]
	}
	return []string{base, base + "IN"}
}

// RecomputeCurrency rewrites converted amounts for every derived row in
// one currency after its rate changed. Income-statement and
// balance-sheet rows take their side of the quote separately.
func (s *Service) RecomputeCurrency(ctx context.Context, currencyCode string, quote fxrate.Quote) error {
	variants := currencyVariants(currencyCode)
	pl := plCategoryList()

	var touched int64
	if rate, ok := quote.Rate(true); ok {
		n, err := s.repo.RecomputeCurrency(ctx, variants, pl, true, rate)
		if err != nil {
			return err
		}
		touched += n
	}
	if rate, ok := quote.Rate(false); ok {
		n, err := s.repo.RecomputeCurrency(ctx, variants, pl, false, rate)
		if err != nil {
			return err
		}
		touched += n
	}
	s.logger.InfoContext(ctx, "currency recomputed",
		slog.String("currency", variants[0]), slog.Int64("rows", touched))
	return nil
}

// SweepUnrated retries conversion for categorised rows still missing a
// converted amount, typically after new rates arrive.
func (s *Service) SweepUnrated(ctx context.Context) (int, error) {
	rows, err := s.repo.UnratedRows(ctx)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	keySet := make(map[fxrate.Key]bool)
	for _, row := range rows {
		keySet[rateKeyFor(row)] = true
	}
	keys := make([]fxrate.Key, 0, len(keySet))
	for k := range keySet {
		keys = append(keys, k)
	}
	cache, err := s.rates.BuildCache(ctx, keys)
	if err != nil {
		return 0, err
	}

	var updates []RateUpdate
	for _, row := range rows {
		quote, ok := cache.Lookup(rateKeyFor(row))
		if !ok {
			continue
		}
		statement := ClassifyStatement(deref(row.CategoryMain), deref(row.Category1))
		rate, has := quote.Rate(statement == ProfitAndLoss)
		if !has {
			continue
		}
		updates = append(updates, RateUpdate{
			ID:        row.ID,
			Rate:      rate,
			USDAmount: RoundKeyAmount(row.Amount * rate),
		})
	}
	if err := s.repo.UpdateRates(ctx, updates); err != nil {
		return 0, err
	}
	if len(updates) > 0 {
		s.logger.InfoContext(ctx, "unrated rows converted", slog.Int("rows", len(updates)))
	}
	return len(updates), nil
}

func rateKeyFor(row DerivedLedgerRow) fxrate.Key {
	return fxrate.Key{
		EntityCode: row.EntityCode,
		Currency:   strings.ToUpper(strings.TrimSpace(row.Currency)),
		YearLabel:  row.YearLabel,
	}
}
