package fxrate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/groupledger/groupledger/internal/fiscal"
)

// Key identifies the quote a ledger row needs.
type Key struct {
	EntityCode string
	Currency   string
	YearLabel  string
}

// Provider resolves a quote for a key. Implementations are pure lookups;
// all fetching happens at cache-build time.
type Provider interface {
	Lookup(key Key) (Quote, bool)
}

// Cache holds every quote a batch of rows could need, resolved through
// the ordered chain: entity rate for the exact year, the adjacent years,
// then the legacy table with its currency-variant fallbacks.
type Cache struct {
	entity map[string]Quote
	legacy map[string]Quote
}

// Resolver builds quote caches for row batches.
type Resolver struct {
	repo Repository
}

func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo}
}

func entityKey(code, currency, year string) string {
	return strings.ToUpper(strings.TrimSpace(code)) + "|" + strings.ToUpper(strings.TrimSpace(currency)) + "|" + strings.TrimSpace(year)
}

// legacyCandidates lists the legacy currencies tried for a currency, in
// order: as-is, the IN-suffixed variant, then the USD pair fallbacks.
func legacyCandidates(currency string) []string {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	candidates := []string{currency, currency + "IN", "USDIN", "USD"}
	seen := make(map[string]bool, len(candidates))
	out := candidates[:0]
	for _, c := range candidates {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// adjacentLabels returns the exact label plus the next and previous years.
func adjacentLabels(yearLabel string) []string {
	year, err := fiscal.Parse(yearLabel)
	if err != nil {
		return []string{yearLabel}
	}
	return []string{fiscal.Format(year), fiscal.Format(year + 1), fiscal.Format(year - 1)}
}

// BuildCache fetches every quote the keys could resolve to. Per-pair
// entity fetches and per-currency legacy fetches run concurrently.
func (r *Resolver) BuildCache(ctx context.Context, keys []Key) (*Cache, error) {
	cache := &Cache{entity: make(map[string]Quote), legacy: make(map[string]Quote)}

	type pair struct{ code, currency, year string }
	pairs := make(map[string]pair)
	currencies := make(map[string]bool)
	for _, k := range keys {
		code := strings.ToUpper(strings.TrimSpace(k.EntityCode))
		currency := strings.ToUpper(strings.TrimSpace(k.Currency))
		year := strings.TrimSpace(k.YearLabel)
		if currency == "" {
			continue
		}
		if code != "" && year != "" {
			pairs[code+"|"+currency+"|"+year] = pair{code: code, currency: currency, year: year}
		}
		for _, c := range legacyCandidates(currency) {
			currencies[c] = true
		}
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)

	for _, p := range pairs {
		p := p
		g.Go(func() error {
			rates, err := r.repo.EntityRatesFor(gctx, p.code, p.currency, adjacentLabels(p.year))
			if err != nil {
				return fmt.Errorf("entity rates %s/%s: %w", p.code, p.currency, err)
			}
			mu.Lock()
			for _, rate := range rates {
				cache.entity[entityKey(rate.EntityCode, rate.Currency, rate.YearLabel)] = Quote{
					Opening:  rate.OpeningRate,
					Closing:  rate.ClosingRate,
					Source:   "entity",
					YearUsed: rate.YearLabel,
				}
			}
			mu.Unlock()
			return nil
		})
	}

	for currency := range currencies {
		currency := currency
		g.Go(func() error {
			rate, err := r.repo.LatestLegacy(gctx, currency)
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					return nil
				}
				return fmt.Errorf("legacy rate %s: %w", currency, err)
			}
			mu.Lock()
			cache.legacy[rate.Currency] = Quote{
				Opening: rate.InitialRate,
				Closing: rate.LatestRate,
				Source:  "legacy",
			}
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return cache, nil
}

// Lookup resolves key through the chain. Quotes without any rate are
// skipped so a placeholder row does not shadow a usable fallback.
func (c *Cache) Lookup(key Key) (Quote, bool) {
	if c == nil {
		return Quote{}, false
	}
	if key.YearLabel != "" && key.EntityCode != "" {
		labels := adjacentLabels(key.YearLabel)
		for i, label := range labels {
			if q, ok := c.entity[entityKey(key.EntityCode, key.Currency, label)]; ok && !q.Empty() {
				q.AdjacentYearUsed = i > 0
				q.YearUsed = label
				return q, true
			}
		}
	}
	for _, currency := range legacyCandidates(key.Currency) {
		if q, ok := c.legacy[currency]; ok && !q.Empty() {
			q.YearUsed = key.YearLabel
			return q, true
		}
	}
	return Quote{}, false
}
