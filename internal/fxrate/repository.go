package fxrate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates no rate row matched.
var ErrNotFound = errors.New("fxrate: not found")

type Repository interface {
	LatestLegacy(ctx context.Context, currency string) (LegacyRate, error)
	LatestLegacyAll(ctx context.Context) ([]LegacyRate, error)
	LegacyHistory(ctx context.Context, currency string) ([]LegacyRate, error)
	InsertLegacy(ctx context.Context, rate LegacyRate) (LegacyRate, error)
	UpsertEntityRate(ctx context.Context, rate EntityRate) (EntityRate, error)
	EntityRate(ctx context.Context, entityCode, currency, yearLabel string) (EntityRate, error)
	EntityRates(ctx context.Context, entityCode string) ([]EntityRate, error)
	EntityRatesFor(ctx context.Context, entityCode, currency string, yearLabels []string) ([]EntityRate, error)
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const legacyColumns = `id, currency, initial_rate, latest_rate, month_label, updated_at`

// LatestLegacy returns the newest row for the currency. Newest means the
// highest updated_at, ties broken by id, so appends always win.
func (r *repository) LatestLegacy(ctx context.Context, currency string) (LegacyRate, error) {
	if r == nil || r.pool == nil {
		return LegacyRate{}, fmt.Errorf("fxrate repo not initialised")
	}
	const query = `
SELECT ` + legacyColumns + `
FROM conversion_rates
WHERE UPPER(BTRIM(currency)) = UPPER(BTRIM($1))
ORDER BY updated_at DESC, id DESC
LIMIT 1`
	rate, err := scanLegacy(r.pool.QueryRow(ctx, query, currency))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return LegacyRate{}, ErrNotFound
		}
		return LegacyRate{}, err
	}
	return rate, nil
}

// LatestLegacyAll returns the newest row per currency.
func (r *repository) LatestLegacyAll(ctx context.Context) ([]LegacyRate, error) {
	if r == nil || r.pool == nil {
		return nil, fmt.Errorf("fxrate repo not initialised")
	}
	const query = `
SELECT DISTINCT ON (UPPER(BTRIM(currency))) ` + legacyColumns + `
FROM conversion_rates
ORDER BY UPPER(BTRIM(currency)), updated_at DESC, id DESC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLegacyRows(rows)
}

func (r *repository) LegacyHistory(ctx context.Context, currency string) ([]LegacyRate, error) {
	if r == nil || r.pool == nil {
		return nil, fmt.Errorf("fxrate repo not initialised")
	}
	const query = `
SELECT ` + legacyColumns + `
FROM conversion_rates
WHERE UPPER(BTRIM(currency)) = UPPER(BTRIM($1))
ORDER BY updated_at DESC, id DESC`
	rows, err := r.pool.Query(ctx, query, currency)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLegacyRows(rows)
}

// InsertLegacy appends a history row. The table is never updated in place.
func (r *repository) InsertLegacy(ctx context.Context, rate LegacyRate) (LegacyRate, error) {
	if r == nil || r.pool == nil {
		return LegacyRate{}, fmt.Errorf("fxrate repo not initialised")
	}
	const query = `
INSERT INTO conversion_rates (currency, initial_rate, latest_rate, month_label, updated_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING id`
	now := time.Now().UTC()
	err := r.pool.QueryRow(ctx, query,
		strings.ToUpper(strings.TrimSpace(rate.Currency)),
		rate.InitialRate,
		rate.LatestRate,
		rate.MonthLabel,
		now,
	).Scan(&rate.ID)
	if err != nil {
		return LegacyRate{}, err
	}
	rate.Currency = strings.ToUpper(strings.TrimSpace(rate.Currency))
	rate.UpdatedAt = now
	return rate, nil
}

const entityRateColumns = `id, entity_code, currency, year_label, opening_rate, closing_rate, start_date, end_date, created_by, created_at, updated_at`

func (r *repository) UpsertEntityRate(ctx context.Context, rate EntityRate) (EntityRate, error) {
	if r == nil || r.pool == nil {
		return EntityRate{}, fmt.Errorf("fxrate repo not initialised")
	}
	const query = `
INSERT INTO entity_fx_rates (entity_code, currency, year_label, opening_rate, closing_rate, start_date, end_date, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
ON CONFLICT (entity_code, currency, year_label)
DO UPDATE SET opening_rate = EXCLUDED.opening_rate,
              closing_rate = EXCLUDED.closing_rate,
              start_date = EXCLUDED.start_date,
              end_date = EXCLUDED.end_date,
              updated_at = EXCLUDED.updated_at
RETURNING id, created_at`
	now := time.Now().UTC()
	err := r.pool.QueryRow(ctx, query,
		strings.ToUpper(strings.TrimSpace(rate.EntityCode)),
		strings.ToUpper(strings.TrimSpace(rate.Currency)),
		strings.TrimSpace(rate.YearLabel),
		rate.OpeningRate,
		rate.ClosingRate,
		rate.StartDate,
		rate.EndDate,
		rate.CreatedBy,
		now,
	).Scan(&rate.ID, &rate.CreatedAt)
	if err != nil {
		return EntityRate{}, err
	}
	rate.UpdatedAt = now
	return rate, nil
}

func (r *repository) EntityRate(ctx context.Context, entityCode, currency, yearLabel string) (EntityRate, error) {
	if r == nil || r.pool == nil {
		return EntityRate{}, fmt.Errorf("fxrate repo not initialised")
	}
	const query = `
SELECT ` + entityRateColumns + `
FROM entity_fx_rates
WHERE UPPER(BTRIM(entity_code)) = UPPER(BTRIM($1))
  AND UPPER(BTRIM(currency)) = UPPER(BTRIM($2))
  AND BTRIM(year_label) = BTRIM($3)`
	rate, err := scanEntityRate(r.pool.QueryRow(ctx, query, entityCode, currency, yearLabel))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return EntityRate{}, ErrNotFound
		}
		return EntityRate{}, err
	}
	return rate, nil
}

func (r *repository) EntityRates(ctx context.Context, entityCode string) ([]EntityRate, error) {
	if r == nil || r.pool == nil {
		return nil, fmt.Errorf("fxrate repo not initialised")
	}
	const query = `
SELECT ` + entityRateColumns + `
FROM entity_fx_rates
WHERE UPPER(BTRIM(entity_code)) = UPPER(BTRIM($1))
ORDER BY year_label, currency`
	rows, err := r.pool.Query(ctx, query, entityCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntityRates(rows)
}

func (r *repository) EntityRatesFor(ctx context.Context, entityCode, currency string, yearLabels []string) ([]EntityRate, error) {
	if r == nil || r.pool == nil {
		return nil, fmt.Errorf("fxrate repo not initialised")
	}
	const query = `
SELECT ` + entityRateColumns + `
FROM entity_fx_rates
WHERE UPPER(BTRIM(entity_code)) = UPPER(BTRIM($1))
  AND UPPER(BTRIM(currency)) = UPPER(BTRIM($2))
  AND BTRIM(year_label) = ANY($3)`
	rows, err := r.pool.Query(ctx, query, entityCode, currency, yearLabels)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntityRates(rows)
}

func scanLegacyRows(rows pgx.Rows) ([]LegacyRate, error) {
	var out []LegacyRate
	for rows.Next() {
		rate, err := scanLegacy(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rate)
	}
	return out, rows.Err()
}

func scanLegacy(row pgx.Row) (LegacyRate, error) {
	var rate LegacyRate
	err := row.Scan(&rate.ID, &rate.Currency, &rate.InitialRate, &rate.LatestRate, &rate.MonthLabel, &rate.UpdatedAt)
	return rate, err
}

func scanEntityRates(rows pgx.Rows) ([]EntityRate, error) {
	var out []EntityRate
	for rows.Next() {
		rate, err := scanEntityRate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rate)
	}
	return out, rows.Err()
}

func scanEntityRate(row pgx.Row) (EntityRate, error) {
	var rate EntityRate
	err := row.Scan(&rate.ID, &rate.EntityCode, &rate.Currency, &rate.YearLabel, &rate.OpeningRate, &rate.ClosingRate,
		&rate.StartDate, &rate.EndDate, &rate.CreatedBy, &rate.CreatedAt, &rate.UpdatedAt)
	return rate, err
}
