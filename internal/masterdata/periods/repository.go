package periods

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/groupledger/groupledger/internal/shared"
)

// ErrNotFound indicates the period does not exist.
var ErrNotFound = errors.New("periods: not found")

// ErrDuplicateLabel indicates the label is already configured.
var ErrDuplicateLabel = errors.New("periods: duplicate label")

type Repository interface {
	List(ctx context.Context, includeInactive bool) ([]Period, error)
	Get(ctx context.Context, id int64) (Period, error)
	GetByLabel(ctx context.Context, label string) (Period, error)
	Create(ctx context.Context, p Period) (Period, error)
	Update(ctx context.Context, id int64, p Period) error
	Deactivate(ctx context.Context, id int64) error
	FindByDate(ctx context.Context, d time.Time) (Period, error)
	Overlapping(ctx context.Context, start, end time.Time, excludeID int64) (bool, error)
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const periodColumns = `id, label, start_date, end_date, is_active, created_at, updated_at`

func (r *repository) List(ctx context.Context, includeInactive bool) ([]Period, error) {
	if r == nil || r.pool == nil {
		return nil, fmt.Errorf("periods repo not initialised")
	}
	query := `SELECT ` + periodColumns + ` FROM financial_year_periods`
	if !includeInactive {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY start_date`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Period
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Period, error) {
	if r == nil || r.pool == nil {
		return Period{}, fmt.Errorf("periods repo not initialised")
	}
	query := `SELECT ` + periodColumns + ` FROM financial_year_periods WHERE id = $1`
	p, err := scanPeriod(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Period{}, ErrNotFound
		}
		return Period{}, err
	}
	return p, nil
}

func (r *repository) GetByLabel(ctx context.Context, label string) (Period, error) {
	if r == nil || r.pool == nil {
		return Period{}, fmt.Errorf("periods repo not initialised")
	}
	query := `SELECT ` + periodColumns + ` FROM financial_year_periods WHERE LOWER(BTRIM(label)) = LOWER(BTRIM($1))`
	p, err := scanPeriod(r.pool.QueryRow(ctx, query, label))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Period{}, ErrNotFound
		}
		return Period{}, err
	}
	return p, nil
}

func (r *repository) Create(ctx context.Context, p Period) (Period, error) {
	if r == nil || r.pool == nil {
		return Period{}, fmt.Errorf("periods repo not initialised")
	}
	const query = `
INSERT INTO financial_year_periods (label, start_date, end_date, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $5)
RETURNING id`
	now := time.Now().UTC()
	err := r.pool.QueryRow(ctx, query, strings.TrimSpace(p.Label), p.StartDate, p.EndDate, p.IsActive, now).Scan(&p.ID)
	if err != nil {
		if shared.IsUniqueViolation(err) {
			return Period{}, ErrDuplicateLabel
		}
		return Period{}, err
	}
	p.CreatedAt = now
	p.UpdatedAt = now
	return p, nil
}

func (r *repository) Update(ctx context.Context, id int64, p Period) error {
	if r == nil || r.pool == nil {
		return fmt.Errorf("periods repo not initialised")
	}
	const query = `
UPDATE financial_year_periods
SET label = $1, start_date = $2, end_date = $3, is_active = $4, updated_at = $5
WHERE id = $6`
	tag, err := r.pool.Exec(ctx, query, strings.TrimSpace(p.Label), p.StartDate, p.EndDate, p.IsActive, time.Now().UTC(), id)
	if err != nil {
		if shared.IsUniqueViolation(err) {
			return ErrDuplicateLabel
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) Deactivate(ctx context.Context, id int64) error {
	if r == nil || r.pool == nil {
		return fmt.Errorf("periods repo not initialised")
	}
	tag, err := r.pool.Exec(ctx, `UPDATE financial_year_periods SET is_active = FALSE, updated_at = $1 WHERE id = $2`, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) FindByDate(ctx context.Context, d time.Time) (Period, error) {
	if r == nil || r.pool == nil {
		return Period{}, fmt.Errorf("periods repo not initialised")
	}
	query := `SELECT ` + periodColumns + ` FROM financial_year_periods WHERE is_active AND start_date <= $1 AND end_date >= $1 ORDER BY start_date DESC LIMIT 1`
	p, err := scanPeriod(r.pool.QueryRow(ctx, query, d))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Period{}, ErrNotFound
		}
		return Period{}, err
	}
	return p, nil
}

func (r *repository) Overlapping(ctx context.Context, start, end time.Time, excludeID int64) (bool, error) {
	if r == nil || r.pool == nil {
		return false, fmt.Errorf("periods repo not initialised")
	}
	const query = `
SELECT EXISTS (
    SELECT 1 FROM financial_year_periods
    WHERE is_active AND id <> $3 AND start_date <= $2 AND end_date >= $1
)`
	var exists bool
	if err := r.pool.QueryRow(ctx, query, start, end, excludeID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func scanPeriod(row pgx.Row) (Period, error) {
	var p Period
	err := row.Scan(&p.ID, &p.Label, &p.StartDate, &p.EndDate, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}
