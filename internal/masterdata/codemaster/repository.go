package codemaster

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the mapping does not exist.
var ErrNotFound = errors.New("codemaster: not found")

type Repository interface {
	List(ctx context.Context, search string) ([]Mapping, error)
	Get(ctx context.Context, id int64) (Mapping, error)
	Lookup(ctx context.Context, particular string) (Mapping, error)
	Upsert(ctx context.Context, m Mapping) (Mapping, bool, error)
	Delete(ctx context.Context, id int64) error
	DeleteAll(ctx context.Context) (int64, error)
	All(ctx context.Context) ([]Mapping, error)
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const mappingColumns = `id, raw_particulars, category_main, category1, category2, category3, category4, category5, created_at, updated_at`

func (r *repository) List(ctx context.Context, search string) ([]Mapping, error) {
	if r == nil || r.pool == nil {
		return nil, fmt.Errorf("codemaster repo not initialised")
	}
	query := `SELECT ` + mappingColumns + ` FROM code_master`
	args := []any{}
	if search != "" {
		query += ` WHERE raw_particulars ILIKE $1 OR category_main ILIKE $1`
		args = append(args, "%"+search+"%")
	}
	query += ` ORDER BY raw_particulars`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMappings(rows)
}

func (r *repository) All(ctx context.Context) ([]Mapping, error) {
	return r.List(ctx, "")
}

func (r *repository) Get(ctx context.Context, id int64) (Mapping, error) {
	if r == nil || r.pool == nil {
		return Mapping{}, fmt.Errorf("codemaster repo not initialised")
	}
	query := `SELECT ` + mappingColumns + ` FROM code_master WHERE id = $1`
	m, err := scanMapping(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Mapping{}, ErrNotFound
		}
		return Mapping{}, err
	}
	return m, nil
}

func (r *repository) Lookup(ctx context.Context, particular string) (Mapping, error) {
	if r == nil || r.pool == nil {
		return Mapping{}, fmt.Errorf("codemaster repo not initialised")
	}
	query := `SELECT ` + mappingColumns + ` FROM code_master WHERE LOWER(BTRIM(raw_particulars)) = $1`
	m, err := scanMapping(r.pool.QueryRow(ctx, query, NormalizeParticular(particular)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Mapping{}, ErrNotFound
		}
		return Mapping{}, err
	}
	return m, nil
}

// Upsert inserts or refreshes the mapping keyed by the normalized
// particular. The bool result reports whether a new row was created.
func (r *repository) Upsert(ctx context.Context, m Mapping) (Mapping, bool, error) {
	if r == nil || r.pool == nil {
		return Mapping{}, false, fmt.Errorf("codemaster repo not initialised")
	}
	const query = `
INSERT INTO code_master (raw_particulars, category_main, category1, category2, category3, category4, category5, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
ON CONFLICT ((LOWER(BTRIM(raw_particulars))))
DO UPDATE SET category_main = EXCLUDED.category_main,
              category1 = EXCLUDED.category1,
              category2 = EXCLUDED.category2,
              category3 = EXCLUDED.category3,
              category4 = EXCLUDED.category4,
              category5 = EXCLUDED.category5,
              updated_at = EXCLUDED.updated_at
RETURNING id, (created_at = updated_at) AS inserted`
	now := time.Now().UTC()
	var inserted bool
	err := r.pool.QueryRow(ctx, query,
		m.RawParticulars, m.CategoryMain, m.Category1, m.Category2, m.Category3, m.Category4, m.Category5, now,
	).Scan(&m.ID, &inserted)
	if err != nil {
		return Mapping{}, false, err
	}
	m.UpdatedAt = now
	return m, inserted, nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	if r == nil || r.pool == nil {
		return fmt.Errorf("codemaster repo not initialised")
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM code_master WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) DeleteAll(ctx context.Context) (int64, error) {
	if r == nil || r.pool == nil {
		return 0, fmt.Errorf("codemaster repo not initialised")
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM code_master`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanMappings(rows pgx.Rows) ([]Mapping, error) {
	var out []Mapping
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanMapping(row pgx.Row) (Mapping, error) {
	var m Mapping
	err := row.Scan(&m.ID, &m.RawParticulars, &m.CategoryMain, &m.Category1, &m.Category2,
		&m.Category3, &m.Category4, &m.Category5, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}
