package entities

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

// ErrNotFound indicates the entity does not exist.
var ErrNotFound = errors.New("entities: not found")

// ErrDuplicateCode indicates the entity code is already taken.
var ErrDuplicateCode = errors.New("entities: duplicate code")

type Repository interface {
	List(ctx context.Context) ([]Entity, error)
	Get(ctx context.Context, id int64) (Entity, error)
	GetByCode(ctx context.Context, code string) (Entity, error)
	Create(ctx context.Context, entity Entity) (Entity, error)
	Update(ctx context.Context, id int64, entity Entity) error
	Delete(ctx context.Context, id int64) error
	Descendants(ctx context.Context, id int64) ([]Entity, error)
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const entityColumns = `id, code, name, currency, fy_start_month, fy_start_day, parent_id, city, country, created_at, updated_at`

func (r *repository) List(ctx context.Context) ([]Entity, error) {
	if r == nil || r.pool == nil {
		return nil, fmt.Errorf("entities repo not initialised")
	}
	query := `SELECT ` + entityColumns + ` FROM entities ORDER BY name`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntities(rows)
}

func (r *repository) Get(ctx context.Context, id int64) (Entity, error) {
	if r == nil || r.pool == nil {
		return Entity{}, fmt.Errorf("entities repo not initialised")
	}
	query := `SELECT ` + entityColumns + ` FROM entities WHERE id = $1`
	e, err := scanEntity(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entity{}, ErrNotFound
		}
		return Entity{}, err
	}
	return e, nil
}

func (r *repository) GetByCode(ctx context.Context, code string) (Entity, error) {
	if r == nil || r.pool == nil {
		return Entity{}, fmt.Errorf("entities repo not initialised")
	}
	query := `SELECT ` + entityColumns + ` FROM entities WHERE LOWER(BTRIM(code)) = LOWER(BTRIM($1))`
	e, err := scanEntity(r.pool.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entity{}, ErrNotFound
		}
		return Entity{}, err
	}
	return e, nil
}

func (r *repository) Create(ctx context.Context, entity Entity) (Entity, error) {
	if r == nil || r.pool == nil {
		return Entity{}, fmt.Errorf("entities repo not initialised")
	}
	const query = `
INSERT INTO entities (code, name, currency, fy_start_month, fy_start_day, parent_id, city, country, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
RETURNING id`
	now := time.Now().UTC()
	err := r.pool.QueryRow(ctx, query,
		strings.TrimSpace(entity.Code),
		strings.TrimSpace(entity.Name),
		strings.ToUpper(strings.TrimSpace(entity.Currency)),
		entity.FYStartMonth,
		entity.FYStartDay,
		entity.ParentID,
		entity.City,
		entity.Country,
		now,
	).Scan(&entity.ID)
	if err != nil {
		if shared.IsUniqueViolation(err) {
			return Entity{}, ErrDuplicateCode
		}
		return Entity{}, err
	}
	entity.CreatedAt = now
	entity.UpdatedAt = now
	return entity, nil
}

func (r *repository) Update(ctx context.Context, id int64, entity Entity) error {
	if r == nil || r.pool == nil {
		return fmt.Errorf("entities repo not initialised")
	}
	const query = `
UPDATE entities
SET code = $1, name = $2, currency = $3, fy_start_month = $4, fy_start_day = $5,
    parent_id = $6, city = $7, country = $8, updated_at = $9
WHERE id = $10`
	tag, err := r.pool.Exec(ctx, query,
		strings.TrimSpace(entity.Code),
		strings.TrimSpace(entity.Name),
		strings.ToUpper(strings.TrimSpace(entity.Currency)),
		entity.FYStartMonth,
		entity.FYStartDay,
		entity.ParentID,
		entity.City,
		entity.Country,
		time.Now().UTC(),
		id,
	)
	if err != nil {
		if shared.IsUniqueViolation(err) {
			return ErrDuplicateCode
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	if r == nil || r.pool == nil {
		return fmt.Errorf("entities repo not initialised")
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM entities WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Descendants returns the transitive closure rooted at id, root included.
func (r *repository) Descendants(ctx context.Context, id int64) ([]Entity, error) {
	if r == nil || r.pool == nil {
		return nil, fmt.Errorf("entities repo not initialised")
	}
	const query = `
WITH RECURSIVE subtree AS (
    SELECT ` + entityColumns + ` FROM entities WHERE id = $1
    UNION
    SELECT e.id, e.code, e.name, e.currency, e.fy_start_month, e.fy_start_day,
           e.parent_id, e.city, e.country, e.created_at, e.updated_at
    FROM entities e
    JOIN subtree s ON e.parent_id = s.id
)
SELECT ` + entityColumns + ` FROM subtree ORDER BY id`
	rows, err := r.pool.Query(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntities(rows)
}

func scanEntities(rows pgx.Rows) ([]Entity, error) {
	var out []Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEntity(row pgx.Row) (Entity, error) {
	var e Entity
	err := row.Scan(&e.ID, &e.Code, &e.Name, &e.Currency, &e.FYStartMonth, &e.FYStartDay,
		&e.ParentID, &e.City, &e.Country, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}
