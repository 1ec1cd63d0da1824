package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is the querying surface shared by *pgxpool.Pool and pgx.Tx, so
// repository methods work the same inside and outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type Repository interface {
	InTx(ctx context.Context, fn func(Repository) error) error

	DeleteScope(ctx context.Context, entityCode, selectedMonth, yearLabel string) (int64, error)
	CountScope(ctx context.Context, entityCode, selectedMonth, yearLabel string) (int64, error)
	HasRawRows(ctx context.Context, entityCode string) (bool, error)
	InsertRaw(ctx context.Context, row RawLedgerRow) (int64, error)
	InsertDerived(ctx context.Context, row DerivedLedgerRow) (int64, error)
	ExistsDerivedNear(ctx context.Context, row DerivedLedgerRow) (bool, error)
	HardDedupScope(ctx context.Context, entityCode, selectedMonth, yearLabel string) (int64, error)

	UpdateRates(ctx context.Context, updates []RateUpdate) error
	UnratedRows(ctx context.Context) ([]DerivedLedgerRow, error)
	RecomputeCurrency(ctx context.Context, currencyVariants, plCategories []string, profitAndLoss bool, rate float64) (int64, error)

	SyncCategories(ctx context.Context) (int64, error)
	SyncCategoriesForParticular(ctx context.Context, particular string) (int64, error)
	PruneUnmapped(ctx context.Context) (int64, error)

	PurgeAll(ctx context.Context) (int64, error)
}

type repository struct {
	db   DBTX
	pool *pgxpool.Pool
}

// NewRepository builds the pgx-backed ledger repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

// InTx runs fn against a repository bound to a single transaction. Nested
// calls run in the caller's transaction.
func (r *repository) InTx(ctx context.Context, fn func(Repository) error) error {
	if r.pool == nil {
		return fn(r)
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin ledger tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&repository{db: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const scopeFilter = `LOWER(BTRIM(entity_code)) = LOWER(BTRIM($1)) AND selected_month = $2 AND financial_year = $3`

func (r *repository) DeleteScope(ctx context.Context, entityCode, selectedMonth, yearLabel string) (int64, error) {
	rawTag, err := r.db.Exec(ctx,
		`DELETE FROM raw_ledger_rows WHERE LOWER(BTRIM(entity_code)) = LOWER(BTRIM($1)) AND month = $2 AND financial_year = $3`,
		entityCode, selectedMonth, yearLabel)
	if err != nil {
		return 0, err
	}
	derivedTag, err := r.db.Exec(ctx, `DELETE FROM derived_ledger_rows WHERE `+scopeFilter, entityCode, selectedMonth, yearLabel)
	if err != nil {
		return 0, err
	}
	return rawTag.RowsAffected() + derivedTag.RowsAffected(), nil
}

func (r *repository) CountScope(ctx context.Context, entityCode, selectedMonth, yearLabel string) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM derived_ledger_rows WHERE `+scopeFilter,
		entityCode, selectedMonth, yearLabel).Scan(&count)
	return count, err
}

func (r *repository) HasRawRows(ctx context.Context, entityCode string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM raw_ledger_rows WHERE LOWER(BTRIM(entity_code)) = LOWER(BTRIM($1)))`,
		entityCode).Scan(&exists)
	return exists, err
}

func (r *repository) InsertRaw(ctx context.Context, row RawLedgerRow) (int64, error) {
	const query = `
INSERT INTO raw_ledger_rows (entity_code, particular, opening, transaction, closing, month, year, financial_year, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
RETURNING id`
	var id int64
	err := r.db.QueryRow(ctx, query,
		row.EntityCode, row.Particular, row.Opening, row.Transaction, row.Closing,
		row.Month, row.Year, row.YearLabel).Scan(&id)
	return id, err
}

func (r *repository) InsertDerived(ctx context.Context, row DerivedLedgerRow) (int64, error) {
	const query = `
INSERT INTO derived_ledger_rows (
    entity_code, particular, selected_month, month, year, financial_year, quarter, half_year,
    category_main, category1, category2, category3, category4, category5,
    amount, currency, rate, usd_amount, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, NOW())
RETURNING id`
	var id int64
	err := r.db.QueryRow(ctx, query,
		row.EntityCode, row.Particular, row.SelectedMonth, row.Month, row.Year, row.YearLabel,
		row.Quarter, row.HalfYear,
		row.CategoryMain, row.Category1, row.Category2, row.Category3, row.Category4, row.Category5,
		row.Amount, row.Currency, row.Rate, row.USDAmount).Scan(&id)
	return id, err
}

// ExistsDerivedNear reports whether a row with the same key already sits
// in the table within a cent of the candidate amount.
func (r *repository) ExistsDerivedNear(ctx context.Context, row DerivedLedgerRow) (bool, error) {
	const query = `
SELECT EXISTS (
    SELECT 1 FROM derived_ledger_rows
     WHERE LOWER(BTRIM(particular)) = LOWER(BTRIM($1))
       AND LOWER(BTRIM(entity_code)) = LOWER(BTRIM($2))
       AND selected_month = $3
       AND financial_year = $4
       AND month = $5
       AND ABS(amount - $6) < 0.01)`
	var exists bool
	err := r.db.QueryRow(ctx, query,
		row.Particular, row.EntityCode, row.SelectedMonth, row.YearLabel, row.Month, row.Amount).Scan(&exists)
	return exists, err
}

// HardDedupScope removes duplicate derived rows inside one upload scope,
// keeping the earliest insert of each key.
func (r *repository) HardDedupScope(ctx context.Context, entityCode, selectedMonth, yearLabel string) (int64, error) {
	const query = `
DELETE FROM derived_ledger_rows d
 USING derived_ledger_rows k
 WHERE LOWER(BTRIM(d.entity_code)) = LOWER(BTRIM($1))
   AND d.selected_month = $2
   AND d.financial_year = $3
   AND k.entity_code = d.entity_code
   AND k.selected_month = d.selected_month
   AND k.financial_year = d.financial_year
   AND k.month = d.month
   AND LOWER(BTRIM(k.particular)) = LOWER(BTRIM(d.particular))
   AND ABS(k.amount - d.amount) < 0.01
   AND k.id < d.id`
	tag, err := r.db.Exec(ctx, query, entityCode, selectedMonth, yearLabel)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// UpdateRates applies resolved conversions in one round trip.
func (r *repository) UpdateRates(ctx context.Context, updates []RateUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, u := range updates {
		batch.Queue(`UPDATE derived_ledger_rows SET rate = $1, usd_amount = $2 WHERE id = $3`,
			u.Rate, u.USDAmount, u.ID)
	}
	results := r.db.SendBatch(ctx, batch)
	defer results.Close()
	for range updates {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}

const derivedColumns = `id, entity_code, particular, selected_month, month, year, financial_year, quarter, half_year,
    category_main, category1, category2, category3, category4, category5,
    amount, currency, rate, usd_amount, created_at`

// UnratedRows returns categorised rows still missing a converted amount.
func (r *repository) UnratedRows(ctx context.Context) ([]DerivedLedgerRow, error) {
	query := `SELECT ` + derivedColumns + `
  FROM derived_ledger_rows
 WHERE usd_amount IS NULL AND category_main IS NOT NULL
 ORDER BY id`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDerivedRows(rows)
}

// RecomputeCurrency rewrites conversions for every row in one currency
// and statement bucket. Statement membership is decided by the category
// columns against the caller's income-statement spellings.
func (r *repository) RecomputeCurrency(ctx context.Context, currencyVariants, plCategories []string, profitAndLoss bool, rate float64) (int64, error) {
	const query = `
UPDATE derived_ledger_rows
   SET rate = $1,
       usd_amount = ROUND((amount * $1)::numeric, 2)
 WHERE UPPER(BTRIM(currency)) = ANY($2)
   AND category_main IS NOT NULL
   AND (LOWER(BTRIM(COALESCE(category_main, ''))) = ANY($3)
        OR LOWER(BTRIM(COALESCE(category1, ''))) = ANY($3)) = $4`
	upper := make([]string, 0, len(currencyVariants))
	for _, v := range currencyVariants {
		upper = append(upper, strings.ToUpper(strings.TrimSpace(v)))
	}
	tag, err := r.db.Exec(ctx, query, rate, upper, plCategories, profitAndLoss)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const syncCategoriesSet = `
   SET category_main = m.category_main,
       category1 = m.category1,
       category2 = m.category2,
       category3 = m.category3,
       category4 = m.category4,
       category5 = m.category5`

// SyncCategories backfills derived rows with a matching particular.
// Rows with every category column populated are left alone, so manual
// category corrections survive the sync.
func (r *repository) SyncCategories(ctx context.Context) (int64, error) {
	query := `
UPDATE derived_ledger_rows d` + syncCategoriesSet + `
  FROM code_master m
 WHERE LOWER(BTRIM(d.particular)) = LOWER(BTRIM(m.raw_particulars))
   AND (d.category_main IS NULL OR BTRIM(d.category_main) = ''
        OR d.category1 IS NULL OR BTRIM(d.category1) = ''
        OR d.category2 IS NULL OR BTRIM(d.category2) = ''
        OR d.category3 IS NULL OR BTRIM(d.category3) = ''
        OR d.category4 IS NULL OR BTRIM(d.category4) = ''
        OR d.category5 IS NULL OR BTRIM(d.category5) = '')`
	tag, err := r.db.Exec(ctx, query)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *repository) SyncCategoriesForParticular(ctx context.Context, particular string) (int64, error) {
	query := `
UPDATE derived_ledger_rows d` + syncCategoriesSet + `
  FROM code_master m
 WHERE LOWER(BTRIM(m.raw_particulars)) = LOWER(BTRIM($1))
   AND LOWER(BTRIM(d.particular)) = LOWER(BTRIM(m.raw_particulars))`
	tag, err := r.db.Exec(ctx, query, particular)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// PruneUnmapped blanks categories on rows whose particular no longer
// appears in the code master. Administrative: manual corrections live on
// rows without a master entry, so this never runs implicitly.
func (r *repository) PruneUnmapped(ctx context.Context) (int64, error) {
	const query = `
UPDATE derived_ledger_rows d
   SET category_main = NULL, category1 = NULL, category2 = NULL,
       category3 = NULL, category4 = NULL, category5 = NULL,
       rate = NULL, usd_amount = NULL
 WHERE d.category_main IS NOT NULL
   AND NOT EXISTS (
       SELECT 1 FROM code_master m
        WHERE LOWER(BTRIM(m.raw_particulars)) = LOWER(BTRIM(d.particular)))`
	tag, err := r.db.Exec(ctx, query)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// PurgeAll truncates both ledger tables. Masterdata survives.
func (r *repository) PurgeAll(ctx context.Context) (int64, error) {
	rawTag, err := r.db.Exec(ctx, `DELETE FROM raw_ledger_rows`)
	if err != nil {
		return 0, err
	}
	derivedTag, err := r.db.Exec(ctx, `DELETE FROM derived_ledger_rows`)
	if err != nil {
		return 0, err
	}
	return rawTag.RowsAffected() + derivedTag.RowsAffected(), nil
}

func scanDerivedRows(rows pgx.Rows) ([]DerivedLedgerRow, error) {
	var out []DerivedLedgerRow
	for rows.Next() {
		var d DerivedLedgerRow
		if err := rows.Scan(&d.ID, &d.EntityCode, &d.Particular, &d.SelectedMonth, &d.Month, &d.Year,
			&d.YearLabel, &d.Quarter, &d.HalfYear,
			&d.CategoryMain, &d.Category1, &d.Category2, &d.Category3, &d.Category4, &d.Category5,
			&d.Amount, &d.Currency, &d.Rate, &d.USDAmount, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
