package reporting

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/groupledger/groupledger/internal/ledger"
)

type Repository interface {
	Rows(ctx context.Context, f Filter) ([]ledger.DerivedLedgerRow, error)
	CategorySummary(ctx context.Context, f Filter) ([]CategorySummaryRow, error)
	PivotCells(ctx context.Context, f Filter) ([]PivotCell, error)
	FxGaps(ctx context.Context) ([]FxGap, error)
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

// filterClause renders the shared WHERE fragment, continuing the
// placeholder numbering from args.
func filterClause(f Filter, args []any) (string, []any) {
	clause := " WHERE 1=1"
	if len(f.EntityCodes) > 0 {
		args = append(args, f.EntityCodes)
		clause += fmt.Sprintf(" AND UPPER(BTRIM(entity_code)) = ANY($%d)", len(args))
	}
	if f.YearLabel != "" {
		args = append(args, f.YearLabel)
		clause += fmt.Sprintf(" AND financial_year = $%d", len(args))
	}
	if f.Month != "" {
		args = append(args, f.Month)
		clause += fmt.Sprintf(" AND selected_month = $%d", len(args))
	}
	return clause, args
}

const derivedColumns = `id, entity_code, particular, selected_month, month, year, financial_year, quarter, half_year,
    category_main, category1, category2, category3, category4, category5,
    amount, currency, rate, usd_amount, created_at`

func (r *repository) Rows(ctx context.Context, f Filter) ([]ledger.DerivedLedgerRow, error) {
	clause, args := filterClause(f, nil)
	query := `SELECT ` + derivedColumns + ` FROM derived_ledger_rows` + clause +
		` ORDER BY entity_code, financial_year, month, particular, id`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.DerivedLedgerRow
	for rows.Next() {
		var d ledger.DerivedLedgerRow
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

func (r *repository) CategorySummary(ctx context.Context, f Filter) ([]CategorySummaryRow, error) {
	clause, args := filterClause(f, nil)
	query := `
SELECT COALESCE(category_main, 'Unmapped') AS category_main,
       COUNT(*) AS rows,
       COALESCE(SUM(amount), 0) AS local_total,
       COALESCE(SUM(usd_amount), 0) AS usd_total,
       COUNT(*) FILTER (WHERE usd_amount IS NULL) AS unconverted
  FROM derived_ledger_rows` + clause + `
 GROUP BY COALESCE(category_main, 'Unmapped')
 ORDER BY category_main`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CategorySummaryRow
	for rows.Next() {
		var s CategorySummaryRow
		if err := rows.Scan(&s.CategoryMain, &s.Rows, &s.LocalTotal, &s.USDTotal, &s.Unconverted); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *repository) PivotCells(ctx context.Context, f Filter) ([]PivotCell, error) {
	clause, args := filterClause(f, nil)
	query := `
SELECT COALESCE(category_main, ''),
       COALESCE(category1, ''),
       COALESCE(category2, ''),
       UPPER(BTRIM(entity_code)),
       COALESCE(SUM(amount), 0),
       COALESCE(SUM(usd_amount), 0)
  FROM derived_ledger_rows` + clause + `
   AND category_main IS NOT NULL
 GROUP BY 1, 2, 3, 4
 ORDER BY 1, 2, 3, 4`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PivotCell
	for rows.Next() {
		var c PivotCell
		if err := rows.Scan(&c.CategoryMain, &c.Category1, &c.Category2, &c.EntityCode, &c.LocalTotal, &c.USDTotal); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *repository) FxGaps(ctx context.Context) ([]FxGap, error) {
	const query = `
SELECT UPPER(BTRIM(entity_code)), UPPER(BTRIM(currency)), financial_year,
       COUNT(*), COALESCE(SUM(amount), 0)
  FROM derived_ledger_rows
 WHERE usd_amount IS NULL AND category_main IS NOT NULL
 GROUP BY 1, 2, 3
 ORDER BY 1, 3, 2`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FxGap
	for rows.Next() {
		var g FxGap
		if err := rows.Scan(&g.EntityCode, &g.Currency, &g.YearLabel, &g.Rows, &g.LocalTotal); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}
