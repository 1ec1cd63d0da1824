// Package reporting reads the consolidated ledger: structured row
// listings, category summaries, the consolidation pivot, conversion gap
// reports and upload history.
package reporting

import (
	"time"
)

// Filter narrows report queries. EntityCodes is the already resolved
// scope; empty means every entity.
type Filter struct {
	EntityCodes []string
	YearLabel   string
	Month       string
}

// CategorySummaryRow aggregates one main category.
type CategorySummaryRow struct {
	CategoryMain string  `json:"category_main"`
	Rows         int64   `json:"rows"`
	LocalTotal   float64 `json:"local_total"`
	USDTotal     float64 `json:"usd_total"`
	Unconverted  int64   `json:"unconverted"`
}

// PivotCell is one aggregated cell of the consolidation pivot before
// nesting.
type PivotCell struct {
	CategoryMain string
	Category1    string
	Category2    string
	EntityCode   string
	LocalTotal   float64
	USDTotal     float64
}

// ConsolidationEntity is the innermost pivot level.
type ConsolidationEntity struct {
	EntityCode string  `json:"entity_code"`
	USDTotal   float64 `json:"usd_total"`
}

// ConsolidationGroup totals one category2 bucket.
type ConsolidationGroup struct {
	Category2 string                `json:"category2"`
	USDTotal  float64               `json:"usd_total"`
	Entities  []ConsolidationEntity `json:"entities"`
}

// ConsolidationLine totals one category1 bucket.
type ConsolidationLine struct {
	Category1 string               `json:"category1"`
	USDTotal  float64              `json:"usd_total"`
	Groups    []ConsolidationGroup `json:"groups"`
}

// ConsolidationStatement is one side of the pivot, balance sheet or
// income statement.
type ConsolidationStatement struct {
	Statement string              `json:"statement"`
	USDTotal  float64             `json:"usd_total"`
	Lines     []ConsolidationLine `json:"lines"`
}

// ConsolidationReport is the full nested pivot.
type ConsolidationReport struct {
	YearLabel   string                   `json:"financial_year,omitempty"`
	Statements  []ConsolidationStatement `json:"statements"`
	GeneratedAt time.Time                `json:"generated_at"`
}

// FxGap counts categorised rows that still lack a converted amount.
type FxGap struct {
	EntityCode string  `json:"entity_code"`
	Currency   string  `json:"currency"`
	YearLabel  string  `json:"financial_year"`
	Rows       int64   `json:"rows"`
	LocalTotal float64 `json:"local_total"`
}
