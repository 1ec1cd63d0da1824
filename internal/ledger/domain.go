// Package ledger ingests entity trial balances, derives categorised
// consolidation rows and keeps their converted amounts current.
package ledger

import (
	"io"
	"time"
)

// RawLedgerRow preserves a trial-balance line as uploaded, before
// categorisation and conversion.
type RawLedgerRow struct {
	ID          int64     `json:"id"`
	EntityCode  string    `json:"entity_code"`
	Particular  string    `json:"particular"`
	Opening     *float64  `json:"opening"`
	Transaction *float64  `json:"transaction"`
	Closing     *float64  `json:"closing"`
	Month       string    `json:"month"`
	Year        int       `json:"year"`
	YearLabel   string    `json:"financial_year"`
	CreatedAt   time.Time `json:"created_at"`
}

// DerivedLedgerRow is the categorised consolidation row. Rate and
// USDAmount stay nil until a category mapping exists and a quote
// resolves; rows without them are countable conversion gaps.
type DerivedLedgerRow struct {
	ID            int64     `json:"id"`
	EntityCode    string    `json:"entity_code"`
	Particular    string    `json:"particular"`
	SelectedMonth string    `json:"selected_month"`
	Month         string    `json:"month"`
	Year          int       `json:"year"`
	YearLabel     string    `json:"financial_year"`
	Quarter       string    `json:"quarter"`
	HalfYear      string    `json:"half_year"`
	CategoryMain  *string   `json:"category_main"`
	Category1     *string   `json:"category1"`
	Category2     *string   `json:"category2"`
	Category3     *string   `json:"category3"`
	Category4     *string   `json:"category4"`
	Category5     *string   `json:"category5"`
	Amount        float64   `json:"amount"`
	Currency      string    `json:"currency"`
	Rate          *float64  `json:"rate"`
	USDAmount     *float64  `json:"usd_amount"`
	CreatedAt     time.Time `json:"created_at"`
}

// HasCategory reports whether any mapping was applied to the row.
func (d DerivedLedgerRow) HasCategory() bool {
	return d.CategoryMain != nil && *d.CategoryMain != ""
}

// OpeningMonth labels the synthetic opening-balance row inserted for an
// entity's first uploaded period.
const OpeningMonth = "Opening"

// UploadRequest carries one trial-balance upload.
type UploadRequest struct {
	EntityCode  string
	Month       string
	YearLabel   string
	NewCompany  *bool
	File        io.Reader
	FileName    string
	OperationID string
}

// UploadSummary reports what an upload did.
type UploadSummary struct {
	OperationID    string   `json:"operation_id,omitempty"`
	EntityCode     string   `json:"entity_code"`
	Month          string   `json:"month"`
	YearLabel      string   `json:"financial_year"`
	NewCompany     bool     `json:"new_company"`
	TotalRows      int      `json:"total_rows"`
	RawInserted    int      `json:"raw_inserted"`
	DerivedWritten int      `json:"derived_written"`
	Duplicates     int      `json:"duplicates"`
	Skipped        int      `json:"skipped"`
	Unmapped       int      `json:"unmapped"`
	Unrated        int      `json:"unrated"`
	Converted      int      `json:"converted"`
	Failed         int      `json:"failed"`
	Errors         []string `json:"errors,omitempty"`
	DocumentURL    string   `json:"document_url,omitempty"`
}

// RateUpdate sets the resolved conversion on one derived row.
type RateUpdate struct {
	ID        int64
	Rate      float64
	USDAmount float64
}
