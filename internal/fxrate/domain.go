// Package fxrate stores conversion rates and resolves the quote for a
// ledger row. Two sources exist: per-entity financial-year rates and the
// legacy currency table kept for uploads predating entity rates.
package fxrate

import (
	"time"
)

// LegacyRate is one row of the append-only legacy conversion table.
// Updates insert a new row; the latest row per currency wins.
type LegacyRate struct {
	ID          int64     `json:"id"`
	Currency    string    `json:"currency"`
	InitialRate *float64  `json:"initial_rate"`
	LatestRate  *float64  `json:"latest_rate"`
	MonthLabel  string    `json:"month,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// EntityRate is a per-entity, per-currency, per-financial-year quote.
type EntityRate struct {
	ID          int64     `json:"id"`
	EntityCode  string    `json:"entity_code"`
	Currency    string    `json:"currency"`
	YearLabel   string    `json:"financial_year"`
	OpeningRate *float64  `json:"opening_rate"`
	ClosingRate *float64  `json:"closing_rate"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	CreatedBy   string    `json:"created_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Quote is a resolved conversion quote, normalized across both sources:
// entity opening/closing or legacy initial/latest.
type Quote struct {
	Opening          *float64
	Closing          *float64
	Source           string
	YearUsed         string
	AdjacentYearUsed bool
}

// Rate picks the effective conversion rate. With preferAverage the mean of
// both sides is used when both are present, otherwise whichever side
// exists; without it only the closing side counts. The bool result is
// false when no usable rate exists.
func (q Quote) Rate(preferAverage bool) (float64, bool) {
	if preferAverage {
		switch {
		case q.Opening != nil && q.Closing != nil:
			return (*q.Opening + *q.Closing) / 2, true
		case q.Closing != nil:
			return *q.Closing, true
		case q.Opening != nil:
			return *q.Opening, true
		}
		return 0, false
	}
	if q.Closing != nil {
		return *q.Closing, true
	}
	return 0, false
}

// Empty reports whether the quote carries no rate at all.
func (q Quote) Empty() bool {
	return q.Opening == nil && q.Closing == nil
}
