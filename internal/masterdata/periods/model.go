package periods

import (
	"time"
)

// Period is a configured financial-year window. Only active periods take
// part in upload validation; deactivation keeps the row for audit.
type Period struct {
	ID        int64     `json:"id"`
	Label     string    `json:"label"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Contains reports whether d falls inside the period, bounds included.
func (p Period) Contains(d time.Time) bool {
	day := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	return !day.Before(p.StartDate) && !day.After(p.EndDate)
}
