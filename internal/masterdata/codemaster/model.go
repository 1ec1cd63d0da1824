package codemaster

import (
	"strings"
	"time"
)

// Mapping assigns consolidation categories to a raw trial-balance particular.
type Mapping struct {
	ID             int64     `json:"id"`
	RawParticulars string    `json:"raw_particulars"`
	CategoryMain   string    `json:"category_main"`
	Category1      string    `json:"category1"`
	Category2      string    `json:"category2"`
	Category3      string    `json:"category3"`
	Category4      string    `json:"category4"`
	Category5      string    `json:"category5"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NormalizeParticular folds a particular to the match key used everywhere:
// lower-cased and trimmed.
func NormalizeParticular(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
