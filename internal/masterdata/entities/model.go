package entities

import (
	"time"
)

// Entity represents a legal entity participating in consolidation.
type Entity struct {
	ID           int64     `json:"id"`
	Code         string    `json:"code"`
	Name         string    `json:"name"`
	Currency     string    `json:"currency"`
	FYStartMonth int       `json:"fy_start_month"`
	FYStartDay   int       `json:"fy_start_day"`
	ParentID     *int64    `json:"parent_id,omitempty"`
	City         string    `json:"city,omitempty"`
	Country      string    `json:"country,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
