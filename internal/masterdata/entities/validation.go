package entities

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/currency"

	"github.com/groupledger/groupledger/internal/shared"
)

func invalid(format string, args ...any) error {
	return shared.NewCodedError(shared.CategoryValidation, "INVALID_ENTITY", fmt.Sprintf(format, args...))
}

func (s *Service) validate(e Entity) error {
	if strings.TrimSpace(e.Code) == "" {
		return invalid("entity code is required")
	}
	if strings.TrimSpace(e.Name) == "" {
		return invalid("entity name is required")
	}
	if _, err := currency.ParseISO(strings.TrimSpace(e.Currency)); err != nil {
		return invalid("invalid currency %q", e.Currency)
	}
	if e.FYStartMonth < 0 || e.FYStartMonth > 12 {
		return invalid("invalid fiscal year start month %d", e.FYStartMonth)
	}
	if e.FYStartDay < 0 || e.FYStartDay > 31 {
		return invalid("invalid fiscal year start day %d", e.FYStartDay)
	}
	if e.FYStartMonth != 0 && e.FYStartDay != 0 {
		month := time.Month(e.FYStartMonth)
		if time.Date(2024, month, e.FYStartDay, 0, 0, 0, 0, time.UTC).Month() != month {
			return invalid("day %d does not exist in month %d", e.FYStartDay, e.FYStartMonth)
		}
	}
	return nil
}
