// Package fiscal implements the financial-year calendar conventions used
// across the ledger: April-start years labelled "2024-25", tolerant month
// name resolution and quarter/half derivation.
package fiscal

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrBadLabel indicates an unparseable financial-year label.
type ErrBadLabel struct {
	Label string
}

func (e ErrBadLabel) Error() string {
	return fmt.Sprintf("fiscal: invalid financial year %q", e.Label)
}

var monthsByName = map[string]time.Month{
	"january": time.January, "february": time.February, "march": time.March,
	"april": time.April, "may": time.May, "june": time.June,
	"july": time.July, "august": time.August, "september": time.September,
	"october": time.October, "november": time.November, "december": time.December,
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "jun": time.June, "jul": time.July,
	"aug": time.August, "sep": time.September, "sept": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// Format renders the label for the financial year beginning in year,
// e.g. 2024 -> "2024-25".
func Format(year int) string {
	return fmt.Sprintf("%d-%02d", year, (year+1)%100)
}

// Parse resolves a label back to its starting year. Accepts "2024-25" and
// bare "2024".
func Parse(label string) (int, error) {
	trimmed := strings.TrimSpace(label)
	if trimmed == "" {
		return 0, ErrBadLabel{Label: label}
	}
	head, tail, found := strings.Cut(trimmed, "-")
	year, err := strconv.Atoi(head)
	if err != nil || year < 1900 || year > 9999 {
		return 0, ErrBadLabel{Label: label}
	}
	if !found {
		return year, nil
	}
	suffix, err := strconv.Atoi(tail)
	if err != nil || suffix != (year+1)%100 {
		return 0, ErrBadLabel{Label: label}
	}
	return year, nil
}

// MonthNumber resolves a month name to its calendar number, tolerant of
// case, surrounding space and three-letter abbreviations.
func MonthNumber(name string) (time.Month, bool) {
	m, ok := monthsByName[strings.ToLower(strings.TrimSpace(name))]
	return m, ok
}

// MonthName returns the canonical full month name.
func MonthName(m time.Month) string {
	return m.String()
}

// YearForDate returns the starting year of the financial year containing d
// on the April-start convention: January through March belong to the year
// that began the previous April.
func YearForDate(d time.Time) int {
	if d.Month() <= time.March {
		return d.Year() - 1
	}
	return d.Year()
}

// QuarterHalf derives the fiscal quarter and half for a calendar month on
// the April-start convention.
func QuarterHalf(m time.Month) (quarter, half string) {
	// Shift so April is month 0.
	offset := (int(m) - int(time.April) + 12) % 12
	quarter = fmt.Sprintf("Q%d", offset/3+1)
	if offset < 6 {
		half = "H1"
	} else {
		half = "H2"
	}
	return quarter, half
}

// YearDates computes the start and end dates of the financial year
// beginning in year for an entity whose fiscal year starts on
// startMonth/startDay. The end date is the day before the next year's
// start.
func YearDates(year int, startMonth time.Month, startDay int) (start, end time.Time) {
	if startMonth == 0 {
		startMonth = time.April
	}
	if startDay == 0 {
		startDay = 1
	}
	start = time.Date(year, startMonth, startDay, 0, 0, 0, 0, time.UTC)
	end = start.AddDate(1, 0, -1)
	return start, end
}
