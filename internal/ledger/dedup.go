package ledger

import (
	"fmt"
	"strings"
)

// dedupKey identifies a derived row for duplicate suppression within an
// upload scope. Amounts are rounded to two decimals so re-uploads of the
// same sheet collapse regardless of float noise.
func dedupKey(particular, entityCode, selectedMonth, yearLabel, month string, amount float64) string {
	return strings.Join([]string{
		strings.ToLower(strings.TrimSpace(particular)),
		strings.ToLower(strings.TrimSpace(entityCode)),
		strings.ToLower(strings.TrimSpace(selectedMonth)),
		strings.ToLower(strings.TrimSpace(yearLabel)),
		strings.ToLower(strings.TrimSpace(month)),
		fmt.Sprintf("%.2f", RoundKeyAmount(amount)),
	}, "|")
}

// dedupSet tracks keys already written in the current upload.
type dedupSet map[string]bool

// Add records the row's key and reports whether it was new.
func (s dedupSet) Add(row DerivedLedgerRow) bool {
	key := dedupKey(row.Particular, row.EntityCode, row.SelectedMonth, row.YearLabel, row.Month, row.Amount)
	if s[key] {
		return false
	}
	s[key] = true
	return true
}
