package ledger

import (
	"strings"
)

// Statement classifies a derived row for rate selection: income-statement
// rows convert at the period-average rate, balance-sheet rows at closing.
type Statement int

const (
	BalanceSheet Statement = iota
	ProfitAndLoss
)

func (s Statement) String() string {
	if s == ProfitAndLoss {
		return "P&L"
	}
	return "BS"
}

// plSynonyms are the category spellings treated as income statement.
var plSynonyms = map[string]bool{
	"p&l":               true,
	"pl":                true,
	"pnl":               true,
	"p & l":             true,
	"profit & loss":     true,
	"profit and loss":   true,
	"profit loss":       true,
	"profit&loss":       true,
	"income statement":  true,
	"statement of p&l":  true,
	"income & expenses": true,
}

// ClassifyStatement buckets a row by its main category, falling back to
// category1. Anything unrecognised is treated as balance sheet.
func ClassifyStatement(categoryMain, category1 string) Statement {
	if isProfitAndLoss(categoryMain) || isProfitAndLoss(category1) {
		return ProfitAndLoss
	}
	return BalanceSheet
}

func isProfitAndLoss(category string) bool {
	return plSynonyms[strings.ToLower(strings.TrimSpace(category))]
}
