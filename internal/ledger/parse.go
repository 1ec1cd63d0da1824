package ledger

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/groupledger/groupledger/internal/shared"
)

// amountPattern extracts the numeric part of a cell. Thousands separators
// are tolerated; a leading minus is the only sign marker honoured.
var amountPattern = regexp.MustCompile(`-?[\d,]+\.?\d*`)

var blankAmounts = map[string]bool{
	"": true, "-": true, "nan": true, "none": true, "null": true, "n/a": true,
}

// ParseSignedAmount parses a trial-balance cell. Blank-ish cells return
// nil without error; cells with text but no number fail.
func ParseSignedAmount(cell string) (*float64, error) {
	trimmed := strings.TrimSpace(cell)
	if blankAmounts[strings.ToLower(trimmed)] {
		return nil, nil
	}
	match := amountPattern.FindString(trimmed)
	if match == "" {
		return nil, fmt.Errorf("no numeric value in %q", cell)
	}
	match = strings.ReplaceAll(match, ",", "")
	d, err := decimal.NewFromString(match)
	if err != nil {
		return nil, fmt.Errorf("unparseable amount %q", cell)
	}
	v, _ := d.Float64()
	return &v, nil
}

// RoundKeyAmount rounds deterministically to two decimals for duplicate
// keys, avoiding float formatting drift.
func RoundKeyAmount(v float64) float64 {
	out, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return out
}

// tbRow is one parsed trial-balance line.
type tbRow struct {
	Line        int
	Particular  string
	Opening     *float64
	Transaction *float64
	Closing     *float64
}

var tbHeaderAliases = map[string]string{
	"particular":     "particular",
	"particulars":    "particular",
	"rawparticular":  "particular",
	"rawparticulars": "particular",
	"opening":        "opening",
	"openingbalance": "opening",
	"opbalance":      "opening",
	"transaction":    "transaction",
	"transactions":   "transaction",
	"movement":       "transaction",
	"netmovement":    "transaction",
	"closing":        "closing",
	"closingbalance": "closing",
	"clbalance":      "closing",
}

func foldHeader(h string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(h) {
		if r == ' ' || r == '_' || r == '-' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// parseWorkbook reads the first sheet of a trial-balance workbook. The
// particulars column is required; amount columns are optional and
// matched tolerantly. Rows with a blank particular come back with an
// empty Particular so callers can count them as skipped; cells that fail
// to parse surface as rowErrs entries rather than failing the upload.
func parseWorkbook(file io.Reader) (rows []tbRow, rowErrs []string, err error) {
	f, err := excelize.OpenReader(file)
	if err != nil {
		return nil, nil, shared.NewCodedError(shared.CategoryValidation, "INVALID_WORKBOOK", "could not read spreadsheet").Wrap(err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	raw, err := f.GetRows(sheet)
	if err != nil {
		return nil, nil, shared.NewCodedError(shared.CategoryValidation, "INVALID_WORKBOOK", "could not read sheet").Wrap(err)
	}
	if len(raw) == 0 {
		return nil, nil, shared.NewCodedError(shared.CategoryValidation, "EMPTY_WORKBOOK", "workbook has no rows")
	}

	columns := map[string]int{}
	for idx, header := range raw[0] {
		if role, ok := tbHeaderAliases[foldHeader(header)]; ok {
			if _, seen := columns[role]; !seen {
				columns[role] = idx
			}
		}
	}
	if _, ok := columns["particular"]; !ok {
		return nil, nil, shared.NewCodedError(shared.CategoryValidation, "MISSING_COLUMN", "no particulars column found")
	}

	cell := func(row []string, role string) (string, bool) {
		idx, ok := columns[role]
		if !ok || idx >= len(row) {
			return "", false
		}
		return row[idx], true
	}

	for i, row := range raw[1:] {
		line := i + 2
		particular, _ := cell(row, "particular")
		parsed := tbRow{Line: line, Particular: strings.TrimSpace(particular)}
		for _, role := range []string{"opening", "transaction", "closing"} {
			text, ok := cell(row, role)
			if !ok {
				continue
			}
			value, perr := ParseSignedAmount(text)
			if perr != nil {
				rowErrs = append(rowErrs, fmt.Sprintf("row %d: %s: %v", line, role, perr))
				continue
			}
			switch role {
			case "opening":
				parsed.Opening = value
			case "transaction":
				parsed.Transaction = value
			case "closing":
				parsed.Closing = value
			}
		}
		rows = append(rows, parsed)
	}
	return rows, rowErrs, nil
}
