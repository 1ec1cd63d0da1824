package reporting

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

func sheetName(statement string) string {
	if statement == "P&L" {
		return "Profit & Loss"
	}
	return "Balance Sheet"
}

// ExportConsolidation renders the pivot as a workbook, one sheet per
// statement, and returns the buffer with a suggested filename.
func (s *Service) ExportConsolidation(ctx context.Context, q Query) (*bytes.Buffer, string, error) {
	report, err := s.Consolidation(ctx, q)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	header := []any{"Category 1", "Category 2", "Entity", "USD Total"}
	for i, stmt := range report.Statements {
		name := sheetName(stmt.Statement)
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
				return nil, "", err
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return nil, "", err
		}

		if err := f.SetSheetRow(name, "A1", &header); err != nil {
			return nil, "", err
		}
		line := 2
		writeRow := func(cols []any) error {
			cell, _ := excelize.CoordinatesToCellName(1, line)
			line++
			return f.SetSheetRow(name, cell, &cols)
		}
		for _, l := range stmt.Lines {
			for _, g := range l.Groups {
				for _, e := range g.Entities {
					if err := writeRow([]any{l.Category1, g.Category2, e.EntityCode, e.USDTotal}); err != nil {
						return nil, "", err
					}
				}
				if err := writeRow([]any{l.Category1, g.Category2, "Subtotal", g.USDTotal}); err != nil {
					return nil, "", err
				}
			}
			if err := writeRow([]any{l.Category1, "", "Total", l.USDTotal}); err != nil {
				return nil, "", err
			}
		}
		if err := writeRow([]any{"", "", stmt.Statement + " Total", stmt.USDTotal}); err != nil {
			return nil, "", err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", err
	}
	label := report.YearLabel
	if label == "" {
		label = "all-years"
	}
	return buf, fmt.Sprintf("consolidation_%s.xlsx", label), nil
}

// ExportRows renders the derived rows in scope as a flat workbook.
func (s *Service) ExportRows(ctx context.Context, q Query) (*bytes.Buffer, string, error) {
	rows, err := s.Rows(ctx, q)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	header := []any{"Entity", "Particular", "Month", "Financial Year", "Quarter", "Half Year",
		"Category Main", "Category 1", "Category 2", "Amount", "Currency", "Rate", "USD Amount"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, "", err
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		cols := []any{row.EntityCode, row.Particular, row.Month, row.YearLabel, row.Quarter, row.HalfYear,
			orBlank(row.CategoryMain), orBlank(row.Category1), orBlank(row.Category2),
			row.Amount, row.Currency, orZero(row.Rate), orZero(row.USDAmount)}
		if err := f.SetSheetRow(sheet, cell, &cols); err != nil {
			return nil, "", err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", err
	}
	label := strings.TrimSpace(q.YearLabel)
	if label == "" {
		label = "all-years"
	}
	return buf, fmt.Sprintf("ledger_rows_%s.xlsx", label), nil
}

func orBlank(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func orZero(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}
