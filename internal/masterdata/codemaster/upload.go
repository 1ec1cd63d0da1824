package codemaster

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/groupledger/groupledger/internal/shared"
)

// BulkResult summarises a spreadsheet upload.
type BulkResult struct {
	Total    int      `json:"total"`
	Created  int      `json:"created"`
	Updated  int      `json:"updated"`
	Skipped  int      `json:"skipped"`
	Failed   int      `json:"failed"`
	Errors   []string `json:"errors,omitempty"`
	Progress string   `json:"operation_id,omitempty"`
}

const progressEvery = 25

// Header variants accepted per column, keyed by the folded header text.
var headerAliases = map[string]string{
	"rawparticulars": "particular",
	"rawparticular":  "particular",
	"particulars":    "particular",
	"particular":     "particular",
	"categorymain":   "main",
	"maincategory":   "main",
	"category":       "main",
	"category1":      "category1",
	"category2":      "category2",
	"category3":      "category3",
	"category4":      "category4",
	"category5":      "category5",
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

// BulkUpload parses an xlsx workbook and upserts every mapping row. Rows
// that cannot be saved are counted and reported, never fatal.
func (s *Service) BulkUpload(ctx context.Context, file io.Reader, operationID string) (BulkResult, error) {
	var result BulkResult
	result.Progress = operationID

	f, err := excelize.OpenReader(file)
	if err != nil {
		return result, shared.NewCodedError(shared.CategoryValidation, "INVALID_WORKBOOK", "could not read spreadsheet").Wrap(err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return result, shared.NewCodedError(shared.CategoryValidation, "INVALID_WORKBOOK", "could not read sheet").Wrap(err)
	}
	if len(rows) == 0 {
		return result, shared.NewCodedError(shared.CategoryValidation, "EMPTY_WORKBOOK", "workbook has no rows")
	}

	columns := map[string]int{}
	for idx, header := range rows[0] {
		if role, ok := headerAliases[foldHeader(header)]; ok {
			if _, seen := columns[role]; !seen {
				columns[role] = idx
			}
		}
	}
	if _, ok := columns["particular"]; !ok {
		return result, shared.NewCodedError(shared.CategoryValidation, "MISSING_COLUMN", "no particulars column found")
	}
	if _, ok := columns["main"]; !ok {
		return result, shared.NewCodedError(shared.CategoryValidation, "MISSING_COLUMN", "no main category column found")
	}

	body := rows[1:]
	result.Total = len(body)
	s.reportProgress(ctx, operationID, "saving mappings", 0, result.Total)

	for i, row := range body {
		cell := func(role string) string {
			idx, ok := columns[role]
			if !ok || idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}
		m := Mapping{
			RawParticulars: cell("particular"),
			CategoryMain:   cell("main"),
			Category1:      cell("category1"),
			Category2:      cell("category2"),
			Category3:      cell("category3"),
			Category4:      cell("category4"),
			Category5:      cell("category5"),
		}
		if m.RawParticulars == "" {
			result.Skipped++
			continue
		}
		_, created, err := s.Upsert(ctx, m)
		if err != nil {
			result.Failed++
			if len(result.Errors) < 20 {
				result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", i+2, err))
			}
			continue
		}
		if created {
			result.Created++
		} else {
			result.Updated++
		}
		if (i+1)%progressEvery == 0 {
			s.reportProgress(ctx, operationID, "saving mappings", i+1, result.Total)
		}
	}
	s.reportProgress(ctx, operationID, "done", result.Total, result.Total)
	return result, nil
}

func (s *Service) reportProgress(ctx context.Context, operationID, stage string, processed, total int) {
	if s.progress == nil || operationID == "" {
		return
	}
	err := s.progress.Update(ctx, shared.Progress{
		OperationID: operationID,
		Stage:       stage,
		Processed:   processed,
		Total:       total,
		Done:        stage == "done",
		Success:     stage == "done",
	})
	if err != nil && s.logger != nil {
		s.logger.Warn("update upload progress", slog.Any("error", err))
	}
}
