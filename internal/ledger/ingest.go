package ledger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/groupledger/groupledger/internal/fiscal"
	"github.com/groupledger/groupledger/internal/fxrate"
	"github.com/groupledger/groupledger/internal/masterdata/codemaster"
	"github.com/groupledger/groupledger/internal/masterdata/entities"
	"github.com/groupledger/groupledger/internal/shared"
	"github.com/groupledger/groupledger/internal/storage"
)

const progressEvery = 25

// pendingRate is a freshly inserted derived row awaiting conversion.
type pendingRate struct {
	id  int64
	row DerivedLedgerRow
}

// Upload ingests one trial balance for an entity, month and financial
// year. The scope is replaced wholesale: previous rows for the same
// selection are deleted inside the same transaction that writes the new
// ones, so a failed upload leaves the old data intact.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (UploadSummary, error) {
	summary := UploadSummary{
		OperationID: req.OperationID,
		EntityCode:  strings.ToUpper(strings.TrimSpace(req.EntityCode)),
	}

	if summary.EntityCode == "" {
		return summary, shared.NewCodedError(shared.CategoryValidation, "ENTITY_CODE_REQUIRED", "entity code is required")
	}
	monthNum, ok := fiscal.MonthNumber(req.Month)
	if !ok {
		return summary, shared.NewCodedError(shared.CategoryValidation, "INVALID_MONTH", fmt.Sprintf("unrecognised month %q", req.Month))
	}
	summary.Month = fiscal.MonthName(monthNum)
	startYear, err := fiscal.Parse(req.YearLabel)
	if err != nil {
		return summary, shared.NewCodedError(shared.CategoryValidation, "INVALID_FINANCIAL_YEAR", err.Error())
	}
	summary.YearLabel = fiscal.Format(startYear)

	entity, err := s.entities.GetByCode(ctx, summary.EntityCode)
	if err != nil {
		if errors.Is(err, entities.ErrNotFound) {
			return summary, shared.NewCodedError(shared.CategoryNotFound, "ENTITY_NOT_FOUND", fmt.Sprintf("entity %s is not registered", summary.EntityCode))
		}
		return summary, err
	}

	// January through March fall in the calendar year after the label's
	// starting year.
	calendarYear := startYear
	if monthNum < time.April {
		calendarYear = startYear + 1
	}
	if s.periods != nil {
		periodDate := time.Date(calendarYear, monthNum, 1, 0, 0, 0, 0, time.UTC)
		if _, err := s.periods.ValidateDate(ctx, periodDate, time.Now().UTC()); err != nil {
			return summary, err
		}
	}

	s.reportProgress(ctx, &summary, "reading", 0, 0, "reading workbook")
	content, err := io.ReadAll(req.File)
	if err != nil {
		return summary, shared.NewCodedError(shared.CategoryValidation, "INVALID_WORKBOOK", "could not read upload").Wrap(err)
	}
	if len(content) == 0 {
		return summary, shared.NewCodedError(shared.CategoryValidation, "EMPTY_FILE", "uploaded file is empty")
	}

	if s.locks != nil {
		lockKey := shared.UploadLockKey(summary.EntityCode, summary.Month, calendarYear)
		token, err := s.locks.Acquire(ctx, lockKey)
		if err != nil {
			if errors.Is(err, shared.ErrLockHeld) {
				return summary, shared.NewCodedError(shared.CategoryConflict, "UPLOAD_IN_PROGRESS", "another upload for this entity and period is running")
			}
			return summary, err
		}
		defer func() {
			if rerr := s.locks.Release(context.WithoutCancel(ctx), lockKey, token); rerr != nil {
				s.logger.WarnContext(ctx, "scope lock release failed", slog.String("key", lockKey), slog.Any("error", rerr))
			}
		}()
	}

	rows, rowErrs, err := parseWorkbook(bytes.NewReader(content))
	if err != nil {
		s.finishProgress(ctx, &summary, false, err.Error())
		return summary, err
	}
	summary.TotalRows = len(rows)
	summary.Failed = len(rowErrs)
	if len(rowErrs) > s.errLimit {
		rowErrs = rowErrs[:s.errLimit]
	}
	summary.Errors = rowErrs

	mappings, err := s.categories.NormalizedMap(ctx)
	if err != nil {
		s.finishProgress(ctx, &summary, false, "code master unavailable")
		return summary, err
	}

	s.reportProgress(ctx, &summary, "persisting", 0, summary.TotalRows, "writing ledger rows")
	err = s.repo.InTx(ctx, func(tx Repository) error {
		return s.ingestScope(ctx, tx, &summary, req, entity, rows, mappings, monthNum, calendarYear)
	})
	if err != nil {
		s.finishProgress(ctx, &summary, false, err.Error())
		s.recordAudit(ctx, summary, req.FileName, false, err.Error())
		return summary, err
	}

	s.archiveDocument(ctx, &summary, req.FileName, content)
	s.recordAudit(ctx, summary, req.FileName, true, "")
	s.finishProgress(ctx, &summary, true, "upload complete")
	return summary, nil
}

func (s *Service) ingestScope(ctx context.Context, tx Repository, summary *UploadSummary, req UploadRequest,
	entity entities.Entity, rows []tbRow, mappings map[string]codemaster.Mapping, monthNum time.Month, calendarYear int) error {

	if err := s.clearScope(ctx, tx, summary); err != nil {
		return err
	}

	hasRaw, err := tx.HasRawRows(ctx, summary.EntityCode)
	if err != nil {
		return err
	}
	newCompany := !hasRaw
	if req.NewCompany != nil {
		if *req.NewCompany != newCompany {
			s.logger.InfoContext(ctx, "new-company flag overridden by caller",
				slog.String("entity", summary.EntityCode),
				slog.Bool("derived", newCompany), slog.Bool("requested", *req.NewCompany))
		}
		newCompany = *req.NewCompany
	}
	summary.NewCompany = newCompany

	quarter, half := fiscal.QuarterHalf(monthNum)
	seen := dedupSet{}
	var pending []pendingRate

	for i, row := range rows {
		if i%progressEvery == 0 {
			s.reportProgress(ctx, summary, "persisting", i, summary.TotalRows, "")
		}
		if row.Particular == "" {
			summary.Skipped++
			continue
		}

		raw := RawLedgerRow{
			EntityCode:  summary.EntityCode,
			Particular:  row.Particular,
			Opening:     row.Opening,
			Transaction: row.Transaction,
			Closing:     row.Closing,
			Month:       summary.Month,
			Year:        calendarYear,
			YearLabel:   summary.YearLabel,
		}
		// Opening balances only matter for an entity's first period;
		// later uploads carry them forward through derived history.
		if !newCompany {
			raw.Opening = nil
		}
		if _, err := tx.InsertRaw(ctx, raw); err != nil {
			return err
		}
		summary.RawInserted++

		base := DerivedLedgerRow{
			EntityCode:    summary.EntityCode,
			Particular:    row.Particular,
			SelectedMonth: summary.Month,
			Year:          calendarYear,
			YearLabel:     summary.YearLabel,
			Quarter:       quarter,
			HalfYear:      half,
			Currency:      strings.ToUpper(strings.TrimSpace(entity.Currency)),
		}
		if mapping, mapped := mappings[codemaster.NormalizeParticular(row.Particular)]; mapped {
			base.CategoryMain = strOrNil(mapping.CategoryMain)
			base.Category1 = strOrNil(mapping.Category1)
			base.Category2 = strOrNil(mapping.Category2)
			base.Category3 = strOrNil(mapping.Category3)
			base.Category4 = strOrNil(mapping.Category4)
			base.Category5 = strOrNil(mapping.Category5)
		} else {
			summary.Unmapped++
		}

		var candidates []DerivedLedgerRow
		if newCompany && raw.Opening != nil {
			opening := base
			opening.Month = OpeningMonth
			opening.Amount = *raw.Opening
			candidates = append(candidates, opening)
		}
		// Only actual period movement becomes a month row. Closing is a
		// balance, not movement, and never stands in for it.
		if row.Transaction != nil {
			monthRow := base
			monthRow.Month = summary.Month
			monthRow.Amount = *row.Transaction
			candidates = append(candidates, monthRow)
		}
		if len(candidates) == 0 {
			summary.Skipped++
			continue
		}

		for _, candidate := range candidates {
			if !seen.Add(candidate) {
				summary.Duplicates++
				continue
			}
			dup, err := tx.ExistsDerivedNear(ctx, candidate)
			if err != nil {
				return err
			}
			if dup {
				summary.Duplicates++
				continue
			}
			id, err := tx.InsertDerived(ctx, candidate)
			if err != nil {
				return err
			}
			summary.DerivedWritten++
			if candidate.HasCategory() {
				pending = append(pending, pendingRate{id: id, row: candidate})
			}
		}
	}

	removed, err := tx.HardDedupScope(ctx, summary.EntityCode, summary.Month, summary.YearLabel)
	if err != nil {
		return err
	}
	summary.Duplicates += int(removed)
	summary.DerivedWritten -= int(removed)

	s.reportProgress(ctx, summary, "converting", summary.TotalRows, summary.TotalRows, "resolving conversion rates")
	return s.applyRates(ctx, tx, summary, entity, pending)
}

// clearScope deletes the scope and verifies it is actually empty,
// retrying the delete once before giving up.
func (s *Service) clearScope(ctx context.Context, tx Repository, summary *UploadSummary) error {
	for attempt := 0; attempt < 2; attempt++ {
		if _, err := tx.DeleteScope(ctx, summary.EntityCode, summary.Month, summary.YearLabel); err != nil {
			return err
		}
		count, err := tx.CountScope(ctx, summary.EntityCode, summary.Month, summary.YearLabel)
		if err != nil {
			return err
		}
		if count == 0 {
			return nil
		}
		s.logger.DebugContext(ctx, "scope not empty after delete, retrying",
			slog.String("entity", summary.EntityCode), slog.Int64("remaining", count))
	}
	return shared.NewCodedError(shared.CategoryInfrastructure, "SCOPE_NOT_CLEARED", "previous rows for this period could not be removed")
}

// applyRates resolves one quote for the upload's entity, currency and
// year and converts every categorised row with it.
func (s *Service) applyRates(ctx context.Context, tx Repository, summary *UploadSummary, entity entities.Entity, pending []pendingRate) error {
	if len(pending) == 0 {
		return nil
	}
	key := fxrate.Key{
		EntityCode: summary.EntityCode,
		Currency:   strings.ToUpper(strings.TrimSpace(entity.Currency)),
		YearLabel:  summary.YearLabel,
	}
	cache, err := s.rates.BuildCache(ctx, []fxrate.Key{key})
	if err != nil {
		return err
	}
	quote, found := cache.Lookup(key)
	if found && quote.AdjacentYearUsed {
		s.logger.WarnContext(ctx, "conversion fell back to an adjacent financial year",
			slog.String("entity", summary.EntityCode),
			slog.String("requested", summary.YearLabel),
			slog.String("used", quote.YearUsed))
	}

	var updates []RateUpdate
	for _, p := range pending {
		if !found {
			summary.Unrated++
			continue
		}
		statement := ClassifyStatement(deref(p.row.CategoryMain), deref(p.row.Category1))
		rate, ok := quote.Rate(statement == ProfitAndLoss)
		if !ok {
			summary.Unrated++
			continue
		}
		updates = append(updates, RateUpdate{
			ID:        p.id,
			Rate:      rate,
			USDAmount: RoundKeyAmount(p.row.Amount * rate),
		})
	}
	if err := tx.UpdateRates(ctx, updates); err != nil {
		return err
	}
	summary.Converted = len(updates)
	return nil
}

func (s *Service) archiveDocument(ctx context.Context, summary *UploadSummary, fileName string, content []byte) {
	if s.uploader == nil {
		return
	}
	url, err := s.uploader.Store(ctx, fileName, content)
	if err != nil {
		s.logger.WarnContext(ctx, "document archive failed", slog.String("file", fileName), slog.Any("error", err))
		return
	}
	summary.DocumentURL = url
}

func (s *Service) recordAudit(ctx context.Context, summary UploadSummary, fileName string, success bool, message string) {
	if s.audits == nil {
		return
	}
	_, err := s.audits.Record(context.WithoutCancel(ctx), storage.UploadAudit{
		OperationID: summary.OperationID,
		EntityCode:  summary.EntityCode,
		Month:       summary.Month,
		YearLabel:   summary.YearLabel,
		FileName:    fileName,
		DocumentURL: summary.DocumentURL,
		NewCompany:  summary.NewCompany,
		TotalRows:   summary.TotalRows,
		Inserted:    summary.DerivedWritten,
		Duplicates:  summary.Duplicates,
		Failed:      summary.Failed,
		Success:     success,
		Message:     message,
		UploadedBy:  shared.CallerFromContext(ctx),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "upload audit write failed", slog.Any("error", err))
	}
}
