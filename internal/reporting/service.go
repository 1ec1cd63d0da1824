package reporting

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/groupledger/groupledger/internal/fiscal"
	"github.com/groupledger/groupledger/internal/ledger"
	"github.com/groupledger/groupledger/internal/masterdata/entities"
	"github.com/groupledger/groupledger/internal/shared"
	"github.com/groupledger/groupledger/internal/storage"
)

// Syncer re-applies the code master before reads so reports never show
// stale categories.
type Syncer interface {
	SyncCategories(ctx context.Context) (ledger.SyncOutcome, error)
}

// EntityDirectory resolves report scopes against the entity hierarchy.
type EntityDirectory interface {
	GetByCode(ctx context.Context, code string) (entities.Entity, error)
	DescendantCodes(ctx context.Context, id int64) ([]string, error)
}

type Service struct {
	repo     Repository
	entities EntityDirectory
	syncer   Syncer
	audits   storage.AuditRepository
	logger   *slog.Logger
}

func NewService(repo Repository, dir EntityDirectory, syncer Syncer, audits storage.AuditRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, entities: dir, syncer: syncer, audits: audits, logger: logger}
}

// Query is the request-level filter before scope resolution.
type Query struct {
	EntityCode string
	Subtree    bool
	YearLabel  string
	Month      string
}

// resolve turns a Query into a Filter: canonical labels and, when asked,
// the entity's whole subtree.
func (s *Service) resolve(ctx context.Context, q Query) (Filter, error) {
	var f Filter
	if label := strings.TrimSpace(q.YearLabel); label != "" {
		year, err := fiscal.Parse(label)
		if err != nil {
			return f, shared.NewCodedError(shared.CategoryValidation, "INVALID_FINANCIAL_YEAR", err.Error())
		}
		f.YearLabel = fiscal.Format(year)
	}
	if month := strings.TrimSpace(q.Month); month != "" {
		m, ok := fiscal.MonthNumber(month)
		if !ok {
			return f, shared.NewCodedError(shared.CategoryValidation, "INVALID_MONTH", "unrecognised month "+month)
		}
		f.Month = fiscal.MonthName(m)
	}
	if code := strings.TrimSpace(q.EntityCode); code != "" {
		entity, err := s.entities.GetByCode(ctx, code)
		if err != nil {
			return f, err
		}
		if q.Subtree {
			codes, err := s.entities.DescendantCodes(ctx, entity.ID)
			if err != nil {
				return f, err
			}
			f.EntityCodes = upperAll(codes)
		} else {
			f.EntityCodes = []string{strings.ToUpper(entity.Code)}
		}
	}
	return f, nil
}

// Rows lists derived rows in scope, syncing categories first.
func (s *Service) Rows(ctx context.Context, q Query) ([]ledger.DerivedLedgerRow, error) {
	s.syncFirst(ctx)
	f, err := s.resolve(ctx, q)
	if err != nil {
		return nil, err
	}
	return s.repo.Rows(ctx, f)
}

// Summary aggregates rows per main category.
func (s *Service) Summary(ctx context.Context, q Query) ([]CategorySummaryRow, error) {
	s.syncFirst(ctx)
	f, err := s.resolve(ctx, q)
	if err != nil {
		return nil, err
	}
	return s.repo.CategorySummary(ctx, f)
}

// Consolidation builds the nested pivot: statement, category1,
// category2, entity.
func (s *Service) Consolidation(ctx context.Context, q Query) (ConsolidationReport, error) {
	s.syncFirst(ctx)
	f, err := s.resolve(ctx, q)
	if err != nil {
		return ConsolidationReport{}, err
	}
	cells, err := s.repo.PivotCells(ctx, f)
	if err != nil {
		return ConsolidationReport{}, err
	}
	report := buildConsolidation(cells)
	report.YearLabel = f.YearLabel
	report.GeneratedAt = time.Now().UTC()
	return report, nil
}

// FxGaps lists conversion gaps across the whole ledger.
func (s *Service) FxGaps(ctx context.Context) ([]FxGap, error) {
	return s.repo.FxGaps(ctx)
}

// UploadHistory lists the audit trail, newest first.
func (s *Service) UploadHistory(ctx context.Context, entityCode string, limit int) ([]storage.UploadAudit, error) {
	if s.audits == nil {
		return nil, nil
	}
	return s.audits.List(ctx, entityCode, limit)
}

// syncFirst keeps categories current before a read. Failures are logged
// and the read proceeds on the existing data.
func (s *Service) syncFirst(ctx context.Context) {
	if s.syncer == nil {
		return
	}
	if _, err := s.syncer.SyncCategories(ctx); err != nil {
		s.logger.WarnContext(ctx, "category sync before report failed", slog.Any("error", err))
	}
}

func buildConsolidation(cells []PivotCell) ConsolidationReport {
	type groupKey struct{ cat1, cat2 string }
	statements := map[ledger.Statement]map[groupKey]map[string]float64{}

	for _, cell := range cells {
		stmt := ledger.ClassifyStatement(cell.CategoryMain, cell.Category1)
		if statements[stmt] == nil {
			statements[stmt] = map[groupKey]map[string]float64{}
		}
		key := groupKey{cat1: cell.Category1, cat2: cell.Category2}
		if statements[stmt][key] == nil {
			statements[stmt][key] = map[string]float64{}
		}
		statements[stmt][key][cell.EntityCode] += cell.USDTotal
	}

	var report ConsolidationReport
	for _, stmt := range []ledger.Statement{ledger.BalanceSheet, ledger.ProfitAndLoss} {
		groups, ok := statements[stmt]
		if !ok {
			continue
		}

		byCat1 := map[string]map[string]map[string]float64{}
		for key, entities := range groups {
			if byCat1[key.cat1] == nil {
				byCat1[key.cat1] = map[string]map[string]float64{}
			}
			byCat1[key.cat1][key.cat2] = entities
		}

		out := ConsolidationStatement{Statement: stmt.String()}
		for _, cat1 := range sortedKeys(byCat1) {
			line := ConsolidationLine{Category1: cat1}
			for _, cat2 := range sortedKeys(byCat1[cat1]) {
				group := ConsolidationGroup{Category2: cat2}
				for _, code := range sortedKeys(byCat1[cat1][cat2]) {
					total := byCat1[cat1][cat2][code]
					group.Entities = append(group.Entities, ConsolidationEntity{EntityCode: code, USDTotal: total})
					group.USDTotal += total
				}
				line.Groups = append(line.Groups, group)
				line.USDTotal += group.USDTotal
			}
			out.Lines = append(out.Lines, line)
			out.USDTotal += line.USDTotal
		}
		report.Statements = append(report.Statements, out)
	}
	return report
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func upperAll(codes []string) []string {
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		out = append(out, strings.ToUpper(strings.TrimSpace(c)))
	}
	return out
}
