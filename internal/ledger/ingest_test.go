package ledger

import (
	"context"
	"io"
	"log/slog"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/groupledger/groupledger/internal/fxrate"
	"github.com/groupledger/groupledger/internal/masterdata/codemaster"
	"github.com/groupledger/groupledger/internal/masterdata/entities"
	"github.com/groupledger/groupledger/internal/masterdata/periods"
	"github.com/groupledger/groupledger/internal/shared"
)

type fakeLedgerRepo struct {
	raw      []RawLedgerRow
	derived  []DerivedLedgerRow
	mappings map[string]codemaster.Mapping
	nextID   int64
}

func newFakeLedgerRepo() *fakeLedgerRepo {
	return &fakeLedgerRepo{mappings: map[string]codemaster.Mapping{}, nextID: 1}
}

func sameScope(d DerivedLedgerRow, entityCode, selectedMonth, yearLabel string) bool {
	return strings.EqualFold(strings.TrimSpace(d.EntityCode), strings.TrimSpace(entityCode)) &&
		d.SelectedMonth == selectedMonth && d.YearLabel == yearLabel
}

func (f *fakeLedgerRepo) InTx(ctx context.Context, fn func(Repository) error) error {
	return fn(f)
}

func (f *fakeLedgerRepo) DeleteScope(ctx context.Context, entityCode, selectedMonth, yearLabel string) (int64, error) {
	var removed int64
	var keptRaw []RawLedgerRow
	for _, r := range f.raw {
		if strings.EqualFold(r.EntityCode, entityCode) && r.Month == selectedMonth && r.YearLabel == yearLabel {
			removed++
			continue
		}
		keptRaw = append(keptRaw, r)
	}
	f.raw = keptRaw
	var keptDerived []DerivedLedgerRow
	for _, d := range f.derived {
		if sameScope(d, entityCode, selectedMonth, yearLabel) {
			removed++
			continue
		}
		keptDerived = append(keptDerived, d)
	}
	f.derived = keptDerived
	return removed, nil
}

func (f *fakeLedgerRepo) CountScope(ctx context.Context, entityCode, selectedMonth, yearLabel string) (int64, error) {
	var count int64
	for _, d := range f.derived {
		if sameScope(d, entityCode, selectedMonth, yearLabel) {
			count++
		}
	}
	return count, nil
}

func (f *fakeLedgerRepo) HasRawRows(ctx context.Context, entityCode string) (bool, error) {
	for _, r := range f.raw {
		if strings.EqualFold(r.EntityCode, entityCode) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeLedgerRepo) InsertRaw(ctx context.Context, row RawLedgerRow) (int64, error) {
	row.ID = f.nextID
	f.nextID++
	f.raw = append(f.raw, row)
	return row.ID, nil
}

func (f *fakeLedgerRepo) InsertDerived(ctx context.Context, row DerivedLedgerRow) (int64, error) {
	row.ID = f.nextID
	f.nextID++
	f.derived = append(f.derived, row)
	return row.ID, nil
}

func (f *fakeLedgerRepo) ExistsDerivedNear(ctx context.Context, row DerivedLedgerRow) (bool, error) {
	for _, d := range f.derived {
		if strings.EqualFold(strings.TrimSpace(d.Particular), strings.TrimSpace(row.Particular)) &&
			sameScope(d, row.EntityCode, row.SelectedMonth, row.YearLabel) &&
			d.Month == row.Month && math.Abs(d.Amount-row.Amount) < 0.01 {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeLedgerRepo) HardDedupScope(ctx context.Context, entityCode, selectedMonth, yearLabel string) (int64, error) {
	seen := map[string]bool{}
	var removed int64
	var kept []DerivedLedgerRow
	for _, d := range f.derived {
		if !sameScope(d, entityCode, selectedMonth, yearLabel) {
			kept = append(kept, d)
			continue
		}
		key := dedupKey(d.Particular, d.EntityCode, d.SelectedMonth, d.YearLabel, d.Month, d.Amount)
		if seen[key] {
			removed++
			continue
		}
		seen[key] = true
		kept = append(kept, d)
	}
	f.derived = kept
	return removed, nil
}

func (f *fakeLedgerRepo) UpdateRates(ctx context.Context, updates []RateUpdate) error {
	for _, u := range updates {
		for i := range f.derived {
			if f.derived[i].ID == u.ID {
				rate, usd := u.Rate, u.USDAmount
				f.derived[i].Rate = &rate
				f.derived[i].USDAmount = &usd
			}
		}
	}
	return nil
}

func (f *fakeLedgerRepo) UnratedRows(ctx context.Context) ([]DerivedLedgerRow, error) {
	var out []DerivedLedgerRow
	for _, d := range f.derived {
		if d.USDAmount == nil && d.CategoryMain != nil {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeLedgerRepo) RecomputeCurrency(ctx context.Context, currencyVariants, plCategories []string, profitAndLoss bool, rate float64) (int64, error) {
	variants := map[string]bool{}
	for _, v := range currencyVariants {
		variants[strings.ToUpper(v)] = true
	}
	pl := map[string]bool{}
	for _, c := range plCategories {
		pl[c] = true
	}
	var touched int64
	for i, d := range f.derived {
		if !variants[strings.ToUpper(strings.TrimSpace(d.Currency))] || d.CategoryMain == nil {
			continue
		}
		isPL := pl[strings.ToLower(strings.TrimSpace(deref(d.CategoryMain)))] ||
			pl[strings.ToLower(strings.TrimSpace(deref(d.Category1)))]
		if isPL != profitAndLoss {
			continue
		}
		r := rate
		usd := RoundKeyAmount(d.Amount * rate)
		f.derived[i].Rate = &r
		f.derived[i].USDAmount = &usd
		touched++
	}
	return touched, nil
}

func (f *fakeLedgerRepo) applyMapping(i int, m codemaster.Mapping) {
	f.derived[i].CategoryMain = strOrNil(m.CategoryMain)
	f.derived[i].Category1 = strOrNil(m.Category1)
	f.derived[i].Category2 = strOrNil(m.Category2)
	f.derived[i].Category3 = strOrNil(m.Category3)
	f.derived[i].Category4 = strOrNil(m.Category4)
	f.derived[i].Category5 = strOrNil(m.Category5)
}

func fullyCategorised(d DerivedLedgerRow) bool {
	for _, c := range []*string{d.CategoryMain, d.Category1, d.Category2, d.Category3, d.Category4, d.Category5} {
		if c == nil || strings.TrimSpace(*c) == "" {
			return false
		}
	}
	return true
}

func (f *fakeLedgerRepo) SyncCategories(ctx context.Context) (int64, error) {
	var touched int64
	for i, d := range f.derived {
		if fullyCategorised(d) {
			continue
		}
		if m, ok := f.mappings[codemaster.NormalizeParticular(d.Particular)]; ok {
			f.applyMapping(i, m)
			touched++
		}
	}
	return touched, nil
}

func (f *fakeLedgerRepo) SyncCategoriesForParticular(ctx context.Context, particular string) (int64, error) {
	m, ok := f.mappings[codemaster.NormalizeParticular(particular)]
	if !ok {
		return 0, nil
	}
	var touched int64
	for i, d := range f.derived {
		if codemaster.NormalizeParticular(d.Particular) == codemaster.NormalizeParticular(particular) {
			f.applyMapping(i, m)
			touched++
		}
	}
	return touched, nil
}

func (f *fakeLedgerRepo) PruneUnmapped(ctx context.Context) (int64, error) {
	var touched int64
	for i, d := range f.derived {
		if d.CategoryMain == nil {
			continue
		}
		if _, ok := f.mappings[codemaster.NormalizeParticular(d.Particular)]; !ok {
			f.derived[i].CategoryMain = nil
			f.derived[i].Category1 = nil
			f.derived[i].Category2 = nil
			f.derived[i].Category3 = nil
			f.derived[i].Category4 = nil
			f.derived[i].Category5 = nil
			f.derived[i].Rate = nil
			f.derived[i].USDAmount = nil
			touched++
		}
	}
	return touched, nil
}

func (f *fakeLedgerRepo) PurgeAll(ctx context.Context) (int64, error) {
	removed := int64(len(f.raw) + len(f.derived))
	f.raw = nil
	f.derived = nil
	return removed, nil
}

type fakeEntityLookup struct {
	byCode map[string]entities.Entity
}

func (f fakeEntityLookup) GetByCode(ctx context.Context, code string) (entities.Entity, error) {
	e, ok := f.byCode[strings.ToUpper(code)]
	if !ok {
		return entities.Entity{}, entities.ErrNotFound
	}
	return e, nil
}

type fakeCategories struct {
	m map[string]codemaster.Mapping
}

func (f fakeCategories) NormalizedMap(ctx context.Context) (map[string]codemaster.Mapping, error) {
	return f.m, nil
}

type fakePeriodGate struct {
	err error
}

func (f fakePeriodGate) ValidateDate(ctx context.Context, date, today time.Time) (periods.Period, error) {
	return periods.Period{}, f.err
}

type fakeFxRepo struct {
	entity []fxrate.EntityRate
	legacy map[string]fxrate.LegacyRate
}

func (f *fakeFxRepo) LatestLegacy(ctx context.Context, currency string) (fxrate.LegacyRate, error) {
	r, ok := f.legacy[currency]
	if !ok {
		return fxrate.LegacyRate{}, fxrate.ErrNotFound
	}
	return r, nil
}

func (f *fakeFxRepo) LatestLegacyAll(ctx context.Context) ([]fxrate.LegacyRate, error) {
	var out []fxrate.LegacyRate
	for _, r := range f.legacy {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeFxRepo) LegacyHistory(ctx context.Context, currency string) ([]fxrate.LegacyRate, error) {
	return nil, nil
}

func (f *fakeFxRepo) InsertLegacy(ctx context.Context, rate fxrate.LegacyRate) (fxrate.LegacyRate, error) {
	return rate, nil
}

func (f *fakeFxRepo) UpsertEntityRate(ctx context.Context, rate fxrate.EntityRate) (fxrate.EntityRate, error) {
	return rate, nil
}

func (f *fakeFxRepo) EntityRate(ctx context.Context, entityCode, currency, yearLabel string) (fxrate.EntityRate, error) {
	for _, r := range f.entity {
		if r.EntityCode == entityCode && r.Currency == currency && r.YearLabel == yearLabel {
			return r, nil
		}
	}
	return fxrate.EntityRate{}, fxrate.ErrNotFound
}

func (f *fakeFxRepo) EntityRates(ctx context.Context, entityCode string) ([]fxrate.EntityRate, error) {
	return nil, nil
}

func (f *fakeFxRepo) EntityRatesFor(ctx context.Context, entityCode, currency string, yearLabels []string) ([]fxrate.EntityRate, error) {
	wanted := map[string]bool{}
	for _, l := range yearLabels {
		wanted[l] = true
	}
	var out []fxrate.EntityRate
	for _, r := range f.entity {
		if r.EntityCode == entityCode && r.Currency == currency && wanted[r.YearLabel] {
			out = append(out, r)
		}
	}
	return out, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mapping(particular, main, cat1 string) codemaster.Mapping {
	return codemaster.Mapping{RawParticulars: particular, CategoryMain: main, Category1: cat1}
}

func newTestService(repo *fakeLedgerRepo, fx *fakeFxRepo, cats map[string]codemaster.Mapping) *Service {
	return NewService(ServiceDeps{
		Repo:       repo,
		Entities:   fakeEntityLookup{byCode: map[string]entities.Entity{"IN01": {ID: 1, Code: "IN01", Currency: "INR"}}},
		Categories: fakeCategories{m: cats},
		Rates:      fxrate.NewResolver(fx),
		Logger:     testLogger(),
	})
}

func TestUploadNewCompanyConvertsBothStatements(t *testing.T) {
	repo := newFakeLedgerRepo()
	fx := &fakeFxRepo{entity: []fxrate.EntityRate{
		{EntityCode: "IN01", Currency: "INR", YearLabel: "2024-25", OpeningRate: fp(80), ClosingRate: fp(84)},
	}, legacy: map[string]fxrate.LegacyRate{}}
	cats := map[string]codemaster.Mapping{
		"cash at bank": mapping("Cash at bank", "Assets", "Current Assets"),
		"sales":        mapping("Sales", "P&L", "Revenue"),
	}
	svc := newTestService(repo, fx, cats)

	buf := buildTrialBalance(t,
		[]any{"Particulars", "Opening", "Transaction", "Closing"},
		[]any{"Cash at bank", "1,000", "250", "1,250"},
		[]any{"Sales", "", "-500", "-500"},
	)
	summary, err := svc.Upload(context.Background(), UploadRequest{
		EntityCode: "in01", Month: "April", YearLabel: "2024-25", File: buf,
	})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	if !summary.NewCompany {
		t.Fatal("first upload should be treated as a new company")
	}
	if summary.RawInserted != 2 || summary.DerivedWritten != 3 {
		t.Fatalf("unexpected counts %+v", summary)
	}

	var opening, cash, sales *DerivedLedgerRow
	for i := range repo.derived {
		d := &repo.derived[i]
		switch {
		case d.Month == OpeningMonth:
			opening = d
		case d.Particular == "Cash at bank":
			cash = d
		case d.Particular == "Sales":
			sales = d
		}
	}
	if opening == nil || opening.Amount != 1000 {
		t.Fatalf("missing opening row: %+v", repo.derived)
	}
	// Balance-sheet rows convert at closing, income rows at the average.
	if cash == nil || cash.Rate == nil || *cash.Rate != 84 {
		t.Fatalf("cash row rate = %+v", cash)
	}
	if sales == nil || sales.Rate == nil || *sales.Rate != 82 {
		t.Fatalf("sales row rate = %+v", sales)
	}
	if *sales.USDAmount != -41000 {
		t.Fatalf("sales usd = %v", *sales.USDAmount)
	}
	if summary.Converted != 3 || summary.Unrated != 0 || summary.Unmapped != 0 {
		t.Fatalf("unexpected conversion counts %+v", summary)
	}
}

func TestUploadReplacesExistingScope(t *testing.T) {
	repo := newFakeLedgerRepo()
	fx := &fakeFxRepo{legacy: map[string]fxrate.LegacyRate{
		"INR": {Currency: "INR", LatestRate: fp(84)},
	}}
	cats := map[string]codemaster.Mapping{"cash at bank": mapping("Cash at bank", "Assets", "")}
	svc := newTestService(repo, fx, cats)

	upload := func(month string) UploadSummary {
		buf := buildTrialBalance(t,
			[]any{"Particular", "Opening", "Transaction"},
			[]any{"Cash at bank", "1,000", "250"},
		)
		summary, err := svc.Upload(context.Background(), UploadRequest{
			EntityCode: "IN01", Month: month, YearLabel: "2024-25", File: buf,
		})
		if err != nil {
			t.Fatalf("Upload() error = %v", err)
		}
		return summary
	}

	first := upload("April")
	if !first.NewCompany || first.DerivedWritten != 2 {
		t.Fatalf("first upload %+v", first)
	}

	// Re-uploading the entity's only period replaces it wholesale, opening
	// balances included, without stacking duplicates.
	repeat := upload("April")
	if !repeat.NewCompany || repeat.DerivedWritten != 2 || repeat.Duplicates != 0 {
		t.Fatalf("repeat upload %+v", repeat)
	}
	count, _ := repo.CountScope(context.Background(), "IN01", "April", "2024-25")
	if count != 2 {
		t.Fatalf("expected opening + month rows after replacement, got %d", count)
	}

	// A later month sees existing history: no new-company treatment and no
	// opening balance stored.
	may := upload("May")
	if may.NewCompany {
		t.Fatal("second period must not be a new company")
	}
	if may.DerivedWritten != 1 {
		t.Fatalf("second period upload %+v", may)
	}
	for _, r := range repo.raw {
		if r.Month == "May" && r.Opening != nil {
			t.Fatalf("later upload must not store opening balances: %+v", r)
		}
	}
}

func TestUploadPeriodPolicyBlocks(t *testing.T) {
	repo := newFakeLedgerRepo()
	svc := NewService(ServiceDeps{
		Repo:       repo,
		Entities:   fakeEntityLookup{byCode: map[string]entities.Entity{"IN01": {Code: "IN01", Currency: "INR"}}},
		Periods:    fakePeriodGate{err: shared.NewCodedError(shared.CategoryPeriodPolicy, "NOT_CURRENT_FINANCIAL_YEAR", "period closed")},
		Categories: fakeCategories{m: map[string]codemaster.Mapping{}},
		Rates:      fxrate.NewResolver(&fakeFxRepo{}),
		Logger:     testLogger(),
	})

	buf := buildTrialBalance(t, []any{"Particular", "Transaction"}, []any{"Cash", "10"})
	_, err := svc.Upload(context.Background(), UploadRequest{
		EntityCode: "IN01", Month: "April", YearLabel: "2022-23", File: buf,
	})
	coded, ok := shared.AsCoded(err)
	if !ok || coded.Category != shared.CategoryPeriodPolicy {
		t.Fatalf("expected period policy error, got %v", err)
	}
	if len(repo.derived) != 0 {
		t.Fatal("nothing may be written when the period policy rejects")
	}
}

func TestUploadNewCompanyCallerOverride(t *testing.T) {
	repo := newFakeLedgerRepo()
	fx := &fakeFxRepo{legacy: map[string]fxrate.LegacyRate{}}
	svc := newTestService(repo, fx, map[string]codemaster.Mapping{})

	override := false
	buf := buildTrialBalance(t,
		[]any{"Particular", "Opening", "Transaction"},
		[]any{"Cash at bank", "1,000", "250"},
	)
	summary, err := svc.Upload(context.Background(), UploadRequest{
		EntityCode: "IN01", Month: "April", YearLabel: "2024-25", NewCompany: &override, File: buf,
	})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if summary.NewCompany {
		t.Fatal("caller override must win")
	}
	for _, d := range repo.derived {
		if d.Month == OpeningMonth {
			t.Fatal("opening row written despite override")
		}
	}
}

func TestUploadCountsDuplicatesAndSkips(t *testing.T) {
	repo := newFakeLedgerRepo()
	fx := &fakeFxRepo{legacy: map[string]fxrate.LegacyRate{}}
	svc := newTestService(repo, fx, map[string]codemaster.Mapping{})

	buf := buildTrialBalance(t,
		[]any{"Particular", "Transaction"},
		[]any{"Cash at bank", "250"},
		[]any{"  CASH AT BANK ", "250.004"},
		[]any{"", "99"},
		[]any{"No amounts", ""},
	)
	summary, err := svc.Upload(context.Background(), UploadRequest{
		EntityCode: "IN01", Month: "May", YearLabel: "2024-25", File: buf,
	})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if summary.Duplicates != 1 {
		t.Fatalf("duplicates = %d", summary.Duplicates)
	}
	if summary.Skipped != 2 {
		t.Fatalf("skipped = %d", summary.Skipped)
	}
	if summary.DerivedWritten != 1 {
		t.Fatalf("derived = %d", summary.DerivedWritten)
	}
}

func TestUploadClosingBalanceIsNotMovement(t *testing.T) {
	repo := newFakeLedgerRepo()
	fx := &fakeFxRepo{legacy: map[string]fxrate.LegacyRate{}}
	svc := newTestService(repo, fx, map[string]codemaster.Mapping{})

	// A line with a closing balance but no transaction carries no period
	// movement and must not produce a month row.
	override := false
	buf := buildTrialBalance(t,
		[]any{"Particulars", "Opening", "Transaction", "Closing"},
		[]any{"Cash", "1,000", "", "800"},
	)
	summary, err := svc.Upload(context.Background(), UploadRequest{
		EntityCode: "IN01", Month: "April", YearLabel: "2024-25", NewCompany: &override, File: buf,
	})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if summary.RawInserted != 1 {
		t.Fatalf("raw = %d", summary.RawInserted)
	}
	if summary.DerivedWritten != 0 || summary.Skipped != 1 {
		t.Fatalf("unexpected counts %+v", summary)
	}
	for _, d := range repo.derived {
		if d.Amount == 800 {
			t.Fatalf("closing balance promoted to movement: %+v", d)
		}
	}
}

func TestUploadUnmappedAndUnratedCounters(t *testing.T) {
	repo := newFakeLedgerRepo()
	// No rates anywhere: mapped rows stay unrated.
	fx := &fakeFxRepo{legacy: map[string]fxrate.LegacyRate{}}
	cats := map[string]codemaster.Mapping{"sales": mapping("Sales", "P&L", "")}
	svc := newTestService(repo, fx, cats)

	buf := buildTrialBalance(t,
		[]any{"Particular", "Transaction"},
		[]any{"Sales", "-500"},
		[]any{"Mystery account", "42"},
	)
	summary, err := svc.Upload(context.Background(), UploadRequest{
		EntityCode: "IN01", Month: "April", YearLabel: "2024-25", File: buf,
	})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if summary.Unmapped != 1 {
		t.Fatalf("unmapped = %d", summary.Unmapped)
	}
	if summary.Unrated != 1 {
		t.Fatalf("unrated = %d", summary.Unrated)
	}
	if summary.Converted != 0 {
		t.Fatalf("converted = %d", summary.Converted)
	}
}

func TestUploadSelectorValidation(t *testing.T) {
	svc := newTestService(newFakeLedgerRepo(), &fakeFxRepo{}, map[string]codemaster.Mapping{})

	cases := []UploadRequest{
		{Month: "April", YearLabel: "2024-25"},
		{EntityCode: "IN01", Month: "Aprils", YearLabel: "2024-25"},
		{EntityCode: "IN01", Month: "April", YearLabel: "latest"},
		{EntityCode: "ZZ99", Month: "April", YearLabel: "2024-25"},
	}
	for i, req := range cases {
		req.File = strings.NewReader("x")
		if _, err := svc.Upload(context.Background(), req); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}

func TestUploadJanuaryFallsInNextCalendarYear(t *testing.T) {
	repo := newFakeLedgerRepo()
	fx := &fakeFxRepo{legacy: map[string]fxrate.LegacyRate{}}
	svc := newTestService(repo, fx, map[string]codemaster.Mapping{})

	buf := buildTrialBalance(t,
		[]any{"Particular", "Transaction"},
		[]any{"Cash", "10"},
	)
	if _, err := svc.Upload(context.Background(), UploadRequest{
		EntityCode: "IN01", Month: "January", YearLabel: "2024-25", File: buf,
	}); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if repo.derived[0].Year != 2025 {
		t.Fatalf("expected calendar year 2025 got %d", repo.derived[0].Year)
	}
	if repo.derived[0].Quarter != "Q4" || repo.derived[0].HalfYear != "H2" {
		t.Fatalf("expected Q4/H2 got %s/%s", repo.derived[0].Quarter, repo.derived[0].HalfYear)
	}
}

func TestSyncCategoriesBackfillsMissingMappings(t *testing.T) {
	repo := newFakeLedgerRepo()
	repo.mappings["sales"] = mapping("Sales", "P&L", "Revenue")
	repo.derived = []DerivedLedgerRow{
		{ID: 1, EntityCode: "IN01", Particular: "Sales", YearLabel: "2024-25", Currency: "INR", Amount: -500},
	}
	fx := &fakeFxRepo{legacy: map[string]fxrate.LegacyRate{
		"INR": {Currency: "INR", InitialRate: fp(80), LatestRate: fp(84)},
	}}
	svc := newTestService(repo, fx, map[string]codemaster.Mapping{})

	out, err := svc.SyncCategories(context.Background())
	if err != nil {
		t.Fatalf("SyncCategories() error = %v", err)
	}
	if out.Updated != 1 {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if repo.derived[0].CategoryMain == nil || *repo.derived[0].CategoryMain != "P&L" {
		t.Fatalf("mapping not applied: %+v", repo.derived[0])
	}
	// Newly categorised row picked up a conversion in the same sync.
	if out.Converted != 1 || repo.derived[0].Rate == nil {
		t.Fatalf("expected sweep conversion, got %+v", out)
	}
}

func TestSyncCategoriesPreservesManualCorrections(t *testing.T) {
	repo := newFakeLedgerRepo()
	repo.mappings["sales"] = mapping("Sales", "P&L", "Revenue")
	// Both rows fully categorised by hand, one of them against a changed
	// mapping, the other with no master entry at all.
	corrected := DerivedLedgerRow{
		ID: 1, EntityCode: "IN01", Particular: "Sales", YearLabel: "2024-25", Currency: "INR", Amount: -500,
		CategoryMain: strOrNil("Assets"), Category1: strOrNil("Other"), Category2: strOrNil("x"),
		Category3: strOrNil("x"), Category4: strOrNil("x"), Category5: strOrNil("x"),
		Rate: fp(84), USDAmount: fp(-42000),
	}
	orphan := DerivedLedgerRow{
		ID: 2, EntityCode: "IN01", Particular: "One-off adjustment", YearLabel: "2024-25", Currency: "INR", Amount: 10,
		CategoryMain: strOrNil("Assets"), Category1: strOrNil("Current Assets"), Category2: strOrNil("x"),
		Category3: strOrNil("x"), Category4: strOrNil("x"), Category5: strOrNil("x"),
		Rate: fp(84), USDAmount: fp(840),
	}
	repo.derived = []DerivedLedgerRow{corrected, orphan}
	svc := newTestService(repo, &fakeFxRepo{}, map[string]codemaster.Mapping{})

	out, err := svc.SyncCategories(context.Background())
	if err != nil {
		t.Fatalf("SyncCategories() error = %v", err)
	}
	if out.Updated != 0 {
		t.Fatalf("populated rows must not be rewritten, got %+v", out)
	}
	if *repo.derived[0].CategoryMain != "Assets" || *repo.derived[0].Category1 != "Other" {
		t.Fatalf("manual correction overwritten: %+v", repo.derived[0])
	}
	if repo.derived[1].CategoryMain == nil || repo.derived[1].USDAmount == nil {
		t.Fatalf("row without master entry must survive sync: %+v", repo.derived[1])
	}
}

func TestPruneUnmappedIsExplicit(t *testing.T) {
	repo := newFakeLedgerRepo()
	repo.derived = []DerivedLedgerRow{
		{ID: 1, EntityCode: "IN01", Particular: "Gone account", YearLabel: "2024-25", Currency: "INR", Amount: 10,
			CategoryMain: strOrNil("Assets"), Rate: fp(84), USDAmount: fp(840)},
	}
	svc := newTestService(repo, &fakeFxRepo{}, map[string]codemaster.Mapping{})

	pruned, err := svc.PruneUnmapped(context.Background())
	if err != nil {
		t.Fatalf("PruneUnmapped() error = %v", err)
	}
	if pruned != 1 {
		t.Fatalf("pruned = %d", pruned)
	}
	if repo.derived[0].CategoryMain != nil || repo.derived[0].USDAmount != nil {
		t.Fatalf("stale mapping not cleared: %+v", repo.derived[0])
	}
}

func TestRecomputeCurrencySplitsStatements(t *testing.T) {
	repo := newFakeLedgerRepo()
	repo.derived = []DerivedLedgerRow{
		{ID: 1, Currency: "INR", Amount: 100, CategoryMain: strOrNil("Assets")},
		{ID: 2, Currency: "INR", Amount: -500, CategoryMain: strOrNil("P&L")},
		{ID: 3, Currency: "AED", Amount: 50, CategoryMain: strOrNil("Assets")},
	}
	svc := newTestService(repo, &fakeFxRepo{}, map[string]codemaster.Mapping{})

	err := svc.RecomputeCurrency(context.Background(), "INRIN", fxrate.Quote{Opening: fp(80), Closing: fp(84)})
	if err != nil {
		t.Fatalf("RecomputeCurrency() error = %v", err)
	}
	if repo.derived[0].Rate == nil || *repo.derived[0].Rate != 84 {
		t.Fatalf("balance-sheet rate = %+v", repo.derived[0].Rate)
	}
	if repo.derived[1].Rate == nil || *repo.derived[1].Rate != 82 {
		t.Fatalf("income rate = %+v", repo.derived[1].Rate)
	}
	if repo.derived[2].Rate != nil {
		t.Fatal("other currency must be untouched")
	}
}
