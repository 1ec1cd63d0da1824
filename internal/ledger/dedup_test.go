package ledger

import "testing"

func fp(v float64) *float64 { return &v }

func TestDedupSetCollapsesEquivalentRows(t *testing.T) {
	set := dedupSet{}
	row := DerivedLedgerRow{
		Particular:    "Cash at bank",
		EntityCode:    "IN01",
		SelectedMonth: "April",
		YearLabel:     "2024-25",
		Month:         "April",
		Amount:        1250.004,
	}
	if !set.Add(row) {
		t.Fatal("first insert should be new")
	}

	// Case, whitespace and sub-cent noise all fold into the same key.
	dup := row
	dup.Particular = "  CASH AT BANK "
	dup.Amount = 1250.001
	if set.Add(dup) {
		t.Fatal("expected duplicate to be suppressed")
	}
}

func TestDedupSetDistinguishesMonths(t *testing.T) {
	set := dedupSet{}
	row := DerivedLedgerRow{Particular: "Cash", EntityCode: "IN01", SelectedMonth: "April", YearLabel: "2024-25", Month: "April", Amount: 100}
	opening := row
	opening.Month = OpeningMonth
	if !set.Add(row) || !set.Add(opening) {
		t.Fatal("opening and month rows must not collide")
	}

	other := row
	other.Amount = 100.02
	if !set.Add(other) {
		t.Fatal("different amounts must not collide")
	}
}
