package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func sampleRows() []ViewRow {
	return []ViewRow{
		{SourceID: "i1", Type: "invoice", EntryDate: day("2024-01-10"), Debit: d("1000"), Credit: d("0"), Description: "INV-1"},
		{SourceID: "p1", Type: "payment", EntryDate: day("2024-01-20"), Debit: d("0"), Credit: d("400"), Description: "PAY-1"},
		{SourceID: "i2", Type: "invoice", EntryDate: day("2024-02-05"), Debit: d("500"), Credit: d("0"), Description: "INV-2"},
		{SourceID: "p2", Type: "payment", EntryDate: day("2024-02-10"), Debit: d("0"), Credit: d("300"), Description: "PAY-2"},
	}
}

func TestCalculateBalances_NoWindow(t *testing.T) {
	summary, entries := CalculateBalances(d("200"), sampleRows(), nil, nil)

	if summary.OpeningBalance.String() != "200" {
		t.Fatalf("opening expected 200, got %s", summary.OpeningBalance)
	}
	if summary.TotalPurchases.String() != "1500" {
		t.Fatalf("purchases expected 1500, got %s", summary.TotalPurchases)
	}
	if summary.TotalPaid.String() != "700" {
		t.Fatalf("paid expected 700, got %s", summary.TotalPaid)
	}
	if summary.CurrentBalance.String() != "1000" {
		t.Fatalf("closing expected 1000, got %s", summary.CurrentBalance)
	}
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entries))
	}
	// Running balance: 200 +1000 -400 +500 -300
	expected := []string{"1200", "800", "1300", "1000"}
	for i, e := range entries {
		if e.Balance != expected[i] {
			t.Fatalf("entry %d balance expected %s, got %s", i, expected[i], e.Balance)
		}
	}
}

func TestCalculateBalances_WindowRollsOpening(t *testing.T) {
	start := day("2024-02-01")
	end := day("2024-02-28")
	summary, entries := CalculateBalances(d("200"), sampleRows(), &start, &end)

	// Opening = 200 + 1000 - 400 carried from January.
	if summary.OpeningBalance.String() != "800" {
		t.Fatalf("opening expected 800, got %s", summary.OpeningBalance)
	}
	if summary.TotalPurchases.String() != "500" || summary.TotalPaid.String() != "300" {
		t.Fatalf("window totals wrong: %s/%s", summary.TotalPurchases, summary.TotalPaid)
	}
	if summary.CurrentBalance.String() != "1000" {
		t.Fatalf("closing expected 1000, got %s", summary.CurrentBalance)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 windowed entries, got %d", len(entries))
	}
	if entries[0].Balance != "1300" || entries[1].Balance != "1000" {
		t.Fatalf("running balances wrong: %s, %s", entries[0].Balance, entries[1].Balance)
	}
}

func TestCalculateBalances_EmptyLedger(t *testing.T) {
	summary, entries := CalculateBalances(d("-150"), nil, nil, nil)
	if summary.CurrentBalance.String() != "-150" {
		t.Fatalf("expected -150, got %s", summary.CurrentBalance)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no entries, got %d", len(entries))
	}
}

func TestMonthlyTotals(t *testing.T) {
	stats := MonthlyTotals(sampleRows(), nil, nil)
	if len(stats) != 2 {
		t.Fatalf("expected 2 months, got %d", len(stats))
	}
	if stats[0].Month != "Jan" || stats[0].TotalPurchase != "1000" || stats[0].TotalPaid != "400" {
		t.Fatalf("January wrong: %+v", stats[0])
	}
	if stats[1].Month != "Feb" || stats[1].TotalPurchase != "500" || stats[1].TotalPaid != "300" {
		t.Fatalf("February wrong: %+v", stats[1])
	}
}

func TestReverseEntries(t *testing.T) {
	entries := []LedgerEntry{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	reverseEntries(entries)
	if entries[0].ID != "c" || entries[2].ID != "a" {
		t.Fatalf("reverse wrong: %+v", entries)
	}
}

func TestResolvePeriod(t *testing.T) {
	now := day("2024-06-15")

	start, end, err := resolvePeriod("monthly", "", "", now)
	if err != nil {
		t.Fatalf("monthly error: %v", err)
	}
	if start.Format("2006-01-02") != "2024-06-01" || end.Format("2006-01-02") != "2024-06-30" {
		t.Fatalf("monthly window wrong: %v .. %v", start, end)
	}

	// Fiscal year runs April through March.
	start, end, err = resolvePeriod("yearly", "", "", now)
	if err != nil {
		t.Fatalf("yearly error: %v", err)
	}
	if start.Format("2006-01-02") != "2024-04-01" || end.Format("2006-01-02") != "2025-03-31" {
		t.Fatalf("fiscal year wrong: %v .. %v", start, end)
	}

	// Before April the fiscal year started the previous calendar year.
	start, end, _ = resolvePeriod("yearly", "", "", day("2024-02-10"))
	if start.Format("2006-01-02") != "2023-04-01" || end.Format("2006-01-02") != "2024-03-31" {
		t.Fatalf("pre-April fiscal year wrong: %v .. %v", start, end)
	}

	// Explicit dates win over the named period.
	start, end, err = resolvePeriod("monthly", "2024-01-01", "2024-01-31", now)
	if err != nil || start.Format("2006-01-02") != "2024-01-01" || end.Format("2006-01-02") != "2024-01-31" {
		t.Fatalf("explicit dates wrong: %v .. %v (%v)", start, end, err)
	}

	if _, _, err := resolvePeriod("", "bad", "2024-01-31", now); err == nil {
		t.Fatal("expected error for bad start date")
	}

	start, end, err = resolvePeriod("all", "", "", now)
	if err != nil || start != nil || end != nil {
		t.Fatalf("all should be unbounded, got %v .. %v", start, end)
	}
}
