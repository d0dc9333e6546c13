package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestDeriveStatus(t *testing.T) {
	cases := []struct {
		inserted, failed int
		expected         string
	}{
		{10, 0, StatusSuccess},
		{0, 0, StatusSuccess}, // all skipped is still a clean run
		{5, 3, StatusPartial},
		{0, 8, StatusFailed},
	}
	for _, tc := range cases {
		if got := deriveStatus(tc.inserted, tc.failed); got != tc.expected {
			t.Fatalf("deriveStatus(%d, %d) expected %s, got %s", tc.inserted, tc.failed, tc.expected, got)
		}
	}
}

func TestDeriveImportStatus(t *testing.T) {
	cases := []struct {
		imported, skipped, errors int
		expected                  string
	}{
		{10, 0, 0, StatusSuccess},
		{5, 0, 2, StatusPartial},
		{0, 0, 0, StatusFailed}, // a batch that produced nothing failed
		{0, 0, 4, StatusFailed},
		{0, 5, 0, StatusSuccess}, // re-import where every row already exists
		{0, 2, 4, StatusFailed},
		{3, 2, 0, StatusSuccess},
	}
	for _, tc := range cases {
		if got := deriveImportStatus(tc.imported, tc.skipped, tc.errors); got != tc.expected {
			t.Fatalf("deriveImportStatus(%d, %d, %d) expected %s, got %s",
				tc.imported, tc.skipped, tc.errors, tc.expected, got)
		}
	}
}

func TestInvoiceStatus(t *testing.T) {
	cases := []struct {
		due, paid string
		expected  string
	}{
		{"0", "100", "paid"},
		{"-5", "105", "paid"},
		{"60", "40", "partial"},
		{"100", "0", "unpaid"},
	}
	for _, tc := range cases {
		due, _ := decimal.NewFromString(tc.due)
		paid, _ := decimal.NewFromString(tc.paid)
		if got := invoiceStatus(due, paid); got != tc.expected {
			t.Fatalf("invoiceStatus(%s, %s) expected %s, got %s", tc.due, tc.paid, tc.expected, got)
		}
	}
}

func TestCapErrors(t *testing.T) {
	if got := capErrors(nil, 5); got == nil || len(got) != 0 {
		t.Fatalf("nil input should yield empty slice, got %v", got)
	}
	errs := []RowError{{Row: 2}, {Row: 3}, {Row: 4}}
	if got := capErrors(errs, 2); len(got) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(got))
	}
	if got := capErrors(errs, 10); len(got) != 3 {
		t.Fatalf("expected all 3 errors, got %d", len(got))
	}
}

func TestHasUsableMobile(t *testing.T) {
	cases := []struct {
		in       string
		expected bool
	}{
		{"9876543210", true},
		{"0012345678", false}, // placeholder prefix
		{"123", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := hasUsableMobile(tc.in); got != tc.expected {
			t.Fatalf("hasUsableMobile(%q) expected %v, got %v", tc.in, tc.expected, got)
		}
	}
}

func TestPlaceholderMobile(t *testing.T) {
	m := placeholderMobile()
	if len(m) != 10 || m[:2] != "00" {
		t.Fatalf("placeholder mobile must be 10 digits with 00 prefix, got %q", m)
	}
	if hasUsableMobile(m) {
		t.Fatal("placeholder mobile must never count as usable")
	}
}
