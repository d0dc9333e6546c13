package ledger

import "testing"

func TestParseFlexibleDate(t *testing.T) {
	cases := []struct {
		in       string
		expected string
		ok       bool
	}{
		{"2024-03-15", "2024-03-15", true},
		{"15-03-2024", "2024-03-15", true},
		{"15/03/2024", "2024-03-15", true},
		{"20240315", "2024-03-15", true},
		{"15-Mar-2024", "2024-03-15", true},
		{"45000", "2023-03-15", true}, // Excel serial
		{"not a date", "", false},
		{"", "", false},
		{"31/31/2024", "", false},
	}
	for _, tc := range cases {
		got, ok := parseFlexibleDate(tc.in)
		if ok != tc.ok {
			t.Fatalf("parseFlexibleDate(%q) ok expected %v, got %v", tc.in, tc.ok, ok)
		}
		if ok && got != tc.expected {
			t.Fatalf("parseFlexibleDate(%q) expected %q, got %q", tc.in, tc.expected, got)
		}
	}
}

func TestSanitizeAmount(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{"1,234.50", "1234.5"},
		{"₹ 500", "500"},
		{"Rs. 1,000", "1000"},
		{"-250", "-250"},
		{"", "0"},
		{"N/A", "0"},
		{"-", "0"},
		{"12.34.56", "0"},
	}
	for _, tc := range cases {
		if got := sanitizeAmount(tc.in); got != tc.expected {
			t.Fatalf("sanitizeAmount(%q) expected %q, got %q", tc.in, tc.expected, got)
		}
	}
}

func TestNormalizeMobile(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{"+91 98765 43210", "9876543210"},
		{"98765-43210", "9876543210"},
		{"09876543210", "9876543210"},
		{"12345", ""},
		{"", ""},
		{"abc", ""},
	}
	for _, tc := range cases {
		if got := normalizeMobile(tc.in); got != tc.expected {
			t.Fatalf("normalizeMobile(%q) expected %q, got %q", tc.in, tc.expected, got)
		}
	}
}

func TestApplyDrCr(t *testing.T) {
	balance, typ := applyDrCr("500", "Cr")
	if balance != "-500" || typ != BalancePayable {
		t.Fatalf("Cr expected -500/payable, got %s/%s", balance, typ)
	}
	balance, typ = applyDrCr("500", "Dr")
	if balance != "500" || typ != BalanceReceivable {
		t.Fatalf("Dr expected 500/receivable, got %s/%s", balance, typ)
	}
	balance, typ = applyDrCr("0", "Cr")
	if balance != "0" || typ != BalancePayable {
		t.Fatalf("zero Cr expected 0/payable, got %s/%s", balance, typ)
	}
}

func TestNormalizeTxnKind(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{"Sales", "sale"},
		{"Invoice", "sale"},
		{"Payment", "payment"},
		{"Receipt", "payment"},
		{"Credit Note", "credit_note"},
		{"credit", "credit_note"},
		{"Journal", ""},
	}
	for _, tc := range cases {
		if got := normalizeTxnKind(tc.in); got != tc.expected {
			t.Fatalf("normalizeTxnKind(%q) expected %q, got %q", tc.in, tc.expected, got)
		}
	}
}

func TestValidateTallyPartyRows_NeverAborts(t *testing.T) {
	headers := []string{"Party Name", "Opening Balance", "Dr/Cr", "Mobile"}
	records := []RawRecord{
		{Row: 2, Fields: map[string]string{"Party Name": "Sharma Traders", "Opening Balance": "1,500", "Dr/Cr": "Dr", "Mobile": "+91 98765 43210"}},
		{Row: 3, Fields: map[string]string{"Party Name": "", "Opening Balance": "100"}},
		{Row: 4, Fields: map[string]string{"Party Name": "Gupta & Sons", "Opening Balance": "2000", "Dr/Cr": "Cr"}},
	}

	rows, errs := ValidateTallyPartyRows(headers, records)
	if len(rows) != 2 {
		t.Fatalf("expected 2 valid rows, got %d", len(rows))
	}
	if len(errs) != 1 {
		t.Fatalf("expected 1 row error, got %d", len(errs))
	}
	if errs[0].Row != 3 {
		t.Fatalf("expected error on row 3, got %v", errs[0].Row)
	}
	if rows[0].OpeningBalance != "1500" || rows[0].BalanceType != BalanceReceivable {
		t.Fatalf("row 1 balance wrong: %s/%s", rows[0].OpeningBalance, rows[0].BalanceType)
	}
	if rows[0].Mobile != "9876543210" {
		t.Fatalf("row 1 mobile wrong: %s", rows[0].Mobile)
	}
	if rows[1].OpeningBalance != "-2000" || rows[1].BalanceType != BalancePayable {
		t.Fatalf("row 2 balance wrong: %s/%s", rows[1].OpeningBalance, rows[1].BalanceType)
	}
}

func TestValidateTallyPartyRows_MissingRequiredColumn(t *testing.T) {
	rows, errs := ValidateTallyPartyRows([]string{"Amount", "Mobile"}, []RawRecord{
		{Row: 2, Fields: map[string]string{"Amount": "100"}},
	})
	if len(rows) != 0 {
		t.Fatalf("expected no rows, got %d", len(rows))
	}
	if len(errs) != 1 || errs[0].Row != "HEADER" {
		t.Fatalf("expected a single HEADER error, got %+v", errs)
	}
}

func TestValidateLedgerRows(t *testing.T) {
	headers := []string{"Party Name", "Voucher Type", "Date", "Amount", "Voucher No", "Payment Type"}
	records := []RawRecord{
		{Row: 2, Fields: map[string]string{"Party Name": "Kumar Stores", "Voucher Type": "Sales", "Date": "01/04/2024", "Amount": "1200", "Voucher No": "INV-1"}},
		{Row: 3, Fields: map[string]string{"Party Name": "Kumar Stores", "Voucher Type": "Receipt", "Date": "05/04/2024", "Amount": "500", "Payment Type": "UPI"}},
		{Row: 4, Fields: map[string]string{"Party Name": "Kumar Stores", "Voucher Type": "Journal", "Date": "06/04/2024", "Amount": "10"}},
		{Row: 5, Fields: map[string]string{"Party Name": "Kumar Stores", "Voucher Type": "Sales", "Date": "garbage", "Amount": "10"}},
	}

	rows, errs := ValidateLedgerRows(headers, records)
	if len(rows) != 2 {
		t.Fatalf("expected 2 valid rows, got %d", len(rows))
	}
	if len(errs) != 2 {
		t.Fatalf("expected 2 row errors, got %d", len(errs))
	}
	if rows[0].Kind != "sale" || rows[0].Date != "2024-04-01" {
		t.Fatalf("sale row wrong: %+v", rows[0])
	}
	if rows[1].Kind != "payment" || rows[1].Mode != "upi" {
		t.Fatalf("payment row wrong: %+v", rows[1])
	}
}

func TestValidateCustomerRows_PayableDominates(t *testing.T) {
	headers := []string{"Name", "Receivable Balance", "Payable Balance"}
	records := []RawRecord{
		{Row: 2, Fields: map[string]string{"Name": "A", "Receivable Balance": "100", "Payable Balance": "0"}},
		{Row: 3, Fields: map[string]string{"Name": "B", "Receivable Balance": "50", "Payable Balance": "300"}},
	}
	rows, errs := ValidateCustomerRows(headers, records)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %+v", errs)
	}
	if rows[0].OpeningBalance != "100" || rows[0].BalanceType != BalanceReceivable {
		t.Fatalf("row A wrong: %+v", rows[0])
	}
	if rows[1].OpeningBalance != "-300" || rows[1].BalanceType != BalancePayable {
		t.Fatalf("row B wrong: %+v", rows[1])
	}
}

func TestValidateTallySalesRows_DateDefaultsWhenColumnAbsent(t *testing.T) {
	headers := []string{"Invoice No", "Party Name", "Amount"}
	records := []RawRecord{
		{Row: 2, Fields: map[string]string{"Invoice No": "INV-9", "Party Name": "X", "Amount": "10"}},
	}
	rows, errs := ValidateTallySalesRows(headers, records)
	if len(errs) != 0 || len(rows) != 1 {
		t.Fatalf("expected 1 row no errors, got rows=%d errs=%+v", len(rows), errs)
	}
	if rows[0].Date == "" {
		t.Fatal("expected a defaulted date")
	}
}
