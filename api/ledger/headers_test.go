package ledger

import "testing"

func TestNormalizeHeader(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{"Phone No.", "phoneno"},
		{"  Party Name ", "partyname"},
		{"Dr/Cr", "drcr"},
		{"INVOICE_NO", "invoiceno"},
		{"Opening Balance", "openingbalance"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := NormalizeHeader(tc.in); got != tc.expected {
			t.Fatalf("NormalizeHeader(%q) expected %q, got %q", tc.in, tc.expected, got)
		}
	}
}

func TestResolveHeaders_FirstAliasWins(t *testing.T) {
	headers := []string{"Customer Name", "Party Name", "Mobile"}
	resolved := ResolveHeaders(tallyPartyConfig, headers)

	// "Party Name" is the highest-priority alias for name, so it must win
	// even though "Customer Name" appears first in the file.
	if resolved["name"] != "Party Name" {
		t.Fatalf("expected name to resolve to Party Name, got %q", resolved["name"])
	}
	if resolved["mobile"] != "Mobile" {
		t.Fatalf("expected mobile to resolve to Mobile, got %q", resolved["mobile"])
	}
	if _, ok := resolved["address"]; ok {
		t.Fatal("address should not resolve when no alias is present")
	}
}

func TestResolveHeaders_NormalizedMatching(t *testing.T) {
	headers := []string{"phone_no.", "PARTY NAME"}
	resolved := ResolveHeaders(customerConfig, headers)
	if resolved["name"] != "PARTY NAME" {
		t.Fatalf("expected name to resolve, got %q", resolved["name"])
	}
	if resolved["mobile"] != "phone_no." {
		t.Fatalf("expected mobile to resolve to raw header, got %q", resolved["mobile"])
	}
}

func TestMissingRequired(t *testing.T) {
	resolved := ResolveHeaders(tallySalesConfig, []string{"Invoice No", "Amount"})
	if field := missingRequired(tallySalesConfig, resolved); field != "customerName" {
		t.Fatalf("expected customerName to be reported missing, got %q", field)
	}
	resolved = ResolveHeaders(tallySalesConfig, []string{"Invoice No", "Party Name"})
	if field := missingRequired(tallySalesConfig, resolved); field != "" {
		t.Fatalf("expected nothing missing, got %q", field)
	}
}

func TestDetectFileType(t *testing.T) {
	cases := []struct {
		name     string
		headers  []string
		expected string
	}{
		{"ledger wins over invoice", []string{"Party Name", "Voucher Type", "Invoice No", "Amount"}, FileTypeLedger},
		{"transaction type column", []string{"Date", "Transaction Type", "Amount"}, FileTypeLedger},
		{"customer by receivable", []string{"Name", "Receivable Balance", "Mobile"}, FileTypeCustomers},
		{"products", []string{"Item Name", "Current Stock", "Sales Price"}, FileTypeProducts},
		{"item name without stock or price", []string{"Item Name", "HSN"}, ""},
		{"invoice fallback", []string{"Invoice No", "Amount", "Date"}, FileTypeInvoices},
		{"bill no fallback", []string{"Bill No", "Total"}, FileTypeInvoices},
		{"unknown", []string{"Foo", "Bar"}, ""},
	}
	for _, tc := range cases {
		if got := DetectFileType(tc.headers); got != tc.expected {
			t.Fatalf("%s: DetectFileType(%v) expected %q, got %q", tc.name, tc.headers, tc.expected, got)
		}
	}
}
