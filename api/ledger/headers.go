package ledger

import "strings"

// aliasConfig declares, per canonical field, the accepted human-authored
// header spellings in priority order. Accounting tools are wildly
// inconsistent about column names, so everything is matched on the
// normalized form.
type aliasConfig struct {
	required []string
	fields   map[string][]string
}

// Tally "Party Report" export.
var tallyPartyConfig = aliasConfig{
	required: []string{"name"},
	fields: map[string][]string{
		"name":           {"Party Name", "Name", "Customer Name"},
		"openingBalance": {"Opening Balance", "Balance", "Amount", "Closing Balance"},
		"balanceType":    {"Dr/Cr", "Type", "Balance Type", "Dr / Cr"},
		"mobile":         {"Mobile", "Phone", "Contact No", "Mobile No", "Phone Number"},
		"address":        {"Address", "Billing Address"},
	},
}

// Tally "Sales Register" export.
var tallySalesConfig = aliasConfig{
	required: []string{"invoiceNo", "customerName"},
	fields: map[string][]string{
		"invoiceNo":    {"Invoice No", "Bill No", "Voucher No", "Invoice Number"},
		"customerName": {"Party Name", "Customer Name", "Name"},
		"invoiceDate":  {"Date", "Invoice Date", "Bill Date", "Voucher Date"},
		"amount":       {"Amount", "Total", "Bill Amount", "Invoice Amount"},
	},
}

// Auto-detected customer report (Vyapar style: separate receivable/payable
// balance columns instead of a Dr/Cr marker).
var customerConfig = aliasConfig{
	required: []string{"name"},
	fields: map[string][]string{
		"name":       {"Name", "Party Name", "Customer Name"},
		"mobile":     {"Mobile", "Phone", "Phone No", "Phone No."},
		"receivable": {"Receivable Balance", "Receivable"},
		"payable":    {"Payable Balance", "Payable"},
		"address":    {"Address", "Billing Address"},
	},
}

// Auto-detected sales/ledger report: one transaction per row, voucher type
// column decides whether a row is a sale, credit note or payment.
var ledgerConfig = aliasConfig{
	required: []string{"customerName", "date"},
	fields: map[string][]string{
		"customerName": {"Party Name", "Particulars", "Customer Name"},
		"txnType":      {"Transaction Type", "Voucher Type", "Type"},
		"date":         {"Date", "Bill Date", "Voucher Date"},
		"amount":       {"Total Amount", "Amount", "Debit", "Credit"},
		"refNo":        {"Invoice No", "Voucher No", "Ref No"},
		"mode":         {"Payment Type", "Mode", "Payment Mode"},
	},
}

// Auto-detected generic invoice list (fallback shape).
var invoiceConfig = aliasConfig{
	required: []string{"invoiceNo"},
	fields: map[string][]string{
		"invoiceNo":    {"Invoice No", "Invoice No.", "Bill No", "Bill Number", "Voucher No", "Ref No"},
		"customerName": {"Party Name", "Customer Name"},
		"date":         {"Date", "Invoice Date", "Bill Date"},
		"totalAmount":  {"Amount", "Total Amount", "Invoice Amount", "Net Amount", "Grand Total", "Total"},
	},
}

// Auto-detected product catalog (recognized so it is not misfiled as an
// invoice list; catalog rows never reach the reconciler).
var productConfig = aliasConfig{
	required: []string{"name"},
	fields: map[string][]string{
		"name":  {"Item Name", "Product Name"},
		"code":  {"Item Code", "Product Code", "SKU"},
		"price": {"Sales Price", "Rate", "Price"},
		"stock": {"Current Stock", "Stock Quantity", "Quantity"},
	},
}

// NormalizeHeader reduces a human-authored column header to a canonical
// lowercase alphanumeric token, so "Phone No." == "phone no" == "PhoneNo".
func NormalizeHeader(h string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(h)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ResolveHeaders maps canonical field names to the actual header that carries
// them. For each field the first alias (priority order) whose normalized form
// matches an actual header wins; fields with no match are omitted.
func ResolveHeaders(cfg aliasConfig, headers []string) map[string]string {
	normalized := make(map[string]string, len(headers))
	for _, h := range headers {
		key := NormalizeHeader(h)
		if _, ok := normalized[key]; !ok {
			normalized[key] = h
		}
	}
	resolved := make(map[string]string)
	for field, aliases := range cfg.fields {
		for _, alias := range aliases {
			if actual, ok := normalized[NormalizeHeader(alias)]; ok {
				resolved[field] = actual
				break
			}
		}
	}
	return resolved
}

// missingRequired returns the first required field that did not resolve.
func missingRequired(cfg aliasConfig, resolved map[string]string) string {
	for _, field := range cfg.required {
		if _, ok := resolved[field]; !ok {
			return field
		}
	}
	return ""
}

// DetectFileType classifies a spreadsheet by its header signature.
//
// Priority matters: a sales/ledger export is the richest shape and usually
// also carries an invoice-number column, so the voucher-type signature must
// win over the generic invoice fallback.
func DetectFileType(headers []string) string {
	normalized := make([]string, 0, len(headers))
	for _, h := range headers {
		normalized = append(normalized, NormalizeHeader(h))
	}
	contains := func(sub string) bool {
		for _, h := range normalized {
			if strings.Contains(h, sub) {
				return true
			}
		}
		return false
	}

	if contains("transactiontype") || contains("vouchertype") {
		return FileTypeLedger
	}
	if contains("receivable") || contains("payablebalance") {
		return FileTypeCustomers
	}
	if contains("itemname") && (contains("stock") || contains("price")) {
		return FileTypeProducts
	}
	if contains("invoiceno") || contains("billno") {
		return FileTypeInvoices
	}
	return ""
}
