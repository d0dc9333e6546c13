package ledger

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Date layouts seen in real exports, tried in order. Tally XML uses the
// compact 20060102 form.
var dateLayouts = []string{
	"2006-01-02",
	"02-01-2006",
	"02/01/2006",
	"2/1/2006",
	"01/02/2006",
	"2006/01/02",
	"20060102",
	"2 Jan 2006",
	"02-Jan-2006",
	"Jan 2, 2006",
	time.RFC3339,
}

// parseFlexibleDate accepts an Excel date serial or free text and returns
// YYYY-MM-DD. ok is false when nothing parses.
func parseFlexibleDate(val string) (string, bool) {
	val = strings.TrimSpace(val)
	if val == "" {
		return "", false
	}
	// Excel stores dates as days since 1899-12-30.
	if serial, err := strconv.ParseFloat(val, 64); err == nil && serial > 59 && serial < 200000 {
		epoch := time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)
		return epoch.Add(time.Duration(serial * float64(24*time.Hour))).Format("2006-01-02"), true
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, val); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return "", false
}

// sanitizeAmount strips currency symbols, separators and units from a money
// cell and returns a canonical numeric string, defaulting to "0". Values that
// still fail to parse after stripping degrade to "0" rather than failing the
// row: the balance calculator downstream assumes clean numerics.
func sanitizeAmount(val string) string {
	var b strings.Builder
	for _, r := range val {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	s := b.String()
	if s == "" || s == "-" || s == "." {
		return "0"
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return "0"
	}
	return d.String()
}

// normalizeMobile keeps the last 10 digits of a phone cell. Anything that
// does not leave a plausible 10-digit mobile is discarded (the value, not
// the row).
func normalizeMobile(val string) string {
	var digits strings.Builder
	for _, r := range val {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	s := digits.String()
	if len(s) > 10 {
		s = s[len(s)-10:]
	}
	if len(s) != 10 {
		return ""
	}
	return s
}

// applyDrCr resolves party balance polarity from a Dr/Cr-style cell.
// Credit means the party is owed money by us, so the stored balance goes
// negative and the balance type flips to payable.
func applyDrCr(balance, drcr string) (string, string) {
	t := strings.ToLower(strings.TrimSpace(drcr))
	if strings.Contains(t, "cr") || t == "c" {
		if !strings.HasPrefix(balance, "-") && balance != "0" {
			balance = "-" + balance
		}
		return balance, BalancePayable
	}
	return balance, BalanceReceivable
}

func fieldVal(rec RawRecord, resolved map[string]string, field string) string {
	header, ok := resolved[field]
	if !ok {
		return ""
	}
	return strings.TrimSpace(rec.Fields[header])
}

// ValidateTallyPartyRows validates a Tally Party Report. Never aborts on a
// bad row; every rejection carries the source row number and reason.
func ValidateTallyPartyRows(headers []string, records []RawRecord) ([]PartyRow, []RowError) {
	var rows []PartyRow
	var errs []RowError

	resolved := ResolveHeaders(tallyPartyConfig, headers)
	if field := missingRequired(tallyPartyConfig, resolved); field != "" {
		errs = append(errs, RowError{Row: "HEADER", Field: field, Reason: "required column not found in file"})
		return rows, errs
	}

	for _, rec := range records {
		name := fieldVal(rec, resolved, "name")
		if name == "" {
			errs = append(errs, RowError{Row: rec.Row, Field: "name", Reason: "missing party name"})
			continue
		}
		balance := sanitizeAmount(fieldVal(rec, resolved, "openingBalance"))
		balance, balanceType := applyDrCr(balance, fieldVal(rec, resolved, "balanceType"))
		rows = append(rows, PartyRow{
			Name:           name,
			Mobile:         normalizeMobile(fieldVal(rec, resolved, "mobile")),
			Address:        fieldVal(rec, resolved, "address"),
			OpeningBalance: balance,
			BalanceType:    balanceType,
		})
	}
	return rows, errs
}

// ValidateTallySalesRows validates a Tally Sales Register: one invoice per
// row, date required when present but defaulting to today when the column is
// absent entirely.
func ValidateTallySalesRows(headers []string, records []RawRecord) ([]InvoiceRow, []RowError) {
	var rows []InvoiceRow
	var errs []RowError

	resolved := ResolveHeaders(tallySalesConfig, headers)
	if field := missingRequired(tallySalesConfig, resolved); field != "" {
		errs = append(errs, RowError{Row: "HEADER", Field: field, Reason: "required column not found in file"})
		return rows, errs
	}

	for _, rec := range records {
		invoiceNo := fieldVal(rec, resolved, "invoiceNo")
		customer := fieldVal(rec, resolved, "customerName")
		if invoiceNo == "" {
			errs = append(errs, RowError{Row: rec.Row, Field: "invoiceNo", Reason: "missing invoice number"})
			continue
		}
		if customer == "" {
			errs = append(errs, RowError{Row: rec.Row, Field: "customerName", Reason: "missing party name"})
			continue
		}

		date := time.Now().Format("2006-01-02")
		if raw := fieldVal(rec, resolved, "invoiceDate"); raw != "" {
			parsed, ok := parseFlexibleDate(raw)
			if !ok {
				errs = append(errs, RowError{Row: rec.Row, Field: "invoiceDate", Reason: fmt.Sprintf("invalid date %q", raw)})
				continue
			}
			date = parsed
		}

		rows = append(rows, InvoiceRow{
			InvoiceNo:    invoiceNo,
			CustomerName: customer,
			Date:         date,
			TotalAmount:  sanitizeAmount(fieldVal(rec, resolved, "amount")),
		})
	}
	return rows, errs
}

// ValidateCustomerRows validates an auto-detected customer report. Balance
// polarity comes from whichever of the receivable/payable columns dominates.
func ValidateCustomerRows(headers []string, records []RawRecord) ([]PartyRow, []RowError) {
	var rows []PartyRow
	var errs []RowError

	resolved := ResolveHeaders(customerConfig, headers)
	if field := missingRequired(customerConfig, resolved); field != "" {
		errs = append(errs, RowError{Row: "HEADER", Field: field, Reason: "required column not found in file"})
		return rows, errs
	}

	for _, rec := range records {
		name := fieldVal(rec, resolved, "name")
		if name == "" {
			errs = append(errs, RowError{Row: rec.Row, Field: "name", Reason: "missing name"})
			continue
		}

		rcv, _ := decimal.NewFromString(sanitizeAmount(fieldVal(rec, resolved, "receivable")))
		pay, _ := decimal.NewFromString(sanitizeAmount(fieldVal(rec, resolved, "payable")))

		balance := rcv.String()
		balanceType := BalanceReceivable
		if pay.IsPositive() && pay.GreaterThan(rcv) {
			balance = pay.Neg().String()
			balanceType = BalancePayable
		}

		rows = append(rows, PartyRow{
			Name:           name,
			Mobile:         normalizeMobile(fieldVal(rec, resolved, "mobile")),
			Address:        fieldVal(rec, resolved, "address"),
			OpeningBalance: balance,
			BalanceType:    balanceType,
		})
	}
	return rows, errs
}

// normalizeTxnKind folds free-text voucher types onto the closed set the
// reconciler understands.
func normalizeTxnKind(raw string) string {
	t := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.Contains(t, "credit"):
		return "credit_note"
	case strings.Contains(t, "payment"), strings.Contains(t, "receipt"):
		return "payment"
	case strings.Contains(t, "sale"), strings.Contains(t, "invoice"):
		return "sale"
	}
	return ""
}

// ValidateLedgerRows validates an auto-detected sales/ledger report.
func ValidateLedgerRows(headers []string, records []RawRecord) ([]LedgerTxRow, []RowError) {
	var rows []LedgerTxRow
	var errs []RowError

	resolved := ResolveHeaders(ledgerConfig, headers)
	if field := missingRequired(ledgerConfig, resolved); field != "" {
		errs = append(errs, RowError{Row: "HEADER", Field: field, Reason: "required column not found in file"})
		return rows, errs
	}

	for _, rec := range records {
		name := fieldVal(rec, resolved, "customerName")
		if name == "" {
			errs = append(errs, RowError{Row: rec.Row, Field: "customerName", Reason: "missing party name"})
			continue
		}
		rawDate := fieldVal(rec, resolved, "date")
		if rawDate == "" {
			errs = append(errs, RowError{Row: rec.Row, Field: "date", Reason: "missing date"})
			continue
		}
		date, ok := parseFlexibleDate(rawDate)
		if !ok {
			errs = append(errs, RowError{Row: rec.Row, Field: "date", Reason: fmt.Sprintf("invalid date %q", rawDate)})
			continue
		}
		kind := normalizeTxnKind(fieldVal(rec, resolved, "txnType"))
		if kind == "" {
			errs = append(errs, RowError{Row: rec.Row, Field: "txnType", Reason: "unrecognized transaction type"})
			continue
		}

		rows = append(rows, LedgerTxRow{
			CustomerName: name,
			Date:         date,
			Kind:         kind,
			Amount:       sanitizeAmount(fieldVal(rec, resolved, "amount")),
			RefNo:        fieldVal(rec, resolved, "refNo"),
			Mode:         strings.ToLower(fieldVal(rec, resolved, "mode")),
		})
	}
	return rows, errs
}

// ValidateInvoiceRows validates a generic invoice list.
func ValidateInvoiceRows(headers []string, records []RawRecord) ([]InvoiceRow, []RowError) {
	var rows []InvoiceRow
	var errs []RowError

	resolved := ResolveHeaders(invoiceConfig, headers)
	if field := missingRequired(invoiceConfig, resolved); field != "" {
		errs = append(errs, RowError{Row: "HEADER", Field: field, Reason: "required column not found in file"})
		return rows, errs
	}

	for _, rec := range records {
		invoiceNo := fieldVal(rec, resolved, "invoiceNo")
		if invoiceNo == "" {
			errs = append(errs, RowError{Row: rec.Row, Field: "invoiceNo", Reason: "missing invoice number"})
			continue
		}
		date := time.Now().Format("2006-01-02")
		if raw := fieldVal(rec, resolved, "date"); raw != "" {
			if parsed, ok := parseFlexibleDate(raw); ok {
				date = parsed
			} else {
				errs = append(errs, RowError{Row: rec.Row, Field: "date", Reason: fmt.Sprintf("invalid date %q", raw)})
				continue
			}
		}
		rows = append(rows, InvoiceRow{
			InvoiceNo:    invoiceNo,
			CustomerName: fieldVal(rec, resolved, "customerName"),
			Date:         date,
			TotalAmount:  sanitizeAmount(fieldVal(rec, resolved, "totalAmount")),
		})
	}
	return rows, errs
}
