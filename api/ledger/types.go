package ledger

// Detected spreadsheet file types.
const (
	FileTypeCustomers = "customers"
	FileTypeProducts  = "products"
	FileTypeInvoices  = "invoices"
	FileTypeLedger    = "ledger"
)

// Balance sign conventions for a party.
const (
	BalanceReceivable = "receivable"
	BalancePayable    = "payable"
)

// Import/upload terminal statuses.
const (
	StatusSuccess = "success"
	StatusPartial = "partial"
	StatusFailed  = "failed"
)

// RowError is one row-level diagnostic. Row is a 1-based row number for
// validation errors (the header row counts as row 1) or the offending natural
// key for reconciliation errors.
type RowError struct {
	Row    interface{} `json:"row"`
	Field  string      `json:"field,omitempty"`
	Reason string      `json:"reason"`
}

// PartyRow is a validated customer/party spreadsheet row. OpeningBalance is a
// canonical signed numeric string; payable balances arrive already negated.
type PartyRow struct {
	Name           string `json:"name"`
	Mobile         string `json:"mobile,omitempty"`
	Address        string `json:"address,omitempty"`
	OpeningBalance string `json:"openingBalance"`
	BalanceType    string `json:"balanceType"`
}

// LedgerTxRow is a validated sales/ledger report row. Kind is one of
// sale, credit_note or payment after voucher-type normalization.
type LedgerTxRow struct {
	CustomerName string `json:"customerName"`
	Date         string `json:"date"`
	Kind         string `json:"kind"`
	Amount       string `json:"amount"`
	RefNo        string `json:"refNo,omitempty"`
	Mode         string `json:"mode,omitempty"`
}

// InvoiceRow is a validated row from a generic invoice list export.
type InvoiceRow struct {
	InvoiceNo    string `json:"invoiceNo"`
	CustomerName string `json:"customerName,omitempty"`
	Date         string `json:"date"`
	TotalAmount  string `json:"totalAmount"`
}

// ProductRow is recognized for type detection completeness; catalog rows are
// not applied to the ledger.
type ProductRow struct {
	Name  string `json:"name"`
	Code  string `json:"code,omitempty"`
	Price string `json:"price,omitempty"`
	Stock string `json:"stock,omitempty"`
}

// UploadSummary is the per-stage counters block of an XML upload response.
type UploadSummary struct {
	Total    int `json:"total"`
	Inserted int `json:"inserted"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// UploadStatus reports which XML stages have completed and which are unlocked.
type UploadStatus struct {
	CustomersUploaded bool `json:"customersUploaded"`
	BillsUploaded     bool `json:"billsUploaded"`
	PaymentsUploaded  bool `json:"paymentsUploaded"`
	CanUploadBills    bool `json:"canUploadBills"`
	CanUploadPayments bool `json:"canUploadPayments"`
}

// CustomerRecord is one customer extracted from a customers XML file.
type CustomerRecord struct {
	Name         string
	Mobile       string
	CustomerCode string
}

// BillRecord is one bill extracted from a bills XML file.
type BillRecord struct {
	BillNo       string
	BillDate     string
	Amount       string
	CustomerCode string
	CustomerName string
}

// PaymentRecord is one receipt extracted from a payments XML file.
type PaymentRecord struct {
	ReceiptNo   string
	BillNo      string
	Amount      string
	PaymentDate string
	PaymentMode string
}

// deriveStatus maps XML stage counters onto the terminal log status. A run
// with no failures is a success even when every row was a legitimate skip.
func deriveStatus(inserted, failed int) string {
	if failed == 0 {
		return StatusSuccess
	}
	if inserted > 0 {
		return StatusPartial
	}
	return StatusFailed
}

// deriveImportStatus is the spreadsheet-import variant. Duplicates are
// legitimate skips, not failures: a re-import where every row already exists
// is a clean run, while a batch that produced nothing at all is failed.
func deriveImportStatus(imported, skipped, errors int) string {
	if errors == 0 {
		if imported == 0 && skipped == 0 {
			return StatusFailed
		}
		return StatusSuccess
	}
	if imported > 0 {
		return StatusPartial
	}
	return StatusFailed
}
