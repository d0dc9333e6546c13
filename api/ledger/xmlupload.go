package ledger

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"KhataLedger/internal/config"
	"KhataLedger/internal/logger"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// xmlNode is a schema-free XML tree. Export tools disagree on casing and
// nesting, so extraction walks this tree case-insensitively instead of
// binding to a fixed document shape.
type xmlNode struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Content  string     `xml:",chardata"`
	Children []xmlNode  `xml:",any"`
}

// collectNodes gathers every descendant element with the given local name,
// case-insensitively, in document order.
func collectNodes(n *xmlNode, name string) []*xmlNode {
	var out []*xmlNode
	for i := range n.Children {
		c := &n.Children[i]
		if strings.EqualFold(c.XMLName.Local, name) {
			out = append(out, c)
		}
		out = append(out, collectNodes(c, name)...)
	}
	return out
}

// childText returns the trimmed text of the first direct child matching any
// of the candidate names, falling back to a matching attribute.
func childText(n *xmlNode, names ...string) string {
	for _, name := range names {
		for i := range n.Children {
			c := &n.Children[i]
			if strings.EqualFold(c.XMLName.Local, name) {
				if t := strings.TrimSpace(c.Content); t != "" {
					return t
				}
			}
		}
		for _, a := range n.Attrs {
			if strings.EqualFold(a.Name.Local, name) {
				if t := strings.TrimSpace(a.Value); t != "" {
					return t
				}
			}
		}
	}
	return ""
}

func parseXMLTree(data []byte) (*xmlNode, error) {
	var root xmlNode
	if err := xml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("invalid XML: %w", err)
	}
	return &root, nil
}

// extractCustomerRecords pulls customers out of either a <Customers><Customer>
// document or a Tally ENVELOPE carrying LEDGER messages.
func extractCustomerRecords(root *xmlNode) []CustomerRecord {
	nodes := collectNodes(root, "customer")
	if len(nodes) == 0 {
		nodes = collectNodes(root, "ledger")
	}
	out := make([]CustomerRecord, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, CustomerRecord{
			Name:         childText(n, "name", "ledgername", "partyname"),
			Mobile:       childText(n, "mobile", "phone", "contactno", "mobileno"),
			CustomerCode: childText(n, "code", "customercode", "id"),
		})
	}
	return out
}

func extractBillRecords(root *xmlNode) []BillRecord {
	nodes := collectNodes(root, "bill")
	if len(nodes) == 0 {
		nodes = collectNodes(root, "voucher")
	}
	out := make([]BillRecord, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, BillRecord{
			BillNo:       childText(n, "billno", "voucherno", "invoiceno", "vouchernumber"),
			BillDate:     childText(n, "billdate", "date"),
			Amount:       childText(n, "amount", "total", "billamount"),
			CustomerCode: childText(n, "customercode", "partycode"),
			CustomerName: childText(n, "customername", "partyledgername", "partyname"),
		})
	}
	return out
}

func extractPaymentRecords(root *xmlNode) []PaymentRecord {
	nodes := collectNodes(root, "payment")
	if len(nodes) == 0 {
		nodes = collectNodes(root, "receipt")
	}
	out := make([]PaymentRecord, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, PaymentRecord{
			ReceiptNo:   childText(n, "receiptno", "receiptnumber", "voucherno"),
			BillNo:      childText(n, "billno", "invoiceno", "againstbill"),
			Amount:      childText(n, "amount", "total"),
			PaymentDate: childText(n, "paymentdate", "date"),
			PaymentMode: childText(n, "paymentmode", "mode"),
		})
	}
	return out
}

// stageStatus derives the gating flags from the set of completed stages.
// Bills unlock after customers, payments after bills.
func stageStatus(completed map[string]bool) UploadStatus {
	st := UploadStatus{
		CustomersUploaded: completed["customers"],
		BillsUploaded:     completed["bills"],
		PaymentsUploaded:  completed["payments"],
	}
	st.CanUploadBills = st.CustomersUploaded
	st.CanUploadPayments = st.BillsUploaded
	return st
}

// fetchUploadStatus derives stage completion and gating from upload_logs. A
// stage counts as uploaded once any run ended success or partial.
func fetchUploadStatus(ctx context.Context, pool *pgxpool.Pool) (UploadStatus, error) {
	rows, err := pool.Query(ctx, `
		SELECT DISTINCT upload_type FROM upload_logs
		WHERE status IN ($1, $2)`, StatusSuccess, StatusPartial)
	if err != nil {
		return UploadStatus{}, err
	}
	defer rows.Close()

	completed := make(map[string]bool)
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return UploadStatus{}, err
		}
		completed[t] = true
	}
	if err := rows.Err(); err != nil {
		return UploadStatus{}, err
	}
	return stageStatus(completed), nil
}

func priorUpload(ctx context.Context, pool *pgxpool.Pool, hash string) (id string, at time.Time, found bool, err error) {
	err = pool.QueryRow(ctx, `
		SELECT id, uploaded_at FROM upload_logs WHERE file_hash = $1`, hash).Scan(&id, &at)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", time.Time{}, false, nil
	}
	if err != nil {
		return "", time.Time{}, false, err
	}
	return id, at, true, nil
}

func saveUploadLog(ctx context.Context, pool *pgxpool.Pool, fileName, hash, uploadType string, sum UploadSummary, errs []RowError) (string, error) {
	errJSON, _ := json.Marshal(errs)
	var id string
	err := pool.QueryRow(ctx, `
		INSERT INTO upload_logs (file_name, file_hash, upload_type, records_total, records_success, records_failed, records_skipped, error_log, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9)
		RETURNING id`,
		fileName, hash, uploadType, sum.Total, sum.Inserted, sum.Failed, sum.Skipped,
		string(errJSON), deriveStatus(sum.Inserted, sum.Failed)).Scan(&id)
	return id, err
}

// xmlMobile validates the mobile of a strict-pipeline customer record. The
// trusted-export path never substitutes placeholders: a missing or invalid
// mobile fails the row.
func xmlMobile(raw string) (string, string) {
	if strings.TrimSpace(raw) == "" {
		return "", "missing mobile number"
	}
	m := normalizeMobile(raw)
	if m == "" {
		return "", fmt.Sprintf("invalid mobile %q", raw)
	}
	return m, ""
}

// UploadCustomersXML is stage one of the XML pipeline. Customers are the only
// stage with no prerequisite.
func UploadCustomersXML(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		data, fileName, hash, ok := readUploadedFile(w, r)
		if !ok {
			return
		}
		if dupUploadRejected(ctx, w, pool, hash) {
			return
		}

		root, err := parseXMLTree(data)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		records := extractCustomerRecords(root)
		if len(records) == 0 {
			respondError(w, http.StatusBadRequest, "no customer records found in XML")
			return
		}

		sum, errs := processInChunks(ctx, pool, len(records), config.XMLChunkSize, func(ctx context.Context, tx pgx.Tx, i int) (string, *RowError) {
			rec := records[i]
			ident := rec.Name
			if ident == "" {
				ident = rec.CustomerCode
			}
			if rec.Name == "" {
				return rowFailed, &RowError{Row: ident, Field: "name", Reason: "missing customer name"}
			}
			mobile, reason := xmlMobile(rec.Mobile)
			if reason != "" {
				return rowFailed, &RowError{Row: ident, Field: "mobile", Reason: reason}
			}

			var exists bool
			if rec.CustomerCode != "" {
				err := tx.QueryRow(ctx, `
					SELECT EXISTS (SELECT 1 FROM customers WHERE customer_code = $1)`,
					rec.CustomerCode).Scan(&exists)
				if err != nil {
					return rowFailed, &RowError{Row: ident, Reason: err.Error()}
				}
			} else {
				err := tx.QueryRow(ctx, `
					SELECT EXISTS (
						SELECT 1 FROM customers
						WHERE lower(trim(name)) = lower(trim($1)) AND mobile = $2
					)`, rec.Name, mobile).Scan(&exists)
				if err != nil {
					return rowFailed, &RowError{Row: ident, Reason: err.Error()}
				}
			}
			if exists {
				return rowSkipped, nil
			}

			_, err := tx.Exec(ctx, `
				INSERT INTO customers (name, mobile, customer_code, opening_balance, balance_type, locked, source)
				VALUES (trim($1), $2, NULLIF($3, ''), 0, $4, true, 'xml_upload')`,
				rec.Name, mobile, rec.CustomerCode, BalanceReceivable)
			if err != nil {
				return rowFailed, &RowError{Row: ident, Reason: err.Error()}
			}
			return rowInserted, nil
		})

		finishUpload(ctx, w, pool, fileName, hash, "customers", sum, errs)
	}
}

// UploadBillsXML is stage two. Rejected outright until a customers upload has
// landed; each bill is also bridged into invoices so the derived ledger view
// covers both pipelines.
func UploadBillsXML(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		st, err := fetchUploadStatus(ctx, pool)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to check upload status")
			return
		}
		if !st.CanUploadBills {
			respondError(w, http.StatusBadRequest, "upload order violation: customers must be uploaded before bills")
			return
		}

		data, fileName, hash, ok := readUploadedFile(w, r)
		if !ok {
			return
		}
		if dupUploadRejected(ctx, w, pool, hash) {
			return
		}

		root, err := parseXMLTree(data)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		records := extractBillRecords(root)
		if len(records) == 0 {
			respondError(w, http.StatusBadRequest, "no bill records found in XML")
			return
		}

		sum, errs := processInChunks(ctx, pool, len(records), config.XMLChunkSize, func(ctx context.Context, tx pgx.Tx, i int) (string, *RowError) {
			rec := records[i]
			ident := rec.BillNo
			if rec.BillNo == "" {
				return rowFailed, &RowError{Row: ident, Field: "billNo", Reason: "missing bill number"}
			}
			date, ok := parseFlexibleDate(rec.BillDate)
			if !ok {
				return rowFailed, &RowError{Row: ident, Field: "billDate", Reason: fmt.Sprintf("invalid date %q", rec.BillDate)}
			}
			amount := sanitizeAmount(rec.Amount)

			customerID, ferr := findXMLCustomer(ctx, tx, rec.CustomerCode, rec.CustomerName)
			if ferr != nil {
				return rowFailed, &RowError{Row: ident, Field: "customer", Reason: ferr.Error()}
			}

			var exists bool
			if err := tx.QueryRow(ctx, `
				SELECT EXISTS (SELECT 1 FROM bills WHERE bill_no = $1 AND bill_date = $2::date)`,
				rec.BillNo, date).Scan(&exists); err != nil {
				return rowFailed, &RowError{Row: ident, Reason: err.Error()}
			}
			if exists {
				return rowSkipped, nil
			}

			if _, err := tx.Exec(ctx, `
				INSERT INTO bills (customer_id, bill_no, bill_date, amount)
				VALUES ($1, $2, $3::date, $4::numeric)`,
				customerID, rec.BillNo, date, amount); err != nil {
				return rowFailed, &RowError{Row: ident, Reason: err.Error()}
			}
			if _, err := insertInvoiceIfNew(ctx, tx, customerID, rec.BillNo, date, amount, "xml_upload"); err != nil {
				return rowFailed, &RowError{Row: ident, Reason: err.Error()}
			}
			return rowInserted, nil
		})

		finishUpload(ctx, w, pool, fileName, hash, "bills", sum, errs)
	}
}

// UploadPaymentsXML is stage three. Every payment must resolve its bill; the
// payment is linked to the invoice bridged from that bill when one exists.
func UploadPaymentsXML(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		st, err := fetchUploadStatus(ctx, pool)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to check upload status")
			return
		}
		if !st.CanUploadPayments {
			respondError(w, http.StatusBadRequest, "upload order violation: bills must be uploaded before payments")
			return
		}

		data, fileName, hash, ok := readUploadedFile(w, r)
		if !ok {
			return
		}
		if dupUploadRejected(ctx, w, pool, hash) {
			return
		}

		root, err := parseXMLTree(data)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		records := extractPaymentRecords(root)
		if len(records) == 0 {
			respondError(w, http.StatusBadRequest, "no payment records found in XML")
			return
		}

		sum, errs := processInChunks(ctx, pool, len(records), config.XMLChunkSize, func(ctx context.Context, tx pgx.Tx, i int) (string, *RowError) {
			rec := records[i]
			ident := rec.ReceiptNo
			if ident == "" {
				ident = rec.BillNo
			}
			if rec.BillNo == "" {
				return rowFailed, &RowError{Row: ident, Field: "billNo", Reason: "missing bill number"}
			}
			date, ok := parseFlexibleDate(rec.PaymentDate)
			if !ok {
				return rowFailed, &RowError{Row: ident, Field: "paymentDate", Reason: fmt.Sprintf("invalid date %q", rec.PaymentDate)}
			}
			amount := sanitizeAmount(rec.Amount)

			var customerID string
			ferr := tx.QueryRow(ctx, `
				SELECT customer_id FROM bills
				WHERE bill_no = $1
				ORDER BY bill_date DESC LIMIT 1`, rec.BillNo).Scan(&customerID)
			if errors.Is(ferr, pgx.ErrNoRows) {
				return rowFailed, &RowError{Row: ident, Field: "billNo", Reason: fmt.Sprintf("bill not found: %s", rec.BillNo)}
			}
			if ferr != nil {
				return rowFailed, &RowError{Row: ident, Reason: ferr.Error()}
			}

			receiptNo := rec.ReceiptNo
			if receiptNo == "" {
				receiptNo = generatedReceiptNo()
			} else {
				var exists bool
				if err := tx.QueryRow(ctx, `
					SELECT EXISTS (SELECT 1 FROM payments WHERE customer_id = $1 AND receipt_no = $2)`,
					customerID, receiptNo).Scan(&exists); err != nil {
					return rowFailed, &RowError{Row: ident, Reason: err.Error()}
				}
				if exists {
					return rowSkipped, nil
				}
			}

			// Link to the invoice bridged from this bill when present.
			var invoiceID *string
			var iid string
			ierr := tx.QueryRow(ctx, `
				SELECT id FROM invoices WHERE customer_id = $1 AND invoice_no = $2`,
				customerID, rec.BillNo).Scan(&iid)
			if ierr == nil {
				invoiceID = &iid
			} else if !errors.Is(ierr, pgx.ErrNoRows) {
				return rowFailed, &RowError{Row: ident, Reason: ierr.Error()}
			}

			mode := strings.ToLower(strings.TrimSpace(rec.PaymentMode))
			if mode == "" {
				mode = "cash"
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO payments (customer_id, invoice_id, receipt_no, payment_date, amount, mode, source)
				VALUES ($1, $2, $3, $4::date, $5::numeric, $6, 'xml_upload')`,
				customerID, invoiceID, receiptNo, date, amount, mode); err != nil {
				return rowFailed, &RowError{Row: ident, Reason: err.Error()}
			}
			return rowInserted, nil
		})

		finishUpload(ctx, w, pool, fileName, hash, "payments", sum, errs)
	}
}

// findXMLCustomer does the strict lookup of the XML pipeline: customer code
// first, then exact name. Unlike the loose pipeline it never creates.
func findXMLCustomer(ctx context.Context, q querier, code, name string) (string, error) {
	if code != "" {
		var id string
		err := q.QueryRow(ctx, `
			SELECT id FROM customers WHERE customer_code = $1`, code).Scan(&id)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return "", err
		}
	}
	if name != "" {
		c, found, err := findCustomerByName(ctx, q, name)
		if err != nil {
			return "", err
		}
		if found {
			return c.ID, nil
		}
	}
	if code == "" && name == "" {
		return "", errors.New("missing customer reference")
	}
	return "", fmt.Errorf("customer not found: %s%s", code, name)
}

func dupUploadRejected(ctx context.Context, w http.ResponseWriter, pool *pgxpool.Pool, hash string) bool {
	id, at, found, err := priorUpload(ctx, pool, hash)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "duplicate check failed")
		return true
	}
	if found {
		respondJSON(w, http.StatusConflict, map[string]interface{}{
			"success":     false,
			"error":       "this file has already been uploaded",
			"uploadLogId": id,
			"uploadedAt":  at.Format(time.RFC3339),
		})
		return true
	}
	return false
}

func finishUpload(ctx context.Context, w http.ResponseWriter, pool *pgxpool.Pool, fileName, hash, uploadType string, sum UploadSummary, errs []RowError) {
	logID, err := saveUploadLog(ctx, pool, fileName, hash, uploadType, sum, errs)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to record upload")
		return
	}
	logger.LogAudit(fmt.Sprintf("xml upload %s type=%s file=%s total=%d inserted=%d skipped=%d failed=%d",
		logID, uploadType, fileName, sum.Total, sum.Inserted, sum.Skipped, sum.Failed))
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":     sum.Failed == 0,
		"status":      deriveStatus(sum.Inserted, sum.Failed),
		"summary":     sum,
		"errors":      capErrors(errs, config.MaxResponseErrorsXML),
		"uploadLogId": logID,
	})
}

// GetUploadStatus reports stage completion and which stages are unlocked.
func GetUploadStatus(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := fetchUploadStatus(r.Context(), pool)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to load upload status")
			return
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"status":  st,
		})
	}
}

// UploadErrorReport streams the complete row-level error list of one upload
// as a CSV attachment. The inline API response only carries a capped sample.
func UploadErrorReport(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		uploadID := mux.Vars(r)["id"]
		if _, err := uuid.Parse(uploadID); err != nil {
			respondError(w, http.StatusBadRequest, "upload id must be a valid UUID")
			return
		}

		var fileName string
		var errLog []byte
		err := pool.QueryRow(ctx, `
			SELECT file_name, COALESCE(error_log, '[]'::jsonb) FROM upload_logs WHERE id = $1`,
			uploadID).Scan(&fileName, &errLog)
		if errors.Is(err, pgx.ErrNoRows) {
			respondError(w, http.StatusNotFound, "upload not found")
			return
		}
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to load upload")
			return
		}

		var rowErrs []RowError
		if err := json.Unmarshal(errLog, &rowErrs); err != nil {
			respondError(w, http.StatusInternalServerError, "error log is unreadable")
			return
		}

		w.Header().Set(contentType, "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "errors_"+uploadID+".csv"))
		writeErrorReportCSV(w, rowErrs)
	}
}

// writeErrorReportCSV renders the row-level diagnostics as Row,Field,Reason.
func writeErrorReportCSV(w io.Writer, rowErrs []RowError) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Row", "Field", "Reason"}); err != nil {
		return err
	}
	for _, e := range rowErrs {
		if err := cw.Write([]string{fmt.Sprintf("%v", e.Row), e.Field, e.Reason}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
