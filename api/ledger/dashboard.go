package ledger

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"KhataLedger/internal/config"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type customerProfile struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Mobile         string `json:"mobile"`
	CustomerCode   string `json:"customerCode,omitempty"`
	OpeningBalance string `json:"openingBalance"`
	BalanceType    string `json:"balanceType"`
	Address        string `json:"address,omitempty"`
	MobileVerified bool   `json:"mobileVerified"`
}

type invoiceView struct {
	ID          string `json:"id"`
	InvoiceNo   string `json:"invoiceNo"`
	Date        string `json:"date"`
	TotalAmount string `json:"totalAmount"`
	PaidAmount  string `json:"paidAmount"`
	DueAmount   string `json:"dueAmount"`
	Status      string `json:"status"`
	Source      string `json:"source,omitempty"`
}

type paymentView struct {
	ID          string `json:"id"`
	ReceiptNo   string `json:"receiptNo"`
	InvoiceID   string `json:"invoiceId,omitempty"`
	PaymentDate string `json:"paymentDate"`
	Amount      string `json:"amount"`
	Mode        string `json:"mode"`
	ReferenceNo string `json:"referenceNo,omitempty"`
	Source      string `json:"source,omitempty"`
}

// invoiceStatus derives paid/partial/unpaid from reconciled amounts at read
// time. The stored status column is informational and never drives this.
func invoiceStatus(due, paid decimal.Decimal) string {
	if due.LessThanOrEqual(decimal.Zero) {
		return "paid"
	}
	if paid.IsPositive() {
		return "partial"
	}
	return "unpaid"
}

// fetchLedgerRows loads the complete ledger view for one customer in
// chronological order. All balance math derives from these rows.
func fetchLedgerRows(ctx context.Context, pool *pgxpool.Pool, customerID string) ([]ViewRow, error) {
	rows, err := pool.Query(ctx, `
		SELECT source_id, type, entry_date, debit, credit, description, created_at
		FROM customer_ledger_view
		WHERE customer_id = $1
		ORDER BY entry_date ASC, created_at ASC`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ViewRow
	for rows.Next() {
		var r ViewRow
		var debit, credit decimal.Decimal
		if err := rows.Scan(&r.SourceID, &r.Type, &r.EntryDate, &debit, &credit, &r.Description, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Debit = debit
		r.Credit = credit
		out = append(out, r)
	}
	return out, rows.Err()
}

// Dashboard returns the customer profile, windowed ledger with running
// balances, per-invoice reconciliation, payments and the summary block.
func Dashboard(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		customerID := r.URL.Query().Get("customer_id")
		if customerID == "" {
			respondError(w, http.StatusBadRequest, "customer_id is required")
			return
		}
		if _, err := uuid.Parse(customerID); err != nil {
			respondError(w, http.StatusBadRequest, "customer_id must be a valid UUID")
			return
		}

		start, end, err := resolvePeriod(
			r.URL.Query().Get("period"),
			r.URL.Query().Get("start_date"),
			r.URL.Query().Get("end_date"),
			time.Now(),
		)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid start_date/end_date, expected YYYY-MM-DD")
			return
		}

		var page, pageSize int
		if p := r.URL.Query().Get("page"); p != "" {
			page, _ = strconv.Atoi(p)
			if page < 1 {
				page = 1
			}
		}
		if ps := r.URL.Query().Get("pageSize"); ps != "" {
			pageSize, _ = strconv.Atoi(ps)
			if pageSize < 1 {
				pageSize = 1
			}
			if pageSize > config.MaxPageSize {
				pageSize = config.MaxPageSize
			}
		}

		var cust customerProfile
		var code, address *string
		var openingBalance decimal.Decimal
		err = pool.QueryRow(ctx, `
			SELECT id, name, mobile, customer_code, opening_balance, balance_type, address, mobile_verified
			FROM customers WHERE id = $1`, customerID).
			Scan(&cust.ID, &cust.Name, &cust.Mobile, &code, &openingBalance, &cust.BalanceType, &address, &cust.MobileVerified)
		if err != nil {
			respondError(w, http.StatusNotFound, "customer not found")
			return
		}
		if code != nil {
			cust.CustomerCode = *code
		}
		if address != nil {
			cust.Address = *address
		}
		cust.OpeningBalance = openingBalance.String()

		viewRows, err := fetchLedgerRows(ctx, pool, customerID)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to load ledger")
			return
		}

		summary, entries := CalculateBalances(openingBalance, viewRows, start, end)
		if len(entries) > config.DashboardLedgerLimit {
			entries = entries[len(entries)-config.DashboardLedgerLimit:]
		}
		reverseEntries(entries)

		monthly := MonthlyTotals(viewRows, start, end)

		invoices, totalInvoices, err := fetchInvoices(ctx, pool, customerID, start, end, page, pageSize)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to load invoices")
			return
		}
		payments, err := fetchPayments(ctx, pool, customerID, start, end, page, pageSize)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to load payments")
			return
		}

		resp := map[string]interface{}{
			"customer": cust,
			"ledger":   entries,
			"invoices": invoices,
			"payments": payments,
			"summary": map[string]string{
				"openingBalance": summary.OpeningBalance.String(),
				"totalPurchases": summary.TotalPurchases.String(),
				"totalPaid":      summary.TotalPaid.String(),
				"currentBalance": summary.CurrentBalance.String(),
			},
			"monthly": monthly,
			"period": map[string]interface{}{
				"type":      orDefault(r.URL.Query().Get("period"), "all"),
				"startDate": fmtDatePtr(start),
				"endDate":   fmtDatePtr(end),
			},
		}
		if page > 0 && pageSize > 0 {
			totalPages := (totalInvoices + pageSize - 1) / pageSize
			resp["pagination"] = map[string]int{
				"page":       page,
				"pageSize":   pageSize,
				"total":      totalInvoices,
				"totalPages": totalPages,
			}
		}
		respondJSON(w, http.StatusOK, resp)
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func fmtDatePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Format("2006-01-02")
}

func dateWindowClause(column string, start, end *time.Time, args *[]any) string {
	clause := ""
	if start != nil {
		*args = append(*args, start.Format("2006-01-02"))
		clause += fmt.Sprintf(" AND %s >= $%d::date", column, len(*args))
	}
	if end != nil {
		*args = append(*args, end.Format("2006-01-02"))
		clause += fmt.Sprintf(" AND %s <= $%d::date", column, len(*args))
	}
	return clause
}

// fetchInvoices returns windowed invoices with paid/due computed by summing
// linked payments at call time, never from a cached column.
func fetchInvoices(ctx context.Context, pool *pgxpool.Pool, customerID string, start, end *time.Time, page, pageSize int) ([]invoiceView, int, error) {
	args := []any{customerID}
	where := "i.customer_id = $1" + dateWindowClause("i.date", start, end, &args)

	total := 0
	if page > 0 && pageSize > 0 {
		if err := pool.QueryRow(ctx,
			"SELECT COUNT(*) FROM invoices i WHERE "+where, args...).Scan(&total); err != nil {
			return nil, 0, err
		}
	}

	query := `
		SELECT i.id, i.invoice_no, i.date, i.total_amount,
		       COALESCE(SUM(p.amount), 0) AS paid_amount,
		       COALESCE(i.source, '')
		FROM invoices i
		LEFT JOIN payments p ON p.invoice_id = i.id
		WHERE ` + where + `
		GROUP BY i.id
		ORDER BY i.date DESC, i.created_at DESC`
	if page > 0 && pageSize > 0 {
		args = append(args, pageSize, (page-1)*pageSize)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []invoiceView
	for rows.Next() {
		var v invoiceView
		var date time.Time
		var totalAmt, paidAmt decimal.Decimal
		if err := rows.Scan(&v.ID, &v.InvoiceNo, &date, &totalAmt, &paidAmt, &v.Source); err != nil {
			return nil, 0, err
		}
		due := totalAmt.Sub(paidAmt)
		v.Date = date.Format("2006-01-02")
		v.TotalAmount = totalAmt.String()
		v.PaidAmount = paidAmt.String()
		v.DueAmount = due.String()
		v.Status = invoiceStatus(due, paidAmt)
		out = append(out, v)
	}
	return out, total, rows.Err()
}

func fetchPayments(ctx context.Context, pool *pgxpool.Pool, customerID string, start, end *time.Time, page, pageSize int) ([]paymentView, error) {
	args := []any{customerID}
	where := "customer_id = $1" + dateWindowClause("payment_date", start, end, &args)

	query := `
		SELECT id, receipt_no, COALESCE(invoice_id::text, ''), payment_date, amount, mode,
		       COALESCE(reference_no, ''), COALESCE(source, '')
		FROM payments
		WHERE ` + where + `
		ORDER BY payment_date DESC, created_at DESC`
	if page > 0 && pageSize > 0 {
		args = append(args, pageSize, (page-1)*pageSize)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []paymentView
	for rows.Next() {
		var v paymentView
		var date time.Time
		var amount decimal.Decimal
		if err := rows.Scan(&v.ID, &v.ReceiptNo, &v.InvoiceID, &date, &amount, &v.Mode, &v.ReferenceNo, &v.Source); err != nil {
			return nil, err
		}
		v.PaymentDate = date.Format("2006-01-02")
		v.Amount = amount.String()
		out = append(out, v)
	}
	return out, rows.Err()
}
