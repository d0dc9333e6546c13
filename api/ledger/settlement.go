package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"KhataLedger/internal/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// settlementWithinDue is the due-bound rule: a settlement may cover at most
// the invoice total minus payments already linked.
func settlementWithinDue(total, paid, amount decimal.Decimal) bool {
	return amount.LessThanOrEqual(total.Sub(paid))
}

type settlementRequest struct {
	InvoiceID   string `json:"invoiceId"`
	Amount      string `json:"amount"`
	PaymentDate string `json:"paymentDate"`
	PaymentMode string `json:"paymentMode"`
	ReferenceNo string `json:"referenceNo"`
}

// RecordSettlement posts a manual payment against one invoice. The amount is
// due-bound: a settlement can never push an invoice past fully paid, so the
// derived ledger cannot go negative through this endpoint.
func RecordSettlement(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req settlementRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if _, err := uuid.Parse(req.InvoiceID); err != nil {
			respondError(w, http.StatusBadRequest, "invoiceId must be a valid UUID")
			return
		}
		amount, err := decimal.NewFromString(req.Amount)
		if err != nil || !amount.IsPositive() {
			respondError(w, http.StatusBadRequest, "amount must be a positive number")
			return
		}
		paymentDate := time.Now().Format("2006-01-02")
		if req.PaymentDate != "" {
			parsed, ok := parseFlexibleDate(req.PaymentDate)
			if !ok {
				respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid paymentDate %q", req.PaymentDate))
				return
			}
			paymentDate = parsed
		}
		mode := req.PaymentMode
		if mode == "" {
			mode = "cash"
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to start transaction")
			return
		}
		defer tx.Rollback(ctx)

		var customerID, invoiceNo string
		var totalAmount decimal.Decimal
		err = tx.QueryRow(ctx, `
			SELECT customer_id, invoice_no, total_amount FROM invoices WHERE id = $1`,
			req.InvoiceID).Scan(&customerID, &invoiceNo, &totalAmount)
		if errors.Is(err, pgx.ErrNoRows) {
			respondError(w, http.StatusNotFound, "invoice not found")
			return
		}
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to load invoice")
			return
		}

		var totalPaid decimal.Decimal
		err = tx.QueryRow(ctx, `
			SELECT COALESCE(SUM(amount), 0) FROM payments WHERE invoice_id = $1`,
			req.InvoiceID).Scan(&totalPaid)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to total payments")
			return
		}

		remaining := totalAmount.Sub(totalPaid)
		if !settlementWithinDue(totalAmount, totalPaid, amount) {
			respondJSON(w, http.StatusBadRequest, map[string]interface{}{
				"success":      false,
				"error":        "settlement exceeds remaining due",
				"invoiceTotal": totalAmount.String(),
				"totalPaid":    totalPaid.String(),
				"remainingDue": remaining.String(),
			})
			return
		}

		var dup bool
		err = tx.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM payments
				WHERE invoice_id = $1 AND amount = $2::numeric AND payment_date = $3::date
			)`, req.InvoiceID, amount.String(), paymentDate).Scan(&dup)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "duplicate check failed")
			return
		}
		if dup {
			respondError(w, http.StatusBadRequest, "an identical settlement for this invoice and date already exists")
			return
		}

		receiptNo := req.ReferenceNo
		if receiptNo == "" {
			receiptNo = fmt.Sprintf("SETTLE-%d", time.Now().UnixMilli())
		}

		var paymentID string
		err = tx.QueryRow(ctx, `
			INSERT INTO payments (customer_id, invoice_id, receipt_no, payment_date, amount, mode, reference_no, source)
			VALUES ($1, $2, $3, $4::date, $5::numeric, $6, NULLIF($7, ''), 'manual_settlement')
			RETURNING id`,
			customerID, req.InvoiceID, receiptNo, paymentDate, amount.String(), mode, req.ReferenceNo).
			Scan(&paymentID)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to record settlement")
			return
		}
		if err := tx.Commit(ctx); err != nil {
			respondError(w, http.StatusInternalServerError, "failed to commit settlement")
			return
		}

		newPaid := totalPaid.Add(amount)
		newDue := totalAmount.Sub(newPaid)
		logger.LogAudit(fmt.Sprintf("settlement %s invoice=%s amount=%s remaining=%s",
			paymentID, invoiceNo, amount.String(), newDue.String()))
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"success":   true,
			"paymentId": paymentID,
			"invoiceNo": invoiceNo,
			"totalPaid": newPaid.String(),
			"dueAmount": newDue.String(),
			"status":    invoiceStatus(newDue, newPaid),
		})
	}
}
