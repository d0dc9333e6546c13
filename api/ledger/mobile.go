package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"KhataLedger/internal/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type mobileVerifyRequest struct {
	CustomerID string `json:"customerId"`
	Mobile     string `json:"mobile"`
}

// VerifyMobile replaces a placeholder or stale mobile with a verified one.
// A number already verified on another customer is refused; the link request
// row keeps an audit trail either way.
func VerifyMobile(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req mobileVerifyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if _, err := uuid.Parse(req.CustomerID); err != nil {
			respondError(w, http.StatusBadRequest, "customerId must be a valid UUID")
			return
		}
		mobile := normalizeMobile(req.Mobile)
		if mobile == "" {
			respondError(w, http.StatusBadRequest, "mobile must contain a valid 10-digit number")
			return
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to start transaction")
			return
		}
		defer tx.Rollback(ctx)

		var name string
		err = tx.QueryRow(ctx, `SELECT name FROM customers WHERE id = $1`, req.CustomerID).Scan(&name)
		if errors.Is(err, pgx.ErrNoRows) {
			respondError(w, http.StatusNotFound, "customer not found")
			return
		}
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to load customer")
			return
		}

		var claimedBy string
		err = tx.QueryRow(ctx, `
			SELECT id FROM customers
			WHERE mobile = $1 AND mobile_verified = true AND id <> $2
			LIMIT 1`, mobile, req.CustomerID).Scan(&claimedBy)
		if err == nil {
			_, _ = tx.Exec(ctx, `
				INSERT INTO mobile_link_requests (customer_id, mobile, status)
				VALUES ($1, $2, 'rejected')`, req.CustomerID, mobile)
			tx.Commit(ctx)
			respondError(w, http.StatusConflict, "this mobile is already verified on another customer")
			return
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			respondError(w, http.StatusInternalServerError, "mobile check failed")
			return
		}

		if _, err := tx.Exec(ctx, `
			UPDATE customers SET mobile = $1, mobile_verified = true WHERE id = $2`,
			mobile, req.CustomerID); err != nil {
			respondError(w, http.StatusInternalServerError, "failed to update customer")
			return
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO mobile_link_requests (customer_id, mobile, status)
			VALUES ($1, $2, 'verified')`, req.CustomerID, mobile); err != nil {
			respondError(w, http.StatusInternalServerError, "failed to record link request")
			return
		}
		if err := tx.Commit(ctx); err != nil {
			respondError(w, http.StatusInternalServerError, "failed to commit")
			return
		}

		logger.LogAudit(fmt.Sprintf("mobile verified customer=%s name=%s", req.CustomerID, name))
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"success":  true,
			"mobile":   mobile,
			"verified": true,
		})
	}
}
