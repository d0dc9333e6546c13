package ledger

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"KhataLedger/internal/config"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx so the lookup
// helpers work inside and outside a transaction.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// ReconcileResult aggregates the outcome of applying one validated batch.
type ReconcileResult struct {
	Processed  int
	Duplicates int
	Errors     []RowError
}

// Per-record outcomes reported by a chunk apply function.
const (
	rowInserted = "inserted"
	rowSkipped  = "skipped"
	rowFailed   = "failed"
)

// processInChunks is the shared commit engine of both pipelines: it runs
// apply once per record, committing one transaction per chunk of chunkSize
// records. Each record additionally runs inside a nested transaction so a
// single bad row rolls back alone. The strict XML pipeline uses large chunks;
// the loose spreadsheet pipeline runs with a chunk size of one, which is the
// per-row commit mode. A chunk that fails to open or commit marks its written
// rows as failed and moves on, so a started batch always reaches its
// terminal log row.
func processInChunks(ctx context.Context, pool *pgxpool.Pool, total, chunkSize int, apply func(ctx context.Context, tx pgx.Tx, i int) (string, *RowError)) (UploadSummary, []RowError) {
	if chunkSize < 1 {
		chunkSize = 1
	}
	sum := UploadSummary{Total: total}
	var errs []RowError
	for offset := 0; offset < total; offset += chunkSize {
		end := offset + chunkSize
		if end > total {
			end = total
		}
		tx, err := pool.Begin(ctx)
		if err != nil {
			sum.Failed += end - offset
			errs = append(errs, RowError{
				Row: chunkLabel(offset, end), Reason: "batch transaction failed: " + err.Error(),
			})
			continue
		}
		var chunk UploadSummary
		var chunkErrs []RowError
		for i := offset; i < end; i++ {
			nested, err := tx.Begin(ctx)
			if err != nil {
				chunk.Failed++
				chunkErrs = append(chunkErrs, RowError{Row: i + 1, Reason: err.Error()})
				continue
			}
			outcome, rowErr := apply(ctx, nested, i)
			if outcome == rowFailed {
				nested.Rollback(ctx)
			} else if err := nested.Commit(ctx); err != nil {
				outcome = rowFailed
				rowErr = &RowError{Row: i + 1, Reason: err.Error()}
			}
			switch outcome {
			case rowInserted:
				chunk.Inserted++
			case rowSkipped:
				chunk.Skipped++
			default:
				chunk.Failed++
			}
			if rowErr != nil {
				chunkErrs = append(chunkErrs, *rowErr)
			}
		}
		if err := tx.Commit(ctx); err != nil {
			chunk = failChunkWrites(chunk)
			chunkErrs = append(chunkErrs, RowError{
				Row: chunkLabel(offset, end), Reason: "batch commit failed: " + err.Error(),
			})
		}
		sum.Inserted += chunk.Inserted
		sum.Skipped += chunk.Skipped
		sum.Failed += chunk.Failed
		errs = append(errs, chunkErrs...)
	}
	return sum, errs
}

// failChunkWrites converts a chunk's written rows into failures after its
// enclosing transaction could not commit. Skips and failures were read-only
// determinations and stand as counted.
func failChunkWrites(chunk UploadSummary) UploadSummary {
	chunk.Failed += chunk.Inserted
	chunk.Inserted = 0
	return chunk
}

func chunkLabel(offset, end int) string {
	return fmt.Sprintf("rows %d-%d", offset+1, end)
}

// looseResult folds a chunk-engine outcome into the loose pipeline's shape.
func looseResult(sum UploadSummary, errs []RowError) ReconcileResult {
	return ReconcileResult{Processed: sum.Inserted, Duplicates: sum.Skipped, Errors: errs}
}

// placeholderMobile builds a synthetic, never-dialable mobile for customers
// auto-created from transaction rows. The prefix keeps it out of any real
// numbering plan and marks the record for later mobile verification.
func placeholderMobile() string {
	return fmt.Sprintf("%s%08d", config.PlaceholderMobilePrefix, rand.Intn(100000000))
}

func generatedReceiptNo() string {
	return fmt.Sprintf("PAY-%d-%04d", time.Now().UnixMilli(), rand.Intn(10000))
}

// findCustomerByName does the case-insensitive trimmed-name lookup both
// pipelines share.
func findCustomerByName(ctx context.Context, q querier, name string) (customerRef, bool, error) {
	var c customerRef
	err := q.QueryRow(ctx, `
		SELECT id, mobile, COALESCE(address, ''), locked
		FROM customers
		WHERE lower(trim(name)) = lower(trim($1))
		LIMIT 1`, name).Scan(&c.ID, &c.Mobile, &c.Address, &c.Locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return customerRef{}, false, nil
	}
	if err != nil {
		return customerRef{}, false, err
	}
	return c, true, nil
}

type customerRef struct {
	ID      string
	Mobile  string
	Address string
	Locked  bool
}

// resolveOrCreateCustomer implements the permissive-create strategy of the
// loose pipeline: a transaction row naming an unknown party gets a
// placeholder customer rather than a hard failure.
func resolveOrCreateCustomer(ctx context.Context, q querier, name, source string) (string, error) {
	c, found, err := findCustomerByName(ctx, q, name)
	if err != nil {
		return "", err
	}
	if found {
		return c.ID, nil
	}
	var id string
	err = q.QueryRow(ctx, `
		INSERT INTO customers (name, mobile, opening_balance, balance_type, source)
		VALUES (trim($1), $2, 0, $3, $4)
		RETURNING id`, name, placeholderMobile(), BalanceReceivable, source).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

// hasUsableMobile reports whether an existing stored mobile should survive an
// import. Placeholder and junk values lose to imported ones.
func hasUsableMobile(mobile string) bool {
	return len(mobile) > 5 && !strings.HasPrefix(mobile, config.PlaceholderMobilePrefix)
}

// ReconcileCustomersAuthoritative applies a Tally party import. Existing
// locked customers are duplicates of an earlier authoritative import and
// count as skips, never as failures.
func ReconcileCustomersAuthoritative(ctx context.Context, pool *pgxpool.Pool, rows []PartyRow, source string) ReconcileResult {
	sum, errs := processInChunks(ctx, pool, len(rows), config.LooseCommitBatchSize, func(ctx context.Context, tx pgx.Tx, i int) (string, *RowError) {
		row := rows[i]
		existing, found, err := findCustomerByName(ctx, tx, row.Name)
		if err != nil {
			log.Printf("party reconcile failed for %q: %v", row.Name, err)
			return rowFailed, &RowError{Row: row.Name, Reason: err.Error()}
		}
		switch {
		case !found:
			mobile := row.Mobile
			if mobile == "" {
				mobile = placeholderMobile()
			}
			_, err = tx.Exec(ctx, `
				INSERT INTO customers (name, mobile, address, opening_balance, balance_type, locked, source)
				VALUES (trim($1), $2, NULLIF($3, ''), $4::numeric, $5, true, $6)`,
				row.Name, mobile, row.Address, row.OpeningBalance, row.BalanceType, source)
			if err != nil {
				log.Printf("party reconcile failed for %q: %v", row.Name, err)
				return rowFailed, &RowError{Row: row.Name, Reason: err.Error()}
			}
			return rowInserted, nil
		case existing.Locked:
			return rowSkipped, nil
		default:
			mobile := existing.Mobile
			if !hasUsableMobile(mobile) && row.Mobile != "" {
				mobile = row.Mobile
			}
			_, err = tx.Exec(ctx, `
				UPDATE customers
				SET opening_balance = $1::numeric, balance_type = $2, locked = true,
				    source = $3, mobile = $4,
				    address = COALESCE(NULLIF(address, ''), NULLIF($5, ''))
				WHERE id = $6`,
				row.OpeningBalance, row.BalanceType, source, mobile, row.Address, existing.ID)
			if err != nil {
				log.Printf("party reconcile failed for %q: %v", row.Name, err)
				return rowFailed, &RowError{Row: row.Name, Reason: err.Error()}
			}
			return rowInserted, nil
		}
	})
	return looseResult(sum, errs)
}

// ReconcileCustomersMerge applies an auto-detected customer batch. Unlike the
// authoritative path it never locks and never touches populated fields: an
// import's empty value must not erase data we already hold.
func ReconcileCustomersMerge(ctx context.Context, pool *pgxpool.Pool, rows []PartyRow, source string) ReconcileResult {
	sum, errs := processInChunks(ctx, pool, len(rows), config.LooseCommitBatchSize, func(ctx context.Context, tx pgx.Tx, i int) (string, *RowError) {
		row := rows[i]
		existing, found, err := findCustomerByName(ctx, tx, row.Name)
		if err != nil {
			log.Printf("customer reconcile failed for %q: %v", row.Name, err)
			return rowFailed, &RowError{Row: row.Name, Reason: err.Error()}
		}
		if !found {
			mobile := row.Mobile
			if mobile == "" {
				mobile = placeholderMobile()
			}
			_, err = tx.Exec(ctx, `
				INSERT INTO customers (name, mobile, address, opening_balance, balance_type, source)
				VALUES (trim($1), $2, NULLIF($3, ''), $4::numeric, $5, $6)`,
				row.Name, mobile, row.Address, row.OpeningBalance, row.BalanceType, source)
			if err != nil {
				log.Printf("customer reconcile failed for %q: %v", row.Name, err)
				return rowFailed, &RowError{Row: row.Name, Reason: err.Error()}
			}
			return rowInserted, nil
		}
		mobile := existing.Mobile
		if !hasUsableMobile(mobile) && row.Mobile != "" {
			mobile = row.Mobile
		}
		_, err = tx.Exec(ctx, `
			UPDATE customers
			SET mobile = $1, address = COALESCE(NULLIF(address, ''), NULLIF($2, ''))
			WHERE id = $3`, mobile, row.Address, existing.ID)
		if err != nil {
			log.Printf("customer reconcile failed for %q: %v", row.Name, err)
			return rowFailed, &RowError{Row: row.Name, Reason: err.Error()}
		}
		return rowSkipped, nil
	})
	return looseResult(sum, errs)
}

// insertInvoiceIfNew inserts an invoice suppressing duplicates on the
// (customer, invoice number) natural key. Returns true when a row landed.
func insertInvoiceIfNew(ctx context.Context, q querier, customerID, invoiceNo, date, amount, source string) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM invoices WHERE customer_id = $1 AND invoice_no = $2)`,
		customerID, invoiceNo).Scan(&exists)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	_, err = q.Exec(ctx, `
		INSERT INTO invoices (customer_id, invoice_no, date, total_amount, status, source, locked)
		VALUES ($1, $2, $3::date, $4::numeric, 'unpaid', $5, true)`,
		customerID, invoiceNo, date, amount, source)
	if err != nil {
		return false, err
	}
	return true, nil
}

// ReconcileLedgerRows applies an auto-detected sales/ledger batch: sales and
// credit notes become invoices, payments and receipts become payments, all
// duplicate-suppressed.
func ReconcileLedgerRows(ctx context.Context, pool *pgxpool.Pool, rows []LedgerTxRow, source string) ReconcileResult {
	sum, errs := processInChunks(ctx, pool, len(rows), config.LooseCommitBatchSize, func(ctx context.Context, tx pgx.Tx, i int) (string, *RowError) {
		row := rows[i]
		customerID, err := resolveOrCreateCustomer(ctx, tx, row.CustomerName, "auto-created")
		if err != nil {
			log.Printf("ledger reconcile failed for %q: %v", row.CustomerName, err)
			return rowFailed, &RowError{Row: row.CustomerName, Reason: fmt.Sprintf("resolve customer: %v", err)}
		}

		switch row.Kind {
		case "sale", "credit_note":
			if row.RefNo == "" {
				return rowFailed, &RowError{
					Row: row.CustomerName, Field: "refNo", Reason: "missing voucher number for sale row",
				}
			}
			amount := row.Amount
			if row.Kind == "credit_note" {
				d, derr := decimal.NewFromString(row.Amount)
				if derr != nil {
					return rowFailed, &RowError{
						Row: row.CustomerName, Field: "amount", Reason: fmt.Sprintf("bad amount %q: %v", row.Amount, derr),
					}
				}
				amount = d.Neg().String()
			}
			inserted, err := insertInvoiceIfNew(ctx, tx, customerID, row.RefNo, row.Date, amount, source)
			if err != nil {
				log.Printf("ledger reconcile failed for %q: %v", row.CustomerName, err)
				return rowFailed, &RowError{Row: row.CustomerName, Reason: err.Error()}
			}
			if inserted {
				return rowInserted, nil
			}
			return rowSkipped, nil

		case "payment":
			mode := row.Mode
			if mode == "" {
				mode = "cash"
			}
			var exists bool
			if row.RefNo != "" {
				err = tx.QueryRow(ctx, `
					SELECT EXISTS (SELECT 1 FROM payments WHERE customer_id = $1 AND receipt_no = $2)`,
					customerID, row.RefNo).Scan(&exists)
			} else {
				// Fallback natural key for receiptless rows. Documented
				// weakness: two genuine same-day same-amount payments in
				// the same mode collapse into one.
				err = tx.QueryRow(ctx, `
					SELECT EXISTS (
						SELECT 1 FROM payments
						WHERE customer_id = $1 AND payment_date = $2::date
						  AND amount = $3::numeric AND mode = $4
					)`, customerID, row.Date, row.Amount, mode).Scan(&exists)
			}
			if err != nil {
				log.Printf("ledger reconcile failed for %q: %v", row.CustomerName, err)
				return rowFailed, &RowError{Row: row.CustomerName, Reason: err.Error()}
			}
			if exists {
				return rowSkipped, nil
			}
			receiptNo := row.RefNo
			if receiptNo == "" {
				receiptNo = generatedReceiptNo()
			}
			_, err = tx.Exec(ctx, `
				INSERT INTO payments (customer_id, receipt_no, payment_date, amount, mode, source)
				VALUES ($1, $2, $3::date, $4::numeric, $5, $6)`,
				customerID, receiptNo, row.Date, row.Amount, mode, source)
			if err != nil {
				log.Printf("ledger reconcile failed for %q: %v", row.CustomerName, err)
				return rowFailed, &RowError{Row: row.CustomerName, Reason: err.Error()}
			}
			return rowInserted, nil

		default:
			return rowFailed, &RowError{
				Row: row.CustomerName, Field: "txnType", Reason: fmt.Sprintf("unhandled transaction kind %q", row.Kind),
			}
		}
	})
	return looseResult(sum, errs)
}

// ReconcileInvoiceRows applies invoice-list batches. autoCreate selects the
// permissive-create strategy (staging fallback path) versus strict lookup
// (Tally sales import, where the party file is expected first).
func ReconcileInvoiceRows(ctx context.Context, pool *pgxpool.Pool, rows []InvoiceRow, source string, autoCreate bool) ReconcileResult {
	sum, errs := processInChunks(ctx, pool, len(rows), config.LooseCommitBatchSize, func(ctx context.Context, tx pgx.Tx, i int) (string, *RowError) {
		row := rows[i]
		var customerID string
		if autoCreate {
			if row.CustomerName == "" {
				return rowFailed, &RowError{
					Row: row.InvoiceNo, Field: "customerName", Reason: "missing party name",
				}
			}
			id, err := resolveOrCreateCustomer(ctx, tx, row.CustomerName, "auto-created")
			if err != nil {
				log.Printf("invoice reconcile failed for %q: %v", row.InvoiceNo, err)
				return rowFailed, &RowError{Row: row.InvoiceNo, Reason: err.Error()}
			}
			customerID = id
		} else {
			existing, found, err := findCustomerByName(ctx, tx, row.CustomerName)
			if err != nil {
				log.Printf("invoice reconcile failed for %q: %v", row.InvoiceNo, err)
				return rowFailed, &RowError{Row: row.InvoiceNo, Reason: err.Error()}
			}
			if !found {
				return rowFailed, &RowError{
					Row: row.InvoiceNo, Field: "customerName",
					Reason: fmt.Sprintf("customer not found: %s", row.CustomerName),
				}
			}
			customerID = existing.ID
		}

		inserted, err := insertInvoiceIfNew(ctx, tx, customerID, row.InvoiceNo, row.Date, row.TotalAmount, source)
		if err != nil {
			log.Printf("invoice reconcile failed for %q: %v", row.InvoiceNo, err)
			return rowFailed, &RowError{Row: row.InvoiceNo, Reason: err.Error()}
		}
		if inserted {
			return rowInserted, nil
		}
		return rowSkipped, nil
	})
	return looseResult(sum, errs)
}
