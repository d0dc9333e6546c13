package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"KhataLedger/internal/config"
	"KhataLedger/internal/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
)

type FixConfig struct {
	Schedule  string
	BatchSize int
	TimeZone  string
}

func NewDefaultFixConfig() *FixConfig {
	return &FixConfig{
		Schedule:  config.DefaultFixSchedule,
		BatchSize: config.FixBatchSize,
		TimeZone:  config.DefaultTimeZone,
	}
}

// RunLedgerIntegrityScheduler schedules the nightly integrity fix.
func RunLedgerIntegrityScheduler(cfg *FixConfig, db *pgxpool.Pool) error {
	if cfg.Schedule == "" {
		cfg.Schedule = config.DefaultFixSchedule
	}
	if cfg.TimeZone == "" {
		cfg.TimeZone = config.DefaultTimeZone
	}

	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		loc = time.UTC
	}

	c := cron.New(cron.WithLocation(loc))
	_, err = c.AddFunc(cfg.Schedule, func() {
		if err := RunLedgerIntegrityFix(db, cfg.BatchSize); err != nil {
			log.Printf("[IntegrityFix] run failed: %v", err)
		}
	})
	if err != nil {
		return err
	}
	c.Start()
	return nil
}

// RunLedgerIntegrityFix reconciles payment provenance: any invoice marked
// paid whose linked payments sum to less than its total gets an adjustment
// payment for the shortfall, so the derived ledger agrees with the stored
// status. Processed in batches to keep transactions short.
func RunLedgerIntegrityFix(db *pgxpool.Pool, batchSize int) error {
	if batchSize <= 0 {
		batchSize = config.FixBatchSize
	}
	ctx := context.Background()
	fixed := 0

	for {
		rows, err := db.Query(ctx, `
			SELECT i.id, i.customer_id, i.invoice_no, i.date,
			       i.total_amount - COALESCE(SUM(p.amount), 0) AS shortfall
			FROM invoices i
			LEFT JOIN payments p ON p.invoice_id = i.id
			WHERE i.status = 'paid'
			GROUP BY i.id
			HAVING i.total_amount - COALESCE(SUM(p.amount), 0) > 0
			LIMIT $1`, batchSize)
		if err != nil {
			return err
		}

		type shortfallRow struct {
			ID         string
			CustomerID string
			InvoiceNo  string
			Date       time.Time
			Shortfall  decimal.Decimal
		}
		var batch []shortfallRow
		for rows.Next() {
			var r shortfallRow
			if err := rows.Scan(&r.ID, &r.CustomerID, &r.InvoiceNo, &r.Date, &r.Shortfall); err != nil {
				rows.Close()
				return err
			}
			batch = append(batch, r)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		if len(batch) == 0 {
			break
		}

		batchFixed := 0
		for _, r := range batch {
			tag, err := db.Exec(ctx, `
				INSERT INTO payments (customer_id, invoice_id, receipt_no, payment_date, amount, mode, source)
				VALUES ($1, $2, $3, $4::date, $5::numeric, 'adjustment', 'system-fix')
				ON CONFLICT (customer_id, receipt_no) DO NOTHING`,
				r.CustomerID, r.ID, "FIX-"+r.InvoiceNo, r.Date.Format("2006-01-02"), r.Shortfall.String())
			if err != nil {
				log.Printf("[IntegrityFix] failed for invoice %s: %v", r.InvoiceNo, err)
				continue
			}
			batchFixed += int(tag.RowsAffected())
		}
		fixed += batchFixed
		// A batch that changed nothing would repeat forever; stop here.
		if len(batch) < batchSize || batchFixed == 0 {
			break
		}
	}

	if fixed > 0 {
		logger.LogAudit(fmt.Sprintf("[IntegrityFix] inserted %d adjustment payments", fixed))
	}
	return nil
}
