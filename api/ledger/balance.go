package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// ViewRow is one row of customer_ledger_view: an invoice as a debit or a
// payment as a credit. Rows arrive ordered by entry date then creation time.
type ViewRow struct {
	SourceID    string
	Type        string
	EntryDate   time.Time
	Description string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	CreatedAt   time.Time
}

// LedgerEntry is a ViewRow annotated with the running balance for display.
type LedgerEntry struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	EntryDate   string    `json:"entryDate"`
	ReferenceNo string    `json:"referenceNo"`
	Debit       string    `json:"debit"`
	Credit      string    `json:"credit"`
	Balance     string    `json:"balance"`
	CreatedAt   time.Time `json:"createdAt"`
}

// BalanceSummary is the point-in-time financial position for a window.
type BalanceSummary struct {
	OpeningBalance decimal.Decimal
	TotalPurchases decimal.Decimal
	TotalPaid      decimal.Decimal
	CurrentBalance decimal.Decimal
}

// MonthlyStat aggregates debits and credits per calendar month for charts.
type MonthlyStat struct {
	Month         string `json:"month"`
	MonthNum      int    `json:"-"`
	Year          int    `json:"-"`
	TotalPurchase string `json:"total_purchase"`
	TotalPaid     string `json:"total_paid"`
}

func inWindow(d time.Time, start, end *time.Time) bool {
	if start != nil && d.Before(*start) {
		return false
	}
	if end != nil && d.After(*end) {
		return false
	}
	return true
}

// CalculateBalances derives the opening balance, period totals, closing
// balance and per-row running balances for one customer from the complete
// chronological ledger view row set. This is the only balance path in the
// system: there is no stored running balance to drift out of sync.
//
// Opening = base opening balance + sum(debit-credit) strictly before start.
// Closing = opening + period debits - period credits. Returned entries cover
// only the window, oldest first; callers reverse for latest-first display.
func CalculateBalances(base decimal.Decimal, rows []ViewRow, start, end *time.Time) (BalanceSummary, []LedgerEntry) {
	opening := base
	purchases := decimal.Zero
	paid := decimal.Zero

	var entries []LedgerEntry
	running := decimal.Zero

	for _, row := range rows {
		if start != nil && row.EntryDate.Before(*start) {
			opening = opening.Add(row.Debit).Sub(row.Credit)
			continue
		}
		if !inWindow(row.EntryDate, start, end) {
			continue
		}
		purchases = purchases.Add(row.Debit)
		paid = paid.Add(row.Credit)
	}

	running = opening
	for _, row := range rows {
		if !inWindow(row.EntryDate, start, end) {
			continue
		}
		running = running.Add(row.Debit).Sub(row.Credit)
		entries = append(entries, LedgerEntry{
			ID:          row.SourceID,
			Type:        row.Type,
			EntryDate:   row.EntryDate.Format("2006-01-02"),
			ReferenceNo: row.Description,
			Debit:       row.Debit.String(),
			Credit:      row.Credit.String(),
			Balance:     running.String(),
			CreatedAt:   row.CreatedAt,
		})
	}

	summary := BalanceSummary{
		OpeningBalance: opening,
		TotalPurchases: purchases,
		TotalPaid:      paid,
		CurrentBalance: opening.Add(purchases).Sub(paid),
	}
	return summary, entries
}

// MonthlyTotals groups windowed rows into per-month purchase/paid totals,
// ordered chronologically.
func MonthlyTotals(rows []ViewRow, start, end *time.Time) []MonthlyStat {
	type key struct {
		year  int
		month time.Month
	}
	totals := make(map[key]*MonthlyStat)
	var order []key

	for _, row := range rows {
		if !inWindow(row.EntryDate, start, end) {
			continue
		}
		k := key{row.EntryDate.Year(), row.EntryDate.Month()}
		stat, ok := totals[k]
		if !ok {
			stat = &MonthlyStat{
				Month:         row.EntryDate.Format("Jan"),
				MonthNum:      int(k.month),
				Year:          k.year,
				TotalPurchase: "0",
				TotalPaid:     "0",
			}
			totals[k] = stat
			order = append(order, k)
		}
		purchase, _ := decimal.NewFromString(stat.TotalPurchase)
		paidAmt, _ := decimal.NewFromString(stat.TotalPaid)
		stat.TotalPurchase = purchase.Add(row.Debit).String()
		stat.TotalPaid = paidAmt.Add(row.Credit).String()
	}

	for i := 0; i < len(order); i++ {
		for j := i + 1; j < len(order); j++ {
			a, b := order[i], order[j]
			if b.year < a.year || (b.year == a.year && b.month < a.month) {
				order[i], order[j] = order[j], order[i]
			}
		}
	}

	stats := make([]MonthlyStat, 0, len(order))
	for _, k := range order {
		stats = append(stats, *totals[k])
	}
	return stats
}

// reverseEntries flips a ledger list in place for latest-first display.
func reverseEntries(entries []LedgerEntry) {
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
}

// resolvePeriod turns dashboard period parameters into an optional date
// window. Explicit start/end win; "monthly" is the current calendar month;
// "yearly" is the Indian fiscal year (April through March); "all" or empty
// means unbounded.
func resolvePeriod(period, startStr, endStr string, now time.Time) (*time.Time, *time.Time, error) {
	if startStr != "" && endStr != "" {
		start, err := time.Parse("2006-01-02", startStr)
		if err != nil {
			return nil, nil, err
		}
		end, err := time.Parse("2006-01-02", endStr)
		if err != nil {
			return nil, nil, err
		}
		return &start, &end, nil
	}
	switch period {
	case "monthly":
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		end := start.AddDate(0, 1, -1)
		return &start, &end, nil
	case "yearly":
		startYear := now.Year()
		if now.Month() < time.April {
			startYear--
		}
		start := time.Date(startYear, time.April, 1, 0, 0, 0, 0, time.UTC)
		end := time.Date(startYear+1, time.March, 31, 0, 0, 0, 0, time.UTC)
		return &start, &end, nil
	}
	return nil, nil, nil
}
