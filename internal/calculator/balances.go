package calculator

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/billbook/internal/models"
)

// BillForBalance represents a bill with the minimal information needed for balance calculations.
type BillForBalance struct {
	CustomerID string
	Date       time.Time
	GrandTotal decimal.Decimal
}

// PaymentForBalance represents a payment with the minimal information needed for balance calculations.
type PaymentForBalance struct {
	CustomerID string
	Date       time.Time
	Amount     decimal.Decimal
}

// monthIndex maps a date to a linear month counter in loc, so adjacent
// calendar months always differ by exactly one regardless of year.
func monthIndex(t time.Time, loc *time.Location) int {
	local := t.In(loc)
	return local.Year()*12 + int(local.Month()) - 1
}

func yearMonth(idx int) (int, int) {
	year := idx / 12
	month := idx % 12
	if month < 0 {
		month += 12
		year--
	}
	return year, month + 1
}

// CalculateMonthlyBalances computes a customer's running ledger, one bucket
// per calendar month, oldest first.
//
// Algorithm:
// - Bucket every bill and payment by (year, month) of its date in loc
// - Walk every month from the earliest to the latest bucket, gaps included
// - bills = Σ grand totals, payments = Σ amounts
// - opening = previous closing (0 for the first month), closing = opening + bills − payments
//
// With no activity at all the result is a single all-zero bucket for the
// month containing now. Inputs for other customers are ignored.
func CalculateMonthlyBalances(customerID string, bills []BillForBalance, payments []PaymentForBalance, loc *time.Location, now time.Time) []models.MonthlyBalance {
	if loc == nil {
		loc = time.UTC
	}

	billed := make(map[int]decimal.Decimal)
	paid := make(map[int]decimal.Decimal)
	first, last := 0, 0
	seen := false

	track := func(idx int) {
		if !seen {
			first, last, seen = idx, idx, true
			return
		}
		if idx < first {
			first = idx
		}
		if idx > last {
			last = idx
		}
	}

	for _, b := range bills {
		if b.CustomerID != customerID {
			continue
		}
		idx := monthIndex(b.Date, loc)
		billed[idx] = billed[idx].Add(b.GrandTotal)
		track(idx)
	}
	for _, p := range payments {
		if p.CustomerID != customerID {
			continue
		}
		idx := monthIndex(p.Date, loc)
		paid[idx] = paid[idx].Add(p.Amount)
		track(idx)
	}

	if !seen {
		year, month := yearMonth(monthIndex(now, loc))
		return []models.MonthlyBalance{{
			CustomerID:     customerID,
			Year:           year,
			Month:          month,
			OpeningBalance: decimal.Zero,
			Bills:          decimal.Zero,
			Payments:       decimal.Zero,
			ClosingBalance: decimal.Zero,
		}}
	}

	balances := make([]models.MonthlyBalance, 0, last-first+1)
	opening := decimal.Zero
	for idx := first; idx <= last; idx++ {
		year, month := yearMonth(idx)
		closing := opening.Add(billed[idx]).Sub(paid[idx])
		balances = append(balances, models.MonthlyBalance{
			CustomerID:     customerID,
			Year:           year,
			Month:          month,
			OpeningBalance: opening,
			Bills:          billed[idx],
			Payments:       paid[idx],
			ClosingBalance: closing,
		})
		opening = closing
	}

	return balances
}

// CustomerForBalance is the minimal customer view needed for analytics.
type CustomerForBalance struct {
	ID   string
	Name string
}

// CalculateAnalytics aggregates billed and received totals across the whole
// book. Per-customer rows are sorted by outstanding amount, largest first,
// ties broken by name then id so the output is deterministic.
func CalculateAnalytics(customers []CustomerForBalance, bills []BillForBalance, payments []PaymentForBalance, itemCount int) models.BusinessAnalytics {
	rows := make(map[string]*models.CustomerOutstanding, len(customers))
	for _, c := range customers {
		rows[c.ID] = &models.CustomerOutstanding{
			CustomerID:   c.ID,
			CustomerName: c.Name,
		}
	}

	summary := models.BusinessAnalytics{
		Customers: len(customers),
		Bills:     len(bills),
		Payments:  len(payments),
		Items:     itemCount,
	}

	for _, b := range bills {
		summary.TotalBilled = summary.TotalBilled.Add(b.GrandTotal)
		if row, ok := rows[b.CustomerID]; ok {
			row.Billed = row.Billed.Add(b.GrandTotal)
		}
	}
	for _, p := range payments {
		summary.TotalReceived = summary.TotalReceived.Add(p.Amount)
		if row, ok := rows[p.CustomerID]; ok {
			row.Paid = row.Paid.Add(p.Amount)
		}
	}
	summary.Outstanding = summary.TotalBilled.Sub(summary.TotalReceived)

	summary.ByCustomer = make([]models.CustomerOutstanding, 0, len(rows))
	for _, row := range rows {
		row.Outstanding = row.Billed.Sub(row.Paid)
		summary.ByCustomer = append(summary.ByCustomer, *row)
	}
	sort.Slice(summary.ByCustomer, func(i, j int) bool {
		a, b := summary.ByCustomer[i], summary.ByCustomer[j]
		if cmp := a.Outstanding.Cmp(b.Outstanding); cmp != 0 {
			return cmp > 0
		}
		if a.CustomerName != b.CustomerName {
			return a.CustomerName < b.CustomerName
		}
		return a.CustomerID < b.CustomerID
	})

	return summary
}
