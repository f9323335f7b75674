package calculator

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/billbook/internal/models"
)

func day(year int, month time.Month, dd int) time.Time {
	return time.Date(year, month, dd, 12, 0, 0, 0, time.UTC)
}

func assertBucket(t *testing.T, got models.MonthlyBalance, year, month int, opening, bills, payments, closing string) {
	t.Helper()
	assert.Equal(t, year, got.Year, "year")
	assert.Equal(t, month, got.Month, "month")
	assert.True(t, got.OpeningBalance.Equal(d(opening)), "%d-%02d opening = %s, want %s", year, month, got.OpeningBalance, opening)
	assert.True(t, got.Bills.Equal(d(bills)), "%d-%02d bills = %s, want %s", year, month, got.Bills, bills)
	assert.True(t, got.Payments.Equal(d(payments)), "%d-%02d payments = %s, want %s", year, month, got.Payments, payments)
	assert.True(t, got.ClosingBalance.Equal(d(closing)), "%d-%02d closing = %s, want %s", year, month, got.ClosingBalance, closing)
}

func assertContiguous(t *testing.T, balances []models.MonthlyBalance) {
	t.Helper()
	for i, b := range balances {
		want := b.OpeningBalance.Add(b.Bills).Sub(b.Payments)
		assert.True(t, b.ClosingBalance.Equal(want), "bucket %d closing mismatch", i)
		if i == 0 {
			assert.True(t, b.OpeningBalance.IsZero(), "first bucket must open at 0")
			continue
		}
		prev := balances[i-1]
		assert.True(t, b.OpeningBalance.Equal(prev.ClosingBalance), "bucket %d does not carry forward", i)
		assert.Equal(t, prev.Year*12+prev.Month+1, b.Year*12+b.Month, "bucket %d is not the next month", i)
	}
}

func TestCalculateMonthlyBalances(t *testing.T) {
	now := day(2025, time.June, 1)

	t.Run("bill then payment in the next month", func(t *testing.T) {
		bills := []BillForBalance{{CustomerID: "A", Date: day(2024, time.January, 15), GrandTotal: d("1000")}}
		payments := []PaymentForBalance{{CustomerID: "A", Date: day(2024, time.February, 5), Amount: d("400")}}

		got := CalculateMonthlyBalances("A", bills, payments, time.UTC, now)

		require.Len(t, got, 2)
		assertBucket(t, got[0], 2024, 1, "0", "1000", "0", "1000")
		assertBucket(t, got[1], 2024, 2, "1000", "0", "400", "600")
	})

	t.Run("gaps are filled across a year boundary", func(t *testing.T) {
		bills := []BillForBalance{
			{CustomerID: "A", Date: day(2023, time.November, 30), GrandTotal: d("250")},
			{CustomerID: "A", Date: day(2024, time.March, 1), GrandTotal: d("100")},
		}
		payments := []PaymentForBalance{
			{CustomerID: "A", Date: day(2024, time.January, 10), Amount: d("50")},
		}

		got := CalculateMonthlyBalances("A", bills, payments, time.UTC, now)

		require.Len(t, got, 5)
		assertBucket(t, got[0], 2023, 11, "0", "250", "0", "250")
		assertBucket(t, got[1], 2023, 12, "250", "0", "0", "250")
		assertBucket(t, got[2], 2024, 1, "250", "0", "50", "200")
		assertBucket(t, got[3], 2024, 2, "200", "0", "0", "200")
		assertBucket(t, got[4], 2024, 3, "200", "100", "0", "300")
		assertContiguous(t, got)
	})

	t.Run("multi-year span stays aligned", func(t *testing.T) {
		bills := []BillForBalance{
			{CustomerID: "A", Date: day(2019, time.December, 31), GrandTotal: d("10")},
			{CustomerID: "A", Date: day(2024, time.January, 1), GrandTotal: d("20")},
		}

		got := CalculateMonthlyBalances("A", bills, nil, time.UTC, now)

		require.Len(t, got, 4*12+2)
		assertBucket(t, got[0], 2019, 12, "0", "10", "0", "10")
		assertBucket(t, got[len(got)-1], 2024, 1, "10", "20", "0", "30")
		assertContiguous(t, got)
	})

	t.Run("same month sums and other customers are ignored", func(t *testing.T) {
		bills := []BillForBalance{
			{CustomerID: "A", Date: day(2024, time.May, 1), GrandTotal: d("10.25")},
			{CustomerID: "A", Date: day(2024, time.May, 31), GrandTotal: d("4.75")},
			{CustomerID: "B", Date: day(2020, time.May, 31), GrandTotal: d("999")},
		}
		payments := []PaymentForBalance{
			{CustomerID: "A", Date: day(2024, time.May, 20), Amount: d("20")},
		}

		got := CalculateMonthlyBalances("A", bills, payments, time.UTC, now)

		require.Len(t, got, 1)
		assertBucket(t, got[0], 2024, 5, "0", "15", "20", "-5")
	})

	t.Run("no activity yields current month bucket", func(t *testing.T) {
		got := CalculateMonthlyBalances("A", nil, nil, time.UTC, now)

		require.Len(t, got, 1)
		assertBucket(t, got[0], 2025, 6, "0", "0", "0", "0")
	})

	t.Run("month boundary follows the reference time zone", func(t *testing.T) {
		// 2024-01-31 20:00 UTC is already February 1st in Kolkata.
		loc := time.FixedZone("IST", 5*3600+1800)
		bills := []BillForBalance{{CustomerID: "A", Date: time.Date(2024, time.January, 31, 20, 0, 0, 0, time.UTC), GrandTotal: d("1")}}

		utc := CalculateMonthlyBalances("A", bills, nil, time.UTC, now)
		ist := CalculateMonthlyBalances("A", bills, nil, loc, now)

		assert.Equal(t, 1, utc[0].Month)
		assert.Equal(t, 2, ist[0].Month)
	})

	t.Run("idempotent output", func(t *testing.T) {
		bills := []BillForBalance{
			{CustomerID: "A", Date: day(2024, time.January, 15), GrandTotal: d("1000")},
			{CustomerID: "A", Date: day(2024, time.April, 2), GrandTotal: d("12.5")},
		}
		payments := []PaymentForBalance{{CustomerID: "A", Date: day(2024, time.February, 5), Amount: d("400")}}

		first, err := json.Marshal(CalculateMonthlyBalances("A", bills, payments, time.UTC, now))
		require.NoError(t, err)
		second, err := json.Marshal(CalculateMonthlyBalances("A", bills, payments, time.UTC, now))
		require.NoError(t, err)

		assert.Equal(t, string(first), string(second))
	})
}

func TestCalculateAnalytics(t *testing.T) {
	customers := []CustomerForBalance{{ID: "a", Name: "Acme"}, {ID: "b", Name: "Bolt"}, {ID: "c", Name: "Corp"}}
	bills := []BillForBalance{
		{CustomerID: "a", GrandTotal: d("100")},
		{CustomerID: "b", GrandTotal: d("300")},
	}
	payments := []PaymentForBalance{
		{CustomerID: "b", Amount: d("50")},
		{CustomerID: "a", Amount: d("100")},
	}

	got := CalculateAnalytics(customers, bills, payments, 4)

	assert.Equal(t, 3, got.Customers)
	assert.Equal(t, 2, got.Bills)
	assert.Equal(t, 2, got.Payments)
	assert.Equal(t, 4, got.Items)
	assert.True(t, got.TotalBilled.Equal(decimal.NewFromInt(400)))
	assert.True(t, got.TotalReceived.Equal(decimal.NewFromInt(150)))
	assert.True(t, got.Outstanding.Equal(decimal.NewFromInt(250)))

	require.Len(t, got.ByCustomer, 3)
	assert.Equal(t, "b", got.ByCustomer[0].CustomerID)
	assert.True(t, got.ByCustomer[0].Outstanding.Equal(decimal.NewFromInt(250)))
	// a and c both owe nothing; ordered by name
	assert.Equal(t, "a", got.ByCustomer[1].CustomerID)
	assert.Equal(t, "c", got.ByCustomer[2].CustomerID)
}
