package calculator

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/billbook/internal/models"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCalculateBill(t *testing.T) {
	tests := []struct {
		name         string
		lines        []Line
		discount     decimal.Decimal
		wantErr      error
		validateFunc func(t *testing.T, totals *BillTotals)
	}{
		{
			name: "two lines with discount",
			lines: []Line{
				{ItemName: "Milk", Quantity: d("2"), Rate: d("45.50")},
				{ItemName: " Bread ", Quantity: d("1"), Rate: d("40")},
			},
			discount: d("11"),
			validateFunc: func(t *testing.T, totals *BillTotals) {
				// Milk: 2 × 45.50 = 91, Bread: 40, subtotal 131, grand 120
				assert.True(t, totals.Lines[0].Total.Equal(d("91")), "milk total = %s", totals.Lines[0].Total)
				assert.Equal(t, "Bread", totals.Lines[1].ItemName)
				assert.True(t, totals.Subtotal.Equal(d("131")), "subtotal = %s", totals.Subtotal)
				assert.True(t, totals.GrandTotal.Equal(d("120")), "grand total = %s", totals.GrandTotal)
			},
		},
		{
			name:     "fractional quantity keeps exact decimals",
			lines:    []Line{{ItemName: "Rice", Quantity: d("0.3"), Rate: d("0.1")}},
			discount: decimal.Zero,
			validateFunc: func(t *testing.T, totals *BillTotals) {
				assert.Equal(t, "0.03", totals.GrandTotal.String())
			},
		},
		{
			name:     "no lines",
			lines:    nil,
			discount: decimal.Zero,
			wantErr:  models.ErrInvalidItem,
		},
		{
			name:     "blank name",
			lines:    []Line{{ItemName: "   ", Quantity: d("1"), Rate: d("1")}},
			discount: decimal.Zero,
			wantErr:  models.ErrInvalidItem,
		},
		{
			name:     "zero quantity",
			lines:    []Line{{ItemName: "Tea", Quantity: d("0"), Rate: d("10")}},
			discount: decimal.Zero,
			wantErr:  models.ErrInvalidItem,
		},
		{
			name:     "negative rate",
			lines:    []Line{{ItemName: "Tea", Quantity: d("1"), Rate: d("-10")}},
			discount: decimal.Zero,
			wantErr:  models.ErrInvalidItem,
		},
		{
			name:     "negative discount",
			lines:    []Line{{ItemName: "Tea", Quantity: d("1"), Rate: d("10")}},
			discount: d("-1"),
			wantErr:  models.ErrInvalidAmount,
		},
		{
			name:     "discount above subtotal",
			lines:    []Line{{ItemName: "Tea", Quantity: d("1"), Rate: d("10")}},
			discount: d("10.01"),
			wantErr:  models.ErrInvalidAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			totals, err := CalculateBill(tt.lines, tt.discount)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v, want %v", err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			if tt.validateFunc != nil {
				tt.validateFunc(t, totals)
			}
		})
	}
}
