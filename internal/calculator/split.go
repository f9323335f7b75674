package calculator

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mmynk/billbook/internal/models"
)

// Line represents a single bill line before totals are computed.
type Line struct {
	ItemID   string
	ItemName string
	Quantity decimal.Decimal
	Rate     decimal.Decimal
}

// BillTotals is the result of pricing a bill.
type BillTotals struct {
	Lines      []models.LineItem
	Subtotal   decimal.Decimal
	Discount   decimal.Decimal
	GrandTotal decimal.Decimal
}

// CalculateBill validates every line and computes line totals, subtotal and
// grand total.
// Based on: total = quantity × rate, grand_total = Σ total − discount.
// Line IDs are left empty; the caller assigns them.
func CalculateBill(lines []Line, discount decimal.Decimal) (*BillTotals, error) {
	if len(lines) == 0 {
		return nil, models.Invalid(models.ErrInvalidItem, "items", "bill must have at least one item")
	}
	if discount.IsNegative() {
		return nil, models.Invalid(models.ErrInvalidAmount, "discount", "cannot be negative (got %s)", discount)
	}

	totals := &BillTotals{
		Lines:    make([]models.LineItem, len(lines)),
		Subtotal: decimal.Zero,
		Discount: discount,
	}

	for i, line := range lines {
		name := strings.TrimSpace(line.ItemName)
		if name == "" {
			return nil, models.Invalid(models.ErrInvalidItem, "itemName", "line %d has a blank name", i+1)
		}
		if !line.Quantity.IsPositive() {
			return nil, models.Invalid(models.ErrInvalidItem, "quantity", "line %d (%s) must be positive, got %s", i+1, name, line.Quantity)
		}
		if !line.Rate.IsPositive() {
			return nil, models.Invalid(models.ErrInvalidItem, "rate", "line %d (%s) must be positive, got %s", i+1, name, line.Rate)
		}

		total := line.Quantity.Mul(line.Rate)
		totals.Lines[i] = models.LineItem{
			ItemID:   line.ItemID,
			ItemName: name,
			Quantity: line.Quantity,
			Rate:     line.Rate,
			Total:    total,
		}
		totals.Subtotal = totals.Subtotal.Add(total)
	}

	if discount.GreaterThan(totals.Subtotal) {
		return nil, models.Invalid(models.ErrInvalidAmount, "discount",
			"%s exceeds subtotal %s", discount, totals.Subtotal)
	}
	totals.GrandTotal = totals.Subtotal.Sub(discount)

	return totals, nil
}
