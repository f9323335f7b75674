package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bill represents an invoice issued to one customer.
type Bill struct {
	// ID is the unique identifier for the bill (UUID format).
	ID string `json:"id"`

	// CustomerID references the billed customer. Never owned by the bill.
	CustomerID string `json:"customerId"`

	// CustomerName is a denormalized copy of the customer's name.
	CustomerName string `json:"customerName"`

	// Date is the invoice date. It decides the month the bill is counted in.
	Date time.Time `json:"date"`

	// Items are the ordered line items.
	Items []LineItem `json:"items"`

	// Discount is subtracted from the subtotal. Zero when absent.
	Discount decimal.Decimal `json:"discount"`

	// Subtotal is the sum of every line total.
	Subtotal decimal.Decimal `json:"subtotal"`

	// GrandTotal is Subtotal minus Discount.
	GrandTotal decimal.Decimal `json:"grandTotal"`

	// CreatedAt is when the bill was first inserted.
	CreatedAt time.Time `json:"createdAt"`

	// UpdatedAt is when the bill was last modified.
	UpdatedAt time.Time `json:"updatedAt"`
}

// LineItem represents a single line on a bill.
// Total is always Quantity × Rate.
type LineItem struct {
	// ID is the unique identifier for the line (UUID format).
	ID string `json:"id"`

	// ItemID optionally references a catalog Item.
	ItemID string `json:"itemId,omitempty"`

	// ItemName is the description printed on the bill.
	ItemName string `json:"itemName"`

	Quantity decimal.Decimal `json:"quantity"`
	Rate     decimal.Decimal `json:"rate"`
	Total    decimal.Decimal `json:"total"`
}

// Clone returns a deep copy of the bill so callers cannot mutate store state
// through the returned line item slice.
func (b *Bill) Clone() *Bill {
	c := *b
	c.Items = append([]LineItem(nil), b.Items...)
	return &c
}
