package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultPaymentMethod is used when a payment is recorded without a method.
const DefaultPaymentMethod = "cash"

// Payment represents money received from a customer.
type Payment struct {
	// ID is the unique identifier for the payment (UUID format).
	ID string `json:"id"`

	// CustomerID references the paying customer.
	CustomerID string `json:"customerId"`

	// CustomerName is a denormalized copy of the customer's name.
	CustomerName string `json:"customerName"`

	// Amount is always strictly positive.
	Amount decimal.Decimal `json:"amount"`

	// Date is when the money was received.
	Date time.Time `json:"date"`

	// Method is how the money was received (cash, upi, cheque, ...).
	Method string `json:"method"`

	// Note is an optional free-text remark.
	Note string `json:"note,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
