package models

import "github.com/shopspring/decimal"

// MonthlyBalance is one calendar month of a customer's running ledger.
// ClosingBalance = OpeningBalance + Bills - Payments.
type MonthlyBalance struct {
	CustomerID     string          `json:"customerId"`
	Year           int             `json:"year"`
	Month          int             `json:"month"` // 1-12
	OpeningBalance decimal.Decimal `json:"openingBalance"`
	Bills          decimal.Decimal `json:"bills"`
	Payments       decimal.Decimal `json:"payments"`
	ClosingBalance decimal.Decimal `json:"closingBalance"`
}

// CustomerOutstanding is what one customer still owes.
type CustomerOutstanding struct {
	CustomerID   string          `json:"customerId"`
	CustomerName string          `json:"customerName"`
	Billed       decimal.Decimal `json:"billed"`
	Paid         decimal.Decimal `json:"paid"`
	Outstanding  decimal.Decimal `json:"outstanding"`
}

// BusinessAnalytics is a whole-book summary.
type BusinessAnalytics struct {
	Customers     int                   `json:"customers"`
	Bills         int                   `json:"bills"`
	Payments      int                   `json:"payments"`
	Items         int                   `json:"items"`
	TotalBilled   decimal.Decimal       `json:"totalBilled"`
	TotalReceived decimal.Decimal       `json:"totalReceived"`
	Outstanding   decimal.Decimal       `json:"outstanding"`
	ByCustomer    []CustomerOutstanding `json:"byCustomer"`
}
