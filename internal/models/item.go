package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ItemType tells whether a catalog item has a fixed rate.
type ItemType string

const (
	// ItemFixed items carry a positive rate that pre-fills bill lines.
	ItemFixed ItemType = "fixed"
	// ItemVariable items are priced on every bill.
	ItemVariable ItemType = "variable"
)

// Valid reports whether t is a known item type.
func (t ItemType) Valid() bool {
	return t == ItemFixed || t == ItemVariable
}

// Item represents an entry in the master catalog.
type Item struct {
	// ID is the unique identifier for the item (UUID format).
	ID string `json:"id"`

	// Name is unique among active items (case-insensitive, trimmed).
	Name string `json:"name"`

	Type ItemType `json:"type"`

	// Rate is required and positive for fixed items, nil for variable ones.
	Rate *decimal.Decimal `json:"rate,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ItemRateHistory records one rate change of a fixed catalog item.
type ItemRateHistory struct {
	ID       string `json:"id"`
	ItemID   string `json:"itemId"`
	ItemName string `json:"itemName"`

	// OldRate is nil for the first rate an item ever had.
	OldRate *decimal.Decimal `json:"oldRate,omitempty"`
	NewRate decimal.Decimal  `json:"newRate"`

	ChangedAt time.Time `json:"changedAt"`
}
