package models

import (
	"strings"
	"time"
)

// Customer represents someone the business sends bills to.
type Customer struct {
	// ID is the unique identifier for the customer (UUID format).
	ID string `json:"id"`

	// Name is the display name. Unique among active customers, compared
	// case-insensitively after trimming.
	Name string `json:"name"`

	// Phone is an optional contact number.
	Phone string `json:"phone,omitempty"`

	// Address is an optional postal address.
	Address string `json:"address,omitempty"`

	// CreatedAt is when the customer was first inserted.
	CreatedAt time.Time `json:"createdAt"`

	// UpdatedAt is when the customer was last modified.
	UpdatedAt time.Time `json:"updatedAt"`
}

// NameKey normalizes a display name for uniqueness comparisons.
func NameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
