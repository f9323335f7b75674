package models

import (
	"encoding/json"
	"time"
)

// EntityKind names the kind of entity held by a RecycledItem.
type EntityKind string

const (
	KindCustomer EntityKind = "customer"
	KindBill     EntityKind = "bill"
	KindPayment  EntityKind = "payment"
	KindItem     EntityKind = "item"
)

// RecycledItem is a quarantined copy of a deleted entity.
//
// Payload holds the serialized entity as it was at deletion time, so later
// store mutations never change what a restore brings back.
type RecycledItem struct {
	// ID identifies the quarantine entry, not the entity.
	ID string `json:"id"`

	Type EntityKind `json:"type"`

	// EntityID is the original id, reused on restore.
	EntityID string `json:"entityId"`

	Payload json.RawMessage `json:"payload"`

	// DisplayName is a human readable label ("Bill for Acme - 1,200.00").
	DisplayName string `json:"displayName"`

	DeletedAt time.Time `json:"deletedAt"`
}
