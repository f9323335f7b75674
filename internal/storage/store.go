// Package storage provides abstractions for persisting the ledger's
// collections.
package storage

import (
	"context"
	"errors"
)

// Collection keys. Each key holds the JSON encoding of one collection.
const (
	KeyCustomers         = "customers"
	KeyBills             = "bills"
	KeyPayments          = "payments"
	KeyItems             = "items"
	KeyItemRateHistory   = "itemRateHistory"
	KeyRecycleBin        = "recycleBin"
	KeyBusinessAnalytics = "businessAnalytics"
)

// Keys lists every collection key in load order.
var Keys = []string{
	KeyCustomers,
	KeyItems,
	KeyItemRateHistory,
	KeyBills,
	KeyPayments,
	KeyRecycleBin,
	KeyBusinessAnalytics,
}

// ErrNotFound is returned by Load for a key that was never saved.
var ErrNotFound = errors.New("storage: collection not found")

// Store defines the interface for collection storage.
// This abstraction allows swapping storage backends without changing the
// service layer.
type Store interface {
	// Load returns the payload saved under key, or ErrNotFound.
	Load(ctx context.Context, key string) ([]byte, error)

	// Save replaces the payload stored under key.
	Save(ctx context.Context, key string, payload []byte) error

	// SaveAll replaces several collections in one transaction. Either all
	// of them are written or none is.
	SaveAll(ctx context.Context, collections map[string][]byte) error

	// Close releases any resources held by the store.
	Close() error
}
