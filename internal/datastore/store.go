// Package datastore is the in-process entity store: the single source of
// truth for customers, bills, payments and catalog items.
//
// The store is not safe for concurrent use. Callers serialize access (the
// service layer holds one lock around every operation).
package datastore

import (
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/billbook/internal/models"
)

// ErrAlreadyActive is returned when re-inserting an entity whose id is
// already present in an active collection.
var ErrAlreadyActive = errors.New("datastore: entity already active")

// Quarantiner receives a copy of every entity removed from the store.
// Deletion only succeeds once the copy has been accepted.
type Quarantiner interface {
	Quarantine(kind models.EntityKind, entityID, displayName string, entity any) error
}

// Store holds the active collections.
type Store struct {
	customers   map[string]*models.Customer
	bills       map[string]*models.Bill
	payments    map[string]*models.Payment
	items       map[string]*models.Item
	rateHistory []models.ItemRateHistory

	quarantine Quarantiner
	now        func() time.Time
	newID      func() string
	logger     *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides the id generator (uuid v4 by default).
func WithIDGenerator(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

// WithLogger sets the logger used for read-path repairs.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		customers: make(map[string]*models.Customer),
		bills:     make(map[string]*models.Bill),
		payments:  make(map[string]*models.Payment),
		items:     make(map[string]*models.Item),
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetQuarantine attaches the component that receives deleted entities.
func (s *Store) SetQuarantine(q Quarantiner) {
	s.quarantine = q
}

func (s *Store) forward(kind models.EntityKind, id, displayName string, entity any) error {
	if s.quarantine == nil {
		return errors.New("datastore: no quarantine attached, refusing to delete")
	}
	return s.quarantine.Quarantine(kind, id, displayName, entity)
}

// customerByName returns the active customer whose name key matches, if any.
func (s *Store) customerByName(name string) *models.Customer {
	key := models.NameKey(name)
	for _, c := range s.customers {
		if models.NameKey(c.Name) == key {
			return c
		}
	}
	return nil
}

func (s *Store) itemByName(name string) *models.Item {
	key := models.NameKey(name)
	for _, it := range s.items {
		if models.NameKey(it.Name) == key {
			return it
		}
	}
	return nil
}

func sortBills(bills []*models.Bill) {
	sort.Slice(bills, func(i, j int) bool {
		a, b := bills[i], bills[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

func sortPayments(payments []*models.Payment) {
	sort.Slice(payments, func(i, j int) bool {
		a, b := payments[i], payments[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}
