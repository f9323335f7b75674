// Package recycle implements the soft-delete lifecycle: deleted entities sit
// in a quarantine for a fixed retention window, during which they can be
// restored under their original id, and are purged afterwards.
//
// Expiry is lazy. Every List call sweeps expired entries first, so no
// background timer is needed.
package recycle

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/mmynk/billbook/internal/datastore"
	"github.com/mmynk/billbook/internal/models"
)

const (
	// RetentionDays is how long a deleted entity stays restorable.
	RetentionDays = 30

	retention = RetentionDays * 24 * time.Hour
)

// Restorer puts quarantined entities back into the active collections.
// *datastore.Store implements it.
type Restorer interface {
	RestoreCustomer(models.Customer) error
	RestoreBill(models.Bill) error
	RestorePayment(models.Payment) error
	RestoreItem(models.Item) error
}

// PurgeHook runs before an entry is destroyed. An error keeps the entry in
// quarantine for the next sweep.
type PurgeHook func(models.RecycledItem) error

// Bin is the quarantine collection.
type Bin struct {
	entries map[string]*models.RecycledItem
	store   Restorer
	hooks   []PurgeHook

	now    func() time.Time
	newID  func() string
	logger *slog.Logger
}

// Option configures a Bin.
type Option func(*Bin)

// WithClock overrides the time source used for deletion stamps and expiry.
func WithClock(now func() time.Time) Option {
	return func(b *Bin) { b.now = now }
}

// WithIDGenerator overrides the quarantine entry id generator.
func WithIDGenerator(newID func() string) Option {
	return func(b *Bin) { b.newID = newID }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bin) { b.logger = logger }
}

// New creates an empty Bin that restores into store.
func New(store Restorer, opts ...Option) *Bin {
	b := &Bin{
		entries: make(map[string]*models.RecycledItem),
		store:   store,
		now:     time.Now,
		newID:   func() string { return uuid.New().String() },
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// OnPurge registers a hook run for every purged entry.
func (b *Bin) OnPurge(hook PurgeHook) {
	b.hooks = append(b.hooks, hook)
}

// Quarantine stores a serialized copy of entity. It implements
// datastore.Quarantiner.
func (b *Bin) Quarantine(kind models.EntityKind, entityID, displayName string, entity any) error {
	payload, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("failed to serialize %s %s for quarantine: %w", kind, entityID, err)
	}
	entry := &models.RecycledItem{
		ID:          b.newID(),
		Type:        kind,
		EntityID:    entityID,
		Payload:     payload,
		DisplayName: displayName,
		DeletedAt:   b.now(),
	}
	b.entries[entry.ID] = entry
	return nil
}

// DaysRemaining returns how many whole days (rounded up) are left before an
// entry deleted at deletedAt is purged. It is 0 from the boundary on.
func (b *Bin) DaysRemaining(deletedAt time.Time) int {
	remaining := deletedAt.Add(retention).Sub(b.now())
	if remaining <= 0 {
		return 0
	}
	const day = 24 * time.Hour
	return int((remaining + day - 1) / day)
}

func (b *Bin) expired(e *models.RecycledItem) bool {
	return !b.now().Before(e.DeletedAt.Add(retention))
}

// purge runs the hooks and destroys the entry when all of them succeed.
func (b *Bin) purge(e *models.RecycledItem) error {
	for _, hook := range b.hooks {
		if err := hook(*e); err != nil {
			return fmt.Errorf("purge %s %s (%s): %w", e.Type, e.EntityID, e.ID, err)
		}
	}
	delete(b.entries, e.ID)
	return nil
}

// CleanupOldItems purges every entry whose retention window has passed and
// returns how many were purged. A failing entry does not stop the sweep;
// all failures are returned together.
func (b *Bin) CleanupOldItems() (int, error) {
	var result *multierror.Error
	purged := 0
	for _, e := range b.sorted() {
		if !b.expired(e) {
			continue
		}
		if err := b.purge(e); err != nil {
			result = multierror.Append(result, err)
			continue
		}
		purged++
	}
	if purged > 0 {
		b.logger.Info("Purged expired recycle bin entries", "count", purged)
	}
	return purged, result.ErrorOrNil()
}

// List sweeps expired entries and returns the rest, most recently deleted
// first, together with the number of entries the sweep purged. Sweep
// failures are logged; the affected entries stay listed.
func (b *Bin) List() ([]models.RecycledItem, int) {
	purged, err := b.CleanupOldItems()
	if err != nil {
		b.logger.Warn("Recycle bin cleanup incomplete", "error", err)
	}
	entries := b.sorted()
	out := make([]models.RecycledItem, len(entries))
	for i, e := range entries {
		out[len(entries)-1-i] = copyEntry(e)
	}
	return out, purged
}

// Get returns one entry without sweeping.
func (b *Bin) Get(id string) (models.RecycledItem, error) {
	e, ok := b.entries[id]
	if !ok {
		return models.RecycledItem{}, fmt.Errorf("%w: recycle bin entry %s", models.ErrNotFound, id)
	}
	return copyEntry(e), nil
}

// Len returns the number of quarantined entries.
func (b *Bin) Len() int {
	return len(b.entries)
}

// Restore puts the entity back into the store under its original id.
//
// It returns (true, nil) on success. When the entity is already active (a
// concurrent restore won) the stale entry is dropped and (false, nil) is
// returned. An expired entry is purged and reported as not found.
func (b *Bin) Restore(id string) (bool, error) {
	e, ok := b.entries[id]
	if !ok {
		return false, fmt.Errorf("%w: recycle bin entry %s", models.ErrNotFound, id)
	}
	if b.expired(e) {
		if err := b.purge(e); err != nil {
			return false, err
		}
		return false, fmt.Errorf("%w: recycle bin entry %s expired", models.ErrNotFound, id)
	}

	err := b.reinsert(e)
	switch {
	case errors.Is(err, datastore.ErrAlreadyActive):
		b.logger.Warn("Recycle bin entry already restored", "recycle_id", id, "entity_id", e.EntityID)
		delete(b.entries, id)
		return false, nil
	case err != nil:
		return false, err
	}

	delete(b.entries, id)
	return true, nil
}

func (b *Bin) reinsert(e *models.RecycledItem) error {
	switch e.Type {
	case models.KindCustomer:
		var c models.Customer
		if err := json.Unmarshal(e.Payload, &c); err != nil {
			return fmt.Errorf("decode quarantined customer %s: %w", e.EntityID, err)
		}
		return b.store.RestoreCustomer(c)
	case models.KindBill:
		var bill models.Bill
		if err := json.Unmarshal(e.Payload, &bill); err != nil {
			return fmt.Errorf("decode quarantined bill %s: %w", e.EntityID, err)
		}
		return b.store.RestoreBill(bill)
	case models.KindPayment:
		var p models.Payment
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return fmt.Errorf("decode quarantined payment %s: %w", e.EntityID, err)
		}
		return b.store.RestorePayment(p)
	case models.KindItem:
		var it models.Item
		if err := json.Unmarshal(e.Payload, &it); err != nil {
			return fmt.Errorf("decode quarantined item %s: %w", e.EntityID, err)
		}
		return b.store.RestoreItem(it)
	default:
		return fmt.Errorf("unknown recycle bin entry type %q", e.Type)
	}
}

// PermanentlyDelete purges one entry. Purging an absent id is a no-op that
// returns false.
func (b *Bin) PermanentlyDelete(id string) (bool, error) {
	e, ok := b.entries[id]
	if !ok {
		return false, nil
	}
	if err := b.purge(e); err != nil {
		return false, err
	}
	return true, nil
}

// ClearAll purges every entry and returns how many were purged.
func (b *Bin) ClearAll() (int, error) {
	var result *multierror.Error
	purged := 0
	for _, e := range b.sorted() {
		if err := b.purge(e); err != nil {
			result = multierror.Append(result, err)
			continue
		}
		purged++
	}
	return purged, result.ErrorOrNil()
}

// Export returns copies of every entry, oldest deletion first.
func (b *Bin) Export() []models.RecycledItem {
	entries := b.sorted()
	out := make([]models.RecycledItem, len(entries))
	for i, e := range entries {
		out[i] = copyEntry(e)
	}
	return out
}

// Replace swaps in a previously exported set of entries.
func (b *Bin) Replace(items []models.RecycledItem) error {
	entries := make(map[string]*models.RecycledItem, len(items))
	for i := range items {
		e := copyEntry(&items[i])
		if e.ID == "" || e.EntityID == "" {
			return fmt.Errorf("%w: recycle bin entry %d has no id", models.ErrIntegrity, i)
		}
		if _, dup := entries[e.ID]; dup {
			return fmt.Errorf("%w: duplicate recycle bin entry %s", models.ErrIntegrity, e.ID)
		}
		entries[e.ID] = &e
	}
	b.entries = entries
	return nil
}

func (b *Bin) sorted() []*models.RecycledItem {
	out := make([]*models.RecycledItem, 0, len(b.entries))
	for _, e := range b.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DeletedAt.Equal(out[j].DeletedAt) {
			return out[i].DeletedAt.Before(out[j].DeletedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func copyEntry(e *models.RecycledItem) models.RecycledItem {
	cp := *e
	cp.Payload = append(json.RawMessage(nil), e.Payload...)
	return cp
}
