package service

import (
	"context"
	"time"

	"github.com/mmynk/billbook/internal/models"
	"github.com/mmynk/billbook/internal/storage"
)

// RecycleBin sweeps expired entries and returns the rest, most recently
// deleted first.
func (s *Service) RecycleBin(ctx context.Context) []models.RecycledItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.sweep(ctx)
}

// sweep purges expired entries, saves the bin when anything went and
// returns what is left.
func (s *Service) sweep(ctx context.Context) []models.RecycledItem {
	entries, purged := s.bin.List()
	if purged > 0 {
		s.logger.Info("Recycle bin cleanup", "purged", purged)
		if err := s.persist(ctx, storage.KeyRecycleBin); err != nil {
			// the sweep is repeated on the next load
			s.logger.Warn("Failed to persist recycle bin cleanup", "error", err)
		}
		s.metrics.QuarantineSize.Set(float64(s.bin.Len()))
	}
	return entries
}

// DaysRemaining returns the whole days left before an entry deleted at
// deletedAt is purged.
func (s *Service) DaysRemaining(deletedAt time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bin.DaysRemaining(deletedAt)
}

// RestoreFromBin puts a recycled entity back under its original id. It
// returns false without error when the entity had already been restored.
func (s *Service) RestoreFromBin(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// an expired entry is purged and saved here, then reported as not found
	s.sweep(ctx)
	entry, err := s.bin.Get(id)
	if err != nil {
		s.logger.Error("RestoreFromBin failed", "recycle_id", id, "error", err)
		return false, err
	}

	keys := []string{storage.KeyRecycleBin}
	switch entry.Type {
	case models.KindCustomer:
		keys = append(keys, storage.KeyCustomers, storage.KeyBills, storage.KeyPayments)
	case models.KindBill:
		keys = append(keys, storage.KeyBills)
	case models.KindPayment:
		keys = append(keys, storage.KeyPayments)
	case models.KindItem:
		keys = append(keys, storage.KeyItems)
	}

	var restored bool
	err = s.mutate(ctx, entry.Type, "restore", keys, func() (err error) {
		restored, err = s.bin.Restore(id)
		return err
	})
	if err != nil {
		s.logger.Error("RestoreFromBin failed",
			"recycle_id", id, "type", entry.Type, "entity_id", entry.EntityID, "error", err)
		return false, err
	}
	if restored {
		s.logger.Info("Restored from recycle bin", "type", entry.Type, "entity_id", entry.EntityID)
	}
	return restored, nil
}

// PurgeFromBin permanently removes one entry. An absent id is a no-op.
func (s *Service) PurgeFromBin(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var purged bool
	err := s.mutate(ctx, kindRecycleBin, "purge", []string{storage.KeyRecycleBin}, func() (err error) {
		purged, err = s.bin.PermanentlyDelete(id)
		return err
	})
	if err != nil {
		s.logger.Error("PurgeFromBin failed", "recycle_id", id, "error", err)
		return false, err
	}
	if purged {
		s.logger.Info("Recycle bin entry purged", "recycle_id", id)
	}
	return purged, nil
}

// ClearBin permanently removes every entry.
func (s *Service) ClearBin(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	err := s.mutate(ctx, kindRecycleBin, "purge", []string{storage.KeyRecycleBin}, func() (err error) {
		n, err = s.bin.ClearAll()
		return err
	})
	if err != nil {
		s.logger.Error("ClearBin failed", "error", err)
		return 0, err
	}
	s.logger.Info("Recycle bin cleared", "purged", n)
	return n, nil
}
