package service

import (
	"context"

	"github.com/mmynk/billbook/internal/datastore"
	"github.com/mmynk/billbook/internal/models"
	"github.com/mmynk/billbook/internal/storage"
)

var itemKeys = []string{storage.KeyItems, storage.KeyItemRateHistory}

// CreateItem adds a catalog item.
func (s *Service) CreateItem(ctx context.Context, in datastore.ItemInput) (*models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var it *models.Item
	err := s.mutate(ctx, models.KindItem, "create", itemKeys, func() (err error) {
		it, err = s.store.CreateItem(in)
		return err
	})
	if err != nil {
		s.logger.Error("CreateItem failed", "name", in.Name, "error", err)
		return nil, err
	}
	s.logger.Info("Item created", "item_id", it.ID, "name", it.Name, "type", it.Type)
	return it, nil
}

// UpdateItem edits a catalog item, recording a rate change in the history.
func (s *Service) UpdateItem(ctx context.Context, id string, in datastore.ItemInput) (*models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var it *models.Item
	err := s.mutate(ctx, models.KindItem, "update", itemKeys, func() (err error) {
		it, err = s.store.UpdateItem(id, in)
		return err
	})
	if err != nil {
		s.logger.Error("UpdateItem failed", "item_id", id, "error", err)
		return nil, err
	}
	s.logger.Info("Item updated", "item_id", it.ID, "name", it.Name)
	return it, nil
}

// DeleteItem moves a catalog item to the recycle bin. Bills that used it
// keep their line items.
func (s *Service) DeleteItem(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := []string{storage.KeyItems, storage.KeyRecycleBin}
	err := s.mutate(ctx, models.KindItem, "delete", keys, func() error {
		return s.store.DeleteItem(id)
	})
	if err != nil {
		s.logger.Error("DeleteItem failed", "item_id", id, "error", err)
		return err
	}
	s.logger.Info("Item moved to recycle bin", "item_id", id)
	return nil
}

// Item returns an active catalog item.
func (s *Service) Item(id string) (*models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Item(id)
}

// Items returns the catalog ordered by name.
func (s *Service) Items() []*models.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Items()
}

// ItemRateHistory returns the rate changes of one item, or of all items
// when itemID is empty, oldest first.
func (s *Service) ItemRateHistory(itemID string) []models.ItemRateHistory {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.ItemRateHistory(itemID)
}
