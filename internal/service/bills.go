package service

import (
	"context"

	"github.com/mmynk/billbook/internal/datastore"
	"github.com/mmynk/billbook/internal/models"
	"github.com/mmynk/billbook/internal/storage"
)

// CreateBill validates, prices and records a bill.
func (s *Service) CreateBill(ctx context.Context, in datastore.BillInput) (*models.Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var b *models.Bill
	err := s.mutate(ctx, models.KindBill, "create", []string{storage.KeyBills}, func() (err error) {
		b, err = s.store.CreateBill(in)
		return err
	})
	if err != nil {
		s.logger.Error("CreateBill failed", "customer_id", in.CustomerID, "error", err)
		return nil, err
	}
	s.logger.Info("Bill created",
		"bill_id", b.ID,
		"customer_id", b.CustomerID,
		"items", len(b.Items),
		"grand_total", b.GrandTotal.StringFixed(2),
	)
	return b, nil
}

// UpdateBill replaces the contents of a bill.
func (s *Service) UpdateBill(ctx context.Context, id string, in datastore.BillInput) (*models.Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var b *models.Bill
	err := s.mutate(ctx, models.KindBill, "update", []string{storage.KeyBills}, func() (err error) {
		b, err = s.store.UpdateBill(id, in)
		return err
	})
	if err != nil {
		s.logger.Error("UpdateBill failed", "bill_id", id, "error", err)
		return nil, err
	}
	s.logger.Info("Bill updated", "bill_id", b.ID, "grand_total", b.GrandTotal.StringFixed(2))
	return b, nil
}

// DeleteBill moves a bill to the recycle bin.
func (s *Service) DeleteBill(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := []string{storage.KeyBills, storage.KeyRecycleBin}
	err := s.mutate(ctx, models.KindBill, "delete", keys, func() error {
		return s.store.DeleteBill(id)
	})
	if err != nil {
		s.logger.Error("DeleteBill failed", "bill_id", id, "error", err)
		return err
	}
	s.logger.Info("Bill moved to recycle bin", "bill_id", id)
	return nil
}

// Bill returns an active bill.
func (s *Service) Bill(id string) (*models.Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Bill(id)
}

// Bills returns every active bill, oldest first.
func (s *Service) Bills() []*models.Bill {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Bills()
}

// BillsByCustomer returns the active bills of one customer, oldest first.
func (s *Service) BillsByCustomer(customerID string) []*models.Bill {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.BillsByCustomer(customerID)
}
