package service

import (
	"context"

	"github.com/mmynk/billbook/internal/datastore"
	"github.com/mmynk/billbook/internal/models"
	"github.com/mmynk/billbook/internal/storage"
)

// CreateCustomer adds a customer.
func (s *Service) CreateCustomer(ctx context.Context, in datastore.CustomerInput) (*models.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var c *models.Customer
	err := s.mutate(ctx, models.KindCustomer, "create", []string{storage.KeyCustomers}, func() (err error) {
		c, err = s.store.CreateCustomer(in)
		return err
	})
	if err != nil {
		s.logger.Error("CreateCustomer failed", "name", in.Name, "error", err)
		return nil, err
	}
	s.logger.Info("Customer created", "customer_id", c.ID, "name", c.Name)
	return c, nil
}

// UpdateCustomer edits a customer. A rename is propagated to the customer's
// bills and payments.
func (s *Service) UpdateCustomer(ctx context.Context, id string, in datastore.CustomerInput) (*models.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := []string{storage.KeyCustomers, storage.KeyBills, storage.KeyPayments}
	var c *models.Customer
	err := s.mutate(ctx, models.KindCustomer, "update", keys, func() (err error) {
		c, err = s.store.UpdateCustomer(id, in)
		return err
	})
	if err != nil {
		s.logger.Error("UpdateCustomer failed", "customer_id", id, "error", err)
		return nil, err
	}
	s.logger.Info("Customer updated", "customer_id", c.ID, "name", c.Name)
	return c, nil
}

// DeleteCustomer moves a customer to the recycle bin. Its bills and
// payments stay active.
func (s *Service) DeleteCustomer(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := []string{storage.KeyCustomers, storage.KeyRecycleBin}
	err := s.mutate(ctx, models.KindCustomer, "delete", keys, func() error {
		return s.store.DeleteCustomer(id)
	})
	if err != nil {
		s.logger.Error("DeleteCustomer failed", "customer_id", id, "error", err)
		return err
	}
	s.logger.Info("Customer moved to recycle bin", "customer_id", id)
	return nil
}

// Customer returns an active customer.
func (s *Service) Customer(id string) (*models.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Customer(id)
}

// Customers returns every active customer ordered by name.
func (s *Service) Customers() []*models.Customer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Customers()
}
