package service

import (
	"context"

	"github.com/mmynk/billbook/internal/datastore"
	"github.com/mmynk/billbook/internal/models"
	"github.com/mmynk/billbook/internal/storage"
)

// CreatePayment records a payment received from a customer.
func (s *Service) CreatePayment(ctx context.Context, in datastore.PaymentInput) (*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var p *models.Payment
	err := s.mutate(ctx, models.KindPayment, "create", []string{storage.KeyPayments}, func() (err error) {
		p, err = s.store.CreatePayment(in)
		return err
	})
	if err != nil {
		s.logger.Error("CreatePayment failed", "customer_id", in.CustomerID, "error", err)
		return nil, err
	}
	s.logger.Info("Payment recorded",
		"payment_id", p.ID,
		"customer_id", p.CustomerID,
		"amount", p.Amount.StringFixed(2),
		"method", p.Method,
	)
	return p, nil
}

// UpdatePayment replaces the contents of a payment.
func (s *Service) UpdatePayment(ctx context.Context, id string, in datastore.PaymentInput) (*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var p *models.Payment
	err := s.mutate(ctx, models.KindPayment, "update", []string{storage.KeyPayments}, func() (err error) {
		p, err = s.store.UpdatePayment(id, in)
		return err
	})
	if err != nil {
		s.logger.Error("UpdatePayment failed", "payment_id", id, "error", err)
		return nil, err
	}
	s.logger.Info("Payment updated", "payment_id", p.ID, "amount", p.Amount.StringFixed(2))
	return p, nil
}

// DeletePayment moves a payment to the recycle bin.
func (s *Service) DeletePayment(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := []string{storage.KeyPayments, storage.KeyRecycleBin}
	err := s.mutate(ctx, models.KindPayment, "delete", keys, func() error {
		return s.store.DeletePayment(id)
	})
	if err != nil {
		s.logger.Error("DeletePayment failed", "payment_id", id, "error", err)
		return err
	}
	s.logger.Info("Payment moved to recycle bin", "payment_id", id)
	return nil
}

// Payment returns an active payment.
func (s *Service) Payment(id string) (*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Payment(id)
}

// Payments returns every active payment, oldest first.
func (s *Service) Payments() []*models.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Payments()
}

// PaymentsByCustomer returns the active payments of one customer, oldest
// first.
func (s *Service) PaymentsByCustomer(customerID string) []*models.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.PaymentsByCustomer(customerID)
}
