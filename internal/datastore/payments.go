package datastore

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/billbook/internal/models"
)

// PaymentInput carries everything needed to create or replace a payment.
// A zero Date means "today"; a blank Method means cash.
type PaymentInput struct {
	CustomerID string
	Amount     decimal.Decimal
	Date       time.Time
	Method     string
	Note       string
}

func (s *Store) validatePayment(in PaymentInput) (*models.Customer, error) {
	c, ok := s.customers[in.CustomerID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrUnknownCustomer, in.CustomerID)
	}
	if !in.Amount.IsPositive() {
		return nil, models.Invalid(models.ErrInvalidAmount, "amount", "must be positive, got %s", in.Amount)
	}
	return c, nil
}

func paymentMethod(method string) string {
	method = strings.TrimSpace(method)
	if method == "" {
		return models.DefaultPaymentMethod
	}
	return method
}

// CreatePayment records money received from a customer.
func (s *Store) CreatePayment(in PaymentInput) (*models.Payment, error) {
	c, err := s.validatePayment(in)
	if err != nil {
		return nil, err
	}

	now := s.now()
	date := in.Date
	if date.IsZero() {
		date = now
	}
	p := &models.Payment{
		ID:           s.newID(),
		CustomerID:   c.ID,
		CustomerName: c.Name,
		Amount:       in.Amount,
		Date:         date,
		Method:       paymentMethod(in.Method),
		Note:         strings.TrimSpace(in.Note),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.payments[p.ID] = p

	cp := *p
	return &cp, nil
}

// UpdatePayment re-validates and replaces an existing payment.
func (s *Store) UpdatePayment(id string, in PaymentInput) (*models.Payment, error) {
	p, ok := s.payments[id]
	if !ok {
		return nil, models.NotFound(models.KindPayment, id)
	}
	c, err := s.validatePayment(in)
	if err != nil {
		return nil, err
	}

	if !in.Date.IsZero() {
		p.Date = in.Date
	}
	p.CustomerID = c.ID
	p.CustomerName = c.Name
	p.Amount = in.Amount
	p.Method = paymentMethod(in.Method)
	p.Note = strings.TrimSpace(in.Note)
	p.UpdatedAt = s.now()

	cp := *p
	return &cp, nil
}

// DeletePayment moves a payment into quarantine.
func (s *Store) DeletePayment(id string) error {
	p, ok := s.payments[id]
	if !ok {
		return models.NotFound(models.KindPayment, id)
	}
	cp := *p
	label := fmt.Sprintf("Payment from %s - %s", p.CustomerName, p.Amount.StringFixed(2))
	if err := s.forward(models.KindPayment, p.ID, label, &cp); err != nil {
		return err
	}
	delete(s.payments, id)
	return nil
}

func (s *Store) repairPaymentName(p *models.Payment) {
	c, ok := s.customers[p.CustomerID]
	if !ok || c.Name == p.CustomerName {
		return
	}
	s.logger.Warn("Repaired stale customer name on payment",
		"payment_id", p.ID,
		"customer_id", c.ID,
		"stored", p.CustomerName,
		"current", c.Name,
	)
	p.CustomerName = c.Name
}

// Payment returns a copy of an active payment.
func (s *Store) Payment(id string) (*models.Payment, error) {
	p, ok := s.payments[id]
	if !ok {
		return nil, models.NotFound(models.KindPayment, id)
	}
	s.repairPaymentName(p)
	cp := *p
	return &cp, nil
}

// Payments returns copies of all active payments, oldest first.
func (s *Store) Payments() []*models.Payment {
	return s.filterPayments(func(*models.Payment) bool { return true })
}

// PaymentsByCustomer returns copies of the customer's payments, oldest first.
func (s *Store) PaymentsByCustomer(customerID string) []*models.Payment {
	return s.filterPayments(func(p *models.Payment) bool { return p.CustomerID == customerID })
}

func (s *Store) filterPayments(keep func(*models.Payment) bool) []*models.Payment {
	out := make([]*models.Payment, 0, len(s.payments))
	for _, p := range s.payments {
		if !keep(p) {
			continue
		}
		s.repairPaymentName(p)
		cp := *p
		out = append(out, &cp)
	}
	sortPayments(out)
	return out
}
