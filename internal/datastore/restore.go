package datastore

import (
	"fmt"

	"github.com/mmynk/billbook/internal/models"
)

// The Restore* methods put a previously quarantined entity back under its
// original id. They return ErrAlreadyActive when the id is already live.

// RestoreCustomer re-inserts a customer. It fails with ErrDuplicateName when
// another active customer took the name in the meantime.
func (s *Store) RestoreCustomer(c models.Customer) error {
	if _, ok := s.customers[c.ID]; ok {
		return ErrAlreadyActive
	}
	if existing := s.customerByName(c.Name); existing != nil {
		return models.Invalid(models.ErrDuplicateName, "name",
			"cannot restore %q: active customer %s has the same name", c.Name, existing.ID)
	}
	cp := c
	s.customers[c.ID] = &cp
	s.propagateName(c.ID, c.Name)
	return nil
}

// RestoreBill re-inserts a bill. The referenced customer must be active;
// references are never reassigned.
func (s *Store) RestoreBill(b models.Bill) error {
	if _, ok := s.bills[b.ID]; ok {
		return ErrAlreadyActive
	}
	c, ok := s.customers[b.CustomerID]
	if !ok {
		return fmt.Errorf("%w: bill %s needs customer %s (%s) restored or recreated first",
			models.ErrOrphanedReference, b.ID, b.CustomerID, b.CustomerName)
	}
	cp := b.Clone()
	cp.CustomerName = c.Name
	s.bills[b.ID] = cp
	return nil
}

// RestorePayment re-inserts a payment. The referenced customer must be active.
func (s *Store) RestorePayment(p models.Payment) error {
	if _, ok := s.payments[p.ID]; ok {
		return ErrAlreadyActive
	}
	c, ok := s.customers[p.CustomerID]
	if !ok {
		return fmt.Errorf("%w: payment %s needs customer %s (%s) restored or recreated first",
			models.ErrOrphanedReference, p.ID, p.CustomerID, p.CustomerName)
	}
	cp := p
	cp.CustomerName = c.Name
	s.payments[p.ID] = &cp
	return nil
}

// RestoreItem re-inserts a catalog item.
func (s *Store) RestoreItem(it models.Item) error {
	if _, ok := s.items[it.ID]; ok {
		return ErrAlreadyActive
	}
	if existing := s.itemByName(it.Name); existing != nil {
		return models.Invalid(models.ErrDuplicateName, "name",
			"cannot restore %q: active item %s has the same name", it.Name, existing.ID)
	}
	s.items[it.ID] = copyItem(&it)
	return nil
}
