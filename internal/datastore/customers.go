package datastore

import (
	"sort"
	"strings"

	"github.com/mmynk/billbook/internal/models"
)

// CustomerInput carries the editable fields of a customer.
type CustomerInput struct {
	Name    string
	Phone   string
	Address string
}

func (s *Store) validateCustomer(in CustomerInput, selfID string) (string, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return "", models.Invalid(models.ErrInvalidInput, "name", "customer name cannot be blank")
	}
	if existing := s.customerByName(name); existing != nil && existing.ID != selfID {
		return "", models.Invalid(models.ErrDuplicateName, "name", "customer %q already exists", existing.Name)
	}
	return name, nil
}

// CreateCustomer inserts a new customer and returns a copy of it.
func (s *Store) CreateCustomer(in CustomerInput) (*models.Customer, error) {
	name, err := s.validateCustomer(in, "")
	if err != nil {
		return nil, err
	}

	now := s.now()
	c := &models.Customer{
		ID:        s.newID(),
		Name:      name,
		Phone:     strings.TrimSpace(in.Phone),
		Address:   strings.TrimSpace(in.Address),
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.customers[c.ID] = c

	cp := *c
	return &cp, nil
}

// UpdateCustomer replaces the editable fields of a customer. A rename is
// propagated to the denormalized CustomerName of every bill and payment.
func (s *Store) UpdateCustomer(id string, in CustomerInput) (*models.Customer, error) {
	c, ok := s.customers[id]
	if !ok {
		return nil, models.NotFound(models.KindCustomer, id)
	}
	name, err := s.validateCustomer(in, id)
	if err != nil {
		return nil, err
	}

	renamed := c.Name != name
	c.Name = name
	c.Phone = strings.TrimSpace(in.Phone)
	c.Address = strings.TrimSpace(in.Address)
	c.UpdatedAt = s.now()

	if renamed {
		s.propagateName(c.ID, c.Name)
	}

	cp := *c
	return &cp, nil
}

func (s *Store) propagateName(customerID, name string) {
	for _, b := range s.bills {
		if b.CustomerID == customerID {
			b.CustomerName = name
		}
	}
	for _, p := range s.payments {
		if p.CustomerID == customerID {
			p.CustomerName = name
		}
	}
}

// DeleteCustomer moves a customer into quarantine. Bills and payments that
// reference it stay active.
func (s *Store) DeleteCustomer(id string) error {
	c, ok := s.customers[id]
	if !ok {
		return models.NotFound(models.KindCustomer, id)
	}
	cp := *c
	if err := s.forward(models.KindCustomer, c.ID, c.Name, &cp); err != nil {
		return err
	}
	delete(s.customers, id)
	return nil
}

// Customer returns a copy of an active customer.
func (s *Store) Customer(id string) (*models.Customer, error) {
	c, ok := s.customers[id]
	if !ok {
		return nil, models.NotFound(models.KindCustomer, id)
	}
	cp := *c
	return &cp, nil
}

// HasCustomer reports whether id is an active customer.
func (s *Store) HasCustomer(id string) bool {
	_, ok := s.customers[id]
	return ok
}

// Customers returns copies of all active customers ordered by name.
func (s *Store) Customers() []*models.Customer {
	out := make([]*models.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := models.NameKey(out[i].Name), models.NameKey(out[j].Name)
		if a != b {
			return a < b
		}
		return out[i].ID < out[j].ID
	})
	return out
}
