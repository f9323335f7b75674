package datastore

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/billbook/internal/calculator"
	"github.com/mmynk/billbook/internal/models"
)

// BillInput carries everything needed to create or replace a bill.
// A zero Date means "today".
type BillInput struct {
	CustomerID string
	Date       time.Time
	Items      []calculator.Line
	Discount   decimal.Decimal
}

// resolveLines checks catalog references and fills blank names and zero
// rates of catalog-backed lines from the catalog.
func (s *Store) resolveLines(lines []calculator.Line) ([]calculator.Line, error) {
	out := make([]calculator.Line, len(lines))
	for i, line := range lines {
		if line.ItemID != "" {
			item, ok := s.items[line.ItemID]
			if !ok {
				return nil, fmt.Errorf("%w: line %d references item %s", models.ErrUnknownItem, i+1, line.ItemID)
			}
			if line.ItemName == "" {
				line.ItemName = item.Name
			}
			if line.Rate.IsZero() && item.Type == models.ItemFixed && item.Rate != nil {
				line.Rate = *item.Rate
			}
		}
		out[i] = line
	}
	return out, nil
}

func (s *Store) priceBill(in BillInput) (*models.Customer, *calculator.BillTotals, error) {
	c, ok := s.customers[in.CustomerID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", models.ErrUnknownCustomer, in.CustomerID)
	}
	lines, err := s.resolveLines(in.Items)
	if err != nil {
		return nil, nil, err
	}
	totals, err := calculator.CalculateBill(lines, in.Discount)
	if err != nil {
		return nil, nil, err
	}
	for i := range totals.Lines {
		totals.Lines[i].ID = s.newID()
	}
	return c, totals, nil
}

// CreateBill validates and prices a new bill.
func (s *Store) CreateBill(in BillInput) (*models.Bill, error) {
	c, totals, err := s.priceBill(in)
	if err != nil {
		return nil, err
	}

	now := s.now()
	date := in.Date
	if date.IsZero() {
		date = now
	}
	b := &models.Bill{
		ID:           s.newID(),
		CustomerID:   c.ID,
		CustomerName: c.Name,
		Date:         date,
		Items:        totals.Lines,
		Discount:     totals.Discount,
		Subtotal:     totals.Subtotal,
		GrandTotal:   totals.GrandTotal,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.bills[b.ID] = b

	return b.Clone(), nil
}

// UpdateBill re-validates and replaces an existing bill, keeping its id and
// creation time.
func (s *Store) UpdateBill(id string, in BillInput) (*models.Bill, error) {
	b, ok := s.bills[id]
	if !ok {
		return nil, models.NotFound(models.KindBill, id)
	}
	c, totals, err := s.priceBill(in)
	if err != nil {
		return nil, err
	}

	if !in.Date.IsZero() {
		b.Date = in.Date
	}
	b.CustomerID = c.ID
	b.CustomerName = c.Name
	b.Items = totals.Lines
	b.Discount = totals.Discount
	b.Subtotal = totals.Subtotal
	b.GrandTotal = totals.GrandTotal
	b.UpdatedAt = s.now()

	return b.Clone(), nil
}

// DeleteBill moves a bill into quarantine.
func (s *Store) DeleteBill(id string) error {
	b, ok := s.bills[id]
	if !ok {
		return models.NotFound(models.KindBill, id)
	}
	label := fmt.Sprintf("Bill for %s - %s", b.CustomerName, b.GrandTotal.StringFixed(2))
	if err := s.forward(models.KindBill, b.ID, label, b.Clone()); err != nil {
		return err
	}
	delete(s.bills, id)
	return nil
}

// repairBillName re-derives the denormalized customer name when it drifted.
func (s *Store) repairBillName(b *models.Bill) {
	c, ok := s.customers[b.CustomerID]
	if !ok || c.Name == b.CustomerName {
		return
	}
	s.logger.Warn("Repaired stale customer name on bill",
		"bill_id", b.ID,
		"customer_id", c.ID,
		"stored", b.CustomerName,
		"current", c.Name,
	)
	b.CustomerName = c.Name
}

// Bill returns a copy of an active bill.
func (s *Store) Bill(id string) (*models.Bill, error) {
	b, ok := s.bills[id]
	if !ok {
		return nil, models.NotFound(models.KindBill, id)
	}
	s.repairBillName(b)
	return b.Clone(), nil
}

// Bills returns copies of all active bills, oldest first.
func (s *Store) Bills() []*models.Bill {
	return s.filterBills(func(*models.Bill) bool { return true })
}

// BillsByCustomer returns copies of the customer's active bills, oldest first.
func (s *Store) BillsByCustomer(customerID string) []*models.Bill {
	return s.filterBills(func(b *models.Bill) bool { return b.CustomerID == customerID })
}

func (s *Store) filterBills(keep func(*models.Bill) bool) []*models.Bill {
	out := make([]*models.Bill, 0, len(s.bills))
	for _, b := range s.bills {
		if !keep(b) {
			continue
		}
		s.repairBillName(b)
		out = append(out, b.Clone())
	}
	sortBills(out)
	return out
}
