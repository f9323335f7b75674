package datastore

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/mmynk/billbook/internal/models"
)

// State is a full copy of the active collections. Slices are ordered by id
// (rate history by time of change) so encoding a State is deterministic.
type State struct {
	Customers       []models.Customer        `json:"customers"`
	Bills           []models.Bill            `json:"bills"`
	Payments        []models.Payment         `json:"payments"`
	Items           []models.Item            `json:"items"`
	ItemRateHistory []models.ItemRateHistory `json:"itemRateHistory"`
}

// Export returns a deep copy of every active collection.
func (s *Store) Export() State {
	st := State{
		Customers:       make([]models.Customer, 0, len(s.customers)),
		Bills:           make([]models.Bill, 0, len(s.bills)),
		Payments:        make([]models.Payment, 0, len(s.payments)),
		Items:           make([]models.Item, 0, len(s.items)),
		ItemRateHistory: s.ItemRateHistory(""),
	}
	for _, c := range s.customers {
		st.Customers = append(st.Customers, *c)
	}
	for _, b := range s.bills {
		st.Bills = append(st.Bills, *b.Clone())
	}
	for _, p := range s.payments {
		st.Payments = append(st.Payments, *p)
	}
	for _, it := range s.items {
		st.Items = append(st.Items, *copyItem(it))
	}

	sort.Slice(st.Customers, func(i, j int) bool { return st.Customers[i].ID < st.Customers[j].ID })
	sort.Slice(st.Bills, func(i, j int) bool { return st.Bills[i].ID < st.Bills[j].ID })
	sort.Slice(st.Payments, func(i, j int) bool { return st.Payments[i].ID < st.Payments[j].ID })
	sort.Slice(st.Items, func(i, j int) bool { return st.Items[i].ID < st.Items[j].ID })
	return st
}

// Replace validates st and, only if it is fully valid, swaps it in as the
// new content of every collection. On error the store is unchanged.
//
// Bills and payments may reference customers that are not in st (their
// customer may be in quarantine); callers that need strict referential
// integrity check it themselves.
func (s *Store) Replace(st State) error {
	customers := make(map[string]*models.Customer, len(st.Customers))
	names := make(map[string]string)
	for i := range st.Customers {
		c := st.Customers[i]
		if c.ID == "" {
			return models.Invalid(models.ErrIntegrity, "customers", "customer %d has no id", i)
		}
		if _, dup := customers[c.ID]; dup {
			return models.Invalid(models.ErrIntegrity, "customers", "duplicate customer id %s", c.ID)
		}
		key := models.NameKey(c.Name)
		if key == "" {
			return models.Invalid(models.ErrIntegrity, "customers", "customer %s has a blank name", c.ID)
		}
		if other, dup := names[key]; dup {
			return models.Invalid(models.ErrIntegrity, "customers", "customers %s and %s share the name %q", other, c.ID, c.Name)
		}
		names[key] = c.ID
		customers[c.ID] = &c
	}

	items := make(map[string]*models.Item, len(st.Items))
	itemNames := make(map[string]string)
	for i := range st.Items {
		it := st.Items[i]
		if it.ID == "" {
			return models.Invalid(models.ErrIntegrity, "items", "item %d has no id", i)
		}
		if _, dup := items[it.ID]; dup {
			return models.Invalid(models.ErrIntegrity, "items", "duplicate item id %s", it.ID)
		}
		if err := checkItem(it); err != nil {
			return err
		}
		key := models.NameKey(it.Name)
		if other, dup := itemNames[key]; dup {
			return models.Invalid(models.ErrIntegrity, "items", "items %s and %s share the name %q", other, it.ID, it.Name)
		}
		itemNames[key] = it.ID
		items[it.ID] = copyItem(&it)
	}

	bills := make(map[string]*models.Bill, len(st.Bills))
	for i := range st.Bills {
		b := st.Bills[i]
		if b.ID == "" {
			return models.Invalid(models.ErrIntegrity, "bills", "bill %d has no id", i)
		}
		if _, dup := bills[b.ID]; dup {
			return models.Invalid(models.ErrIntegrity, "bills", "duplicate bill id %s", b.ID)
		}
		if err := checkBill(b); err != nil {
			return err
		}
		bills[b.ID] = b.Clone()
	}

	payments := make(map[string]*models.Payment, len(st.Payments))
	for i := range st.Payments {
		p := st.Payments[i]
		if p.ID == "" {
			return models.Invalid(models.ErrIntegrity, "payments", "payment %d has no id", i)
		}
		if _, dup := payments[p.ID]; dup {
			return models.Invalid(models.ErrIntegrity, "payments", "duplicate payment id %s", p.ID)
		}
		if !p.Amount.IsPositive() {
			return models.Invalid(models.ErrIntegrity, "payments", "payment %s has non-positive amount %s", p.ID, p.Amount)
		}
		payments[p.ID] = &p
	}

	history := make([]models.ItemRateHistory, len(st.ItemRateHistory))
	for i, h := range st.ItemRateHistory {
		h.OldRate = copyRate(h.OldRate)
		history[i] = h
	}
	sort.SliceStable(history, func(i, j int) bool { return history[i].ChangedAt.Before(history[j].ChangedAt) })

	s.customers = customers
	s.items = items
	s.bills = bills
	s.payments = payments
	s.rateHistory = history
	return nil
}

func checkItem(it models.Item) error {
	if models.NameKey(it.Name) == "" || !it.Type.Valid() {
		return models.Invalid(models.ErrIntegrity, "items", "item %s has a blank name or unknown type", it.ID)
	}
	fixed := it.Type == models.ItemFixed
	hasRate := it.Rate != nil && it.Rate.IsPositive()
	if fixed != hasRate || (!fixed && it.Rate != nil) {
		return models.Invalid(models.ErrIntegrity, "items", "item %s breaks the fixed/variable rate rule", it.ID)
	}
	return nil
}

// checkBill recomputes every total of a stored bill.
func checkBill(b models.Bill) error {
	if b.CustomerID == "" {
		return models.Invalid(models.ErrIntegrity, "bills", "bill %s has no customer", b.ID)
	}
	subtotal := decimal.Zero
	for _, line := range b.Items {
		if !line.Quantity.IsPositive() || !line.Rate.IsPositive() || models.NameKey(line.ItemName) == "" {
			return models.Invalid(models.ErrIntegrity, "bills", "bill %s has an invalid line %q", b.ID, line.ItemName)
		}
		if !line.Quantity.Mul(line.Rate).Equal(line.Total) {
			return models.Invalid(models.ErrIntegrity, "bills", "bill %s line %q total %s != %s × %s",
				b.ID, line.ItemName, line.Total, line.Quantity, line.Rate)
		}
		subtotal = subtotal.Add(line.Total)
	}
	if !subtotal.Equal(b.Subtotal) {
		return models.Invalid(models.ErrIntegrity, "bills", "bill %s subtotal %s != %s", b.ID, b.Subtotal, subtotal)
	}
	if b.Discount.IsNegative() || !b.Subtotal.Sub(b.Discount).Equal(b.GrandTotal) {
		return models.Invalid(models.ErrIntegrity, "bills", "bill %s grand total %s != %s - %s",
			b.ID, b.GrandTotal, b.Subtotal, b.Discount)
	}
	return nil
}
