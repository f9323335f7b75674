package datastore

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mmynk/billbook/internal/models"
)

// ItemInput carries the editable fields of a catalog item.
type ItemInput struct {
	Name string
	Type models.ItemType
	Rate *decimal.Decimal
}

func (s *Store) validateItem(in ItemInput, selfID string) (string, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return "", models.Invalid(models.ErrInvalidItem, "name", "item name cannot be blank")
	}
	if !in.Type.Valid() {
		return "", models.Invalid(models.ErrInvalidItem, "type", "unknown item type %q", in.Type)
	}
	switch in.Type {
	case models.ItemFixed:
		if in.Rate == nil || !in.Rate.IsPositive() {
			return "", models.Invalid(models.ErrInvalidItem, "rate", "fixed item %q needs a positive rate", name)
		}
	case models.ItemVariable:
		if in.Rate != nil {
			return "", models.Invalid(models.ErrInvalidItem, "rate", "variable item %q cannot carry a rate", name)
		}
	}
	if existing := s.itemByName(name); existing != nil && existing.ID != selfID {
		return "", models.Invalid(models.ErrDuplicateName, "name", "item %q already exists", existing.Name)
	}
	return name, nil
}

func copyRate(r *decimal.Decimal) *decimal.Decimal {
	if r == nil {
		return nil
	}
	v := *r
	return &v
}

func copyItem(it *models.Item) *models.Item {
	cp := *it
	cp.Rate = copyRate(it.Rate)
	return &cp
}

func (s *Store) recordRate(it *models.Item, old *decimal.Decimal) {
	s.rateHistory = append(s.rateHistory, models.ItemRateHistory{
		ID:        s.newID(),
		ItemID:    it.ID,
		ItemName:  it.Name,
		OldRate:   copyRate(old),
		NewRate:   *it.Rate,
		ChangedAt: it.UpdatedAt,
	})
}

// CreateItem adds a catalog item. Fixed items start their rate history.
func (s *Store) CreateItem(in ItemInput) (*models.Item, error) {
	name, err := s.validateItem(in, "")
	if err != nil {
		return nil, err
	}

	now := s.now()
	it := &models.Item{
		ID:        s.newID(),
		Name:      name,
		Type:      in.Type,
		Rate:      copyRate(in.Rate),
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.items[it.ID] = it
	if it.Type == models.ItemFixed {
		s.recordRate(it, nil)
	}

	return copyItem(it), nil
}

// UpdateItem replaces a catalog item. A changed fixed rate is appended to
// the rate history.
func (s *Store) UpdateItem(id string, in ItemInput) (*models.Item, error) {
	it, ok := s.items[id]
	if !ok {
		return nil, models.NotFound(models.KindItem, id)
	}
	name, err := s.validateItem(in, id)
	if err != nil {
		return nil, err
	}

	old := copyRate(it.Rate)
	it.Name = name
	it.Type = in.Type
	it.Rate = copyRate(in.Rate)
	it.UpdatedAt = s.now()

	if it.Rate != nil && (old == nil || !old.Equal(*it.Rate)) {
		s.recordRate(it, old)
	}

	return copyItem(it), nil
}

// DeleteItem moves a catalog item into quarantine. Bills that used it keep
// their copied name and rate.
func (s *Store) DeleteItem(id string) error {
	it, ok := s.items[id]
	if !ok {
		return models.NotFound(models.KindItem, id)
	}
	if err := s.forward(models.KindItem, it.ID, it.Name, copyItem(it)); err != nil {
		return err
	}
	delete(s.items, id)
	return nil
}

// Item returns a copy of an active catalog item.
func (s *Store) Item(id string) (*models.Item, error) {
	it, ok := s.items[id]
	if !ok {
		return nil, models.NotFound(models.KindItem, id)
	}
	return copyItem(it), nil
}

// Items returns copies of all active catalog items ordered by name.
func (s *Store) Items() []*models.Item {
	out := make([]*models.Item, 0, len(s.items))
	for _, it := range s.items {
		out = append(out, copyItem(it))
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

// ItemRateHistory returns the rate history of one item, or of every item
// when itemID is empty, oldest change first.
func (s *Store) ItemRateHistory(itemID string) []models.ItemRateHistory {
	out := make([]models.ItemRateHistory, 0, len(s.rateHistory))
	for _, h := range s.rateHistory {
		if itemID != "" && h.ItemID != itemID {
			continue
		}
		h.OldRate = copyRate(h.OldRate)
		out = append(out, h)
	}
	return out
}
