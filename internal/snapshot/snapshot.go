// Package snapshot exports the whole entity store as a versioned,
// checksummed document and restores such documents with validate-then-swap
// semantics.
//
// The checksum is the hex SHA-256 of the compact JSON encoding of the data
// section. Data is kept as raw bytes end to end so the digest can be
// recomputed over exactly what was hashed at export.
package snapshot

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/billbook/internal/datastore"
	"github.com/mmynk/billbook/internal/models"
)

// Version is the snapshot format version written by Create and accepted by
// Restore.
const Version = 1

// Store is the state a Manager exports and replaces.
// *datastore.Store implements it.
type Store interface {
	Export() datastore.State
	Replace(datastore.State) error
}

// Snapshot is the serialized form of the store.
type Snapshot struct {
	Version   int             `json:"version"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
	Metadata  Metadata        `json:"metadata"`
}

// Counts holds the number of records per collection.
type Counts struct {
	Customers       int `json:"customers"`
	Bills           int `json:"bills"`
	Payments        int `json:"payments"`
	Items           int `json:"items"`
	ItemRateHistory int `json:"itemRateHistory"`
}

// DateRange spans the earliest and latest bill or payment date. Both ends
// are nil for a store without transactions.
type DateRange struct {
	From *time.Time `json:"from,omitempty"`
	To   *time.Time `json:"to,omitempty"`
}

// Metadata summarizes a snapshot.
type Metadata struct {
	Checksum      string          `json:"checksum"`
	Counts        Counts          `json:"counts"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	TotalPayments decimal.Decimal `json:"totalPayments"`
	DateRange     DateRange       `json:"dateRange"`
}

// Dropped identifies a record left out of a snapshot because its customer
// is not active.
type Dropped struct {
	Kind       models.EntityKind `json:"kind"`
	ID         string            `json:"id"`
	CustomerID string            `json:"customerId"`
}

// Result is what Create returns.
type Result struct {
	Snapshot *Snapshot
	Metadata Metadata
	Dropped  []Dropped
}

// Manager creates and restores snapshots of a Store.
type Manager struct {
	store  Store
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source used for snapshot timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// NewManager creates a Manager over store.
func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create exports the store. Bills and payments whose customer is not
// active are dropped and logged instead of failing the export.
func (m *Manager) Create() (*Result, error) {
	st := m.store.Export()
	st, dropped := dropDangling(st)
	for _, d := range dropped {
		m.logger.Warn("Dropping record with missing customer from snapshot",
			"kind", d.Kind, "id", d.ID, "customer_id", d.CustomerID)
	}

	data, err := json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot data: %w", err)
	}
	meta := summarize(st)
	meta.Checksum = Checksum(data)

	snap := &Snapshot{
		Version:   Version,
		Timestamp: m.now().UTC(),
		Data:      data,
		Metadata:  meta,
	}
	m.logger.Info("Snapshot created",
		"customers", meta.Counts.Customers,
		"bills", meta.Counts.Bills,
		"payments", meta.Counts.Payments,
		"dropped", len(dropped))
	return &Result{Snapshot: snap, Metadata: meta, Dropped: dropped}, nil
}

// Restore verifies snap and replaces the store's collections with its data
// in one step. Any failure leaves the store untouched; integrity problems
// wrap models.ErrIntegrity.
func (m *Manager) Restore(snap *Snapshot) error {
	st, err := Verify(snap)
	if err != nil {
		m.logger.Error("Snapshot rejected", "error", err)
		return err
	}
	if err := m.store.Replace(*st); err != nil {
		m.logger.Error("Snapshot rejected", "error", err)
		return err
	}
	m.logger.Info("Snapshot restored",
		"timestamp", snap.Timestamp,
		"customers", len(st.Customers),
		"bills", len(st.Bills),
		"payments", len(st.Payments))
	return nil
}

// Verify checks version, checksum, counts and customer references of snap
// and decodes its data.
// It does not touch any store.
func Verify(snap *Snapshot) (*datastore.State, error) {
	if snap == nil {
		return nil, fmt.Errorf("%w: empty snapshot", models.ErrIntegrity)
	}
	if snap.Version != Version {
		return nil, fmt.Errorf("%w: unsupported snapshot version %d", models.ErrIntegrity, snap.Version)
	}
	if len(snap.Data) == 0 {
		return nil, fmt.Errorf("%w: snapshot has no data", models.ErrIntegrity)
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, snap.Data); err != nil {
		return nil, fmt.Errorf("%w: malformed snapshot data: %v", models.ErrIntegrity, err)
	}
	if sum := Checksum(compact.Bytes()); sum != snap.Metadata.Checksum {
		return nil, fmt.Errorf("%w: checksum mismatch: got %s, want %s",
			models.ErrIntegrity, sum, snap.Metadata.Checksum)
	}

	var st datastore.State
	if err := json.Unmarshal(compact.Bytes(), &st); err != nil {
		return nil, fmt.Errorf("%w: failed to decode snapshot data: %v", models.ErrIntegrity, err)
	}
	if got := countState(st); got != snap.Metadata.Counts {
		return nil, fmt.Errorf("%w: record counts %+v do not match metadata %+v",
			models.ErrIntegrity, got, snap.Metadata.Counts)
	}
	if err := checkReferences(st); err != nil {
		return nil, err
	}
	return &st, nil
}

// checkReferences rejects bills and payments whose customer is not part of
// the same data.
func checkReferences(st datastore.State) error {
	customers := make(map[string]bool, len(st.Customers))
	for _, c := range st.Customers {
		customers[c.ID] = true
	}
	for _, b := range st.Bills {
		if !customers[b.CustomerID] {
			return fmt.Errorf("%w: bill %s references missing customer %s", models.ErrIntegrity, b.ID, b.CustomerID)
		}
	}
	for _, p := range st.Payments {
		if !customers[p.CustomerID] {
			return fmt.Errorf("%w: payment %s references missing customer %s", models.ErrIntegrity, p.ID, p.CustomerID)
		}
	}
	return nil
}

// Checksum returns the hex SHA-256 digest of data.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func dropDangling(st datastore.State) (datastore.State, []Dropped) {
	active := make(map[string]bool, len(st.Customers))
	for _, c := range st.Customers {
		active[c.ID] = true
	}

	var dropped []Dropped
	bills := make([]models.Bill, 0, len(st.Bills))
	for _, b := range st.Bills {
		if !active[b.CustomerID] {
			dropped = append(dropped, Dropped{Kind: models.KindBill, ID: b.ID, CustomerID: b.CustomerID})
			continue
		}
		bills = append(bills, b)
	}
	payments := make([]models.Payment, 0, len(st.Payments))
	for _, p := range st.Payments {
		if !active[p.CustomerID] {
			dropped = append(dropped, Dropped{Kind: models.KindPayment, ID: p.ID, CustomerID: p.CustomerID})
			continue
		}
		payments = append(payments, p)
	}
	st.Bills = bills
	st.Payments = payments
	return st, dropped
}

func countState(st datastore.State) Counts {
	return Counts{
		Customers:       len(st.Customers),
		Bills:           len(st.Bills),
		Payments:        len(st.Payments),
		Items:           len(st.Items),
		ItemRateHistory: len(st.ItemRateHistory),
	}
}

func summarize(st datastore.State) Metadata {
	meta := Metadata{
		Counts:        countState(st),
		TotalAmount:   decimal.Zero,
		TotalPayments: decimal.Zero,
	}
	widen := func(t time.Time) {
		if meta.DateRange.From == nil || t.Before(*meta.DateRange.From) {
			from := t
			meta.DateRange.From = &from
		}
		if meta.DateRange.To == nil || t.After(*meta.DateRange.To) {
			to := t
			meta.DateRange.To = &to
		}
	}
	for _, b := range st.Bills {
		meta.TotalAmount = meta.TotalAmount.Add(b.GrandTotal)
		widen(b.Date)
	}
	for _, p := range st.Payments {
		meta.TotalPayments = meta.TotalPayments.Add(p.Amount)
		widen(p.Date)
	}
	return meta
}
