// Package service is the single entry point collaborators use. It wires the
// entity store, the recycle bin, the snapshot manager, persistence and
// metrics, and serializes every operation behind one mutex.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mmynk/billbook/internal/datastore"
	"github.com/mmynk/billbook/internal/metrics"
	"github.com/mmynk/billbook/internal/models"
	"github.com/mmynk/billbook/internal/recycle"
	"github.com/mmynk/billbook/internal/snapshot"
	"github.com/mmynk/billbook/internal/storage"
	"github.com/mmynk/billbook/pkg/logging"
)

// dataKeys are the collections a snapshot covers.
var dataKeys = []string{
	storage.KeyCustomers,
	storage.KeyBills,
	storage.KeyPayments,
	storage.KeyItems,
	storage.KeyItemRateHistory,
}

// kindRecycleBin labels mutations of the recycle bin itself.
const kindRecycleBin models.EntityKind = "recycleBin"

// Service implements the ledger operations.
type Service struct {
	mu sync.Mutex

	persistence storage.Store
	store       *datastore.Store
	bin         *recycle.Bin
	snapshots   *snapshot.Manager
	backups     *snapshot.Dir

	loc       *time.Location
	now       func() time.Time
	metrics   *metrics.Metrics
	logger    *slog.Logger
	listeners []func()
}

type options struct {
	now     func() time.Time
	newID   func() string
	loc     *time.Location
	metrics *metrics.Metrics
	logger  *slog.Logger
	backups *snapshot.Dir
}

// Option configures a Service.
type Option func(*options)

// WithClock overrides the time source of every component.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithIDGenerator overrides entity and recycle bin id generation.
func WithIDGenerator(newID func() string) Option {
	return func(o *options) { o.newID = newID }
}

// WithLocation sets the zone month buckets are computed in.
func WithLocation(loc *time.Location) Option {
	return func(o *options) { o.loc = loc }
}

// WithMetrics sets the collectors to update. Without it the service
// registers its own on a private registry.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithBackupDir enables the file backup operations.
func WithBackupDir(dir *snapshot.Dir) Option {
	return func(o *options) { o.backups = dir }
}

// New builds a Service over persistence and loads every saved collection.
func New(ctx context.Context, persistence storage.Store, opts ...Option) (*Service, error) {
	o := options{
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
		loc:    time.Local,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.metrics == nil {
		o.metrics = metrics.New(prometheus.NewRegistry())
	}

	store := datastore.New(
		datastore.WithClock(o.now),
		datastore.WithIDGenerator(o.newID),
		datastore.WithLogger(logging.Component(o.logger, "datastore")),
	)
	bin := recycle.New(store,
		recycle.WithClock(o.now),
		recycle.WithIDGenerator(o.newID),
		recycle.WithLogger(logging.Component(o.logger, "recycle")),
	)
	store.SetQuarantine(bin)

	s := &Service{
		persistence: persistence,
		store:       store,
		bin:         bin,
		snapshots: snapshot.NewManager(store,
			snapshot.WithClock(o.now),
			snapshot.WithLogger(logging.Component(o.logger, "snapshot")),
		),
		backups: o.backups,
		loc:     o.loc,
		now:     o.now,
		metrics: o.metrics,
		logger:  logging.Component(o.logger, "service"),
	}
	bin.OnPurge(func(e models.RecycledItem) error {
		s.metrics.Purged.Inc()
		s.logger.Debug("Purging recycle bin entry", "recycle_id", e.ID, "type", e.Type, "entity_id", e.EntityID)
		return nil
	})

	if err := s.load(ctx); err != nil {
		return nil, err
	}
	s.metrics.QuarantineSize.Set(float64(bin.Len()))
	return s, nil
}

// Close releases the persistence backend.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistence.Close()
}

// load reads every collection from persistence into the store and bin.
// Missing collections are empty.
func (s *Service) load(ctx context.Context) error {
	var st datastore.State
	var entries []models.RecycledItem
	targets := map[string]any{
		storage.KeyCustomers:       &st.Customers,
		storage.KeyBills:           &st.Bills,
		storage.KeyPayments:        &st.Payments,
		storage.KeyItems:           &st.Items,
		storage.KeyItemRateHistory: &st.ItemRateHistory,
		storage.KeyRecycleBin:      &entries,
	}
	for _, key := range storage.Keys {
		dst, ok := targets[key]
		if !ok {
			// derived collections are rebuilt, not loaded
			continue
		}
		data, err := s.persistence.Load(ctx, key)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", key, err)
		}
		if err := json.Unmarshal(data, dst); err != nil {
			return fmt.Errorf("%w: failed to decode stored %s: %v", models.ErrIntegrity, key, err)
		}
	}

	if err := s.store.Replace(st); err != nil {
		return fmt.Errorf("failed to load stored collections: %w", err)
	}
	if err := s.bin.Replace(entries); err != nil {
		return fmt.Errorf("failed to load recycle bin: %w", err)
	}
	s.logger.Info("Loaded collections",
		"customers", len(st.Customers),
		"bills", len(st.Bills),
		"payments", len(st.Payments),
		"items", len(st.Items),
		"recycled", len(entries))
	return nil
}

// encode serializes the named collections plus businessAnalytics.
func (s *Service) encode(keys []string) (map[string][]byte, error) {
	st := s.store.Export()
	all := append(append([]string(nil), keys...), storage.KeyBusinessAnalytics)
	out := make(map[string][]byte, len(all))
	for _, key := range all {
		var v any
		switch key {
		case storage.KeyCustomers:
			v = st.Customers
		case storage.KeyBills:
			v = st.Bills
		case storage.KeyPayments:
			v = st.Payments
		case storage.KeyItems:
			v = st.Items
		case storage.KeyItemRateHistory:
			v = st.ItemRateHistory
		case storage.KeyRecycleBin:
			v = s.bin.Export()
		case storage.KeyBusinessAnalytics:
			v = s.analytics()
		default:
			return nil, fmt.Errorf("unknown collection %q", key)
		}
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", key, err)
		}
		out[key] = data
	}
	return out, nil
}

func (s *Service) persist(ctx context.Context, keys ...string) error {
	collections, err := s.encode(keys)
	if err != nil {
		return err
	}
	if err := s.persistence.SaveAll(ctx, collections); err != nil {
		s.metrics.StoreErrors.Inc()
		return fmt.Errorf("failed to persist changes: %w", err)
	}
	return nil
}

type checkpoint struct {
	state datastore.State
	bin   []models.RecycledItem
}

func (s *Service) checkpoint() checkpoint {
	return checkpoint{state: s.store.Export(), bin: s.bin.Export()}
}

// rollback puts back a checkpoint taken earlier in the same operation.
func (s *Service) rollback(cp checkpoint) {
	if err := s.store.Replace(cp.state); err != nil {
		s.logger.Error("Rollback of entity store failed", "error", err)
	}
	if err := s.bin.Replace(cp.bin); err != nil {
		s.logger.Error("Rollback of recycle bin failed", "error", err)
	}
}

// mutate runs fn and persists keys. When persisting fails the in-memory
// state goes back to what it was before fn.
func (s *Service) mutate(ctx context.Context, kind models.EntityKind, op string, keys []string, fn func() error) error {
	cp := s.checkpoint()
	if err := fn(); err != nil {
		return err
	}
	if err := s.persist(ctx, keys...); err != nil {
		s.rollback(cp)
		return err
	}
	s.metrics.Mutations.WithLabelValues(string(kind), op).Inc()
	s.metrics.QuarantineSize.Set(float64(s.bin.Len()))
	return nil
}
