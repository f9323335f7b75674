package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/billbook/internal/storage"
)

func TestSQLiteStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "test.db")
	store, err := New(dbPath)
	require.NoError(t, err, "failed to create store")
	defer store.Close()

	ctx := context.Background()

	t.Run("Load of unknown key reports not found", func(t *testing.T) {
		_, err := store.Load(ctx, storage.KeyCustomers)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("Save then Load returns the payload", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, storage.KeyCustomers, []byte(`[{"id":"c1"}]`)))

		got, err := store.Load(ctx, storage.KeyCustomers)
		require.NoError(t, err)
		assert.JSONEq(t, `[{"id":"c1"}]`, string(got))
	})

	t.Run("Save overwrites", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, storage.KeyCustomers, []byte(`[]`)))

		got, err := store.Load(ctx, storage.KeyCustomers)
		require.NoError(t, err)
		assert.Equal(t, `[]`, string(got))
	})

	t.Run("SaveAll writes every collection", func(t *testing.T) {
		err := store.SaveAll(ctx, map[string][]byte{
			storage.KeyBills:    []byte(`["b"]`),
			storage.KeyPayments: []byte(`["p"]`),
		})
		require.NoError(t, err)

		for key, want := range map[string]string{storage.KeyBills: `["b"]`, storage.KeyPayments: `["p"]`} {
			got, err := store.Load(ctx, key)
			require.NoError(t, err)
			assert.Equal(t, want, string(got))
		}
	})

	t.Run("SaveAll with cancelled context writes nothing", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		err := store.SaveAll(cctx, map[string][]byte{storage.KeyItems: []byte(`["i"]`)})
		assert.Error(t, err)

		_, err = store.Load(ctx, storage.KeyItems)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestSQLiteStoreReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	first, err := New(dbPath)
	require.NoError(t, err)
	require.NoError(t, first.Save(ctx, storage.KeyRecycleBin, []byte(`["r"]`)))
	require.NoError(t, first.Close())

	// migrations must be a no-op the second time
	second, err := New(dbPath)
	require.NoError(t, err)
	defer second.Close()

	got, err := second.Load(ctx, storage.KeyRecycleBin)
	require.NoError(t, err)
	assert.Equal(t, `["r"]`, string(got))
}
