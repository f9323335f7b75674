package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/billbook/internal/storage"
)

func TestStore(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.Load(ctx, storage.KeyBills)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	payload := []byte(`["b"]`)
	require.NoError(t, s.Save(ctx, storage.KeyBills, payload))
	payload[1] = 'x'

	got, err := s.Load(ctx, storage.KeyBills)
	require.NoError(t, err)
	assert.Equal(t, `["b"]`, string(got), "stored payload is a copy")

	boom := errors.New("disk full")
	s.FailSaves(boom)
	assert.ErrorIs(t, s.SaveAll(ctx, map[string][]byte{storage.KeyBills: []byte(`[]`)}), boom)
	got, err = s.Load(ctx, storage.KeyBills)
	require.NoError(t, err)
	assert.Equal(t, `["b"]`, string(got))

	s.FailSaves(nil)
	assert.NoError(t, s.Save(ctx, storage.KeyBills, []byte(`[]`)))
}
