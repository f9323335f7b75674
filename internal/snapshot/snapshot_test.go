package snapshot

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/billbook/internal/calculator"
	"github.com/mmynk/billbook/internal/datastore"
	"github.com/mmynk/billbook/internal/models"
	"github.com/mmynk/billbook/internal/recycle"
)

var testNow = time.Date(2024, time.February, 20, 12, 0, 0, 0, time.UTC)

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func newStore(t *testing.T) *datastore.Store {
	t.Helper()
	seq := 0
	clock := func() time.Time { return testNow }
	s := datastore.New(
		datastore.WithClock(clock),
		datastore.WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("id-%03d", seq)
		}),
	)
	s.SetQuarantine(recycle.New(s, recycle.WithClock(clock)))
	return s
}

// seeded returns a store holding one customer with a bill in January and a
// payment in February, plus a catalog item.
func seeded(t *testing.T) *datastore.Store {
	t.Helper()
	s := newStore(t)
	c, err := s.CreateCustomer(datastore.CustomerInput{Name: "Acme"})
	require.NoError(t, err)
	rate := dec("250")
	item, err := s.CreateItem(datastore.ItemInput{Name: "Delivery", Type: models.ItemFixed, Rate: &rate})
	require.NoError(t, err)
	_, err = s.CreateBill(datastore.BillInput{
		CustomerID: c.ID,
		Date:       time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC),
		Items: []calculator.Line{
			{ItemName: "Rice", Quantity: dec("3"), Rate: dec("250")},
			{ItemID: item.ID, Quantity: dec("1")},
		},
	})
	require.NoError(t, err)
	_, err = s.CreatePayment(datastore.PaymentInput{
		CustomerID: c.ID,
		Amount:     dec("400"),
		Date:       time.Date(2024, time.February, 3, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return s
}

func exportJSON(t *testing.T, s *datastore.Store) []byte {
	t.Helper()
	data, err := json.Marshal(s.Export())
	require.NoError(t, err)
	return data
}

func TestCreate(t *testing.T) {
	s := seeded(t)
	m := NewManager(s, WithClock(func() time.Time { return testNow }))

	res, err := m.Create()
	require.NoError(t, err)
	assert.Empty(t, res.Dropped)

	snap := res.Snapshot
	assert.Equal(t, Version, snap.Version)
	assert.Equal(t, testNow, snap.Timestamp)
	assert.Equal(t, res.Metadata, snap.Metadata)
	assert.Equal(t, Checksum(snap.Data), snap.Metadata.Checksum)
	assert.Len(t, snap.Metadata.Checksum, 64)

	meta := snap.Metadata
	assert.Equal(t, Counts{Customers: 1, Bills: 1, Payments: 1, Items: 1, ItemRateHistory: 1}, meta.Counts)
	assert.True(t, meta.TotalAmount.Equal(dec("1000")), meta.TotalAmount.String())
	assert.True(t, meta.TotalPayments.Equal(dec("400")), meta.TotalPayments.String())
	require.NotNil(t, meta.DateRange.From)
	require.NotNil(t, meta.DateRange.To)
	assert.Equal(t, time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC), *meta.DateRange.From)
	assert.Equal(t, time.Date(2024, time.February, 3, 0, 0, 0, 0, time.UTC), *meta.DateRange.To)

	again, err := m.Create()
	require.NoError(t, err)
	assert.Equal(t, snap.Metadata.Checksum, again.Snapshot.Metadata.Checksum, "checksum is deterministic")
}

func TestCreateEmptyStore(t *testing.T) {
	res, err := NewManager(newStore(t)).Create()
	require.NoError(t, err)
	assert.Equal(t, Counts{}, res.Metadata.Counts)
	assert.Nil(t, res.Metadata.DateRange.From)
	assert.True(t, res.Metadata.TotalAmount.IsZero())
}

func TestCreateDropsDanglingRecords(t *testing.T) {
	s := seeded(t)
	gone, err := s.CreateCustomer(datastore.CustomerInput{Name: "Gone"})
	require.NoError(t, err)
	bill, err := s.CreateBill(datastore.BillInput{
		CustomerID: gone.ID,
		Items:      []calculator.Line{{ItemName: "Tea", Quantity: dec("1"), Rate: dec("5")}},
	})
	require.NoError(t, err)
	payment, err := s.CreatePayment(datastore.PaymentInput{CustomerID: gone.ID, Amount: dec("5")})
	require.NoError(t, err)
	require.NoError(t, s.DeleteCustomer(gone.ID))

	res, err := NewManager(s).Create()
	require.NoError(t, err)

	assert.ElementsMatch(t, []Dropped{
		{Kind: models.KindBill, ID: bill.ID, CustomerID: gone.ID},
		{Kind: models.KindPayment, ID: payment.ID, CustomerID: gone.ID},
	}, res.Dropped)
	assert.Equal(t, 1, res.Metadata.Counts.Bills)
	assert.Equal(t, 1, res.Metadata.Counts.Payments)
	assert.NotContains(t, string(res.Snapshot.Data), bill.ID)

	// the live store keeps them
	_, err = s.Bill(bill.ID)
	assert.NoError(t, err)
}

func TestRestoreRoundTrip(t *testing.T) {
	src := seeded(t)
	res, err := NewManager(src).Create()
	require.NoError(t, err)

	dst := newStore(t)
	require.NoError(t, NewManager(dst).Restore(res.Snapshot))
	assert.JSONEq(t, string(exportJSON(t, src)), string(exportJSON(t, dst)))

	again, err := NewManager(dst).Create()
	require.NoError(t, err)
	assert.Equal(t, res.Metadata.Checksum, again.Metadata.Checksum)
}

func TestRestoreRejects(t *testing.T) {
	src := seeded(t)
	res, err := NewManager(src).Create()
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Snapshot)
	}{
		{
			name: "tampered data",
			mutate: func(s *Snapshot) {
				s.Data = bytes.Replace(s.Data, []byte(`"400"`), []byte(`"40"`), 1)
			},
		},
		{
			name: "tampered checksum",
			mutate: func(s *Snapshot) {
				s.Metadata.Checksum = Checksum([]byte("something else"))
			},
		},
		{
			name:   "unsupported version",
			mutate: func(s *Snapshot) { s.Version = Version + 1 },
		},
		{
			name:   "count mismatch",
			mutate: func(s *Snapshot) { s.Metadata.Counts.Bills = 7 },
		},
		{
			name:   "no data",
			mutate: func(s *Snapshot) { s.Data = nil },
		},
		{
			name: "invalid content with matching checksum",
			mutate: func(s *Snapshot) {
				s.Data = bytes.Replace(s.Data, []byte(`"grandTotal":"1000"`), []byte(`"grandTotal":"1"`), 1)
				s.Metadata.Checksum = Checksum(s.Data)
			},
		},
		{
			name: "bills and payments without their customer",
			mutate: func(s *Snapshot) {
				var st datastore.State
				require.NoError(t, json.Unmarshal(s.Data, &st))
				st.Customers = nil
				data, err := json.Marshal(st)
				require.NoError(t, err)
				s.Data = data
				s.Metadata.Checksum = Checksum(data)
				s.Metadata.Counts = countState(st)
			},
		},
		{
			name: "payment without its customer",
			mutate: func(s *Snapshot) {
				var st datastore.State
				require.NoError(t, json.Unmarshal(s.Data, &st))
				st.Payments[0].CustomerID = "gone"
				data, err := json.Marshal(st)
				require.NoError(t, err)
				s.Data = data
				s.Metadata.Checksum = Checksum(data)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := *res.Snapshot
			snap.Data = append(json.RawMessage(nil), res.Snapshot.Data...)
			tt.mutate(&snap)

			dst := seeded(t)
			extra, err := dst.CreateCustomer(datastore.CustomerInput{Name: "Keep me"})
			require.NoError(t, err)
			before := exportJSON(t, dst)

			err = NewManager(dst).Restore(&snap)
			assert.ErrorIs(t, err, models.ErrIntegrity)
			assert.True(t, dst.HasCustomer(extra.ID))
			assert.Equal(t, before, exportJSON(t, dst), "store must be untouched")
		})
	}
}

func TestVerifyAcceptsReformattedData(t *testing.T) {
	res, err := NewManager(seeded(t)).Create()
	require.NoError(t, err)

	var indented bytes.Buffer
	require.NoError(t, json.Indent(&indented, res.Snapshot.Data, "", "    "))
	snap := *res.Snapshot
	snap.Data = indented.Bytes()

	st, err := Verify(&snap)
	require.NoError(t, err)
	assert.Len(t, st.Customers, 1)
}

func TestEnvelope(t *testing.T) {
	ctx := context.Background()
	res, err := NewManager(seeded(t)).Create()
	require.NoError(t, err)

	t.Run("plain", func(t *testing.T) {
		env, err := Seal(ctx, res.Snapshot, "")
		require.NoError(t, err)
		assert.False(t, env.Encrypted())

		raw, err := base64.StdEncoding.DecodeString(env.CipherText)
		require.NoError(t, err)
		assert.Contains(t, string(raw), res.Metadata.Checksum)

		got, err := Open(ctx, env, "")
		require.NoError(t, err)
		assert.Equal(t, res.Metadata.Checksum, got.Metadata.Checksum)
		_, err = Verify(got)
		assert.NoError(t, err)
	})

	t.Run("encrypted", func(t *testing.T) {
		env, err := Seal(ctx, res.Snapshot, "correct horse")
		require.NoError(t, err)
		require.True(t, env.Encrypted())
		assert.Equal(t, Algorithm, env.Encryption.Algorithm)
		assert.Equal(t, EnvelopeVersion, env.Encryption.Version)
		assert.Equal(t, KDFIterations, env.Encryption.Iterations)

		raw, err := base64.StdEncoding.DecodeString(env.CipherText)
		require.NoError(t, err)
		assert.NotContains(t, string(raw), res.Metadata.Checksum)

		got, err := Open(ctx, env, "correct horse")
		require.NoError(t, err)
		_, err = Verify(got)
		assert.NoError(t, err)

		_, err = Open(ctx, env, "wrong")
		assert.ErrorIs(t, err, models.ErrIntegrity)

		_, err = Open(ctx, env, "")
		assert.ErrorIs(t, err, ErrPassphraseRequired)
	})

	t.Run("tampered cipher text", func(t *testing.T) {
		env, err := Seal(ctx, res.Snapshot, "pw")
		require.NoError(t, err)
		raw, err := base64.StdEncoding.DecodeString(env.CipherText)
		require.NoError(t, err)
		raw[len(raw)/2] ^= 0xff
		env.CipherText = base64.StdEncoding.EncodeToString(raw)

		_, err = Open(ctx, env, "pw")
		assert.ErrorIs(t, err, models.ErrIntegrity)
	})

	t.Run("unsupported algorithm", func(t *testing.T) {
		env, err := Seal(ctx, res.Snapshot, "pw")
		require.NoError(t, err)
		env.Encryption.Algorithm = "ROT13"
		_, err = Open(ctx, env, "pw")
		assert.ErrorIs(t, err, models.ErrIntegrity)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := Open(ctx, &Envelope{CipherText: "%%%"}, "")
		assert.ErrorIs(t, err, models.ErrIntegrity)
	})

	t.Run("cancelled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := Seal(cctx, res.Snapshot, "pw")
		assert.True(t, errors.Is(err, context.Canceled))
	})
}

func TestDir(t *testing.T) {
	ctx := context.Background()
	res, err := NewManager(seeded(t)).Create()
	require.NoError(t, err)
	env, err := Seal(ctx, res.Snapshot, "")
	require.NoError(t, err)

	t.Run("missing dir lists nothing", func(t *testing.T) {
		d := NewDir(filepath.Join(t.TempDir(), "nope"))
		backups, err := d.ListBackups()
		require.NoError(t, err)
		assert.Empty(t, backups)
	})

	t.Run("keeps the newest five", func(t *testing.T) {
		now := testNow
		d := NewDir(filepath.Join(t.TempDir(), "backups"), WithDirClock(func() time.Time { return now }))

		var written []string
		for i := 0; i < 7; i++ {
			info, err := d.WriteBackup(ctx, env)
			require.NoError(t, err)
			written = append(written, info.Name)
			now = now.Add(time.Hour)
		}

		backups, err := d.ListBackups()
		require.NoError(t, err)
		require.Len(t, backups, DefaultKeep)
		for i, b := range backups {
			assert.Equal(t, written[len(written)-1-i], b.Name)
		}
		assert.Equal(t, testNow.Add(6*time.Hour), backups[0].CreatedAt)

		_, err = os.Stat(filepath.Join(d.Path(), written[0]))
		assert.True(t, os.IsNotExist(err))

		leftovers, err := filepath.Glob(filepath.Join(d.Path(), "*.tmp"))
		require.NoError(t, err)
		assert.Empty(t, leftovers)
	})

	t.Run("ignores foreign files", func(t *testing.T) {
		d := NewDir(t.TempDir(), WithDirClock(func() time.Time { return testNow }))
		require.NoError(t, os.WriteFile(filepath.Join(d.Path(), "notes.txt"), []byte("x"), 0o644))
		_, err := d.WriteBackup(ctx, env)
		require.NoError(t, err)

		backups, err := d.ListBackups()
		require.NoError(t, err)
		assert.Len(t, backups, 1)
	})

	t.Run("full backup and restore", func(t *testing.T) {
		src := seeded(t)
		res, err := NewManager(src).Create()
		require.NoError(t, err)
		sealed, err := Seal(ctx, res.Snapshot, "secret")
		require.NoError(t, err)

		d := NewDir(t.TempDir())
		info, err := d.WriteBackup(ctx, sealed)
		require.NoError(t, err)

		loaded, err := d.ReadBackup(ctx, info.Name)
		require.NoError(t, err)
		snap, err := Open(ctx, loaded, "secret")
		require.NoError(t, err)

		dst := newStore(t)
		require.NoError(t, NewManager(dst).Restore(snap))
		assert.JSONEq(t, string(exportJSON(t, src)), string(exportJSON(t, dst)))
	})

	t.Run("corrupt file is an integrity failure", func(t *testing.T) {
		d := NewDir(t.TempDir(), WithDirClock(func() time.Time { return testNow }))
		info, err := d.WriteBackup(ctx, env)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(info.Path, []byte(`{"cipherText":`), 0o600))

		_, err = d.ReadBackup(ctx, info.Name)
		assert.ErrorIs(t, err, models.ErrIntegrity)
	})

	t.Run("rejects path names", func(t *testing.T) {
		d := NewDir(t.TempDir())
		_, err := d.ReadBackup(ctx, "../backup-2024-01-01T00-00-00.000000000Z.json")
		assert.Error(t, err)
		_, err = d.ReadBackup(ctx, "passwd")
		assert.Error(t, err)
	})
}
