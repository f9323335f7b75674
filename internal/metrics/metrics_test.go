package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Mutations.WithLabelValues("bill", "create").Inc()
	m.Mutations.WithLabelValues("bill", "create").Inc()
	m.QuarantineSize.Set(3)
	m.Purged.Add(2)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Mutations.WithLabelValues("bill", "create")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.QuarantineSize))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Purged))

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `billbook_mutations_total{kind="bill",op="create"} 2`)
	assert.Contains(t, string(body), "billbook_recycle_entries 3")
}

func TestNewTwiceOnSameRegistryPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
