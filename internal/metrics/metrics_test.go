package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestMetrics(t *testing.T) {
	m := New()
	m.SourceRefreshed("seed", nil)
	m.SourceRefreshed("seed", nil)
	m.SourceRefreshed("feed", errors.New("down"))
	m.SetRecords(3, 2)
	m.HTTPRequest("/api/events", http.StatusOK)

	out := scrape(t, m)
	for _, want := range []string{
		`evcal_source_refresh_total{result="ok",source="seed"} 2`,
		`evcal_source_refresh_total{result="error",source="feed"} 1`,
		`evcal_store_records{kind="event"} 3`,
		`evcal_store_records{kind="holiday"} 2`,
		`evcal_http_requests_total{code="200",route="/api/events"} 1`,
		"go_goroutines",
	} {
		assert.Contains(t, out, want)
	}
}

func TestMetrics_Nil(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.SourceRefreshed("x", nil)
		m.SetRecords(1, 1)
		m.HTTPRequest("/", 200)
	})
	assert.Nil(t, m.Registry())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
