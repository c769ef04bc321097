package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, reg *prometheus.Registry) string {
	t.Helper()
	rec := httptest.NewRecorder()
	HandlerFor(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestNewRegistersOnGivenRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.QueriesTotal.WithLabelValues("bm25", OutcomeOK).Inc()
	m.QueriesTotal.WithLabelValues("bm25", OutcomeOK).Inc()
	m.ParseWarningsTotal.Add(3)
	m.CacheHitsTotal.Inc()

	body := scrape(t, reg)
	assert.Contains(t, body, `qryeval_queries_total{model="bm25",outcome="ok"} 2`)
	assert.Contains(t, body, "qryeval_parse_warnings_total 3")
	assert.Contains(t, body, "cache_hits_total 1")

	// A second registration on the same registry must fail.
	assert.Panics(t, func() { New(reg) })
}

func TestRegistriesAreIndependent(t *testing.T) {
	a, b := prometheus.NewRegistry(), prometheus.NewRegistry()
	New(a).CacheMissesTotal.Inc()
	New(b)

	assert.Contains(t, scrape(t, a), "cache_misses_total 1")
	assert.Contains(t, scrape(t, b), "cache_misses_total 0")
}

func TestServerExposesOnlyMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg).QueryRequestsTotal.WithLabelValues("ok").Inc()
	srv := newServer(9191, reg)
	assert.Equal(t, ":9191", srv.Addr)

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `qryeval_query_requests_total{status="ok"} 1`)

	rec = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
