package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/pkg/kafka"
)

type fakePublisher struct {
	mu     sync.Mutex
	events []kafka.Event
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, event kafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func TestCollectorPublishesTrackedEvents(t *testing.T) {
	pub := &fakePublisher{}
	c := NewCollector(pub, 10)
	c.Start(context.Background())

	c.Track(QueryEvent{Type: EventQuery, QueryID: "1", Model: "bm25", RequestID: "req-1"})
	c.Track(QueryEvent{Type: EventZeroResult, QueryID: "2", Model: "bm25"})
	c.Close()

	require.Equal(t, 2, pub.count())
	assert.Equal(t, "bm25", pub.events[0].Key)
	assert.Equal(t, "req-1", pub.events[0].RequestID)
	assert.Equal(t, "2", pub.events[1].Value.(QueryEvent).QueryID)
}

func TestCollectorSurvivesPublishErrors(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	c := NewCollector(pub, 4)
	c.Start(context.Background())
	c.Track(QueryEvent{QueryID: "1"})
	c.Track(QueryEvent{QueryID: "2"})
	c.Close()
	assert.Equal(t, 2, pub.count())
}

func TestCollectorDropsWhenFull(t *testing.T) {
	pub := &fakePublisher{}
	c := NewCollector(pub, 1)
	c.Track(QueryEvent{QueryID: "1"})
	c.Track(QueryEvent{QueryID: "2"})
	c.Start(context.Background())
	c.Close()
	assert.Equal(t, 1, pub.count())
}

func TestCollectorIgnoresTrackAfterClose(t *testing.T) {
	pub := &fakePublisher{}
	c := NewCollector(pub, 4)
	c.Start(context.Background())
	c.Track(QueryEvent{QueryID: "1"})
	c.Close()

	assert.NotPanics(t, func() {
		c.Track(QueryEvent{QueryID: "late"})
		c.Close()
	})
	assert.Equal(t, 1, pub.count())
}

func TestCollectorDrainsOnCancel(t *testing.T) {
	pub := &fakePublisher{}
	c := NewCollector(pub, 10)
	c.Track(QueryEvent{QueryID: "1"})
	c.Track(QueryEvent{QueryID: "2"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c.Start(ctx)
	c.Close()
	assert.Equal(t, 2, pub.count())
}

func TestAggregatorStats(t *testing.T) {
	agg := NewAggregator()
	agg.Record(QueryEvent{Type: EventQuery, Model: "bm25", Parsed: "#SUM( fox.body )", TotalHits: 3, LatencyMs: 10})
	agg.Record(QueryEvent{Type: EventQuery, Model: "bm25", Parsed: "#SUM( fox.body )", TotalHits: 3, LatencyMs: 30, CacheHit: true})
	agg.Record(QueryEvent{Type: EventZeroResult, Model: "indri", Query: "zebra", LatencyMs: 20, Warnings: 2})
	agg.Record(QueryEvent{Type: EventQueryError, Model: "bm25", Query: "#AND(", Error: "parse error"})

	stats := agg.Stats()
	assert.Equal(t, int64(4), stats.TotalQueries)
	assert.Equal(t, map[string]int64{"bm25": 3, "indri": 1}, stats.QueriesByModel)
	assert.Equal(t, int64(1), stats.Errors)
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.Equal(t, int64(1), stats.ZeroResultCount)
	assert.Equal(t, int64(2), stats.ParseWarnings)
	assert.InDelta(t, 20.0, stats.AvgLatencyMs, 1e-9)
	assert.Equal(t, int64(20), stats.P50LatencyMs)
	assert.Equal(t, int64(30), stats.P99LatencyMs)
	require.Len(t, stats.TopQueries, 2)
	assert.Equal(t, QueryCount{Query: "#SUM( fox.body )", Count: 2}, stats.TopQueries[0])
	assert.Equal(t, []QueryCount{{Query: "zebra", Count: 1}}, stats.ZeroResultQueries)
}

func TestHandleEventDecodes(t *testing.T) {
	agg := NewAggregator()
	handle := HandleEvent(agg)

	data, err := json.Marshal(QueryEvent{Type: EventQuery, Model: "indri", Query: "fox", TotalHits: 1})
	require.NoError(t, err)
	require.NoError(t, handle(context.Background(), []byte("indri"), data))
	require.NoError(t, handle(context.Background(), nil, []byte("not json")))

	assert.Equal(t, int64(1), agg.Stats().TotalQueries)
}

func TestHandlerServesStats(t *testing.T) {
	agg := NewAggregator()
	agg.Record(QueryEvent{Type: EventQuery, Model: "bm25", Query: "fox", TotalHits: 1})

	rec := httptest.NewRecorder()
	NewHandler(agg).Stats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var stats AggregatedStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, int64(1), stats.TotalQueries)
}

func TestHandlerTopAndModelFilters(t *testing.T) {
	agg := NewAggregator()
	for _, q := range []string{"fox", "fox", "dog", "cat"} {
		agg.Record(QueryEvent{Type: EventQuery, Model: "bm25(k1=1.2,b=0.75,k3=0)", Query: q, TotalHits: 1})
	}
	agg.Record(QueryEvent{Type: EventQuery, Model: "indri(mu=2500,lambda=0.4)", Query: "owl", TotalHits: 1})
	h := NewHandler(agg)

	get := func(target string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.Stats(rec, httptest.NewRequest(http.MethodGet, target, nil))
		return rec
	}

	rec := get("/api/v1/analytics?top=1")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats AggregatedStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, []QueryCount{{Query: "fox", Count: 2}}, stats.TopQueries)

	rec = get("/api/v1/analytics?model=" + url.QueryEscape("bm25(k1=1.2,b=0.75,k3=0)"))
	require.Equal(t, http.StatusOK, rec.Code)
	var ms ModelStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ms))
	assert.Equal(t, ModelStats{Model: "bm25(k1=1.2,b=0.75,k3=0)", Queries: 4, Share: "80.0%"}, ms)

	assert.Equal(t, http.StatusNotFound, get("/api/v1/analytics?model=rankedboolean").Code)
	for _, bad := range []string{"0", "101", "x"} {
		assert.Equal(t, http.StatusBadRequest, get("/api/v1/analytics?top="+bad).Code, bad)
	}
}
