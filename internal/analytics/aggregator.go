package analytics

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/pkg/kafka"
)

// AggregatedStats summarises the query events seen since start-up.
type AggregatedStats struct {
	TotalQueries      int64            `json:"total_queries"`
	QueriesByModel    map[string]int64 `json:"queries_by_model"`
	Errors            int64            `json:"errors"`
	CacheHits         int64            `json:"cache_hits"`
	ZeroResultCount   int64            `json:"zero_result_count"`
	ParseWarnings     int64            `json:"parse_warnings"`
	AvgLatencyMs      float64          `json:"avg_latency_ms"`
	P50LatencyMs      int64            `json:"p50_latency_ms"`
	P95LatencyMs      int64            `json:"p95_latency_ms"`
	P99LatencyMs      int64            `json:"p99_latency_ms"`
	TopQueries        []QueryCount     `json:"top_queries"`
	ZeroResultQueries []QueryCount     `json:"zero_result_queries"`
	QueriesPerMinute  float64          `json:"queries_per_minute"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator keeps in-memory counters over query events. Queries are
// grouped by their canonical parsed form when one is present.
type Aggregator struct {
	mu                sync.Mutex
	total             int64
	byModel           map[string]int64
	errors            int64
	cacheHits         int64
	zeroResults       int64
	warnings          int64
	latencies         []int64
	queryCounts       map[string]int64
	zeroResultQueries map[string]int64
	startTime         time.Time
	logger            *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		byModel:           make(map[string]int64),
		latencies:         make([]int64, 0, 10000),
		queryCounts:       make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		startTime:         time.Now(),
		logger:            slog.Default().With("component", "analytics-aggregator"),
	}
}

// HandleEvent adapts the aggregator to a Kafka consumer. Undecodable
// messages are logged and acknowledged.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[QueryEvent](value)
		if err != nil {
			agg.logger.Error("failed to decode query event", "key", string(key), "error", err)
			return nil
		}
		agg.Record(event)
		return nil
	}
}

func (a *Aggregator) Record(event QueryEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.total++
	a.byModel[event.Model]++
	a.warnings += int64(event.Warnings)
	if event.Type == EventQueryError {
		a.errors++
		return
	}
	if event.CacheHit {
		a.cacheHits++
	}
	q := event.Parsed
	if q == "" {
		q = event.Query
	}
	a.latencies = append(a.latencies, event.LatencyMs)
	a.queryCounts[q]++
	if event.TotalHits == 0 {
		a.zeroResults++
		a.zeroResultQueries[q]++
	}
}

const defaultTopQueries = 10

// Stats is Snapshot with the default top-query count.
func (a *Aggregator) Stats() AggregatedStats {
	return a.Snapshot(defaultTopQueries)
}

// Snapshot summarises everything recorded so far, listing at most top
// queries in each ranking.
func (a *Aggregator) Snapshot(top int) AggregatedStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	stats := AggregatedStats{
		TotalQueries:    a.total,
		QueriesByModel:  make(map[string]int64, len(a.byModel)),
		Errors:          a.errors,
		CacheHits:       a.cacheHits,
		ZeroResultCount: a.zeroResults,
		ParseWarnings:   a.warnings,
	}
	for m, n := range a.byModel {
		stats.QueriesByModel[m] = n
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopQueries = topN(a.queryCounts, top)
	stats.ZeroResultQueries = topN(a.zeroResultQueries, top)
	if elapsed := time.Since(a.startTime).Minutes(); elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalQueries) / elapsed
	}
	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN returns the n most frequent queries, ties in query order.
func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
