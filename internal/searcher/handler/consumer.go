package handler

import (
	"context"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/pkg/metrics"
)

// QueryRequest is the message read from the query-requests topic.
type QueryRequest struct {
	ID    string `json:"id"`
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

// QueryReply is published to the query-results topic for every request,
// carrying either a result or an error message.
type QueryReply struct {
	ID     string           `json:"id"`
	Result *executor.Result `json:"result,omitempty"`
	Error  string           `json:"error,omitempty"`
}

// RequestConsumer evaluates queries arriving over Kafka, one message at a
// time, and publishes a reply per request.
type RequestConsumer struct {
	executor     QueryExecutor
	replies      analytics.Publisher
	tracker      Tracker
	metrics      *metrics.Metrics
	defaultLimit int
	maxResults   int
}

// NewRequestConsumer wires a consumer. tracker and m may be nil.
func NewRequestConsumer(exec QueryExecutor, replies analytics.Publisher, tracker Tracker, m *metrics.Metrics, defaultLimit, maxResults int) *RequestConsumer {
	return &RequestConsumer{
		executor:     exec,
		replies:      replies,
		tracker:      tracker,
		metrics:      m,
		defaultLimit: defaultLimit,
		maxResults:   maxResults,
	}
}

// Handle is a kafka.MessageHandler. Malformed messages and query failures
// are answered and acknowledged; only a failed reply publish is returned,
// leaving the message uncommitted.
func (c *RequestConsumer) Handle(ctx context.Context, key []byte, value []byte) error {
	start := time.Now()
	req, err := kafka.DecodeJSON[QueryRequest](value)
	if err != nil {
		logger.FromContext(ctx).Warn("malformed query request dropped", "key", string(key), "error", err)
		c.count("malformed")
		return nil
	}
	if req.ID == "" {
		req.ID = string(key)
	}
	ctx = logger.WithQueryID(ctx, req.ID)
	log := logger.FromContext(ctx)

	limit := req.Limit
	if limit <= 0 {
		limit = c.defaultLimit
	}
	if limit > c.maxResults {
		limit = c.maxResults
	}

	reply := QueryReply{ID: req.ID}
	event := analytics.QueryEvent{
		QueryID:   req.ID,
		Query:     req.Query,
		Model:     c.executor.Model().Signature(),
		Source:    "kafka",
		RequestID: logger.RequestID(ctx),
	}
	prepared, err := c.executor.Prepare(ctx, req.Query)
	if err == nil {
		event.Warnings = len(prepared.Warnings)
		reply.Result, err = c.executor.ExecutePrepared(ctx, prepared, limit)
	}
	event.LatencyMs = time.Since(start).Milliseconds()
	event.Timestamp = time.Now().UTC()

	if err != nil {
		log.Error("query request failed", "query", req.Query, "error", err)
		reply.Error = err.Error()
		event.Type = analytics.EventQueryError
		event.Error = err.Error()
		c.count("error")
	} else {
		event.Type = analytics.EventQuery
		if reply.Result.TotalHits == 0 {
			event.Type = analytics.EventZeroResult
		}
		event.Parsed = reply.Result.Parsed
		event.TotalHits = reply.Result.TotalHits
		event.Returned = len(reply.Result.Results)
		c.count("ok")
	}
	if c.tracker != nil {
		c.tracker.Track(event)
	}

	if err := c.replies.Publish(ctx, kafka.Event{Key: req.ID, Value: reply, RequestID: logger.RequestID(ctx)}); err != nil {
		return fmt.Errorf("publishing reply for %s: %w", req.ID, err)
	}
	return nil
}

func (c *RequestConsumer) count(status string) {
	if c.metrics != nil {
		c.metrics.QueryRequestsTotal.WithLabelValues(status).Inc()
	}
}
