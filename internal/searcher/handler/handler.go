// Package handler serves ranked query results over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/internal/searcher/model"
	apperrors "github.com/Adithya-Monish-Kumar-K/structured-query-eval/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/pkg/middleware"
)

type QueryExecutor interface {
	Model() model.Model
	Prepare(ctx context.Context, text string) (*executor.Prepared, error)
	ExecutePrepared(ctx context.Context, p *executor.Prepared, limit int) (*executor.Result, error)
}

// Tracker receives one event per served query.
type Tracker interface {
	Track(event analytics.QueryEvent)
}

type Handler struct {
	executor     QueryExecutor
	cache        *cache.QueryCache
	tracker      Tracker
	defaultLimit int
	maxResults   int
	logger       *slog.Logger
}

// New wires a handler. queryCache and tracker may be nil.
func New(exec QueryExecutor, queryCache *cache.QueryCache, tracker Tracker, defaultLimit, maxResults int) *Handler {
	return &Handler{
		executor:     exec,
		cache:        queryCache,
		tracker:      tracker,
		defaultLimit: defaultLimit,
		maxResults:   maxResults,
		logger:       slog.Default().With("component", "search-handler"),
	}
}

// Search handles GET /api/v1/search?q=...&limit=...
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	text := r.URL.Query().Get("q")
	if text == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}

	limit := h.defaultLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if parsed > h.maxResults {
			parsed = h.maxResults
		}
		limit = parsed
	}

	prepared, err := h.executor.Prepare(ctx, text)
	if err != nil {
		h.fail(w, r, text, start, err)
		return
	}

	var (
		result   *executor.Result
		cacheHit bool
	)
	compute := func(ctx context.Context) (*executor.Result, error) {
		return h.executor.ExecutePrepared(ctx, prepared, limit)
	}
	if h.cache != nil {
		key := cache.Key(h.executor.Model().Signature(), prepared.String(), limit)
		result, cacheHit, err = h.cache.GetOrCompute(ctx, key, compute)
	} else {
		result, err = compute(ctx)
	}
	if err != nil {
		h.fail(w, r, text, start, err)
		return
	}

	// Cached results may come from a different surface form of the same tree.
	response := *result
	response.Query = text
	response.Warnings = nil
	for _, warn := range prepared.Warnings {
		response.Warnings = append(response.Warnings, warn.String())
	}

	latencyMs := time.Since(start).Milliseconds()
	log.Info("search completed",
		"parsed", response.Parsed,
		"total_hits", response.TotalHits,
		"returned", len(response.Results),
		"cache_hit", cacheHit,
		"latency_ms", latencyMs,
	)
	if h.tracker != nil {
		eventType := analytics.EventQuery
		if response.TotalHits == 0 {
			eventType = analytics.EventZeroResult
		}
		h.tracker.Track(analytics.QueryEvent{
			Type:      eventType,
			Query:     text,
			Parsed:    response.Parsed,
			Model:     response.Model,
			TotalHits: response.TotalHits,
			Returned:  len(response.Results),
			Warnings:  len(prepared.Warnings),
			LatencyMs: latencyMs,
			CacheHit:  cacheHit,
			Source:    "http",
			Timestamp: time.Now().UTC(),
			RequestID: middleware.GetRequestID(ctx),
		})
	}

	h.writeJSON(w, http.StatusOK, &response)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, text string, start time.Time, err error) {
	status := apperrors.HTTPStatusCode(err)
	log := logger.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error("search failed", "query", text, "error", err)
	} else {
		log.Warn("search rejected", "query", text, "status", status, "error", err)
	}
	if h.tracker != nil {
		h.tracker.Track(analytics.QueryEvent{
			Type:      analytics.EventQueryError,
			Query:     text,
			Model:     h.executor.Model().Signature(),
			LatencyMs: time.Since(start).Milliseconds(),
			Error:     err.Error(),
			Source:    "http",
			Timestamp: time.Now().UTC(),
			RequestID: middleware.GetRequestID(r.Context()),
		})
	}
	h.writeError(w, status, err.Error())
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"model":  h.executor.Model().Signature(),
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
