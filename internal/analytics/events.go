package analytics

import "time"

type EventType string

const (
	EventQuery      EventType = "query"
	EventZeroResult EventType = "zero_result"
	EventQueryError EventType = "query_error"
)

// QueryEvent describes one served query.
type QueryEvent struct {
	Type      EventType `json:"type"`
	QueryID   string    `json:"query_id,omitempty"`
	Query     string    `json:"query"`
	Parsed    string    `json:"parsed,omitempty"`
	Model     string    `json:"model"`
	TotalHits int       `json:"total_hits"`
	Returned  int       `json:"returned"`
	Warnings  int       `json:"warnings"`
	LatencyMs int64     `json:"latency_ms"`
	CacheHit  bool      `json:"cache_hit"`
	Error     string    `json:"error,omitempty"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}
