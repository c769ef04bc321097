// Package runstore persists ranked runs to PostgreSQL, one row per returned
// document, so that runs can be compared after the fact.
package runstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/pkg/resilience"
)

const schema = `
CREATE TABLE IF NOT EXISTS qryeval_runs (
    run_id      TEXT             NOT NULL,
    run_tag     TEXT             NOT NULL,
    query_id    TEXT             NOT NULL,
    rank        INTEGER          NOT NULL,
    doc_id      INTEGER          NOT NULL,
    external_id TEXT             NOT NULL,
    score       DOUBLE PRECISION NOT NULL,
    model       TEXT             NOT NULL,
    parsed      TEXT             NOT NULL,
    created_at  TIMESTAMPTZ      NOT NULL DEFAULT NOW(),
    PRIMARY KEY (run_id, query_id, rank)
)`

const insertRow = `
INSERT INTO qryeval_runs (run_id, run_tag, query_id, rank, doc_id, external_id, score, model, parsed)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (run_id, query_id, rank) DO UPDATE
SET doc_id = EXCLUDED.doc_id, external_id = EXCLUDED.external_id, score = EXCLUDED.score`

// Row is one ranked document of one query of one run.
type Row struct {
	RunID      string
	RunTag     string
	QueryID    string
	Rank       int
	DocID      int
	ExternalID string
	Score      float64
	Model      string
	Parsed     string
}

type Store struct {
	db      *postgres.Client
	retry   resilience.RetryConfig
	timeout time.Duration
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New returns a store over db. m may be nil.
func New(db *postgres.Client, m *metrics.Metrics) *Store {
	return &Store{
		db:      db,
		retry:   resilience.RetryConfig{MaxAttempts: 3},
		timeout: 5 * time.Second,
		metrics: m,
		logger:  slog.Default().With("component", "run-store"),
	}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating qryeval_runs: %w", err)
	}
	return nil
}

// SaveResult writes every ranked document of result in one transaction,
// retrying transient failures. Each attempt is bounded by the store timeout.
// Rank starts at 1.
func (s *Store) SaveResult(ctx context.Context, runID, runTag string, result *executor.Result) error {
	rows := Rows(runID, runTag, result)
	if len(rows) == 0 {
		return nil
	}
	// A timed-out attempt is retried; only the caller's cancellation stops.
	retry := s.retry
	retry.Retryable = func(error) bool { return ctx.Err() == nil }
	err := resilience.Retry(ctx, "save-run", retry, func() error {
		return resilience.WithTimeout(ctx, s.timeout, "save-run", func(ctx context.Context) error {
			return s.db.InTx(ctx, func(tx *sql.Tx) error {
				stmt, err := tx.PrepareContext(ctx, insertRow)
				if err != nil {
					return fmt.Errorf("preparing insert: %w", err)
				}
				defer stmt.Close()
				for _, r := range rows {
					if _, err := stmt.ExecContext(ctx, r.RunID, r.RunTag, r.QueryID, r.Rank, r.DocID, r.ExternalID, r.Score, r.Model, r.Parsed); err != nil {
						return fmt.Errorf("inserting rank %d: %w", r.Rank, err)
					}
				}
				return nil
			})
		})
	})
	s.observe(err)
	if err != nil {
		return fmt.Errorf("saving run %s query %s: %w", runID, result.QueryID, err)
	}
	s.logger.Debug("run rows saved", "run_id", runID, "query_id", result.QueryID, "rows", len(rows))
	return nil
}

// LoadRun returns the stored rows of runID ordered by query and rank.
func (s *Store) LoadRun(ctx context.Context, runID string) ([]Row, error) {
	rs, err := s.db.DB.QueryContext(ctx, `
SELECT run_id, run_tag, query_id, rank, doc_id, external_id, score, model, parsed
FROM qryeval_runs WHERE run_id = $1 ORDER BY query_id, rank`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying run %s: %w", runID, err)
	}
	defer rs.Close()

	var rows []Row
	for rs.Next() {
		var r Row
		if err := rs.Scan(&r.RunID, &r.RunTag, &r.QueryID, &r.Rank, &r.DocID, &r.ExternalID, &r.Score, &r.Model, &r.Parsed); err != nil {
			return nil, fmt.Errorf("scanning run row: %w", err)
		}
		rows = append(rows, r)
	}
	return rows, rs.Err()
}

// Rows flattens a result into storable rows.
func Rows(runID, runTag string, result *executor.Result) []Row {
	rows := make([]Row, 0, len(result.Results))
	for i, d := range result.Results {
		rows = append(rows, Row{
			RunID:      runID,
			RunTag:     runTag,
			QueryID:    result.QueryID,
			Rank:       i + 1,
			DocID:      d.DocID,
			ExternalID: d.ExternalID,
			Score:      d.Score,
			Model:      result.Model,
			Parsed:     result.Parsed,
		})
	}
	return rows
}

func (s *Store) observe(err error) {
	if s.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	s.metrics.RunsStoredTotal.WithLabelValues(status).Inc()
}
