// Package executor runs queries end to end: parse, evaluate against the
// index under the configured retrieval model, and rank. Batches are run one
// query at a time.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/internal/searcher/eval"
	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/internal/searcher/model"
	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/pkg/metrics"
)

// Query is one entry of a batch.
type Query struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Result is the ranked answer to one query.
type Result struct {
	RunID     string             `json:"run_id,omitempty"`
	QueryID   string             `json:"query_id,omitempty"`
	Query     string             `json:"query"`
	Model     string             `json:"model"`
	Parsed    string             `json:"parsed"`
	TotalHits int                `json:"total_hits"`
	Results   []ranker.ScoredDoc `json:"results"`
	Warnings  []string           `json:"warnings,omitempty"`
}

// Prepared is a parsed query ready for evaluation. Its String form is the
// canonical tree, which callers may use as a cache key.
type Prepared struct {
	Text     string
	Tree     *query.Node
	Warnings []parser.Warning
}

func (p *Prepared) String() string {
	return p.Tree.String()
}

// BatchSummary counts what happened to each query of a batch.
type BatchSummary struct {
	RunID     string        `json:"run_id"`
	Queries   int           `json:"queries"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Empty     int           `json:"empty"`
	Elapsed   time.Duration `json:"elapsed"`
}

type Executor struct {
	evaluator *eval.Evaluator
	namer     index.DocNamer
	parser    *parser.Parser
	model     model.Model
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

type Option func(*Executor)

// WithMetrics records query outcomes, latency and parse warnings on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

// New binds a parser and a retrieval model to reader. If reader also
// implements index.DocNamer, results carry external document identifiers.
func New(reader index.Reader, m model.Model, p *parser.Parser, opts ...Option) *Executor {
	e := &Executor{
		evaluator: eval.New(reader, m),
		parser:    p,
		model:     m,
		logger:    slog.Default().With("component", "query-executor"),
	}
	if namer, ok := reader.(index.DocNamer); ok {
		e.namer = namer
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Executor) Model() model.Model {
	return e.model
}

// Prepare parses text under the executor's model. Warnings are logged and
// kept on the returned value; a parse failure is returned as an error
// wrapping errors.ErrInvalidQuery.
func (e *Executor) Prepare(ctx context.Context, text string) (*Prepared, error) {
	log := logger.FromContext(ctx).With("component", "query-executor")
	tree, warnings, err := e.parser.Parse(text, e.model.Kind)
	for _, w := range warnings {
		log.Warn("query token skipped", "query", text, "token", w.Token, "reason", w.Message)
	}
	if e.metrics != nil && len(warnings) > 0 {
		e.metrics.ParseWarningsTotal.Add(float64(len(warnings)))
	}
	if err != nil {
		e.observe(metrics.OutcomeParseError)
		return nil, fmt.Errorf("parsing %q: %w", text, err)
	}
	return &Prepared{Text: text, Tree: tree, Warnings: warnings}, nil
}

// ExecutePrepared evaluates and ranks a prepared query. A positive limit
// truncates the ranked list; TotalHits is always the full match count.
func (e *Executor) ExecutePrepared(ctx context.Context, p *Prepared, limit int) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	list, err := e.evaluator.Evaluate(p.Tree)
	if err != nil {
		e.observe(metrics.OutcomeEvalError)
		return nil, fmt.Errorf("evaluating %s: %w", p.Tree, err)
	}
	ranked := ranker.Rank(list, e.model.Kind, e.namer, limit)
	elapsed := time.Since(start)

	outcome := metrics.OutcomeOK
	if len(list) == 0 {
		outcome = metrics.OutcomeZeroResult
	}
	e.observe(outcome)
	if e.metrics != nil {
		label := e.model.Kind.String()
		e.metrics.EvaluationLatency.WithLabelValues(label).Observe(elapsed.Seconds())
		e.metrics.ResultsCount.WithLabelValues(label).Observe(float64(len(list)))
	}

	result := &Result{
		QueryID:   logger.QueryID(ctx),
		Query:     p.Text,
		Model:     e.model.Signature(),
		Parsed:    p.Tree.String(),
		TotalHits: len(list),
		Results:   ranked,
	}
	for _, w := range p.Warnings {
		result.Warnings = append(result.Warnings, w.String())
	}

	logger.FromContext(ctx).Info("query executed",
		"component", "query-executor",
		"parsed", result.Parsed,
		"model", result.Model,
		"total_hits", result.TotalHits,
		"returned", len(ranked),
		"latency_ms", elapsed.Milliseconds(),
	)
	return result, nil
}

// Execute parses, evaluates and ranks one query.
func (e *Executor) Execute(ctx context.Context, text string, limit int) (*Result, error) {
	p, err := e.Prepare(ctx, text)
	if err != nil {
		return nil, err
	}
	return e.ExecutePrepared(ctx, p, limit)
}

// ExecuteBatch runs queries strictly in order and hands each result to sink.
// A query that fails to parse or evaluate is logged and skipped. The batch
// stops early if sink returns an error or ctx is cancelled; cancellation is
// only observed between queries.
func (e *Executor) ExecuteBatch(ctx context.Context, queries []Query, limit int, sink func(*Result) error) (BatchSummary, error) {
	summary := BatchSummary{RunID: uuid.New().String()}
	start := time.Now()
	log := e.logger.With("run_id", summary.RunID)
	log.Info("batch started", "queries", len(queries), "model", e.model.Signature())

	for _, q := range queries {
		if err := ctx.Err(); err != nil {
			summary.Elapsed = time.Since(start)
			return summary, fmt.Errorf("batch %s interrupted after %d queries: %w", summary.RunID, summary.Queries, err)
		}
		summary.Queries++

		qctx := logger.WithQueryID(ctx, q.ID)
		result, err := e.Execute(qctx, q.Text, limit)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				summary.Elapsed = time.Since(start)
				return summary, err
			}
			summary.Failed++
			logger.FromContext(qctx).Error("query failed, skipping", "run_id", summary.RunID, "query", q.Text, "error", err)
			continue
		}
		summary.Succeeded++
		result.RunID = summary.RunID
		if result.TotalHits == 0 {
			summary.Empty++
		}
		if err := sink(result); err != nil {
			summary.Elapsed = time.Since(start)
			return summary, fmt.Errorf("writing result for query %s: %w", q.ID, err)
		}
	}

	summary.Elapsed = time.Since(start)
	log.Info("batch completed",
		"queries", summary.Queries,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"empty", summary.Empty,
		"elapsed_ms", summary.Elapsed.Milliseconds(),
	)
	return summary, nil
}

func (e *Executor) observe(outcome string) {
	if e.metrics == nil {
		return
	}
	e.metrics.QueriesTotal.WithLabelValues(e.model.Kind.String(), outcome).Inc()
}
