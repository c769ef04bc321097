// Command qryeval evaluates a file of structured queries against a segment
// file and writes a TREC run.
//
// Each line of the query file is "qid:query". Queries are evaluated one at a
// time under the configured retrieval model; a query that fails to parse or
// evaluate is logged and left out of the run. When feedback is enabled each
// query is blended with its expansion from the expansion file.
//
// Usage:
//
//	go run ./cmd/qryeval [-config configs/development.yaml] [-queries q.txt] [-out run.txt]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/internal/searcher/runstore"
	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/internal/trec"
	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	queryFile := flag.String("queries", "", "query file, overrides batch.queryFile")
	outFile := flag.String("out", "", "run file, overrides batch.outputFile")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *queryFile != "" {
		cfg.Batch.QueryFile = *queryFile
	}
	if *outFile != "" {
		cfg.Batch.OutputFile = *outFile
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	if err := run(cfg); err != nil {
		slog.Error("batch run failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m, err := cfg.Model()
	if err != nil {
		return err
	}
	reader, err := segment.OpenReader(cfg.Index.SegmentPath)
	if err != nil {
		return fmt.Errorf("opening index: %w", err)
	}
	defer reader.Close()
	slog.Info("index opened", "path", reader.Path(), "docs", reader.NumDocs(), "terms", reader.Terms())

	var appMetrics *metrics.Metrics
	if cfg.Metrics.Enabled {
		appMetrics = metrics.New(prometheus.DefaultRegisterer)
		shutdown := metrics.StartServer(cfg.Metrics.Port, prometheus.DefaultGatherer)
		defer shutdown(context.Background())
	}

	queries, err := loadQueries(cfg)
	if err != nil {
		return err
	}

	var store *runstore.Store
	if cfg.Postgres.Enabled {
		db, err := postgres.New(cfg.Postgres)
		if err != nil {
			return fmt.Errorf("connecting run store: %w", err)
		}
		defer db.Close()
		store = runstore.New(db, appMetrics)
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
	}

	out := os.Stdout
	if cfg.Batch.OutputFile != "" {
		f, err := os.Create(cfg.Batch.OutputFile)
		if err != nil {
			return fmt.Errorf("creating run file: %w", err)
		}
		defer f.Close()
		out = f
	}
	runWriter := trec.NewRunWriter(out, cfg.Batch.RunTag)

	p := parser.New(tokenizer.Analyzer{}, cfg.Index.DefaultField)
	exec := executor.New(reader, m, p, executor.WithMetrics(appMetrics))

	summary, batchErr := exec.ExecuteBatch(ctx, queries, cfg.Retrieval.MaxResults, func(result *executor.Result) error {
		if err := runWriter.WriteResult(result); err != nil {
			return err
		}
		if store != nil {
			if err := store.SaveResult(ctx, result.RunID, cfg.Batch.RunTag, result); err != nil {
				slog.Error("run rows not stored", "query_id", result.QueryID, "error", err)
			}
		}
		return nil
	})
	if err := runWriter.Flush(); err != nil && batchErr == nil {
		batchErr = fmt.Errorf("flushing run file: %w", err)
	}
	slog.Info("batch finished",
		"run_id", summary.RunID,
		"queries", summary.Queries,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"empty", summary.Empty,
		"elapsed", summary.Elapsed,
	)
	return batchErr
}

// loadQueries reads the query file and, when feedback is enabled, replaces
// each query with its blend against the expansion of the same id. Queries
// without an expansion are left as they are.
func loadQueries(cfg *config.Config) ([]executor.Query, error) {
	if cfg.Batch.QueryFile == "" {
		return nil, fmt.Errorf("no query file: set batch.queryFile or -queries")
	}
	f, err := os.Open(cfg.Batch.QueryFile)
	if err != nil {
		return nil, fmt.Errorf("opening query file: %w", err)
	}
	defer f.Close()
	queries, err := trec.ReadQueries(f)
	if err != nil {
		return nil, err
	}
	slog.Info("queries loaded", "file", cfg.Batch.QueryFile, "count", len(queries))

	if !cfg.Feedback.Enabled {
		return queries, nil
	}
	ef, err := os.Open(cfg.Feedback.ExpansionFile)
	if err != nil {
		return nil, fmt.Errorf("opening expansion file: %w", err)
	}
	defer ef.Close()
	expansions, err := trec.ReadExpansions(ef)
	if err != nil {
		return nil, err
	}
	for i, q := range queries {
		expanded, ok := expansions[q.ID]
		if !ok {
			slog.Warn("no expansion for query, using original", "query_id", q.ID)
			continue
		}
		queries[i].Text = parser.Blend(q.Text, expanded, cfg.Feedback.OrigWeight)
	}
	return queries, nil
}
