// Command searcher serves structured queries over HTTP and Kafka against a
// read-only segment file.
//
// Endpoints:
//
//	GET  /api/v1/search?q=...&limit=...
//	GET  /api/v1/cache/stats
//	POST /api/v1/cache/invalidate
//	GET  /health, /health/live, /health/ready
//
// When Kafka is enabled, requests on the query-requests topic are evaluated
// one message at a time and answered on the query-results topic, and every
// served query is published to the query-events topic. The Redis result
// cache is optional.
//
// Usage:
//
//	go run ./cmd/searcher [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/structured-query-eval/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/pkg/resilience"
)

const defaultLimit = 10

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	m, err := cfg.Model()
	if err != nil {
		slog.Error("invalid retrieval model", "error", err)
		os.Exit(1)
	}
	slog.Info("starting search service", "port", cfg.Server.Port, "model", m.Signature())

	reader, err := segment.OpenReader(cfg.Index.SegmentPath)
	if err != nil {
		slog.Error("failed to open index", "path", cfg.Index.SegmentPath, "error", err)
		os.Exit(1)
	}
	defer reader.Close()
	slog.Info("index opened", "path", reader.Path(), "docs", reader.NumDocs(), "terms", reader.Terms())

	appMetrics := metrics.New(prometheus.DefaultRegisterer)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, prometheus.DefaultGatherer)
		defer shutdownMetrics(context.Background())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checker := health.NewChecker()
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		if reader.NumDocs() == 0 {
			return health.ComponentHealth{Status: health.StatusDown, Message: "index is empty"}
		}
		return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d documents", reader.NumDocs())}
	})

	var queryCache *cache.QueryCache
	if cfg.Redis.Enabled {
		redisClient, err := pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, result caching disabled", "error", err)
			checker.Register("redis", health.Static(health.StatusDegraded, err.Error()))
		} else {
			defer redisClient.Close()
			store := cache.Guard(redisClient, resilience.CircuitBreakerConfig{})
			queryCache = cache.New(store, cfg.Redis.CacheTTL, appMetrics)
			checker.Register("redis", health.Ping(redisClient.Ping, false))
			slog.Info("result cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	p := parser.New(tokenizer.Analyzer{}, cfg.Index.DefaultField)
	exec := executor.New(reader, m, p, executor.WithMetrics(appMetrics))

	var tracker handler.Tracker
	if cfg.Kafka.Enabled {
		eventProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.QueryEvents)
		defer eventProducer.Close()
		collector := analytics.NewCollector(eventProducer, 10000)
		collector.Start(ctx)
		defer collector.Close()
		tracker = collector
		slog.Info("analytics collector started", "topic", cfg.Kafka.Topics.QueryEvents)

		replyProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.QueryResults)
		defer replyProducer.Close()
		requests := handler.NewRequestConsumer(exec, replyProducer, tracker, appMetrics, defaultLimit, cfg.Retrieval.MaxResults)
		consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.QueryRequests, requests.Handle)
		go func() {
			if err := consumer.Start(ctx); err != nil {
				slog.Error("query request consumer error", "error", err)
			}
		}()
		checker.Register("kafka", health.Static(health.StatusUp, "consuming "+cfg.Kafka.Topics.QueryRequests))
		slog.Info("query request consumer started", "topic", cfg.Kafka.Topics.QueryRequests, "group", cfg.Kafka.ConsumerGroup)
	}

	h := handler.New(exec, queryCache, tracker, defaultLimit, cfg.Retrieval.MaxResults)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.Metrics(appMetrics)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("search service stopped")
}
