// Command indexer builds a segment file from a JSON-lines corpus, one
// {"id": ..., "fields": {...}} object per line, for the searcher and qryeval
// to load.
//
// Usage:
//
//	go run ./cmd/indexer [-config configs/development.yaml] -docs corpus.jsonl [-out index.seg]
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/pkg/logger"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	docsFile := flag.String("docs", "", "JSON-lines corpus to index")
	outFile := flag.String("out", "", "segment file, overrides index.segmentPath")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *outFile != "" {
		cfg.Index.SegmentPath = *outFile
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	if *docsFile == "" {
		slog.Error("missing -docs")
		os.Exit(2)
	}
	if err := build(*docsFile, cfg.Index.SegmentPath); err != nil {
		slog.Error("index build failed", "error", err)
		os.Exit(1)
	}
}

func build(docsFile, segmentPath string) error {
	start := time.Now()
	f, err := os.Open(docsFile)
	if err != nil {
		return fmt.Errorf("opening corpus: %w", err)
	}
	defer f.Close()

	idx, err := index.LoadDocuments(f)
	if err != nil {
		return err
	}
	if err := segment.WriteFile(segmentPath, idx.Snapshot()); err != nil {
		return err
	}
	slog.Info("segment written",
		"path", segmentPath,
		"docs", idx.NumDocs(),
		"bytes_estimate", idx.Size(),
		"elapsed", time.Since(start),
	)
	return nil
}
