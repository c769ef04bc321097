package runstore

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/pkg/postgres"
)

func sampleResult() *executor.Result {
	return &executor.Result{
		QueryID: "10",
		Model:   "indri(mu=2500,lambda=0.4)",
		Parsed:  "#AND( fox.body dog.body )",
		Results: []ranker.ScoredDoc{
			{DocID: 4, ExternalID: "GX-4", Score: -3.5},
			{DocID: 1, ExternalID: "GX-1", Score: -4.25},
		},
	}
}

func TestRows(t *testing.T) {
	rows := Rows("run-a", "tag", sampleResult())
	require.Len(t, rows, 2)
	assert.Equal(t, Row{
		RunID: "run-a", RunTag: "tag", QueryID: "10", Rank: 1, DocID: 4, ExternalID: "GX-4",
		Score: -3.5, Model: "indri(mu=2500,lambda=0.4)", Parsed: "#AND( fox.body dog.body )",
	}, rows[0])
	assert.Equal(t, 2, rows[1].Rank)

	assert.Empty(t, Rows("run-a", "tag", &executor.Result{QueryID: "11"}))
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func skipIfNoPostgres(t *testing.T) *postgres.Client {
	t.Helper()
	port, _ := strconv.Atoi(envOrDefault("TEST_POSTGRES_PORT", "5432"))
	db, err := postgres.New(config.PostgresConfig{
		Host:            envOrDefault("TEST_POSTGRES_HOST", "localhost"),
		Port:            port,
		Database:        envOrDefault("TEST_POSTGRES_DB", "qryeval_test"),
		User:            envOrDefault("TEST_POSTGRES_USER", "qryeval"),
		Password:        envOrDefault("TEST_POSTGRES_PASSWORD", "localdev"),
		SSLMode:         "disable",
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
	})
	if err != nil {
		t.Skipf("skipping integration test: postgres unavailable: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSaveAndLoadRun(t *testing.T) {
	db := skipIfNoPostgres(t)
	ctx := context.Background()
	store := New(db, nil)
	require.NoError(t, store.EnsureSchema(ctx))

	runID := uuid.New().String()
	require.NoError(t, store.SaveResult(ctx, runID, "it", sampleResult()))
	// Saving again overwrites rather than failing on the key.
	require.NoError(t, store.SaveResult(ctx, runID, "it", sampleResult()))

	rows, err := store.LoadRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, Rows(runID, "it", sampleResult()), rows)
}
