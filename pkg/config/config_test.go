package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/internal/searcher/model"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	m, err := cfg.Model()
	require.NoError(t, err)
	assert.Equal(t, model.Indri, m.Kind)
	assert.Equal(t, model.DefaultMu, m.Indri.Mu)
	assert.Equal(t, model.DefaultLambda, m.Indri.Lambda)
	assert.Equal(t, 100, cfg.Retrieval.MaxResults)
	assert.Equal(t, "run-1", cfg.Batch.RunTag)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qryeval.yaml")
	data := []byte(`
retrieval:
  model: bm25
  bm25:
    k1: 1.5
    b: 0.5
    k3: 10
  maxResults: 25
index:
  segmentPath: /tmp/x.qseg
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	m, err := cfg.Model()
	require.NoError(t, err)
	assert.Equal(t, model.BM25, m.Kind)
	assert.Equal(t, model.BM25Params{K1: 1.5, B: 0.5, K3: 10}, m.BM25)
	assert.Equal(t, 25, cfg.Retrieval.MaxResults)
	assert.Equal(t, "/tmp/x.qseg", cfg.Index.SegmentPath)
	assert.Equal(t, "body", cfg.Index.DefaultField)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("QE_RETRIEVAL_MODEL", "rankedboolean")
	t.Setenv("QE_KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "rankedboolean", cfg.Retrieval.Model)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown model", func(c *Config) { c.Retrieval.Model = "tfidf" }},
		{"bad lambda", func(c *Config) { c.Retrieval.Indri.Lambda = 2 }},
		{"zero max results", func(c *Config) { c.Retrieval.MaxResults = 0 }},
		{"feedback weight", func(c *Config) {
			c.Feedback.Enabled = true
			c.Feedback.OrigWeight = 1.5
			c.Feedback.ExpansionFile = "exp.txt"
		}},
		{"feedback without indri", func(c *Config) {
			c.Retrieval.Model = "bm25"
			c.Feedback.Enabled = true
			c.Feedback.ExpansionFile = "exp.txt"
		}},
		{"feedback without expansions", func(c *Config) { c.Feedback.Enabled = true }},
		{"empty field", func(c *Config) { c.Index.DefaultField = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
