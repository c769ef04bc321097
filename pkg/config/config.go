// Package config loads and validates evaluator configuration from YAML files
// with environment-variable overrides. It provides typed structs for the
// retrieval model, the index location, batch runs, and the optional service
// dependencies (Postgres, Kafka, Redis, metrics).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/internal/searcher/model"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	Index     IndexConfig     `yaml:"index"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Batch     BatchConfig     `yaml:"batch"`
	Feedback  FeedbackConfig  `yaml:"feedback"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// PostgresConfig holds PostgreSQL connection parameters for the run store.
type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	QueryRequests string `yaml:"queryRequests"`
	QueryResults  string `yaml:"queryResults"`
	QueryEvents   string `yaml:"queryEvents"`
}

// RedisConfig holds Redis connection and result-cache parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// IndexConfig locates the read-only segment file queries are evaluated against.
type IndexConfig struct {
	SegmentPath  string `yaml:"segmentPath"`
	DefaultField string `yaml:"defaultField"`
}

// RetrievalConfig selects the retrieval model and its parameters.
type RetrievalConfig struct {
	Model      string      `yaml:"model"`
	BM25       BM25Config  `yaml:"bm25"`
	Indri      IndriConfig `yaml:"indri"`
	MaxResults int         `yaml:"maxResults"`
}

type BM25Config struct {
	K1 float64 `yaml:"k1"`
	B  float64 `yaml:"b"`
	K3 float64 `yaml:"k3"`
}

type IndriConfig struct {
	Mu     float64 `yaml:"mu"`
	Lambda float64 `yaml:"lambda"`
}

// BatchConfig controls offline query-file runs.
type BatchConfig struct {
	QueryFile  string `yaml:"queryFile"`
	OutputFile string `yaml:"outputFile"`
	RunTag     string `yaml:"runTag"`
}

// FeedbackConfig controls blending of expanded queries with the originals.
type FeedbackConfig struct {
	Enabled       bool    `yaml:"enabled"`
	OrigWeight    float64 `yaml:"origWeight"`
	ExpansionFile string  `yaml:"expansionFile"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided), applies environment-variable
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Model builds the immutable retrieval model described by the config.
func (c *Config) Model() (model.Model, error) {
	kind, err := model.ParseKind(c.Retrieval.Model)
	if err != nil {
		return model.Model{}, err
	}
	switch kind {
	case model.BM25:
		return model.NewBM25(c.Retrieval.BM25.K1, c.Retrieval.BM25.B, c.Retrieval.BM25.K3)
	case model.Indri:
		return model.NewIndri(c.Retrieval.Indri.Mu, c.Retrieval.Indri.Lambda)
	default:
		return model.Model{Kind: kind}, nil
	}
}

// Validate reports the first configuration error found.
func (c *Config) Validate() error {
	m, err := c.Model()
	if err != nil {
		return fmt.Errorf("retrieval config: %w", err)
	}
	if c.Retrieval.MaxResults <= 0 {
		return fmt.Errorf("retrieval config: maxResults must be positive, got %d", c.Retrieval.MaxResults)
	}
	if c.Feedback.Enabled {
		if c.Feedback.OrigWeight < 0 || c.Feedback.OrigWeight > 1 {
			return fmt.Errorf("feedback config: origWeight must be in [0,1], got %g", c.Feedback.OrigWeight)
		}
		if m.Kind != model.Indri {
			return fmt.Errorf("feedback config: blending needs the indri model, got %s", m.Kind)
		}
		if c.Feedback.ExpansionFile == "" {
			return fmt.Errorf("feedback config: expansionFile must be set")
		}
	}
	if c.Index.DefaultField == "" {
		return fmt.Errorf("index config: defaultField must not be empty")
	}
	return nil
}

// defaultConfig returns a Config with defaults for local development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "qryeval",
			User:            "qryeval",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "qryeval-group",
			Topics: KafkaTopics{
				QueryRequests: "query-requests",
				QueryResults:  "query-results",
				QueryEvents:   "query-events",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 5 * time.Minute,
		},
		Index: IndexConfig{
			SegmentPath:  "data/index.qseg",
			DefaultField: "body",
		},
		Retrieval: RetrievalConfig{
			Model:      "indri",
			BM25:       BM25Config{K1: model.DefaultK1, B: model.DefaultB, K3: model.DefaultK3},
			Indri:      IndriConfig{Mu: model.DefaultMu, Lambda: model.DefaultLambda},
			MaxResults: 100,
		},
		Batch: BatchConfig{
			RunTag: "run-1",
		},
		Feedback: FeedbackConfig{
			OrigWeight: 0.5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads QE_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("QE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("QE_INDEX_SEGMENT_PATH"); v != "" {
		cfg.Index.SegmentPath = v
	}
	if v := os.Getenv("QE_RETRIEVAL_MODEL"); v != "" {
		cfg.Retrieval.Model = v
	}
	if v := os.Getenv("QE_BM25_K1"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Retrieval.BM25.K1 = f
		}
	}
	if v := os.Getenv("QE_BM25_B"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Retrieval.BM25.B = f
		}
	}
	if v := os.Getenv("QE_BM25_K3"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Retrieval.BM25.K3 = f
		}
	}
	if v := os.Getenv("QE_INDRI_MU"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Retrieval.Indri.Mu = f
		}
	}
	if v := os.Getenv("QE_INDRI_LAMBDA"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Retrieval.Indri.Lambda = f
		}
	}
	if v := os.Getenv("QE_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("QE_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("QE_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("QE_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("QE_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("QE_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
