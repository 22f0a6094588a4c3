// Package config loads and validates pipeline configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Postgres, Redis, Kafka, Ledger, Datalake, Acquisition,
// Indexer, Search, Coordinator, Logging, Metrics).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Postgres    PostgresConfig    `yaml:"postgres"`
	Redis       RedisConfig       `yaml:"redis"`
	Kafka       KafkaConfig       `yaml:"kafka"`
	Ledger      LedgerConfig      `yaml:"ledger"`
	Datalake    DatalakeConfig    `yaml:"datalake"`
	Acquisition AcquisitionConfig `yaml:"acquisition"`
	Indexer     IndexerConfig     `yaml:"indexer"`
	Search      SearchConfig      `yaml:"search"`
	Coordinator CoordinatorConfig `yaml:"coordinator"`
	Logging     LoggingConfig     `yaml:"logging"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// PostgresConfig holds PostgreSQL connection parameters for the index and
// metadata store.
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

// RedisConfig holds Redis connection and query-cache parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// KafkaConfig holds broker and topic settings for index-complete events.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	IndexComplete string `yaml:"indexComplete"`
}

// LedgerConfig locates the per-stage ledger files.
type LedgerConfig struct {
	Dir            string `yaml:"dir"`
	DownloadedFile string `yaml:"downloadedFile"`
	IndexedFile    string `yaml:"indexedFile"`
}

// DatalakeConfig describes where raw book text lives. Roots are searched in
// order when locating a book's files.
type DatalakeConfig struct {
	Roots    []string `yaml:"roots"`
	MaxDepth int      `yaml:"maxDepth"`
}

// AcquisitionConfig controls the acquisition service and how the
// coordinator reaches it.
type AcquisitionConfig struct {
	BaseURL        string        `yaml:"baseUrl"`
	SourceURL      string        `yaml:"sourceUrl"`
	RequestTimeout time.Duration `yaml:"requestTimeout"`
	StatusCapacity int           `yaml:"statusCapacity"`
	// RateLimit caps acquire requests per client per minute; 0 disables it.
	RateLimit int `yaml:"rateLimit"`
}

// IndexerConfig controls the index service.
type IndexerConfig struct {
	BaseURL        string        `yaml:"baseUrl"`
	Weighting      string        `yaml:"weighting"`
	RequestTimeout time.Duration `yaml:"requestTimeout"`
}

// SearchConfig controls query execution limits.
type SearchConfig struct {
	DefaultLimit int           `yaml:"defaultLimit"`
	MaxResults   int           `yaml:"maxResults"`
	Timeout      time.Duration `yaml:"timeout"`
}

// CoordinatorConfig controls the pipeline control loop.
type CoordinatorConfig struct {
	PollInterval    time.Duration `yaml:"pollInterval"`
	DownloadTimeout time.Duration `yaml:"downloadTimeout"`
	MaxBookID       int64         `yaml:"maxBookId"`
	MaxDraws        int           `yaml:"maxDraws"`
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

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. Missing values keep their defaults.
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

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.Indexer.Weighting {
	case "frequency", "presence":
	default:
		return fmt.Errorf("indexer.weighting must be frequency or presence, got %q", c.Indexer.Weighting)
	}
	if c.Coordinator.PollInterval <= 0 {
		return fmt.Errorf("coordinator.pollInterval must be positive")
	}
	if c.Coordinator.DownloadTimeout < c.Coordinator.PollInterval {
		return fmt.Errorf("coordinator.downloadTimeout must be at least pollInterval")
	}
	if c.Coordinator.MaxBookID < 1 {
		return fmt.Errorf("coordinator.maxBookId must be at least 1")
	}
	if len(c.Datalake.Roots) == 0 {
		return fmt.Errorf("datalake.roots must not be empty")
	}
	if c.Search.DefaultLimit > c.Search.MaxResults {
		return fmt.Errorf("search.defaultLimit %d exceeds search.maxResults %d", c.Search.DefaultLimit, c.Search.MaxResults)
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Postgres: PostgresConfig{
			Enabled:         false,
			Host:            "localhost",
			Port:            5432,
			Database:        "bookpipeline",
			User:            "bookpipeline",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Enabled:  false,
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Kafka: KafkaConfig{
			Enabled:       false,
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "bookpipeline-search",
			Topics: KafkaTopics{
				IndexComplete: "index.complete",
			},
		},
		Ledger: LedgerConfig{
			Dir:            "data/ledger",
			DownloadedFile: "downloaded.txt",
			IndexedFile:    "indexed.txt",
		},
		Datalake: DatalakeConfig{
			Roots:    []string{"data/datalake"},
			MaxDepth: 3,
		},
		Acquisition: AcquisitionConfig{
			BaseURL:        "http://localhost:8081",
			SourceURL:      "https://www.gutenberg.org/cache/epub/%d/pg%d.txt",
			RequestTimeout: 30 * time.Second,
			StatusCapacity: 4096,
			RateLimit:      60,
		},
		Indexer: IndexerConfig{
			BaseURL:        "http://localhost:8082",
			Weighting:      "frequency",
			RequestTimeout: 30 * time.Second,
		},
		Search: SearchConfig{
			DefaultLimit: 50,
			MaxResults:   500,
			Timeout:      10 * time.Second,
		},
		Coordinator: CoordinatorConfig{
			PollInterval:    time.Second,
			DownloadTimeout: 60 * time.Second,
			MaxBookID:       70000,
			MaxDraws:        100,
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

// applyEnvOverrides reads BP_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BP_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("BP_POSTGRES_ENABLED"); v != "" {
		cfg.Postgres.Enabled = parseBool(v, cfg.Postgres.Enabled)
	}
	if v := os.Getenv("BP_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("BP_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("BP_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("BP_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("BP_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("BP_REDIS_ENABLED"); v != "" {
		cfg.Redis.Enabled = parseBool(v, cfg.Redis.Enabled)
	}
	if v := os.Getenv("BP_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("BP_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("BP_KAFKA_ENABLED"); v != "" {
		cfg.Kafka.Enabled = parseBool(v, cfg.Kafka.Enabled)
	}
	if v := os.Getenv("BP_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("BP_LEDGER_DIR"); v != "" {
		cfg.Ledger.Dir = v
	}
	if v := os.Getenv("BP_DATALAKE_ROOTS"); v != "" {
		cfg.Datalake.Roots = strings.Split(v, ",")
	}
	if v := os.Getenv("BP_ACQUISITION_URL"); v != "" {
		cfg.Acquisition.BaseURL = v
	}
	if v := os.Getenv("BP_INDEXER_URL"); v != "" {
		cfg.Indexer.BaseURL = v
	}
	if v := os.Getenv("BP_INDEXER_WEIGHTING"); v != "" {
		cfg.Indexer.Weighting = v
	}
	if v := os.Getenv("BP_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("BP_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("BP_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
		}
	}
}

func parseBool(v string, fallback bool) bool {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
