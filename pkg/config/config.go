// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Postgres, Redis, Kafka, Upstream, Embedding, Sync,
// Search, etc.).
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
	Server    ServerConfig    `yaml:"server"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Upstream  UpstreamConfig  `yaml:"upstream"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Sync      SyncConfig      `yaml:"sync"`
	Search    SearchConfig    `yaml:"search"`
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

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
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

// RedisConfig holds Redis connection and hot-cache TTL parameters.
type RedisConfig struct {
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	PoolSize     int           `yaml:"poolSize"`
	InventoryTTL time.Duration `yaml:"inventoryTTL"`
	EmbeddingTTL time.Duration `yaml:"embeddingTTL"`
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	SyncEvents      string `yaml:"syncEvents"`
	CacheInvalidate string `yaml:"cacheInvalidate"`
}

// UpstreamConfig holds the external product catalog API settings.
type UpstreamConfig struct {
	BaseURL         string        `yaml:"baseUrl"`
	APIKey          string        `yaml:"apiKey"`
	StoreID         string        `yaml:"storeId"`
	Timeout         time.Duration `yaml:"timeout"`
	PageDelay       time.Duration `yaml:"pageDelay"`
	PageRetries     int           `yaml:"pageRetries"`
	MaxPageFailures int           `yaml:"maxPageFailures"`
}

// EmbeddingConfig holds the embedding provider settings.
type EmbeddingConfig struct {
	BaseURL    string        `yaml:"baseUrl"`
	APIKey     string        `yaml:"apiKey"`
	Model      string        `yaml:"model"`
	Dimensions int           `yaml:"dimensions"`
	CallDelay  time.Duration `yaml:"callDelay"`
	MaxChars   int           `yaml:"maxChars"`
}

// SyncConfig controls ingestion cadences and batch sizing.
type SyncConfig struct {
	StockInterval   time.Duration `yaml:"stockInterval"`
	FullInterval    time.Duration `yaml:"fullInterval"`
	CleanupInterval time.Duration `yaml:"cleanupInterval"`
	HealthInterval  time.Duration `yaml:"healthInterval"`
	BatchSize       int           `yaml:"batchSize"`
	StockBatchSize  int           `yaml:"stockBatchSize"`
	StockMaxItems   int           `yaml:"stockMaxItems"`
}

// SearchConfig controls query execution limits and ranking thresholds.
type SearchConfig struct {
	DefaultLimit   int           `yaml:"defaultLimit"`
	MaxResults     int           `yaml:"maxResults"`
	MatchThreshold float64       `yaml:"matchThreshold"`
	MaxCandidates  int           `yaml:"maxCandidates"`
	Timeout        time.Duration `yaml:"timeout"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// defaultConfig returns a Config with production-ready defaults for local
// development.
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
			Database:        "pharmsync",
			User:            "pharmsync",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			Password:     "",
			DB:           0,
			PoolSize:     10,
			InventoryTTL: 300 * time.Second,
			EmbeddingTTL: time.Hour,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "pharmsync-group",
			Topics: KafkaTopics{
				SyncEvents:      "sync-events",
				CacheInvalidate: "cache-invalidate",
			},
		},
		Upstream: UpstreamConfig{
			BaseURL:         "http://localhost:9200",
			Timeout:         15 * time.Second,
			PageDelay:       500 * time.Millisecond,
			PageRetries:     2,
			MaxPageFailures: 10,
		},
		Embedding: EmbeddingConfig{
			BaseURL:    "https://api.openai.com/v1",
			Model:      "text-embedding-3-small",
			Dimensions: 1536,
			CallDelay:  200 * time.Millisecond,
			MaxChars:   2000,
		},
		Sync: SyncConfig{
			StockInterval:   5 * time.Minute,
			FullInterval:    24 * time.Hour,
			CleanupInterval: time.Hour,
			HealthInterval:  30 * time.Minute,
			BatchSize:       50,
			StockBatchSize:  20,
			StockMaxItems:   500,
		},
		Search: SearchConfig{
			DefaultLimit:   10,
			MaxResults:     50,
			MatchThreshold: 0.3,
			MaxCandidates:  200,
			Timeout:        10 * time.Second,
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

// applyEnvOverrides reads PH_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PH_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("PH_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("PH_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("PH_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("PH_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("PH_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("PH_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("PH_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("PH_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("PH_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("PH_UPSTREAM_BASE_URL"); v != "" {
		cfg.Upstream.BaseURL = v
	}
	if v := os.Getenv("PH_UPSTREAM_API_KEY"); v != "" {
		cfg.Upstream.APIKey = v
	}
	if v := os.Getenv("PH_UPSTREAM_STORE_ID"); v != "" {
		cfg.Upstream.StoreID = v
	}
	if v := os.Getenv("PH_EMBEDDING_BASE_URL"); v != "" {
		cfg.Embedding.BaseURL = v
	}
	if v := os.Getenv("PH_EMBEDDING_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}
	if v := os.Getenv("PH_EMBEDDING_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}
	if v := os.Getenv("PH_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("PH_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
