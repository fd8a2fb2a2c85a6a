// Package config provides configuration management for the theme discovery service.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// SSL mode constants for database connections.
const (
	// SSLModeDisable disables SSL (use only for local development).
	SSLModeDisable = "disable"
	// SSLModeRequire requires SSL but does not verify certificates.
	SSLModeRequire = "require"
	// SSLModeVerifyCA verifies the server certificate against a CA.
	SSLModeVerifyCA = "verify-ca"
	// SSLModeVerifyFull verifies the server certificate and hostname.
	SSLModeVerifyFull = "verify-full"
)

// Config holds all configuration for the theme discovery service.
type Config struct {
	// Server contains the liveness/metrics HTTP server settings.
	Server ServerConfig `mapstructure:"server"`
	// Database contains PostgreSQL connection settings.
	Database DatabaseConfig `mapstructure:"database"`
	// Kafka contains trigger bus settings.
	Kafka KafkaConfig `mapstructure:"kafka"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// Clustering contains clustering engine parameters.
	Clustering ClusteringConfig `mapstructure:"clustering"`
	// Labeling contains labeling engine parameters.
	Labeling LabelingConfig `mapstructure:"labeling"`
	// Dedup contains deduplication matcher parameters.
	Dedup DedupConfig `mapstructure:"dedup"`
	// Metadata contains bibliographic metadata resolver settings.
	Metadata MetadataConfig `mapstructure:"metadata"`
	// Embedding contains embedding stage settings.
	Embedding EmbeddingConfig `mapstructure:"embedding"`
}

// ServerConfig holds HTTP server configuration for liveness and metrics.
type ServerConfig struct {
	// Host is the address to bind the server to (default: 0.0.0.0).
	Host string `mapstructure:"host"`
	// HTTPPort is the liveness/metrics server port (default: 8080).
	HTTPPort int `mapstructure:"http_port"`
	// ReadTimeout is the maximum duration for reading request body.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the maximum duration for writing response.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	// Host is the PostgreSQL server hostname.
	Host string `mapstructure:"host"`
	// Port is the PostgreSQL server port (default: 5432).
	Port int `mapstructure:"port"`
	// User is the database username.
	User string `mapstructure:"user"`
	// Password is the database password (use environment variable in production).
	Password string `mapstructure:"password"`
	// Name is the database name.
	Name string `mapstructure:"name"`
	// SSLMode controls SSL connection security (require, verify-ca, verify-full, disable).
	SSLMode string `mapstructure:"ssl_mode"`
	// MaxConns is the maximum number of connections in the pool.
	MaxConns int32 `mapstructure:"max_conns"`
	// MinConns is the minimum number of connections to keep open.
	MinConns int32 `mapstructure:"min_conns"`
	// MaxConnLifetime is the maximum lifetime of a connection before it's closed.
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	// MaxConnIdleTime is the maximum time a connection can be idle before it's closed.
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	// HealthCheckPeriod is the interval between health checks of idle connections.
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	// ConnectTimeout is the maximum time to wait for a connection.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	// MigrationPath is the path to migration files (relative or absolute).
	MigrationPath string `mapstructure:"migration_path"`
	// MigrationAutoRun enables automatic migration on startup (default: false).
	MigrationAutoRun bool `mapstructure:"migration_auto_run"`
}

// KafkaConfig holds trigger bus settings.
type KafkaConfig struct {
	// Brokers is the list of Kafka broker addresses.
	Brokers []string `mapstructure:"brokers"`
	// GroupID is the consumer group ID shared by all stage consumers.
	GroupID string `mapstructure:"group_id"`
	// BatchSize is the maximum number of messages to batch before sending.
	BatchSize int `mapstructure:"batch_size"`
	// BatchTimeout is the maximum time to wait for a batch to fill before sending.
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
	// MaxWait is the maximum time a reader waits for new messages.
	MaxWait time.Duration `mapstructure:"max_wait"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format"`
	// Output is the log output destination (stdout, stderr).
	Output string `mapstructure:"output"`
	// AddSource adds source file and line to log output.
	AddSource bool `mapstructure:"add_source"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled enables metrics collection and exposure.
	Enabled bool `mapstructure:"enabled"`
	// Path is the HTTP path for metrics endpoint.
	Path string `mapstructure:"path"`
}

// ClusteringConfig holds clustering engine parameters.
type ClusteringConfig struct {
	// MinClusters is the lower bound of the cluster count search range.
	MinClusters int `mapstructure:"min_clusters"`
	// MaxClusters is the upper bound of the cluster count search range.
	MaxClusters int `mapstructure:"max_clusters"`
	// MinSections is the minimum number of embedded sections required to run.
	MinSections int `mapstructure:"min_sections"`
	// Seed is the PRNG seed for deterministic k-means fits.
	Seed int64 `mapstructure:"seed"`
	// MainThemeThreshold is the member count at which a cluster becomes a main theme.
	MainThemeThreshold int `mapstructure:"main_theme_threshold"`
	// WeightFloor is the minimum assignment weight.
	WeightFloor float64 `mapstructure:"weight_floor"`
	// MaxSections caps how many embedded sections one run loads.
	MaxSections int `mapstructure:"max_sections"`
}

// LabelingConfig holds labeling engine parameters.
type LabelingConfig struct {
	// MinNgramLength is the smallest n-gram window in tokens.
	MinNgramLength int `mapstructure:"min_ngram_length"`
	// MaxNgramLength is the largest n-gram window in tokens.
	MaxNgramLength int `mapstructure:"max_ngram_length"`
	// TopTerms is how many top n-grams to keep as label candidates.
	TopTerms int `mapstructure:"top_terms"`
	// MaxTexts caps how many section texts one labeling pass loads.
	MaxTexts int `mapstructure:"max_texts"`
}

// DedupConfig holds deduplication matcher parameters.
type DedupConfig struct {
	// TitleSimilarityThreshold is the fuzzy title match threshold (0.0-1.0).
	TitleSimilarityThreshold float64 `mapstructure:"title_similarity_threshold"`
}

// MetadataConfig holds bibliographic metadata resolver settings.
type MetadataConfig struct {
	// CrossrefBaseURL is the Crossref API base URL.
	CrossrefBaseURL string `mapstructure:"crossref_base_url"`
	// OpenAlexBaseURL is the OpenAlex API base URL.
	OpenAlexBaseURL string `mapstructure:"openalex_base_url"`
	// Timeout is the timeout for resolver API calls.
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit is the maximum requests per second per resolver.
	RateLimit float64 `mapstructure:"rate_limit"`
}

// EmbeddingConfig holds embedding stage settings.
type EmbeddingConfig struct {
	// BaseURL is the OpenAI-compatible embeddings endpoint base URL.
	BaseURL string `mapstructure:"base_url"`
	// APIKey is the embeddings API key (loaded from THEMES_EMBEDDING_API_KEY env var).
	APIKey string `mapstructure:"-"`
	// Model is the embedding model name.
	Model string `mapstructure:"model"`
	// BatchSize is the number of sections embedded per request.
	BatchSize int `mapstructure:"batch_size"`
	// MaxChars truncates section text before embedding.
	MaxChars int `mapstructure:"max_chars"`
	// Timeout is the timeout for embedding API calls.
	Timeout time.Duration `mapstructure:"timeout"`
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	params := url.Values{}
	params.Set("sslmode", c.SSLMode)
	if c.ConnectTimeout > 0 {
		params.Set("connect_timeout", fmt.Sprintf("%d", int(c.ConnectTimeout.Seconds())))
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?%s",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		c.Name,
		params.Encode(),
	)
}

// HTTPAddress returns the liveness server address.
func (c *ServerConfig) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

// Load loads configuration from environment variables and config files.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Read from environment variables
	v.SetEnvPrefix("THEMES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file if present
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/theme-discovery-service")

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use env vars and defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Secrets come exclusively from environment variables. The fields use
	// mapstructure:"-" to prevent loading from config files.
	cfg.Embedding.APIKey = os.Getenv("THEMES_EMBEDDING_API_KEY")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "themes")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "theme_discovery_service")
	// Default to "require" for production security. Use THEMES_DATABASE_SSL_MODE=disable for local development.
	v.SetDefault("database.ssl_mode", SSLModeRequire)
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")
	v.SetDefault("database.health_check_period", "30s")
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.migration_path", "migrations")
	v.SetDefault("database.migration_auto_run", false)

	// Kafka defaults
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.group_id", "theme-discovery-service")
	v.SetDefault("kafka.batch_size", 100)
	v.SetDefault("kafka.batch_timeout", "10ms")
	v.SetDefault("kafka.max_wait", "3s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	// Clustering defaults
	v.SetDefault("clustering.min_clusters", 3)
	v.SetDefault("clustering.max_clusters", 20)
	v.SetDefault("clustering.min_sections", 10)
	v.SetDefault("clustering.seed", 42)
	v.SetDefault("clustering.main_theme_threshold", 5)
	v.SetDefault("clustering.weight_floor", 0.1)
	v.SetDefault("clustering.max_sections", 20000)

	// Labeling defaults
	v.SetDefault("labeling.min_ngram_length", 2)
	v.SetDefault("labeling.max_ngram_length", 4)
	v.SetDefault("labeling.top_terms", 10)
	v.SetDefault("labeling.max_texts", 10000)

	// Dedup defaults
	v.SetDefault("dedup.title_similarity_threshold", 0.8)

	// Metadata resolver defaults
	v.SetDefault("metadata.crossref_base_url", "https://api.crossref.org")
	v.SetDefault("metadata.openalex_base_url", "https://api.openalex.org")
	v.SetDefault("metadata.timeout", "10s")
	v.SetDefault("metadata.rate_limit", 10.0)

	// Embedding defaults
	v.SetDefault("embedding.base_url", "https://api.openai.com/v1")
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.batch_size", 32)
	v.SetDefault("embedding.max_chars", 2048)
	v.SetDefault("embedding.timeout", "60s")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.HTTPPort)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Database.Port)
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database name is required")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("max_conns (%d) must be >= min_conns (%d)", c.Database.MaxConns, c.Database.MinConns)
	}

	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("at least one kafka broker is required")
	}
	if c.Kafka.GroupID == "" {
		return fmt.Errorf("kafka group_id is required")
	}

	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Clustering.MinClusters < 2 {
		return fmt.Errorf("clustering min_clusters must be at least 2")
	}
	if c.Clustering.MaxClusters < c.Clustering.MinClusters {
		return fmt.Errorf("clustering max_clusters (%d) must be >= min_clusters (%d)",
			c.Clustering.MaxClusters, c.Clustering.MinClusters)
	}
	if c.Clustering.MinSections <= 0 {
		return fmt.Errorf("clustering min_sections must be positive")
	}
	if c.Clustering.WeightFloor <= 0 || c.Clustering.WeightFloor > 1 {
		return fmt.Errorf("clustering weight_floor must be in (0, 1]")
	}

	if c.Labeling.MinNgramLength < 1 {
		return fmt.Errorf("labeling min_ngram_length must be positive")
	}
	if c.Labeling.MaxNgramLength < c.Labeling.MinNgramLength {
		return fmt.Errorf("labeling max_ngram_length (%d) must be >= min_ngram_length (%d)",
			c.Labeling.MaxNgramLength, c.Labeling.MinNgramLength)
	}
	if c.Labeling.TopTerms <= 0 {
		return fmt.Errorf("labeling top_terms must be positive")
	}

	if c.Dedup.TitleSimilarityThreshold <= 0 || c.Dedup.TitleSimilarityThreshold > 1 {
		return fmt.Errorf("dedup title_similarity_threshold must be in (0, 1]")
	}

	if c.Embedding.BatchSize <= 0 {
		return fmt.Errorf("embedding batch_size must be positive")
	}

	return nil
}
