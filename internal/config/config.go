// Package config provides configuration management for the ingestion crawler.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/Jiejieojoyuyu/article-recommendation-project/internal/domain"
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

// validate is the shared validator instance for struct tag validation.
var validate = validator.New(validator.WithRequiredStructEnabled())

// Config holds all configuration for the ingestion crawler.
type Config struct {
	// Server contains the operational HTTP server settings.
	Server ServerConfig `mapstructure:"server"`
	// Database contains PostgreSQL connection settings.
	Database DatabaseConfig `mapstructure:"database"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// Crawl contains the ingestion run settings and the domain catalog.
	Crawl CrawlConfig `mapstructure:"crawl"`
	// OpenAlex contains upstream works API settings.
	OpenAlex OpenAlexConfig `mapstructure:"openalex"`
	// Kafka contains Kafka publisher settings for crawl lifecycle events.
	Kafka KafkaConfig `mapstructure:"kafka"`
}

// ServerConfig holds the operational HTTP server configuration.
type ServerConfig struct {
	// Enabled controls whether the status server is started.
	Enabled bool `mapstructure:"enabled"`
	// Host is the address to bind the server to (default: 0.0.0.0).
	Host string `mapstructure:"host"`
	// HTTPPort is the HTTP server port (default: 8080).
	HTTPPort int `mapstructure:"http_port" validate:"min=1,max=65535"`
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
	Host string `mapstructure:"host" validate:"required"`
	// Port is the PostgreSQL server port (default: 5432).
	Port int `mapstructure:"port" validate:"min=1,max=65535"`
	// User is the database username.
	User string `mapstructure:"user"`
	// Password is the database password (use environment variable in production).
	Password string `mapstructure:"password"`
	// Name is the database name.
	Name string `mapstructure:"name" validate:"required"`
	// SSLMode controls SSL connection security (require, verify-ca, verify-full, disable).
	// Default is "require" for production security. Use "disable" only for local development.
	SSLMode string `mapstructure:"ssl_mode"`
	// MaxConns is the maximum number of connections in the pool (default: 10).
	MaxConns int32 `mapstructure:"max_conns"`
	// MinConns is the minimum number of connections to keep open (default: 2).
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

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format"`
	// Output is the log output destination (stdout, stderr, file path).
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

// CrawlConfig holds the ingestion run settings and the domain catalog.
type CrawlConfig struct {
	// Concurrency is the size of the outbound fetch pool. Kept small so the
	// upstream service is never hit by more than a handful of requests at
	// once.
	Concurrency int `mapstructure:"concurrency" validate:"min=1,max=5"`
	// PageSize is the requested page size; the upstream API caps it at 200.
	PageSize int `mapstructure:"page_size" validate:"min=1,max=200"`
	// BatchSize is the number of records accumulated before one multi-row
	// store write.
	BatchSize int `mapstructure:"batch_size" validate:"min=1"`
	// PerCallCap is the maximum number of records drawn from a single task
	// activation before it yields back to the scheduler.
	PerCallCap int `mapstructure:"per_call_cap" validate:"min=1"`
	// MaxAttempts is the per-request attempt ceiling before a page is
	// abandoned.
	MaxAttempts int `mapstructure:"max_attempts" validate:"min=1,max=10"`
	// RequestTimeout bounds every individual upstream request.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	// MinRequestInterval is the fixed pacing delay applied before each
	// upstream request.
	MinRequestInterval time.Duration `mapstructure:"min_request_interval"`
	// CheckpointPath is the progress file rewritten atomically after every
	// committed page.
	CheckpointPath string `mapstructure:"checkpoint_path" validate:"required"`
	// SizeCeilingMB stops the run when the store footprint crosses it. The
	// default sits a safety margin below the 50 GB hard limit.
	SizeCeilingMB int64 `mapstructure:"size_ceiling_mb" validate:"min=1"`
	// TrackRelations enables writing referenced-work edges alongside records.
	TrackRelations bool `mapstructure:"track_relations"`
	// Domains is the immutable crawl catalog. When empty the built-in
	// catalog is used.
	Domains []DomainConfig `mapstructure:"domains"`
}

// DomainConfig describes one topical domain of the crawl catalog.
type DomainConfig struct {
	// Name is the domain label stored on every record.
	Name string `mapstructure:"name"`
	// Weight orders domains for scheduling; higher is crawled first.
	Weight float64 `mapstructure:"weight"`
	// MaxPapers caps the number of records stored for this domain.
	MaxPapers int64 `mapstructure:"max_papers"`
	// Keywords are the search terms crawled for this domain.
	Keywords []string `mapstructure:"keywords"`
	// YearRanges are the inclusive publication-year windows crawled per
	// keyword.
	YearRanges []domain.YearRange `mapstructure:"year_ranges"`
}

// OpenAlexConfig holds upstream works API settings.
type OpenAlexConfig struct {
	// BaseURL is the API base URL.
	BaseURL string `mapstructure:"base_url" validate:"required"`
	// Email is sent as the mailto parameter for the polite pool.
	Email string `mapstructure:"email"`
	// UserAgent identifies the crawler to the upstream service.
	UserAgent string `mapstructure:"user_agent"`
	// Sort is the result ordering requested from the upstream API.
	Sort string `mapstructure:"sort"`
}

// KafkaConfig holds Kafka publisher settings for crawl lifecycle events.
type KafkaConfig struct {
	// Enabled controls whether event publishing is active.
	Enabled bool `mapstructure:"enabled"`
	// Brokers is the list of Kafka broker addresses.
	Brokers []string `mapstructure:"brokers"`
	// Topic is the Kafka topic to publish crawl events to.
	Topic string `mapstructure:"topic"`
	// BatchTimeout is the maximum time to wait for a batch to fill before sending.
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
	// WriteTimeout bounds a single publish so event delivery never stalls
	// the crawl loop.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
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

// HTTPAddress returns the HTTP server address.
func (c *ServerConfig) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

// Load loads configuration from defaults, an optional config file, and
// environment variables. An empty path searches the standard locations.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read from environment variables
	v.SetEnvPrefix("CRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file if present
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/article-recommendation")
	}

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use env vars and defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if len(cfg.Crawl.Domains) == 0 {
		cfg.Crawl.Domains = DefaultDomains()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "crawler")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "article_recommendation")
	// Default to "require" for production security. Use CRAWLER_DATABASE_SSL_MODE=disable for local development.
	v.SetDefault("database.ssl_mode", SSLModeRequire)
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")
	v.SetDefault("database.health_check_period", "30s")
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.migration_path", "migrations")
	v.SetDefault("database.migration_auto_run", false)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	// Crawl defaults
	v.SetDefault("crawl.concurrency", 3)
	v.SetDefault("crawl.page_size", 200)
	v.SetDefault("crawl.batch_size", 50)
	v.SetDefault("crawl.per_call_cap", 1000)
	v.SetDefault("crawl.max_attempts", 6)
	v.SetDefault("crawl.request_timeout", "30s")
	v.SetDefault("crawl.min_request_interval", "1s")
	v.SetDefault("crawl.checkpoint_path", "crawl_progress.json")
	v.SetDefault("crawl.size_ceiling_mb", 48000)
	v.SetDefault("crawl.track_relations", true)

	// OpenAlex defaults
	v.SetDefault("openalex.base_url", "https://api.openalex.org")
	v.SetDefault("openalex.email", "")
	v.SetDefault("openalex.user_agent", "ArticleRecommendationCrawler/1.0")
	v.SetDefault("openalex.sort", "cited_by_count:desc")

	// Kafka defaults
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "events.crawl.article_recommendation")
	v.SetDefault("kafka.batch_timeout", "10ms")
	v.SetDefault("kafka.write_timeout", "5s")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Validate database config
	if c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("max_conns (%d) must be >= min_conns (%d)", c.Database.MaxConns, c.Database.MinConns)
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	// Validate crawl timings
	if c.Crawl.RequestTimeout <= 0 {
		return fmt.Errorf("crawl request_timeout must be positive")
	}
	if c.Crawl.MinRequestInterval < 0 {
		return fmt.Errorf("crawl min_request_interval must not be negative")
	}
	if c.Crawl.BatchSize > c.Crawl.PerCallCap {
		return fmt.Errorf("crawl batch_size (%d) must be <= per_call_cap (%d)", c.Crawl.BatchSize, c.Crawl.PerCallCap)
	}

	// Validate the domain catalog
	if len(c.Crawl.Domains) == 0 {
		return fmt.Errorf("crawl domain catalog must not be empty")
	}
	seen := make(map[string]bool, len(c.Crawl.Domains))
	for _, d := range c.Crawl.Domains {
		if strings.TrimSpace(d.Name) == "" {
			return fmt.Errorf("crawl domain name must not be empty")
		}
		if seen[d.Name] {
			return fmt.Errorf("duplicate crawl domain: %s", d.Name)
		}
		seen[d.Name] = true
		if d.Weight <= 0 {
			return fmt.Errorf("crawl domain %s: weight must be positive", d.Name)
		}
		if d.MaxPapers <= 0 {
			return fmt.Errorf("crawl domain %s: max_papers must be positive", d.Name)
		}
		if len(d.Keywords) == 0 {
			return fmt.Errorf("crawl domain %s: at least one keyword is required", d.Name)
		}
		if len(d.YearRanges) == 0 {
			return fmt.Errorf("crawl domain %s: at least one year range is required", d.Name)
		}
		for _, yr := range d.YearRanges {
			if yr.From <= 0 || yr.To <= 0 || yr.From > yr.To {
				return fmt.Errorf("crawl domain %s: invalid year range %d-%d", d.Name, yr.From, yr.To)
			}
		}
	}

	// Validate kafka config
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka brokers are required when kafka is enabled")
		}
		if c.Kafka.Topic == "" {
			return fmt.Errorf("kafka topic is required when kafka is enabled")
		}
	}

	return nil
}
