// Package config loads the application configuration from file and
// environment variables via viper.
package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	// Log configuration
	Log LogConfig `mapstructure:"log"`

	// Server configuration
	Server ServerConfig `mapstructure:"server"`

	// Database configuration
	Database DatabaseConfig `mapstructure:"database"`

	// Embedding configuration
	Embedding EmbeddingConfig `mapstructure:"embedding"`

	// Cache configuration
	Cache CacheConfig `mapstructure:"cache"`

	// CircuitBreaker configuration
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`

	// Telemetry configuration
	Telemetry TelemetryConfig `mapstructure:"telemetry"`

	// Retrieval configuration
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // gin mode: debug, release, test
}

// DatabaseConfig holds graph database configuration
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"` // neo4j
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// EmbeddingConfig holds embedding provider configuration
type EmbeddingConfig struct {
	Provider   string `mapstructure:"provider"` // openai, embedeverything
	Model      string `mapstructure:"model"`
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Dimensions int    `mapstructure:"dimensions"`
	BatchSize  int    `mapstructure:"batch_size"`
}

// CacheConfig holds tenant cache configuration
type CacheConfig struct {
	Path       string `mapstructure:"path"` // empty for in-memory
	TTLSeconds int    `mapstructure:"ttl_seconds"`
}

// CircuitBreakerConfig holds configuration for circuit breaking
type CircuitBreakerConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	MaxRequests      uint32  `mapstructure:"max_requests"`
	Interval         int     `mapstructure:"interval"` // in seconds
	Timeout          int     `mapstructure:"timeout"`  // in seconds
	ReadyToTripRatio float64 `mapstructure:"ready_to_trip_ratio"`
}

// TelemetryConfig holds telemetry configuration
type TelemetryConfig struct {
	ParquetPath string `mapstructure:"parquet_path"`
}

// RetrievalConfig holds the ranking engine tunables
type RetrievalConfig struct {
	// Profile is the tier weight profile: fact_lookup, thematic_survey,
	// multi_hop, or auto to infer per request.
	Profile string `mapstructure:"profile"`

	// Variant forces a propagation variant (bounded_hop, power_iteration);
	// empty means the profile decides.
	Variant string  `mapstructure:"variant"`
	Damping float64 `mapstructure:"damping"` // 0 means the profile decides

	HopLimit      int     `mapstructure:"hop_limit"`
	NeighborTopN  int     `mapstructure:"neighbor_top_n"`
	MaxIterations int     `mapstructure:"max_iterations"`
	Epsilon       float64 `mapstructure:"epsilon"`
	TopK          int     `mapstructure:"top_k"`

	RRFK           int     `mapstructure:"rrf_k"`
	MaxPerSection  int     `mapstructure:"max_per_section"`
	MaxPerDocument int     `mapstructure:"max_per_document"`
	EvidenceTopK   int     `mapstructure:"evidence_top_k"`
	EvidenceLimit  int     `mapstructure:"evidence_limit"` // per-source fetch size

	ConvergenceThreshold float64 `mapstructure:"convergence_threshold"`
	MaxHopIterations     int     `mapstructure:"max_hop_iterations"`

	EmbeddingThreshold float64 `mapstructure:"embedding_threshold"`
	MinJaccard         float64 `mapstructure:"min_jaccard"`
	Oversample         int     `mapstructure:"oversample"`

	CycleTimeoutSeconds   int `mapstructure:"cycle_timeout_seconds"`
	CallTimeoutSeconds    int `mapstructure:"call_timeout_seconds"`
	TenantConcurrency     int `mapstructure:"tenant_concurrency"`
	ResolverConcurrency   int `mapstructure:"resolver_concurrency"`
	FallbackNodeCount     int `mapstructure:"fallback_node_count"`
	RetryMaxAttempts      int `mapstructure:"retry_max_attempts"`
	RetryBaseBackoffMilli int `mapstructure:"retry_base_backoff_ms"`
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	setDefaults()

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	overrideWithEnv(config)

	return config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Log defaults
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")

	// Server defaults
	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "debug")

	// Database defaults
	viper.SetDefault("database.driver", "neo4j")
	viper.SetDefault("database.uri", "bolt://localhost:7687")
	viper.SetDefault("database.username", "neo4j")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.database", "neo4j")

	// Embedding defaults
	viper.SetDefault("embedding.provider", "openai")
	viper.SetDefault("embedding.model", "text-embedding-3-small")
	viper.SetDefault("embedding.dimensions", 1536)
	viper.SetDefault("embedding.batch_size", 100)

	// Cache defaults
	viper.SetDefault("cache.path", "")
	viper.SetDefault("cache.ttl_seconds", 600)

	// Circuit breaker defaults
	viper.SetDefault("circuit_breaker.enabled", true)
	viper.SetDefault("circuit_breaker.max_requests", 2)
	viper.SetDefault("circuit_breaker.interval", 30)
	viper.SetDefault("circuit_breaker.timeout", 15)
	viper.SetDefault("circuit_breaker.ready_to_trip_ratio", 0.6)

	// Retrieval defaults
	viper.SetDefault("retrieval.profile", "auto")
	viper.SetDefault("retrieval.variant", "")
	viper.SetDefault("retrieval.damping", 0.0)
	viper.SetDefault("retrieval.hop_limit", 2)
	viper.SetDefault("retrieval.neighbor_top_n", 10)
	viper.SetDefault("retrieval.max_iterations", 20)
	viper.SetDefault("retrieval.epsilon", 1e-6)
	viper.SetDefault("retrieval.top_k", 50)
	viper.SetDefault("retrieval.rrf_k", 60)
	viper.SetDefault("retrieval.max_per_section", 2)
	viper.SetDefault("retrieval.max_per_document", 3)
	viper.SetDefault("retrieval.evidence_top_k", 20)
	viper.SetDefault("retrieval.evidence_limit", 50)
	viper.SetDefault("retrieval.convergence_threshold", 0.8)
	viper.SetDefault("retrieval.max_hop_iterations", 5)
	viper.SetDefault("retrieval.embedding_threshold", 0.68)
	viper.SetDefault("retrieval.min_jaccard", 0.5)
	viper.SetDefault("retrieval.oversample", 2)
	viper.SetDefault("retrieval.cycle_timeout_seconds", 30)
	viper.SetDefault("retrieval.call_timeout_seconds", 10)
	viper.SetDefault("retrieval.tenant_concurrency", 8)
	viper.SetDefault("retrieval.resolver_concurrency", 4)
	viper.SetDefault("retrieval.fallback_node_count", 5)
	viper.SetDefault("retrieval.retry_max_attempts", 3)
	viper.SetDefault("retrieval.retry_base_backoff_ms", 50)

	// Telemetry defaults
	home, err := os.UserHomeDir()
	if err == nil {
		viper.SetDefault("telemetry.parquet_path", fmt.Sprintf("%s/.graphrank/telemetry", home))
	}
}

// overrideWithEnv overrides config with environment variables
func overrideWithEnv(config *Config) {
	if uri := os.Getenv("NEO4J_URI"); uri != "" {
		config.Database.URI = uri
	}
	if user := os.Getenv("NEO4J_USER"); user != "" {
		config.Database.Username = user
	}
	if pass := os.Getenv("NEO4J_PASSWORD"); pass != "" {
		config.Database.Password = pass
	}

	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.Embedding.APIKey = apiKey
	}

	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	if path := os.Getenv("TELEMETRY_PARQUET_PATH"); path != "" {
		config.Telemetry.ParquetPath = path
	}
}
