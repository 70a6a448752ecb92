package graphrank

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/soundprediction/graphrank"
	"github.com/soundprediction/graphrank/pkg/cache"
	"github.com/soundprediction/graphrank/pkg/config"
	"github.com/soundprediction/graphrank/pkg/diversify"
	"github.com/soundprediction/graphrank/pkg/driver"
	"github.com/soundprediction/graphrank/pkg/embedder"
	"github.com/soundprediction/graphrank/pkg/fusion"
	"github.com/soundprediction/graphrank/pkg/multihop"
	"github.com/soundprediction/graphrank/pkg/propagation"
	"github.com/soundprediction/graphrank/pkg/resolver"
	"github.com/soundprediction/graphrank/pkg/server"
	"github.com/soundprediction/graphrank/pkg/telemetry"
	"github.com/soundprediction/graphrank/pkg/weighting"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the graphrank HTTP server",
	Long: `Start the graphrank HTTP server to provide REST API access to the
retrieval ranking engine.

The server provides endpoints for:
- Single-cycle retrieval
- Multi-hop retrieval across sub-questions
- Per-tenant graph statistics
- Health checks

Configuration can be provided through config files, environment variables, or command-line flags.`,
	RunE: runServer,
}

var (
	serverHost string
	serverPort int
	serverMode string
)

func init() {
	rootCmd.AddCommand(serverCmd)

	// Server-specific flags
	serverCmd.Flags().StringVar(&serverHost, "host", "localhost", "Server host")
	serverCmd.Flags().IntVar(&serverPort, "port", 8080, "Server port")
	serverCmd.Flags().StringVar(&serverMode, "mode", "debug", "Server mode (debug, release, test)")

	// Database flags
	serverCmd.Flags().String("db-uri", "bolt://localhost:7687", "Graph database URI")
	serverCmd.Flags().String("db-username", "neo4j", "Graph database username")
	serverCmd.Flags().String("db-password", "", "Graph database password")
	serverCmd.Flags().String("db-database", "neo4j", "Graph database name")

	// Embedding flags
	serverCmd.Flags().String("embedding-provider", "openai", "Embedding provider (openai, embedeverything)")
	serverCmd.Flags().String("embedding-model", "", "Embedding model")
	serverCmd.Flags().String("embedding-api-key", "", "Embedding API key")
	serverCmd.Flags().String("embedding-base-url", "", "Embedding base URL")

	// Retrieval flags
	serverCmd.Flags().String("profile", "", "Tier weight profile (fact_lookup, thematic_survey, multi_hop, auto)")
	serverCmd.Flags().String("variant", "", "Propagation variant (bounded_hop, power_iteration)")

	// Telemetry flags
	serverCmd.Flags().String("telemetry-parquet-path", "", "Path to directory for telemetry error records")
}

func runServer(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Override config with command-line flags
	overrideConfigWithFlags(cmd, cfg)

	// Validate configuration
	if err := validateServerConfig(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Initialize the engine
	fmt.Println("Initializing graphrank engine...")
	engine, errorSink, err := initializeEngine(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := engine.Close(closeCtx); err != nil {
			fmt.Printf("Warning: engine close error: %v\n", err)
		}
	}()

	// Create and setup server
	srv := server.New(cfg, engine)
	srv.Setup()

	// Handle signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in a goroutine
	serverErrChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			serverErrChan <- err
		}
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-serverErrChan:
		if errorSink != nil {
			if flushErr := errorSink.Flush(); flushErr != nil {
				fmt.Printf("Warning: telemetry flush error: %v\n", flushErr)
			}
		}
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		fmt.Printf("\nReceived signal: %v\n", sig)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}

		// Drain buffered error records before exit.
		if errorSink != nil {
			if err := errorSink.Flush(); err != nil {
				fmt.Printf("Warning: telemetry flush error: %v\n", err)
			}
		}

		fmt.Println("Server stopped gracefully")
		return nil
	}
}

func overrideConfigWithFlags(cmd *cobra.Command, cfg *config.Config) {
	// Server flags
	if cmd.Flags().Changed("host") {
		cfg.Server.Host = serverHost
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = serverPort
	}
	if cmd.Flags().Changed("mode") {
		cfg.Server.Mode = serverMode
	}

	// Database flags
	if cmd.Flags().Changed("db-uri") {
		cfg.Database.URI, _ = cmd.Flags().GetString("db-uri")
	}
	if cmd.Flags().Changed("db-username") {
		cfg.Database.Username, _ = cmd.Flags().GetString("db-username")
	}
	if cmd.Flags().Changed("db-password") {
		cfg.Database.Password, _ = cmd.Flags().GetString("db-password")
	}
	if cmd.Flags().Changed("db-database") {
		cfg.Database.Database, _ = cmd.Flags().GetString("db-database")
	}

	// Embedding flags
	if cmd.Flags().Changed("embedding-provider") {
		cfg.Embedding.Provider, _ = cmd.Flags().GetString("embedding-provider")
	}
	if cmd.Flags().Changed("embedding-model") {
		cfg.Embedding.Model, _ = cmd.Flags().GetString("embedding-model")
	}
	if cmd.Flags().Changed("embedding-api-key") {
		cfg.Embedding.APIKey, _ = cmd.Flags().GetString("embedding-api-key")
	}
	if cmd.Flags().Changed("embedding-base-url") {
		cfg.Embedding.BaseURL, _ = cmd.Flags().GetString("embedding-base-url")
	}

	// Retrieval flags
	if cmd.Flags().Changed("profile") {
		cfg.Retrieval.Profile, _ = cmd.Flags().GetString("profile")
	}
	if cmd.Flags().Changed("variant") {
		cfg.Retrieval.Variant, _ = cmd.Flags().GetString("variant")
	}

	// Telemetry flags
	if cmd.Flags().Changed("telemetry-parquet-path") {
		cfg.Telemetry.ParquetPath, _ = cmd.Flags().GetString("telemetry-parquet-path")
	}
}

func validateServerConfig(cfg *config.Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", cfg.Server.Port)
	}

	if cfg.Database.URI == "" {
		return fmt.Errorf("database URI is required")
	}
	return nil
}

// buildLogger builds the application logger from config. Error records are
// additionally buffered to parquet when a telemetry path is configured; the
// returned handler (nil without a path) must be flushed on shutdown or the
// tail of the buffer is lost.
func buildLogger(cfg *config.Config) (*slog.Logger, *telemetry.ParquetHandler) {
	var level slog.Level
	switch cfg.Log.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}

	var errorSink *telemetry.ParquetHandler
	if cfg.Telemetry.ParquetPath != "" {
		parquetHandler, err := telemetry.NewParquetHandler(handler, cfg.Telemetry.ParquetPath)
		if err != nil {
			fmt.Printf("Warning: failed to initialize error tracking: %v\n", err)
		} else {
			handler = parquetHandler
			errorSink = parquetHandler
			fmt.Printf("Error tracking enabled at: %s\n", cfg.Telemetry.ParquetPath)
		}
	}

	return slog.New(handler), errorSink
}

// optionsFromConfig maps the retrieval section onto engine options.
func optionsFromConfig(cfg *config.Config) graphrank.Options {
	r := cfg.Retrieval
	options := graphrank.DefaultOptions()

	options.Profile = weighting.Profile(r.Profile)
	options.Variant = propagation.Variant(r.Variant)
	options.Damping = r.Damping

	options.Resolver = resolver.DefaultConfig()
	options.Resolver.MinJaccard = r.MinJaccard
	options.Resolver.EmbeddingThreshold = r.EmbeddingThreshold
	options.Resolver.EmbeddingTimeout = time.Duration(r.CallTimeoutSeconds) * time.Second
	options.Resolver.MaxConcurrency = r.ResolverConcurrency
	options.Weighting = weighting.Config{
		FallbackCount:    r.FallbackNodeCount,
		FallbackCacheKey: "high-degree-nodes",
	}
	options.Propagation = propagation.Config{
		Damping:       r.Damping,
		MaxHops:       r.HopLimit,
		NeighborTopN:  r.NeighborTopN,
		MaxIterations: r.MaxIterations,
		Epsilon:       r.Epsilon,
		TopK:          r.TopK,
	}
	options.Fusion = fusion.Config{
		Method: fusion.MethodRRF,
		K:      r.RRFK,
	}
	options.Diversify = diversify.Config{
		MaxPerSection:  r.MaxPerSection,
		MaxPerDocument: r.MaxPerDocument,
		TopK:           r.EvidenceTopK,
	}
	options.MultiHop = multihop.Config{
		ConvergenceThreshold: r.ConvergenceThreshold,
		MaxIterations:        r.MaxHopIterations,
	}

	options.EvidenceLimit = r.EvidenceLimit
	options.Oversample = r.Oversample
	options.CycleTimeout = time.Duration(r.CycleTimeoutSeconds) * time.Second
	options.TenantConcurrency = r.TenantConcurrency

	return options
}

// initializeEngine wires the graph driver, embedder, and cache into an
// engine per the loaded configuration. The returned error sink is nil when
// parquet error tracking is not configured.
func initializeEngine(cfg *config.Config) (*graphrank.Engine, *telemetry.ParquetHandler, error) {
	logger, errorSink := buildLogger(cfg)

	// Graph driver
	var graphDriver driver.GraphDriver
	switch cfg.Database.Driver {
	case "neo4j", "":
		neo4jDriver, err := driver.NewNeo4jDriver(cfg.Database.URI, cfg.Database.Username, cfg.Database.Password, cfg.Database.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create neo4j driver: %w", err)
		}
		graphDriver = neo4jDriver
	default:
		return nil, nil, fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}

	if cfg.CircuitBreaker.Enabled {
		retry := driver.RetryConfig{
			MaxAttempts: cfg.Retrieval.RetryMaxAttempts,
			BaseBackoff: time.Duration(cfg.Retrieval.RetryBaseBackoffMilli) * time.Millisecond,
			MaxBackoff:  time.Second,
		}
		breaker := driver.BreakerConfig{
			MaxRequests:      cfg.CircuitBreaker.MaxRequests,
			Interval:         time.Duration(cfg.CircuitBreaker.Interval) * time.Second,
			Timeout:          time.Duration(cfg.CircuitBreaker.Timeout) * time.Second,
			ReadyToTripRatio: cfg.CircuitBreaker.ReadyToTripRatio,
		}
		graphDriver = driver.NewResilient(graphDriver, retry, breaker)
	}

	// Embedder client
	var embedderClient embedder.Client
	embedderConfig := embedder.Config{
		Model:      cfg.Embedding.Model,
		BaseURL:    cfg.Embedding.BaseURL,
		BatchSize:  cfg.Embedding.BatchSize,
		Dimensions: cfg.Embedding.Dimensions,
	}
	switch cfg.Embedding.Provider {
	case "openai":
		if cfg.Embedding.APIKey != "" {
			embedderClient = embedder.NewOpenAIEmbedder(cfg.Embedding.APIKey, embedderConfig)
		}
	case "embedeverything":
		client, err := embedder.NewEmbedEverythingClient(embedderConfig)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create local embedder: %w", err)
		}
		embedderClient = client
	case "":
		// No embedder: embedding resolution and the vector source are skipped.
	default:
		return nil, nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Embedding.Provider)
	}

	// Tenant cache
	tenantCache, err := cache.Open(cfg.Cache.Path, time.Duration(cfg.Cache.TTLSeconds)*time.Second)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open cache: %w", err)
	}

	engine, err := graphrank.NewEngine(graphDriver, embedderClient, tenantCache, optionsFromConfig(cfg), logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create engine: %w", err)
	}

	fmt.Printf("Engine initialized with database: %s\n", cfg.Database.URI)
	if embedderClient != nil {
		fmt.Printf("Embedding provider: %s, model: %s\n", cfg.Embedding.Provider, cfg.Embedding.Model)
	}

	return engine, errorSink, nil
}
