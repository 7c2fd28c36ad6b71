// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.beacon/config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - Embedding: provider selection (openai / ollama) and model
//   - Storage: data directory, sqlite path, vector index directory
//   - Crawler: fetch timeout, batch delay, default budgets
//   - Chunking: target size and overlap
//   - Retrieval: distance thresholds and candidate counts
//
// The retrieval constants encode empirically tuned heuristics; they are
// configuration, not a contract, and may be adjusted per deployment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidProvider indicates the embedding provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidChunking indicates chunk size/overlap are out of range.
	ErrInvalidChunking = errors.New("invalid chunking configuration")

	// ErrInvalidRetrieval indicates retrieval thresholds are out of range.
	ErrInvalidRetrieval = errors.New("invalid retrieval configuration")

	// ErrInvalidCrawler indicates crawler limits are out of range.
	ErrInvalidCrawler = errors.New("invalid crawler configuration")
)

// Embedding provider identifiers used in Config.Provider.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// DefaultEmbeddingModel is the default OpenAI embedding model.
// text-embedding-3-small outputs 1536 dimensions.
const DefaultEmbeddingModel = "text-embedding-3-small"

// Config stores application configuration.
type Config struct {
	// Embedding provider configuration
	Provider       string `mapstructure:"provider"`        // "openai" (default) or "ollama"
	EmbeddingModel string `mapstructure:"embedding_model"` // e.g. "text-embedding-3-small", "nomic-embed-text"
	OpenAIAPIKey   string `mapstructure:"openai_api_key"`
	OllamaHost     string `mapstructure:"ollama_host"`

	// Storage
	DataDir string `mapstructure:"data_dir"` // sqlite database and vector index live under here

	// Chunking
	ChunkSize    int `mapstructure:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap"`

	// Crawler
	CrawlTimeout    time.Duration `mapstructure:"crawl_timeout"`     // per-fetch timeout
	CrawlBatchDelay time.Duration `mapstructure:"crawl_batch_delay"` // politeness delay between worker batches
	CrawlMaxPages   int           `mapstructure:"crawl_max_pages"`   // default page budget
	CrawlMaxDepth   int           `mapstructure:"crawl_max_depth"`   // default depth budget

	// Retrieval thresholds. Distances are cosine distances in [0, 2];
	// a candidate is accepted when its distance is within
	// min(DistanceCeiling, best+DistanceMargin) on the primary attempt,
	// and within FallbackCeiling on fallback attempts.
	Candidates         int     `mapstructure:"retrieval_candidates"`
	DistanceCeiling    float32 `mapstructure:"retrieval_distance_ceiling"`
	DistanceMargin     float32 `mapstructure:"retrieval_distance_margin"`
	FallbackCeiling    float32 `mapstructure:"retrieval_fallback_ceiling"`
	FallbackCandidates int     `mapstructure:"retrieval_fallback_candidates"`
	MaxContextChars    int     `mapstructure:"retrieval_max_context_chars"`

	// Logging
	LogLevel string `mapstructure:"log_level"` // debug, info, warn, error
	LogJSON  bool   `mapstructure:"log_json"`
}

// Load reads configuration from ~/.beacon/config.yaml, the current directory
// and BEACON_* environment variables, then validates it.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".beacon")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v, configDir)

	v.SetEnvPrefix("BEACON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is not an error; defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// OPENAI_API_KEY is the conventional variable name; honor it when the
	// prefixed form is not set.
	if cfg.OpenAIAPIKey == "" {
		cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("provider", ProviderOpenAI)
	v.SetDefault("embedding_model", DefaultEmbeddingModel)
	v.SetDefault("ollama_host", "http://localhost:11434")

	v.SetDefault("data_dir", filepath.Join(configDir, "data"))

	v.SetDefault("chunk_size", 1000)
	v.SetDefault("chunk_overlap", 200)

	v.SetDefault("crawl_timeout", 10*time.Second)
	v.SetDefault("crawl_batch_delay", 500*time.Millisecond)
	v.SetDefault("crawl_max_pages", 10)
	v.SetDefault("crawl_max_depth", 3)

	v.SetDefault("retrieval_candidates", 8)
	v.SetDefault("retrieval_distance_ceiling", 0.75)
	v.SetDefault("retrieval_distance_margin", 0.15)
	v.SetDefault("retrieval_fallback_ceiling", 0.85)
	v.SetDefault("retrieval_fallback_candidates", 16)
	v.SetDefault("retrieval_max_context_chars", 6000)

	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)
}

// DatabasePath returns the sqlite database location under the data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "beacon.db")
}

// VectorDir returns the persistent vector index location under the data
// directory.
func (c *Config) VectorDir() string {
	return filepath.Join(c.DataDir, "vectors")
}

// Level maps the configured log level string to a slog.Level.
func (c *Config) Level() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
