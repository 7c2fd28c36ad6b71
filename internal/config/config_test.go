package config

import (
	"errors"
	"testing"
	"time"
)

// validBaseConfig returns a Config with all required fields set for the given
// provider.
func validBaseConfig(provider string) *Config {
	cfg := &Config{
		Provider:           provider,
		EmbeddingModel:     DefaultEmbeddingModel,
		DataDir:            "/tmp/beacon-test",
		ChunkSize:          1000,
		ChunkOverlap:       200,
		CrawlTimeout:       10 * time.Second,
		CrawlBatchDelay:    500 * time.Millisecond,
		CrawlMaxPages:      10,
		CrawlMaxDepth:      3,
		Candidates:         8,
		DistanceCeiling:    0.75,
		DistanceMargin:     0.15,
		FallbackCeiling:    0.85,
		FallbackCandidates: 16,
		MaxContextChars:    6000,
		LogLevel:           "info",
	}
	switch provider {
	case ProviderOpenAI:
		cfg.OpenAIAPIKey = "test-key"
	case ProviderOllama:
		cfg.EmbeddingModel = "nomic-embed-text"
		cfg.OllamaHost = "http://localhost:11434"
	}
	return cfg
}

func TestValidate_OK(t *testing.T) {
	for _, provider := range []string{ProviderOpenAI, ProviderOllama} {
		t.Run(provider, func(t *testing.T) {
			if err := validBaseConfig(provider).Validate(); err != nil {
				t.Fatalf("Validate() = %v, want nil", err)
			}
		})
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.Provider = "anthropic" },
			wantErr: ErrInvalidProvider,
		},
		{
			name:    "openai without key",
			mutate:  func(c *Config) { c.OpenAIAPIKey = "" },
			wantErr: ErrMissingAPIKey,
		},
		{
			name:    "empty embedding model",
			mutate:  func(c *Config) { c.EmbeddingModel = "" },
			wantErr: ErrInvalidProvider,
		},
		{
			name:    "chunk size too small",
			mutate:  func(c *Config) { c.ChunkSize = 10 },
			wantErr: ErrInvalidChunking,
		},
		{
			name:    "overlap not smaller than size",
			mutate:  func(c *Config) { c.ChunkOverlap = 1000 },
			wantErr: ErrInvalidChunking,
		},
		{
			name:    "zero page budget",
			mutate:  func(c *Config) { c.CrawlMaxPages = 0 },
			wantErr: ErrInvalidCrawler,
		},
		{
			name:    "negative depth",
			mutate:  func(c *Config) { c.CrawlMaxDepth = -1 },
			wantErr: ErrInvalidCrawler,
		},
		{
			name:    "zero timeout",
			mutate:  func(c *Config) { c.CrawlTimeout = 0 },
			wantErr: ErrInvalidCrawler,
		},
		{
			name:    "fallback candidates below primary",
			mutate:  func(c *Config) { c.FallbackCandidates = 2 },
			wantErr: ErrInvalidRetrieval,
		},
		{
			name:    "ceiling out of range",
			mutate:  func(c *Config) { c.DistanceCeiling = 3 },
			wantErr: ErrInvalidRetrieval,
		},
		{
			name:    "fallback ceiling below primary ceiling",
			mutate:  func(c *Config) { c.FallbackCeiling = 0.5 },
			wantErr: ErrInvalidRetrieval,
		},
		{
			name:    "context budget too small",
			mutate:  func(c *Config) { c.MaxContextChars = 10 },
			wantErr: ErrInvalidRetrieval,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validBaseConfig(ProviderOpenAI)
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want errors.Is(%v)", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_NilConfig(t *testing.T) {
	var cfg *Config
	if err := cfg.Validate(); !errors.Is(err, ErrConfigNil) {
		t.Errorf("Validate() on nil = %v, want ErrConfigNil", err)
	}
}

func TestLevel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"debug", "DEBUG"},
		{"info", "INFO"},
		{"warn", "WARN"},
		{"error", "ERROR"},
		{"unknown", "INFO"},
	}
	for _, tt := range tests {
		cfg := &Config{LogLevel: tt.in}
		if got := cfg.Level().String(); got != tt.want {
			t.Errorf("Level(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
