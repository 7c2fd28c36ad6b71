package config

import "fmt"

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	switch c.Provider {
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("%w: set OPENAI_API_KEY or openai_api_key in config", ErrMissingAPIKey)
		}
	case ProviderOllama:
		if c.OllamaHost == "" {
			return fmt.Errorf("%w: ollama_host cannot be empty", ErrInvalidProvider)
		}
	default:
		return fmt.Errorf("%w: %q, must be %q or %q",
			ErrInvalidProvider, c.Provider, ProviderOpenAI, ProviderOllama)
	}

	if c.EmbeddingModel == "" {
		return fmt.Errorf("%w: embedding_model cannot be empty", ErrInvalidProvider)
	}

	if c.ChunkSize < 100 || c.ChunkSize > 1<<20 {
		return fmt.Errorf("%w: chunk_size must be between 100 and 1048576, got %d",
			ErrInvalidChunking, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap must be non-negative and smaller than chunk_size, got %d",
			ErrInvalidChunking, c.ChunkOverlap)
	}

	if c.CrawlMaxPages < 1 || c.CrawlMaxPages > 1000 {
		return fmt.Errorf("%w: crawl_max_pages must be between 1 and 1000, got %d",
			ErrInvalidCrawler, c.CrawlMaxPages)
	}
	if c.CrawlMaxDepth < 0 || c.CrawlMaxDepth > 20 {
		return fmt.Errorf("%w: crawl_max_depth must be between 0 and 20, got %d",
			ErrInvalidCrawler, c.CrawlMaxDepth)
	}
	if c.CrawlTimeout <= 0 {
		return fmt.Errorf("%w: crawl_timeout must be positive", ErrInvalidCrawler)
	}

	if c.Candidates < 1 || c.FallbackCandidates < c.Candidates {
		return fmt.Errorf("%w: candidate counts must satisfy 1 <= candidates <= fallback candidates, got %d and %d",
			ErrInvalidRetrieval, c.Candidates, c.FallbackCandidates)
	}
	if c.DistanceCeiling <= 0 || c.DistanceCeiling > 2 {
		return fmt.Errorf("%w: distance ceiling must be in (0, 2], got %.2f",
			ErrInvalidRetrieval, c.DistanceCeiling)
	}
	if c.DistanceMargin < 0 || c.DistanceMargin > 1 {
		return fmt.Errorf("%w: distance margin must be in [0, 1], got %.2f",
			ErrInvalidRetrieval, c.DistanceMargin)
	}
	if c.FallbackCeiling < c.DistanceCeiling || c.FallbackCeiling > 2 {
		return fmt.Errorf("%w: fallback ceiling must be in [distance ceiling, 2], got %.2f",
			ErrInvalidRetrieval, c.FallbackCeiling)
	}
	if c.MaxContextChars < 500 {
		return fmt.Errorf("%w: max context chars must be at least 500, got %d",
			ErrInvalidRetrieval, c.MaxContextChars)
	}

	return nil
}
