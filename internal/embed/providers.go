package embed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/beaconchat/beacon/internal/config"
)

// Provider wraps a langchaingo embedder behind the Embedder interface. Both
// the OpenAI and the Ollama backends reduce to this shape; they differ only
// in client construction.
type Provider struct {
	embedder embeddings.Embedder
	logger   *slog.Logger
}

// Embed implements Embedder.
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}

	vecs, err := p.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		p.logger.Error("embedding failed", "count", len(texts), "error", err)
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d for %d texts", len(vecs), len(texts))
	}
	return vecs, nil
}

// NewOpenAI creates an Embedder backed by the OpenAI embeddings API.
func NewOpenAI(apiKey, model string, logger *slog.Logger) (*Provider, error) {
	client, err := openai.New(
		openai.WithToken(apiKey),
		openai.WithEmbeddingModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenAI client: %w", err)
	}

	return newProvider(client, "openai", logger)
}

// NewOllama creates an Embedder backed by a local Ollama server.
func NewOllama(host, model string, logger *slog.Logger) (*Provider, error) {
	client, err := ollama.New(
		ollama.WithServerURL(host),
		ollama.WithModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Ollama client: %w", err)
	}

	return newProvider(client, "ollama", logger)
}

func newProvider(client embeddings.EmbedderClient, name string, logger *slog.Logger) (*Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}

	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, fmt.Errorf("failed to wrap %s embedder: %w", name, err)
	}

	return &Provider{
		embedder: embedder,
		logger:   logger.With("component", name+"-embedder"),
	}, nil
}

// NewFromConfig selects the embedding backend from configuration. This is
// the only place provider selection happens.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) (Embedder, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return NewOpenAI(cfg.OpenAIAPIKey, cfg.EmbeddingModel, logger)
	case config.ProviderOllama:
		return NewOllama(cfg.OllamaHost, cfg.EmbeddingModel, logger)
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidProvider, cfg.Provider)
	}
}
