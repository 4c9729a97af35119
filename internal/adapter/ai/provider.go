// Package ai contains the embedding provider adapters.
package ai

import (
	"context"
	"fmt"

	"github.com/arturoeanton/vietstart-api/internal/port"
	"github.com/arturoeanton/vietstart-api/pkg/config"
)

var (
	_ port.EmbeddingProvider = (*OllamaProvider)(nil)
	_ port.BatchEmbedder     = (*OllamaProvider)(nil)
	_ port.EmbeddingProvider = (*GeminiProvider)(nil)
)

// NewProvider builds the embedding provider selected by EMBED_PROVIDER.
func NewProvider(ctx context.Context, cfg *config.Config) (port.EmbeddingProvider, error) {
	switch cfg.EmbedProvider {
	case config.EmbedProviderOllama:
		return NewOllamaProvider(OllamaEndpointConfig{
			BaseURL: cfg.OllamaEmbedURL,
			Model:   cfg.OllamaEmbedModel,
			Token:   cfg.OllamaEmbedToken,
		}), nil
	case config.EmbedProviderGemini:
		g, err := NewGeminiProvider(ctx, cfg.GeminiAPIKey, cfg.GeminiEmbedModel)
		if err != nil {
			return nil, err
		}
		return g, nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.EmbedProvider)
	}
}
