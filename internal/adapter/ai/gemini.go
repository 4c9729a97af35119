package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const defaultGeminiEmbedModel = "text-embedding-004"

// contentEmbedder is the slice of *genai.Models the provider uses.
type contentEmbedder interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// GeminiProvider implements port.EmbeddingProvider on the Gemini API.
type GeminiProvider struct {
	models    contentEmbedder
	modelName string
}

// NewGeminiProvider creates a Gemini embedding provider for the Gemini API backend.
func NewGeminiProvider(ctx context.Context, apiKey, model string) (*GeminiProvider, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return newGeminiProvider(client.Models, model), nil
}

func newGeminiProvider(models contentEmbedder, model string) *GeminiProvider {
	if model = strings.TrimSpace(model); model == "" {
		model = defaultGeminiEmbedModel
	}
	return &GeminiProvider{models: models, modelName: model}
}

// Name returns the provider/model identifier.
func (g *GeminiProvider) Name() string {
	return "gemini/" + g.modelName
}

// Embed returns the embedding of text. Blank text yields an empty vector
// without calling the API.
func (g *GeminiProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return []float32{}, nil
	}

	resp, err := g.models.EmbedContent(ctx, g.modelName, genai.Text(text), nil)
	if err != nil {
		return nil, fmt.Errorf("gemini embed: %w", err)
	}
	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, errors.New("gemini embed: empty response")
	}
	return resp.Embeddings[0].Values, nil
}
