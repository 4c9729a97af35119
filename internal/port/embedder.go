package port

import "context"

// EmbeddingProvider turns free text into a dense vector. Implementations can
// target Ollama, Gemini, or any compatible API. Vectors from one provider
// are only comparable with vectors from the same provider and model.
type EmbeddingProvider interface {
	// Name identifies the provider and model, e.g. "ollama/bge-m3".
	Name() string

	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)
}

// BatchEmbedder is implemented by providers that can embed several texts in
// one request. Results keep the input order; blank inputs yield empty vectors.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}
