package driven

import "context"

// CompletionOptions configures a generation call.
type CompletionOptions struct {
	// MaxTokens is the token budget for the response.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic).
	Temperature float64
}

// ModelProvider is the AI backend for the analysis stages.
// Transient failures (timeout, rate limit, 5xx) are reported as
// domain.ErrRateLimited or domain.ErrProviderUnavailable so the stage
// runner can retry with backoff.
//
// Implementations may include:
//   - OpenAI (chat completions + embeddings)
//   - Azure OpenAI or compatible APIs
//   - Local inference servers
type ModelProvider interface {
	// Complete produces a text completion for the prompt.
	Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error)

	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// ModelName returns the generation model identifier.
	ModelName() string

	// EmbeddingModelName returns the embedding model identifier.
	EmbeddingModelName() string

	// Ping validates the provider is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
