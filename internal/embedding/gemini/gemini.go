package gemini

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"google.golang.org/genai"

	"iacrag/internal/domain"
	"iacrag/internal/embedding"
)

const (
	DefaultModel     = "gemini-embedding-001"
	DefaultDimension = 768
	DefaultAPIKeyEnv = "GOOGLE_API_KEY"
)

// Config configures the Gemini embedding client.
type Config struct {
	APIKey    string
	APIKeyEnv string
	Model     string
	Dimension int
}

// Client embeds text with a Gemini embedding model.
type Client struct {
	client    *genai.Client
	model     string
	dimension int
}

// NewClient creates a Gemini embedding client.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = DefaultAPIKeyEnv
	}
	key := cfg.APIKey
	if key == "" {
		key = os.Getenv(cfg.APIKeyEnv)
	}
	if key == "" {
		return nil, domain.NewConfigurationError("embedder.gemini.api_key_env", "missing API key in env %q", cfg.APIKeyEnv)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = DefaultDimension
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client: %w", err)
	}
	return &Client{client: client, model: cfg.Model, dimension: cfg.Dimension}, nil
}

// Name returns the model identity of this embedder.
func (c *Client) Name() string { return fmt.Sprintf("gemini/%s@%d", c.model, c.dimension) }

// Embed returns the embedding of text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in one EmbedContent call.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}
	outputDim := int32(c.dimension)
	result, err := c.client.Models.EmbedContent(ctx, c.model, contents, &genai.EmbedContentConfig{
		OutputDimensionality: &outputDim,
	})
	if err != nil {
		return nil, classifyError(err)
	}
	if result == nil || len(result.Embeddings) != len(texts) {
		got := 0
		if result != nil {
			got = len(result.Embeddings)
		}
		return nil, domain.NewEmbeddingError(domain.EmbeddingMalformed,
			fmt.Sprintf("expected %d embeddings, got %d", len(texts), got), nil)
	}
	vecs := make([][]float32, len(texts))
	for i, e := range result.Embeddings {
		if e == nil || len(e.Values) != c.dimension {
			n := 0
			if e != nil {
				n = len(e.Values)
			}
			return nil, domain.NewEmbeddingError(domain.EmbeddingMalformed,
				fmt.Sprintf("embedding dimension mismatch: expected %d, got %d", c.dimension, n), nil)
		}
		vecs[i] = e.Values
	}
	return vecs, nil
}

// classifyError maps a genai error onto an embedding error kind. The SDK
// reports failures as "Error <code>, Message: ..., Status: <STATUS>".
func classifyError(err error) *domain.EmbeddingError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return embedding.Classify(err)
	}
	msg := err.Error()
	has := func(subs ...string) bool {
		for _, s := range subs {
			if strings.Contains(msg, s) {
				return true
			}
		}
		return false
	}
	switch {
	case has("401", "403", "UNAUTHENTICATED", "PERMISSION_DENIED", "API_KEY_INVALID", "API key not valid"):
		return domain.NewEmbeddingError(domain.EmbeddingAuth, "gemini rejected credentials", err)
	case has("429", "RESOURCE_EXHAUSTED", "quota"):
		return domain.NewEmbeddingError(domain.EmbeddingQuota, "gemini rate limit or quota exceeded", err)
	case has("DEADLINE_EXCEEDED", "504"):
		return domain.NewEmbeddingError(domain.EmbeddingTimeout, "gemini deadline exceeded", err)
	case has("500", "502", "503", "UNAVAILABLE", "INTERNAL"):
		return domain.NewEmbeddingError(domain.EmbeddingServer, "gemini server error", err)
	case has("400", "INVALID_ARGUMENT", "404", "NOT_FOUND"):
		return domain.NewEmbeddingError(domain.EmbeddingMalformed, "gemini rejected request", err)
	}
	return embedding.Classify(err)
}
