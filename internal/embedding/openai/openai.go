package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"

	"iacrag/internal/domain"
	"iacrag/internal/embedding"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "text-embedding-3-small"
)

// Client is an OpenAI-compatible embeddings client. It also accepts the
// Ollama-native single embedding response shape.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	dimensions int
	client     *http.Client
}

// Config configures the OpenAI-compatible embeddings client.
type Config struct {
	BaseURL    string
	APIKey     string
	APIKeyEnv  string
	Model      string
	Dimensions int
	HTTPClient *http.Client
}

// NewClient creates a new embeddings client. APIKey takes precedence over
// the environment variable named by APIKeyEnv.
func NewClient(cfg Config) (*Client, error) {
	key := cfg.APIKey
	if key == "" && cfg.APIKeyEnv != "" {
		key = os.Getenv(cfg.APIKeyEnv)
	}
	if key == "" {
		return nil, domain.NewConfigurationError("embedder.openai.api_key_env", "missing API key in env %q", cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     key,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		client:     hc,
	}, nil
}

// Name returns the model identity of this embedder.
func (c *Client) Name() string {
	if c.dimensions > 0 {
		return fmt.Sprintf("openai/%s@%d", c.model, c.dimensions)
	}
	return "openai/" + c.model
}

// Embed returns an embedding vector for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

type request struct {
	Input      []string `json:"input"`
	Model      string   `json:"model"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type response struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	// Ollama-native shape
	Embedding []float32 `json:"embedding"`
}

// EmbedBatch embeds texts in a single request.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(request{Input: texts, Model: c.model, Dimensions: c.dimensions})
	if err != nil {
		return nil, domain.NewEmbeddingError(domain.EmbeddingMalformed, "encode request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(data))
	if err != nil {
		return nil, domain.NewEmbeddingError(domain.EmbeddingMalformed, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, embedding.Classify(err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, embedding.Classify(err)
	}
	if resp.StatusCode >= 300 {
		return nil, statusError(resp.StatusCode, resp.Status, payload)
	}

	var out response
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, domain.NewEmbeddingError(domain.EmbeddingMalformed, "decode response", err)
	}
	if len(out.Data) == 0 && len(out.Embedding) > 0 && len(texts) == 1 {
		return [][]float32{out.Embedding}, nil
	}
	if len(out.Data) != len(texts) {
		return nil, domain.NewEmbeddingError(domain.EmbeddingMalformed,
			fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(out.Data)), nil)
	}
	sort.SliceStable(out.Data, func(i, j int) bool { return out.Data[i].Index < out.Data[j].Index })
	vecs := make([][]float32, len(out.Data))
	for i, d := range out.Data {
		if len(d.Embedding) == 0 {
			return nil, domain.NewEmbeddingError(domain.EmbeddingMalformed, fmt.Sprintf("empty embedding at %d", i), nil)
		}
		vecs[i] = d.Embedding
	}
	return vecs, nil
}

func statusError(code int, status string, body []byte) error {
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	cause := errors.New(msg)
	reason := "status " + status
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return domain.NewEmbeddingError(domain.EmbeddingAuth, reason, cause)
	case code == http.StatusTooManyRequests:
		return domain.NewEmbeddingError(domain.EmbeddingQuota, reason, cause)
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return domain.NewEmbeddingError(domain.EmbeddingTimeout, reason, cause)
	case code >= 500:
		return domain.NewEmbeddingError(domain.EmbeddingServer, reason, cause)
	case code >= 400:
		return domain.NewEmbeddingError(domain.EmbeddingMalformed, reason, cause)
	default:
		return domain.NewEmbeddingError(domain.EmbeddingUnknown, reason, cause)
	}
}
