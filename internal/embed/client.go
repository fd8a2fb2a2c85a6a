// Package embed runs the embedding stage: it turns section texts into vectors
// via an OpenAI-compatible embeddings API and persists them per section.
package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/helixir/theme-discovery-service/internal/config"
	"github.com/helixir/theme-discovery-service/internal/domain"
)

// Embedder converts a batch of texts into embedding vectors.
// Implementations must return one vector per input text, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// Client defaults.
const (
	defaultRetryDelay = 2 * time.Second
	maxRetries        = 3
	// maxResponseBytes bounds how much of a response body is read.
	maxResponseBytes = 50 << 20
)

// embeddingRequest is the OpenAI embeddings API request body.
type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// embeddingResponse is the OpenAI embeddings API response body.
type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// apiErrorResponse is the error envelope the API returns on failure.
type apiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Client calls an OpenAI-compatible /embeddings endpoint.
// Transient failures (5xx, 429) are retried with linear backoff.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	retryDelay time.Duration
}

// Compile-time interface verification.
var _ Embedder = (*Client)(nil)

// NewClient creates an embeddings API client from configuration.
func NewClient(cfg config.EmbeddingConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		retryDelay: defaultRetryDelay,
	}
}

// Embed implements Embedder.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay * time.Duration(attempt)
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("embeddings: context cancelled during retry wait: %w", ctx.Err())
			case <-time.After(delay):
			}
		}

		vectors, err := c.doRequest(ctx, texts)
		if err == nil {
			return vectors, nil
		}
		if !domain.IsRetryable(err) {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("embeddings: exhausted %d retries: %w", maxRetries, lastErr)
}

// doRequest performs a single embeddings API call.
func (c *Client) doRequest(ctx context.Context, texts []string) ([][]float64, error) {
	body, err := json.Marshal(embeddingRequest{Model: c.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("embeddings: failed to marshal request: %w", err)
	}

	endpoint := c.baseURL + "/embeddings"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("embeddings: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embeddings: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("embeddings: failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		message := string(respBody)
		var errResp apiErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error.Message != "" {
			message = errResp.Error.Message
		}
		return nil, domain.NewExternalAPIError("embeddings", resp.StatusCode, message, nil)
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("embeddings: failed to unmarshal response: %w", err)
	}
	if len(parsed.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings: got %d vectors for %d inputs", len(parsed.Data), len(texts))
	}

	// The API documents data as input-ordered, but index is authoritative.
	vectors := make([][]float64, len(texts))
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, fmt.Errorf("embeddings: vector index %d out of range", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	for i, v := range vectors {
		if v == nil {
			return nil, fmt.Errorf("embeddings: missing vector for input %d", i)
		}
	}

	return vectors, nil
}
