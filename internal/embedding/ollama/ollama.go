// Package ollama implements the Embedder interface against an Ollama
// embeddings endpoint.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"ragqa/internal/domain"
)

// Client requests embedding vectors from an Ollama server.
type Client struct {
	baseURL    string
	model      string
	timeout    time.Duration
	dimension  int
	client     *http.Client
	maxRetries int
}

// Config configures the Ollama embeddings client.
type Config struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// NewClient creates a new embeddings client using the provided configuration.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "bge-m3"
	}
	t := cfg.Timeout
	if t == 0 {
		t = 30 * time.Second
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		model:      cfg.Model,
		timeout:    t,
		client:     &http.Client{Timeout: t},
		maxRetries: 5,
	}
}

// Name returns the embedding model identifier. It is recorded in the index
// manifest and verified at query time.
func (c *Client) Name() string { return c.model }

// Prepare is not required for remote embedding. The dimension is learned
// lazily on the first embed.
func (c *Client) Prepare(corpus []string) error { return nil }

// Dimension returns the dimensionality of the produced embedding vectors,
// or zero before the first successful embed.
func (c *Client) Dimension() int { return c.dimension }

// Embed returns an L2-normalized embedding vector for the given text.
// Transient failures are retried with exponential backoff; exhaustion wraps
// ErrEmbeddingService.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	body, _ := json.Marshal(map[string]string{
		"model":  c.model,
		"prompt": text,
	})
	url := c.baseURL + "/api/embeddings"

	var lastErr error
	var retryAfter time.Duration
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := retryDelay(attempt - 1)
			if retryAfter > 0 {
				wait = retryAfter
				retryAfter = 0
			}
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", domain.ErrEmbeddingService, ctx.Err())
			case <-time.After(wait):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrEmbeddingService, err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			// a server-provided Retry-After replaces the backoff for the
			// next attempt; the wait itself stays cancellable above
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				if secs, err := strconv.Atoi(ra); err == nil {
					retryAfter = time.Duration(secs) * time.Second
				}
			}
			lastErr = fmt.Errorf("embeddings request failed: %s", resp.Status)
			resp.Body.Close()
			continue
		}
		if resp.StatusCode >= 300 {
			resp.Body.Close()
			return nil, fmt.Errorf("%w: embeddings request failed: %s", domain.ErrEmbeddingService, resp.Status)
		}

		var out struct {
			Embedding []float32 `json:"embedding"`
		}
		err = json.NewDecoder(resp.Body).Decode(&out)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		if len(out.Embedding) == 0 {
			return nil, fmt.Errorf("%w: empty embedding returned", domain.ErrEmbeddingService)
		}
		if c.dimension == 0 {
			c.dimension = len(out.Embedding)
		}
		return normalize(out.Embedding), nil
	}
	return nil, fmt.Errorf("%w: %v", domain.ErrEmbeddingService, lastErr)
}

// normalize scales the vector to unit length so cosine similarity reduces to
// a dot product in the store.
func normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return vec
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}

func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := 200 * time.Millisecond
	// exponential backoff capped at 5s
	d := base << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}
