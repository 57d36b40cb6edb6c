// Package ollama implements the Generator interface against an Ollama chat
// endpoint.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"ragqa/internal/domain"
)

// Client generates answers through an Ollama chat model.
type Client struct {
	baseURL     string
	model       string
	temperature float64
	client      *http.Client
}

// Config configures the Ollama chat client.
type Config struct {
	BaseURL     string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// NewClient creates a new chat client using the provided configuration.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "qwen:7b"
	}
	t := cfg.Timeout
	if t == 0 {
		t = 2 * time.Minute
	}
	return &Client{
		baseURL:     cfg.BaseURL,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		client:      &http.Client{Timeout: t},
	}
}

// Name returns the chat model identifier.
func (c *Client) Name() string { return c.model }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  chatOptions   `json:"options"`
}

type chatOptions struct {
	Temperature float64 `json:"temperature"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
	Error   string      `json:"error"`
}

// Generate sends a non-streaming chat completion request and returns the
// model's reply. Any failure wraps ErrModelService.
func (c *Client) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	messages := make([]chatMessage, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: userPrompt})

	body, _ := json.Marshal(chatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   false,
		Options:  chatOptions{Temperature: c.temperature},
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrModelService, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrModelService, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: chat request failed: %s", domain.ErrModelService, resp.Status)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode chat response: %v", domain.ErrModelService, err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("%w: %s", domain.ErrModelService, out.Error)
	}
	if out.Message.Content == "" {
		return "", fmt.Errorf("%w: empty completion returned", domain.ErrModelService)
	}
	return out.Message.Content, nil
}
