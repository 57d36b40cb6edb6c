package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"ragqa/internal/domain"
)

func TestGenerateSendsChatRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
			Stream  bool `json:"stream"`
			Options struct {
				Temperature float64 `json:"temperature"`
			} `json:"options"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "qwen:7b" {
			t.Errorf("model = %q", req.Model)
		}
		if req.Stream {
			t.Error("expected stream=false")
		}
		if req.Options.Temperature != 0.1 {
			t.Errorf("temperature = %f", req.Options.Temperature)
		}
		if len(req.Messages) != 2 {
			t.Fatalf("expected 2 messages, got %d", len(req.Messages))
		}
		if req.Messages[0].Role != "system" || req.Messages[1].Role != "user" {
			t.Errorf("roles = %s, %s", req.Messages[0].Role, req.Messages[1].Role)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]string{"role": "assistant", "content": "请先断开电源。"},
		})
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Model: "qwen:7b", Temperature: 0.1})
	got, err := c.Generate(context.Background(), "你是维修助手。", "如何处理异常?")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "请先断开电源。" {
		t.Fatalf("reply = %q", got)
	}
}

func TestGenerateOmitsEmptySystemPrompt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Role string `json:"role"`
			} `json:"messages"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
			t.Errorf("messages = %+v", req.Messages)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]string{"role": "assistant", "content": "ok"},
		})
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	if _, err := c.Generate(context.Background(), "", "question"); err != nil {
		t.Fatalf("Generate: %v", err)
	}
}

func TestGenerateWrapsServiceFailures(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"http status": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "model not found", http.StatusNotFound)
		},
		"error field": func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]string{"error": "model not loaded"})
		},
		"empty completion": func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{
				"message": map[string]string{"role": "assistant", "content": ""},
			})
		},
	}
	for name, handler := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(handler)
			defer srv.Close()

			c := NewClient(Config{BaseURL: srv.URL})
			_, err := c.Generate(context.Background(), "sys", "user")
			if !errors.Is(err, domain.ErrModelService) {
				t.Fatalf("expected ErrModelService, got %v", err)
			}
		})
	}
}
