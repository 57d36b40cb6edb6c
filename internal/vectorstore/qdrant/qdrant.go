// Package qdrant is a minimal REST client to a Qdrant collection. It assumes
// cosine distance and creates the collection on Init if missing.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"ragqa/internal/domain"
)

type Storage struct {
	url        string
	apiKey     string
	collection string
	dimension  int
	nextID     int
	client     *http.Client
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

func NewStorage(cfg Config) *Storage {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	collection := cfg.Collection
	if collection == "" {
		collection = "ragqa"
	}
	return &Storage{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: collection,
		client:     &http.Client{Timeout: timeout},
	}
}

// Init recreates the collection with the given vector size. A rebuild always
// starts from an empty collection.
func (s *Storage) Init(dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	s.dimension = dimension
	s.nextID = 0

	ctx := context.Background()
	req, _ := http.NewRequestWithContext(ctx, http.MethodDelete,
		fmt.Sprintf("%s/collections/%s", s.url, s.collection), nil)
	s.auth(req)
	if resp, err := s.client.Do(req); err == nil {
		resp.Body.Close()
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	return s.putJSON(ctx, fmt.Sprintf("%s/collections/%s", s.url, s.collection), body)
}

// Attach binds to the existing collection at query time without touching
// its contents.
func (s *Storage) Attach(dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	s.dimension = dimension
	s.nextID = s.Count()
	return nil
}

func (s *Storage) Upsert(ctx context.Context, entries []domain.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}
	points := make([]map[string]any, len(entries))
	for i, e := range entries {
		if len(e.Vector) != s.dimension {
			return fmt.Errorf("%w: entry %s has %d dims, index has %d",
				domain.ErrDimensionMismatch, e.Chunk.ID, len(e.Vector), s.dimension)
		}
		c := e.Chunk
		points[i] = map[string]any{
			"id":     s.nextID + i,
			"vector": e.Vector,
			"payload": map[string]any{
				"chunk_id":    c.ID,
				"document_id": c.DocumentID,
				"source":      c.Source,
				"page":        c.Page,
				"index":       c.Index,
				"text":        c.Text,
				"start":       c.Start,
				"end":         c.End,
			},
		}
	}
	body := map[string]any{"points": points}
	if err := s.putJSON(ctx, fmt.Sprintf("%s/collections/%s/points?wait=true", s.url, s.collection), body); err != nil {
		return err
	}
	s.nextID += len(entries)
	return nil
}

func (s *Storage) Search(ctx context.Context, vector []float32, topK int) ([]domain.QueryResult, error) {
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d dims, index has %d",
			domain.ErrDimensionMismatch, len(vector), s.dimension)
	}
	if topK <= 0 {
		topK = 3
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := s.postJSON(ctx, fmt.Sprintf("%s/collections/%s/points/search", s.url, s.collection), req, &resp); err != nil {
		return nil, err
	}
	results := make([]domain.QueryResult, 0, len(resp.Result))
	for _, r := range resp.Result {
		results = append(results, domain.QueryResult{Chunk: chunkFromPayload(r.Payload), Score: r.Score})
	}
	return results, nil
}

// Count queries Qdrant for the exact point count, zero on any failure.
func (s *Storage) Count() int {
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	err := s.postJSON(context.Background(),
		fmt.Sprintf("%s/collections/%s/points/count", s.url, s.collection),
		map[string]any{"exact": true}, &resp)
	if err != nil {
		return 0
	}
	return resp.Result.Count
}

func chunkFromPayload(payload map[string]any) domain.Chunk {
	var c domain.Chunk
	if v, ok := payload["chunk_id"].(string); ok {
		c.ID = v
	}
	if v, ok := payload["document_id"].(string); ok {
		c.DocumentID = v
	}
	if v, ok := payload["source"].(string); ok {
		c.Source = v
	}
	if v, ok := payload["page"].(float64); ok {
		c.Page = int(v)
	}
	if v, ok := payload["index"].(float64); ok {
		c.Index = int(v)
	}
	if v, ok := payload["text"].(string); ok {
		c.Text = v
	}
	if v, ok := payload["start"].(float64); ok {
		c.Start = int(v)
	}
	if v, ok := payload["end"].(float64); ok {
		c.End = int(v)
	}
	return c
}

func (s *Storage) auth(req *http.Request) {
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
}

func (s *Storage) putJSON(ctx context.Context, url string, body any) error {
	data, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	s.auth(req)
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant PUT %s failed: %s", url, resp.Status)
	}
	return nil
}

func (s *Storage) postJSON(ctx context.Context, url string, body any, out any) error {
	data, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	s.auth(req)
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant POST %s failed: %s", url, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
