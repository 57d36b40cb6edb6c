// Package memory provides an in-memory vector store using brute-force
// cosine similarity, persisted to the index directory as JSONL.
package memory

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"ragqa/internal/domain"
)

const entriesFile = "vectors.jsonl"

// Storage holds chunk vectors and metadata. Vectors are assumed
// L2-normalized, so cosine similarity is a plain dot product.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	entries   []domain.IndexEntry
}

// NewStorage creates an empty store.
func NewStorage() *Storage { return &Storage{} }

// Init sets the vector dimension and clears any previous contents.
func (s *Storage) Init(dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dimension = dimension
	s.entries = nil
	return nil
}

// Upsert appends entries, validating their dimensions.
func (s *Storage) Upsert(_ context.Context, entries []domain.IndexEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		if len(e.Vector) != s.dimension {
			return fmt.Errorf("%w: entry %s has %d dims, index has %d",
				domain.ErrDimensionMismatch, e.Chunk.ID, len(e.Vector), s.dimension)
		}
	}
	s.entries = append(s.entries, entries...)
	return nil
}

// Search returns up to topK entries ranked by descending similarity. Ties
// keep insertion order.
func (s *Storage) Search(_ context.Context, vector []float32, topK int) ([]domain.QueryResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d dims, index has %d",
			domain.ErrDimensionMismatch, len(vector), s.dimension)
	}
	if topK <= 0 {
		topK = 3
	}
	results := make([]domain.QueryResult, len(s.entries))
	for i, e := range s.entries {
		results[i] = domain.QueryResult{Chunk: e.Chunk, Score: dot(e.Vector, vector)}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if topK > len(results) {
		topK = len(results)
	}
	return results[:topK], nil
}

// Count returns the number of stored entries.
func (s *Storage) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Persist streams all entries to dir as JSONL.
func (s *Storage) Persist(dir string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	out, err := os.Create(filepath.Join(dir, entriesFile))
	if err != nil {
		return err
	}
	defer out.Close()

	writer := bufio.NewWriter(out)
	encoder := json.NewEncoder(writer)
	encoder.SetEscapeHTML(false)
	for _, e := range s.entries {
		if err := encoder.Encode(persistedEntry{Chunk: e.Chunk, Vector: e.Vector}); err != nil {
			return fmt.Errorf("write index entry: %w", err)
		}
	}
	return writer.Flush()
}

// Load replaces the store contents with the entries persisted under dir.
// Every entry must match the initialized dimension.
func (s *Storage) Load(dir string) error {
	file, err := os.Open(filepath.Join(dir, entriesFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", domain.ErrMissingIndex, dir)
		}
		return err
	}
	defer file.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 8*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var entry persistedEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return fmt.Errorf("parse index entry at line %d: %w", lineNo, err)
		}
		if len(entry.Vector) != s.dimension {
			return fmt.Errorf("%w: entry at line %d has %d dims, index has %d",
				domain.ErrDimensionMismatch, lineNo, len(entry.Vector), s.dimension)
		}
		s.entries = append(s.entries, domain.IndexEntry{Chunk: entry.Chunk, Vector: entry.Vector})
	}
	return scanner.Err()
}

type persistedEntry struct {
	Chunk  domain.Chunk `json:"chunk"`
	Vector []float32    `json:"vector"`
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
