package sqlite

import (
	"context"
	"errors"
	"testing"

	"ragqa/internal/domain"
)

func openStore(t *testing.T) *Storage {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func entry(id string, vec ...float32) domain.IndexEntry {
	return domain.IndexEntry{
		Chunk: domain.Chunk{
			ID:         id,
			DocumentID: "doc",
			Source:     "manual.pdf",
			Page:       1,
			Text:       "text for " + id,
		},
		Vector: vec,
	}
}

func TestUpsertSearchRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	if err := s.Init(2); err != nil {
		t.Fatalf("Init: %v", err)
	}
	err := s.Upsert(ctx, []domain.IndexEntry{
		entry("far", 0, 1),
		entry("near", 1, 0),
		entry("mid", 0.7, 0.7),
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if s.Count() != 3 {
		t.Fatalf("Count = %d, want 3", s.Count())
	}

	results, err := s.Search(ctx, []float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Chunk.ID != "near" || results[1].Chunk.ID != "mid" {
		t.Fatalf("unexpected order: %s, %s", results[0].Chunk.ID, results[1].Chunk.ID)
	}
	if results[0].Chunk.Text != "text for near" || results[0].Chunk.Source != "manual.pdf" {
		t.Fatalf("chunk metadata lost: %+v", results[0].Chunk)
	}
}

func TestSearchTiesKeepInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	if err := s.Init(2); err != nil {
		t.Fatalf("Init: %v", err)
	}
	err := s.Upsert(ctx, []domain.IndexEntry{
		entry("first", 0, 1),
		entry("second", 0, 1),
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	results, err := s.Search(ctx, []float32{0, 1}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if results[0].Chunk.ID != "first" || results[1].Chunk.ID != "second" {
		t.Fatalf("tie order broken: %s, %s", results[0].Chunk.ID, results[1].Chunk.ID)
	}
}

func TestDimensionChecks(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	if err := s.Init(3); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := s.Upsert(ctx, []domain.IndexEntry{entry("bad", 1, 0)}); !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("Upsert: expected ErrDimensionMismatch, got %v", err)
	}
	if _, err := s.Search(ctx, []float32{1}, 1); !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("Search: expected ErrDimensionMismatch, got %v", err)
	}
}

func TestInitClearsPreviousBuild(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	if err := s.Init(1); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := s.Upsert(ctx, []domain.IndexEntry{entry("old", 1)}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := s.Init(1); err != nil {
		t.Fatalf("re-Init: %v", err)
	}
	if s.Count() != 0 {
		t.Fatalf("Count after re-Init = %d, want 0", s.Count())
	}
}

func TestAttachKeepsStoredEntries(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Init(2); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := s.Upsert(ctx, []domain.IndexEntry{entry("kept", 1, 0)}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if err := reopened.Attach(2); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	if reopened.Count() != 1 {
		t.Fatalf("Count = %d, want 1", reopened.Count())
	}
	results, err := reopened.Search(ctx, []float32{1, 0}, 1)
	if err != nil || len(results) != 1 || results[0].Chunk.ID != "kept" {
		t.Fatalf("Search after Attach: %v %v", results, err)
	}
	if err := reopened.Attach(3); !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("Attach wrong dim: expected ErrDimensionMismatch, got %v", err)
	}
}

func TestStoredDimension(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	if err := s.Init(4); err != nil {
		t.Fatalf("Init: %v", err)
	}
	dim, err := s.Dimension()
	if err != nil || dim != 0 {
		t.Fatalf("Dimension of empty store = %d, %v", dim, err)
	}
	if err := s.Upsert(ctx, []domain.IndexEntry{entry("a", 1, 0, 0, 0)}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	dim, err = s.Dimension()
	if err != nil || dim != 4 {
		t.Fatalf("Dimension = %d, %v; want 4", dim, err)
	}
}

func TestVectorCodecRoundTrip(t *testing.T) {
	in := []float32{0.25, -1.5, 3.125, 0}
	out, err := decodeVector(encodeVector(in))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("length mismatch: %d vs %d", len(out), len(in))
	}
	for i := range in {
		if in[i] != out[i] {
			t.Fatalf("value %d mismatch: %f vs %f", i, in[i], out[i])
		}
	}
	if _, err := decodeVector([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for truncated blob")
	}
}
