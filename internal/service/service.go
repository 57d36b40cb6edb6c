// Package service wires the retrieval pipeline together: building the index
// from the knowledge directory, opening a built index, and answering
// questions over it.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"ragqa/internal/composer"
	"ragqa/internal/domain"
	"ragqa/internal/loader"
	"ragqa/internal/vectorstore"
)

// Scanner loads documents from a directory tree.
type Scanner interface {
	Scan(dir string) ([]domain.Document, loader.ScanStats, error)
}

// PersistentEmbedder is implemented by embedders whose corpus-derived state
// (vocabulary, IDF table) must travel with the index: it is written during a
// build and restored before a fresh process can embed queries.
type PersistentEmbedder interface {
	Persist(dir string) error
	Load(dir string) error
}

// BuildStats summarizes an index build.
type BuildStats struct {
	Documents int
	Pages     int
	Chunks    int
	Skipped   int
	Failed    int
}

// Config holds the service's directory layout and retrieval bounds.
type Config struct {
	KnowledgeDir string
	IndexDir     string
	StoreType    string
	TopK         int
}

// Service coordinates the build and query pipelines over injected
// collaborators.
type Service struct {
	scanner  Scanner
	chunker  domain.Chunker
	embedder domain.Embedder
	store    vectorstore.Store
	composer *composer.Composer
	cfg      Config
	log      *slog.Logger
}

// New creates a Service. All collaborators are required except composer,
// which only queries need.
func New(scanner Scanner, chunker domain.Chunker, embedder domain.Embedder, store vectorstore.Store, comp *composer.Composer, cfg Config, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 3
	}
	return &Service{
		scanner:  scanner,
		chunker:  chunker,
		embedder: embedder,
		store:    store,
		composer: comp,
		cfg:      cfg,
		log:      log,
	}
}

// BuildIndex scans the knowledge directory, chunks and embeds every
// document, and writes the index. Nothing is persisted until every chunk has
// been embedded and stored; the manifest is written last, so an interrupted
// build never leaves a usable partial index behind.
func (s *Service) BuildIndex(ctx context.Context) (BuildStats, error) {
	var stats BuildStats

	docs, scanStats, err := s.scanner.Scan(s.cfg.KnowledgeDir)
	if err != nil {
		return stats, fmt.Errorf("scan %s: %w", s.cfg.KnowledgeDir, err)
	}
	stats.Documents = len(docs)
	stats.Pages = scanStats.Pages
	stats.Skipped = scanStats.Skipped
	stats.Failed = scanStats.Failed
	if len(docs) == 0 {
		return stats, fmt.Errorf("%w: no loadable documents under %s", domain.ErrEmptyCorpus, s.cfg.KnowledgeDir)
	}

	var chunks []domain.Chunk
	for _, doc := range docs {
		docChunks, err := s.chunker.Chunk(doc)
		if err != nil {
			return stats, fmt.Errorf("chunk %s: %w", doc.Path, err)
		}
		chunks = append(chunks, docChunks...)
	}
	stats.Chunks = len(chunks)
	if len(chunks) == 0 {
		return stats, fmt.Errorf("%w: splitting produced zero chunks", domain.ErrEmptyCorpus)
	}
	s.log.Info("corpus chunked",
		"documents", len(docs), "pages", stats.Pages, "chunks", len(chunks))

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	if err := s.embedder.Prepare(texts); err != nil {
		return stats, fmt.Errorf("prepare embedder: %w", err)
	}

	entries := make([]domain.IndexEntry, len(chunks))
	for i, c := range chunks {
		vec, err := s.embedder.Embed(ctx, c.Text)
		if err != nil {
			return stats, fmt.Errorf("embed chunk %s: %w", c.ID, err)
		}
		entries[i] = domain.IndexEntry{Chunk: c, Vector: vec}
	}

	dimension := s.embedder.Dimension()
	if err := s.store.Init(dimension); err != nil {
		return stats, fmt.Errorf("init store: %w", err)
	}
	if err := s.store.Upsert(ctx, entries); err != nil {
		return stats, fmt.Errorf("store entries: %w", err)
	}

	if err := os.MkdirAll(s.cfg.IndexDir, 0o755); err != nil {
		return stats, err
	}
	if p, ok := s.store.(vectorstore.Persistent); ok {
		if err := p.Persist(s.cfg.IndexDir); err != nil {
			return stats, fmt.Errorf("persist index: %w", err)
		}
	}
	if pe, ok := s.embedder.(PersistentEmbedder); ok {
		if err := pe.Persist(s.cfg.IndexDir); err != nil {
			return stats, fmt.Errorf("persist embedder state: %w", err)
		}
	}
	manifest := Manifest{
		EmbeddingModel: s.embedder.Name(),
		Dimension:      dimension,
		Store:          s.cfg.StoreType,
		ChunkCount:     len(chunks),
		CreatedAt:      time.Now().UTC(),
	}
	if err := writeManifest(s.cfg.IndexDir, manifest); err != nil {
		return stats, fmt.Errorf("write manifest: %w", err)
	}
	s.log.Info("index built", "chunks", len(chunks), "dimension", dimension, "dir", s.cfg.IndexDir)
	return stats, nil
}

// OpenIndex loads a previously built index for querying. The manifest's
// embedding model must match the configured embedder; querying with a
// different model would silently return garbage.
func (s *Service) OpenIndex(ctx context.Context) (Manifest, error) {
	manifest, err := readManifest(s.cfg.IndexDir)
	if err != nil {
		return Manifest{}, err
	}
	if manifest.EmbeddingModel != s.embedder.Name() {
		return Manifest{}, fmt.Errorf("%w: index built with %q, configured %q",
			domain.ErrModelMismatch, manifest.EmbeddingModel, s.embedder.Name())
	}

	if pe, ok := s.embedder.(PersistentEmbedder); ok {
		if err := pe.Load(s.cfg.IndexDir); err != nil {
			return Manifest{}, fmt.Errorf("load embedder state: %w", err)
		}
	}
	if a, ok := s.store.(vectorstore.Attachable); ok {
		if err := a.Attach(manifest.Dimension); err != nil {
			return Manifest{}, fmt.Errorf("attach store: %w", err)
		}
	} else if p, ok := s.store.(vectorstore.Persistent); ok {
		if err := s.store.Init(manifest.Dimension); err != nil {
			return Manifest{}, fmt.Errorf("init store: %w", err)
		}
		if err := p.Load(s.cfg.IndexDir); err != nil {
			return Manifest{}, fmt.Errorf("load index: %w", err)
		}
	}
	s.log.Info("index opened",
		"model", manifest.EmbeddingModel, "chunks", manifest.ChunkCount, "dir", s.cfg.IndexDir)
	return manifest, nil
}

// Retrieve embeds the question and returns the topK most similar chunks.
func (s *Service) Retrieve(ctx context.Context, question string) ([]domain.QueryResult, error) {
	vec, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	results, err := s.store.Search(ctx, vec, s.cfg.TopK)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	return results, nil
}

// Ask answers a question over the opened index. Retrieval failures are
// returned as errors; model failures degrade inside the composer.
func (s *Service) Ask(ctx context.Context, question string) (domain.Answer, error) {
	results, err := s.Retrieve(ctx, question)
	if err != nil {
		return domain.Answer{}, err
	}
	return s.composer.Compose(ctx, question, results), nil
}
