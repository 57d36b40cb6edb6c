// Package app assembles the pipeline from configuration. Both binaries use
// the same assembly so the index builder and the chat front-end can never
// disagree about models or stores.
package app

import (
	"fmt"
	"log/slog"
	"time"

	"ragqa/internal/chunker"
	"ragqa/internal/composer"
	"ragqa/internal/config"
	"ragqa/internal/domain"
	embollama "ragqa/internal/embedding/ollama"
	"ragqa/internal/embedding/tfidf"
	llmollama "ragqa/internal/llm/ollama"
	"ragqa/internal/loader"
	"ragqa/internal/service"
	"ragqa/internal/vectorstore"
	"ragqa/internal/vectorstore/memory"
	"ragqa/internal/vectorstore/qdrant"
	"ragqa/internal/vectorstore/sqlite"
)

// Assemble builds the question-answering service from the configuration.
func Assemble(cfg *config.AppConfig, log *slog.Logger) (*service.Service, error) {
	var emb domain.Embedder
	switch cfg.Embedder.Type {
	case "ollama", "":
		emb = embollama.NewClient(embollama.Config{
			BaseURL: cfg.Embedder.Ollama.BaseURL,
			Model:   cfg.Embedder.Ollama.Model,
			Timeout: time.Duration(cfg.Embedder.Ollama.TimeoutSecs) * time.Second,
		})
	case "tfidf":
		emb = tfidf.NewEmbedder()
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Embedder.Type)
	}

	var st vectorstore.Store
	switch cfg.Index.Type {
	case "memory", "":
		st = memory.NewStorage()
	case "sqlite":
		sqliteStore, err := sqlite.Open(cfg.Index.Dir)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		st = sqliteStore
	case "qdrant":
		if cfg.Index.Qdrant == nil {
			return nil, fmt.Errorf("qdrant index config missing")
		}
		st = qdrant.NewStorage(qdrant.Config{
			URL:        cfg.Index.Qdrant.URL,
			APIKey:     cfg.Index.Qdrant.APIKey,
			Collection: cfg.Index.Qdrant.Collection,
			Timeout:    time.Duration(cfg.Index.Qdrant.TimeoutSecs) * time.Second,
		})
	default:
		return nil, fmt.Errorf("unknown vector store: %s", cfg.Index.Type)
	}

	generator := llmollama.NewClient(llmollama.Config{
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     time.Duration(cfg.LLM.TimeoutSecs) * time.Second,
	})
	comp := composer.New(generator, composer.Config{
		MinScore:     cfg.Retrieval.MinScore,
		ExcerptLimit: cfg.Retrieval.ExcerptLimit,
	}, log)

	ch := chunker.NewTextChunker(
		cfg.Chunker.ChunkSize, cfg.Chunker.Overlap,
		cfg.Chunker.RetrySize, cfg.Chunker.RetryOverlap,
	)

	return service.New(
		loader.NewScanner(log), ch, emb, st, comp,
		service.Config{
			KnowledgeDir: cfg.KnowledgeDir,
			IndexDir:     cfg.Index.Dir,
			StoreType:    cfg.Index.Type,
			TopK:         cfg.Retrieval.TopK,
		},
		log,
	), nil
}
