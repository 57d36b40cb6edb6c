package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"ragqa/internal/app"
	"ragqa/internal/config"
	"ragqa/internal/domain"
	"ragqa/internal/service"
)

func main() {
	_ = godotenv.Load()

	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/ragqa/config.yaml if not provided)")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	svc, err := app.Assemble(cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to assemble pipeline: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Building index from %s ...\n", cfg.KnowledgeDir)
	stats, err := svc.BuildIndex(context.Background())
	if err != nil {
		// build failures print guidance and exit zero
		printBuildGuidance(os.Stdout, cfg, err)
		return
	}
	printBuildSummary(os.Stdout, cfg, stats)
}

// printBuildGuidance translates a build failure into next steps for the
// operator.
func printBuildGuidance(w io.Writer, cfg *config.AppConfig, err error) {
	switch {
	case errors.Is(err, domain.ErrEmptyCorpus):
		fmt.Fprintf(w, "No loadable documents found under %s.\n", cfg.KnowledgeDir)
		fmt.Fprintln(w, "Put PDF, Word (.docx), text, or markdown files there and rerun.")
	case errors.Is(err, domain.ErrEmbeddingService):
		fmt.Fprintf(w, "Embedding service unavailable: %v\n", err)
		if cfg.Embedder.Ollama != nil {
			fmt.Fprintf(w, "Check that Ollama is running at %s and the model %q is pulled.\n",
				cfg.Embedder.Ollama.BaseURL, cfg.Embedder.Ollama.Model)
		}
	default:
		fmt.Fprintf(w, "Index build failed: %v\n", err)
	}
	fmt.Fprintln(w, "Nothing was written to the index; the previous index, if any, is untouched.")
}

func printBuildSummary(w io.Writer, cfg *config.AppConfig, stats service.BuildStats) {
	fmt.Fprintf(w, "Indexed %d documents (%d pages, %d chunks) into %s\n",
		stats.Documents, stats.Pages, stats.Chunks, cfg.Index.Dir)
	if stats.Skipped > 0 {
		fmt.Fprintf(w, "Skipped %d unsupported files.\n", stats.Skipped)
	}
	if stats.Failed > 0 {
		fmt.Fprintf(w, "Failed to read %d files, see log for details.\n", stats.Failed)
	}
	fmt.Fprintln(w, "Run 'ragqa' to start asking questions.")
}
