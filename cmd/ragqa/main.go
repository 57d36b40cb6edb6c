package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"ragqa/internal/app"
	"ragqa/internal/config"
	"ragqa/internal/domain"
	"ragqa/internal/tui"
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

	manifest, err := svc.OpenIndex(context.Background())
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrMissingIndex):
			fmt.Fprintf(os.Stderr, "No knowledge index found in %s.\n", cfg.Index.Dir)
			fmt.Fprintln(os.Stderr, "Run 'ragqa-index' first to build it.")
		case errors.Is(err, domain.ErrModelMismatch):
			fmt.Fprintf(os.Stderr, "Embedding model mismatch: %v\n", err)
			fmt.Fprintln(os.Stderr, "Rebuild the index with 'ragqa-index' or restore the original embedder config.")
		default:
			fmt.Fprintf(os.Stderr, "Failed to open index: %v\n", err)
		}
		os.Exit(1)
	}

	summary := fmt.Sprintf("%d chunks · embeddings: %s · model: %s",
		manifest.ChunkCount, manifest.EmbeddingModel, cfg.LLM.Model)
	m := tui.New(svc, summary)
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "tui error: %v\n", err)
		os.Exit(1)
	}
}
