package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"ragqa/internal/domain"
)

const manifestFile = "manifest.json"

// Manifest records what a persisted index was built with. It is written last
// during a build, so its presence marks the index as complete; an index
// directory without a manifest is treated as missing.
type Manifest struct {
	EmbeddingModel string    `json:"embedding_model"`
	Dimension      int       `json:"dimension"`
	Store          string    `json:"store"`
	ChunkCount     int       `json:"chunk_count"`
	CreatedAt      time.Time `json:"created_at"`
}

func writeManifest(dir string, m Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, manifestFile), data, 0o644)
}

func readManifest(dir string) (Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Manifest{}, fmt.Errorf("%w: no manifest in %s", domain.ErrMissingIndex, dir)
		}
		return Manifest{}, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}
	return m, nil
}
