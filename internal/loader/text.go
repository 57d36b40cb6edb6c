package loader

import (
	"fmt"
	"os"
	"strings"

	"ragqa/internal/domain"
)

// TextExtractor reads a plain text or markdown file as a single page.
type TextExtractor struct{}

// Extract reads the whole file.
func (TextExtractor) Extract(path string) ([]domain.Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil, nil
	}
	return []domain.Page{{Number: 1, Text: string(data)}}, nil
}
