// Package loader turns files under the knowledge directory into documents of
// plain text pages. Format support is a closed set: PDF, Word (.docx), and
// plain text/markdown. Anything else is an explicit, counted skip.
package loader

import (
	"crypto/sha1"
	"encoding/hex"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"ragqa/internal/domain"
)

// ScanStats summarizes a directory scan for build diagnostics.
type ScanStats struct {
	Loaded  int
	Skipped int
	Failed  int
	Pages   int
}

// Scanner walks a directory tree and extracts pages from every supported
// file. Extraction failures are reported per file and do not abort the scan.
type Scanner struct {
	extractors map[string]domain.Extractor
	log        *slog.Logger
}

// NewScanner creates a scanner with the built-in extractor set.
func NewScanner(log *slog.Logger) *Scanner {
	if log == nil {
		log = slog.Default()
	}
	return &Scanner{
		extractors: map[string]domain.Extractor{
			".pdf":  PDFExtractor{},
			".docx": DocxExtractor{},
			".txt":  TextExtractor{},
			".md":   TextExtractor{},
		},
		log: log,
	}
}

// Scan loads all supported files under dir, including subdirectories.
func (s *Scanner) Scan(dir string) ([]domain.Document, ScanStats, error) {
	var docs []domain.Document
	var stats ScanStats
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		extractor, ok := s.extractors[ext]
		if !ok {
			stats.Skipped++
			s.log.Info("skipping unsupported file", "path", path, "ext", ext)
			return nil
		}
		pages, err := extractor.Extract(path)
		if err != nil {
			stats.Failed++
			s.log.Error("failed to load file", "path", path, "error", err)
			return nil
		}
		stats.Loaded++
		stats.Pages += len(pages)
		docs = append(docs, domain.Document{
			ID:    hashString(path),
			Path:  path,
			Pages: pages,
		})
		return nil
	})
	if err != nil {
		return nil, stats, err
	}
	return docs, stats, nil
}

func hashString(s string) string {
	h := sha1.Sum([]byte(s))
	return hex.EncodeToString(h[:8])
}
