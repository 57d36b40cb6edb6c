package loader

import (
	"fmt"

	"github.com/ledongthuc/pdf"

	"ragqa/internal/domain"
)

// PDFExtractor extracts one text page per PDF page.
type PDFExtractor struct{}

// Extract reads all pages of a PDF. Pages from which no text can be pulled
// (scanned images, empty pages) are dropped.
func (PDFExtractor) Extract(path string) ([]domain.Page, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer f.Close()

	var pages []domain.Page
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract pdf %s page %d: %w", path, i, err)
		}
		if text == "" {
			continue
		}
		pages = append(pages, domain.Page{Number: i, Text: text})
	}
	return pages, nil
}
