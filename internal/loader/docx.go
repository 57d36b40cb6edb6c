package loader

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"ragqa/internal/domain"
)

// DocxExtractor extracts paragraph text from a Word .docx file. The format
// is a zip archive whose word/document.xml holds runs of text inside <w:t>
// elements; paragraphs (<w:p>) become lines. DOCX has no fixed pagination,
// so the whole document is one page.
type DocxExtractor struct{}

// Extract reads the document body text.
func (DocxExtractor) Extract(path string) ([]domain.Page, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open docx %s: %w", path, err)
	}
	defer archive.Close()

	var body io.ReadCloser
	for _, file := range archive.File {
		if file.Name == "word/document.xml" {
			body, err = file.Open()
			if err != nil {
				return nil, fmt.Errorf("open docx body %s: %w", path, err)
			}
			break
		}
	}
	if body == nil {
		return nil, fmt.Errorf("docx %s: word/document.xml not found", path)
	}
	defer body.Close()

	text, err := documentText(body)
	if err != nil {
		return nil, fmt.Errorf("parse docx %s: %w", path, err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	return []domain.Page{{Number: 1, Text: text}}, nil
}

func documentText(r io.Reader) (string, error) {
	decoder := xml.NewDecoder(r)
	var b strings.Builder
	inText := false
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				b.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}
	return b.String(), nil
}
