package chunker

import (
	"fmt"
	"strings"
	"unicode"

	"ragqa/internal/domain"
)

// TextChunker splits page text into bounded, overlapping segments, cutting at
// paragraph, newline, sentence, or space boundaries before falling back to a
// raw rune cut. Offsets are rune offsets into the page text and chunk texts
// are exact substrings, so the original text can be reconstructed from them.
type TextChunker struct {
	chunkSize    int
	overlap      int
	retrySize    int
	retryOverlap int
}

// NewTextChunker creates a chunker with the given primary and retry sizes.
// Invalid values fall back to the defaults used by the indexer.
func NewTextChunker(chunkSize, overlap, retrySize, retryOverlap int) *TextChunker {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = chunkSize / 5
	}
	if retrySize <= 0 || retrySize >= chunkSize {
		retrySize = chunkSize / 2
	}
	if retryOverlap < 0 || retryOverlap >= retrySize {
		retryOverlap = retrySize / 4
	}
	return &TextChunker{
		chunkSize:    chunkSize,
		overlap:      overlap,
		retrySize:    retrySize,
		retryOverlap: retryOverlap,
	}
}

// Chunk splits every page of the document. A primary pass that yields zero
// chunks for a document with non-empty text is retried with the smaller
// configured size, guarding against pathological inputs.
func (c *TextChunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	chunks := c.pass(document, c.chunkSize, c.overlap)
	// split guarantees at least one span for any non-whitespace text; the
	// retry pass and the error below are the backstop for a splitter change
	// that breaks that guarantee
	if len(chunks) == 0 && hasText(document) {
		chunks = c.pass(document, c.retrySize, c.retryOverlap)
	}
	if len(chunks) == 0 && hasText(document) {
		return nil, fmt.Errorf("document %s: no chunks produced from non-empty text", document.Path)
	}
	return chunks, nil
}

func (c *TextChunker) pass(document domain.Document, size, overlap int) []domain.Chunk {
	var chunks []domain.Chunk
	idx := 0
	for _, page := range document.Pages {
		for _, sp := range split(page.Text, size, overlap) {
			chunks = append(chunks, domain.Chunk{
				ID:         fmt.Sprintf("%s:%d:%d", document.ID, page.Number, idx),
				DocumentID: document.ID,
				Source:     document.Path,
				Page:       page.Number,
				Index:      idx,
				Text:       sp.text,
				Start:      sp.start,
				End:        sp.end,
			})
			idx++
		}
	}
	return chunks
}

func hasText(document domain.Document) bool {
	for _, page := range document.Pages {
		if strings.TrimSpace(page.Text) != "" {
			return true
		}
	}
	return false
}

type span struct {
	start int
	end   int
	text  string
}

// split produces overlapping spans of at most size runes. Whitespace-only
// text yields no spans.
func split(text string, size, overlap int) []span {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	runes := []rune(text)
	n := len(runes)
	var spans []span
	start := 0
	for start < n {
		end := start + size
		if end >= n {
			spans = append(spans, span{start, n, string(runes[start:n])})
			break
		}
		cut := findCut(runes, start, end)
		spans = append(spans, span{start, cut, string(runes[start:cut])})
		next := cut - overlap
		if next <= start {
			// overlap would stall the walk; step past the cut instead
			next = cut
		}
		start = next
	}
	return spans
}

// findCut picks a cut position in the second half of the window, preferring
// paragraph breaks, then single newlines, then sentence ends, then spaces.
// Failing all of those it cuts at the window end.
func findCut(runes []rune, start, end int) int {
	min := start + (end-start)/2
	for i := end; i > min; i-- {
		if i >= 2 && runes[i-1] == '\n' && runes[i-2] == '\n' {
			return i
		}
	}
	for i := end; i > min; i-- {
		if runes[i-1] == '\n' {
			return i
		}
	}
	for i := end; i > min; i-- {
		if isSentenceEnd(runes[i-1]) {
			return i
		}
	}
	for i := end; i > min; i-- {
		if unicode.IsSpace(runes[i-1]) {
			return i
		}
	}
	return end
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '。', '！', '？', '.', '!', '?':
		return true
	}
	return false
}
