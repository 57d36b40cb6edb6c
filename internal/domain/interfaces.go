package domain

import "context"

// Document is a source file loaded into the system, split into pages by the
// format-specific extractor. Immutable once loaded.
type Document struct {
	ID    string
	Path  string
	Pages []Page
}

// Page is a unit of raw text produced by an extractor. Plain-text formats
// yield a single page numbered 1.
type Page struct {
	Number int
	Text   string
}

// Chunk is a bounded segment of a page, used for embedding and retrieval.
// Start and End are rune offsets into the page text; the chunk text is the
// exact substring between them.
type Chunk struct {
	ID         string
	DocumentID string
	Source     string
	Page       int
	Index      int
	Text       string
	Start      int
	End        int
}

// IndexEntry pairs a chunk with its embedding vector. Entries are created at
// build time and never mutated afterwards; index updates are rebuild-only.
type IndexEntry struct {
	Chunk  Chunk
	Vector []float32
}

// QueryResult is a retrieved chunk with its similarity score. Transient,
// produced per query.
type QueryResult struct {
	Chunk Chunk
	Score float64
}

// Citation points a user at the source of a retrieved chunk. Excerpt is
// truncated for display; the model receives the full chunk text.
type Citation struct {
	Source  string
	Excerpt string
}

// Answer is the user-facing result of a question. Grounded is true when the
// text was generated by the language model from retrieved context; it is
// false for the deterministic no-information and model-unavailable answers.
type Answer struct {
	Text      string
	Citations []Citation
	Grounded  bool
}

// Extractor converts one file into a sequence of text pages.
type Extractor interface {
	Extract(path string) ([]Page, error)
}

// Chunker splits documents into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(document Document) ([]Chunk, error)
}

// Embedder converts free text into a numeric vector representation.
// Implementations may require a preparation phase over the corpus.
type Embedder interface {
	Name() string
	Prepare(corpus []string) error
	Dimension() int
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Generator produces an answer from an assembled prompt by invoking a
// language model.
type Generator interface {
	Name() string
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
