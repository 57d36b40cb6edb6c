package domain

import "errors"

// Sentinel errors shared across the build and query pipelines. External
// service failures are wrapped with these so callers can translate them into
// user-facing guidance at the boundary.
var (
	// ErrMissingIndex means the index directory is absent at query time.
	ErrMissingIndex = errors.New("knowledge index not found")

	// ErrEmptyCorpus means no loadable documents were found, or splitting
	// produced zero chunks. The build aborts and persists nothing.
	ErrEmptyCorpus = errors.New("knowledge corpus is empty")

	// ErrDimensionMismatch means a vector's dimensionality does not match
	// the index it is used with.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrModelMismatch means the embedding model recorded in the index
	// differs from the configured one. Querying with a different model is a
	// silent correctness bug, so it is rejected outright.
	ErrModelMismatch = errors.New("embedding model mismatch")

	// ErrEmbeddingService means the embedding backend is unreachable or
	// returned an error.
	ErrEmbeddingService = errors.New("embedding service unavailable")

	// ErrModelService means the language-model backend is unreachable or
	// returned an error.
	ErrModelService = errors.New("language model unavailable")
)
