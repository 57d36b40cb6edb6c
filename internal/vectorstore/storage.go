package vectorstore

import (
	"context"

	"ragqa/internal/domain"
)

// Store persists index entries and supports similarity search. Build and
// query are distinct phases: entries are only appended during a build, and
// the store is read-only once queries begin.
type Store interface {
	Init(dimension int) error
	Upsert(ctx context.Context, entries []domain.IndexEntry) error
	Search(ctx context.Context, vector []float32, topK int) ([]domain.QueryResult, error)
	Count() int
}

// Persistent is implemented by stores whose contents live in the local index
// directory. Server-backed stores (Qdrant) persist on their own side.
type Persistent interface {
	Persist(dir string) error
	Load(dir string) error
}

// Attachable is implemented by server-backed stores that keep index data
// between processes. Attach binds to the existing collection at query time
// without rebuilding it.
type Attachable interface {
	Attach(dimension int) error
}
