// Package sqlite provides a durable vector store on a single SQLite file
// inside the index directory, using the pure-Go modernc.org driver. Vectors
// are stored as little-endian float32 blobs; search scans and scores in Go.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	_ "modernc.org/sqlite" // register pure-Go SQLite driver

	"ragqa/internal/domain"
)

const dbFile = "vectors.db"

const schema = `
CREATE TABLE IF NOT EXISTS chunks (
	rowid_order INTEGER PRIMARY KEY AUTOINCREMENT,
	id          TEXT NOT NULL,
	document_id TEXT NOT NULL,
	source      TEXT NOT NULL,
	page        INTEGER NOT NULL,
	idx         INTEGER NOT NULL,
	text        TEXT NOT NULL,
	start_off   INTEGER NOT NULL,
	end_off     INTEGER NOT NULL,
	embedding   BLOB NOT NULL
);`

// Storage is a SQLite-backed vector store.
type Storage struct {
	db        *sql.DB
	path      string
	dimension int
}

// Open opens (or creates) the store database under the given index
// directory.
func Open(dir string) (*Storage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, dbFile)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	return &Storage{db: db, path: path}, nil
}

// Init ensures the schema exists and clears any previous build.
func (s *Storage) Init(dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	s.dimension = dimension
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := s.db.Exec(`DELETE FROM chunks`); err != nil {
		return fmt.Errorf("clear chunks: %w", err)
	}
	return nil
}

// Attach binds to an existing database at query time without clearing it.
// The stored vectors must match the expected dimension.
func (s *Storage) Attach(dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	stored, err := s.Dimension()
	if err != nil {
		return err
	}
	if stored != 0 && stored != dimension {
		return fmt.Errorf("%w: stored vectors have %d dims, expected %d",
			domain.ErrDimensionMismatch, stored, dimension)
	}
	s.dimension = dimension
	return nil
}

// Upsert appends entries in one transaction.
func (s *Storage) Upsert(ctx context.Context, entries []domain.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks(id, document_id, source, page, idx, text, start_off, end_off, embedding)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if len(e.Vector) != s.dimension {
			return fmt.Errorf("%w: entry %s has %d dims, index has %d",
				domain.ErrDimensionMismatch, e.Chunk.ID, len(e.Vector), s.dimension)
		}
		c := e.Chunk
		if _, err := stmt.ExecContext(ctx,
			c.ID, c.DocumentID, c.Source, c.Page, c.Index, c.Text, c.Start, c.End,
			encodeVector(e.Vector),
		); err != nil {
			return fmt.Errorf("insert chunk %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

// Search scans every stored vector and returns the topK by descending
// similarity, ties in insertion order.
func (s *Storage) Search(ctx context.Context, vector []float32, topK int) ([]domain.QueryResult, error) {
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d dims, index has %d",
			domain.ErrDimensionMismatch, len(vector), s.dimension)
	}
	if topK <= 0 {
		topK = 3
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, source, page, idx, text, start_off, end_off, embedding
		 FROM chunks ORDER BY rowid_order`)
	if err != nil {
		return nil, fmt.Errorf("scan chunks: %w", err)
	}
	defer rows.Close()

	var results []domain.QueryResult
	for rows.Next() {
		var c domain.Chunk
		var blob []byte
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Source, &c.Page, &c.Index, &c.Text, &c.Start, &c.End, &blob); err != nil {
			return nil, fmt.Errorf("scan chunk row: %w", err)
		}
		vec, err := decodeVector(blob)
		if err != nil {
			return nil, err
		}
		if len(vec) != s.dimension {
			return nil, fmt.Errorf("%w: stored entry %s has %d dims, index has %d",
				domain.ErrDimensionMismatch, c.ID, len(vec), s.dimension)
		}
		results = append(results, domain.QueryResult{Chunk: c, Score: dot(vec, vector)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if topK > len(results) {
		topK = len(results)
	}
	return results[:topK], nil
}

// Count returns the number of stored entries.
func (s *Storage) Count() int {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM chunks`).Scan(&n); err != nil {
		return 0
	}
	return n
}

// Dimension reads the dimensionality of stored vectors, zero when empty.
func (s *Storage) Dimension() (int, error) {
	var blob []byte
	err := s.db.QueryRow(`SELECT embedding FROM chunks ORDER BY rowid_order LIMIT 1`).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return len(blob) / 4, nil
}

// Close releases the underlying database handle.
func (s *Storage) Close() error { return s.db.Close() }

// encodeVector packs float32 values as a little-endian blob.
func encodeVector(vec []float32) []byte {
	b := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return b
}

func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding blob length %d", len(b))
	}
	vec := make([]float32, len(b)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return vec, nil
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
