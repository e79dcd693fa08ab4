package vectorstore

import (
	"context"
	"errors"
)

// Index status values. A loaded index with zero vectors is NOT the same as
// an uninitialized one; callers must check both before searching.
const (
	StatusNotInitialized = "not_initialized"
	StatusLoaded         = "loaded"
)

var (
	// ErrNotInitialized is returned when an operation requires an
	// initialized or loaded index.
	ErrNotInitialized = errors.New("vector index not initialized")

	// ErrSizeMismatch is returned by Add when vector and metadata counts
	// differ.
	ErrSizeMismatch = errors.New("number of vectors must match number of metadata entries")

	// ErrDimensionMismatch is returned when a vector does not match the
	// index dimension fixed at initialization.
	ErrDimensionMismatch = errors.New("vector dimension does not match index dimension")
)

// Match is one nearest-neighbor result: the stored metadata plus its
// inner-product similarity to the query vector.
type Match struct {
	Metadata map[string]interface{} `json:"metadata"`
	Score    float32                `json:"score"`
}

// Stats reports index readiness and size.
type Stats struct {
	Status       string `json:"status"`
	TotalVectors int    `json:"total_vectors"`
	Dimension    int    `json:"dimension"`
}

// Store is the similarity-search capability the dense retriever and the
// ingestion pipeline are built against. Implementations: the file-persisted
// flat index (default) and the pgvector-backed store.
type Store interface {
	// Load restores a persisted index. It fails explicitly when any
	// persisted artifact is missing or the artifacts are inconsistent.
	Load(ctx context.Context) error

	// Add appends unit-normalized vectors with positionally aligned
	// metadata.
	Add(ctx context.Context, vectors [][]float32, metadata []map[string]interface{}) error

	// Search returns up to min(k, size) nearest neighbors by inner
	// product, ranked descending, ties broken by insertion order.
	Search(ctx context.Context, query []float32, k int) ([]Match, error)

	// Persist writes the index artifacts as a unit.
	Persist(ctx context.Context) error

	Stats() Stats
}
