package vectorstore

import (
	"context"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Artifact names inside the index directory. All three must exist and agree
// for Load to succeed.
const (
	vectorsFile  = "vectors.gob"
	metadataFile = "metadata.json"
	infoFile     = "info.json"
)

type indexInfo struct {
	Dimension    int `json:"dimension"`
	TotalVectors int `json:"total_vectors"`
}

// FlatIndex is an exact inner-product similarity index over fixed-dimension
// unit-normalized vectors, persisted to a directory on disk. Reads are
// shared; Add/Persist take the write lock so an ingestion consumer can run
// against live query traffic.
type FlatIndex struct {
	mu   sync.RWMutex
	path string

	dimension int
	vectors   [][]float32
	metadata  []map[string]interface{}
	loaded    bool
}

// NewFlatIndex creates an index handle for the given directory. The index
// holds no data until Initialize or Load is called.
func NewFlatIndex(path string) *FlatIndex {
	return &FlatIndex{path: path}
}

// Initialize creates an empty index of fixed dimension. The dimension is
// immutable afterwards.
func (f *FlatIndex) Initialize(dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("invalid dimension %d", dimension)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dimension = dimension
	f.vectors = nil
	f.metadata = nil
	f.loaded = true
	return nil
}

// Add appends vectors with positionally aligned metadata.
func (f *FlatIndex) Add(_ context.Context, vectors [][]float32, metadata []map[string]interface{}) error {
	if len(vectors) != len(metadata) {
		return ErrSizeMismatch
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.loaded {
		return ErrNotInitialized
	}
	for _, v := range vectors {
		if len(v) != f.dimension {
			return ErrDimensionMismatch
		}
	}

	f.vectors = append(f.vectors, vectors...)
	f.metadata = append(f.metadata, metadata...)
	return nil
}

// Search returns up to min(k, size) nearest neighbors by inner product,
// ranked descending. Equal scores keep insertion order.
func (f *FlatIndex) Search(_ context.Context, query []float32, k int) ([]Match, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if !f.loaded {
		return nil, ErrNotInitialized
	}
	if len(query) != f.dimension {
		return nil, ErrDimensionMismatch
	}
	if len(f.vectors) == 0 || k <= 0 {
		return nil, nil
	}

	scores := make([]float32, len(f.vectors))
	for i, v := range f.vectors {
		var dot float32
		for j := range v {
			dot += v[j] * query[j]
		}
		scores[i] = dot
	}

	idxs := make([]int, len(scores))
	for i := range idxs {
		idxs[i] = i
	}
	sort.SliceStable(idxs, func(a, b int) bool {
		return scores[idxs[a]] > scores[idxs[b]]
	})

	if k > len(idxs) {
		k = len(idxs)
	}
	matches := make([]Match, 0, k)
	for _, idx := range idxs[:k] {
		matches = append(matches, Match{Metadata: f.metadata[idx], Score: scores[idx]})
	}
	return matches, nil
}

// Persist writes vectors, metadata and the info record as a unit.
func (f *FlatIndex) Persist(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.loaded {
		return ErrNotInitialized
	}
	if err := os.MkdirAll(f.path, 0755); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}

	vf, err := os.Create(filepath.Join(f.path, vectorsFile))
	if err != nil {
		return fmt.Errorf("write vectors: %w", err)
	}
	defer vf.Close()
	if err := gob.NewEncoder(vf).Encode(f.vectors); err != nil {
		return fmt.Errorf("encode vectors: %w", err)
	}

	mb, err := json.Marshal(f.metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(f.path, metadataFile), mb, 0644); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}

	ib, err := json.Marshal(indexInfo{Dimension: f.dimension, TotalVectors: len(f.vectors)})
	if err != nil {
		return fmt.Errorf("encode info: %w", err)
	}
	if err := os.WriteFile(filepath.Join(f.path, infoFile), ib, 0644); err != nil {
		return fmt.Errorf("write info: %w", err)
	}

	return nil
}

// Load restores all three artifacts and verifies they are mutually
// consistent. Any missing artifact or count/dimension mismatch is an
// explicit error and leaves the index unchanged.
func (f *FlatIndex) Load(_ context.Context) error {
	var info indexInfo
	ib, err := os.ReadFile(filepath.Join(f.path, infoFile))
	if err != nil {
		return fmt.Errorf("read index info: %w", err)
	}
	if err := json.Unmarshal(ib, &info); err != nil {
		return fmt.Errorf("decode index info: %w", err)
	}
	if info.Dimension <= 0 {
		return fmt.Errorf("index info reports invalid dimension %d", info.Dimension)
	}

	vf, err := os.Open(filepath.Join(f.path, vectorsFile))
	if err != nil {
		return fmt.Errorf("read vectors: %w", err)
	}
	defer vf.Close()
	var vectors [][]float32
	if err := gob.NewDecoder(vf).Decode(&vectors); err != nil {
		return fmt.Errorf("decode vectors: %w", err)
	}

	mb, err := os.ReadFile(filepath.Join(f.path, metadataFile))
	if err != nil {
		return fmt.Errorf("read metadata: %w", err)
	}
	var metadata []map[string]interface{}
	if err := json.Unmarshal(mb, &metadata); err != nil {
		return fmt.Errorf("decode metadata: %w", err)
	}

	if len(vectors) != info.TotalVectors {
		return fmt.Errorf("index inconsistent: info reports %d vectors, found %d", info.TotalVectors, len(vectors))
	}
	if len(metadata) != len(vectors) {
		return fmt.Errorf("index inconsistent: %d vectors but %d metadata entries", len(vectors), len(metadata))
	}
	for _, v := range vectors {
		if len(v) != info.Dimension {
			return fmt.Errorf("index inconsistent: vector of dimension %d in index of dimension %d", len(v), info.Dimension)
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.dimension = info.Dimension
	f.vectors = vectors
	f.metadata = metadata
	f.loaded = true
	return nil
}

func (f *FlatIndex) Stats() Stats {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if !f.loaded {
		return Stats{Status: StatusNotInitialized}
	}
	return Stats{
		Status:       StatusLoaded,
		TotalVectors: len(f.vectors),
		Dimension:    f.dimension,
	}
}
