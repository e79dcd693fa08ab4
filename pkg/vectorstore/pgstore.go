package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"geogli-chatbot-be/internal/entity"
	"geogli-chatbot-be/internal/repository/contract"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// PgStore implements Store on top of a pgvector-backed repository. Rows are
// durable on write, so Persist is a no-op; Load verifies the table is
// reachable and caches counts for Stats.
type PgStore struct {
	repo      contract.DocumentEmbeddingRepository
	dimension int

	mu     sync.RWMutex
	loaded bool
	total  int
}

func NewPgStore(repo contract.DocumentEmbeddingRepository, dimension int) *PgStore {
	return &PgStore{repo: repo, dimension: dimension}
}

func (p *PgStore) Load(ctx context.Context) error {
	count, err := p.repo.Count(ctx)
	if err != nil {
		return fmt.Errorf("pgvector index unavailable: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loaded = true
	p.total = int(count)
	return nil
}

func (p *PgStore) Add(ctx context.Context, vectors [][]float32, metadata []map[string]interface{}) error {
	if len(vectors) != len(metadata) {
		return ErrSizeMismatch
	}

	embeddings := make([]*entity.DocumentEmbedding, 0, len(vectors))
	for i, vec := range vectors {
		if len(vec) != p.dimension {
			return ErrDimensionMismatch
		}

		meta := metadata[i]
		source, _ := meta["source"].(string)
		chunk := 0
		switch v := meta["chunk_id"].(type) {
		case int:
			chunk = v
		case float64:
			chunk = int(v)
		}
		text, _ := meta["text"].(string)

		mb, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}

		embeddings = append(embeddings, &entity.DocumentEmbedding{
			Id:             uuid.New(),
			Source:         source,
			ChunkIndex:     chunk,
			Document:       text,
			Metadata:       mb,
			EmbeddingValue: pgvector.NewVector(vec),
			CreatedAt:      time.Now(),
		})
	}

	if err := p.repo.CreateBulk(ctx, embeddings); err != nil {
		return err
	}

	p.mu.Lock()
	p.total += len(embeddings)
	p.mu.Unlock()
	return nil
}

func (p *PgStore) Search(ctx context.Context, query []float32, k int) ([]Match, error) {
	p.mu.RLock()
	loaded := p.loaded
	p.mu.RUnlock()
	if !loaded {
		return nil, ErrNotInitialized
	}
	if len(query) != p.dimension {
		return nil, ErrDimensionMismatch
	}

	scored, err := p.repo.SearchSimilarWithScore(ctx, query, k)
	if err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(scored))
	for _, s := range scored {
		meta := map[string]interface{}{}
		if len(s.Embedding.Metadata) > 0 {
			// Stored metadata wins; fall back to column values below.
			_ = json.Unmarshal(s.Embedding.Metadata, &meta)
		}
		if _, ok := meta["source"]; !ok {
			meta["source"] = s.Embedding.Source
		}
		if _, ok := meta["chunk_id"]; !ok {
			meta["chunk_id"] = s.Embedding.ChunkIndex
		}
		if _, ok := meta["text"]; !ok {
			meta["text"] = s.Embedding.Document
		}
		matches = append(matches, Match{Metadata: meta, Score: float32(s.Similarity)})
	}
	return matches, nil
}

func (p *PgStore) Persist(_ context.Context) error {
	return nil
}

func (p *PgStore) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.loaded {
		return Stats{Status: StatusNotInitialized}
	}
	return Stats{Status: StatusLoaded, TotalVectors: p.total, Dimension: p.dimension}
}
