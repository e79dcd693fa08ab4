package contract

import (
	"context"

	"geogli-chatbot-be/internal/entity"
)

// ScoredDocumentEmbedding wraps DocumentEmbedding with its similarity score
type ScoredDocumentEmbedding struct {
	Embedding  *entity.DocumentEmbedding
	Similarity float64
}

type DocumentEmbeddingRepository interface {
	CreateBulk(ctx context.Context, embeddings []*entity.DocumentEmbedding) error
	DeleteBySource(ctx context.Context, source string) error
	Count(ctx context.Context) (int64, error)
	// SearchSimilarWithScore returns embeddings ranked by cosine similarity
	// to the query vector, highest first.
	SearchSimilarWithScore(ctx context.Context, embedding []float32, limit int) ([]*ScoredDocumentEmbedding, error)
}
