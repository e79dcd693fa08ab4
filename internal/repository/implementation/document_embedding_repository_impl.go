package implementation

import (
	"context"

	"geogli-chatbot-be/internal/entity"
	"geogli-chatbot-be/internal/repository/contract"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

type DocumentEmbeddingRepositoryImpl struct {
	db *gorm.DB
}

func NewDocumentEmbeddingRepository(db *gorm.DB) contract.DocumentEmbeddingRepository {
	return &DocumentEmbeddingRepositoryImpl{db: db}
}

func (r *DocumentEmbeddingRepositoryImpl) CreateBulk(ctx context.Context, embeddings []*entity.DocumentEmbedding) error {
	if len(embeddings) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(embeddings).Error
}

func (r *DocumentEmbeddingRepositoryImpl) DeleteBySource(ctx context.Context, source string) error {
	return r.db.WithContext(ctx).
		Where("source = ?", source).
		Delete(&entity.DocumentEmbedding{}).Error
}

func (r *DocumentEmbeddingRepositoryImpl) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.DocumentEmbedding{}).Count(&count).Error
	return count, err
}

func (r *DocumentEmbeddingRepositoryImpl) SearchSimilarWithScore(ctx context.Context, embedding []float32, limit int) ([]*contract.ScoredDocumentEmbedding, error) {
	if limit <= 0 {
		limit = 6
	}

	// pgvector <=> is cosine distance; similarity = 1 - distance.
	// Vectors are unit-normalized on write, so this matches the inner
	// product scores of the flat index.
	type row struct {
		entity.DocumentEmbedding
		Distance float64
	}

	var rows []row
	err := r.db.WithContext(ctx).
		Model(&entity.DocumentEmbedding{}).
		Select("*, (embedding_value <=> ?) AS distance", pgvector.NewVector(embedding)).
		Order(gorm.Expr("embedding_value <=> ?", pgvector.NewVector(embedding))).
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	results := make([]*contract.ScoredDocumentEmbedding, len(rows))
	for i := range rows {
		e := rows[i].DocumentEmbedding
		results[i] = &contract.ScoredDocumentEmbedding{
			Embedding:  &e,
			Similarity: 1.0 - rows[i].Distance,
		}
	}
	return results, nil
}
