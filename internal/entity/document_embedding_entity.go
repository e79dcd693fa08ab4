package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

// DocumentEmbedding is one indexed chunk of a knowledge-base document when
// the pgvector index backend is selected.
type DocumentEmbedding struct {
	Id             uuid.UUID `gorm:"type:uuid;primaryKey"`
	Source         string    `gorm:"index"`
	ChunkIndex     int
	Document       string
	Metadata       datatypes.JSON
	EmbeddingValue pgvector.Vector `gorm:"type:vector(1024)"`
	CreatedAt      time.Time
}
