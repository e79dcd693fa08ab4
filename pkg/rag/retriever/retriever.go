package retriever

import (
	"context"
	"log"
	"sync"

	"geogli-chatbot-be/pkg/embedding"
	"geogli-chatbot-be/pkg/store"
	"geogli-chatbot-be/pkg/vectorstore"
)

// DenseRetriever runs embedding similarity search over the persisted
// vector index. Pure dense retrieval, no reranking.
//
// Failures degrade to an empty result set so the caller can fall through
// to the next tier; only the retriever's own logger sees the cause.
type DenseRetriever struct {
	embeddingProvider embedding.EmbeddingProvider
	index             vectorstore.Store
	defaultTopK       int
	logger            *log.Logger

	loadOnce sync.Once
}

// NewDenseRetriever creates a new dense retriever
func NewDenseRetriever(
	embeddingProvider embedding.EmbeddingProvider,
	index vectorstore.Store,
	defaultTopK int,
	logger *log.Logger,
) *DenseRetriever {
	if defaultTopK <= 0 {
		defaultTopK = 6
	}
	return &DenseRetriever{
		embeddingProvider: embeddingProvider,
		index:             index,
		defaultTopK:       defaultTopK,
		logger:            logger,
	}
}

// Retrieve returns the topK most similar documents for the query. It
// lazily loads the index on first use; a missing or corrupt index, an
// embedding failure, or a search failure all yield an empty slice.
func (r *DenseRetriever) Retrieve(ctx context.Context, query string, topK int) []store.Document {
	if topK <= 0 {
		topK = r.defaultTopK
	}

	r.loadOnce.Do(func() {
		if err := r.index.Load(ctx); err != nil {
			r.logger.Printf("[WARN] No vector index found, dense retrieval degraded: %v", err)
		}
	})

	stats := r.index.Stats()
	if stats.Status != vectorstore.StatusLoaded || stats.TotalVectors == 0 {
		r.logger.Printf("[DEBUG] No documents in vector store (status=%s, vectors=%d)", stats.Status, stats.TotalVectors)
		return nil
	}

	embeddingRes, err := r.embeddingProvider.Generate(query, embedding.TaskRetrievalQuery)
	if err != nil {
		r.logger.Printf("[ERROR] Query embedding failed: %v", err)
		return nil
	}

	matches, err := r.index.Search(ctx, embeddingRes.Embedding.Values, topK)
	if err != nil {
		r.logger.Printf("[ERROR] Vector search failed: %v", err)
		return nil
	}

	docs := make([]store.Document, 0, len(matches))
	for _, m := range matches {
		docs = append(docs, matchToDocument(m))
	}

	r.logger.Printf("[DEBUG] Retrieved %d documents for query: %.50s", len(docs), query)
	return docs
}

// Stats exposes the underlying index stats plus the retriever defaults.
func (r *DenseRetriever) Stats() RetrieverStats {
	return RetrieverStats{
		Stats:       r.index.Stats(),
		DefaultTopK: r.defaultTopK,
	}
}

type RetrieverStats struct {
	vectorstore.Stats
	DefaultTopK int
}

func matchToDocument(m vectorstore.Match) store.Document {
	doc := store.Document{
		Score: m.Score,
	}
	if s, ok := m.Metadata["source"].(string); ok {
		doc.Source = s
	}
	switch v := m.Metadata["chunk_id"].(type) {
	case int:
		doc.ChunkId = v
	case float64:
		doc.ChunkId = int(v)
	}
	if t, ok := m.Metadata["text"].(string); ok {
		doc.Text = t
	}
	doc.Metadata = m.Metadata
	return doc
}
