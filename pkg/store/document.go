package store

import (
	"strconv"
	"strings"
)

// Document represents a retrieved document flowing through the RAG pipeline.
// Score is a similarity value in [-1, 1], not a probability.
type Document struct {
	Source   string                 `json:"source"`
	ChunkId  int                    `json:"chunk_id"`
	Score    float32                `json:"score"`
	Text     string                 `json:"text"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// SourceLink renders the citation link for a document: the raw URL for
// web sources, or "path#pageN" for local documents.
func (d Document) SourceLink() string {
	if d.Source == "" {
		return ""
	}
	if strings.HasPrefix(d.Source, "http") {
		return d.Source
	}
	return d.Source + "#page" + strconv.Itoa(d.ChunkId)
}

// Session represents the per-caller interaction state kept in memory.
// It is bookkeeping only and never feeds back into routing decisions.
type Session struct {
	ID        string `json:"id"`
	LastQuery string `json:"last_query"`
	LastRoute string `json:"last_route"`
	Queries   int    `json:"queries"`
}
