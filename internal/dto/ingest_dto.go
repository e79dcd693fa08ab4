package dto

type IngestRequest struct {
	Source string `json:"source" validate:"required"`
	Text   string `json:"text" validate:"required"`
}

// PublishIngestDocumentMessage is the payload queued for the ingestion
// consumer.
type PublishIngestDocumentMessage struct {
	Source string `json:"source"`
	Text   string `json:"text"`
}

type IngestResponse struct {
	Source string `json:"source"`
	Queued bool   `json:"queued"`
}

type IndexStatsResponse struct {
	Status        string                 `json:"status"`
	TotalVectors  int                    `json:"total_vectors"`
	Dimension     int                    `json:"dimension"`
	DefaultTopK   int                    `json:"default_top_k"`
	LexicalStores map[string]interface{} `json:"lexical_stores"`
}
