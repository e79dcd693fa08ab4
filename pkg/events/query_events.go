package events

import "time"

const (
	TypeQueryCompleted    = "QUERY_COMPLETED"
	TypeDocumentsIngested = "DOCUMENTS_INGESTED"
)

// NewQueryCompletedEvent records one answered query for analytics. The
// payload carries routing metadata only, never the answer text.
func NewQueryCompletedEvent(sessionId, intent, route string, latencyMs int64, sourceCount int) Event {
	return BaseEvent{
		Type: TypeQueryCompleted,
		Data: map[string]interface{}{
			"session_id":   sessionId,
			"intent":       intent,
			"route":        route,
			"latency_ms":   latencyMs,
			"source_count": sourceCount,
		},
		OccurredAt: time.Now(),
	}
}

// NewDocumentsIngestedEvent records an ingestion batch landing in the
// vector index.
func NewDocumentsIngestedEvent(source string, chunks int) Event {
	return BaseEvent{
		Type: TypeDocumentsIngested,
		Data: map[string]interface{}{
			"source": source,
			"chunks": chunks,
		},
		OccurredAt: time.Now(),
	}
}
