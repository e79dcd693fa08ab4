package dto

import (
	"geogli-chatbot-be/pkg/intent"
	"geogli-chatbot-be/pkg/lexical"
)

type QueryRequest struct {
	Q         string `json:"q" validate:"required,max=4000"`
	SessionId string `json:"session_id"`
	RouteHint string `json:"route_hint" validate:"omitempty,oneof=A B auto"`
	TopK      int    `json:"top_k" validate:"omitempty,min=1,max=20"`
}

// QueryResponse mirrors the payload of the streaming final event so both
// endpoints deliver the same terminal shape.
type QueryResponse struct {
	SessionId   string               `json:"session_id"`
	Answer      string               `json:"answer"`
	SourceLinks []string             `json:"source_links"`
	Route       string               `json:"route"`
	LatencyMs   int64                `json:"latency_ms"`
	Hits        []LexicalHitResponse `json:"hits,omitempty"`
}

// LexicalHitResponse is one keyword-index hit with a consistent schema;
// missing fields default to empty values rather than being omitted.
type LexicalHitResponse struct {
	Title        string   `json:"title"`
	Text         string   `json:"text"`
	Section      string   `json:"section"`
	Country      string   `json:"country"`
	Region       string   `json:"region"`
	Images       []string `json:"images"`
	CitationPath string   `json:"citation_path"`
	URL          string   `json:"url"`
	SourceCSV    string   `json:"source_csv"`
	UpdatedAt    string   `json:"updated_at"`
	Score        float64  `json:"_score"`
	Intent       string   `json:"intent"`
	Placeholder  bool     `json:"placeholder,omitempty"`
}

// LexicalEventPayload is the bm25 event body.
type LexicalEventPayload struct {
	Intent string               `json:"intent"`
	Hits   []LexicalHitResponse `json:"hits"`
}

// FormatLexicalHits normalizes raw index hits into the response schema.
func FormatLexicalHits(hits []lexical.Hit, in intent.Intent) []LexicalHitResponse {
	formatted := make([]LexicalHitResponse, 0, len(hits))
	for _, hit := range hits {
		h := LexicalHitResponse{
			Title:        fieldString(hit.Fields, "title"),
			Text:         fieldString(hit.Fields, "text"),
			Section:      fieldString(hit.Fields, "section"),
			Country:      fieldString(hit.Fields, "country"),
			Region:       fieldString(hit.Fields, "region"),
			Images:       fieldStringList(hit.Fields, "images"),
			CitationPath: fieldString(hit.Fields, "citation_path"),
			URL:          fieldString(hit.Fields, "url"),
			SourceCSV:    fieldString(hit.Fields, "source_csv"),
			UpdatedAt:    fieldString(hit.Fields, "updated_at"),
			Score:        hit.Score,
			Intent:       string(in),
		}
		if p, ok := hit.Fields["placeholder"].(bool); ok && p {
			h.Placeholder = true
		}
		formatted = append(formatted, h)
	}
	return formatted
}

func fieldString(fields map[string]interface{}, key string) string {
	if v, ok := fields[key].(string); ok {
		return v
	}
	return ""
}

func fieldStringList(fields map[string]interface{}, key string) []string {
	switch v := fields[key].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		if v == "" {
			return []string{}
		}
		return []string{v}
	default:
		return []string{}
	}
}
