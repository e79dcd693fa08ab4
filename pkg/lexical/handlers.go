package lexical

import (
	"strings"

	"geogli-chatbot-be/pkg/intent"
)

// Store names used by the handler registry.
const (
	StoreGeoGLI        = "geogli"
	StoreCommitRegion  = "commit_region"
	StoreCommitCountry = "commit_country"
)

// exactMatchScore marks hits found by exact country/region filtering; it
// outranks any realistic BM25 score so exact matches always surface first.
const exactMatchScore = 10.0

// Registry dispatches an intent to its lexical handler over a fixed set of
// pre-built stores. Handlers never return errors: any miss or internal
// problem yields an empty hit list and the caller falls through to the
// next retrieval tier.
type Registry struct {
	stores map[string]*Store
}

func NewRegistry(stores map[string]*Store) *Registry {
	if stores == nil {
		stores = map[string]*Store{}
	}
	return &Registry{stores: stores}
}

// Handle runs the handler for the classified intent.
func (r *Registry) Handle(in intent.Intent, query string, slots intent.Slots) []Hit {
	switch in {
	case intent.IntentAskCountry:
		return r.handleAskCountry(query, slots)
	case intent.IntentCommitRegion:
		return r.handleCommitRegion(query, slots)
	case intent.IntentCommitCountry:
		return r.handleCommitCountry(query, slots)
	case intent.IntentLawLookup:
		return r.handleLawLookup(query, slots)
	}
	return nil
}

// handleAskCountry searches the GeoGLI country cards, augmenting the query
// with extracted indicator/period terms to sharpen matching.
func (r *Registry) handleAskCountry(query string, slots intent.Slots) []Hit {
	store, ok := r.stores[StoreGeoGLI]
	if !ok || store == nil {
		return nil
	}

	terms := []string{query}
	if slots.Indicator != "" {
		terms = append(terms, slots.Indicator)
	}
	if slots.Period != "" {
		terms = append(terms, slots.Period)
	}
	hits := store.Search(strings.Join(terms, " "), 5)

	// The card corpus currently covers Saudi Arabia only; other countries
	// fall through to dense retrieval instead of surfacing wrong cards.
	if slots.Country != "" && slots.Country != "Saudi Arabia" {
		return nil
	}
	return hits
}

func (r *Registry) handleCommitRegion(query string, slots intent.Slots) []Hit {
	store, ok := r.stores[StoreCommitRegion]
	if !ok || store == nil {
		return nil
	}

	if slots.Region != "" {
		if exact := exactFieldMatches(store, "region", slots.Region); len(exact) > 0 {
			return exact
		}
		query = query + " " + slots.Region
	}
	return store.Search(query, 3)
}

func (r *Registry) handleCommitCountry(query string, slots intent.Slots) []Hit {
	store, ok := r.stores[StoreCommitCountry]
	if !ok || store == nil {
		return nil
	}

	if slots.Country != "" {
		if exact := exactFieldMatches(store, "country", slots.Country); len(exact) > 0 {
			return exact
		}
		query = query + " " + slots.Country
	}
	return store.Search(query, 3)
}

// handleLawLookup has no corpus yet; it returns a placeholder card so the
// caller still short-circuits with a useful response.
func (r *Registry) handleLawLookup(query string, slots intent.Slots) []Hit {
	text := "Legislation and regulatory information search is currently under development. " +
		"Please check back later for access to legal documents and regulations."
	if slots.Country != "" {
		text += " (Query context: " + slots.Country + ")"
	}
	if slots.Region != "" {
		text += " (Query context: " + slots.Region + ")"
	}

	return []Hit{{
		Score: 1.0,
		Fields: map[string]interface{}{
			"id":          "law_placeholder",
			"title":       "Legislation Search - Coming Soon",
			"text":        text,
			"intent":      string(intent.IntentLawLookup),
			"query":       query,
			"placeholder": true,
		},
	}}
}

// exactFieldMatches returns up to three documents whose field equals the
// wanted value (case-insensitive), each carrying the exact-match score.
func exactFieldMatches(store *Store, field, want string) []Hit {
	var hits []Hit
	for _, doc := range store.Documents() {
		v, ok := doc[field].(string)
		if !ok || !strings.EqualFold(v, want) {
			continue
		}
		hits = append(hits, Hit{Fields: doc, Score: exactMatchScore})
		if len(hits) == 3 {
			break
		}
	}
	return hits
}
