package lexical

import (
	"testing"

	"geogli-chatbot-be/pkg/intent"
)

func buildTestRegistry(t *testing.T) *Registry {
	t.Helper()

	geogli, err := NewStore(writeCorpus(t, []string{
		`{"id": "sau_drought", "title": "Drought exposure", "text": "Drought affected 40% of rangeland", "country": "Saudi Arabia", "section": "drought"}`,
		`{"id": "sau_soc", "title": "Soil organic carbon", "text": "SOC declined in croplands", "country": "Saudi Arabia", "section": "carbon"}`,
	}), []string{"title", "text", "section", "country"})
	if err != nil {
		t.Fatalf("geogli store: %v", err)
	}

	region, err := NewStore(writeCorpus(t, []string{
		`{"id": "commit_region#MENA", "region": "Middle East and North Africa", "text": "MENA — LDN 20 Mha; Bonn 15 Mha."}`,
		`{"id": "commit_region#SSA", "region": "Sub-Saharan Africa", "text": "SSA — LDN 120 Mha."}`,
	}), []string{"region", "text"})
	if err != nil {
		t.Fatalf("region store: %v", err)
	}

	country, err := NewStore(writeCorpus(t, []string{
		`{"id": "commit_country#Saudi Arabia", "country": "Saudi Arabia", "text": "Saudi Arabia — LDN 9.8 Mha."}`,
		`{"id": "commit_country#Jordan", "country": "Jordan", "text": "Jordan — LDN 0.6 Mha."}`,
	}), []string{"country", "text"})
	if err != nil {
		t.Fatalf("country store: %v", err)
	}

	return NewRegistry(map[string]*Store{
		StoreGeoGLI:        geogli,
		StoreCommitRegion:  region,
		StoreCommitCountry: country,
	})
}

func TestHandleAskCountry(t *testing.T) {
	r := buildTestRegistry(t)

	hits := r.Handle(intent.IntentAskCountry, "drought exposure", intent.Slots{
		Intent:    intent.IntentAskCountry,
		Country:   "Saudi Arabia",
		Indicator: "drought",
	})
	if len(hits) == 0 {
		t.Fatal("expected hits for drought card query")
	}
	if hits[0].Fields["id"] != "sau_drought" {
		t.Errorf("top hit id = %v, want sau_drought", hits[0].Fields["id"])
	}

	// The card corpus only covers Saudi Arabia; other countries get no card
	hits = r.Handle(intent.IntentAskCountry, "drought exposure", intent.Slots{
		Intent:  intent.IntentAskCountry,
		Country: "Jordan",
	})
	if hits != nil {
		t.Errorf("non-covered country should return nil, got %d hits", len(hits))
	}
}

func TestHandleCommitRegionExactMatch(t *testing.T) {
	r := buildTestRegistry(t)

	hits := r.Handle(intent.IntentCommitRegion, "commitments for mena", intent.Slots{
		Intent: intent.IntentCommitRegion,
		Region: "Middle East and North Africa",
	})
	if len(hits) != 1 {
		t.Fatalf("got %d hits, want 1 exact match", len(hits))
	}
	if hits[0].Score != exactMatchScore {
		t.Errorf("exact match score = %f, want %f", hits[0].Score, exactMatchScore)
	}
	if hits[0].Fields["region"] != "Middle East and North Africa" {
		t.Errorf("unexpected region: %v", hits[0].Fields["region"])
	}
}

func TestHandleCommitRegionFallsBackToSearch(t *testing.T) {
	r := buildTestRegistry(t)

	// No region slot extracted: plain BM25 over the corpus
	hits := r.Handle(intent.IntentCommitRegion, "ldn commitments sub-saharan", intent.Slots{
		Intent: intent.IntentCommitRegion,
	})
	if len(hits) == 0 {
		t.Fatal("expected BM25 fallback hits")
	}
	if hits[0].Score == exactMatchScore {
		t.Error("BM25 hit should not carry the exact-match score")
	}
}

func TestHandleCommitCountryExactMatch(t *testing.T) {
	r := buildTestRegistry(t)

	hits := r.Handle(intent.IntentCommitCountry, "saudi commitments", intent.Slots{
		Intent:  intent.IntentCommitCountry,
		Country: "Saudi Arabia",
	})
	if len(hits) != 1 {
		t.Fatalf("got %d hits, want 1", len(hits))
	}
	if hits[0].Fields["id"] != "commit_country#Saudi Arabia" {
		t.Errorf("unexpected hit: %v", hits[0].Fields["id"])
	}
}

func TestHandleLawLookupPlaceholder(t *testing.T) {
	r := buildTestRegistry(t)

	hits := r.Handle(intent.IntentLawLookup, "logging law 2020", intent.Slots{
		Intent:  intent.IntentLawLookup,
		Country: "Saudi Arabia",
	})
	if len(hits) != 1 {
		t.Fatalf("got %d hits, want 1 placeholder", len(hits))
	}
	if hits[0].Fields["placeholder"] != true {
		t.Error("expected placeholder marker on law lookup hit")
	}
	if hits[0].Fields["id"] != "law_placeholder" {
		t.Errorf("id = %v, want law_placeholder", hits[0].Fields["id"])
	}
}

func TestHandleMissingStore(t *testing.T) {
	r := NewRegistry(nil)

	if hits := r.Handle(intent.IntentAskCountry, "drought", intent.Slots{}); hits != nil {
		t.Errorf("missing store should return nil, got %v", hits)
	}
	if hits := r.Handle(intent.IntentCommitRegion, "commitments", intent.Slots{}); hits != nil {
		t.Errorf("missing store should return nil, got %v", hits)
	}
	// Law lookup needs no store and always answers
	if hits := r.Handle(intent.IntentLawLookup, "law", intent.Slots{}); len(hits) != 1 {
		t.Errorf("law lookup should always return its placeholder")
	}
}
