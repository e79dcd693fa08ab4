package lexical

import (
	"bufio"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"regexp"
	"sort"
	"strings"
)

// BM25 Okapi parameters, standard values.
const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

// tokenPattern extracts lowercase alphanumeric runs (keeping dots and
// percent signs for values like "12.5%") plus CJK character runs, matching
// the tokenization used when the corpora were built.
var tokenPattern = regexp.MustCompile(`[a-z0-9.%]+|[\x{4e00}-\x{9fa5}]+`)

// Tokenize lowercases text and splits it into BM25 index terms.
func Tokenize(text string) []string {
	if text == "" {
		return nil
	}
	return tokenPattern.FindAllString(strings.ToLower(text), -1)
}

// Hit is a lexical search result: the raw document fields plus its score.
type Hit struct {
	Fields map[string]interface{}
	Score  float64
}

// Store is a keyword index over JSONL documents. A fixed set of key fields
// is indexed per store; everything else rides along as payload. Stores are
// built once at startup and read-only afterwards, so concurrent searches
// need no locking.
type Store struct {
	path      string
	keyFields []string
	documents []map[string]interface{}

	docTokens []([]string)
	docLens   []int
	avgDocLen float64
	termFreq  []map[string]int
	docFreq   map[string]int
}

// NewStore loads a JSONL corpus and builds its index. A missing file yields
// an empty (but usable) store; malformed lines are skipped.
func NewStore(jsonlPath string, keyFields []string) (*Store, error) {
	s := &Store{
		path:      jsonlPath,
		keyFields: keyFields,
		docFreq:   make(map[string]int),
	}

	if jsonlPath == "" {
		return s, nil
	}

	f, err := os.Open(jsonlPath)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("open corpus %s: %w", jsonlPath, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var doc map[string]interface{}
		if err := json.Unmarshal([]byte(line), &doc); err != nil {
			continue
		}
		s.documents = append(s.documents, doc)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read corpus %s: %w", jsonlPath, err)
	}

	s.buildIndex()
	return s, nil
}

func (s *Store) buildIndex() {
	totalLen := 0
	for _, doc := range s.documents {
		var parts []string
		for _, field := range s.keyFields {
			if v, ok := doc[field]; ok && v != nil {
				parts = append(parts, fmt.Sprintf("%v", v))
			}
		}
		tokens := Tokenize(strings.Join(parts, " "))

		tf := make(map[string]int, len(tokens))
		for _, t := range tokens {
			tf[t]++
		}
		for t := range tf {
			s.docFreq[t]++
		}

		s.docTokens = append(s.docTokens, tokens)
		s.docLens = append(s.docLens, len(tokens))
		s.termFreq = append(s.termFreq, tf)
		totalLen += len(tokens)
	}
	if len(s.documents) > 0 {
		s.avgDocLen = float64(totalLen) / float64(len(s.documents))
	}
}

// Search scores all documents against the query with BM25 Okapi and returns
// the top k, highest score first. Ties keep insertion order. An empty store
// or empty query returns nil.
func (s *Store) Search(query string, k int) []Hit {
	if len(s.documents) == 0 || k <= 0 {
		return nil
	}
	queryTokens := Tokenize(query)
	if len(queryTokens) == 0 {
		return nil
	}

	n := float64(len(s.documents))
	scores := make([]float64, len(s.documents))
	for _, term := range queryTokens {
		df, ok := s.docFreq[term]
		if !ok {
			continue
		}
		// BM25 Okapi idf with the +1 floor to keep weights positive
		idf := math.Log((n-float64(df)+0.5)/(float64(df)+0.5) + 1)
		for i, tf := range s.termFreq {
			f := float64(tf[term])
			if f == 0 {
				continue
			}
			denom := f + bm25K1*(1-bm25B+bm25B*float64(s.docLens[i])/s.avgDocLen)
			scores[i] += idf * (f * (bm25K1 + 1)) / denom
		}
	}

	idxs := make([]int, len(scores))
	for i := range idxs {
		idxs[i] = i
	}
	sort.SliceStable(idxs, func(a, b int) bool {
		return scores[idxs[a]] > scores[idxs[b]]
	})

	if k > len(idxs) {
		k = len(idxs)
	}
	hits := make([]Hit, 0, k)
	for _, idx := range idxs[:k] {
		hits = append(hits, Hit{Fields: s.documents[idx], Score: scores[idx]})
	}
	return hits
}

// Documents exposes the loaded corpus for exact-match filtering by handlers.
func (s *Store) Documents() []map[string]interface{} {
	return s.documents
}

// Stats reports corpus path, size and index readiness.
func (s *Store) Stats() map[string]interface{} {
	return map[string]interface{}{
		"path":           s.path,
		"key_fields":     s.keyFields,
		"document_count": len(s.documents),
		"indexed":        len(s.docTokens) > 0,
	}
}
