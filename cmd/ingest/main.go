package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"geogli-chatbot-be/internal/config"
	"geogli-chatbot-be/internal/repository/implementation"
	"geogli-chatbot-be/pkg/database"
	"geogli-chatbot-be/pkg/embedding"
	"geogli-chatbot-be/pkg/utils"
	"geogli-chatbot-be/pkg/vectorstore"

	"github.com/fatih/color"
)

func main() {
	docsDir := flag.String("docs", "", "directory of .txt/.md documents to embed into the vector index")
	commitRegionCSV := flag.String("commit-region", "", "region commitments CSV to convert to a JSONL corpus")
	commitCountryCSV := flag.String("commit-country", "", "country commitments CSV to convert to a JSONL corpus")
	flag.Parse()

	cfg := config.Load()

	if *docsDir == "" && *commitRegionCSV == "" && *commitCountryCSV == "" {
		flag.Usage()
		os.Exit(1)
	}

	if *commitRegionCSV != "" {
		out := filepath.Join(cfg.Rag.CorpusDir, "commit_region.jsonl")
		if err := convertCommitmentCSV(*commitRegionCSV, out, "commit_region"); err != nil {
			color.Red("❌ Region conversion failed: %v", err)
			os.Exit(1)
		}
	}
	if *commitCountryCSV != "" {
		out := filepath.Join(cfg.Rag.CorpusDir, "commit_country.jsonl")
		if err := convertCommitmentCSV(*commitCountryCSV, out, "commit_country"); err != nil {
			color.Red("❌ Country conversion failed: %v", err)
			os.Exit(1)
		}
	}

	if *docsDir != "" {
		if err := ingestDocuments(cfg, *docsDir); err != nil {
			color.Red("❌ Ingestion failed: %v", err)
			os.Exit(1)
		}
	}
}

func ingestDocuments(cfg *config.Config, dir string) error {
	ctx := context.Background()

	var provider embedding.EmbeddingProvider
	if cfg.Ai.EmbeddingProvider == "gemini" {
		provider = embedding.NewGeminiProvider(cfg.Keys.GoogleGemini)
	} else {
		provider = embedding.NewOllamaProvider(cfg.Ai.OllamaBaseURL, cfg.Ai.OllamaModel)
	}

	index, err := buildIndex(cfg, ctx)
	if err != nil {
		return err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read documents directory: %w", err)
	}

	totalChunks := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".txt" && ext != ".md" {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		content, err := os.ReadFile(path)
		if err != nil {
			color.Yellow("⚠ Skipping %s: %v", entry.Name(), err)
			continue
		}

		chunks := utils.SplitText(string(content), cfg.Rag.ChunkSize, cfg.Rag.ChunkOverlap)
		color.Cyan("Embedding %s (%d chunks)...", entry.Name(), len(chunks))

		vectors := make([][]float32, 0, len(chunks))
		metadata := make([]map[string]interface{}, 0, len(chunks))
		for i, chunk := range chunks {
			res, err := provider.Generate(chunk, embedding.TaskRetrievalDocument)
			if err != nil {
				return fmt.Errorf("embed chunk %d of %s: %w", i, entry.Name(), err)
			}
			vectors = append(vectors, res.Embedding.Values)
			metadata = append(metadata, map[string]interface{}{
				"source":   entry.Name(),
				"chunk_id": i,
				"text":     chunk,
			})
		}

		if len(vectors) == 0 {
			continue
		}

		if err := index.Add(ctx, vectors, metadata); err != nil {
			if err == vectorstore.ErrNotInitialized {
				if initializer, ok := index.(interface{ Initialize(int) error }); ok {
					if err := initializer.Initialize(len(vectors[0])); err != nil {
						return err
					}
					if err := index.Add(ctx, vectors, metadata); err != nil {
						return err
					}
				}
			} else {
				return err
			}
		}
		totalChunks += len(chunks)
	}

	if err := index.Persist(ctx); err != nil {
		return fmt.Errorf("persist index: %w", err)
	}

	stats := index.Stats()
	color.Green("✅ Ingestion complete: %d chunks added, index now holds %d vectors (dimension %d)",
		totalChunks, stats.TotalVectors, stats.Dimension)
	return nil
}

func buildIndex(cfg *config.Config, ctx context.Context) (vectorstore.Store, error) {
	if cfg.Rag.VectorBackend == "pgvector" {
		if cfg.Database.Connection == "" {
			return nil, fmt.Errorf("VECTOR_BACKEND=pgvector requires DB_CONNECTION_STRING")
		}
		db, err := database.NewGormDB(cfg.Database.Connection)
		if err != nil {
			return nil, err
		}
		repo := implementation.NewDocumentEmbeddingRepository(db)
		store := vectorstore.NewPgStore(repo, cfg.Rag.EmbeddingDimension)
		if err := store.Load(ctx); err != nil {
			return nil, err
		}
		return store, nil
	}

	index := vectorstore.NewFlatIndex(cfg.Rag.IndexPath)
	// A missing index just means this is the first run.
	if err := index.Load(ctx); err != nil {
		color.Yellow("⚠ No existing index at %s, starting fresh", cfg.Rag.IndexPath)
	}
	return index, nil
}

// convertCommitmentCSV rewrites a restoration-commitments CSV into the
// JSONL corpus format the keyword index loads. Each row becomes one
// document whose text concatenates the labelled commitment figures.
func convertCommitmentCSV(csvPath, outPath, collection string) error {
	f, err := os.Open(csvPath)
	if err != nil {
		return fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	rows, err := reader.ReadAll()
	if err != nil {
		return fmt.Errorf("parse csv: %w", err)
	}
	if len(rows) < 2 {
		return fmt.Errorf("csv %s has no data rows", csvPath)
	}

	header := rows[0]
	colIdx := make(map[string]int, len(header))
	for i, name := range header {
		colIdx[strings.TrimSpace(name)] = i
	}

	primaryField := "Country"
	recordKey := "country"
	if collection == "commit_region" {
		primaryField = "Region"
		recordKey = "region"
	}
	commitmentFields := []string{"LDN", "NBSAP", "NDC", "Bonn Challenge", "Single highest commitment"}
	timestamp := time.Now().Format("2006-01-02")

	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return err
	}
	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer out.Close()

	enc := json.NewEncoder(out)
	converted := 0
	for rowNum, row := range rows[1:] {
		cell := func(name string) string {
			idx, ok := colIdx[name]
			if !ok || idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}

		idValue := cell(primaryField)
		if idValue == "" {
			idValue = fmt.Sprintf("unknown_%s_%d", recordKey, rowNum+1)
		}

		textParts := []string{}
		if v := cell(primaryField); v != "" {
			textParts = append(textParts, v+" —")
		}
		for _, field := range commitmentFields {
			value := cell(field)
			lower := strings.ToLower(value)
			if value == "" || lower == "n/a" || lower == "na" || lower == "null" {
				continue
			}
			short := strings.ReplaceAll(field, " Challenge", "")
			short = strings.ReplaceAll(short, " commitment", "")
			textParts = append(textParts, short+" "+value)
		}

		text := ""
		if len(textParts) > 1 {
			text = strings.Join(textParts, "; ") + "."
		} else if len(textParts) == 1 {
			text = textParts[0]
		}

		record := map[string]interface{}{
			"id":         fmt.Sprintf("%s#%s", collection, idValue),
			"collection": collection,
			"text":       text,
			"source_csv": csvPath,
			"updated_at": timestamp,
			recordKey:    cell(primaryField),
		}
		if err := enc.Encode(record); err != nil {
			return err
		}
		converted++
	}

	color.Green("✅ Converted %d records from %s to %s", converted, csvPath, outPath)
	return nil
}
