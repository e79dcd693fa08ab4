package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Rag      RagConfig
	Ai       AIConfig
	Keys     APIKeys
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	RagLogFilePath     string
	CorsAllowedOrigins string
	NatsURL            string
}

type DatabaseConfig struct {
	Connection string
}

// RagConfig fixes the pipeline gates and index locations for the process
// lifetime.
type RagConfig struct {
	TopK                 int
	MinScore             float64
	DenseEnabled         bool
	GenerationEnabled    bool
	GenerationTimeoutSec int
	VectorBackend        string // "flat" or "pgvector"
	IndexPath            string
	CorpusDir            string
	DefaultCountry       string
	EmbeddingDimension   int
	ChunkSize            int
	ChunkOverlap         int
}

type AIConfig struct {
	EmbeddingProvider string // "gemini" or "ollama"
	OllamaBaseURL     string
	OllamaModel       string
	LLMProvider       string // "ollama" or "gemini"
	LLMModel          string
}

type APIKeys struct {
	GoogleGemini string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "8000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			RagLogFilePath:     getEnv("RAG_LOG_FILE_PATH", "logs/llm_rag.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:8080"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Rag: RagConfig{
			TopK:                 getEnvAsInt("TOP_K", 6),
			MinScore:             getEnvAsFloat("MIN_SCORE", 0.3),
			DenseEnabled:         getEnvAsBool("DENSE_ENABLED", true),
			GenerationEnabled:    getEnvAsBool("GENERATION_ENABLED", true),
			GenerationTimeoutSec: getEnvAsInt("GENERATION_TIMEOUT_SEC", 60),
			VectorBackend:        getEnv("VECTOR_BACKEND", "flat"),
			IndexPath:            getEnv("VECTOR_INDEX_PATH", "data/index"),
			CorpusDir:            getEnv("LEXICAL_CORPUS_DIR", "data/corpus"),
			DefaultCountry:       getEnv("DEFAULT_COUNTRY", "Saudi Arabia"),
			EmbeddingDimension:   getEnvAsInt("EMBEDDING_DIMENSION", 1024),
			ChunkSize:            getEnvAsInt("CHUNK_SIZE", 1500),
			ChunkOverlap:         getEnvAsInt("CHUNK_OVERLAP", 200),
		},
		Ai: AIConfig{
			EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", "ollama"),
			OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OllamaModel:       getEnv("OLLAMA_EMBEDDING_MODEL", "bge-m3"),
			LLMProvider:       getEnv("LLM_PROVIDER", "ollama"),
			LLMModel:          getEnv("LLM_MODEL", "qwen2.5"),
		},
		Keys: APIKeys{
			GoogleGemini: getEnv("GOOGLE_GEMINI_API_KEY", ""),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}
