package bootstrap

import (
	"log"
	"os"
	"path/filepath"

	"geogli-chatbot-be/internal/config"
	"geogli-chatbot-be/internal/controller"
	"geogli-chatbot-be/internal/pkg/logger"
	"geogli-chatbot-be/internal/repository/contract"
	"geogli-chatbot-be/internal/repository/implementation"
	"geogli-chatbot-be/internal/repository/memory"
	"geogli-chatbot-be/internal/service"
	"geogli-chatbot-be/pkg/embedding"
	"geogli-chatbot-be/pkg/intent"
	"geogli-chatbot-be/pkg/lexical"
	"geogli-chatbot-be/pkg/llm"
	"geogli-chatbot-be/pkg/llm/factory"
	"geogli-chatbot-be/pkg/rag/pipeline"
	"geogli-chatbot-be/pkg/rag/retriever"
	"geogli-chatbot-be/pkg/vectorstore"

	pktNats "geogli-chatbot-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"gorm.io/gorm"

	"time"
)

const ingestTopicName = "INGEST_DOCUMENT"

type Container struct {
	// Controllers
	QueryController   controller.IQueryController
	SessionController controller.ISessionController
	IngestController  controller.IIngestController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService

	Logger logger.ILogger
}

// NewContainer wires the whole service. db may be nil: conversation
// history and the pgvector backend then stay disabled, everything else
// keeps working.
func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	ragLogger := initRagLogger(cfg.App.RagLogFilePath)

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. AI Providers
	var embeddingProvider embedding.EmbeddingProvider
	if cfg.Ai.EmbeddingProvider == "gemini" {
		embeddingProvider = embedding.NewGeminiProvider(cfg.Keys.GoogleGemini)
		sysLogger.Info("bootstrap", "Using embedding provider: GEMINI", nil)
	} else {
		embeddingProvider = embedding.NewOllamaProvider(
			cfg.Ai.OllamaBaseURL,
			cfg.Ai.OllamaModel,
		)
		sysLogger.Info("bootstrap", "Using embedding provider: OLLAMA", map[string]interface{}{"model": cfg.Ai.OllamaModel})
	}

	var llmProvider llm.LLMProvider
	if cfg.Rag.GenerationEnabled {
		var err error
		llmProvider, err = factory.NewLLMProvider(
			cfg.Ai.LLMProvider,
			cfg.Ai.LLMModel,
			cfg.Ai.OllamaBaseURL,
			cfg.Keys.GoogleGemini,
		)
		if err != nil {
			log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
		}
		sysLogger.Info("bootstrap", "Using LLM provider", map[string]interface{}{
			"provider": cfg.Ai.LLMProvider,
			"model":    cfg.Ai.LLMModel,
		})
	} else {
		sysLogger.Warn("bootstrap", "Generation is disabled, answers degrade to templated responses", nil)
	}

	// 4. Vector Index Backend
	var conversationRepo contract.ConversationRepository
	if db != nil {
		conversationRepo = implementation.NewConversationRepository(db)
	}

	var index vectorstore.Store
	if cfg.Rag.VectorBackend == "pgvector" {
		if db == nil {
			log.Fatalf("[FATAL] VECTOR_BACKEND=pgvector requires DB_CONNECTION_STRING")
		}
		embeddingRepo := implementation.NewDocumentEmbeddingRepository(db)
		index = vectorstore.NewPgStore(embeddingRepo, cfg.Rag.EmbeddingDimension)
		sysLogger.Info("bootstrap", "Using vector backend: PGVECTOR", nil)
	} else {
		index = vectorstore.NewFlatIndex(cfg.Rag.IndexPath)
		sysLogger.Info("bootstrap", "Using vector backend: FLAT", map[string]interface{}{"path": cfg.Rag.IndexPath})
	}

	// 5. Retrieval Tiers
	denseRetriever := retriever.NewDenseRetriever(embeddingProvider, index, cfg.Rag.TopK, ragLogger)
	classifier := intent.NewClassifier(cfg.Rag.DefaultCountry)
	lexStores := loadLexicalStores(cfg.Rag.CorpusDir, ragLogger)
	lexRegistry := lexical.NewRegistry(lexStores)

	ragPipeline := pipeline.NewPipeline(
		classifier,
		lexRegistry,
		denseRetriever,
		llmProvider,
		pipeline.Config{
			TopK:              cfg.Rag.TopK,
			MinScore:          float32(cfg.Rag.MinScore),
			DenseEnabled:      cfg.Rag.DenseEnabled,
			GenerationEnabled: cfg.Rag.GenerationEnabled,
			GenerationTimeout: time.Duration(cfg.Rag.GenerationTimeoutSec) * time.Second,
		},
		ragLogger,
	)

	// 6. Infrastructure
	sessionRepo := memory.NewSessionRepository()

	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		sysLogger.Warn("bootstrap", "Failed to connect to NATS, analytics events disabled", map[string]interface{}{"error": err.Error()})
		natsPub = nil
	}

	// 7. Services
	publisherService := service.NewPublisherService(ingestTopicName, pubSub)
	consumerService := service.NewConsumerService(
		pubSub,
		ingestTopicName,
		embeddingProvider,
		index,
		cfg.Rag.ChunkSize,
		cfg.Rag.ChunkOverlap,
		natsPub,
	)

	queryService := service.NewQueryService(
		ragPipeline,
		denseRetriever,
		lexStores,
		sessionRepo,
		conversationRepo,
		natsPub,
		ragLogger,
	)
	sessionService := service.NewSessionService(conversationRepo, sessionRepo)
	ingestService := service.NewIngestService(publisherService)

	// 8. Controllers
	return &Container{
		QueryController:   controller.NewQueryController(queryService),
		SessionController: controller.NewSessionController(sessionService),
		IngestController:  controller.NewIngestController(ingestService),

		ConsumerService: consumerService,
		Logger:          sysLogger,
	}
}

// loadLexicalStores builds one keyword index per corpus file. Missing
// files yield empty stores so the handlers still answer.
func loadLexicalStores(corpusDir string, ragLogger *log.Logger) map[string]*lexical.Store {
	specs := []struct {
		name      string
		file      string
		keyFields []string
	}{
		{lexical.StoreGeoGLI, "geogli.jsonl", []string{"title", "text", "section", "country"}},
		{lexical.StoreCommitRegion, "commit_region.jsonl", []string{"region", "text"}},
		{lexical.StoreCommitCountry, "commit_country.jsonl", []string{"country", "text"}},
	}

	stores := make(map[string]*lexical.Store, len(specs))
	for _, spec := range specs {
		store, err := lexical.NewStore(filepath.Join(corpusDir, spec.file), spec.keyFields)
		if err != nil {
			ragLogger.Printf("[WARN] Failed to load lexical store %s: %v", spec.name, err)
			continue
		}
		stores[spec.name] = store
	}
	return stores
}

func initRagLogger(logPath string) *log.Logger {
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		log.Printf("Failed to create logs directory: %v", err)
	}
	file, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return log.New(os.Stdout, "[LLM-RAG] ", log.LstdFlags)
	}
	return log.New(file, "", log.LstdFlags)
}
