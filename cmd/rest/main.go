package main

import (
	"context"
	"log"

	"geogli-chatbot-be/internal/bootstrap"
	"geogli-chatbot-be/internal/config"
	"geogli-chatbot-be/internal/entity"
	"geogli-chatbot-be/internal/server"
	"geogli-chatbot-be/internal/tracer"
	"geogli-chatbot-be/pkg/database"

	"gorm.io/gorm"
)

func main() {
	// 0. Initialize Tracer (no-op unless OTEL_ENABLED=true)
	shutdownTracer := tracer.InitTracer()
	defer shutdownTracer(context.Background())

	// 1. Load Configuration
	cfg := config.Load()

	// 2. Initialize Database (optional: history and pgvector need it)
	var gormDB *gorm.DB
	if cfg.Database.Connection != "" {
		var err error
		gormDB, err = database.NewGormDB(cfg.Database.Connection)
		if err != nil {
			log.Panicf("Unable to connect to GORM DB: %v", err)
		}
		models := []interface{}{&entity.ConversationMessage{}}
		if cfg.Rag.VectorBackend == "pgvector" {
			// Needs the pgvector extension installed in the target DB.
			models = append(models, &entity.DocumentEmbedding{})
		}
		if err := gormDB.AutoMigrate(models...); err != nil {
			log.Printf("Warning: AutoMigrate failed: %v", err)
		}
	} else {
		log.Println("DB_CONNECTION_STRING not set, running without conversation history")
	}

	// 3. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(gormDB, cfg)

	// 4. Start Background Services
	// Note: In a larger app, we might use an errgroup or supervisor here
	go func() {
		log.Println("Background: Starting Ingestion Consumer...")
		if err := container.ConsumerService.Consume(context.Background()); err != nil {
			log.Printf("Background Consumer Error: %v", err)
		}
	}()

	// 5. Initialize Server
	srv := server.New(cfg, container)

	// 6. Run Server
	log.Fatal(srv.Run())
}
