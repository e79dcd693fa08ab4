package service

import (
	"context"
	"encoding/json"
	"log"

	"geogli-chatbot-be/internal/dto"
	"geogli-chatbot-be/pkg/embedding"
	"geogli-chatbot-be/pkg/events"
	pkgnats "geogli-chatbot-be/pkg/nats"
	"geogli-chatbot-be/pkg/utils"
	"geogli-chatbot-be/pkg/vectorstore"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

type consumerService struct {
	pubSub            *gochannel.GoChannel
	topicName         string
	embeddingProvider embedding.EmbeddingProvider
	index             vectorstore.Store
	chunkSize         int
	chunkOverlap      int
	natsPub           *pkgnats.Publisher
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	embeddingProvider embedding.EmbeddingProvider,
	index vectorstore.Store,
	chunkSize int,
	chunkOverlap int,
	natsPub *pkgnats.Publisher,
) IConsumerService {
	if chunkSize <= 0 {
		chunkSize = 1500
	}
	if chunkOverlap < 0 {
		chunkOverlap = 200
	}
	return &consumerService{
		pubSub:            pubSub,
		topicName:         topicName,
		embeddingProvider: embeddingProvider,
		index:             index,
		chunkSize:         chunkSize,
		chunkOverlap:      chunkOverlap,
		natsPub:           natsPub,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.PublishIngestDocumentMessage
	err := json.Unmarshal(msg.Payload, &payload)
	if err != nil {
		log.Printf("[ERROR] Failed to unmarshal message: %v", err)
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	log.Printf("[INFO] Processing ingestion for source: %s (length: %d)", payload.Source, len(payload.Text))

	chunks := utils.SplitText(payload.Text, cs.chunkSize, cs.chunkOverlap)
	log.Printf("[INFO] Content split into %d chunks", len(chunks))

	vectors := make([][]float32, 0, len(chunks))
	metadata := make([]map[string]interface{}, 0, len(chunks))

	for i, chunk := range chunks {
		res, err := cs.embeddingProvider.Generate(chunk, embedding.TaskRetrievalDocument)
		if err != nil {
			log.Printf("[ERROR] Failed to generate embedding for chunk %d of %s: %v", i, payload.Source, err)
			msg.Nack() // Nack for retriable errors
			return
		}

		vectors = append(vectors, res.Embedding.Values)
		metadata = append(metadata, map[string]interface{}{
			"source":   payload.Source,
			"chunk_id": i,
			"text":     chunk,
		})
	}

	err = cs.index.Add(ctx, vectors, metadata)
	if err == vectorstore.ErrNotInitialized && len(vectors) > 0 {
		// The index has not been touched yet this process. Restore the
		// persisted artifacts if they exist; otherwise this is the first
		// ingestion ever and the batch fixes the dimension.
		if loadErr := cs.index.Load(ctx); loadErr != nil {
			if initializer, ok := cs.index.(interface{ Initialize(int) error }); ok {
				if initErr := initializer.Initialize(len(vectors[0])); initErr != nil {
					log.Printf("[ERROR] Failed to initialize index: %v", initErr)
					msg.Nack()
					return
				}
			}
		}
		err = cs.index.Add(ctx, vectors, metadata)
	}
	if err != nil {
		log.Printf("[ERROR] Failed to add vectors for %s: %v", payload.Source, err)
		msg.Nack()
		return
	}

	if err := cs.index.Persist(ctx); err != nil {
		log.Printf("[ERROR] Failed to persist index after ingesting %s: %v", payload.Source, err)
		msg.Nack()
		return
	}

	log.Printf("[SUCCESS] Source ingested: %d chunks for %s", len(chunks), payload.Source)

	if cs.natsPub != nil {
		evt := events.NewDocumentsIngestedEvent(payload.Source, len(chunks))
		if err := cs.natsPub.Publish(ctx, evt); err != nil {
			log.Printf("[WARN] Failed to publish ingestion event: %v", err)
		}
	}

	msg.Ack()
}
