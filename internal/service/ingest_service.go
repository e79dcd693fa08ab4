package service

import (
	"context"
	"encoding/json"

	"geogli-chatbot-be/internal/dto"
)

type IIngestService interface {
	Queue(ctx context.Context, req *dto.IngestRequest) (*dto.IngestResponse, error)
}

type ingestService struct {
	publisherService IPublisherService
}

func NewIngestService(publisherService IPublisherService) IIngestService {
	return &ingestService{
		publisherService: publisherService,
	}
}

// Queue hands the document to the ingestion consumer. Embedding happens
// off the request path.
func (is *ingestService) Queue(ctx context.Context, req *dto.IngestRequest) (*dto.IngestResponse, error) {
	msg := dto.PublishIngestDocumentMessage{
		Source: req.Source,
		Text:   req.Text,
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	if err := is.publisherService.Publish(ctx, payload); err != nil {
		return nil, err
	}
	return &dto.IngestResponse{Source: req.Source, Queued: true}, nil
}
