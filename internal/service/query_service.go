package service

import (
	"context"
	"log"
	"strings"
	"time"

	"geogli-chatbot-be/internal/dto"
	"geogli-chatbot-be/internal/entity"
	"geogli-chatbot-be/internal/repository/contract"
	"geogli-chatbot-be/internal/repository/memory"
	"geogli-chatbot-be/pkg/events"
	"geogli-chatbot-be/pkg/lexical"
	"geogli-chatbot-be/pkg/nats"
	"geogli-chatbot-be/pkg/rag/pipeline"
	"geogli-chatbot-be/pkg/rag/retriever"

	"github.com/google/uuid"
)

type IQueryService interface {
	// StreamQuery runs the pipeline against the emitter and performs
	// post-answer bookkeeping. It never returns an error: the emitter
	// has already delivered a terminal event.
	StreamQuery(ctx context.Context, sessionId, q, routeHint string, topK int, emit pipeline.Emitter) *pipeline.Result

	// Query is the non-streaming variant returning the final payload.
	Query(ctx context.Context, sessionId string, req *dto.QueryRequest) *dto.QueryResponse

	IndexStats() dto.IndexStatsResponse
}

type queryService struct {
	pipeline         *pipeline.Pipeline
	retriever        *retriever.DenseRetriever
	lexStores        map[string]*lexical.Store
	sessionRepo      *memory.SessionRepository
	conversationRepo contract.ConversationRepository // nil without a database
	natsPub          *nats.Publisher                 // nil without a broker
	ragLogger        *log.Logger
}

func NewQueryService(
	p *pipeline.Pipeline,
	denseRetriever *retriever.DenseRetriever,
	lexStores map[string]*lexical.Store,
	sessionRepo *memory.SessionRepository,
	conversationRepo contract.ConversationRepository,
	natsPub *nats.Publisher,
	ragLogger *log.Logger,
) IQueryService {
	return &queryService{
		pipeline:         p,
		retriever:        denseRetriever,
		lexStores:        lexStores,
		sessionRepo:      sessionRepo,
		conversationRepo: conversationRepo,
		natsPub:          natsPub,
		ragLogger:        ragLogger,
	}
}

func (qs *queryService) StreamQuery(ctx context.Context, sessionId, q, routeHint string, topK int, emit pipeline.Emitter) *pipeline.Result {
	res := qs.pipeline.Run(ctx, sessionId, q, routeHint, topK, emit)
	qs.recordOutcome(ctx, sessionId, q, res)
	return res
}

func (qs *queryService) Query(ctx context.Context, sessionId string, req *dto.QueryRequest) *dto.QueryResponse {
	collector := &pipeline.CollectEmitter{}
	res := qs.pipeline.Run(ctx, sessionId, req.Q, req.RouteHint, req.TopK, collector)

	response := &dto.QueryResponse{
		SessionId:   sessionId,
		Answer:      res.Answer,
		SourceLinks: res.SourceLinks,
		Route:       res.Route,
		LatencyMs:   res.LatencyMs,
	}
	if response.SourceLinks == nil {
		response.SourceLinks = []string{}
	}

	// The lexical path delivers hits instead of generated text; the
	// non-streaming response carries both the hits and a plain-text
	// rendering of them.
	if collector.LexicalRes != nil {
		response.Hits = dto.FormatLexicalHits(collector.LexicalRes.Hits, collector.LexicalRes.Intent)
		response.Answer = renderHitsAsText(response.Hits)
	}

	qs.recordOutcome(ctx, sessionId, req.Q, res)
	return response
}

func (qs *queryService) IndexStats() dto.IndexStatsResponse {
	stats := qs.retriever.Stats()
	lexStats := make(map[string]interface{}, len(qs.lexStores))
	for name, store := range qs.lexStores {
		lexStats[name] = store.Stats()
	}
	return dto.IndexStatsResponse{
		Status:        stats.Status,
		TotalVectors:  stats.TotalVectors,
		Dimension:     stats.Dimension,
		DefaultTopK:   stats.DefaultTopK,
		LexicalStores: lexStats,
	}
}

// recordOutcome persists history and publishes analytics. Both are
// best-effort: the answer is already delivered.
func (qs *queryService) recordOutcome(ctx context.Context, sessionId, q string, res *pipeline.Result) {
	qs.sessionRepo.RecordQuery(sessionId, q, res.Route)

	if qs.conversationRepo != nil {
		now := time.Now()
		userMsg := &entity.ConversationMessage{
			Id:        uuid.New(),
			SessionId: sessionId,
			Role:      "user",
			Content:   q,
			CreatedAt: now,
		}
		assistantMsg := &entity.ConversationMessage{
			Id:        uuid.New(),
			SessionId: sessionId,
			Role:      "assistant",
			Content:   res.Answer,
			Route:     res.Route,
			CreatedAt: now.Add(time.Millisecond),
		}
		if err := qs.conversationRepo.Create(ctx, userMsg); err != nil {
			qs.ragLogger.Printf("[WARN] Failed to persist user message: %v", err)
		} else if err := qs.conversationRepo.Create(ctx, assistantMsg); err != nil {
			qs.ragLogger.Printf("[WARN] Failed to persist assistant message: %v", err)
		}
	}

	if qs.natsPub != nil {
		evt := events.NewQueryCompletedEvent(sessionId, string(res.Slots.Intent), res.Route, res.LatencyMs, len(res.SourceLinks))
		if err := qs.natsPub.Publish(ctx, evt); err != nil {
			qs.ragLogger.Printf("[WARN] Failed to publish analytics event: %v", err)
		}
	}
}

func renderHitsAsText(hits []dto.LexicalHitResponse) string {
	var b strings.Builder
	for _, hit := range hits {
		if hit.Title != "" {
			b.WriteString(hit.Title)
			b.WriteString(": ")
		}
		b.WriteString(hit.Text)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
