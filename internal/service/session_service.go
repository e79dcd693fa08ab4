package service

import (
	"context"
	"io"

	"geogli-chatbot-be/internal/dto"
	"geogli-chatbot-be/internal/entity"
	"geogli-chatbot-be/internal/repository/contract"
	"geogli-chatbot-be/internal/repository/memory"
	"geogli-chatbot-be/pkg/export"

	"github.com/gofiber/fiber/v2"
)

type ISessionService interface {
	History(ctx context.Context, sessionId string) (*dto.SessionHistoryResponse, error)
	Delete(ctx context.Context, sessionId string) error
	ExportPDF(ctx context.Context, sessionId string, w io.Writer) error
}

type sessionService struct {
	conversationRepo contract.ConversationRepository // nil without a database
	sessionRepo      *memory.SessionRepository
}

func NewSessionService(
	conversationRepo contract.ConversationRepository,
	sessionRepo *memory.SessionRepository,
) ISessionService {
	return &sessionService{
		conversationRepo: conversationRepo,
		sessionRepo:      sessionRepo,
	}
}

func (ss *sessionService) History(ctx context.Context, sessionId string) (*dto.SessionHistoryResponse, error) {
	messages, err := ss.loadMessages(ctx, sessionId)
	if err != nil {
		return nil, err
	}

	res := &dto.SessionHistoryResponse{
		SessionId: sessionId,
		Messages:  make([]dto.HistoryMessageResponse, 0, len(messages)),
	}
	for _, msg := range messages {
		res.Messages = append(res.Messages, dto.HistoryMessageResponse{
			Id:        msg.Id.String(),
			Role:      msg.Role,
			Content:   msg.Content,
			Route:     msg.Route,
			CreatedAt: msg.CreatedAt,
		})
	}
	return res, nil
}

func (ss *sessionService) Delete(ctx context.Context, sessionId string) error {
	ss.sessionRepo.Delete(sessionId)
	if ss.conversationRepo == nil {
		return nil
	}
	return ss.conversationRepo.DeleteBySessionId(ctx, sessionId)
}

func (ss *sessionService) ExportPDF(ctx context.Context, sessionId string, w io.Writer) error {
	messages, err := ss.loadMessages(ctx, sessionId)
	if err != nil {
		return err
	}

	transcript := make([]entity.ConversationMessage, 0, len(messages))
	for _, msg := range messages {
		transcript = append(transcript, *msg)
	}
	return export.WriteConversationPDF(w, sessionId, transcript)
}

func (ss *sessionService) loadMessages(ctx context.Context, sessionId string) ([]*entity.ConversationMessage, error) {
	if ss.conversationRepo == nil {
		return nil, fiber.NewError(fiber.StatusServiceUnavailable, "Conversation history requires a database")
	}
	messages, err := ss.conversationRepo.FindBySessionId(ctx, sessionId)
	if err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return nil, fiber.NewError(fiber.StatusNotFound, "Conversation not found")
	}
	return messages, nil
}
