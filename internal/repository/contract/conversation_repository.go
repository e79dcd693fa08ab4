package contract

import (
	"context"

	"geogli-chatbot-be/internal/entity"
)

type ConversationRepository interface {
	Create(ctx context.Context, message *entity.ConversationMessage) error
	FindBySessionId(ctx context.Context, sessionId string) ([]*entity.ConversationMessage, error)
	DeleteBySessionId(ctx context.Context, sessionId string) error
}
