package implementation

import (
	"context"

	"geogli-chatbot-be/internal/entity"
	"geogli-chatbot-be/internal/repository/contract"

	"gorm.io/gorm"
)

type ConversationRepositoryImpl struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) contract.ConversationRepository {
	return &ConversationRepositoryImpl{db: db}
}

func (r *ConversationRepositoryImpl) Create(ctx context.Context, message *entity.ConversationMessage) error {
	return r.db.WithContext(ctx).Create(message).Error
}

func (r *ConversationRepositoryImpl) FindBySessionId(ctx context.Context, sessionId string) ([]*entity.ConversationMessage, error) {
	var messages []*entity.ConversationMessage
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionId).
		Order("created_at ASC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *ConversationRepositoryImpl) DeleteBySessionId(ctx context.Context, sessionId string) error {
	return r.db.WithContext(ctx).
		Where("session_id = ?", sessionId).
		Delete(&entity.ConversationMessage{}).Error
}
