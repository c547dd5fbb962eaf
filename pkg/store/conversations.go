package store

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/dealerreach/backend/pkg/domain"
	"github.com/dealerreach/backend/pkg/models"
)

// ConversationStore is the gorm-backed conversation repository.
type ConversationStore struct {
	db *gorm.DB
}

// NewConversationStore creates a conversation repository.
func NewConversationStore(db *gorm.DB) *ConversationStore {
	return &ConversationStore{db: db}
}

func (s *ConversationStore) FindOpen(ctx context.Context, leadID string, channel models.Channel) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.db.WithContext(ctx).
		Where("lead_id = ? AND channel = ? AND status IN ?", leadID, channel,
			[]models.ConversationStatus{models.ConversationAI, models.ConversationHuman}).
		Order("created_at DESC").
		First(&conv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &conv, nil
}

func (s *ConversationStore) Create(ctx context.Context, conv *models.Conversation) error {
	return s.db.WithContext(ctx).Create(conv).Error
}

func (s *ConversationStore) AppendMessage(ctx context.Context, msg *models.ConversationMessage) error {
	return s.db.WithContext(ctx).Create(msg).Error
}

func (s *ConversationStore) UpdateStatus(ctx context.Context, id string, status models.ConversationStatus) error {
	res := s.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.NewNotFoundError("conversation")
	}
	return nil
}

func (s *ConversationStore) GetByID(ctx context.Context, id string) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.db.WithContext(ctx).
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		First(&conv, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("conversation")
		}
		return nil, err
	}
	return &conv, nil
}
