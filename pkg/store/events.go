package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/dealerreach/backend/pkg/models"
)

// TouchEventStore is the append-only gorm-backed event log.
type TouchEventStore struct {
	db *gorm.DB
}

// NewTouchEventStore creates a touch event repository.
func NewTouchEventStore(db *gorm.DB) *TouchEventStore {
	return &TouchEventStore{db: db}
}

func (s *TouchEventStore) Append(ctx context.Context, event *models.TouchEvent) error {
	return s.db.WithContext(ctx).Create(event).Error
}

func (s *TouchEventStore) ListByTouch(ctx context.Context, touchID string) ([]*models.TouchEvent, error) {
	var events []*models.TouchEvent
	err := s.db.WithContext(ctx).
		Where("touch_id = ?", touchID).
		Order("created_at ASC").
		Find(&events).Error
	return events, err
}
