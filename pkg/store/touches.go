package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/dealerreach/backend/pkg/domain"
	"github.com/dealerreach/backend/pkg/models"
)

// outstandingStatuses are the ranks a delivery webhook can still act
// on: the touch went out but the lead has not replied.
var outstandingStatuses = []models.TouchStatus{
	models.StatusSent, models.StatusDelivered, models.StatusOpened, models.StatusClicked,
}

// TouchStore is the gorm-backed touch repository.
type TouchStore struct {
	db *gorm.DB
}

// NewTouchStore creates a touch repository.
func NewTouchStore(db *gorm.DB) *TouchStore {
	return &TouchStore{db: db}
}

func (s *TouchStore) Create(ctx context.Context, touch *models.Touch) error {
	return s.db.WithContext(ctx).Create(touch).Error
}

func (s *TouchStore) GetByID(ctx context.Context, id string) (*models.Touch, error) {
	var touch models.Touch
	if err := s.db.WithContext(ctx).First(&touch, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("touch")
		}
		return nil, err
	}
	return &touch, nil
}

func (s *TouchStore) GetByProviderRef(ctx context.Context, providerRef string) (*models.Touch, error) {
	var touch models.Touch
	err := s.db.WithContext(ctx).
		Where("provider_ref = ?", providerRef).
		Order("created_at DESC").
		First(&touch).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("touch")
		}
		return nil, err
	}
	return &touch, nil
}

func (s *TouchStore) StepExists(ctx context.Context, leadID string, campaignID *string, channel models.Channel, templateID string) (bool, error) {
	q := s.db.WithContext(ctx).Model(&models.Touch{}).
		Where("lead_id = ? AND channel = ? AND template_id = ?", leadID, channel, templateID)
	if campaignID != nil {
		q = q.Where("campaign_id = ?", *campaignID)
	} else {
		q = q.Where("campaign_id IS NULL")
	}

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// UpdateStatusFrom is the compare-and-swap the workers and the tracker
// rely on: the row only moves when it is still in the expected status.
func (s *TouchStore) UpdateStatusFrom(ctx context.Context, id string, from, to models.TouchStatus) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.Touch{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *TouchStore) MarkSent(ctx context.Context, id string, sentAt time.Time, content, variant, providerRef string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.Touch{}).
		Where("id = ? AND status = ?", id, models.StatusPending).
		Updates(map[string]any{
			"status":       models.StatusSent,
			"sent_at":      sentAt,
			"content":      content,
			"variant":      variant,
			"provider_ref": providerRef,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *TouchStore) PendingByCampaign(ctx context.Context, campaignID string) ([]*models.Touch, error) {
	var touches []*models.Touch
	err := s.db.WithContext(ctx).
		Where("campaign_id = ? AND status = ?", campaignID, models.StatusPending).
		Find(&touches).Error
	return touches, err
}

func (s *TouchStore) PendingByLead(ctx context.Context, leadID string) ([]*models.Touch, error) {
	var touches []*models.Touch
	err := s.db.WithContext(ctx).
		Where("lead_id = ? AND status = ?", leadID, models.StatusPending).
		Find(&touches).Error
	return touches, err
}

func (s *TouchStore) LatestOutstanding(ctx context.Context, leadID string, channel models.Channel) (*models.Touch, error) {
	var touch models.Touch
	err := s.db.WithContext(ctx).
		Where("lead_id = ? AND channel = ? AND status IN ?", leadID, channel, outstandingStatuses).
		Order("sent_at DESC").
		First(&touch).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &touch, nil
}

func (s *TouchStore) CountSentSince(ctx context.Context, leadID string, channel *models.Channel, since time.Time) (int, error) {
	q := s.db.WithContext(ctx).Model(&models.Touch{}).
		Where("lead_id = ? AND sent_at >= ?", leadID, since)
	if channel != nil {
		q = q.Where("channel = ?", *channel)
	}

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

func (s *TouchStore) LastSentAt(ctx context.Context, leadID string, channel models.Channel) (*time.Time, error) {
	var touch models.Touch
	err := s.db.WithContext(ctx).
		Where("lead_id = ? AND channel = ? AND sent_at IS NOT NULL", leadID, channel).
		Order("sent_at DESC").
		First(&touch).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return touch.SentAt, nil
}

func (s *TouchStore) ListByLead(ctx context.Context, leadID string) ([]*models.Touch, error) {
	var touches []*models.Touch
	err := s.db.WithContext(ctx).
		Where("lead_id = ?", leadID).
		Order("scheduled_at ASC").
		Find(&touches).Error
	return touches, err
}

func (s *TouchStore) StatusCounts(ctx context.Context, campaignID string) (map[models.TouchStatus]int, error) {
	var rows []struct {
		Status models.TouchStatus
		N      int
	}
	err := s.db.WithContext(ctx).Model(&models.Touch{}).
		Select("status, COUNT(*) AS n").
		Where("campaign_id = ?", campaignID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[models.TouchStatus]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.N
	}
	return counts, nil
}
