package store

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/dealerreach/backend/pkg/domain"
	"github.com/dealerreach/backend/pkg/models"
)

// CampaignStore is the gorm-backed campaign repository.
type CampaignStore struct {
	db *gorm.DB
}

// NewCampaignStore creates a campaign repository.
func NewCampaignStore(db *gorm.DB) *CampaignStore {
	return &CampaignStore{db: db}
}

func (s *CampaignStore) GetByID(ctx context.Context, id string) (*models.Campaign, error) {
	var campaign models.Campaign
	if err := s.db.WithContext(ctx).First(&campaign, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("campaign")
		}
		return nil, err
	}
	return &campaign, nil
}

func (s *CampaignStore) Create(ctx context.Context, campaign *models.Campaign) error {
	return s.db.WithContext(ctx).Create(campaign).Error
}

func (s *CampaignStore) Update(ctx context.Context, campaign *models.Campaign) error {
	return s.db.WithContext(ctx).Save(campaign).Error
}

func (s *CampaignStore) UpdateStatus(ctx context.Context, id string, status models.CampaignStatus) error {
	res := s.db.WithContext(ctx).Model(&models.Campaign{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.NewNotFoundError("campaign")
	}
	return nil
}

func (s *CampaignStore) ListByStatus(ctx context.Context, status models.CampaignStatus) ([]*models.Campaign, error) {
	var campaigns []*models.Campaign
	if err := s.db.WithContext(ctx).Where("status = ?", status).
		Order("created_at DESC").Find(&campaigns).Error; err != nil {
		return nil, err
	}
	return campaigns, nil
}
