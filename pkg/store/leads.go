package store

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/dealerreach/backend/pkg/domain"
	"github.com/dealerreach/backend/pkg/models"
)

// LeadStore is the gorm-backed lead repository.
type LeadStore struct {
	db *gorm.DB
}

// NewLeadStore creates a lead repository.
func NewLeadStore(db *gorm.DB) *LeadStore {
	return &LeadStore{db: db}
}

func (s *LeadStore) GetByID(ctx context.Context, id string) (*models.Lead, error) {
	var lead models.Lead
	if err := s.db.WithContext(ctx).First(&lead, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("lead")
		}
		return nil, err
	}
	return &lead, nil
}

// FindByPhone matches the E.164 number against primary and secondary
// phones of non-opted-out leads.
func (s *LeadStore) FindByPhone(ctx context.Context, e164 string) (*models.Lead, error) {
	var lead models.Lead
	err := s.db.WithContext(ctx).
		Where("(phone = ? OR secondary_phone = ?) AND opted_out = ?", e164, e164, false).
		Order("updated_at DESC").
		First(&lead).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("lead")
		}
		return nil, err
	}
	return &lead, nil
}

func (s *LeadStore) FindByEmail(ctx context.Context, email string) (*models.Lead, error) {
	var lead models.Lead
	err := s.db.WithContext(ctx).
		Where("email = ? AND opted_out = ?", email, false).
		Order("updated_at DESC").
		First(&lead).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("lead")
		}
		return nil, err
	}
	return &lead, nil
}

func (s *LeadStore) ListBySegments(ctx context.Context, segments []models.Segment) ([]*models.Lead, error) {
	var leads []*models.Lead
	if err := s.db.WithContext(ctx).Where("segment IN ?", segments).Find(&leads).Error; err != nil {
		return nil, err
	}
	return leads, nil
}

func (s *LeadStore) Save(ctx context.Context, lead *models.Lead) error {
	return s.db.WithContext(ctx).Save(lead).Error
}
