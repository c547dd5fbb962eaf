package store

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dealerreach/backend/pkg/models"
)

// DNCStore is the gorm-backed do-not-contact list.
type DNCStore struct {
	db *gorm.DB
}

// NewDNCStore creates a DNC repository.
func NewDNCStore(db *gorm.DB) *DNCStore {
	return &DNCStore{db: db}
}

func (s *DNCStore) Exists(ctx context.Context, leadID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.DNCEntry{}).
		Where("lead_id = ?", leadID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Add lists a lead. Listing an already-listed lead is a no-op.
func (s *DNCStore) Add(ctx context.Context, entry *models.DNCEntry) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "lead_id"}},
			DoNothing: true,
		}).
		Create(entry).Error
}

// AddBatch lists many leads at once, skipping the ones already listed.
// Returns the number of new entries.
func (s *DNCStore) AddBatch(ctx context.Context, entries []*models.DNCEntry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	tx := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "lead_id"}},
			DoNothing: true,
		}).
		CreateInBatches(entries, 500)
	if tx.Error != nil {
		return 0, tx.Error
	}
	return int(tx.RowsAffected), nil
}
