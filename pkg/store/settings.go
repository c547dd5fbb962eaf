package store

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dealerreach/backend/pkg/models"
)

// SettingStore is the gorm-backed runtime settings store.
type SettingStore struct {
	db *gorm.DB
}

// NewSettingStore creates a settings repository.
func NewSettingStore(db *gorm.DB) *SettingStore {
	return &SettingStore{db: db}
}

func (s *SettingStore) Get(ctx context.Context, key string) (string, bool, error) {
	var setting models.Setting
	if err := s.db.WithContext(ctx).First(&setting, "key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return setting.Value, true, nil
}

func (s *SettingStore) Set(ctx context.Context, key, value string) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:     []clause.Column{{Name: "key"}},
			UpdateAll: true,
		}).
		Create(&models.Setting{Key: key, Value: value}).Error
}
