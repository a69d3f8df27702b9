package sqlstore

import (
	"context"
	"errors"

	"camsignal/internal/core/domain"
	"camsignal/internal/core/ports"

	"gorm.io/gorm"
)

// GormSettingsStore reads and writes persisted configuration values.
type GormSettingsStore struct {
	db *gorm.DB
}

func NewGormSettingsStore(db *gorm.DB) ports.SettingsStore {
	return &GormSettingsStore{db: db}
}

func (s *GormSettingsStore) Get(ctx context.Context, key string) (string, error) {
	var model SettingModel
	result := s.db.WithContext(ctx).First(&model, "key = ?", key)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return "", domain.ErrSettingNotFound
		}
		return "", result.Error
	}
	return model.Value, nil
}

func (s *GormSettingsStore) Set(ctx context.Context, key, value string) error {
	result := s.db.WithContext(ctx).Model(&SettingModel{}).
		Where("key = ?", key).
		Update("value", value)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return s.db.WithContext(ctx).Create(&SettingModel{Key: key, Value: value}).Error
	}
	return nil
}
