package sqlstore

import (
	"context"
	"errors"
	"time"

	"camsignal/internal/core/domain"
	"camsignal/internal/core/ports"

	"gorm.io/gorm"
)

// GormUserRepository implements ports.UserRepository using GORM.
type GormUserRepository struct {
	db *gorm.DB
}

func NewGormUserRepository(db *gorm.DB) ports.UserRepository {
	return &GormUserRepository{db: db}
}

func (r *GormUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	var model UserModel
	result := r.db.WithContext(ctx).First(&model, "username = ?", username)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

func (r *GormUserRepository) GetByID(ctx context.Context, id domain.UserID) (*domain.User, error) {
	var model UserModel
	result := r.db.WithContext(ctx).First(&model, "id = ?", int64(id))
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

func (r *GormUserRepository) Create(ctx context.Context, user *domain.User) error {
	model := &UserModel{
		Username:     user.Username,
		PasswordHash: user.PasswordHash,
		Email:        user.Email,
		FullName:     user.FullName,
		Role:         string(user.Role),
		IsActive:     user.IsActive,
	}
	result := r.db.WithContext(ctx).Create(model)
	if result.Error != nil {
		return result.Error
	}

	user.ID = domain.UserID(model.ID)
	user.CreatedAt = model.CreatedAt
	return nil
}

func (r *GormUserRepository) UpdateLastLogin(ctx context.Context, id domain.UserID) error {
	now := time.Now()
	result := r.db.WithContext(ctx).Model(&UserModel{}).
		Where("id = ?", int64(id)).
		Update("last_login", &now)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}
