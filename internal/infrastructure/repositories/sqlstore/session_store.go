package sqlstore

import (
	"context"
	"time"

	"camsignal/internal/core/domain"
	"camsignal/internal/core/ports"
	"camsignal/pkg/tracing"

	"gorm.io/gorm"
)

// GormSessionStore persists login session audit rows.
type GormSessionStore struct {
	db *gorm.DB
}

func NewGormSessionStore(db *gorm.DB) ports.SessionStore {
	return &GormSessionStore{db: db}
}

func (s *GormSessionStore) Create(ctx context.Context, session *domain.Session) error {
	ctx, span := tracing.TraceDatabaseOperation(ctx, "insert", "sessions")
	defer span.End()

	model := &SessionModel{
		SessionID: session.SessionID,
		UserID:    int64(session.UserID),
		IPAddress: session.IPAddress,
		UserAgent: session.UserAgent,
		CreatedAt: session.CreatedAt,
		ExpiresAt: session.ExpiresAt,
		IsActive:  true,
	}
	if err := s.db.WithContext(ctx).Create(model).Error; err != nil {
		tracing.RecordError(ctx, err)
		return err
	}
	return nil
}

// PruneExpired deletes sessions whose expiry has passed and returns the
// number of rows removed.
func (s *GormSessionStore) PruneExpired(ctx context.Context, now time.Time) (int64, error) {
	ctx, span := tracing.TraceDatabaseOperation(ctx, "delete", "sessions")
	defer span.End()

	result := s.db.WithContext(ctx).Where("expires_at < ?", now).Delete(&SessionModel{})
	if result.Error != nil {
		tracing.RecordError(ctx, result.Error)
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
