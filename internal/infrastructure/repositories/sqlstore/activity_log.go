package sqlstore

import (
	"context"

	"camsignal/internal/core/domain"
	"camsignal/internal/core/ports"
	"camsignal/pkg/tracing"

	"gorm.io/gorm"
)

// GormActivityLog persists camera lifecycle and login audit lines.
type GormActivityLog struct {
	db *gorm.DB
}

func NewGormActivityLog(db *gorm.DB) ports.ActivityLog {
	return &GormActivityLog{db: db}
}

func (l *GormActivityLog) RecordActivity(ctx context.Context, entry *domain.ActivityEntry) error {
	ctx, span := tracing.TraceDatabaseOperation(ctx, "insert", "camera_logs")
	defer span.End()

	model := &CameraLogModel{
		RoomID:     string(entry.RoomID),
		CameraName: entry.CameraName,
		DeviceInfo: entry.DeviceInfo,
		UserID:     int64(entry.UserID),
		Action:     entry.Action,
		IPAddress:  entry.IPAddress,
		Timestamp:  entry.Timestamp,
	}
	if err := l.db.WithContext(ctx).Create(model).Error; err != nil {
		tracing.RecordError(ctx, err)
		return err
	}
	return nil
}

func (l *GormActivityLog) RecordLoginAttempt(ctx context.Context, attempt *domain.LoginAttempt) error {
	ctx, span := tracing.TraceDatabaseOperation(ctx, "insert", "login_attempts")
	defer span.End()

	model := &LoginAttemptModel{
		Username:     attempt.Username,
		IPAddress:    attempt.IPAddress,
		UserAgent:    attempt.UserAgent,
		Success:      attempt.Success,
		ErrorMessage: attempt.ErrorMessage,
		Timestamp:    attempt.Timestamp,
	}
	if err := l.db.WithContext(ctx).Create(model).Error; err != nil {
		tracing.RecordError(ctx, err)
		return err
	}
	return nil
}
