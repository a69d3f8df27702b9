package sqlstore

import (
	"time"

	"camsignal/internal/core/domain"
)

type UserModel struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	Username     string `gorm:"uniqueIndex;not null;size:50"`
	PasswordHash string `gorm:"not null"`
	Email        string `gorm:"size:254"`
	FullName     string `gorm:"size:100"`
	Role         string `gorm:"not null;default:user;size:16"`
	IsActive     bool   `gorm:"not null;default:true"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastLogin    *time.Time
}

func (UserModel) TableName() string { return "users" }

func (m *UserModel) ToDomain() *domain.User {
	return &domain.User{
		ID:           domain.UserID(m.ID),
		Username:     m.Username,
		PasswordHash: m.PasswordHash,
		Email:        m.Email,
		FullName:     m.FullName,
		Role:         domain.Role(m.Role),
		IsActive:     m.IsActive,
		CreatedAt:    m.CreatedAt,
		LastLogin:    m.LastLogin,
	}
}

type SessionModel struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	SessionID string `gorm:"uniqueIndex;not null"`
	UserID    int64  `gorm:"index"`
	IPAddress string
	UserAgent string
	CreatedAt time.Time
	ExpiresAt time.Time
	IsActive  bool `gorm:"not null;default:true"`
}

func (SessionModel) TableName() string { return "sessions" }

type CameraLogModel struct {
	ID         int64  `gorm:"primaryKey;autoIncrement"`
	RoomID     string `gorm:"index;not null"`
	CameraName string
	DeviceInfo string
	UserID     int64  `gorm:"index"`
	Action     string `gorm:"not null"`
	IPAddress  string
	Timestamp  time.Time `gorm:"index"`
}

func (CameraLogModel) TableName() string { return "camera_logs" }

type LoginAttemptModel struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	Username     string `gorm:"index"`
	IPAddress    string `gorm:"index"`
	UserAgent    string
	Success      bool
	ErrorMessage string
	Timestamp    time.Time `gorm:"index"`
}

func (LoginAttemptModel) TableName() string { return "login_attempts" }

type SettingModel struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	Key         string `gorm:"uniqueIndex;not null"`
	Value       string
	Description string
	UpdatedAt   time.Time
}

func (SettingModel) TableName() string { return "settings" }
