package ports

import (
	"context"
	"time"

	"camsignal/internal/core/domain"
)

// CameraDirectory tracks live camera publishers. Purely in-memory;
// mutations happen only on the presence coordinator's critical path.
type CameraDirectory interface {
	Register(record *domain.CameraRecord)
	Unregister(roomID domain.RoomID)
	Get(roomID domain.RoomID) (*domain.CameraRecord, bool)
	ListVisibleTo(identity domain.Identity) []*domain.CameraRecord
}

// RoomRegistry tracks which connections occupy which rooms.
type RoomRegistry interface {
	JoinAsCamera(roomID domain.RoomID, connID domain.ConnectionID) *domain.Room
	JoinAsViewer(roomID domain.RoomID, connID domain.ConnectionID) (*domain.Room, error)
	Leave(roomID domain.RoomID, connID domain.ConnectionID, wasCamera bool)
	Get(roomID domain.RoomID) (*domain.Room, bool)
	Count() int
}

// UserRepository is the narrow slice of the credential store the core
// consumes.
type UserRepository interface {
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByID(ctx context.Context, id domain.UserID) (*domain.User, error)
	Create(ctx context.Context, user *domain.User) error
	UpdateLastLogin(ctx context.Context, id domain.UserID) error
}

// ActivityLog persists camera lifecycle and login audit lines. Callers
// must treat writes as fire-and-forget.
type ActivityLog interface {
	RecordActivity(ctx context.Context, entry *domain.ActivityEntry) error
	RecordLoginAttempt(ctx context.Context, attempt *domain.LoginAttempt) error
}

// SessionStore persists login session audit rows. Writes are
// fire-and-forget; PruneExpired runs on a background schedule.
type SessionStore interface {
	Create(ctx context.Context, session *domain.Session) error
	PruneExpired(ctx context.Context, now time.Time) (int64, error)
}

// SettingsStore exposes persisted configuration values by key.
type SettingsStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// LoginThrottle counts recent failed logins per username/IP pair and
// answers whether a new attempt is allowed.
type LoginThrottle interface {
	Allow(ctx context.Context, username, ip string) (bool, error)
	RecordFailure(ctx context.Context, username, ip string) error
	Reset(ctx context.Context, username, ip string) error
	Window() time.Duration
}
