package services

import (
	"testing"

	"camsignal/internal/core/domain"

	"github.com/stretchr/testify/assert"
)

func record(owner domain.UserID) *domain.CameraRecord {
	return &domain.CameraRecord{
		RoomID:       "room-1",
		OwnerUserID:  owner,
		ConnectionID: "conn-1",
	}
}

func TestCanViewCamera(t *testing.T) {
	owner := domain.Identity{UserID: 7, Role: domain.RoleUser, Authenticated: true}
	stranger := domain.Identity{UserID: 8, Role: domain.RoleUser, Authenticated: true}
	admin := domain.Identity{UserID: 9, Role: domain.RoleAdmin, Authenticated: true}
	anonymous := domain.Identity{}

	assert.True(t, CanViewCamera(owner, record(7)))
	assert.False(t, CanViewCamera(stranger, record(7)))
	assert.True(t, CanViewCamera(admin, record(7)))
	assert.False(t, CanViewCamera(anonymous, record(7)))
	assert.False(t, CanViewCamera(owner, nil))
}

func TestCanOperateAsCamera_FreeRoom(t *testing.T) {
	user := domain.Identity{UserID: 7, Role: domain.RoleUser, Authenticated: true}

	assert.True(t, CanOperateAsCamera(user, nil))
	assert.False(t, CanOperateAsCamera(domain.Identity{}, nil))
}

func TestCanOperateAsCamera_LiveRoom(t *testing.T) {
	owner := domain.Identity{UserID: 7, Role: domain.RoleUser, Authenticated: true}
	stranger := domain.Identity{UserID: 8, Role: domain.RoleUser, Authenticated: true}
	admin := domain.Identity{UserID: 9, Role: domain.RoleAdmin, Authenticated: true}

	// The owner may reclaim its own room, an admin may take any room,
	// everyone else is rejected rather than silently displacing the
	// live camera.
	assert.True(t, CanOperateAsCamera(owner, record(7)))
	assert.False(t, CanOperateAsCamera(stranger, record(7)))
	assert.True(t, CanOperateAsCamera(admin, record(7)))
}
