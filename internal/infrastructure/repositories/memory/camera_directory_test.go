package memory

import (
	"testing"
	"time"

	"camsignal/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRecord(roomID domain.RoomID, owner domain.UserID, connectedAt time.Time) *domain.CameraRecord {
	return &domain.CameraRecord{
		RoomID:       roomID,
		OwnerUserID:  owner,
		ConnectedAt:  connectedAt,
		Status:       domain.CameraStatusActive,
		ConnectionID: domain.ConnectionID("conn-" + string(roomID)),
	}
}

func TestCameraDirectory_RegisterReplaces(t *testing.T) {
	d := NewMemoryCameraDirectory()

	first := newRecord("room-a", 1, time.Now())
	d.Register(first)

	second := newRecord("room-a", 1, time.Now())
	second.ConnectionID = "conn-x"
	d.Register(second)

	got, exists := d.Get("room-a")
	require.True(t, exists)
	assert.Equal(t, domain.ConnectionID("conn-x"), got.ConnectionID)
}

func TestCameraDirectory_UnregisterAbsentIsNoOp(t *testing.T) {
	d := NewMemoryCameraDirectory()
	d.Unregister("room-missing")

	_, exists := d.Get("room-missing")
	assert.False(t, exists)
}

func TestCameraDirectory_GetReturnsCopy(t *testing.T) {
	d := NewMemoryCameraDirectory()
	d.Register(newRecord("room-a", 1, time.Now()))

	got, _ := d.Get("room-a")
	got.OwnerUserID = 99

	again, _ := d.Get("room-a")
	assert.Equal(t, domain.UserID(1), again.OwnerUserID)
}

func TestCameraDirectory_ListVisibleTo(t *testing.T) {
	d := NewMemoryCameraDirectory()
	base := time.Now()
	d.Register(newRecord("room-a", 1, base.Add(2*time.Second)))
	d.Register(newRecord("room-b", 2, base.Add(time.Second)))
	d.Register(newRecord("room-c", 1, base))

	owner := domain.Identity{UserID: 1, Role: domain.RoleUser, Authenticated: true}
	visible := d.ListVisibleTo(owner)
	require.Len(t, visible, 2)
	// Sorted by connection time.
	assert.Equal(t, domain.RoomID("room-c"), visible[0].RoomID)
	assert.Equal(t, domain.RoomID("room-a"), visible[1].RoomID)

	admin := domain.Identity{UserID: 9, Role: domain.RoleAdmin, Authenticated: true}
	assert.Len(t, d.ListVisibleTo(admin), 3)

	stranger := domain.Identity{UserID: 5, Role: domain.RoleUser, Authenticated: true}
	assert.Empty(t, d.ListVisibleTo(stranger))
}
