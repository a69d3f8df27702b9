package memory

import (
	"testing"

	"camsignal/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomRegistry_CameraLifecycle(t *testing.T) {
	r := NewMemoryRoomRegistry()

	room := r.JoinAsCamera("room-a", "cam-1")
	assert.Equal(t, domain.ConnectionID("cam-1"), room.Camera)
	assert.Equal(t, 1, r.Count())

	r.Leave("room-a", "cam-1", true)
	_, exists := r.Get("room-a")
	assert.False(t, exists)
	assert.Equal(t, 0, r.Count())
}

func TestRoomRegistry_ViewerNeedsCamera(t *testing.T) {
	r := NewMemoryRoomRegistry()

	_, err := r.JoinAsViewer("room-a", "view-1")
	assert.ErrorIs(t, err, domain.ErrNoSuchCamera)

	r.JoinAsCamera("room-a", "cam-1")
	room, err := r.JoinAsViewer("room-a", "view-1")
	require.NoError(t, err)
	assert.Contains(t, room.Viewers, domain.ConnectionID("view-1"))
}

func TestRoomRegistry_CameraDisplacement(t *testing.T) {
	r := NewMemoryRoomRegistry()

	r.JoinAsCamera("room-a", "cam-1")
	room := r.JoinAsCamera("room-a", "cam-2")
	assert.Equal(t, domain.ConnectionID("cam-2"), room.Camera)

	// The displaced camera's leave must not clear the new occupant.
	r.Leave("room-a", "cam-1", true)
	got, exists := r.Get("room-a")
	require.True(t, exists)
	assert.Equal(t, domain.ConnectionID("cam-2"), got.Camera)
}

func TestRoomRegistry_RoomSurvivesWhileOccupied(t *testing.T) {
	r := NewMemoryRoomRegistry()

	r.JoinAsCamera("room-a", "cam-1")
	_, err := r.JoinAsViewer("room-a", "view-1")
	require.NoError(t, err)

	// Camera leaves but a viewer remains; the room stays.
	r.Leave("room-a", "cam-1", true)
	room, exists := r.Get("room-a")
	require.True(t, exists)
	assert.False(t, room.HasCamera())
	assert.Contains(t, room.Viewers, domain.ConnectionID("view-1"))

	// Last viewer leaves; the room is deleted.
	r.Leave("room-a", "view-1", false)
	_, exists = r.Get("room-a")
	assert.False(t, exists)
}

func TestRoomRegistry_LeaveUnknownRoomIsNoOp(t *testing.T) {
	r := NewMemoryRoomRegistry()
	r.Leave("room-missing", "cam-1", true)
	assert.Equal(t, 0, r.Count())
}

func TestRoomRegistry_GetReturnsSnapshot(t *testing.T) {
	r := NewMemoryRoomRegistry()
	r.JoinAsCamera("room-a", "cam-1")

	room, _ := r.Get("room-a")
	room.Camera = "tampered"
	room.Viewers["view-x"] = struct{}{}

	again, _ := r.Get("room-a")
	assert.Equal(t, domain.ConnectionID("cam-1"), again.Camera)
	assert.Empty(t, again.Viewers)
}
