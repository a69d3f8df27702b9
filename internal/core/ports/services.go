package ports

import "camsignal/internal/core/domain"

// Notifier delivers server-originated messages to live connections. The
// WebSocket transport implements it; the core never holds socket
// handles directly.
type Notifier interface {
	Send(connID domain.ConnectionID, message any) error
	// ForEachConnection snapshots the live connection set and invokes fn
	// for each entry. Connections added mid-iteration may be skipped;
	// they receive the next broadcast.
	ForEachConnection(fn func(connID domain.ConnectionID, identity domain.Identity))
}

// JoinRequest is a connection's request to enter a room.
type JoinRequest struct {
	RoomID     domain.RoomID
	Role       domain.PeerRole
	CameraName string
	DeviceInfo string
	RemoteAddr string
}

// PresenceService orchestrates join/leave side effects across the room
// registry and camera directory.
type PresenceService interface {
	Join(connID domain.ConnectionID, identity domain.Identity, req JoinRequest) error
	Disconnect(connID domain.ConnectionID, identity domain.Identity, roomID domain.RoomID, role domain.PeerRole)
	VisibleCameras(identity domain.Identity) []*domain.CameraRecord
	RoomCamera(roomID domain.RoomID) (domain.ConnectionID, bool)
	CameraRecord(roomID domain.RoomID) (*domain.CameraRecord, bool)
	RoomViewers(roomID domain.RoomID) []domain.ConnectionID
	RoomCount() int
}
