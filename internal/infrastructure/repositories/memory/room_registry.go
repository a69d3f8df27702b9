package memory

import (
	"sync"

	"camsignal/internal/core/domain"
	"camsignal/internal/core/ports"
)

// MemoryRoomRegistry tracks room occupancy in process memory. Compound
// read-then-write sequences across registry and directory are serialized
// by the presence coordinator; the internal mutex only protects the map
// itself for concurrent snapshot reads.
type MemoryRoomRegistry struct {
	rooms map[domain.RoomID]*domain.Room
	mu    sync.RWMutex
}

func NewMemoryRoomRegistry() ports.RoomRegistry {
	return &MemoryRoomRegistry{
		rooms: make(map[domain.RoomID]*domain.Room),
	}
}

// JoinAsCamera sets the room's camera slot, creating the room if absent.
// A prior camera occupant is displaced; takeover authorization happens
// before this is called.
func (r *MemoryRoomRegistry) JoinAsCamera(roomID domain.RoomID, connID domain.ConnectionID) *domain.Room {
	r.mu.Lock()
	defer r.mu.Unlock()

	room := r.getOrCreate(roomID)
	room.Camera = connID
	return r.snapshot(room)
}

// JoinAsViewer adds connID to the room's viewer set. The room must
// already host a camera; ownership checks happen before this is called.
func (r *MemoryRoomRegistry) JoinAsViewer(roomID domain.RoomID, connID domain.ConnectionID) (*domain.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, exists := r.rooms[roomID]
	if !exists || !room.HasCamera() {
		return nil, domain.ErrNoSuchCamera
	}

	room.Viewers[connID] = struct{}{}
	return r.snapshot(room), nil
}

// Leave removes connID from the camera slot or viewer set and deletes
// the room once it holds neither. Leaving an unknown room is a no-op.
func (r *MemoryRoomRegistry) Leave(roomID domain.RoomID, connID domain.ConnectionID, wasCamera bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, exists := r.rooms[roomID]
	if !exists {
		return
	}

	if wasCamera {
		if room.Camera == connID {
			room.Camera = ""
		}
	} else {
		delete(room.Viewers, connID)
	}

	if room.Empty() {
		delete(r.rooms, roomID)
	}
}

func (r *MemoryRoomRegistry) Get(roomID domain.RoomID) (*domain.Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, exists := r.rooms[roomID]
	if !exists {
		return nil, false
	}
	return r.snapshot(room), true
}

func (r *MemoryRoomRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.rooms)
}

func (r *MemoryRoomRegistry) getOrCreate(roomID domain.RoomID) *domain.Room {
	room, exists := r.rooms[roomID]
	if !exists {
		room = &domain.Room{
			ID:      roomID,
			Viewers: make(map[domain.ConnectionID]struct{}),
		}
		r.rooms[roomID] = room
	}
	return room
}

// snapshot copies a room so callers never hold references into the map.
func (r *MemoryRoomRegistry) snapshot(room *domain.Room) *domain.Room {
	copied := &domain.Room{
		ID:      room.ID,
		Camera:  room.Camera,
		Viewers: make(map[domain.ConnectionID]struct{}, len(room.Viewers)),
	}
	for id := range room.Viewers {
		copied.Viewers[id] = struct{}{}
	}
	return copied
}
