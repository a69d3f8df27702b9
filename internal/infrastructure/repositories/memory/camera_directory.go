package memory

import (
	"sort"
	"sync"

	"camsignal/internal/core/domain"
	"camsignal/internal/core/ports"
)

// MemoryCameraDirectory keeps the live camera index in process memory.
// State is deliberately ephemeral; a restart clears it.
type MemoryCameraDirectory struct {
	cameras map[domain.RoomID]*domain.CameraRecord
	mu      sync.RWMutex
}

func NewMemoryCameraDirectory() ports.CameraDirectory {
	return &MemoryCameraDirectory{
		cameras: make(map[domain.RoomID]*domain.CameraRecord),
	}
}

// Register inserts or replaces the record for its room ID.
func (d *MemoryCameraDirectory) Register(record *domain.CameraRecord) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.cameras[record.RoomID] = record
}

// Unregister removes the record for roomID. Removing an absent room is
// a no-op.
func (d *MemoryCameraDirectory) Unregister(roomID domain.RoomID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.cameras, roomID)
}

func (d *MemoryCameraDirectory) Get(roomID domain.RoomID) (*domain.CameraRecord, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	record, exists := d.cameras[roomID]
	if !exists {
		return nil, false
	}
	copied := *record
	return &copied, true
}

// ListVisibleTo returns the records identity is allowed to see, sorted
// by connection time. Admins see all records, other users only their
// own. The same filter backs both the REST listing and the real-time
// broadcasts.
func (d *MemoryCameraDirectory) ListVisibleTo(identity domain.Identity) []*domain.CameraRecord {
	d.mu.RLock()
	defer d.mu.RUnlock()

	visible := make([]*domain.CameraRecord, 0, len(d.cameras))
	for _, record := range d.cameras {
		if identity.IsAdmin() || record.OwnerUserID == identity.UserID {
			copied := *record
			visible = append(visible, &copied)
		}
	}

	sort.Slice(visible, func(i, j int) bool {
		return visible[i].ConnectedAt.Before(visible[j].ConnectedAt)
	})

	return visible
}
