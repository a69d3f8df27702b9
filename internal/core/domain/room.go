package domain

// PeerRole is the role a connection plays inside a room.
type PeerRole string

const (
	PeerRoleCamera PeerRole = "camera"
	PeerRoleViewer PeerRole = "viewer"
)

// Room pairs at most one camera publisher with zero-or-more viewer
// subscribers. Rooms are created lazily on first join and deleted once
// both the camera slot and the viewer set are empty.
type Room struct {
	ID      RoomID
	Camera  ConnectionID // empty when no camera is attached
	Viewers map[ConnectionID]struct{}
}

func (r *Room) HasCamera() bool {
	return r.Camera != ""
}

func (r *Room) Empty() bool {
	return r.Camera == "" && len(r.Viewers) == 0
}

// ViewerIDs snapshots the viewer set.
func (r *Room) ViewerIDs() []ConnectionID {
	ids := make([]ConnectionID, 0, len(r.Viewers))
	for id := range r.Viewers {
		ids = append(ids, id)
	}
	return ids
}
