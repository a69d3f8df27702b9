package services

import "camsignal/internal/core/domain"

// Ownership rules for camera rooms. Pure functions over their inputs;
// the presence coordinator and the relay both decide through these so
// the two paths cannot drift.

// CanViewCamera reports whether identity may subscribe to the camera
// behind record. Admins see everything; everyone else only their own.
func CanViewCamera(identity domain.Identity, record *domain.CameraRecord) bool {
	if !identity.Authenticated || record == nil {
		return false
	}
	if identity.IsAdmin() {
		return true
	}
	return identity.UserID == record.OwnerUserID
}

// CanOperateAsCamera reports whether identity may publish under the room
// currently described by record. A nil record means the room is free to
// claim. A live record owned by someone else may only be taken over by
// its owner or an admin; any other claim must be rejected, not silently
// honored.
func CanOperateAsCamera(identity domain.Identity, record *domain.CameraRecord) bool {
	if !identity.Authenticated {
		return false
	}
	if record == nil {
		return true
	}
	if identity.IsAdmin() {
		return true
	}
	return identity.UserID == record.OwnerUserID
}
