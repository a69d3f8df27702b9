package domain

import "time"

type RoomID string
type ConnectionID string

type CameraStatus string

const (
	CameraStatusActive CameraStatus = "active"
)

// CameraRecord describes a currently-live camera publisher. One record
// per room; replaced when the owning camera rejoins, removed when it
// disconnects.
type CameraRecord struct {
	RoomID        RoomID       `json:"roomId"`
	OwnerUserID   UserID       `json:"userId"`
	OwnerUsername string       `json:"username"`
	DisplayName   string       `json:"name"`
	DeviceInfo    string       `json:"deviceInfo"`
	ConnectedAt   time.Time    `json:"connectedAt"`
	Status        CameraStatus `json:"status"`
	ConnectionID  ConnectionID `json:"-"`
}
