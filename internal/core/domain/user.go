package domain

import "time"

// User is an account row from the credential store. PasswordHash is a
// bcrypt hash and never leaves the auth path.
type User struct {
	ID           UserID
	Username     string
	PasswordHash string
	Email        string
	FullName     string
	Role         Role
	IsActive     bool
	CreatedAt    time.Time
	LastLogin    *time.Time
}

// ActivityEntry is a camera/viewer lifecycle line recorded to the
// activity log. Writes are fire-and-forget off the signaling path.
type ActivityEntry struct {
	RoomID     RoomID
	CameraName string
	DeviceInfo string
	UserID     UserID
	Action     string
	IPAddress  string
	Timestamp  time.Time
}

const (
	ActivityCameraConnected    = "camera-connected"
	ActivityCameraDisconnected = "camera-disconnected"
	ActivityViewerJoined       = "viewer-joined"
	ActivityViewerLeft         = "viewer-left"
)

// Session is an audit record of an issued credential. Authentication
// itself is stateless (JWT); session rows exist so an operator can see
// who logged in from where and revoke is_active out of band.
type Session struct {
	SessionID string
	UserID    UserID
	IPAddress string
	UserAgent string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// LoginAttempt records an authentication try for throttling and audit.
type LoginAttempt struct {
	Username     string
	IPAddress    string
	UserAgent    string
	Success      bool
	ErrorMessage string
	Timestamp    time.Time
}
