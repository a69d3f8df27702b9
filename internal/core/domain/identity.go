package domain

type UserID int64

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Identity is the authenticated principal derived from a verified token.
// It is cached on the connection for its lifetime and never persisted.
type Identity struct {
	UserID        UserID
	Username      string
	Role          Role
	Authenticated bool
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}
