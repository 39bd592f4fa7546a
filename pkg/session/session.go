// Package session carries the authenticated caller through every operation
// explicitly, instead of reading process-wide state.
package session

import "strings"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type Session struct {
	UserID      int64
	Role        string
	AccessToken string
}

func New(userID int64, role, accessToken string) Session {
	role = strings.ToLower(strings.TrimSpace(role))
	if role == "" {
		role = RoleUser
	}
	return Session{UserID: userID, Role: role, AccessToken: accessToken}
}

func (s Session) IsAdmin() bool {
	return s.Role == RoleAdmin
}

func (s Session) Valid() bool {
	return s.UserID > 0
}

// CanAccess reports whether the session may act on a record owned by ownerID.
func (s Session) CanAccess(ownerID int64) bool {
	return s.IsAdmin() || (s.Valid() && s.UserID == ownerID)
}
