package session

import "time"

// Session is one operator login. Token is opaque; ExpiresAt is the
// informational absolute lifetime, independent of the role-scoped
// inactivity countdown the Manager runs.
type Session struct {
	ID        string
	UserID    int64
	Token     string
	CreatedAt time.Time
	ExpiresAt time.Time
	Active    bool
}
