package domain

import "time"

// Session records an issued session for a SessionUser.
type Session struct {
	ID        string
	User      SessionUser
	IssuedAt  time.Time
	ExpiresAt time.Time
}
