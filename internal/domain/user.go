package domain

import "time"

// User represents an authenticated user in the system.
type User struct {
	ID           string    `json:"id"         db:"id"`
	Email        string    `json:"email"      db:"email"`
	PasswordHash string    `json:"-"          db:"password_hash"` // never serialized to JSON
	FirstName    string    `json:"first_name" db:"first_name"`
	LastName     string    `json:"last_name"  db:"last_name"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Session is a server-side login session; the browser cookie carries only Token.
type Session struct {
	Token     string    `json:"-"          db:"token"`
	UserID    string    `json:"user_id"    db:"user_id"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Expired reports whether the session is past its expiry time.
func (s *Session) Expired() bool {
	return time.Now().After(s.ExpiresAt)
}

// UserContext is the authenticated user context injected into request handlers.
type UserContext struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}
