package users

import (
	"time"

	"github.com/google/uuid"
)

// User is a registered account. Email is unique across the store and is
// compared exactly as stored.
type User struct {
	ID           uuid.UUID `json:"id"`         // Immutable, generated at creation
	Name         string    `json:"name"`       // Display name
	Email        string    `json:"email"`      // Unique login identifier
	PasswordHash string    `json:"-"`          // Encoded argon2id hash - never serialize
	CreatedAt    time.Time `json:"created_at"` // UTC, set once at creation
}

// Public returns a copy of the user with the password hash stripped.
func (u *User) Public() *User {
	if u == nil {
		return nil
	}
	public := *u
	public.PasswordHash = ""
	return &public
}
