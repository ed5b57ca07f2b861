package users

import (
	"context"

	"github.com/google/uuid"
	autherrors "github.com/jrsteele09/go-session-auth/internal/errors"
)

var (
	// ErrNotFound is returned by lookups that match no user.
	ErrNotFound = autherrors.ErrNotFound
	// ErrConflict is returned by Insert when the email is already registered.
	ErrConflict = autherrors.ErrConflict
)

// UserRepo is the credential store. Implementations must enforce email
// uniqueness atomically within Insert.
type UserRepo interface {
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	Insert(ctx context.Context, name, email, passwordHash string) (*User, error)
	UpdatePasswordHash(ctx context.Context, id uuid.UUID, passwordHash string) error
}
