package fakeuserrepo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-session-auth/users"
)

var _ users.UserRepo = (*FakeUserRepo)(nil)

// FakeUserRepo is an in-memory users.UserRepo. The uniqueness check and the
// insert happen under one lock, so concurrent registrations of one email
// see exactly one success.
type FakeUserRepo struct {
	users    map[uuid.UUID]*users.User
	emailIds map[string]uuid.UUID // email to user id
	lock     sync.RWMutex
	nowTime  func() time.Time
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		users:    make(map[uuid.UUID]*users.User),
		emailIds: make(map[string]uuid.UUID),
		nowTime:  time.Now,
	}
}

func (ur *FakeUserRepo) Insert(_ context.Context, name, email, passwordHash string) (*users.User, error) {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if _, ok := ur.emailIds[email]; ok {
		return nil, fmt.Errorf("[Insert] email already registered: %w", users.ErrConflict)
	}

	user := &users.User{
		ID:           uuid.New(),
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    ur.nowTime().UTC(),
	}
	ur.users[user.ID] = user
	ur.emailIds[email] = user.ID

	copied := *user
	return &copied, nil
}

func (ur *FakeUserRepo) GetByEmail(_ context.Context, email string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	id, ok := ur.emailIds[email]
	if !ok {
		return nil, users.ErrNotFound
	}
	copied := *ur.users[id]
	return &copied, nil
}

func (ur *FakeUserRepo) GetByID(_ context.Context, id uuid.UUID) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	user, ok := ur.users[id]
	if !ok {
		return nil, users.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (ur *FakeUserRepo) UpdatePasswordHash(_ context.Context, id uuid.UUID, passwordHash string) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	user, ok := ur.users[id]
	if !ok {
		return users.ErrNotFound
	}
	user.PasswordHash = passwordHash
	return nil
}

// Delete removes a user by id. Tests use it to simulate an account that
// disappears while a session token is still live.
func (ur *FakeUserRepo) Delete(id uuid.UUID) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	user, ok := ur.users[id]
	if !ok {
		return users.ErrNotFound
	}
	delete(ur.emailIds, user.Email)
	delete(ur.users, id)
	return nil
}

// Count returns the number of stored users.
func (ur *FakeUserRepo) Count() int {
	ur.lock.RLock()
	defer ur.lock.RUnlock()
	return len(ur.users)
}
