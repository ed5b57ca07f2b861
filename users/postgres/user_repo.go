package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	autherrors "github.com/jrsteele09/go-session-auth/internal/errors"
	"github.com/jrsteele09/go-session-auth/users"
)

// Pool is the subset of *pgxpool.Pool the repository uses.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ users.UserRepo = (*UserRepo)(nil)

// UserRepo stores users in the users table.
type UserRepo struct {
	pool    Pool
	nowTime func() time.Time
}

// NewUserRepo creates a UserRepo on pool.
func NewUserRepo(pool Pool) *UserRepo {
	return &UserRepo{pool: pool, nowTime: time.Now}
}

const selectUser = `SELECT id, name, email, hashed_password, created_at FROM users`

// Insert creates a user. The unique constraint on email makes the check and
// the write one atomic step.
func (r *UserRepo) Insert(ctx context.Context, name, email, passwordHash string) (*users.User, error) {
	user := &users.User{
		ID:           uuid.New(),
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    r.nowTime().UTC(),
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (id, name, email, hashed_password, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		user.ID, user.Name, user.Email, user.PasswordHash, user.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, fmt.Errorf("[Insert] email already registered: %w", users.ErrConflict)
		}
		return nil, autherrors.Wrapf(err, "[Insert] failed to insert user")
	}
	return user, nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	user, err := r.scanUser(r.pool.QueryRow(ctx, selectUser+` WHERE email = $1`, email))
	if err != nil {
		return nil, fmt.Errorf("[GetByEmail] %w", err)
	}
	return user, nil
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*users.User, error) {
	user, err := r.scanUser(r.pool.QueryRow(ctx, selectUser+` WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("[GetByID] %w", err)
	}
	return user, nil
}

func (r *UserRepo) UpdatePasswordHash(ctx context.Context, id uuid.UUID, passwordHash string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET hashed_password = $1 WHERE id = $2`, passwordHash, id)
	if err != nil {
		return autherrors.Wrapf(err, "[UpdatePasswordHash] failed to update user %s", id)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("[UpdatePasswordHash] user %s: %w", id, users.ErrNotFound)
	}
	return nil
}

func (r *UserRepo) scanUser(row pgx.Row) (*users.User, error) {
	var u users.User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, users.ErrNotFound
		}
		return nil, autherrors.Wrapf(err, "failed to read user")
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}
