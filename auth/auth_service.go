package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	autherrors "github.com/jrsteele09/go-session-auth/internal/errors"
	"github.com/jrsteele09/go-session-auth/internal/metrics"
	"github.com/jrsteele09/go-session-auth/password"
	"github.com/jrsteele09/go-session-auth/token"
	"github.com/jrsteele09/go-session-auth/users"
	"github.com/rs/zerolog/log"
)

// SessionSetter receives a freshly issued session token. The transport uses it
// to write the session cookie.
type SessionSetter func(t token.Token)

// SessionClearer removes the caller's session. The transport uses it to expire
// the session cookie.
type SessionClearer func()

// dummyPassword is hashed once at construction. Logins for unknown emails
// verify against it so they cost the same as a wrong password.
const dummyPassword = "session-auth-timing-equaliser"

// AuthService registers users, logs them in and resolves the user behind a
// session token. It holds no per-request state and is safe for concurrent use.
type AuthService struct {
	users     users.UserRepo
	hasher    *password.Hasher
	codec     *token.Codec
	metrics   metrics.Recorder
	nowTime   func() time.Time // nowTime function (injectable for testing)
	dummyHash string
}

// AuthServiceOption defines a function type to modify the AuthService instance.
type AuthServiceOption func(*AuthService)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) AuthServiceOption {
	return func(as *AuthService) {
		as.nowTime = nowFunc
	}
}

// WithMetrics records the outcome of every operation on r.
func WithMetrics(r metrics.Recorder) AuthServiceOption {
	return func(as *AuthService) {
		as.metrics = r
	}
}

// NewAuthService initializes a new AuthService with required dependencies.
// Optional configuration can be provided via options (e.g., WithNowTime for testing).
func NewAuthService(
	userRepo users.UserRepo,
	hasher *password.Hasher,
	codec *token.Codec,
	options ...AuthServiceOption,
) (*AuthService, error) {
	if userRepo == nil {
		return nil, errors.New("[NewAuthService] Users repo is required")
	}
	if hasher == nil {
		return nil, errors.New("[NewAuthService] hasher is required")
	}
	if codec == nil {
		return nil, errors.New("[NewAuthService] token codec is required")
	}

	dummyHash, err := hasher.Hash(dummyPassword)
	if err != nil {
		return nil, fmt.Errorf("[NewAuthService] %w", err)
	}

	authService := &AuthService{
		users:     userRepo,
		hasher:    hasher,
		codec:     codec,
		metrics:   metrics.Nop(),
		nowTime:   time.Now,
		dummyHash: dummyHash,
	}

	for _, opt := range options {
		opt(authService)
	}

	return authService, nil
}

// Register creates a user, starts a session for it through setSession and
// returns the new user's id. A duplicate email yields ErrAlreadyExists, whether
// it is caught by the lookup or by the store's uniqueness constraint.
func (as *AuthService) Register(ctx context.Context, name, email, plaintext string, setSession SessionSetter) (id uuid.UUID, err error) {
	defer as.observe(metrics.OpRegister, time.Now(), &err)

	_, err = as.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return uuid.Nil, fmt.Errorf("[Register] %w", autherrors.ErrAlreadyExists)
	case !errors.Is(err, users.ErrNotFound):
		return uuid.Nil, fmt.Errorf("[Register] failed to look up email: %w", err)
	}

	hash, err := as.hasher.Hash(plaintext)
	if err != nil {
		return uuid.Nil, fmt.Errorf("[Register] %w", err)
	}

	user, err := as.users.Insert(ctx, name, email, hash)
	if err != nil {
		if errors.Is(err, users.ErrConflict) {
			return uuid.Nil, fmt.Errorf("[Register] %w", autherrors.ErrAlreadyExists)
		}
		return uuid.Nil, fmt.Errorf("[Register] failed to store user: %w", err)
	}

	if err = as.startSession(user.ID, setSession); err != nil {
		return uuid.Nil, fmt.Errorf("[Register] %w", err)
	}
	return user.ID, nil
}

// Login checks the credentials and starts a session through setSession. An
// unknown email and a wrong password both yield ErrInvalidCredentials.
func (as *AuthService) Login(ctx context.Context, email, plaintext string, setSession SessionSetter) (user *users.User, err error) {
	defer as.observe(metrics.OpLogin, time.Now(), &err)

	user, err = as.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			as.hasher.Verify(plaintext, as.dummyHash)
			return nil, fmt.Errorf("[Login] %w", autherrors.ErrInvalidCredentials)
		}
		return nil, fmt.Errorf("[Login] failed to look up email: %w", err)
	}

	if !as.hasher.Verify(plaintext, user.PasswordHash) {
		return nil, fmt.Errorf("[Login] %w", autherrors.ErrInvalidCredentials)
	}

	if as.hasher.NeedsRehash(user.PasswordHash) {
		as.rehash(ctx, user, plaintext)
	}

	if err = as.startSession(user.ID, setSession); err != nil {
		return nil, fmt.Errorf("[Login] %w", err)
	}
	return user.Public(), nil
}

// ResolveCurrentUser returns the user a session token belongs to. An absent
// token yields ErrNotAuthenticated, a bad one ErrInvalidToken, a stale one
// ErrExpiredToken and a token for a deleted account ErrUserNotFound.
func (as *AuthService) ResolveCurrentUser(ctx context.Context, rawToken string) (user *users.User, err error) {
	defer as.observe(metrics.OpResolve, time.Now(), &err)

	if rawToken == "" {
		return nil, fmt.Errorf("[ResolveCurrentUser] %w", autherrors.ErrNotAuthenticated)
	}

	subject, err := as.codec.Validate(rawToken, as.nowTime())
	if err != nil {
		return nil, fmt.Errorf("[ResolveCurrentUser] %w", err)
	}

	id, err := uuid.Parse(subject)
	if err != nil {
		return nil, fmt.Errorf("[ResolveCurrentUser] subject is not a user id: %w", autherrors.ErrInvalidToken)
	}

	user, err = as.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return nil, fmt.Errorf("[ResolveCurrentUser] %w", autherrors.ErrUserNotFound)
		}
		return nil, fmt.Errorf("[ResolveCurrentUser] failed to look up user: %w", err)
	}
	return user.Public(), nil
}

// Logout clears the caller's session. It needs no prior session and always
// succeeds; issued tokens stay valid until they expire.
func (as *AuthService) Logout(clearSession SessionClearer) {
	var err error
	defer as.observe(metrics.OpLogout, time.Now(), &err)

	if clearSession != nil {
		clearSession()
	}
}

func (as *AuthService) startSession(id uuid.UUID, setSession SessionSetter) error {
	tok, err := as.codec.Issue(id.String(), as.nowTime())
	if err != nil {
		return err
	}
	if setSession != nil {
		setSession(tok)
	}
	return nil
}

// rehash upgrades a stored hash to the hasher's current costs. Failure only
// costs the upgrade, never the login.
func (as *AuthService) rehash(ctx context.Context, user *users.User, plaintext string) {
	hash, err := as.hasher.Hash(plaintext)
	if err != nil {
		log.Warn().Err(err).Str("user_id", user.ID.String()).Msg("failed to rehash password")
		return
	}
	if err := as.users.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		log.Warn().Err(err).Str("user_id", user.ID.String()).Msg("failed to store rehashed password")
		return
	}
	user.PasswordHash = hash
}

func (as *AuthService) observe(operation string, start time.Time, err *error) {
	as.metrics.Observe(operation, *err, time.Since(start))
}
