package config

import (
	"os"
	"strconv"
	"time"

	"github.com/jrsteele09/go-session-auth/internal/utils"
	"github.com/jrsteele09/go-session-auth/password"
	"github.com/jrsteele09/go-session-auth/token"
)

const (
	jwtSecretEnvVar      = "JWT_SECRET"
	accessTokenTTLEnvVar = "ACCESS_TOKEN_TTL"
	argon2TimeEnvVar     = "ARGON2_TIME"
	argon2MemoryEnvVar   = "ARGON2_MEMORY_KIB"
	argon2ThreadsEnvVar  = "ARGON2_THREADS"
	cookieSecureEnvVar   = "COOKIE_SECURE"

	defaultJWTSecret = "secret"
)

type Security struct{}

var _ SecurityConfig = Security{}

func (Security) GetJWTSecret() []byte {
	return []byte(GetEnv(jwtSecretEnvVar, defaultJWTSecret))
}

// IsDefaultJWTSecret reports whether JWT_SECRET is unset.
func (Security) IsDefaultJWTSecret() bool {
	return os.Getenv(jwtSecretEnvVar) == ""
}

func (Security) GetAccessTokenTTL() time.Duration {
	return getEnvAsDuration(accessTokenTTLEnvVar, token.DefaultTTL)
}

func (Security) GetArgon2Params() password.Params {
	p := password.DefaultParams
	p.Time = uint32(getEnvAsUint(argon2TimeEnvVar, uint64(p.Time), 32))
	p.MemoryKiB = uint32(getEnvAsUint(argon2MemoryEnvVar, uint64(p.MemoryKiB), 32))
	p.Threads = uint8(getEnvAsUint(argon2ThreadsEnvVar, uint64(p.Threads), 8))
	return p
}

// GetCookieSecure returns the forced Secure attribute for the session cookie,
// or nil to follow the request scheme.
func (Security) GetCookieSecure() *bool {
	secure, err := strconv.ParseBool(os.Getenv(cookieSecureEnvVar))
	if err != nil {
		return nil
	}
	return utils.Ptr(secure)
}
