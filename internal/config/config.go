package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/jrsteele09/go-session-auth/password"
)

type Config interface {
	EnvConfig
	CorsConfig
	SecurityConfig
	DatabaseConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetStore() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type SecurityConfig interface {
	GetJWTSecret() []byte
	IsDefaultJWTSecret() bool
	GetAccessTokenTTL() time.Duration
	GetArgon2Params() password.Params
	GetCookieSecure() *bool
}

type DatabaseConfig interface {
	GetDatabaseURL() string
	GetDatabaseMaxConns() int32
}

type mainConfig struct {
	EnvVars
	Cors
	Security
	Database
}

func New() Config {
	return mainConfig{}
}

// LoadEnvFile loads variables from the given dotenv files, or from .env when
// none are named. Variables already present in the environment win. Missing
// files are ignored.
func LoadEnvFile(filenames ...string) {
	if len(filenames) == 0 {
		filenames = []string{".env"}
	}
	for _, f := range filenames {
		_ = godotenv.Load(f)
	}
}
