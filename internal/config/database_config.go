package config

import (
	"fmt"
	"net"
	"net/url"
)

const (
	databaseURLEnvVar      = "DATABASE_URL"
	databaseUserEnvVar     = "DATABASE_USER"
	databasePasswordEnvVar = "DATABASE_PASSWORD"
	databaseHostEnvVar     = "DATABASE_HOST"
	databasePortEnvVar     = "DATABASE_PORT"
	databaseNameEnvVar     = "DATABASE_NAME"
	databaseMaxConnsEnvVar = "DATABASE_MAX_CONNS"
)

type Database struct{}

var _ DatabaseConfig = Database{}

// GetDatabaseURL returns DATABASE_URL, or a postgres URL assembled from the
// individual DATABASE_* variables.
func (Database) GetDatabaseURL() string {
	if dsn := GetEnv(databaseURLEnvVar, ""); dsn != "" {
		return dsn
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(GetEnv(databaseUserEnvVar, "admin"), GetEnv(databasePasswordEnvVar, "admin")),
		Host:   net.JoinHostPort(GetEnv(databaseHostEnvVar, "localhost"), GetEnv(databasePortEnvVar, "5432")),
		Path:   fmt.Sprintf("/%s", GetEnv(databaseNameEnvVar, "db")),
	}
	return u.String()
}

func (Database) GetDatabaseMaxConns() int32 {
	return int32(getEnvAsUint(databaseMaxConnsEnvVar, 10, 31))
}
