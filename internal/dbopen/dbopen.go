// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package dbopen connects to the ingestion database described by the
// environment.
package dbopen

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cardinalhq/mediarunner/ingestdb"
	"github.com/cardinalhq/mediarunner/ingestdb/migrations"
)

// EnvPrefix names the ingestion database variables, e.g. INGESTDB_HOST.
const EnvPrefix = "INGESTDB"

var ErrDatabaseNotConfigured = errors.New("database connection configuration is unavailable")

// GetDatabaseURLFromEnv returns PREFIX_URL when set. Otherwise it builds a
// PostgreSQL URL from PREFIX_HOST, PREFIX_PORT, PREFIX_USER,
// PREFIX_PASSWORD, PREFIX_DBNAME and PREFIX_SSLMODE. HOST and DBNAME are
// required; PORT defaults to 5432.
func GetDatabaseURLFromEnv(prefix string) (string, error) {
	prefix = strings.TrimSuffix(prefix, "_") + "_"
	env := func(name string) string { return os.Getenv(prefix + name) }

	if urlStr := env("URL"); urlStr != "" {
		return urlStr, nil
	}

	host, dbname := env("HOST"), env("DBNAME")
	var missing []string
	if host == "" {
		missing = append(missing, prefix+"HOST")
	}
	if dbname == "" {
		missing = append(missing, prefix+"DBNAME")
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("missing required environment variable(s): %s", strings.Join(missing, ", "))
	}

	port := env("PORT")
	if port == "" {
		port = "5432"
	}

	u := &url.URL{Scheme: "postgresql", Host: host + ":" + port, Path: dbname}
	switch user, pass := env("USER"), env("PASSWORD"); {
	case user != "" && pass != "":
		u.User = url.UserPassword(user, pass)
	case user != "":
		u.User = url.User(user)
	}

	q := u.Query()
	if sslmode := env("SSLMODE"); sslmode != "" {
		q.Set("sslmode", sslmode)
	}
	if appName := applicationName(os.Getenv("OTEL_SERVICE_NAME")); appName != "" {
		q.Set("application_name", appName)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// applicationName maps a service name onto the characters and length
// Postgres accepts for application_name.
func applicationName(service string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, service)
	if len(name) > 63 {
		name = name[:63]
	}
	return name
}

type Options struct {
	MigrationCheckOptions []migrations.CheckOption
}

func SkipMigrationCheck() Options {
	return Options{MigrationCheckOptions: []migrations.CheckOption{migrations.WithCheckMode(migrations.CheckModeSkip)}}
}

func WarnOnMigrationMismatch() Options {
	return Options{MigrationCheckOptions: []migrations.CheckOption{migrations.WithCheckMode(migrations.CheckModeWarn)}}
}

func WaitForMigrations() Options {
	return Options{MigrationCheckOptions: []migrations.CheckOption{migrations.WithCheckMode(migrations.CheckModeWait)}}
}

// ConnectToIngestDB opens the pool and verifies the schema version.
func ConnectToIngestDB(ctx context.Context, opts ...Options) (*pgxpool.Pool, error) {
	connectionString, err := GetDatabaseURLFromEnv(EnvPrefix)
	if err != nil {
		return nil, errors.Join(ErrDatabaseNotConfigured, fmt.Errorf("failed to get %s connection string: %w", EnvPrefix, err))
	}

	pool, err := ingestdb.NewConnectionPool(ctx, connectionString)
	if err != nil {
		return nil, err
	}

	var checkOpts []migrations.CheckOption
	for _, o := range opts {
		checkOpts = append(checkOpts, o.MigrationCheckOptions...)
	}
	if err := migrations.CheckVersion(ctx, pool, checkOpts...); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s migration version check failed: %w", EnvPrefix, err)
	}
	return pool, nil
}

func IngestDBStore(ctx context.Context, opts ...Options) (*ingestdb.Store, error) {
	pool, err := ConnectToIngestDB(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return ingestdb.NewStore(pool), nil
}
