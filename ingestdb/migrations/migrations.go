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

// Package migrations holds the embedded schema for the ingestion database.
package migrations

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/pgx"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

//go:embed *.sql
var migrationFiles embed.FS

const migrationsTable = "gomigrate_mediarunner"

// CheckMode controls what CheckVersion does on a version mismatch.
type CheckMode int

const (
	// CheckModeWait polls until the schema catches up or the timeout passes.
	CheckModeWait CheckMode = iota
	// CheckModeWarn logs the mismatch and continues.
	CheckModeWarn
	// CheckModeSkip does not look at the schema at all.
	CheckModeSkip
)

type CheckOptions struct {
	Mode          CheckMode
	Timeout       time.Duration
	RetryInterval time.Duration
	AllowDirty    bool
}

type CheckOption func(*CheckOptions)

func WithCheckMode(mode CheckMode) CheckOption {
	return func(o *CheckOptions) { o.Mode = mode }
}

func WithTimeout(d time.Duration) CheckOption {
	return func(o *CheckOptions) { o.Timeout = d }
}

func WithRetryInterval(d time.Duration) CheckOption {
	return func(o *CheckOptions) { o.RetryInterval = d }
}

func WithAllowDirty(allow bool) CheckOption {
	return func(o *CheckOptions) { o.AllowDirty = allow }
}

func DefaultCheckOptions() CheckOptions {
	return CheckOptions{
		Mode:          CheckModeWait,
		Timeout:       120 * time.Second,
		RetryInterval: 5 * time.Second,
	}
}

// withMigrator opens a migrate instance over pool and closes it after fn.
func withMigrator(pool *pgxpool.Pool, fn func(*migrate.Migrate) error) error {
	sourceDriver, err := iofs.New(migrationFiles, ".")
	if err != nil {
		return fmt.Errorf("failed to create iofs driver: %w", err)
	}

	sqlDB := stdlib.OpenDBFromPool(pool)
	defer func() {
		_ = sqlDB.Close()
	}()

	dbDriver, err := pgx.WithInstance(sqlDB, &pgx.Config{
		MigrationsTable: migrationsTable,
	})
	if err != nil {
		return fmt.Errorf("failed to create pgx driver: %w", err)
	}
	defer func() {
		_ = dbDriver.Close()
	}()

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return fn(m)
}

// RunMigrationsUp applies all pending up migrations.
func RunMigrationsUp(ctx context.Context, pool *pgxpool.Pool) error {
	return withMigrator(pool, func(m *migrate.Migrate) error {
		_, dirty, err := m.Version()
		if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
			return fmt.Errorf("failed to get current version: %w", err)
		}
		if dirty {
			return errors.New("migration is dirty, please fix it before proceeding")
		}
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migration failed: %w", err)
		}
		slog.Info("Ingestion database migrations applied")
		return nil
	})
}

// CurrentVersion reports the applied schema version. A fresh database is
// version 0.
func CurrentVersion(pool *pgxpool.Pool) (uint, bool, error) {
	var (
		version uint
		dirty   bool
	)
	err := withMigrator(pool, func(m *migrate.Migrate) error {
		v, d, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to get current version: %w", err)
		}
		version, dirty = v, d
		return nil
	})
	return version, dirty, err
}

// ExpectedVersion is the highest version among the embedded migrations.
func ExpectedVersion() (uint, error) {
	entries, err := migrationFiles.ReadDir(".")
	if err != nil {
		return 0, fmt.Errorf("failed to read migration directory: %w", err)
	}
	var maxVersion uint64
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		prefix, _, _ := strings.Cut(path.Base(name), "_")
		v, err := strconv.ParseUint(prefix, 10, 64)
		if err != nil {
			continue
		}
		maxVersion = max(maxVersion, v)
	}
	if maxVersion == 0 {
		return 0, errors.New("no valid migration files found")
	}
	return uint(maxVersion), nil
}

// CheckVersion compares the applied schema against the embedded one.
func CheckVersion(ctx context.Context, pool *pgxpool.Pool, options ...CheckOption) error {
	opts := DefaultCheckOptions()
	for _, o := range options {
		o(&opts)
	}
	if opts.Mode == CheckModeSkip {
		return nil
	}

	expected, err := ExpectedVersion()
	if err != nil {
		return err
	}

	deadline := time.Now().Add(opts.Timeout)
	ticker := time.NewTicker(opts.RetryInterval)
	defer ticker.Stop()

	for {
		current, dirty, err := CurrentVersion(pool)
		if err != nil {
			return err
		}
		if dirty && !opts.AllowDirty && opts.Mode != CheckModeWarn {
			return errors.New("ingestion database migration is in dirty state, please fix before proceeding")
		}
		switch {
		case current == expected:
			return nil
		case current > expected:
			if opts.Mode == CheckModeWarn {
				slog.Warn("Database version is newer than expected",
					slog.Uint64("currentVersion", uint64(current)),
					slog.Uint64("expectedVersion", uint64(expected)))
				return nil
			}
			return fmt.Errorf("database version %d is newer than expected version %d", current, expected)
		case opts.Mode == CheckModeWarn:
			slog.Warn("Database version is older than expected",
				slog.Uint64("currentVersion", uint64(current)),
				slog.Uint64("expectedVersion", uint64(expected)))
			return nil
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("timed out waiting for migrations: at version %d, want %d", current, expected)
		}
		slog.Info("Waiting for migrations to complete",
			slog.Uint64("currentVersion", uint64(current)),
			slog.Uint64("expectedVersion", uint64(expected)),
			slog.Duration("remaining", time.Until(deadline)))

		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled while waiting for migrations: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}
