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

package testhelpers

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/orlangure/gnomock"
	"github.com/orlangure/gnomock/preset/postgres"

	"github.com/cardinalhq/mediarunner/ingestdb"
	"github.com/cardinalhq/mediarunner/ingestdb/migrations"
)

// SetupTestIngestDB creates a clean database with migrations applied and
// registers cleanup with t.Cleanup. When INGESTDB_TEST_URL is set it is
// used as the server to create the database on, otherwise a throwaway
// Postgres container is started. Skipped under -short.
func SetupTestIngestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("database tests are skipped in short mode")
	}

	ctx := context.Background()
	baseURL := os.Getenv("INGESTDB_TEST_URL")
	if baseURL == "" {
		baseURL = startPostgres(t)
	}

	basePool, err := pgxpool.New(ctx, baseURL)
	if err != nil {
		t.Fatalf("Failed to connect to base database: %v", err)
	}

	dbName := fmt.Sprintf("test_ingestdb_%d_%d", time.Now().Unix(), rand.Intn(10000))
	if _, err := basePool.Exec(ctx, fmt.Sprintf("CREATE DATABASE %s", dbName)); err != nil {
		basePool.Close()
		t.Fatalf("Failed to create test database %s: %v", dbName, err)
	}

	cfg, err := pgxpool.ParseConfig(baseURL)
	if err != nil {
		t.Fatalf("Failed to parse database url: %v", err)
	}
	cfg.ConnConfig.Database = dbName
	testPool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	if err := migrations.RunMigrationsUp(ctx, testPool); err != nil {
		testPool.Close()
		t.Fatalf("Failed to run ingestdb migrations: %v", err)
	}

	t.Cleanup(func() {
		testPool.Close()
		_, err := basePool.Exec(context.Background(), fmt.Sprintf("DROP DATABASE IF EXISTS %s", dbName))
		if err != nil {
			slog.Error("Failed to drop test database", slog.String("dbName", dbName), slog.Any("error", err))
		}
		basePool.Close()
	})

	return testPool
}

func NewTestIngestDBStore(t *testing.T) *ingestdb.Store {
	return ingestdb.NewStore(SetupTestIngestDB(t))
}

func startPostgres(t *testing.T) string {
	t.Helper()
	container, err := gnomock.Start(postgres.Preset(
		postgres.WithUser("mediarunner", "mediarunner"),
		postgres.WithDatabase("mediarunner"),
	))
	if err != nil {
		t.Skipf("Postgres container unavailable: %v", err)
	}
	t.Cleanup(func() {
		if err := gnomock.Stop(container); err != nil {
			slog.Error("Failed to stop postgres container", slog.Any("error", err))
		}
	})
	return fmt.Sprintf("postgresql://mediarunner:mediarunner@%s/mediarunner?sslmode=disable", container.DefaultAddress())
}
