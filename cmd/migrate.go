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

package cmd

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/mediarunner/ingestdb/migrations"
	"github.com/cardinalhq/mediarunner/internal/dbopen"
)

func init() {
	rootCmd.AddCommand(migrateCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply ingestion database migrations",
	RunE: func(_ *cobra.Command, _ []string) error {
		return runWithTelemetry("mediarunner-migrate", migrate)
	},
}

func migrate(ctx context.Context) error {
	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	pool, err := dbopen.ConnectToIngestDB(connectCtx, dbopen.SkipMigrationCheck())
	if err != nil {
		return err
	}
	defer pool.Close()

	slog.Info("Running ingestdb migrations")
	if err := migrations.RunMigrationsUp(ctx, pool); err != nil {
		return err
	}
	slog.Info("ingestdb migrations completed successfully")
	return nil
}
