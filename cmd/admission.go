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
	"fmt"
	"log/slog"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/cardinalhq/mediarunner/config"
	"github.com/cardinalhq/mediarunner/internal/admission"
	"github.com/cardinalhq/mediarunner/internal/awsclient"
)

func init() {
	admissionCmd.AddCommand(admissionStatusCmd, admissionResetCmd)
	rootCmd.AddCommand(admissionCmd)
}

var admissionCmd = &cobra.Command{
	Use:   "admission",
	Short: "Inspect or reset the shared heavy-step admission counter",
}

var admissionStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show permits in use",
	RunE: func(_ *cobra.Command, _ []string) error {
		return withSemaphore(func(ctx context.Context, cfg *config.Config, sem *admission.Semaphore) error {
			current, err := sem.Current(ctx)
			if err != nil {
				return err
			}
			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Backend", "Key", "In use", "Limit", "Free"})
			t.AppendRow(table.Row{cfg.Admission.Backend, sem.Key(), current, sem.Limit(), max(sem.Limit()-current, 0)})
			t.Render()
			return nil
		})
	},
}

// admissionResetCmd returns permits leaked by workers that died while
// holding them. Run it only when no worker is mid-step.
var admissionResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Return every permit to the pool",
	RunE: func(_ *cobra.Command, _ []string) error {
		return withSemaphore(func(ctx context.Context, _ *config.Config, sem *admission.Semaphore) error {
			n, err := sem.Drain(ctx)
			if err != nil {
				return err
			}
			slog.Info("Admission counter drained", slog.String("key", sem.Key()), slog.Int("released", n))
			fmt.Printf("released %d permit(s) on %s\n", n, sem.Key())
			return nil
		})
	},
}

func withSemaphore(fn func(ctx context.Context, cfg *config.Config, sem *admission.Semaphore) error) error {
	return runWithTelemetry("mediarunner-admin", func(ctx context.Context) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if cfg.Admission.Backend == admission.BackendMemory {
			return fmt.Errorf("admission backend %s is per process and cannot be inspected", admission.BackendMemory)
		}
		mgr, err := awsclient.NewManager(ctx)
		if err != nil {
			return fmt.Errorf("failed to create AWS manager: %w", err)
		}
		db, err := openDB(ctx, cfg)
		if err != nil {
			return err
		}
		if db != nil {
			defer db.Close()
		}
		sem, err := newSemaphore(ctx, cfg, mgr, db)
		if err != nil {
			return err
		}
		return fn(ctx, cfg, sem)
	})
}
